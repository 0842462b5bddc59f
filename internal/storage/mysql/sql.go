package mysql

const bookingColumns = `id, business_id, unit_id, guest_id, guest_name, check_in, check_out, total_price,
  status, verified_payment, payment_evidence, promotion_id, notes, source, created_at, updated_at`

const getBookingForUpdateSQL = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ? FOR UPDATE`

// Locks every booking of the unit so overlap checks and the write that follows
// see the same rows.
const unitBookingsForUpdateSQL = `SELECT ` + bookingColumns + ` FROM bookings WHERE unit_id = ? FOR UPDATE`

const upsertBookingSQL = `
INSERT INTO bookings
  (` + bookingColumns + `)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  check_in         = VALUES(check_in),
  check_out        = VALUES(check_out),
  total_price      = VALUES(total_price),
  status           = VALUES(status),
  verified_payment = VALUES(verified_payment),
  payment_evidence = VALUES(payment_evidence),
  promotion_id     = VALUES(promotion_id),
  notes            = VALUES(notes),
  updated_at       = VALUES(updated_at)
`

const unitColumns = `id, business_id, name, type, status, available, price`

const getUnitForUpdateSQL = `SELECT ` + unitColumns + ` FROM units WHERE id = ? FOR UPDATE`

// status and available always travel together in one statement
const upsertUnitSQL = `
INSERT INTO units
  (` + unitColumns + `)
VALUES
  (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  name      = VALUES(name),
  type      = VALUES(type),
  status    = VALUES(status),
  available = VALUES(available),
  price     = VALUES(price)
`

const getGuestFlagSQL = `
SELECT blocked, note, updated_at FROM guest_flags
WHERE business_id = ? AND guest_id = ?
FOR UPDATE
`

const upsertGuestFlagSQL = `
INSERT INTO guest_flags (business_id, guest_id, blocked, note, updated_at)
VALUES (?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  blocked    = VALUES(blocked),
  note       = VALUES(note),
  updated_at = VALUES(updated_at)
`

const promotionColumns = `id, business_id, code, percent_off, amount_off, active, created_by, created_at`

const getPromotionSQL = `SELECT ` + promotionColumns + ` FROM promotions WHERE id = ?`

const upsertPromotionSQL = `
INSERT INTO promotions
  (` + promotionColumns + `)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  active = VALUES(active)
`

const insertAuditSQL = `
INSERT INTO audit_log
  (id, business_id, actor_id, actor_name, actor_role, action, target_kind, target_id, detail, at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const listBookingsPrefix = `SELECT ` + bookingColumns + ` FROM bookings`

const listUnitsPrefix = `SELECT ` + unitColumns + ` FROM units`

const listAuditPrefix = `
SELECT seq, id, business_id, actor_id, actor_name, actor_role, action, target_kind, target_id, detail, at
FROM audit_log`
