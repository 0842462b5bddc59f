package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"seulanga/internal/domain"
)

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func valDate(d domain.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

type Store struct{ db *sql.DB }

func New(db *sql.DB) *Store { return &Store{db: db} }

// WithTx runs fn inside one InnoDB transaction. Rows read through the tx are
// locked with FOR UPDATE, so two commands touching the same unit serialise.
func (s *Store) WithTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(&tx{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type tx struct{ tx *sql.Tx }

type scanner interface{ Scan(dest ...any) error }

func scanBooking(r scanner) (domain.Booking, error) {
	var (
		b                 domain.Booking
		in, out           time.Time
		status, source    string
		evidence, promoID sql.NullString
		notes             sql.NullString
	)
	if err := r.Scan(
		&b.ID, &b.BusinessID, &b.UnitID, &b.GuestID, &b.GuestName,
		&in, &out, &b.TotalPrice,
		&status, &b.VerifiedPayment, &evidence, &promoID, &notes, &source,
		&b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return domain.Booking{}, err
	}
	b.CheckIn, b.CheckOut = domain.DateOf(in), domain.DateOf(out)
	b.Status = domain.BookingStatus(status)
	b.Source = domain.BookingSource(source)
	b.PaymentEvidence = evidence.String
	b.PromotionID = promoID.String
	b.Notes = notes.String
	return b, nil
}

func scanUnit(r scanner) (domain.Unit, error) {
	var (
		u      domain.Unit
		status string
	)
	if err := r.Scan(&u.ID, &u.BusinessID, &u.Name, &u.Type, &status, &u.Available, &u.Price); err != nil {
		return domain.Unit{}, err
	}
	u.Status = domain.UnitStatus(status)
	return u, nil
}

func scanPromotion(r scanner) (domain.Promotion, error) {
	var p domain.Promotion
	err := r.Scan(&p.ID, &p.BusinessID, &p.Code, &p.PercentOff, &p.AmountOff, &p.Active, &p.CreatedBy, &p.CreatedAt)
	return p, err
}

func (t *tx) Booking(ctx context.Context, id string) (domain.Booking, error) {
	b, err := scanBooking(t.tx.QueryRowContext(ctx, getBookingForUpdateSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Booking{}, fmt.Errorf("%w: booking %s", domain.ErrNotFound, id)
	}
	return b, err
}

func (t *tx) PutBooking(ctx context.Context, b domain.Booking) error {
	if b.ID == "" {
		return fmt.Errorf("%w: booking id is required", domain.ErrValidation)
	}
	_, err := t.tx.ExecContext(ctx, upsertBookingSQL,
		b.ID, b.BusinessID, b.UnitID, b.GuestID, b.GuestName,
		valDate(b.CheckIn), valDate(b.CheckOut), b.TotalPrice,
		string(b.Status), b.VerifiedPayment, b.PaymentEvidence, b.PromotionID, valStr(b.Notes), string(b.Source),
		b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
	)
	return err
}

func (t *tx) UnitBookings(ctx context.Context, unitID string) ([]domain.Booking, error) {
	rows, err := t.tx.QueryContext(ctx, unitBookingsForUpdateSQL, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (t *tx) Unit(ctx context.Context, id string) (domain.Unit, error) {
	u, err := scanUnit(t.tx.QueryRowContext(ctx, getUnitForUpdateSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Unit{}, fmt.Errorf("%w: unit %s", domain.ErrNotFound, id)
	}
	return u, err
}

func (t *tx) PutUnit(ctx context.Context, u domain.Unit) error {
	if err := u.Validate(); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, upsertUnitSQL,
		u.ID, u.BusinessID, u.Name, u.Type, string(u.Status), u.Available, u.Price)
	return err
}

func (t *tx) GuestFlag(ctx context.Context, businessID, guestID string) (domain.GuestFlag, error) {
	f := domain.GuestFlag{BusinessID: businessID, GuestID: guestID}
	var note sql.NullString
	err := t.tx.QueryRowContext(ctx, getGuestFlagSQL, businessID, guestID).Scan(&f.Blocked, &note, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return f, nil
	}
	f.Note = note.String
	return f, err
}

func (t *tx) PutGuestFlag(ctx context.Context, f domain.GuestFlag) error {
	_, err := t.tx.ExecContext(ctx, upsertGuestFlagSQL,
		f.BusinessID, f.GuestID, f.Blocked, valStr(f.Note), f.UpdatedAt.UTC())
	return err
}

func (t *tx) Promotion(ctx context.Context, id string) (domain.Promotion, error) {
	p, err := scanPromotion(t.tx.QueryRowContext(ctx, getPromotionSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Promotion{}, fmt.Errorf("%w: promotion %s", domain.ErrNotFound, id)
	}
	return p, err
}

func (t *tx) PutPromotion(ctx context.Context, p domain.Promotion) error {
	_, err := t.tx.ExecContext(ctx, upsertPromotionSQL,
		p.ID, p.BusinessID, p.Code, p.PercentOff, p.AmountOff, p.Active, p.CreatedBy, p.CreatedAt.UTC())
	return err
}

// AppendAudit inserts the entry; seq comes from the AUTO_INCREMENT column and
// is visible to readers once the transaction commits.
func (t *tx) AppendAudit(ctx context.Context, e domain.AuditEntry) error {
	_, err := t.tx.ExecContext(ctx, insertAuditSQL,
		e.ID, e.BusinessID, e.Actor.ID, e.Actor.Name, string(e.Actor.Role),
		e.Action, string(e.Target.Kind), e.Target.ID, valStr(e.Detail), e.At.UTC(),
	)
	return err
}

// -----------------------------------------------------------------------------
// READ PATHS
// -----------------------------------------------------------------------------

// where accumulates "col = ?" style predicates.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, arg any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, arg)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func likeArg(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func (s *Store) ListBookings(ctx context.Context, f domain.BookingFilter) ([]domain.Booking, error) {
	var w where
	if f.BusinessID != "" {
		w.add("business_id = ?", f.BusinessID)
	}
	if f.UnitID != "" {
		w.add("unit_id = ?", f.UnitID)
	}
	if f.GuestID != "" {
		w.add("guest_id = ?", f.GuestID)
	}
	if f.Status != "" {
		w.add("status = ?", string(f.Status))
	}
	if !f.From.IsZero() {
		w.add("check_out > ?", f.From.String())
	}
	if !f.To.IsZero() {
		w.add("check_in < ?", f.To.String())
	}
	rows, err := s.db.QueryContext(ctx, listBookingsPrefix+w.String()+" ORDER BY created_at DESC, id DESC", w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) ListUnits(ctx context.Context, f domain.UnitFilter) ([]domain.Unit, error) {
	var w where
	if f.BusinessID != "" {
		w.add("business_id = ?", f.BusinessID)
	}
	if f.Status != "" {
		w.add("status = ?", string(f.Status))
	}
	if f.AvailableOnly {
		w.add("available = ?", true)
	}
	rows, err := s.db.QueryContext(ctx, listUnitsPrefix+w.String()+" ORDER BY id", w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Unit, 0)
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) ListAudit(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEntry, error) {
	var w where
	if f.BusinessID != "" {
		w.add("business_id = ?", f.BusinessID)
	}
	if f.Actor != "" {
		w.add("actor_name LIKE ?", likeArg(f.Actor))
	}
	if f.Action != "" {
		w.add("action LIKE ?", likeArg(f.Action))
	}
	if f.Target != "" {
		w.add("target_id LIKE ?", likeArg(f.Target))
	}
	q := listAuditPrefix + w.String() + " ORDER BY seq DESC"
	args := w.args
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.AuditEntry, 0)
	for rows.Next() {
		var (
			e          domain.AuditEntry
			role, kind string
			detail     sql.NullString
		)
		if err := rows.Scan(
			&e.Seq, &e.ID, &e.BusinessID,
			&e.Actor.ID, &e.Actor.Name, &role,
			&e.Action, &kind, &e.Target.ID, &detail, &e.At,
		); err != nil {
			return nil, err
		}
		e.Actor.Role = domain.Role(role)
		e.Target.Kind = domain.TargetKind(kind)
		e.Detail = detail.String
		out = append(out, e)
	}
	return out, rows.Err()
}
