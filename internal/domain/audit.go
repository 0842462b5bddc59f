package domain

import "time"

type TargetKind string

const (
	TargetBooking   TargetKind = "booking"
	TargetUnit      TargetKind = "unit"
	TargetGuest     TargetKind = "guest"
	TargetPromotion TargetKind = "promotion"
)

type Target struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id"`
}

// AuditEntry is immutable once appended. Seq is assigned by the store and is
// strictly increasing, which orders entries for any single target.
type AuditEntry struct {
	ID         string    `json:"id"`
	Seq        int64     `json:"seq"`
	BusinessID string    `json:"businessId,omitempty"`
	Actor      Actor     `json:"actor"`
	Action     string    `json:"action"`
	Target     Target    `json:"target"`
	Detail     string    `json:"detail,omitempty"`
	At         time.Time `json:"at"`
}
