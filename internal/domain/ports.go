package domain

import "context"

// Tx is one atomic unit of work against the store. Writes become visible to
// other readers only when the surrounding WithTx returns nil.
type Tx interface {
	Booking(ctx context.Context, id string) (Booking, error)
	PutBooking(ctx context.Context, b Booking) error
	UnitBookings(ctx context.Context, unitID string) ([]Booking, error)

	Unit(ctx context.Context, id string) (Unit, error)
	PutUnit(ctx context.Context, u Unit) error

	GuestFlag(ctx context.Context, businessID, guestID string) (GuestFlag, error)
	PutGuestFlag(ctx context.Context, f GuestFlag) error

	Promotion(ctx context.Context, id string) (Promotion, error)
	PutPromotion(ctx context.Context, p Promotion) error

	AppendAudit(ctx context.Context, e AuditEntry) error
}

type Store interface {
	// WithTx runs fn atomically. Any error from fn discards its writes.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Read paths
	ListBookings(ctx context.Context, f BookingFilter) ([]Booking, error)
	ListUnits(ctx context.Context, f UnitFilter) ([]Unit, error)
	ListAudit(ctx context.Context, f AuditFilter) ([]AuditEntry, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
	// Incr atomically bumps an integer counter and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
}

// EventPublisher fans committed lifecycle changes out to other services.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// Read models & queries

type BookingFilter struct {
	BusinessID string
	UnitID     string
	GuestID    string
	Status     BookingStatus
	// From/To bound the stay: bookings checking out after From and checking in
	// before To.
	From, To Date
}

type UnitFilter struct {
	BusinessID    string
	Status        UnitStatus
	AvailableOnly bool
}

type AuditFilter struct {
	BusinessID string
	Actor      string // substring of actor name
	Action     string // substring of action
	Target     string // substring of target id
	Limit      int
}
