// Package memory is the in-process authoritative store. A single write lock
// serialises transactions, so a unit's status/available pair and the booking
// that changed it become visible together or not at all.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"seulanga/internal/domain"
)

type flagKey struct{ business, guest string }

type Store struct {
	mu       sync.RWMutex
	bookings map[string]domain.Booking
	units    map[string]domain.Unit
	flags    map[flagKey]domain.GuestFlag
	promos   map[string]domain.Promotion
	audit    []domain.AuditEntry
	seq      int64
}

func New() *Store {
	return &Store{
		bookings: map[string]domain.Booking{},
		units:    map[string]domain.Unit{},
		flags:    map[flagKey]domain.GuestFlag{},
		promos:   map[string]domain.Promotion{},
	}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{
		s:        s,
		bookings: map[string]domain.Booking{},
		units:    map[string]domain.Unit{},
		flags:    map[flagKey]domain.GuestFlag{},
		promos:   map[string]domain.Promotion{},
	}
	if err := fn(t); err != nil {
		return err
	}
	t.commit()
	return nil
}

// tx stages writes and reads through them; commit runs under the store lock.
type tx struct {
	s        *Store
	bookings map[string]domain.Booking
	units    map[string]domain.Unit
	flags    map[flagKey]domain.GuestFlag
	promos   map[string]domain.Promotion
	audit    []domain.AuditEntry
}

func (t *tx) Booking(_ context.Context, id string) (domain.Booking, error) {
	if b, ok := t.bookings[id]; ok {
		return b, nil
	}
	if b, ok := t.s.bookings[id]; ok {
		return b, nil
	}
	return domain.Booking{}, fmt.Errorf("%w: booking %s", domain.ErrNotFound, id)
}

func (t *tx) PutBooking(_ context.Context, b domain.Booking) error {
	if b.ID == "" {
		return fmt.Errorf("%w: booking id is required", domain.ErrValidation)
	}
	t.bookings[b.ID] = b
	return nil
}

func (t *tx) UnitBookings(_ context.Context, unitID string) ([]domain.Booking, error) {
	seen := map[string]bool{}
	var out []domain.Booking
	for id, b := range t.bookings {
		seen[id] = true
		if b.UnitID == unitID {
			out = append(out, b)
		}
	}
	for id, b := range t.s.bookings {
		if !seen[id] && b.UnitID == unitID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (t *tx) Unit(_ context.Context, id string) (domain.Unit, error) {
	if u, ok := t.units[id]; ok {
		return u, nil
	}
	if u, ok := t.s.units[id]; ok {
		return u, nil
	}
	return domain.Unit{}, fmt.Errorf("%w: unit %s", domain.ErrNotFound, id)
}

func (t *tx) PutUnit(_ context.Context, u domain.Unit) error {
	if err := u.Validate(); err != nil {
		return err
	}
	t.units[u.ID] = u
	return nil
}

func (t *tx) GuestFlag(_ context.Context, businessID, guestID string) (domain.GuestFlag, error) {
	k := flagKey{businessID, guestID}
	if f, ok := t.flags[k]; ok {
		return f, nil
	}
	if f, ok := t.s.flags[k]; ok {
		return f, nil
	}
	return domain.GuestFlag{BusinessID: businessID, GuestID: guestID}, nil
}

func (t *tx) PutGuestFlag(_ context.Context, f domain.GuestFlag) error {
	t.flags[flagKey{f.BusinessID, f.GuestID}] = f
	return nil
}

func (t *tx) Promotion(_ context.Context, id string) (domain.Promotion, error) {
	if p, ok := t.promos[id]; ok {
		return p, nil
	}
	if p, ok := t.s.promos[id]; ok {
		return p, nil
	}
	return domain.Promotion{}, fmt.Errorf("%w: promotion %s", domain.ErrNotFound, id)
}

func (t *tx) PutPromotion(_ context.Context, p domain.Promotion) error {
	t.promos[p.ID] = p
	return nil
}

func (t *tx) AppendAudit(_ context.Context, e domain.AuditEntry) error {
	t.audit = append(t.audit, e)
	return nil
}

func (t *tx) commit() {
	for id, b := range t.bookings {
		t.s.bookings[id] = b
	}
	for id, u := range t.units {
		t.s.units[id] = u
	}
	for k, f := range t.flags {
		t.s.flags[k] = f
	}
	for id, p := range t.promos {
		t.s.promos[id] = p
	}
	for _, e := range t.audit {
		t.s.seq++
		e.Seq = t.s.seq
		t.s.audit = append(t.s.audit, e)
	}
}

// ---- read paths ----

func (s *Store) ListBookings(_ context.Context, f domain.BookingFilter) ([]domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Booking, 0)
	for _, b := range s.bookings {
		if f.BusinessID != "" && b.BusinessID != f.BusinessID {
			continue
		}
		if f.UnitID != "" && b.UnitID != f.UnitID {
			continue
		}
		if f.GuestID != "" && b.GuestID != f.GuestID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if !f.From.IsZero() && !b.CheckOut.After(f.From) {
			continue
		}
		if !f.To.IsZero() && !b.CheckIn.Before(f.To) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) ListUnits(_ context.Context, f domain.UnitFilter) ([]domain.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Unit, 0)
	for _, u := range s.units {
		if f.BusinessID != "" && u.BusinessID != f.BusinessID {
			continue
		}
		if f.Status != "" && u.Status != f.Status {
			continue
		}
		if f.AvailableOnly && !u.Available {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListAudit(_ context.Context, f domain.AuditFilter) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditEntry, 0)
	for i := len(s.audit) - 1; i >= 0; i-- {
		e := s.audit[i]
		if f.BusinessID != "" && e.BusinessID != f.BusinessID {
			continue
		}
		if !containsFold(e.Actor.Name, f.Actor) || !containsFold(e.Action, f.Action) || !containsFold(e.Target.ID, f.Target) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func containsFold(s, sub string) bool {
	return sub == "" || strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
