// Package fixtures loads demo data into a store. The api binary uses it to
// populate the in-memory store from SEED_FILE.
package fixtures

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"seulanga/internal/domain"
)

type Seed struct {
	Units      []domain.Unit      `json:"units"`
	Promotions []domain.Promotion `json:"promotions"`
	GuestFlags []domain.GuestFlag `json:"guestFlags"`
	Bookings   []domain.Booking   `json:"bookings"`
}

func Read(path string) (Seed, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed: %w", err)
	}
	var s Seed
	if err := json.Unmarshal(b, &s); err != nil {
		return Seed{}, fmt.Errorf("%w: seed %s: %v", domain.ErrValidation, path, err)
	}
	return s, nil
}

// Apply writes the seed in one transaction and leaves a single audit entry.
// Unit availability is derived from status; the file's value is ignored.
func Apply(ctx context.Context, store domain.Store, s Seed, now time.Time) error {
	now = now.UTC()
	return store.WithTx(ctx, func(tx domain.Tx) error {
		for _, u := range s.Units {
			st, err := domain.ParseUnitStatus(string(u.Status))
			if err != nil {
				return fmt.Errorf("unit %s: %w", u.ID, err)
			}
			if err := tx.PutUnit(ctx, u.WithStatus(st)); err != nil {
				return fmt.Errorf("unit %s: %w", u.ID, err)
			}
		}
		for _, p := range s.Promotions {
			p.Code = strings.ToUpper(strings.TrimSpace(p.Code))
			p.Active = true
			if p.CreatedBy == "" {
				p.CreatedBy = "seed"
			}
			if p.CreatedAt.IsZero() {
				p.CreatedAt = now
			}
			if err := p.Validate(); err != nil {
				return fmt.Errorf("promotion %s: %w", p.ID, err)
			}
			if err := tx.PutPromotion(ctx, p); err != nil {
				return err
			}
		}
		for _, f := range s.GuestFlags {
			if f.UpdatedAt.IsZero() {
				f.UpdatedAt = now
			}
			if err := tx.PutGuestFlag(ctx, f); err != nil {
				return err
			}
		}
		for _, b := range s.Bookings {
			if b.CreatedAt.IsZero() {
				b.CreatedAt, b.UpdatedAt = now, now
			}
			nb, err := domain.NewBooking(b)
			if err != nil {
				return fmt.Errorf("booking %s: %w", b.ID, err)
			}
			u, err := tx.Unit(ctx, nb.UnitID)
			if err != nil {
				return fmt.Errorf("booking %s: %w", b.ID, err)
			}
			if u.BusinessID != nb.BusinessID {
				return fmt.Errorf("%w: booking %s: unit %s belongs to %s", domain.ErrValidation, b.ID, u.ID, u.BusinessID)
			}
			if err := noOverlap(ctx, tx, nb); err != nil {
				return err
			}
			if err := tx.PutBooking(ctx, nb); err != nil {
				return err
			}
		}
		sys := domain.SystemActor("seed")
		return tx.AppendAudit(ctx, domain.AuditEntry{
			ID:     uuid.NewString(),
			Actor:  sys,
			Action: "seed",
			Target: domain.Target{Kind: domain.TargetUnit, ID: "*"},
			Detail: fmt.Sprintf("%d units, %d promotions, %d guest flags, %d bookings",
				len(s.Units), len(s.Promotions), len(s.GuestFlags), len(s.Bookings)),
			At: now,
		})
	})
}

// noOverlap rejects an active seeded stay that collides with another active
// stay on the same unit.
func noOverlap(ctx context.Context, tx domain.Tx, nb domain.Booking) error {
	if !nb.Status.Active() {
		return nil
	}
	bs, err := tx.UnitBookings(ctx, nb.UnitID)
	if err != nil {
		return err
	}
	for _, o := range bs {
		if o.ID != nb.ID && o.Status.Active() && o.Overlaps(nb.CheckIn, nb.CheckOut) {
			return fmt.Errorf("%w: booking %s overlaps %s on unit %s", domain.ErrValidation, nb.ID, o.ID, nb.UnitID)
		}
	}
	return nil
}

// LoadFile reads path and applies it. An empty path is a no-op.
func LoadFile(ctx context.Context, store domain.Store, path string) error {
	if path == "" {
		return nil
	}
	s, err := Read(path)
	if err != nil {
		return err
	}
	if err := Apply(ctx, store, s, time.Now()); err != nil {
		return fmt.Errorf("apply seed %s: %w", path, err)
	}
	log.Info().Str("file", path).Int("units", len(s.Units)).Int("bookings", len(s.Bookings)).Msg("seed loaded")
	return nil
}
