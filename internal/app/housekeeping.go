package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"seulanga/internal/domain"
)

// SweepNoShows moves every CONFIRMED booking of the business whose check-in
// day has passed to NO_SHOW. Bookings that changed state underneath the sweep
// are skipped.
func (e *Engine) SweepNoShows(ctx context.Context, businessID string) (int, error) {
	sys := domain.SystemActor("housekeeper")
	today := e.today()
	bs, err := e.store.ListBookings(ctx, domain.BookingFilter{
		BusinessID: businessID,
		Status:     domain.StatusConfirmed,
		To:         today,
	})
	if err != nil {
		return 0, err
	}

	n := 0
	for _, b := range bs {
		if !b.CheckIn.Before(today) {
			continue
		}
		if _, err := e.MarkNoShow(ctx, sys, b.ID); err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				log.Info().Str("booking", b.ID).Msg("no-show sweep skipped booking")
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}
