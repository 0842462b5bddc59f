package app

import (
	"context"
	"fmt"

	"seulanga/internal/authz"
	"seulanga/internal/domain"
)

// SetGuestBlacklist sets a business's block state and note for a guest. A
// blocked guest's requests can only be confirmed with an explicit override.
func (e *Engine) SetGuestBlacklist(ctx context.Context, a domain.Actor, businessID, guestID string, blocked bool, note string) (domain.GuestFlag, error) {
	var out domain.GuestFlag
	err := e.exec(ctx, a, domain.CmdSetGuestBlacklist, func(ctx context.Context) error {
		if err := e.guard.Authorize(a, domain.CmdSetGuestBlacklist, authz.Scope{BusinessID: businessID}); err != nil {
			return err
		}
		if businessID == "" || guestID == "" {
			return fmt.Errorf("%w: business and guest are required", domain.ErrValidation)
		}
		return e.store.WithTx(ctx, func(tx domain.Tx) error {
			f := domain.GuestFlag{
				BusinessID: businessID,
				GuestID:    guestID,
				Blocked:    blocked,
				Note:       note,
				UpdatedAt:  e.now().UTC(),
			}
			if err := tx.PutGuestFlag(ctx, f); err != nil {
				return err
			}
			out = f
			action := "unblock_guest"
			if blocked {
				action = "block_guest"
			}
			return e.record(ctx, tx, a, action, domain.Target{Kind: domain.TargetGuest, ID: guestID}, businessID, note)
		})
	})
	return out, err
}

// GetGuestHistory returns a guest's stays at one business, newest first, with
// the business's flag and a few totals.
func (e *Engine) GetGuestHistory(ctx context.Context, a domain.Actor, guestID, businessID string) (domain.GuestHistory, error) {
	if err := e.guard.Authorize(a, domain.CmdViewGuestHistory, authz.Scope{BusinessID: businessID}); err != nil {
		return domain.GuestHistory{}, err
	}
	bs, err := e.store.ListBookings(ctx, domain.BookingFilter{BusinessID: businessID, GuestID: guestID})
	if err != nil {
		return domain.GuestHistory{}, err
	}
	h := domain.GuestHistory{GuestID: guestID, BusinessID: businessID, Bookings: bs}
	err = e.store.WithTx(ctx, func(tx domain.Tx) error {
		h.Flag, err = tx.GuestFlag(ctx, businessID, guestID)
		return err
	})
	if err != nil {
		return domain.GuestHistory{}, err
	}
	for _, b := range bs {
		switch b.Status {
		case domain.StatusCompleted:
			h.Stays++
			h.LifetimeSpend += b.TotalPrice
		case domain.StatusCancelled:
			h.Cancellations++
		case domain.StatusNoShow:
			h.NoShows++
		}
	}
	return h, nil
}
