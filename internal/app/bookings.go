package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"seulanga/internal/authz"
	"seulanga/internal/domain"
)

// BookingRequest carries the fields for both online requests and walk-ins.
// GuestID/GuestName are taken from the actor for online requests.
type BookingRequest struct {
	BusinessID string      `json:"businessId"`
	UnitID     string      `json:"unitId"`
	GuestID    string      `json:"guestId,omitempty"`
	GuestName  string      `json:"guestName,omitempty"`
	CheckIn    domain.Date `json:"checkIn"`
	CheckOut   domain.Date `json:"checkOut"`
	TotalPrice int64       `json:"totalPrice"`
	Notes      string      `json:"notes,omitempty"`
	// Override lets staff admit a blacklisted walk-in guest.
	Override bool `json:"override,omitempty"`
}

var eventKeys = map[domain.Command]string{
	domain.CmdCreateBooking:  "booking.created",
	domain.CmdCreateWalkIn:   "booking.created",
	domain.CmdConfirmBooking: "booking.confirmed",
	domain.CmdCancelBooking:  "booking.cancelled",
	domain.CmdCheckIn:        "booking.checked_in",
	domain.CmdCheckOut:       "booking.completed",
	domain.CmdMarkNoShow:     "booking.no_show",
	domain.CmdModifyDates:    "booking.reprice_requested",
	domain.CmdVerifyPayment:  "payment.verified",
	domain.CmdRejectPayment:  "payment.rejected",
	domain.CmdApplyPromotion: "booking.promotion_applied",
}

func scopeOf(b domain.Booking) authz.Scope {
	return authz.Scope{BusinessID: b.BusinessID, GuestID: b.GuestID, Status: b.Status}
}

func bookingTarget(id string) domain.Target {
	return domain.Target{Kind: domain.TargetBooking, ID: id}
}

// CreateBooking records a guest's online request as PENDING.
func (e *Engine) CreateBooking(ctx context.Context, a domain.Actor, in BookingRequest) (domain.Booking, error) {
	in.GuestID, in.GuestName = a.ID, a.Name
	return e.create(ctx, a, domain.CmdCreateBooking, in)
}

// CreateWalkIn records a front-desk booking. Walk-ins are settled on the spot,
// so they start CONFIRMED with a verified payment.
func (e *Engine) CreateWalkIn(ctx context.Context, a domain.Actor, in BookingRequest) (domain.Booking, error) {
	if in.GuestID == "" {
		in.GuestID = "walkin:" + uuid.NewString()
	}
	return e.create(ctx, a, domain.CmdCreateWalkIn, in)
}

func (e *Engine) create(ctx context.Context, a domain.Actor, cmd domain.Command, in BookingRequest) (domain.Booking, error) {
	var out domain.Booking
	err := e.exec(ctx, a, cmd, func(ctx context.Context) error {
		if err := e.guard.Authorize(a, cmd, authz.Scope{BusinessID: in.BusinessID, GuestID: in.GuestID}); err != nil {
			return err
		}
		if err := domain.ValidateStay(in.CheckIn, in.CheckOut); err != nil {
			return err
		}
		if in.TotalPrice < 0 {
			return fmt.Errorf("%w: total price must not be negative", domain.ErrValidation)
		}

		return e.store.WithTx(ctx, func(tx domain.Tx) error {
			u, err := tx.Unit(ctx, in.UnitID)
			if err != nil {
				return err
			}
			if u.BusinessID != in.BusinessID {
				return fmt.Errorf("%w: unit %s in business %s", domain.ErrNotFound, in.UnitID, in.BusinessID)
			}

			walkIn := cmd == domain.CmdCreateWalkIn
			if walkIn {
				if u.Status == domain.UnitMaintenance || u.Status == domain.UnitBlocked {
					return fmt.Errorf("%w: unit %s is %s", domain.ErrUnitUnavailable, u.ID, u.Status)
				}
				flag, err := tx.GuestFlag(ctx, in.BusinessID, in.GuestID)
				if err != nil {
					return err
				}
				if flag.Blocked && !in.Override {
					return fmt.Errorf("%w: %s", domain.ErrGuestBlocked, in.GuestID)
				}
			} else if !u.Available {
				return fmt.Errorf("%w: unit %s is not open for booking", domain.ErrUnitUnavailable, u.ID)
			}
			if err := e.ensureFree(ctx, tx, u.ID, "", in.CheckIn, in.CheckOut); err != nil {
				return err
			}

			now := e.now().UTC()
			b := domain.Booking{
				ID:         uuid.NewString(),
				BusinessID: in.BusinessID,
				UnitID:     u.ID,
				GuestID:    in.GuestID,
				GuestName:  in.GuestName,
				CheckIn:    in.CheckIn,
				CheckOut:   in.CheckOut,
				TotalPrice: in.TotalPrice,
				Notes:      in.Notes,
				Status:     domain.StatusPending,
				Source:     domain.SourceOnline,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if b.TotalPrice == 0 {
				b.TotalPrice = u.Price * int64(in.CheckIn.DaysUntil(in.CheckOut))
			}
			if walkIn {
				b.Status, b.VerifiedPayment, b.Source = domain.StatusConfirmed, true, domain.SourceWalkIn
			}
			b, err = domain.NewBooking(b)
			if err != nil {
				return err
			}
			if err := tx.PutBooking(ctx, b); err != nil {
				return err
			}
			out = b
			return e.record(ctx, tx, a, string(cmd), bookingTarget(b.ID), b.BusinessID,
				fmt.Sprintf("unit %s %s..%s total %d", b.UnitID, b.CheckIn, b.CheckOut, b.TotalPrice))
		})
	})
	if err != nil {
		return domain.Booking{}, err
	}
	e.publish(eventKeys[cmd], out)
	return out, nil
}

// ensureFree fails with ErrUnitUnavailable when another active booking holds
// the unit during [in, out). skipID excludes the booking being modified.
func (e *Engine) ensureFree(ctx context.Context, tx domain.Tx, unitID, skipID string, in, out domain.Date) error {
	bs, err := tx.UnitBookings(ctx, unitID)
	if err != nil {
		return err
	}
	for _, b := range bs {
		if b.ID == skipID || !b.Status.Active() {
			continue
		}
		if b.Overlaps(in, out) {
			return fmt.Errorf("%w: unit %s held by booking %s for %s..%s", domain.ErrUnitUnavailable, unitID, b.ID, b.CheckIn, b.CheckOut)
		}
	}
	return nil
}

// mutateBooking loads, authorizes, mutates, persists and audits one booking in
// a single transaction. fn returns the audit detail.
func (e *Engine) mutateBooking(ctx context.Context, a domain.Actor, id string, cmd domain.Command,
	fn func(ctx context.Context, tx domain.Tx, b *domain.Booking) (string, error),
) (domain.Booking, error) {
	var out domain.Booking
	err := e.exec(ctx, a, cmd, func(ctx context.Context) error {
		return e.store.WithTx(ctx, func(tx domain.Tx) error {
			b, err := tx.Booking(ctx, id)
			if err != nil {
				return err
			}
			if err := e.guard.Authorize(a, cmd, scopeOf(b)); err != nil {
				return err
			}
			detail, err := fn(ctx, tx, &b)
			if err != nil {
				return err
			}
			b.UpdatedAt = e.now().UTC()
			if err := tx.PutBooking(ctx, b); err != nil {
				return err
			}
			out = b
			return e.record(ctx, tx, a, string(cmd), bookingTarget(b.ID), b.BusinessID, detail)
		})
	})
	if err != nil {
		return domain.Booking{}, err
	}
	e.publish(eventKeys[cmd], out)
	return out, nil
}

// Confirm accepts a PENDING request. Without override the payment must be
// verified and the guest must not be blacklisted by the business.
func (e *Engine) Confirm(ctx context.Context, a domain.Actor, id string, override bool) (domain.Booking, error) {
	return e.mutateBooking(ctx, a, id, domain.CmdConfirmBooking, func(ctx context.Context, tx domain.Tx, b *domain.Booking) (string, error) {
		to, err := b.Next(domain.CmdConfirmBooking)
		if err != nil {
			return "", err
		}
		flag, err := tx.GuestFlag(ctx, b.BusinessID, b.GuestID)
		if err != nil {
			return "", err
		}
		if flag.Blocked && !override {
			return "", fmt.Errorf("%w: %s needs an explicit override", domain.ErrGuestBlocked, b.GuestID)
		}
		if !b.VerifiedPayment && !override {
			return "", fmt.Errorf("%w: booking %s", domain.ErrPaymentNotVerified, b.ID)
		}
		b.Status = to
		if override {
			return "confirmed with override", nil
		}
		return "confirmed", nil
	})
}

func (e *Engine) Cancel(ctx context.Context, a domain.Actor, id, reason string) (domain.Booking, error) {
	return e.mutateBooking(ctx, a, id, domain.CmdCancelBooking, func(_ context.Context, _ domain.Tx, b *domain.Booking) (string, error) {
		to, err := b.Next(domain.CmdCancelBooking)
		if err != nil {
			return "", err
		}
		b.Status = to
		return fmt.Sprintf("released unit %s; %s", b.UnitID, reason), nil
	})
}

func (e *Engine) CheckIn(ctx context.Context, a domain.Actor, id string) (domain.Booking, error) {
	return e.mutateBooking(ctx, a, id, domain.CmdCheckIn, func(ctx context.Context, tx domain.Tx, b *domain.Booking) (string, error) {
		to, err := b.Next(domain.CmdCheckIn)
		if err != nil {
			return "", err
		}
		if today := e.today(); !b.CheckIn.Equal(today) {
			return "", fmt.Errorf("%w: check-in is %s, today is %s", domain.ErrInvalidTransition, b.CheckIn, today)
		}
		u, err := tx.Unit(ctx, b.UnitID)
		if err != nil {
			return "", err
		}
		if u.Status != domain.UnitReady {
			return "", fmt.Errorf("%w: unit %s is %s", domain.ErrUnitUnavailable, u.ID, u.Status)
		}
		b.Status = to
		return "guest checked in to unit " + u.ID, nil
	})
}

// CheckOut completes the stay and marks the unit DIRTY. The unit returns to
// READY only through an explicit SetUnitStatus.
func (e *Engine) CheckOut(ctx context.Context, a domain.Actor, id string) (domain.Booking, error) {
	b, err := e.mutateBooking(ctx, a, id, domain.CmdCheckOut, func(ctx context.Context, tx domain.Tx, b *domain.Booking) (string, error) {
		to, err := b.Next(domain.CmdCheckOut)
		if err != nil {
			return "", err
		}
		if today := e.today(); !b.CheckOut.Equal(today) {
			return "", fmt.Errorf("%w: check-out is %s, today is %s", domain.ErrInvalidTransition, b.CheckOut, today)
		}
		u, err := tx.Unit(ctx, b.UnitID)
		if err != nil {
			return "", err
		}
		from := u.Status
		if err := tx.PutUnit(ctx, u.WithStatus(domain.UnitDirty)); err != nil {
			return "", err
		}
		b.Status = to
		return fmt.Sprintf("unit %s %s -> %s", u.ID, from, domain.UnitDirty), nil
	})
	if err == nil {
		e.invalidateUnits(ctx, b.BusinessID)
	}
	return b, err
}

// MarkNoShow closes a CONFIRMED booking whose guest never arrived.
func (e *Engine) MarkNoShow(ctx context.Context, a domain.Actor, id string) (domain.Booking, error) {
	return e.mutateBooking(ctx, a, id, domain.CmdMarkNoShow, func(_ context.Context, _ domain.Tx, b *domain.Booking) (string, error) {
		to, err := b.Next(domain.CmdMarkNoShow)
		if err != nil {
			return "", err
		}
		if today := e.today(); !today.After(b.CheckIn) {
			return "", fmt.Errorf("%w: check-in %s has not passed", domain.ErrInvalidTransition, b.CheckIn)
		}
		b.Status = to
		return "guest did not arrive", nil
	})
}

// ModifyDates moves a non-terminal stay. The new total is not computed here;
// the booking.reprice_requested event asks the pricing side to reprice.
func (e *Engine) ModifyDates(ctx context.Context, a domain.Actor, id string, in, out domain.Date) (domain.Booking, error) {
	return e.mutateBooking(ctx, a, id, domain.CmdModifyDates, func(ctx context.Context, tx domain.Tx, b *domain.Booking) (string, error) {
		if err := domain.ValidateStay(in, out); err != nil {
			return "", err
		}
		if b.Status.Terminal() {
			return "", fmt.Errorf("%w: booking %s is %s", domain.ErrInvalidTransition, b.ID, b.Status)
		}
		if b.Status == domain.StatusCheckedIn {
			if !in.Equal(b.CheckIn) {
				return "", fmt.Errorf("%w: guest already checked in on %s", domain.ErrInvalidTransition, b.CheckIn)
			}
			// CheckOut only runs on the departure day
			if today := e.today(); out.Before(today) {
				return "", fmt.Errorf("%w: check-out %s is before today %s", domain.ErrInvalidTransition, out, today)
			}
		}
		if err := e.ensureFree(ctx, tx, b.UnitID, b.ID, in, out); err != nil {
			return "", err
		}
		detail := fmt.Sprintf("%s..%s -> %s..%s; reprice requested", b.CheckIn, b.CheckOut, in, out)
		b.CheckIn, b.CheckOut = in, out
		return detail, nil
	})
}
