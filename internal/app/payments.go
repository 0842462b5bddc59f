package app

import (
	"context"
	"fmt"

	"seulanga/internal/domain"
)

func settleable(b domain.Booking) error {
	if b.Status == domain.StatusCancelled || b.Status == domain.StatusNoShow {
		return fmt.Errorf("%w: booking %s is %s", domain.ErrInvalidTransition, b.ID, b.Status)
	}
	return nil
}

// VerifyPayment marks the booking settled. Verifying twice is a no-op on the
// booking; each call still leaves its own audit entry.
func (e *Engine) VerifyPayment(ctx context.Context, a domain.Actor, id, evidenceRef string) (domain.Booking, error) {
	return e.mutateBooking(ctx, a, id, domain.CmdVerifyPayment, func(_ context.Context, _ domain.Tx, b *domain.Booking) (string, error) {
		if err := settleable(*b); err != nil {
			return "", err
		}
		detail := "payment verified"
		if b.VerifiedPayment {
			detail = "payment already verified"
		}
		b.VerifiedPayment = true
		if evidenceRef != "" {
			b.PaymentEvidence = evidenceRef
			detail += "; evidence " + evidenceRef
		}
		return detail, nil
	})
}

// RejectPayment clears the verified flag. It never cancels the booking; that
// is a separate decision.
func (e *Engine) RejectPayment(ctx context.Context, a domain.Actor, id, reason string) (domain.Booking, error) {
	return e.mutateBooking(ctx, a, id, domain.CmdRejectPayment, func(_ context.Context, _ domain.Tx, b *domain.Booking) (string, error) {
		if err := settleable(*b); err != nil {
			return "", err
		}
		b.VerifiedPayment = false
		if reason == "" {
			return "payment rejected", nil
		}
		return "payment rejected: " + reason, nil
	})
}
