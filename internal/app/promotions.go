package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"seulanga/internal/authz"
	"seulanga/internal/domain"
)

// CreatePromotion publishes a new active promotion. Only owners and super
// admins may do this; staff can only apply existing ones.
func (e *Engine) CreatePromotion(ctx context.Context, a domain.Actor, p domain.Promotion) (domain.Promotion, error) {
	err := e.exec(ctx, a, domain.CmdCreatePromotion, func(ctx context.Context) error {
		if err := e.guard.Authorize(a, domain.CmdCreatePromotion, authz.Scope{BusinessID: p.BusinessID}); err != nil {
			return err
		}
		p.ID = uuid.NewString()
		p.Code = strings.ToUpper(strings.TrimSpace(p.Code))
		p.Active = true
		p.CreatedBy = a.ID
		p.CreatedAt = e.now().UTC()
		if err := p.Validate(); err != nil {
			return err
		}
		return e.store.WithTx(ctx, func(tx domain.Tx) error {
			if err := tx.PutPromotion(ctx, p); err != nil {
				return err
			}
			return e.record(ctx, tx, a, string(domain.CmdCreatePromotion),
				domain.Target{Kind: domain.TargetPromotion, ID: p.ID}, p.BusinessID, p.Code)
		})
	})
	if err != nil {
		return domain.Promotion{}, err
	}
	return p, nil
}

// ApplyPromotion discounts a booking's total once.
func (e *Engine) ApplyPromotion(ctx context.Context, a domain.Actor, bookingID, promotionID string) (domain.Booking, error) {
	return e.mutateBooking(ctx, a, bookingID, domain.CmdApplyPromotion, func(ctx context.Context, tx domain.Tx, b *domain.Booking) (string, error) {
		if b.Status.Terminal() {
			return "", fmt.Errorf("%w: booking %s is %s", domain.ErrInvalidTransition, b.ID, b.Status)
		}
		if b.PromotionID != "" {
			return "", fmt.Errorf("%w: booking %s already has promotion %s", domain.ErrValidation, b.ID, b.PromotionID)
		}
		p, err := tx.Promotion(ctx, promotionID)
		if err != nil {
			return "", err
		}
		if p.BusinessID != b.BusinessID {
			return "", fmt.Errorf("%w: promotion %s", domain.ErrNotFound, promotionID)
		}
		if !p.Active {
			return "", fmt.Errorf("%w: promotion %s is inactive", domain.ErrValidation, p.Code)
		}
		before := b.TotalPrice
		b.TotalPrice = p.Discount(before)
		b.PromotionID = p.ID
		return fmt.Sprintf("%s: %d -> %d", p.Code, before, b.TotalPrice), nil
	})
}
