package domain

import (
	"fmt"
	"strings"
	"time"
)

// Promotion is a discount an owner publishes and staff apply to bookings.
// Exactly one of PercentOff and AmountOff is set.
type Promotion struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"businessId"`
	Code       string    `json:"code"`
	PercentOff int       `json:"percentOff,omitempty"`
	AmountOff  int64     `json:"amountOff,omitempty"`
	Active     bool      `json:"active"`
	CreatedBy  string    `json:"createdBy"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (p Promotion) Validate() error {
	switch {
	case p.BusinessID == "":
		return fmt.Errorf("%w: promotion business is required", ErrValidation)
	case strings.TrimSpace(p.Code) == "":
		return fmt.Errorf("%w: promotion code is required", ErrValidation)
	case p.PercentOff < 0 || p.PercentOff > 100:
		return fmt.Errorf("%w: percent off must be within 0..100", ErrValidation)
	case p.AmountOff < 0:
		return fmt.Errorf("%w: amount off must not be negative", ErrValidation)
	case (p.PercentOff > 0) == (p.AmountOff > 0):
		return fmt.Errorf("%w: set exactly one of percent off and amount off", ErrValidation)
	}
	return nil
}

// Discount returns the price after the promotion, floored at zero.
func (p Promotion) Discount(price int64) int64 {
	var out int64
	if p.PercentOff > 0 {
		out = price - price*int64(p.PercentOff)/100
	} else {
		out = price - p.AmountOff
	}
	if out < 0 {
		return 0
	}
	return out
}
