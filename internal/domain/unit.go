package domain

import (
	"fmt"
	"strings"
)

type UnitStatus string

const (
	UnitReady       UnitStatus = "READY"
	UnitDirty       UnitStatus = "DIRTY"
	UnitMaintenance UnitStatus = "MAINTENANCE"
	UnitBlocked     UnitStatus = "BLOCKED"
)

func ParseUnitStatus(s string) (UnitStatus, error) {
	switch st := UnitStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case UnitReady, UnitDirty, UnitMaintenance, UnitBlocked:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown unit status %q", ErrValidation, s)
	}
}

// Unit is a rentable asset. Available mirrors Status == READY; change the pair
// only through WithStatus.
type Unit struct {
	ID         string     `json:"id"`
	BusinessID string     `json:"businessId"`
	Name       string     `json:"name"`
	Type       string     `json:"type,omitempty"`
	Status     UnitStatus `json:"status"`
	Available  bool       `json:"available"`
	Price      int64      `json:"price"`
}

func (u Unit) WithStatus(s UnitStatus) Unit {
	u.Status = s
	u.Available = s == UnitReady
	return u
}

func (u Unit) Validate() error {
	if u.ID == "" || u.BusinessID == "" {
		return fmt.Errorf("%w: unit id and business are required", ErrValidation)
	}
	if _, err := ParseUnitStatus(string(u.Status)); err != nil {
		return err
	}
	if u.Available != (u.Status == UnitReady) {
		return fmt.Errorf("%w: unit %s available=%t with status %s", ErrValidation, u.ID, u.Available, u.Status)
	}
	if u.Price < 0 {
		return fmt.Errorf("%w: unit price must not be negative", ErrValidation)
	}
	return nil
}
