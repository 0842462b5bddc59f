package app

import (
	"context"
	"fmt"

	"seulanga/internal/authz"
	"seulanga/internal/domain"
)

// SetUnitStatus is the only way a unit leaves DIRTY, MAINTENANCE or BLOCKED.
// Status and marketplace visibility change together.
func (e *Engine) SetUnitStatus(ctx context.Context, a domain.Actor, unitID string, status domain.UnitStatus) (domain.Unit, error) {
	var out domain.Unit
	err := e.exec(ctx, a, domain.CmdSetUnitStatus, func(ctx context.Context) error {
		if _, err := domain.ParseUnitStatus(string(status)); err != nil {
			return err
		}
		return e.store.WithTx(ctx, func(tx domain.Tx) error {
			u, err := tx.Unit(ctx, unitID)
			if err != nil {
				return err
			}
			if err := e.guard.Authorize(a, domain.CmdSetUnitStatus, authz.Scope{BusinessID: u.BusinessID}); err != nil {
				return err
			}
			from := u.Status
			u = u.WithStatus(status)
			if err := tx.PutUnit(ctx, u); err != nil {
				return err
			}
			out = u
			return e.record(ctx, tx, a, string(domain.CmdSetUnitStatus),
				domain.Target{Kind: domain.TargetUnit, ID: u.ID}, u.BusinessID,
				fmt.Sprintf("%s -> %s", from, u.Status))
		})
	})
	if err != nil {
		return domain.Unit{}, err
	}
	e.invalidateUnits(ctx, out.BusinessID)
	e.publish("unit.status_changed", out)
	return out, nil
}
