// Package authz decides which actor may run which engine command. It is the
// only place role policy lives; handlers and views never re-implement it.
package authz

import (
	"fmt"

	"seulanga/internal/domain"
)

// Scope describes the entity a command touches.
type Scope struct {
	BusinessID string
	// GuestID owns the target booking, when there is one.
	GuestID string
	// Status of the target booking, when there is one.
	Status domain.BookingStatus
}

type roles map[domain.Role]bool

func allow(rs ...domain.Role) roles {
	out := roles{}
	for _, r := range rs {
		out[r] = true
	}
	return out
}

var (
	operators = allow(domain.RoleStaff, domain.RoleOwner, domain.RoleSuperAdmin)
	managers  = allow(domain.RoleOwner, domain.RoleSuperAdmin)
	everyone  = allow(domain.RoleGuest, domain.RoleStaff, domain.RoleOwner, domain.RoleSuperAdmin)
)

// DefaultPolicy is the role x command table.
var DefaultPolicy = map[domain.Command]roles{
	domain.CmdCreateBooking:     allow(domain.RoleGuest),
	domain.CmdCreateWalkIn:      operators,
	domain.CmdConfirmBooking:    operators,
	domain.CmdCancelBooking:     everyone,
	domain.CmdCheckIn:           operators,
	domain.CmdCheckOut:          operators,
	domain.CmdMarkNoShow:        operators,
	domain.CmdModifyDates:       everyone,
	domain.CmdVerifyPayment:     operators,
	domain.CmdRejectPayment:     operators,
	domain.CmdSetUnitStatus:     operators,
	domain.CmdSetGuestBlacklist: operators,
	domain.CmdCreatePromotion:   managers,
	domain.CmdApplyPromotion:    operators,
	domain.CmdViewAudit:         operators,
	domain.CmdViewGuestHistory:  operators,
	domain.CmdListBookings:      everyone,
	domain.CmdListUnits:         everyone,
}

// guestPendingOnly lists commands a guest may run on their own booking only
// while it is still a request.
var guestPendingOnly = map[domain.Command]bool{
	domain.CmdCancelBooking: true,
	domain.CmdModifyDates:   true,
}

type Guard struct {
	policy map[domain.Command]roles
}

func NewGuard() *Guard { return &Guard{policy: DefaultPolicy} }

// Authorize returns nil or an error wrapping domain.ErrUnauthorized.
func (g *Guard) Authorize(a domain.Actor, cmd domain.Command, s Scope) error {
	if a.ID == "" {
		return deny(a, cmd, "anonymous actor")
	}
	if !g.policy[cmd][a.Role] {
		return deny(a, cmd, "role not permitted")
	}

	switch a.Role {
	case domain.RoleSuperAdmin:
		return nil
	case domain.RoleStaff, domain.RoleOwner:
		if a.BusinessID == "" || s.BusinessID != a.BusinessID {
			return deny(a, cmd, "outside own business")
		}
		return nil
	case domain.RoleGuest:
		if s.GuestID != "" && s.GuestID != a.ID {
			return deny(a, cmd, "not the guest's own booking")
		}
		if guestPendingOnly[cmd] && s.Status != domain.StatusPending {
			return deny(a, cmd, "guests may only change pending requests")
		}
		return nil
	}
	return deny(a, cmd, "unknown role")
}

func deny(a domain.Actor, cmd domain.Command, why string) error {
	return fmt.Errorf("%w: %s may not %s (%s)", domain.ErrUnauthorized, a.Role, cmd, why)
}
