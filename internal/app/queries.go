package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"seulanga/internal/authz"
	"seulanga/internal/domain"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 500
)

// scopeList pins operators to their own business; guests are scoped by ID.
func scopeList(a domain.Actor, businessID string) string {
	if (a.Role == domain.RoleStaff || a.Role == domain.RoleOwner) && businessID == "" {
		return a.BusinessID
	}
	return businessID
}

func (e *Engine) ListBookings(ctx context.Context, a domain.Actor, f domain.BookingFilter) ([]domain.Booking, error) {
	f.BusinessID = scopeList(a, f.BusinessID)
	if a.Role == domain.RoleGuest {
		f.GuestID = a.ID
	}
	if err := e.guard.Authorize(a, domain.CmdListBookings, authz.Scope{BusinessID: f.BusinessID, GuestID: f.GuestID}); err != nil {
		return nil, err
	}
	return e.store.ListBookings(ctx, f)
}

// Marketplace listings live under a per-business generation. Invalidation
// bumps the generation, so a reader that loaded the store before a commit can
// only ever write its stale list under a key nobody reads any more.
func unitsGenKey(businessID string) string { return fmt.Sprintf("units:gen:%s", businessID) }

func unitsKey(businessID string, gen int64) string {
	return fmt.Sprintf("units:available:%s:v%d", businessID, gen)
}

// ListUnits serves marketplace listings (one business, available only) from
// the cache when one is configured. Guests only ever see available units.
func (e *Engine) ListUnits(ctx context.Context, a domain.Actor, f domain.UnitFilter) ([]domain.Unit, error) {
	f.BusinessID = scopeList(a, f.BusinessID)
	if a.Role == domain.RoleGuest {
		f.AvailableOnly = true
	}
	if err := e.guard.Authorize(a, domain.CmdListUnits, authz.Scope{BusinessID: f.BusinessID}); err != nil {
		return nil, err
	}

	cacheable := e.cache != nil && f.BusinessID != "" && f.AvailableOnly && f.Status == ""
	var key string
	if cacheable {
		// the generation must be read before the store
		var gen int64
		if _, err := e.cache.Get(ctx, unitsGenKey(f.BusinessID), &gen); err != nil {
			log.Warn().Err(err).Str("business", f.BusinessID).Msg("listing generation unreadable; bypassing cache")
			cacheable = false
		}
		key = unitsKey(f.BusinessID, gen)
	}
	if cacheable {
		var cached []domain.Unit
		if ok, _ := e.cache.Get(ctx, key, &cached); ok {
			return cached, nil
		}
	}
	us, err := e.store.ListUnits(ctx, f)
	if err != nil {
		return nil, err
	}
	if cacheable {
		// copy so callers can't mutate what a later hit returns
		cp := make([]domain.Unit, len(us))
		copy(cp, us)
		_ = e.cache.Set(ctx, key, cp, int(e.cacheTTL.Seconds()))
	}
	return us, nil
}

// invalidateUnits runs after commit. The old generation's entry is dropped
// right away; a late writer to it only wastes space until the TTL.
func (e *Engine) invalidateUnits(ctx context.Context, businessID string) {
	if e.cache == nil {
		return
	}
	gen, err := e.cache.Incr(ctx, unitsGenKey(businessID))
	if err != nil {
		log.Error().Err(err).Str("business", businessID).Msg("bump listing generation failed")
		return
	}
	_ = e.cache.Del(ctx, unitsKey(businessID, gen-1))
}

// GetAuditLog returns entries newest first.
func (e *Engine) GetAuditLog(ctx context.Context, a domain.Actor, f domain.AuditFilter) ([]domain.AuditEntry, error) {
	f.BusinessID = scopeList(a, f.BusinessID)
	if err := e.guard.Authorize(a, domain.CmdViewAudit, authz.Scope{BusinessID: f.BusinessID}); err != nil {
		return nil, err
	}
	switch {
	case f.Limit <= 0:
		f.Limit = defaultAuditLimit
	case f.Limit > maxAuditLimit:
		f.Limit = maxAuditLimit
	}
	return e.store.ListAudit(ctx, f)
}
