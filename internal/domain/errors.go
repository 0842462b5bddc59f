package domain

import "errors"

// Engine error taxonomy. Callers match with errors.Is; the engine wraps these
// with detail via fmt.Errorf("%w: ...").
var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation error")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrUnitUnavailable    = errors.New("unit unavailable")
	ErrPaymentNotVerified = errors.New("payment not verified")
	ErrUnauthorized       = errors.New("unauthorized action")
	ErrGuestBlocked       = errors.New("guest is blacklisted")
)
