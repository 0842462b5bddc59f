package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"seulanga/internal/adapters/observability"
	"seulanga/internal/authz"
	"seulanga/internal/domain"
)

var tracer = otel.Tracer("seulanga/internal/app")

// Engine is the reservation & asset lifecycle engine. Every command goes
// through the authority guard, runs in one store transaction together with its
// audit entry, and only then fans out events and cache invalidations.
type Engine struct {
	store    domain.Store
	guard    *authz.Guard
	cache    domain.Cache
	cacheTTL time.Duration
	events   []domain.EventPublisher
	queue    int
	dispatch *dispatcher
	now      func() time.Time
	loc      *time.Location
}

type Option func(*Engine)

func WithCache(c domain.Cache, ttl time.Duration) Option {
	return func(e *Engine) { e.cache, e.cacheTTL = c, ttl }
}

// WithEvents adds publishers; every committed change goes to each of them.
// Delivery is asynchronous; call Close to drain on shutdown.
func WithEvents(ps ...domain.EventPublisher) Option {
	return func(e *Engine) { e.events = append(e.events, ps...) }
}

// WithEventQueue bounds how many undelivered events each publisher may hold.
func WithEventQueue(n int) Option {
	return func(e *Engine) { e.queue = n }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the zone that decides what "today" is for check-in and
// check-out.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.loc = loc }
}

func NewEngine(s domain.Store, g *authz.Guard, opts ...Option) *Engine {
	e := &Engine{store: s, guard: g, now: time.Now, loc: time.UTC, queue: defaultEventQueue}
	for _, o := range opts {
		o(e)
	}
	if len(e.events) > 0 {
		if e.queue <= 0 {
			e.queue = defaultEventQueue
		}
		e.dispatch = newDispatcher(e.events, e.queue)
	}
	return e
}

// Close stops event intake and waits for queued events to be delivered or
// for ctx to end. Commands issued after Close still commit; their events are
// dropped.
func (e *Engine) Close(ctx context.Context) error {
	if e.dispatch == nil {
		return nil
	}
	return e.dispatch.close(ctx)
}

func (e *Engine) today() domain.Date { return domain.DateOf(e.now().In(e.loc)) }

// exec wraps a command with tracing, metrics and a log line.
func (e *Engine) exec(ctx context.Context, a domain.Actor, cmd domain.Command, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "engine."+string(cmd), trace.WithAttributes(
		attribute.String("actor.id", a.ID),
		attribute.String("actor.role", string(a.Role)),
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	kind := errorKind(err)
	observability.ObserveCommand(string(cmd), kind, time.Since(start))

	switch {
	case err == nil:
		log.Debug().Str("command", string(cmd)).Str("actor", a.ID).Msg("command applied")
	case kind == "error":
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().Err(err).Str("command", string(cmd)).Str("actor", a.ID).Msg("command failed")
	default:
		span.SetAttributes(attribute.String("rejected", kind))
		log.Info().Err(err).Str("command", string(cmd)).Str("actor", a.ID).Str("reason", kind).Msg("command rejected")
	}
	return err
}

func (e *Engine) record(ctx context.Context, tx domain.Tx, a domain.Actor, action string, target domain.Target, businessID, detail string) error {
	return tx.AppendAudit(ctx, domain.AuditEntry{
		ID:         uuid.NewString(),
		BusinessID: businessID,
		Actor:      a,
		Action:     action,
		Target:     target,
		Detail:     detail,
		At:         e.now().UTC(),
	})
}

// publish is best-effort and never blocks: the command has already committed.
func (e *Engine) publish(key string, v any) {
	if e.dispatch == nil {
		return
	}
	e.dispatch.enqueue(key, v)
}

func errorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrUnitUnavailable):
		return "unit_unavailable"
	case errors.Is(err, domain.ErrPaymentNotVerified):
		return "payment_not_verified"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrGuestBlocked):
		return "guest_blocked"
	default:
		return "error"
	}
}
