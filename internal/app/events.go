package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"seulanga/internal/adapters/observability"
	"seulanga/internal/domain"
)

const (
	defaultEventQueue = 1024
	eventSendTimeout  = 30 * time.Second
)

type event struct {
	key string
	v   any
}

// outbox feeds one publisher from its own goroutine, so a slow broker or
// webhook delays neither the command nor the other publishers.
type outbox struct {
	p domain.EventPublisher
	q chan event
}

type dispatcher struct {
	mu     sync.RWMutex
	closed bool
	outs   []outbox
	wg     sync.WaitGroup
}

func newDispatcher(ps []domain.EventPublisher, size int) *dispatcher {
	d := &dispatcher{}
	for _, p := range ps {
		o := outbox{p: p, q: make(chan event, size)}
		d.outs = append(d.outs, o)
		d.wg.Add(1)
		go d.run(o)
	}
	return d
}

func (d *dispatcher) run(o outbox) {
	defer d.wg.Done()
	for ev := range o.q {
		ctx, cancel := context.WithTimeout(context.Background(), eventSendTimeout)
		err := o.p.PublishJSON(ctx, ev.key, ev.v)
		cancel()
		if err != nil {
			observability.ObserveEvent("failed")
			log.Warn().Err(err).Str("key", ev.key).Msg("publish event failed")
			continue
		}
		observability.ObserveEvent("delivered")
	}
}

// enqueue never blocks. A full queue drops the event for that publisher.
func (d *dispatcher) enqueue(key string, v any) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		observability.ObserveEvent("dropped")
		log.Warn().Str("key", key).Msg("event after close dropped")
		return
	}
	for _, o := range d.outs {
		select {
		case o.q <- event{key: key, v: v}:
		default:
			observability.ObserveEvent("dropped")
			log.Warn().Str("key", key).Msg("event queue full; dropped")
		}
	}
}

// close stops intake and waits until the queues drain or ctx ends.
func (d *dispatcher) close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, o := range d.outs {
			close(o.q)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
