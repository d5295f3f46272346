// Package event models the active lifetime of a host-delivered event.
//
// The host may stop an agent as soon as an event looks handled. Work that
// has to outlive the handler (tier writes, provisioning, showing an alert)
// registers itself with WaitUntil; the host calls Settle before it considers
// the event done.
package event

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Event is one host-delivered event (intercept, provision, activate, push,
// notification interaction).
type Event struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	mu      sync.Mutex
	pending int
	onDone  func()
	settled bool
}

// New creates an event whose extended work outlives ctx's cancellation but
// keeps its values. Abort cancels that work.
func New(ctx context.Context) *Event {
	c, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &Event{ctx: c, cancel: cancel}
}

// NewTracked is New with a callback run once, when the event settles.
func NewTracked(ctx context.Context, onDone func()) *Event {
	e := New(ctx)
	e.onDone = onDone
	return e
}

// Context returns the context extended work runs under.
func (e *Event) Context() context.Context {
	return e.ctx
}

// WaitUntil extends the event's lifetime until fn returns.
func (e *Event) WaitUntil(fn func(ctx context.Context) error) {
	e.mu.Lock()
	e.pending++
	e.mu.Unlock()

	e.group.Go(func() error {
		defer func() {
			e.mu.Lock()
			e.pending--
			e.mu.Unlock()
		}()
		return fn(e.ctx)
	})
}

// Pending returns the number of unsettled extensions.
func (e *Event) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

// Settle blocks until every extension has returned and reports the first
// error among them.
func (e *Event) Settle() error {
	err := e.group.Wait()

	e.mu.Lock()
	first := !e.settled
	e.settled = true
	e.mu.Unlock()

	if first {
		e.cancel()
		if e.onDone != nil {
			e.onDone()
		}
	}
	return err
}

// Abort cancels the context of unsettled extensions. Their outcome is
// best-effort.
func (e *Event) Abort() {
	e.cancel()
}
