package axon

import (
	"context"
	"errors"
	"sync"

	"github.com/aixgo-dev/axon/agent"
	"github.com/aixgo-dev/axon/proto"
)

// futureState is the lifecycle of a Placeholder: pending until the first
// successful (or permanently failed) resolution, terminal afterwards.
type futureState int

const (
	statePending futureState = iota
	stateResolved
	stateFailed
)

// Placeholder is a handle to a remote call result that may not exist yet.
// It is created immediately when a Proxy dispatches a call and can be
// passed as an argument into further remote calls without being resolved
// first; the Host serving that later call resolves it directly against the
// origin. Force blocks for the concrete outcome and caches it.
//
// A Placeholder is safe for concurrent use.
type Placeholder struct {
	ref agent.Ref
	tls *proto.TLSConfig

	mu    sync.Mutex
	state futureState
	value agent.Value
	err   error
}

// NewPlaceholder wraps a Ref in a pending Placeholder. tlsCfg configures
// the resolution connection and may be nil.
func NewPlaceholder(ref agent.Ref, tlsCfg *proto.TLSConfig) *Placeholder {
	return &Placeholder{ref: ref, tls: tlsCfg}
}

// Ref returns the resolvable identity of the Placeholder: origin endpoint
// plus request id. Any party holding it can resolve it, as long as the
// origin Host still retains the call.
func (p *Placeholder) Ref() agent.Ref { return p.ref }

// Arg returns the Placeholder in argument form for a further remote call.
// Unresolved Placeholders travel as their Ref 3-tuple, never as a value,
// so the serving Host can resolve them directly against the origin. An
// already resolved Placeholder travels as its cached value.
func (p *Placeholder) Arg() agent.Value {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == stateResolved {
		return p.value
	}
	return agent.RefValue(p.ref)
}

// Resolved reports whether Force would return from cache without network I/O.
func (p *Placeholder) Resolved() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state != statePending
}

// Force blocks until the referenced call is terminal and returns its
// outcome. Terminal outcomes are cached: a resolved Placeholder returns the
// same value forever without touching the network, and a call that ended in
// a remote failure keeps returning that failure. Transport failures
// (connection, timeout) are NOT cached, so a later Force can retry; the
// remote unit of work keeps running regardless of how many waiters gave up.
//
// Bound the wait with a ctx deadline; it propagates to the transport.
//
// The lock is never held across the network fetch: Arg and Resolved stay
// non-blocking while a Force is in flight, so one goroutine forcing does
// not stall another that is pipelining the same Placeholder.
func (p *Placeholder) Force(ctx context.Context) (agent.Value, error) {
	p.mu.Lock()
	switch p.state {
	case stateResolved:
		value := p.value
		p.mu.Unlock()
		return value, nil
	case stateFailed:
		err := p.err
		p.mu.Unlock()
		return agent.Null(), err
	}
	p.mu.Unlock()

	client, err := clientFor(p.ref.Endpoint(), p.tls)
	if err != nil {
		return agent.Null(), err
	}

	value, err := client.FetchResult(ctx, p.ref.RequestID)

	p.mu.Lock()
	defer p.mu.Unlock()

	// A concurrent Force may have installed the terminal state first;
	// resolution is idempotent, so the cached outcome wins.
	switch p.state {
	case stateResolved:
		return p.value, nil
	case stateFailed:
		return agent.Null(), p.err
	}

	if err != nil {
		// A remote failure or a forgotten request id will never turn into
		// a value; anything else is transient.
		if errors.Is(err, agent.ErrRemote) || errors.Is(err, agent.ErrNotFound) {
			p.state = stateFailed
			p.err = err
		}
		return agent.Null(), err
	}

	p.state = stateResolved
	p.value = value
	return value, nil
}
