package host

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aixgo-dev/axon/agent"
	"github.com/aixgo-dev/axon/proto"
)

// pendingCall tracks one accepted unit of work from acceptance to terminal
// state. The status transition PENDING -> DONE|ERROR happens exactly once;
// done is closed at that moment to wake every waiter.
type pendingCall struct {
	id string

	mu      sync.Mutex
	status  string
	result  agent.Value
	err     error
	fetches int
	doneAt  time.Time

	done chan struct{}
}

func (p *pendingCall) complete(v agent.Value) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != proto.StatusPending {
		return
	}
	p.status = proto.StatusDone
	p.result = v
	p.doneAt = time.Now()
	close(p.done)
}

func (p *pendingCall) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != proto.StatusPending {
		return
	}
	p.status = proto.StatusError
	p.err = err
	p.doneAt = time.Now()
	close(p.done)
}

// wait blocks until the call is terminal or ctx expires. The unit of work
// keeps running either way; a timed-out waiter can come back later.
func (p *pendingCall) wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for call %s", agent.ErrTimeout, p.id)
	}
}

// snapshot returns the terminal outcome. Only meaningful after wait.
func (p *pendingCall) snapshot() (status string, result agent.Value, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status, p.result, p.err
}

func (p *pendingCall) addFetch() {
	p.mu.Lock()
	p.fetches++
	p.mu.Unlock()
}

func (p *pendingCall) fetchCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetches
}

// pendingTable owns every pendingCall of a Host. Terminal entries are
// retained for the configured period so late Force calls and pipelined
// resolutions can still find them, then swept by the janitor.
type pendingTable struct {
	mu        sync.Mutex
	calls     map[string]*pendingCall
	retention time.Duration
}

func newPendingTable(retention time.Duration) *pendingTable {
	return &pendingTable{
		calls:     make(map[string]*pendingCall),
		retention: retention,
	}
}

func (t *pendingTable) create() *pendingCall {
	p := &pendingCall{
		id:     uuid.New().String(),
		status: proto.StatusPending,
		done:   make(chan struct{}),
	}
	t.mu.Lock()
	t.calls[p.id] = p
	t.mu.Unlock()
	return p
}

func (t *pendingTable) get(id string) (*pendingCall, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.calls[id]
	return p, ok
}

func (t *pendingTable) remove(id string) {
	t.mu.Lock()
	delete(t.calls, id)
	t.mu.Unlock()
}

func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

// sweep removes terminal entries older than the retention period and
// returns how many were dropped.
func (t *pendingTable) sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, p := range t.calls {
		p.mu.Lock()
		expired := p.status != proto.StatusPending && now.Sub(p.doneAt) >= t.retention
		p.mu.Unlock()
		if expired {
			delete(t.calls, id)
			removed++
		}
	}
	return removed
}
