package host

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aixgo-dev/axon/agent"
	"github.com/aixgo-dev/axon/proto"
)

func TestPendingCall_CompleteWakesWaiters(t *testing.T) {
	table := newPendingTable(time.Minute)
	p := table.create()

	go func() {
		time.Sleep(10 * time.Millisecond)
		p.complete(agent.String("done"))
	}()

	require.NoError(t, p.wait(context.Background()))
	status, result, err := p.snapshot()
	assert.Equal(t, proto.StatusDone, status)
	assert.NoError(t, err)
	s, _ := result.AsString()
	assert.Equal(t, "done", s)
}

func TestPendingCall_TerminalIsSticky(t *testing.T) {
	table := newPendingTable(time.Minute)
	p := table.create()

	p.fail(errors.New("first"))
	p.complete(agent.String("too late"))
	p.fail(errors.New("also too late"))

	status, _, err := p.snapshot()
	assert.Equal(t, proto.StatusError, status)
	assert.EqualError(t, err, "first")
}

func TestPendingCall_WaitTimeout(t *testing.T) {
	table := newPendingTable(time.Minute)
	p := table.create()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.wait(ctx)
	assert.ErrorIs(t, err, agent.ErrTimeout)
}

func TestPendingTable_SweepKeepsUnexpired(t *testing.T) {
	table := newPendingTable(time.Minute)

	expired := table.create()
	expired.complete(agent.Null())
	fresh := table.create()
	fresh.complete(agent.Null())
	running := table.create()

	expired.mu.Lock()
	expired.doneAt = time.Now().Add(-2 * time.Minute)
	expired.mu.Unlock()

	assert.Equal(t, 1, table.sweep(time.Now()))
	assert.Equal(t, 2, table.len())

	_, ok := table.get(expired.id)
	assert.False(t, ok)
	_, ok = table.get(fresh.id)
	assert.True(t, ok)
	_, ok = table.get(running.id)
	assert.True(t, ok, "a call that never finished must not be swept")
}
