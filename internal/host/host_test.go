package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aixgo-dev/axon/agent"
	"github.com/aixgo-dev/axon/proto"
)

// testActor is a scriptable actor for exercising the Host paths. entered
// reports each time a "block" call starts executing, so tests can order
// themselves against actual execution rather than submission.
type testActor struct {
	mu       sync.Mutex
	calls    []string
	gate     chan struct{}
	entered  chan struct{}
	released sync.Once
}

// release unblocks every pending and future "block" call.
func (a *testActor) release() {
	a.released.Do(func() { close(a.gate) })
}

func (a *testActor) Invoke(ctx context.Context, method string, args []agent.Value) (agent.Value, error) {
	switch method {
	case "echo":
		if len(args) == 0 {
			return agent.Null(), nil
		}
		return args[0], nil
	case "record":
		s, _ := args[0].AsString()
		a.mu.Lock()
		a.calls = append(a.calls, s)
		a.mu.Unlock()
		return agent.String(s), nil
	case "block":
		select {
		case a.entered <- struct{}{}:
		default:
		}
		select {
		case <-a.gate:
			return agent.String("released"), nil
		case <-ctx.Done():
			return agent.Null(), ctx.Err()
		}
	case "boom":
		panic("kaboom")
	case "corrupt":
		return agent.Null(), &agent.Corrupted{Err: errors.New("state torn")}
	default:
		return agent.Null(), agent.RemoteError(fmt.Sprintf("unknown method %s", method))
	}
}

func (a *testActor) recorded() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.calls))
	copy(out, a.calls)
	return out
}

func newTestHost(t *testing.T, opts ...Option) (*Host, *testActor) {
	t.Helper()

	actor := &testActor{gate: make(chan struct{}), entered: make(chan struct{}, 16)}
	registry := agent.NewRegistry(map[string]agent.Constructor{
		"test": func(args []agent.Value) (agent.Actor, error) {
			return actor, nil
		},
	})

	opts = append([]Option{WithMetrics(false)}, opts...)
	h := New(registry, opts...)
	require.NoError(t, h.Start(context.Background(), "127.0.0.1:0"))
	t.Cleanup(func() {
		actor.release()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.Stop(ctx)
	})
	return h, actor
}

func TestHost_CreateUnknownClass(t *testing.T) {
	h, _ := newTestHost(t)

	_, err := h.createActor(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, agent.ErrNotFound)
}

func TestHost_InvokeSync(t *testing.T) {
	h, _ := newTestHost(t)

	id, err := h.createActor(context.Background(), "test", nil)
	require.NoError(t, err)

	_, result, err := h.invoke(context.Background(), id, "echo", []agent.Value{agent.String("hello")}, true)
	require.NoError(t, err)
	require.NotNil(t, result)

	s, ok := result.AsString()
	require.True(t, ok)
	assert.Equal(t, "hello", s)
}

func TestHost_InvokeAsyncAndFetch(t *testing.T) {
	h, _ := newTestHost(t)

	id, err := h.createActor(context.Background(), "test", nil)
	require.NoError(t, err)

	requestID, result, err := h.invoke(context.Background(), id, "echo", []agent.Value{agent.Number(42)}, false)
	require.NoError(t, err)
	assert.Nil(t, result, "async invoke must not carry a result")
	require.NotEmpty(t, requestID)

	resp, err := h.fetchResult(context.Background(), requestID)
	require.NoError(t, err)
	assert.Equal(t, proto.StatusDone, resp.Status)

	n, ok := resp.Result.AsNumber()
	require.True(t, ok)
	assert.Equal(t, float64(42), n)
}

func TestHost_FetchUnknownRequest(t *testing.T) {
	h, _ := newTestHost(t)

	_, err := h.fetchResult(context.Background(), "no-such-request")
	assert.ErrorIs(t, err, agent.ErrNotFound)
}

func TestHost_PerActorFIFO(t *testing.T) {
	h, actor := newTestHost(t, WithPoolSize(4), WithQueueSize(64))

	id, err := h.createActor(context.Background(), "test", nil)
	require.NoError(t, err)

	var requestIDs []string
	for i := 0; i < 20; i++ {
		rid, _, err := h.invoke(context.Background(), id, "record", []agent.Value{agent.String(fmt.Sprintf("call-%02d", i))}, false)
		require.NoError(t, err)
		requestIDs = append(requestIDs, rid)
	}
	for _, rid := range requestIDs {
		resp, err := h.fetchResult(context.Background(), rid)
		require.NoError(t, err)
		require.Equal(t, proto.StatusDone, resp.Status)
	}

	recorded := actor.recorded()
	require.Len(t, recorded, 20)
	for i, s := range recorded {
		assert.Equal(t, fmt.Sprintf("call-%02d", i), s, "calls must execute in submission order")
	}
}

func TestHost_OverloadFailsFast(t *testing.T) {
	h, _ := newTestHost(t, WithPoolSize(1), WithQueueSize(2))

	id, err := h.createActor(context.Background(), "test", nil)
	require.NoError(t, err)

	// Two units fill the bound: one blocking on the gate, one behind it.
	_, _, err = h.invoke(context.Background(), id, "block", nil, false)
	require.NoError(t, err)
	_, _, err = h.invoke(context.Background(), id, "echo", nil, false)
	require.NoError(t, err)

	start := time.Now()
	_, _, err = h.invoke(context.Background(), id, "echo", nil, false)
	assert.ErrorIs(t, err, agent.ErrOverloaded)
	assert.Less(t, time.Since(start), time.Second, "overload must reject without waiting")
}

func TestHost_DestroyThenInvoke(t *testing.T) {
	h, _ := newTestHost(t)

	id, err := h.createActor(context.Background(), "test", nil)
	require.NoError(t, err)
	require.NoError(t, h.destroyActor(id))

	_, _, err = h.invoke(context.Background(), id, "echo", nil, true)
	assert.ErrorIs(t, err, agent.ErrNotFound)

	assert.ErrorIs(t, h.destroyActor(id), agent.ErrNotFound)
}

func TestHost_DestroyFailsQueuedCalls(t *testing.T) {
	h, actor := newTestHost(t, WithPoolSize(1), WithQueueSize(8))

	id, err := h.createActor(context.Background(), "test", nil)
	require.NoError(t, err)

	blockID, _, err := h.invoke(context.Background(), id, "block", nil, false)
	require.NoError(t, err)

	// Destroy only once the block call is actually executing, so there is
	// a genuinely in-flight call and a genuinely queued one.
	select {
	case <-actor.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("block call never started executing")
	}
	queuedID, _, err := h.invoke(context.Background(), id, "echo", nil, false)
	require.NoError(t, err)

	require.NoError(t, h.destroyActor(id))
	actor.release()

	// The call that was already executing runs to completion.
	resp, err := h.fetchResult(context.Background(), blockID)
	require.NoError(t, err)
	assert.Equal(t, proto.StatusDone, resp.Status)

	// The one still in the backlog fails when a worker reaches it.
	resp, err = h.fetchResult(context.Background(), queuedID)
	require.NoError(t, err)
	assert.Equal(t, proto.StatusError, resp.Status)
	assert.Contains(t, resp.ErrorMessage, "not found")
}

func TestHost_PanicBecomesError(t *testing.T) {
	h, _ := newTestHost(t)

	id, err := h.createActor(context.Background(), "test", nil)
	require.NoError(t, err)

	_, _, err = h.invoke(context.Background(), id, "boom", nil, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	// The actor survives its own panic.
	_, result, err := h.invoke(context.Background(), id, "echo", []agent.Value{agent.String("still here")}, true)
	require.NoError(t, err)
	s, _ := result.AsString()
	assert.Equal(t, "still here", s)
}

func TestHost_CorruptedActorIsDestroyed(t *testing.T) {
	h, _ := newTestHost(t)

	id, err := h.createActor(context.Background(), "test", nil)
	require.NoError(t, err)

	_, _, err = h.invoke(context.Background(), id, "corrupt", nil, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupted")

	_, _, err = h.invoke(context.Background(), id, "echo", nil, true)
	assert.ErrorIs(t, err, agent.ErrNotFound)
	assert.Equal(t, 0, h.Stats().LiveActors)
}

func TestHost_SyncInvokeDeadline(t *testing.T) {
	h, _ := newTestHost(t)

	id, err := h.createActor(context.Background(), "test", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	requestID, _, err := h.invoke(ctx, id, "block", nil, true)
	assert.ErrorIs(t, err, agent.ErrTimeout)
	require.NotEmpty(t, requestID, "a timed-out sync call stays fetchable by id")

	// The unit keeps running; releasing the gate lets it finish and the
	// outcome is still retrievable.
	p, ok := h.pending.get(requestID)
	require.True(t, ok)
	assert.Equal(t, 0, p.fetchCount())
}

func TestHost_StopRejectsNewWork(t *testing.T) {
	actor := &testActor{gate: make(chan struct{})}
	registry := agent.NewRegistry(map[string]agent.Constructor{
		"test": func(args []agent.Value) (agent.Actor, error) { return actor, nil },
	})
	h := New(registry, WithMetrics(false))
	require.NoError(t, h.Start(context.Background(), "127.0.0.1:0"))

	id, err := h.createActor(context.Background(), "test", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Stop(ctx))

	_, err = h.createActor(context.Background(), "test", nil)
	assert.ErrorIs(t, err, agent.ErrHostStopped)

	_, _, err = h.invoke(context.Background(), id, "echo", nil, true)
	assert.ErrorIs(t, err, agent.ErrHostStopped)
}

func TestHost_EndpointDuringStart(t *testing.T) {
	registry := agent.NewRegistry(map[string]agent.Constructor{
		"test": func(args []agent.Value) (agent.Actor, error) {
			return &testActor{gate: make(chan struct{})}, nil
		},
	})
	h := New(registry, WithMetrics(false))

	// Endpoint must be safe to read while Start is publishing the bound
	// address; the race detector keeps this honest.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = h.Endpoint()
		}
	}()

	require.NoError(t, h.Start(context.Background(), "127.0.0.1:0"))
	<-done

	assert.Contains(t, h.Endpoint(), "127.0.0.1:")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Stop(ctx))
}

func TestHost_StatsAndEndpoint(t *testing.T) {
	h, _ := newTestHost(t)

	assert.NotEmpty(t, h.Addr())
	assert.Contains(t, h.Endpoint(), "127.0.0.1:")

	_, err := h.createActor(context.Background(), "test", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Stats().LiveActors)

	assert.Equal(t, -1, h.Fetches("unknown"))
}
