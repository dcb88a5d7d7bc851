package launch

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aixgo-dev/axon/agent"
	"github.com/aixgo-dev/axon/internal/host"
	"github.com/aixgo-dev/axon/proto"
)

// echoActor backs the hosts these tests launch, including the re-exec'd
// test binary itself.
type echoActor struct{}

func (echoActor) Invoke(ctx context.Context, method string, args []agent.Value) (agent.Value, error) {
	switch method {
	case "reflect":
		if len(args) == 0 {
			return agent.Null(), nil
		}
		return args[0], nil
	case "sleep":
		ms, _ := args[0].AsNumber()
		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
			return agent.String("done"), nil
		case <-ctx.Done():
			return agent.Null(), ctx.Err()
		}
	default:
		return agent.Null(), agent.RemoteError(fmt.Sprintf("unknown method %s", method))
	}
}

func testRegistry() *agent.Registry {
	return agent.NewRegistry(map[string]agent.Constructor{
		"echo": func(args []agent.Value) (agent.Actor, error) {
			return echoActor{}, nil
		},
	})
}

// TestMain lets the test binary double as the embedded Host child: a
// spawned copy sees the host-mode environment and serves instead of
// running the tests again.
func TestMain(m *testing.M) {
	if MaybeRunHost(testRegistry()) {
		return
	}
	os.Exit(m.Run())
}

func TestLaunch_EmbeddedSubprocess(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	desc, err := Launch(ctx, Options{Mode: EmbeddedSubprocess, PoolSize: 2})
	require.NoError(t, err)
	require.NotEmpty(t, desc.Endpoint)

	client, err := proto.Dial(desc.Endpoint, nil)
	require.NoError(t, err)
	defer client.Close()

	actorID, err := client.Create(ctx, "echo", nil)
	require.NoError(t, err)

	result, err := client.InvokeSync(ctx, actorID, "reflect", []agent.Value{agent.String("ping")})
	require.NoError(t, err)
	s, _ := result.AsString()
	assert.Equal(t, "ping", s)

	require.NoError(t, desc.Shutdown(5*time.Second))
	assert.NoError(t, desc.WaitUntilTerminate(ctx))
}

func TestLaunch_EmbeddedUnknownClass(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	desc, err := Launch(ctx, Options{Mode: EmbeddedSubprocess})
	require.NoError(t, err)
	defer desc.Shutdown(5 * time.Second)

	client, err := proto.Dial(desc.Endpoint, nil)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Create(ctx, "no-such-class", nil)
	assert.ErrorIs(t, err, agent.ErrNotFound)
}

func TestLaunch_ShutdownDrainsInFlight(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	desc, err := Launch(ctx, Options{Mode: EmbeddedSubprocess})
	require.NoError(t, err)

	client, err := proto.Dial(desc.Endpoint, nil)
	require.NoError(t, err)
	defer client.Close()

	actorID, err := client.Create(ctx, "echo", nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		result, err := client.InvokeSync(ctx, actorID, "sleep", []agent.Value{agent.Number(2000)})
		if err == nil {
			if s, _ := result.AsString(); s != "done" {
				err = fmt.Errorf("unexpected result %q", s)
			}
		}
		done <- err
	}()

	// Give the invoke time to be accepted before shutting down.
	time.Sleep(300 * time.Millisecond)
	require.NoError(t, desc.Shutdown(5*time.Second))

	assert.NoError(t, <-done, "an in-flight call must complete within the grace period")
	assert.NoError(t, desc.WaitUntilTerminate(ctx))
}

func TestLaunch_StandaloneProbesExistingHost(t *testing.T) {
	h := host.New(testRegistry(), host.WithMetrics(false))
	require.NoError(t, h.Start(context.Background(), "127.0.0.1:0"))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.Stop(ctx)
	})

	desc, err := Launch(context.Background(), Options{Mode: Standalone, Endpoint: h.Addr()})
	require.NoError(t, err)
	assert.Equal(t, h.Addr(), desc.Endpoint)

	// Standalone descriptors never own the process: shutting the
	// descriptor down leaves the host serving.
	require.NoError(t, desc.Shutdown(time.Second))
	client, err := proto.Dial(h.Addr(), nil)
	require.NoError(t, err)
	defer client.Close()
	resp, err := client.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, proto.PingServing, resp.Status)
}

func TestLaunch_StandaloneUnreachable(t *testing.T) {
	_, err := Launch(context.Background(), Options{
		Mode:         Standalone,
		Endpoint:     "127.0.0.1:1",
		ReadyTimeout: 500 * time.Millisecond,
	})
	assert.ErrorIs(t, err, agent.ErrConnection)
}

func TestLaunch_StandaloneRequiresEndpoint(t *testing.T) {
	_, err := Launch(context.Background(), Options{Mode: Standalone})
	assert.Error(t, err)
}

func TestDescriptor_ReferenceCounting(t *testing.T) {
	desc := &ServerDescriptor{Endpoint: "127.0.0.1:9", Mode: Standalone, refs: 1}
	desc.Retain()

	down, err := desc.Release(time.Second)
	require.NoError(t, err)
	assert.False(t, down)

	down, err = desc.Release(time.Second)
	require.NoError(t, err)
	assert.True(t, down, "dropping the last reference tears the descriptor down")

	// Further releases stay torn down without double teardown.
	down, err = desc.Release(time.Second)
	require.NoError(t, err)
	assert.False(t, down)
}
