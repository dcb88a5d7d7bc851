package axon

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aixgo-dev/axon/agent"
	"github.com/aixgo-dev/axon/launch"
	"github.com/aixgo-dev/axon/proto"
)

// Proxy presents the call surface of an actor while forwarding every call
// to a remote Host. Invoke never blocks on the remote method's completion;
// it returns a Placeholder immediately.
type Proxy struct {
	class    string
	actorID  string
	endpoint string
	refHost  string
	refPort  int
	client   *proto.HostClient
	tls      *proto.TLSConfig

	desc  *launch.ServerDescriptor
	grace time.Duration

	closed atomic.Bool
}

// ActorID returns the remote actor id this Proxy stands in for.
func (p *Proxy) ActorID() string { return p.actorID }

// Endpoint returns the Host endpoint the Proxy forwards to.
func (p *Proxy) Endpoint() string { return p.endpoint }

// Class returns the actor class name.
func (p *Proxy) Class() string { return p.class }

// Invoke forwards a method call asynchronously and immediately returns a
// pending Placeholder for its result. Pass Placeholder arguments through
// ph.Arg() so still-pending ones travel as Refs and the serving Host
// resolves them against their origins instead of through this process.
func (p *Proxy) Invoke(ctx context.Context, method string, args ...agent.Value) (*Placeholder, error) {
	if p.closed.Load() {
		return nil, fmt.Errorf("%w: proxy for actor %s closed", agent.ErrNotFound, p.actorID)
	}

	requestID, err := p.client.Invoke(ctx, p.actorID, method, args)
	if err != nil {
		return nil, err
	}
	return NewPlaceholder(agent.Ref{
		Host:      p.refHost,
		Port:      p.refPort,
		RequestID: requestID,
	}, p.tls), nil
}

// InvokeSync forwards a method call and blocks until its result is
// available. Prefer Invoke; this exists for callers that need the value
// right away and have nothing to pipeline.
func (p *Proxy) InvokeSync(ctx context.Context, method string, args ...agent.Value) (agent.Value, error) {
	if p.closed.Load() {
		return agent.Null(), fmt.Errorf("%w: proxy for actor %s closed", agent.ErrNotFound, p.actorID)
	}
	return p.client.InvokeSync(ctx, p.actorID, method, args)
}

// Close destroys the remote actor. For an embedded Host it also drops this
// Proxy's descriptor reference; the last reference tears the Host process
// down.
func (p *Proxy) Close(ctx context.Context) error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	err := p.client.Destroy(ctx, p.actorID)

	if p.desc != nil {
		releaseEmbedded(p.desc, p.grace)
	}
	return err
}

// The embedded Host is shared: the first embedded ToDistributed spawns it,
// later ones reuse it, and the descriptor's reference count decides when
// it is torn down.
var (
	embeddedMu   sync.Mutex
	embeddedDesc *launch.ServerDescriptor
)

func acquireEmbedded(ctx context.Context, opts launch.Options) (*launch.ServerDescriptor, error) {
	embeddedMu.Lock()
	defer embeddedMu.Unlock()

	if embeddedDesc != nil {
		embeddedDesc.Retain()
		return embeddedDesc, nil
	}

	opts.Mode = launch.EmbeddedSubprocess
	desc, err := launch.Launch(ctx, opts)
	if err != nil {
		return nil, err
	}
	embeddedDesc = desc
	return desc, nil
}

func releaseEmbedded(desc *launch.ServerDescriptor, grace time.Duration) {
	embeddedMu.Lock()
	defer embeddedMu.Unlock()

	down, err := desc.Release(grace)
	if err != nil {
		log.Printf("[Launcher] embedded host shutdown: %v", err)
	}
	if down && embeddedDesc == desc {
		embeddedDesc = nil
	}
}

func splitEndpoint(endpoint string) (string, int, error) {
	hostname, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return "", 0, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid endpoint port %q: %w", portStr, err)
	}
	return hostname, port, nil
}
