// Package axon is a distributed actor execution layer: it turns local
// actor objects into proxies that run inside separate processes while the
// rest of the program keeps calling them as if they were local. Remote
// calls return Placeholders immediately; chaining them pipelines the
// resolution between the involved Hosts instead of round-tripping through
// the caller.
//
// A process becomes a Host with Serve (in-process) or via the launch
// package (subprocess or standalone). ToDistributed creates a remote actor
// and returns its Proxy.
package axon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aixgo-dev/axon/agent"
	"github.com/aixgo-dev/axon/internal/host"
	"github.com/aixgo-dev/axon/launch"
	"github.com/aixgo-dev/axon/proto"
)

// ServeOption configures a Host started with Serve.
type ServeOption = host.Option

// Host tuning options, forwarded to Serve.
var (
	WithPoolSize      = host.WithPoolSize
	WithQueueSize     = host.WithQueueSize
	WithRetention     = host.WithRetention
	WithAdvertiseHost = host.WithAdvertiseHost
	WithHostTLS       = host.WithTLS
	WithRateLimit     = host.WithRateLimit
	WithMetrics       = host.WithMetrics
)

// Stats is a point-in-time snapshot of a running Host.
type Stats = host.Stats

// Server is a running in-process Host.
type Server struct {
	h *host.Host
}

// Serve starts a Host in this process on addr (port 0 for ephemeral),
// serving the classes in registry. The registry is the complete allow-list
// of what remote parties may instantiate.
func Serve(ctx context.Context, addr string, registry *agent.Registry, opts ...ServeOption) (*Server, error) {
	h := host.New(registry, opts...)
	if err := h.Start(ctx, addr); err != nil {
		return nil, err
	}
	return &Server{h: h}, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string { return s.h.Addr() }

// Endpoint returns the advertised host:port embedded in Refs this Host mints.
func (s *Server) Endpoint() string { return s.h.Endpoint() }

// Stats returns a snapshot of Host state.
func (s *Server) Stats() Stats { return s.h.Stats() }

// Fetches reports how many resolution requests have been served for a
// request id, or -1 if the id is unknown.
func (s *Server) Fetches(requestID string) int { return s.h.Fetches(requestID) }

// Stop shuts the Host down gracefully: new create/invoke calls are
// rejected immediately; in-flight calls get until ctx's deadline to finish.
func (s *Server) Stop(ctx context.Context) error { return s.h.Stop(ctx) }

// DistOption configures ToDistributed.
type DistOption func(*distConfig)

type distConfig struct {
	endpoint string
	tls      *proto.TLSConfig
	launch   launch.Options
	grace    time.Duration
}

// WithEndpoint targets an existing reachable Host instead of spawning an
// embedded one.
func WithEndpoint(endpoint string) DistOption {
	return func(c *distConfig) { c.endpoint = endpoint }
}

// WithDialTLS configures transport security for the Proxy's connections.
func WithDialTLS(cfg *proto.TLSConfig) DistOption {
	return func(c *distConfig) { c.tls = cfg }
}

// WithLaunchOptions customizes how the embedded Host subprocess is spawned.
// Ignored when WithEndpoint is given.
func WithLaunchOptions(opts launch.Options) DistOption {
	return func(c *distConfig) { c.launch = opts }
}

// WithShutdownGrace sets how long an embedded Host gets to drain when the
// last Proxy referencing it closes. Default: 10 seconds.
func WithShutdownGrace(d time.Duration) DistOption {
	return func(c *distConfig) { c.grace = d }
}

// ToDistributed creates an actor of the given class on a Host and returns
// a Proxy for it. With WithEndpoint the actor is created on that existing
// Host; otherwise a Host subprocess is spawned on demand (the embedding
// program must call launch.MaybeRunHost early in main) and shared by every
// embedded Proxy of this process.
func ToDistributed(ctx context.Context, class string, args []agent.Value, opts ...DistOption) (*Proxy, error) {
	cfg := distConfig{grace: 10 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.launch.TLS = cfg.tls

	var desc *launch.ServerDescriptor
	endpoint := cfg.endpoint
	if endpoint == "" {
		d, err := acquireEmbedded(ctx, cfg.launch)
		if err != nil {
			return nil, err
		}
		desc = d
		endpoint = d.Endpoint
	}

	refHost, refPort, err := splitEndpoint(endpoint)
	if err != nil {
		if desc != nil {
			releaseEmbedded(desc, cfg.grace)
		}
		return nil, err
	}

	client, err := clientFor(endpoint, cfg.tls)
	if err != nil {
		if desc != nil {
			releaseEmbedded(desc, cfg.grace)
		}
		return nil, err
	}

	actorID, err := client.Create(ctx, class, args)
	if err != nil {
		if desc != nil {
			releaseEmbedded(desc, cfg.grace)
		}
		return nil, fmt.Errorf("failed to create %s actor: %w", class, err)
	}

	return &Proxy{
		class:    class,
		actorID:  actorID,
		endpoint: endpoint,
		refHost:  refHost,
		refPort:  refPort,
		client:   client,
		tls:      cfg.tls,
		desc:     desc,
		grace:    cfg.grace,
	}, nil
}

// Process-wide cache of one connection per Host endpoint, shared by
// Proxies and Placeholder resolution.
var (
	clientsMu sync.Mutex
	clients   = make(map[string]*proto.HostClient)
)

func clientFor(endpoint string, tlsCfg *proto.TLSConfig) (*proto.HostClient, error) {
	clientsMu.Lock()
	defer clientsMu.Unlock()

	if c, ok := clients[endpoint]; ok {
		return c, nil
	}
	c, err := proto.Dial(endpoint, tlsCfg)
	if err != nil {
		return nil, err
	}
	clients[endpoint] = c
	return c, nil
}

// CloseConnections closes every cached Host connection. Call it on process
// shutdown; Placeholders forced afterwards reconnect on demand.
func CloseConnections() {
	clientsMu.Lock()
	defer clientsMu.Unlock()
	for endpoint, c := range clients {
		_ = c.Close()
		delete(clients, endpoint)
	}
}
