// Package host implements the server side of the distributed agent
// execution layer: a registry of instantiable actor classes, a table of
// live instances, and a bounded worker pool that executes calls with
// per-actor serialization.
package host

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/aixgo-dev/axon/agent"
	"github.com/aixgo-dev/axon/internal/observability"
	obsmetrics "github.com/aixgo-dev/axon/pkg/observability"
	"github.com/aixgo-dev/axon/pkg/security"
	"github.com/aixgo-dev/axon/proto"
)

// Config contains tunables for a Host.
type Config struct {
	// PoolSize caps the number of concurrently executing units of work.
	// Default: 8.
	PoolSize int

	// QueueSize bounds the number of accepted-but-unfinished units across
	// all actors. A full queue fails new invokes fast with ErrOverloaded.
	// Default: 64.
	QueueSize int

	// Retention is how long terminal pending calls stay fetchable.
	// Default: 5 minutes.
	Retention time.Duration

	// JanitorInterval is how often expired pending calls are swept.
	// Default: 30 seconds.
	JanitorInterval time.Duration

	// AdvertiseHost overrides the hostname embedded in Refs minted by this
	// Host. Required when the listen address is not reachable as-is by
	// other Hosts (e.g. when bound to 0.0.0.0 behind a known name).
	AdvertiseHost string

	// TLS configures transport security for the listener and for outbound
	// resolution calls. Nil means plaintext.
	TLS *proto.TLSConfig

	// EnableMetrics turns on Prometheus metric updates. Default: true.
	EnableMetrics bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		PoolSize:        8,
		QueueSize:       64,
		Retention:       5 * time.Minute,
		JanitorInterval: 30 * time.Second,
		EnableMetrics:   true,
	}
}

// Option is a functional option for configuring a Host.
type Option func(*Host)

// WithPoolSize sets the worker pool size.
func WithPoolSize(n int) Option {
	return func(h *Host) { h.cfg.PoolSize = n }
}

// WithQueueSize sets the bound on queued units of work.
func WithQueueSize(n int) Option {
	return func(h *Host) { h.cfg.QueueSize = n }
}

// WithRetention sets how long terminal results stay fetchable.
func WithRetention(d time.Duration) Option {
	return func(h *Host) { h.cfg.Retention = d }
}

// WithJanitorInterval sets the sweep cadence for expired pending calls.
func WithJanitorInterval(d time.Duration) Option {
	return func(h *Host) { h.cfg.JanitorInterval = d }
}

// WithAdvertiseHost sets the hostname embedded in Refs minted by this Host.
func WithAdvertiseHost(hostname string) Option {
	return func(h *Host) { h.cfg.AdvertiseHost = hostname }
}

// WithTLS configures transport security.
func WithTLS(cfg *proto.TLSConfig) Option {
	return func(h *Host) { h.cfg.TLS = cfg }
}

// WithRateLimit bounds inbound create/invoke calls per second, globally
// and per calling peer. Rejected calls fail with ErrOverloaded.
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(h *Host) { h.limiter = security.NewRateLimiter(requestsPerSecond, burst) }
}

// WithMetrics enables or disables Prometheus metric updates.
func WithMetrics(enabled bool) Option {
	return func(h *Host) { h.cfg.EnableMetrics = enabled }
}

// Host owns actor instances and serves RPC calls against them.
type Host struct {
	registry *agent.Registry
	cfg      *Config
	actors   *actorTable
	pending  *pendingTable
	pool     *workerPool
	limiter  *security.RateLimiter

	// Cached connections to origin Hosts, keyed by endpoint, used to
	// resolve Ref arguments directly against wherever they came from.
	clients map[string]*proto.HostClient
	cmu     sync.Mutex

	server   *grpc.Server
	listener net.Listener

	advertiseHost string
	port          int

	mu       sync.Mutex
	started  bool
	stopping atomic.Bool
	inflight sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Host serving the classes in registry. The registry is the
// complete allow-list: nothing else can ever be instantiated on this Host.
func New(registry *agent.Registry, opts ...Option) *Host {
	h := &Host{
		registry: registry,
		cfg:      DefaultConfig(),
		actors:   newActorTable(),
		clients:  make(map[string]*proto.HostClient),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.pending = newPendingTable(h.cfg.Retention)
	return h
}

// Stats is a point-in-time snapshot of Host state.
type Stats struct {
	LiveActors   int
	QueuedUnits  int
	PendingCalls int
}

// Start binds the listener and begins serving. It does not block; use
// Stop for shutdown. listenAddr may use port 0 for an ephemeral port;
// Addr reports the bound address.
func (h *Host) Start(ctx context.Context, listenAddr string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return errors.New("host already started")
	}

	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", listenAddr, err)
	}

	serverOpts, err := proto.ServerOptions(h.cfg.TLS)
	if err != nil {
		_ = lis.Close()
		return fmt.Errorf("failed to configure server: %w", err)
	}

	tcpAddr := lis.Addr().(*net.TCPAddr)
	h.listener = lis
	h.port = tcpAddr.Port
	h.advertiseHost = h.cfg.AdvertiseHost
	if h.advertiseHost == "" {
		if ip := tcpAddr.IP; ip != nil && !ip.IsUnspecified() {
			h.advertiseHost = ip.String()
		} else {
			h.advertiseHost = "127.0.0.1"
		}
	}

	h.ctx, h.cancel = context.WithCancel(context.WithoutCancel(ctx))
	h.pool = newWorkerPool(h.cfg.PoolSize, h.cfg.QueueSize, h.execute)

	h.server = grpc.NewServer(serverOpts...)
	proto.RegisterHostServiceServer(h.server, &hostService{host: h})

	go func() {
		log.Printf("[Host] serving on %s (classes: %v)", lis.Addr(), h.registry.Classes())
		if err := h.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Printf("[Host] server error: %v", err)
		}
	}()
	go h.janitor()

	h.started = true
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (h *Host) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// Endpoint returns the advertised host:port other parties should use to
// resolve Refs minted by this Host.
func (h *Host) Endpoint() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return net.JoinHostPort(h.advertiseHost, strconv.Itoa(h.port))
}

// Stats returns a snapshot of Host state.
func (h *Host) Stats() Stats {
	s := Stats{
		LiveActors:   h.actors.len(),
		PendingCalls: h.pending.len(),
	}
	if h.pool != nil {
		s.QueuedUnits = h.pool.queuedUnits()
	}
	return s
}

// Fetches reports how many resolution requests have been served for the
// given request id. Returns -1 for unknown ids.
func (h *Host) Fetches(requestID string) int {
	p, ok := h.pending.get(requestID)
	if !ok {
		return -1
	}
	return p.fetchCount()
}

// Stop gracefully shuts the Host down: new create/invoke calls are
// rejected immediately, in-flight calls get until ctx's deadline to reach
// a terminal state, then the listener closes. In the ungraceful case
// still-running units are abandoned mid-flight.
func (h *Host) Stop(ctx context.Context) error {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()

	h.stopping.Store(true)

	drained := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(drained)
	}()

	var graceful bool
	select {
	case <-drained:
		graceful = true
	case <-ctx.Done():
	}

	if graceful {
		h.server.GracefulStop()
	} else {
		log.Printf("[Host] grace period expired with calls still in flight; stopping hard")
		h.server.Stop()
	}

	h.cancel()
	h.pool.close()

	h.cmu.Lock()
	for _, c := range h.clients {
		_ = c.Close()
	}
	h.clients = make(map[string]*proto.HostClient)
	h.cmu.Unlock()

	h.mu.Lock()
	h.started = false
	h.mu.Unlock()

	if !graceful {
		return ctx.Err()
	}
	return nil
}

// createActor instantiates a registered class and returns the new actor id.
// Ref arguments are resolved first so constructors see concrete values.
func (h *Host) createActor(ctx context.Context, class string, args []agent.Value) (string, error) {
	if h.stopping.Load() {
		return "", agent.ErrHostStopped
	}

	args, err := h.resolveArgs(ctx, args)
	if err != nil {
		return "", err
	}

	impl, err := h.registry.New(class, args)
	if err != nil {
		return "", err
	}

	rec := &actorRecord{
		id:    uuid.New().String(),
		class: class,
		impl:  impl,
	}
	h.actors.add(rec)
	h.updateGauges()
	return rec.id, nil
}

// invoke accepts a unit of work for an actor. Async calls return the
// request id as soon as the unit is queued; sync calls block the
// connection handler (never a pool worker) until the outcome is terminal.
func (h *Host) invoke(ctx context.Context, actorID, method string, args []agent.Value, syncCall bool) (string, *agent.Value, error) {
	if h.stopping.Load() {
		return "", nil, agent.ErrHostStopped
	}

	rec, ok := h.actors.get(actorID)
	if !ok {
		return "", nil, fmt.Errorf("%w: actor %s", agent.ErrNotFound, actorID)
	}

	p := h.pending.create()
	h.inflight.Add(1)

	if err := h.pool.submit(rec, &task{pending: p, method: method, args: args}); err != nil {
		h.pending.remove(p.id)
		h.inflight.Done()
		if h.cfg.EnableMetrics && errors.Is(err, agent.ErrOverloaded) {
			obsmetrics.RecordOverloadRejection()
		}
		return "", nil, err
	}
	h.updateGauges()

	if !syncCall {
		return p.id, nil, nil
	}

	if err := p.wait(ctx); err != nil {
		// The unit keeps running; the outcome stays fetchable by id.
		return p.id, nil, err
	}
	status, result, callErr := p.snapshot()
	if status == proto.StatusError {
		return p.id, nil, callErr
	}
	return p.id, &result, nil
}

// fetchResult blocks until the referenced call is terminal (or ctx
// expires) and reports the outcome.
func (h *Host) fetchResult(ctx context.Context, requestID string) (*proto.FetchResultResponse, error) {
	p, ok := h.pending.get(requestID)
	if !ok {
		return nil, fmt.Errorf("%w: request %s", agent.ErrNotFound, requestID)
	}
	p.addFetch()

	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	status, result, callErr := p.snapshot()
	resp := &proto.FetchResultResponse{Status: status}
	if status == proto.StatusError {
		resp.ErrorMessage = callErr.Error()
	} else {
		resp.Result = &result
	}
	return resp, nil
}

// destroyActor removes an actor. Queued calls against it fail with
// ErrNotFound when a worker reaches them; an executing call finishes.
func (h *Host) destroyActor(actorID string) error {
	if !h.actors.remove(actorID) {
		return fmt.Errorf("%w: actor %s", agent.ErrNotFound, actorID)
	}
	h.updateGauges()
	return nil
}

// execute runs one unit of work on a pool worker: resolve any Ref
// arguments against their origins, then dispatch to the actor method.
func (h *Host) execute(rec *actorRecord, t *task) {
	defer h.inflight.Done()
	defer h.updateGauges()

	rec.mu.Lock()
	destroyed := rec.destroyed
	rec.mu.Unlock()
	if destroyed {
		t.pending.fail(fmt.Errorf("%w: actor %s destroyed", agent.ErrNotFound, rec.id))
		return
	}

	ctx, span := observability.StartSpan(h.ctx, "host.invoke",
		trace.WithAttributes(
			attribute.String("actor.id", rec.id),
			attribute.String("actor.class", rec.class),
			attribute.String("call.method", t.method),
			attribute.String("call.request_id", t.pending.id),
		),
	)
	defer span.End()

	args, err := h.resolveArgs(ctx, t.args)
	if err != nil {
		// Argument resolution failed: the whole call fails with that
		// error and the actor is never touched.
		span.RecordError(err)
		t.pending.fail(err)
		return
	}

	start := time.Now()
	result, err := safeInvoke(ctx, rec.impl, t.method, args)
	duration := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)

		var corrupted *agent.Corrupted
		if errors.As(err, &corrupted) {
			log.Printf("[Host] actor %s (%s) corrupted, destroying: %v", rec.id, rec.class, err)
			_ = h.destroyActor(rec.id)
		}
		t.pending.fail(err)
	} else {
		t.pending.complete(result)
	}

	span.SetAttributes(
		attribute.Int64("execution.duration_ms", duration.Milliseconds()),
		attribute.Bool("execution.success", err == nil),
	)
	if h.cfg.EnableMetrics {
		obsmetrics.RecordActorCall(rec.class, status, duration)
	}
}

// safeInvoke dispatches to the actor, converting a panic in the method
// body into an error so a misbehaving actor cannot take a worker down.
func safeInvoke(ctx context.Context, a agent.Actor, method string, args []agent.Value) (result agent.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("method %s panicked: %v", method, r)
		}
	}()
	return a.Invoke(ctx, method, args)
}

// resolveArgs replaces every Ref argument with its concrete value, fetched
// from the Ref's own origin Host. Resolutions run concurrently; the first
// failure fails them all.
func (h *Host) resolveArgs(ctx context.Context, args []agent.Value) ([]agent.Value, error) {
	hasRefs := false
	for _, v := range args {
		if v.IsRef() {
			hasRefs = true
			break
		}
	}
	if !hasRefs {
		return args, nil
	}

	resolved := make([]agent.Value, len(args))
	copy(resolved, args)

	g, gctx := errgroup.WithContext(ctx)
	for i, v := range args {
		ref, ok := v.AsRef()
		if !ok {
			continue
		}
		g.Go(func() error {
			val, err := h.resolveRef(gctx, ref)
			if err != nil {
				return fmt.Errorf("resolve argument %d (%s): %w", i, ref, err)
			}
			resolved[i] = val
			if h.cfg.EnableMetrics {
				obsmetrics.RecordPlaceholderResolution()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return resolved, nil
}

// resolveRef fetches one Ref's value. Refs minted by this Host short-circuit
// to the local pending table; everything else goes over the wire to the
// origin, never back through the caller that passed the Ref along.
func (h *Host) resolveRef(ctx context.Context, ref agent.Ref) (agent.Value, error) {
	if ref.Endpoint() == h.Endpoint() {
		resp, err := h.fetchResult(ctx, ref.RequestID)
		if err != nil {
			return agent.Null(), err
		}
		if resp.Status == proto.StatusError {
			return agent.Null(), agent.RemoteError(resp.ErrorMessage)
		}
		if resp.Result == nil {
			return agent.Null(), nil
		}
		return *resp.Result, nil
	}

	client, err := h.clientFor(ref.Endpoint())
	if err != nil {
		return agent.Null(), err
	}
	return client.FetchResult(ctx, ref.RequestID)
}

func (h *Host) clientFor(endpoint string) (*proto.HostClient, error) {
	h.cmu.Lock()
	defer h.cmu.Unlock()

	if c, ok := h.clients[endpoint]; ok {
		return c, nil
	}
	c, err := proto.Dial(endpoint, h.cfg.TLS)
	if err != nil {
		return nil, err
	}
	h.clients[endpoint] = c
	return c, nil
}

func (h *Host) janitor() {
	ticker := time.NewTicker(h.cfg.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			if n := h.pending.sweep(time.Now()); n > 0 {
				log.Printf("[Host] swept %d expired pending calls", n)
			}
			h.updateGauges()
		}
	}
}

func (h *Host) updateGauges() {
	if !h.cfg.EnableMetrics || h.pool == nil {
		return
	}
	obsmetrics.SetLiveActors(h.actors.len())
	obsmetrics.SetQueuedUnits(h.pool.queuedUnits())
	obsmetrics.SetPendingCalls(h.pending.len())
}
