package host

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc/peer"

	"github.com/aixgo-dev/axon/agent"
	obsmetrics "github.com/aixgo-dev/axon/pkg/observability"
	"github.com/aixgo-dev/axon/proto"
)

// hostService adapts a Host to the gRPC service surface. Domain errors are
// mapped to status codes here, at the boundary, so Host internals deal only
// in sentinel errors.
type hostService struct {
	proto.UnimplementedHostServiceServer
	host *Host
}

func (s *hostService) Create(ctx context.Context, req *proto.CreateRequest) (*proto.CreateResponse, error) {
	start := time.Now()

	if err := s.admit(ctx); err != nil {
		s.record("Create", "rejected", start)
		return nil, proto.ToStatus(err)
	}

	actorID, err := s.host.createActor(ctx, req.Class, req.Args)
	if err != nil {
		s.record("Create", "error", start)
		return nil, proto.ToStatus(err)
	}
	s.record("Create", "ok", start)
	return &proto.CreateResponse{ActorID: actorID}, nil
}

func (s *hostService) Invoke(ctx context.Context, req *proto.InvokeRequest) (*proto.InvokeResponse, error) {
	start := time.Now()

	if err := s.admit(ctx); err != nil {
		s.record("Invoke", "rejected", start)
		return nil, proto.ToStatus(err)
	}

	requestID, result, err := s.host.invoke(ctx, req.ActorID, req.Method, req.Args, req.Sync)
	if err != nil {
		s.record("Invoke", "error", start)
		return nil, proto.ToStatus(err)
	}
	s.record("Invoke", "ok", start)
	if req.Sync {
		return &proto.InvokeResponse{Result: result}, nil
	}
	return &proto.InvokeResponse{RequestID: requestID}, nil
}

func (s *hostService) FetchResult(ctx context.Context, req *proto.FetchResultRequest) (*proto.FetchResultResponse, error) {
	start := time.Now()

	resp, err := s.host.fetchResult(ctx, req.RequestID)
	if err != nil {
		s.record("FetchResult", "error", start)
		return nil, proto.ToStatus(err)
	}
	s.record("FetchResult", "ok", start)
	return resp, nil
}

func (s *hostService) Destroy(ctx context.Context, req *proto.DestroyRequest) (*proto.DestroyResponse, error) {
	start := time.Now()

	if err := s.host.destroyActor(req.ActorID); err != nil {
		s.record("Destroy", "error", start)
		return nil, proto.ToStatus(err)
	}
	s.record("Destroy", "ok", start)
	return &proto.DestroyResponse{}, nil
}

func (s *hostService) Ping(ctx context.Context, _ *proto.PingRequest) (*proto.PingResponse, error) {
	status := proto.PingServing
	if s.host.stopping.Load() {
		status = proto.PingStopping
	}
	return &proto.PingResponse{
		Status:  status,
		Classes: s.host.registry.Classes(),
	}, nil
}

// admit applies the optional rate limit, keyed by the calling peer address.
func (s *hostService) admit(ctx context.Context) error {
	if s.host.limiter == nil {
		return nil
	}
	peerID := "unknown"
	if p, ok := peer.FromContext(ctx); ok {
		peerID = p.Addr.String()
	}
	if !s.host.limiter.Allow(peerID) {
		return fmt.Errorf("%w: rate limit exceeded for %s", agent.ErrOverloaded, peerID)
	}
	return nil
}

func (s *hostService) record(method, status string, start time.Time) {
	if s.host.cfg.EnableMetrics {
		obsmetrics.RecordRPCRequest(method, status, time.Since(start))
	}
}
