package proto

import (
	"context"

	"google.golang.org/grpc"

	"github.com/aixgo-dev/axon/agent"
)

// Hand-maintained request/response types and service descriptors for the
// Host RPC surface. The wire encoding is the JSON codec in codec.go, so no
// generated protobuf code is required; the message shapes below are the
// contract.

// Call status values reported by FetchResult.
const (
	StatusPending = "pending"
	StatusDone    = "done"
	StatusError   = "error"
)

// CreateRequest asks a Host to instantiate a registered actor class.
type CreateRequest struct {
	Class string        `json:"class"`
	Args  []agent.Value `json:"args,omitempty"`
}

// CreateResponse carries the id of the new actor instance.
type CreateResponse struct {
	ActorID string `json:"actor_id"`
}

// InvokeRequest dispatches a method call against a live actor.
//
// Args may contain Ref values; the serving Host resolves each one against
// its own origin before the actor method runs. When Sync is false the Host
// answers immediately with a request id; when true it blocks the connection
// handler until the call is terminal and answers with the result inline.
// A sync caller whose deadline fires gets only the deadline error; the id
// never reached it, so the outcome cannot be fetched afterwards. Use the
// async form when the result must survive a caller-side timeout.
type InvokeRequest struct {
	ActorID string        `json:"actor_id"`
	Method  string        `json:"method"`
	Args    []agent.Value `json:"args,omitempty"`
	Sync    bool          `json:"sync,omitempty"`
}

// InvokeResponse carries either a request id (async) or the result (sync).
type InvokeResponse struct {
	RequestID string       `json:"request_id,omitempty"`
	Result    *agent.Value `json:"result,omitempty"`
}

// FetchResultRequest retrieves the outcome of a previously accepted call.
type FetchResultRequest struct {
	RequestID string `json:"request_id"`
}

// FetchResultResponse reports a terminal call outcome. The handler blocks
// while the call is still pending, so Status is done or error unless the
// caller's deadline fired first.
type FetchResultResponse struct {
	Status       string       `json:"status"`
	Result       *agent.Value `json:"result,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// DestroyRequest removes an actor instance from its Host.
type DestroyRequest struct {
	ActorID string `json:"actor_id"`
}

// DestroyResponse acknowledges a destroy.
type DestroyResponse struct{}

// PingRequest probes Host readiness.
type PingRequest struct{}

// PingResponse reports the serving state and the registered class list.
type PingResponse struct {
	Status  string   `json:"status"`
	Classes []string `json:"classes,omitempty"`
}

// Ping status values.
const (
	PingServing  = "serving"
	PingStopping = "stopping"
)

const serviceName = "axon.HostService"

// HostServiceClient is the client interface for the Host service.
type HostServiceClient interface {
	Create(ctx context.Context, in *CreateRequest, opts ...grpc.CallOption) (*CreateResponse, error)
	Invoke(ctx context.Context, in *InvokeRequest, opts ...grpc.CallOption) (*InvokeResponse, error)
	FetchResult(ctx context.Context, in *FetchResultRequest, opts ...grpc.CallOption) (*FetchResultResponse, error)
	Destroy(ctx context.Context, in *DestroyRequest, opts ...grpc.CallOption) (*DestroyResponse, error)
	Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error)
}

type hostServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewHostServiceClient creates a new HostServiceClient.
func NewHostServiceClient(cc grpc.ClientConnInterface) HostServiceClient {
	return &hostServiceClient{cc}
}

func (c *hostServiceClient) Create(ctx context.Context, in *CreateRequest, opts ...grpc.CallOption) (*CreateResponse, error) {
	out := new(CreateResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Create", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *hostServiceClient) Invoke(ctx context.Context, in *InvokeRequest, opts ...grpc.CallOption) (*InvokeResponse, error) {
	out := new(InvokeResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Invoke", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *hostServiceClient) FetchResult(ctx context.Context, in *FetchResultRequest, opts ...grpc.CallOption) (*FetchResultResponse, error) {
	out := new(FetchResultResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/FetchResult", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *hostServiceClient) Destroy(ctx context.Context, in *DestroyRequest, opts ...grpc.CallOption) (*DestroyResponse, error) {
	out := new(DestroyResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Destroy", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *hostServiceClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	out := new(PingResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Ping", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// HostServiceServer is the server interface for the Host service.
type HostServiceServer interface {
	Create(context.Context, *CreateRequest) (*CreateResponse, error)
	Invoke(context.Context, *InvokeRequest) (*InvokeResponse, error)
	FetchResult(context.Context, *FetchResultRequest) (*FetchResultResponse, error)
	Destroy(context.Context, *DestroyRequest) (*DestroyResponse, error)
	Ping(context.Context, *PingRequest) (*PingResponse, error)
}

// UnimplementedHostServiceServer provides default implementations.
type UnimplementedHostServiceServer struct{}

func (UnimplementedHostServiceServer) Create(context.Context, *CreateRequest) (*CreateResponse, error) {
	return nil, nil
}

func (UnimplementedHostServiceServer) Invoke(context.Context, *InvokeRequest) (*InvokeResponse, error) {
	return nil, nil
}

func (UnimplementedHostServiceServer) FetchResult(context.Context, *FetchResultRequest) (*FetchResultResponse, error) {
	return nil, nil
}

func (UnimplementedHostServiceServer) Destroy(context.Context, *DestroyRequest) (*DestroyResponse, error) {
	return nil, nil
}

func (UnimplementedHostServiceServer) Ping(context.Context, *PingRequest) (*PingResponse, error) {
	return nil, nil
}

func _HostService_Create_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CreateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HostServiceServer).Create(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceName + "/Create",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(HostServiceServer).Create(ctx, req.(*CreateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _HostService_Invoke_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(InvokeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HostServiceServer).Invoke(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceName + "/Invoke",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(HostServiceServer).Invoke(ctx, req.(*InvokeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _HostService_FetchResult_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(FetchResultRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HostServiceServer).FetchResult(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceName + "/FetchResult",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(HostServiceServer).FetchResult(ctx, req.(*FetchResultRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _HostService_Destroy_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(DestroyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HostServiceServer).Destroy(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceName + "/Destroy",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(HostServiceServer).Destroy(ctx, req.(*DestroyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _HostService_Ping_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PingRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HostServiceServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceName + "/Ping",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(HostServiceServer).Ping(ctx, req.(*PingRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterHostServiceServer registers the Host service with gRPC.
func RegisterHostServiceServer(s grpc.ServiceRegistrar, srv HostServiceServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*HostServiceServer)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "Create",
				Handler:    _HostService_Create_Handler,
			},
			{
				MethodName: "Invoke",
				Handler:    _HostService_Invoke_Handler,
			},
			{
				MethodName: "FetchResult",
				Handler:    _HostService_FetchResult_Handler,
			},
			{
				MethodName: "Destroy",
				Handler:    _HostService_Destroy_Handler,
			},
			{
				MethodName: "Ping",
				Handler:    _HostService_Ping_Handler,
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "host_service.json",
	}, srv)
}
