package proto

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/aixgo-dev/axon/agent"
)

// HostClient is a typed wrapper over a gRPC connection to one Host. It owns
// the connection and translates status codes back into the agent error
// surface. Methods are safe for concurrent use.
type HostClient struct {
	endpoint string
	conn     *grpc.ClientConn
	svc      HostServiceClient
}

// Dial connects to a Host endpoint. The connection is lazy; the first call
// (or a Ping) establishes it. tlsCfg may be nil for plaintext.
func Dial(endpoint string, tlsCfg *TLSConfig) (*HostClient, error) {
	dialOpts, err := DialOptions(tlsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build dial options: %w", err)
	}
	conn, err := grpc.NewClient(endpoint, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", agent.ErrConnection, endpoint, err)
	}
	return &HostClient{
		endpoint: endpoint,
		conn:     conn,
		svc:      NewHostServiceClient(conn),
	}, nil
}

// Endpoint returns the host:port this client talks to.
func (c *HostClient) Endpoint() string { return c.endpoint }

// Close releases the underlying connection.
func (c *HostClient) Close() error { return c.conn.Close() }

// Create instantiates an actor of the given class and returns its id.
func (c *HostClient) Create(ctx context.Context, class string, args []agent.Value) (string, error) {
	resp, err := c.svc.Create(ctx, &CreateRequest{Class: class, Args: args})
	if err != nil {
		return "", FromStatus(err)
	}
	return resp.ActorID, nil
}

// Invoke dispatches a call asynchronously and returns the request id
// without waiting for the method to complete.
func (c *HostClient) Invoke(ctx context.Context, actorID, method string, args []agent.Value) (string, error) {
	resp, err := c.svc.Invoke(ctx, &InvokeRequest{ActorID: actorID, Method: method, Args: args})
	if err != nil {
		return "", FromStatus(err)
	}
	return resp.RequestID, nil
}

// InvokeSync dispatches a call and blocks until its result is available.
//
// If ctx expires first the RPC is torn down client-side before any response
// can arrive, so the request id assigned by the Host is lost to this caller.
// Callers that want to time out and fetch the result later must use the
// async Invoke and FetchResult pair instead.
func (c *HostClient) InvokeSync(ctx context.Context, actorID, method string, args []agent.Value) (agent.Value, error) {
	resp, err := c.svc.Invoke(ctx, &InvokeRequest{ActorID: actorID, Method: method, Args: args, Sync: true})
	if err != nil {
		return agent.Null(), FromStatus(err)
	}
	if resp.Result == nil {
		return agent.Null(), nil
	}
	return *resp.Result, nil
}

// FetchResult blocks until the referenced call is terminal (or ctx expires)
// and returns its outcome. A call that ended in ERROR comes back as an
// agent.ErrRemote-wrapped error.
func (c *HostClient) FetchResult(ctx context.Context, requestID string) (agent.Value, error) {
	resp, err := c.svc.FetchResult(ctx, &FetchResultRequest{RequestID: requestID})
	if err != nil {
		return agent.Null(), FromStatus(err)
	}
	switch resp.Status {
	case StatusDone:
		if resp.Result == nil {
			return agent.Null(), nil
		}
		return *resp.Result, nil
	case StatusError:
		return agent.Null(), agent.RemoteError(resp.ErrorMessage)
	default:
		return agent.Null(), agent.RemoteError(fmt.Sprintf("unexpected call status %q", resp.Status))
	}
}

// Destroy removes an actor instance from the Host.
func (c *HostClient) Destroy(ctx context.Context, actorID string) error {
	_, err := c.svc.Destroy(ctx, &DestroyRequest{ActorID: actorID})
	return FromStatus(err)
}

// Ping probes Host readiness.
func (c *HostClient) Ping(ctx context.Context) (*PingResponse, error) {
	resp, err := c.svc.Ping(ctx, &PingRequest{})
	if err != nil {
		return nil, FromStatus(err)
	}
	return resp, nil
}
