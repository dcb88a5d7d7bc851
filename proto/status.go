package proto

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/aixgo-dev/axon/agent"
)

// ToStatus converts a Host-side failure into a gRPC status error so the
// caller can recover the typed error with FromStatus.
func ToStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, agent.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, agent.ErrOverloaded):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, agent.ErrHostStopped):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, agent.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, agent.ErrConnection):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// FromStatus converts a gRPC call error back into the typed error surface.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", agent.ErrTimeout, err)
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %v", agent.ErrConnection, err)
	}
	switch st.Code() {
	case codes.OK:
		return nil
	case codes.NotFound:
		return fmt.Errorf("%w: %s", agent.ErrNotFound, st.Message())
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", agent.ErrOverloaded, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", agent.ErrTimeout, st.Message())
	case codes.Unavailable, codes.Canceled:
		return fmt.Errorf("%w: %s", agent.ErrConnection, st.Message())
	default:
		return agent.RemoteError(st.Message())
	}
}
