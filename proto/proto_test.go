package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/aixgo-dev/axon/agent"
)

func TestCodecPreservesRefArguments(t *testing.T) {
	// A Ref argument must cross the wire as its three-field form, never as
	// a resolved value; that is what makes promise pipelining possible.
	in := &InvokeRequest{
		ActorID: "actor-1",
		Method:  "wrap",
		Args: []agent.Value{
			agent.RefValue(agent.Ref{Host: "127.0.0.1", Port: 7001, RequestID: "req-9"}),
			agent.Blob([]byte("opaque payload")),
			agent.String("hi"),
		},
	}

	data, err := jsonCodec{}.Marshal(in)
	require.NoError(t, err)

	out := new(InvokeRequest)
	require.NoError(t, jsonCodec{}.Unmarshal(data, out))

	require.Len(t, out.Args, 3)
	ref, ok := out.Args[0].AsRef()
	require.True(t, ok)
	assert.Equal(t, "req-9", ref.RequestID)
	assert.Equal(t, "127.0.0.1:7001", ref.Endpoint())

	blob, ok := out.Args[1].AsBlob()
	require.True(t, ok)
	assert.Equal(t, "opaque payload", string(blob))
}

func TestStatusMappingRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"not found", agent.ErrNotFound, agent.ErrNotFound},
		{"overloaded", agent.ErrOverloaded, agent.ErrOverloaded},
		{"timeout", agent.ErrTimeout, agent.ErrTimeout},
		{"stopped maps to connection", agent.ErrHostStopped, agent.ErrConnection},
		{"actor failure maps to remote", agent.RemoteError("boom"), agent.ErrRemote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromStatus(ToStatus(tt.in))
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestFromStatusTransportFailures(t *testing.T) {
	assert.NoError(t, FromStatus(nil))
	assert.ErrorIs(t, FromStatus(status.Error(codes.Unavailable, "refused")), agent.ErrConnection)
	assert.ErrorIs(t, FromStatus(status.Error(codes.DeadlineExceeded, "late")), agent.ErrTimeout)
	assert.ErrorIs(t, FromStatus(status.Error(codes.Internal, "boom")), agent.ErrRemote)
}
