package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aixgo-dev/axon/agent"
)

// echoActor is the built-in demo class: reflect returns its argument, wrap
// brackets it, sleep stalls for its argument in milliseconds. Useful for
// smoke-testing a deployment and for pipelining demos.
type echoActor struct{}

func (echoActor) Invoke(ctx context.Context, method string, args []agent.Value) (agent.Value, error) {
	switch method {
	case "reflect":
		if len(args) == 0 {
			return agent.Null(), nil
		}
		return args[0], nil
	case "wrap":
		s, _ := args[0].AsString()
		return agent.String("<" + s + ">"), nil
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
