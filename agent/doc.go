// Package agent provides the public types for building actors with Axon.
//
// An actor is a stateful unit whose calls are serialized relative to each
// other but that runs concurrently with other actors. Implement the Actor
// interface and register a constructor for it in a Registry to make it
// instantiable on a Host:
//
//	type Echo struct{}
//
//	func (e *Echo) Invoke(ctx context.Context, method string, args []agent.Value) (agent.Value, error) {
//	    switch method {
//	    case "reflect":
//	        return args[0], nil
//	    }
//	    return agent.Null(), fmt.Errorf("unknown method %q", method)
//	}
//
//	reg := agent.NewRegistry(map[string]agent.Constructor{
//	    "echo": func(args []agent.Value) (agent.Actor, error) { return &Echo{}, nil },
//	})
//
// # Values
//
// Everything crossing an actor boundary is a Value: a primitive, an opaque
// payload blob, or a Ref pointing at a result that a Host is still computing.
// The core never introspects blob contents; the agent-logic layer owns the
// message schema.
//
// See the root axon package for the Host, Proxy, and Placeholder machinery
// that moves Values between processes.
package agent
