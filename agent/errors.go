package agent

import (
	"errors"
	"fmt"
)

// The call failure surface. Callers distinguish "try again" (ErrConnection,
// ErrTimeout, ErrOverloaded) from "this call will never succeed" (ErrNotFound)
// from "the remote logic itself failed" (ErrRemote) with errors.Is.
var (
	// ErrConnection is returned when an endpoint is unreachable or the
	// connection was reset.
	ErrConnection = errors.New("connection failed")

	// ErrTimeout is returned when no response arrived within the caller's
	// timeout. The remote unit of work is NOT cancelled; its result can
	// still be fetched later.
	ErrTimeout = errors.New("call timed out")

	// ErrNotFound is returned for an unknown actor id, class name, or
	// request id.
	ErrNotFound = errors.New("not found")

	// ErrOverloaded is returned when the Host's worker queue is full.
	ErrOverloaded = errors.New("host overloaded")

	// ErrRemote wraps a failure raised by the remote actor's own method.
	ErrRemote = errors.New("remote call failed")

	// ErrHostStopped is returned for create/invoke calls arriving after
	// shutdown began.
	ErrHostStopped = errors.New("host stopped")
)

// RemoteError wraps msg, the error text reported by a remote actor method,
// so it matches ErrRemote.
func RemoteError(msg string) error {
	return fmt.Errorf("%w: %s", ErrRemote, msg)
}

// Retryable reports whether err is a transient failure that a caller may
// reasonably retry. The core itself never retries: idempotency of a retried
// invoke cannot be assumed in general.
func Retryable(err error) bool {
	return errors.Is(err, ErrConnection) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrOverloaded)
}
