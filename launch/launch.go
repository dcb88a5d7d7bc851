// Package launch starts and stops Host processes. A Host runs either as a
// subprocess owned by the launching program (re-exec convention, see
// MaybeRunHost) or as a standalone process someone else manages, in which
// case Launch only verifies reachability.
package launch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aixgo-dev/axon/agent"
	"github.com/aixgo-dev/axon/internal/host"
	"github.com/aixgo-dev/axon/proto"
)

// Mode says who owns the Host process.
type Mode string

const (
	// EmbeddedSubprocess: the Host runs in a child process spawned and
	// owned by the launching program.
	EmbeddedSubprocess Mode = "embedded_subprocess"

	// Standalone: the Host is an independently managed process; the
	// launcher only probes it.
	Standalone Mode = "standalone"
)

// Environment variables of the re-exec convention. A program that wants to
// act as an embedded Host parent must call MaybeRunHost early in main; the
// spawned child sees EnvHostMode set and serves instead of running main's
// normal logic.
const (
	EnvHostMode  = "AXON_HOST_MODE"
	EnvListen    = "AXON_LISTEN"
	EnvPoolSize  = "AXON_POOL_SIZE"
	EnvQueueSize = "AXON_QUEUE_SIZE"
)

// readyPrefix starts the line an embedded child prints on stdout once its
// listener is bound. The rest of the line is the bound address.
const readyPrefix = "AXON_READY "

// Options configures Launch.
type Options struct {
	Mode Mode

	// Endpoint is the host:port to probe in Standalone mode, or the
	// listen address handed to the child in EmbeddedSubprocess mode
	// (default 127.0.0.1:0).
	Endpoint string

	// Binary is the executable to spawn in EmbeddedSubprocess mode.
	// Default: os.Args[0], the re-exec convention.
	Binary string

	// Args are extra arguments for the spawned binary.
	Args []string

	// Env entries appended to the child's environment.
	Env []string

	// PoolSize and QueueSize are forwarded to the child Host when > 0.
	PoolSize  int
	QueueSize int

	// TLS configures the readiness probe connection. Nil means plaintext.
	TLS *proto.TLSConfig

	// ReadyTimeout bounds how long Launch waits for the Host to become
	// reachable. Default: 15 seconds.
	ReadyTimeout time.Duration

	// ProbeInterval is the delay between readiness probes. Default: 100ms.
	ProbeInterval time.Duration
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.Binary == "" {
		out.Binary = os.Args[0]
	}
	if out.Mode == EmbeddedSubprocess && out.Endpoint == "" {
		out.Endpoint = "127.0.0.1:0"
	}
	if out.ReadyTimeout <= 0 {
		out.ReadyTimeout = 15 * time.Second
	}
	if out.ProbeInterval <= 0 {
		out.ProbeInterval = 100 * time.Millisecond
	}
	return out
}

// ServerDescriptor is a handle on a launched (or verified) Host. It owns
// the underlying OS process in EmbeddedSubprocess mode only.
type ServerDescriptor struct {
	Endpoint string
	Mode     Mode

	cmd     *exec.Cmd
	exited  chan struct{}
	exitErr error

	mu   sync.Mutex
	refs int
	down bool
}

// Launch starts or verifies a Host per opts and returns its descriptor
// with one reference held. In EmbeddedSubprocess mode it spawns the child,
// waits for its ready line, then confirms with a Ping probe; in Standalone
// mode it only probes opts.Endpoint.
func Launch(ctx context.Context, opts Options) (*ServerDescriptor, error) {
	o := opts.withDefaults()

	switch o.Mode {
	case Standalone:
		if o.Endpoint == "" {
			return nil, errors.New("standalone launch requires an endpoint")
		}
		if err := probe(ctx, o.Endpoint, o.TLS, o.ReadyTimeout, o.ProbeInterval); err != nil {
			return nil, err
		}
		return &ServerDescriptor{Endpoint: o.Endpoint, Mode: Standalone, refs: 1}, nil

	case EmbeddedSubprocess:
		return launchEmbedded(ctx, o)

	default:
		return nil, fmt.Errorf("unknown launch mode %q", o.Mode)
	}
}

func launchEmbedded(ctx context.Context, o Options) (*ServerDescriptor, error) {
	cmd := exec.Command(o.Binary, o.Args...)
	cmd.Env = append(os.Environ(), o.Env...)
	cmd.Env = append(cmd.Env,
		EnvHostMode+"=1",
		EnvListen+"="+o.Endpoint,
	)
	if o.PoolSize > 0 {
		cmd.Env = append(cmd.Env, EnvPoolSize+"="+strconv.Itoa(o.PoolSize))
	}
	if o.QueueSize > 0 {
		cmd.Env = append(cmd.Env, EnvQueueSize+"="+strconv.Itoa(o.QueueSize))
	}
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open child stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start host process: %w", err)
	}

	desc := &ServerDescriptor{
		Mode:   EmbeddedSubprocess,
		cmd:    cmd,
		exited: make(chan struct{}),
		refs:   1,
	}

	addrCh := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			line := scanner.Text()
			if addr, ok := strings.CutPrefix(line, readyPrefix); ok {
				select {
				case addrCh <- strings.TrimSpace(addr):
				default:
				}
				continue
			}
			log.Printf("[Launcher] host %d: %s", cmd.Process.Pid, line)
		}
	}()
	go func() {
		desc.exitErr = cmd.Wait()
		close(desc.exited)
	}()

	select {
	case addr := <-addrCh:
		desc.Endpoint = addr
	case <-desc.exited:
		return nil, fmt.Errorf("%w: host process exited before ready: %v", agent.ErrConnection, desc.exitErr)
	case <-time.After(o.ReadyTimeout):
		_ = cmd.Process.Kill()
		return nil, fmt.Errorf("%w: host process not ready after %s", agent.ErrTimeout, o.ReadyTimeout)
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		return nil, ctx.Err()
	}

	if err := probe(ctx, desc.Endpoint, o.TLS, o.ReadyTimeout, o.ProbeInterval); err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}

	log.Printf("[Launcher] host ready on %s (pid %d)", desc.Endpoint, cmd.Process.Pid)
	return desc, nil
}

// probe pings endpoint with bounded retries until it reports serving.
func probe(ctx context.Context, endpoint string, tlsCfg *proto.TLSConfig, timeout, interval time.Duration) error {
	client, err := proto.Dial(endpoint, tlsCfg)
	if err != nil {
		return err
	}
	defer client.Close()

	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		pingCtx, cancel := context.WithTimeout(ctx, interval*10)
		resp, err := client.Ping(pingCtx)
		cancel()
		if err == nil && resp.Status == proto.PingServing {
			return nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("host reported status %q", resp.Status)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return fmt.Errorf("%w: %s not ready after %s: %v", agent.ErrConnection, endpoint, timeout, lastErr)
}

// Retain adds a reference to the descriptor. Proxies sharing an embedded
// Host each hold one.
func (d *ServerDescriptor) Retain() {
	d.mu.Lock()
	d.refs++
	d.mu.Unlock()
}

// Release drops one reference. When the last reference goes and the
// descriptor owns its process, the Host is shut down with the given grace
// period. Reports whether teardown happened.
func (d *ServerDescriptor) Release(grace time.Duration) (bool, error) {
	d.mu.Lock()
	d.refs--
	last := d.refs <= 0 && !d.down
	if last {
		d.down = true
	}
	d.mu.Unlock()

	if !last {
		return false, nil
	}
	return true, d.Shutdown(grace)
}

// WaitUntilTerminate blocks until the Host process exits (embedded) or ctx
// is cancelled (standalone, which the launcher does not own).
func (d *ServerDescriptor) WaitUntilTerminate(ctx context.Context) error {
	if d.Mode != EmbeddedSubprocess {
		<-ctx.Done()
		return ctx.Err()
	}
	select {
	case <-d.exited:
		return d.exitErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown terminates an owned Host process: SIGTERM first, so the child
// drains in-flight calls, then SIGKILL after the grace period. Standalone
// descriptors have nothing to own and return immediately.
func (d *ServerDescriptor) Shutdown(grace time.Duration) error {
	if d.Mode != EmbeddedSubprocess {
		return nil
	}

	select {
	case <-d.exited:
		return nil
	default:
	}

	if err := d.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Already gone.
		<-d.exited
		return nil
	}

	select {
	case <-d.exited:
		return nil
	case <-time.After(grace):
	}

	log.Printf("[Launcher] host %d did not stop within %s, killing", d.cmd.Process.Pid, grace)
	if err := d.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill host process: %w", err)
	}
	<-d.exited
	return nil
}

// MaybeRunHost turns the current process into a Host when it was spawned
// by an embedded Launch. Call it early in main:
//
//	func main() {
//		if launch.MaybeRunHost(registry) {
//			return
//		}
//		// normal program logic
//	}
//
// It returns false immediately in ordinary processes. In a spawned child it
// serves the registry until SIGTERM/SIGINT, then stops gracefully and
// returns true.
func MaybeRunHost(registry *agent.Registry, opts ...host.Option) bool {
	if os.Getenv(EnvHostMode) == "" {
		return false
	}

	listen := os.Getenv(EnvListen)
	if listen == "" {
		listen = "127.0.0.1:0"
	}
	if n, err := strconv.Atoi(os.Getenv(EnvPoolSize)); err == nil && n > 0 {
		opts = append(opts, host.WithPoolSize(n))
	}
	if n, err := strconv.Atoi(os.Getenv(EnvQueueSize)); err == nil && n > 0 {
		opts = append(opts, host.WithQueueSize(n))
	}

	h := host.New(registry, opts...)
	if err := h.Start(context.Background(), listen); err != nil {
		log.Fatalf("[Launcher] failed to start host: %v", err)
	}
	fmt.Println(readyPrefix + h.Addr())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGTERM, syscall.SIGINT)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := h.Stop(ctx); err != nil {
		log.Printf("[Launcher] host stop: %v", err)
	}
	return true
}
