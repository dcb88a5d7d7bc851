// Command benchmark measures invoke throughput and latency against a Host.
// With no -endpoint it spawns an embedded Host subprocess and benchmarks
// that; point it at a running axond to measure a real deployment.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aixgo-dev/axon"
	"github.com/aixgo-dev/axon/agent"
	"github.com/aixgo-dev/axon/launch"
)

func main() {
	if launch.MaybeRunHost(benchRegistry()) {
		return
	}

	var (
		endpoint    = flag.String("endpoint", "", "Host endpoint (default: spawn an embedded host)")
		class       = flag.String("class", "echo", "Actor class to instantiate")
		method      = flag.String("method", "reflect", "Method to invoke")
		payload     = flag.String("payload", "ping", "String argument sent with every call")
		requests    = flag.Int("requests", 1000, "Total number of invokes")
		concurrency = flag.Int("concurrency", 8, "Concurrent callers")
		pipelined   = flag.Bool("pipelined", false, "Dispatch async and force each placeholder")
		format      = flag.String("format", "text", "Output format: text, json")
		timeout     = flag.Duration("timeout", 5*time.Minute, "Overall benchmark timeout")
	)
	flag.Parse()

	if err := run(*endpoint, *class, *method, *payload, *requests, *concurrency, *pipelined, *format, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func benchRegistry() *agent.Registry {
	return agent.NewRegistry(map[string]agent.Constructor{
		"echo": func(args []agent.Value) (agent.Actor, error) {
			return echoActor{}, nil
		},
	})
}

type echoActor struct{}

func (echoActor) Invoke(ctx context.Context, method string, args []agent.Value) (agent.Value, error) {
	if len(args) == 0 {
		return agent.Null(), nil
	}
	return args[0], nil
}

// Report is the benchmark outcome in a shape fit for both humans and CI.
type Report struct {
	Endpoint    string        `json:"endpoint"`
	Class       string        `json:"class"`
	Method      string        `json:"method"`
	Requests    int           `json:"requests"`
	Concurrency int           `json:"concurrency"`
	Pipelined   bool          `json:"pipelined"`
	Errors      int           `json:"errors"`
	Elapsed     time.Duration `json:"elapsed_ns"`
	Throughput  float64       `json:"requests_per_second"`
	P50         time.Duration `json:"p50_ns"`
	P95         time.Duration `json:"p95_ns"`
	P99         time.Duration `json:"p99_ns"`
}

func run(endpoint, class, method, payload string, requests, concurrency int, pipelined bool, format string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var opts []axon.DistOption
	if endpoint != "" {
		opts = append(opts, axon.WithEndpoint(endpoint))
	}
	proxy, err := axon.ToDistributed(ctx, class, nil, opts...)
	if err != nil {
		return fmt.Errorf("create %s actor: %w", class, err)
	}
	defer proxy.Close(context.Background())

	arg := agent.String(payload)
	latencies := make([]time.Duration, 0, requests)
	var (
		mu       sync.Mutex
		errCount int
	)
	record := func(d time.Duration, err error) {
		mu.Lock()
		if err != nil {
			errCount++
		} else {
			latencies = append(latencies, d)
		}
		mu.Unlock()
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := 0; i < requests; i++ {
		g.Go(func() error {
			callStart := time.Now()
			if pipelined {
				ph, err := proxy.Invoke(gctx, method, arg)
				if err == nil {
					_, err = ph.Force(gctx)
				}
				record(time.Since(callStart), err)
				return nil
			}
			_, err := proxy.InvokeSync(gctx, method, arg)
			record(time.Since(callStart), err)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	report := buildReport(proxy.Endpoint(), class, method, requests, concurrency, pipelined, errCount, elapsed, latencies)
	return emit(report, format)
}

func buildReport(endpoint, class, method string, requests, concurrency int, pipelined bool, errCount int, elapsed time.Duration, latencies []time.Duration) *Report {
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	percentile := func(p float64) time.Duration {
		if len(latencies) == 0 {
			return 0
		}
		return latencies[int(p*float64(len(latencies)-1))]
	}

	return &Report{
		Endpoint:    endpoint,
		Class:       class,
		Method:      method,
		Requests:    requests,
		Concurrency: concurrency,
		Pipelined:   pipelined,
		Errors:      errCount,
		Elapsed:     elapsed,
		Throughput:  float64(len(latencies)) / elapsed.Seconds(),
		P50:         percentile(0.50),
		P95:         percentile(0.95),
		P99:         percentile(0.99),
	}
}

func emit(r *Report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "text":
		fmt.Printf("Benchmark: %s.%s against %s\n", r.Class, r.Method, r.Endpoint)
		fmt.Printf("  requests:    %d (concurrency %d, pipelined=%v)\n", r.Requests, r.Concurrency, r.Pipelined)
		fmt.Printf("  errors:      %d\n", r.Errors)
		fmt.Printf("  elapsed:     %s\n", r.Elapsed.Round(time.Millisecond))
		fmt.Printf("  throughput:  %.1f req/s\n", r.Throughput)
		fmt.Printf("  latency p50: %s  p95: %s  p99: %s\n",
			r.P50.Round(time.Microsecond), r.P95.Round(time.Microsecond), r.P99.Round(time.Microsecond))
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
