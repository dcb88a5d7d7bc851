// Command axond runs a standalone actor Host: a gRPC listener serving the
// registered classes plus an HTTP server for metrics and health probes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aixgo-dev/axon"
	"github.com/aixgo-dev/axon/agent"
	"github.com/aixgo-dev/axon/internal/observability"
	"github.com/aixgo-dev/axon/launch"
	"github.com/aixgo-dev/axon/pkg/config"
	obs "github.com/aixgo-dev/axon/pkg/observability"
	"github.com/aixgo-dev/axon/proto"
)

var (
	// Version information (set via ldflags)
	Version = "dev"

	configFile = flag.String("config", getEnv("CONFIG_FILE", ""), "Daemon configuration file")
	listenAddr = flag.String("listen", "", "gRPC listen address (overrides config)")
	httpPort   = flag.Int("http-port", 0, "Metrics/health HTTP port (overrides config)")
)

// registry lists every class remote parties may instantiate on this
// daemon. The built-in echo class makes a fresh deployment probe-able end
// to end.
func registry() *agent.Registry {
	return agent.NewRegistry(map[string]agent.Constructor{
		"echo": func(args []agent.Value) (agent.Actor, error) {
			return echoActor{}, nil
		},
	})
}

func main() {
	if launch.MaybeRunHost(registry()) {
		return
	}
	flag.Parse()

	if err := run(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		return err
	}
	if *listenAddr != "" {
		cfg.Listen = *listenAddr
	}
	if *httpPort != 0 {
		cfg.HTTPPort = *httpPort
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	retention, err := cfg.Retention()
	if err != nil {
		return err
	}

	log.Printf("Starting axond v%s", Version)
	log.Printf("Listen: %s, HTTP Port: %d", cfg.Listen, cfg.HTTPPort)

	if err := observability.InitFromEnv(); err != nil {
		log.Printf("Tracing disabled: %v", err)
	}
	obs.InitMetrics()

	healthChecker := obs.NewHealthChecker()
	healthChecker.RegisterCheck(obs.PingCheck())

	obsServer := obs.NewServer(cfg.HTTPPort, healthChecker)
	errChan := make(chan error, 2)
	go func() {
		log.Printf("Starting HTTP server on :%d", cfg.HTTPPort)
		if err := obsServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	opts := []axon.ServeOption{
		axon.WithPoolSize(cfg.Host.PoolSize),
		axon.WithQueueSize(cfg.Host.QueueSize),
		axon.WithRetention(retention),
	}
	if cfg.AdvertiseHost != "" {
		opts = append(opts, axon.WithAdvertiseHost(cfg.AdvertiseHost))
	}
	if cfg.TLS.Enabled {
		opts = append(opts, axon.WithHostTLS(&proto.TLSConfig{
			Enabled:  true,
			CertFile: cfg.TLS.CertFile,
			KeyFile:  cfg.TLS.KeyFile,
			CAFile:   cfg.TLS.CAFile,
		}))
	}
	if cfg.RateLimit.Enabled {
		opts = append(opts, axon.WithRateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	}

	server, err := axon.Serve(context.Background(), cfg.Listen, registry(), opts...)
	if err != nil {
		return err
	}
	log.Printf("Host serving on %s", server.Addr())

	// Wait for shutdown signal or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		log.Printf("Error: %v", err)
	case <-quit:
		log.Println("Shutting down axond...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		log.Printf("Host shutdown error: %v", err)
	}
	if err := obsServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if err := observability.Shutdown(ctx); err != nil {
		log.Printf("Tracing shutdown error: %v", err)
	}
	axon.CloseConnections()

	log.Println("axond stopped")
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
