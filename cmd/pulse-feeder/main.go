// Command pulse-feeder submits synthetic events through the SDK at a fixed
// interval. It exists to exercise a collection pipeline end to end: point it
// at real endpoints, watch the batches arrive.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/SebastienMelki/pulse"
)

// Config holds the feeder's own settings; the SDK reads its PULSE_*
// variables separately.
type Config struct {
	// Endpoints is a comma-separated list of collection hosts in
	// fallback order.
	Endpoints []string `env:"FEEDER_ENDPOINTS" envSeparator:","`

	// AuthToken is sent as "Authorization: Token <value>".
	AuthToken string `env:"FEEDER_AUTH_TOKEN"`

	// ProjectToken identifies the product; required for the elastic format.
	ProjectToken string `env:"FEEDER_PROJECT_TOKEN"`

	// Interval between synthetic events.
	Interval time.Duration `env:"FEEDER_INTERVAL" envDefault:"2s"`

	// Count limits how many events to submit; 0 means run until signaled.
	Count int `env:"FEEDER_COUNT" envDefault:"0"`
}

// provider adapts the feeder config to the SDK's state interface.
type provider struct {
	cfg Config
}

func (p *provider) Endpoints() []pulse.Endpoint {
	eps := make([]pulse.Endpoint, 0, len(p.cfg.Endpoints))
	for _, addr := range p.cfg.Endpoints {
		if addr = strings.TrimSpace(addr); addr != "" {
			eps = append(eps, pulse.Endpoint{Address: addr})
		}
	}
	return eps
}

func (p *provider) AuthToken() string    { return p.cfg.AuthToken }
func (p *provider) ProjectToken() string { return p.cfg.ProjectToken }

func main() {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Error("failed to parse config", "error", err)
		os.Exit(1)
	}
	if len(cfg.Endpoints) == 0 {
		slog.Error("FEEDER_ENDPOINTS must name at least one endpoint")
		os.Exit(1)
	}

	sdkCfg, err := pulse.ConfigFromEnv()
	if err != nil {
		slog.Error("failed to parse SDK config", "error", err)
		os.Exit(1)
	}
	sdkCfg.Provider = &provider{cfg: cfg}

	client, err := pulse.New(sdkCfg)
	if err != nil {
		slog.Error("failed to create client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	client.Start()
	slog.Info("feeder started",
		"endpoints", cfg.Endpoints,
		"interval", cfg.Interval,
		"store_path", sdkCfg.StorePath,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	submitted := 0
loop:
	for {
		select {
		case <-sigCh:
			slog.Info("shutting down")
			break loop
		case at := <-ticker.C:
			seq := submitted
			client.Submit(pulse.ClientEvent{
				Name: "feeder_heartbeat",
				Properties: map[string]string{
					"sequence": fmt.Sprintf("%d", seq),
					"pid":      fmt.Sprintf("%d", os.Getpid()),
				},
				Time: at,
			}, func(err error) {
				if err != nil {
					slog.Warn("submit failed", "sequence", seq, "error", err)
				}
			})
			submitted++
			if cfg.Count > 0 && submitted >= cfg.Count {
				break loop
			}
		}
	}

	// Push out whatever is still queued before exiting.
	flushed := make(chan error, 1)
	client.Flush(func(err error) { flushed <- err })
	if err := <-flushed; err != nil {
		slog.Warn("final flush failed", "error", err)
	}

	client.RecentEvents(func(lines []string) {
		for _, line := range lines {
			slog.Info("recent event", "event", line)
		}
	})

	if err := client.Close(); err != nil {
		slog.Error("close failed", "error", err)
	}
	slog.Info("feeder stopped", "submitted", submitted)
}
