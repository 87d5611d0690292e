package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	taskruntime "github.com/Swind/go-task-runtime"
	"github.com/Swind/go-task-runtime/config"
	obs "github.com/Swind/go-task-runtime/observability/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML or JSON config file",
			EnvVars: []string{"TASKRT_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "flavor",
			Usage: "Runtime flavor: current_thread or multi_thread",
		},
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"w"},
			Usage:   "Worker count for multi_thread (0 = one per CPU)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn or error",
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "Serve Prometheus metrics on this address (enables metrics)",
		},
	}
}

// loadConfig layers defaults, the config file, TASKRT_* variables and command-line flags,
// in that order.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return config.Config{}, err
	}
	config.FromEnv(&cfg)

	if c.IsSet("flavor") {
		cfg.Flavor = c.String("flavor")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("metrics-addr") {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = c.String("metrics-addr")
	}
	return cfg, cfg.Validate()
}

// session is a runtime plus the optional metrics endpoint serving it.
type session struct {
	rt     *taskruntime.Runtime
	poller *obs.SnapshotPoller
	server *http.Server
}

func openSession(c *cli.Context) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	if !cfg.Metrics.Enabled {
		rt, err := taskruntime.NewFromConfig(cfg)
		if err != nil {
			return nil, cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
		}
		return &session{rt: rt}, nil
	}

	reg := prom.NewRegistry()
	exporter, err := obs.NewMetricsExporter(cfg.Metrics.Namespace, reg, obs.ExporterOptions{})
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	poller, err := obs.NewSnapshotPoller(cfg.Metrics.Namespace, reg, cfg.Metrics.PollInterval)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	rt, err := taskruntime.NewFromConfig(cfg, taskruntime.WithMetrics(exporter), taskruntime.WithName("taskrt"))
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	poller.AddScheduler("taskrt", rt)
	poller.Start(context.Background())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("metrics server: %v\n", err)
		}
	}()
	fmt.Printf("Prometheus endpoint is up at http://%s/metrics\n", cfg.Metrics.Addr)

	return &session{rt: rt, poller: poller, server: server}, nil
}

func (s *session) Close() {
	s.rt.Close()
	if s.poller != nil {
		s.poller.Stop()
	}
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}
}
