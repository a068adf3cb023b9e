// Package main runs a satlink client: it follows the discovery hub, keeps one
// entity per announced source and advances them at the configured frame rate.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/orbital-demo/satlink/internal/config"
	"github.com/orbital-demo/satlink/internal/discovery"
	"github.com/orbital-demo/satlink/internal/interp"
	"github.com/orbital-demo/satlink/internal/logging"
	"github.com/orbital-demo/satlink/internal/satellite"
	"github.com/orbital-demo/satlink/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "satlink-client: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = pflag.StringP("config", "c", "", "path to YAML config (default ./satlink.yaml if present)")
		hubURL     = pflag.String("hub", "", "hub base URL, overrides client.hubUrl")
		adds       = pflag.StringArray("add", nil, "add a source as name=url (repeatable)")
		printEvery = pflag.Duration("print", 0, "print entity frames as JSON lines at this period (0 disables)")
	)
	pflag.Parse()

	// Step 1: Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *hubURL != "" {
		cfg.Client.HubURL = *hubURL
		if err := config.Validate(cfg); err != nil {
			return err
		}
	}

	// Step 2: Initialize logging
	logger, logCloser, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logCloser.Close()

	// Step 3: Build the entity registry
	easing, err := interp.EasingByName(cfg.Client.Easing)
	if err != nil {
		return err
	}
	registry := satellite.NewRegistry(satellite.Options{
		Transport: transport.Options{
			DefaultPort:      cfg.Client.SourcePort,
			PositionInterval: cfg.Client.PositionInterval,
			ColorInterval:    cfg.Client.ColorInterval,
			ProbeTimeout:     cfg.Client.ProbeTimeout,
			RequestTimeout:   cfg.Client.RequestTimeout,
			DialTimeout:      cfg.Client.DialTimeout,
			ProbeFallback:    cfg.Client.ProbeFallback,
		},
		HistoryLimit: cfg.Client.HistoryLimit,
		Easing:       easing,
		Directory:    satellite.NewDirectory(cfg.Client.DirectoryPath),
		Logger:       logger.With("component", "registry"),
	})
	defer registry.Close()

	registry.OnRemoved(func(name string, err error) {
		if err != nil {
			logger.Warn("satellite lost", "name", name, "error", err)
			return
		}
		logger.Info("satellite removed", "name", name)
	})

	// Step 4: Without a hub, start from the persisted directory; then add the
	// sources given on the command line
	if cfg.Client.HubURL == "" {
		restored, err := registry.Restore()
		if err != nil {
			logger.Warn("failed to restore directory", "path", cfg.Client.DirectoryPath, "error", err)
		} else {
			logger.Info("restored satellites", "count", restored)
		}
	}
	for _, arg := range *adds {
		name, url, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("--add %q: expected name=url", arg)
		}
		if !registry.Validate(name, url) {
			logger.Warn("source rejected", "name", name, "url", url)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Step 5: Follow the hub
	if cfg.Client.HubURL != "" {
		listener := discovery.NewListener(cfg.Client.HubURL, func(a discovery.Announcement) {
			if registry.Validate(a.Name, a.URL) {
				logger.Info("satellite discovered", "name", a.Name, "url", a.URL)
			}
		}, discovery.ListenerOptions{
			Token:        cfg.Client.HubToken,
			ReconnectMin: cfg.Client.ReconnectMin,
			ReconnectMax: cfg.Client.ReconnectMax,
			Logger:       logger.With("component", "listener"),
		})
		go listener.Run(ctx)
	}

	// Step 6: Optional metrics listener
	if cfg.Client.MetricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.Client.MetricsAddr, Handler: promhttp.Handler()}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
		defer metricsServer.Close()
		logger.Info("metrics listening", "addr", cfg.Client.MetricsAddr)
	}

	// Step 7: Drive the frame loop
	driver := satellite.NewDriver(registry, cfg.Client.FrameRate, framePrinter(*printEvery, logger))
	logger.Info("client running", "fps", cfg.Client.FrameRate, "satellites", registry.Len())
	if err := driver.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("shutdown complete")
	return nil
}

// framePrinter returns a frame callback writing JSON lines to stdout at most
// once per period.
func framePrinter(period time.Duration, logger *slog.Logger) func([]satellite.Frame) {
	if period <= 0 {
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	var last time.Time
	return func(frames []satellite.Frame) {
		now := time.Now()
		if now.Sub(last) < period {
			return
		}
		last = now
		for _, f := range frames {
			if err := enc.Encode(map[string]any{
				"name":     f.Name,
				"position": f.Position,
				"color":    f.Color.Hex(),
			}); err != nil {
				logger.Debug("failed to print frame", "error", err)
				return
			}
		}
	}
}
