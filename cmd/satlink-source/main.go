// Package main runs a demo telemetry source.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/orbital-demo/satlink/internal/config"
	"github.com/orbital-demo/satlink/internal/logging"
	"github.com/orbital-demo/satlink/internal/source"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "satlink-source: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = pflag.StringP("config", "c", "", "path to YAML config (default ./satlink.yaml if present)")
		addr       = pflag.String("addr", "", "listen address, overrides source.addr")
		name       = pflag.String("name", "", "source name, overrides source.name")
		transport  = pflag.String("transport", "", "transport to announce (ws or http), overrides source.transport")
		hubURL     = pflag.String("hub", "", "hub base URL to register with, overrides source.hubUrl")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Source.Addr = *addr
	}
	if *name != "" {
		cfg.Source.Name = *name
	}
	if *transport != "" {
		cfg.Source.Transport = *transport
	}
	if *hubURL != "" {
		cfg.Source.HubURL = *hubURL
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger, logCloser, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logCloser.Close()

	server := source.NewServer(source.Options{
		Name:             cfg.Source.Name,
		Transport:        cfg.Source.Transport,
		HubURL:           cfg.Source.HubURL,
		RegisterDelay:    cfg.Source.RegisterDelay,
		PositionInterval: cfg.Source.PositionInterval,
		ColorInterval:    cfg.Source.ColorInterval,
		Altitude:         cfg.Source.Altitude,
		AllowOrigin:      cfg.Source.AllowOrigin,
		Logger:           logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.ListenAndServe(ctx, cfg.Source.Addr); err != nil {
		return err
	}
	logger.Info("source stopped")
	return nil
}
