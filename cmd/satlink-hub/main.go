// Package main implements the satlink discovery hub.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/orbital-demo/satlink/internal/api"
	"github.com/orbital-demo/satlink/internal/audit"
	"github.com/orbital-demo/satlink/internal/auth"
	"github.com/orbital-demo/satlink/internal/config"
	"github.com/orbital-demo/satlink/internal/discovery"
	"github.com/orbital-demo/satlink/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "satlink-hub: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = pflag.StringP("config", "c", "", "path to YAML config (default ./satlink.yaml if present)")
		addr       = pflag.String("addr", "", "listen address, overrides hub.addr")
		issueFor   = pflag.String("issue-token", "", "print a bearer token for this subject and exit")
		tokenTTL   = pflag.Duration("token-ttl", 24*time.Hour, "lifetime of a token printed by --issue-token")
	)
	pflag.Parse()

	// Step 1: Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Hub.Addr = *addr
	}

	if *issueFor != "" {
		if cfg.Hub.AuthSecret == "" {
			return fmt.Errorf("--issue-token needs hub.authSecret")
		}
		if *tokenTTL <= 0 {
			return fmt.Errorf("--token-ttl must be positive, got %v", *tokenTTL)
		}
		token, err := auth.IssueToken(cfg.Hub.AuthSecret, *issueFor, []string{auth.ScopeEvents}, *tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	}

	// Step 2: Initialize logging
	logger, logCloser, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logCloser.Close()
	logger.Info("starting satlink hub", "version", api.Version)

	// Step 3: Initialize audit logger
	var auditLogger *audit.Logger
	if cfg.Hub.AuditDir != "" {
		auditLogger, err = audit.NewLogger(cfg.Hub.AuditDir, audit.Options{
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize audit logger: %w", err)
		}
		defer auditLogger.Close()
		logger.Info("audit logger initialized", "path", auditLogger.GetFilePath())
	}

	// Step 4: Initialize discovery hub
	hubOpts := discovery.Options{
		HeartbeatInterval: cfg.Hub.HeartbeatInterval,
		Backlog:           cfg.Hub.SubscriberBacklog,
		ShutdownWait:      cfg.Hub.ShutdownWait,
		Logger:            logger.With("component", "hub"),
	}
	if auditLogger != nil {
		hubOpts.Auditor = auditLogger
	}
	hub := discovery.NewHub(hubOpts)

	// Step 5: Create API server
	serverOpts := api.Options{
		TrustForwardedFor: cfg.Hub.TrustForwardedFor,
		ReadTimeout:       cfg.Hub.ReadTimeout,
		IdleTimeout:       cfg.Hub.IdleTimeout,
		Logger:            logger.With("component", "api"),
	}
	if auditLogger != nil {
		serverOpts.Auditor = auditLogger
	}
	if cfg.Hub.AuthSecret != "" {
		verifier, err := auth.NewVerifier(cfg.Hub.AuthSecret)
		if err != nil {
			return fmt.Errorf("failed to initialize auth: %w", err)
		}
		serverOpts.Auth = auth.NewMiddleware(verifier)
		logger.Info("bearer auth enabled on /events")
	}
	server := api.NewServer(hub, serverOpts)

	// Step 6: Start HTTP server
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Hub.Addr); err != nil {
			serverErr <- err
		}
	}()
	logger.Info("hub listening", "addr", cfg.Hub.Addr)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "error", err)
		hub.Stop()
		return err
	}

	// Streams must end before the HTTP server can drain.
	hub.Stop()
	logger.Info("hub stopped")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Hub.ShutdownWait+5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Error("error stopping HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
