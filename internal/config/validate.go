//
//
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/orbital-demo/satlink/internal/interp"
)

// Validate enforces the constraints every command relies on.
func Validate(config *Config) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateHub(&config.Hub); err != nil {
		return fmt.Errorf("hub validation failed: %w", err)
	}

	if err := validateClient(&config.Client); err != nil {
		return fmt.Errorf("client validation failed: %w", err)
	}

	if err := validateSource(&config.Source); err != nil {
		return fmt.Errorf("source validation failed: %w", err)
	}

	if err := validateLog(&config.Log); err != nil {
		return fmt.Errorf("log validation failed: %w", err)
	}

	return nil
}

// validateHub validates hub parameters.
func validateHub(hub *HubConfig) error {
	if hub.Addr == "" {
		return fmt.Errorf("addr must be set")
	}
	if hub.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %v", hub.HeartbeatInterval)
	}
	if hub.SubscriberBacklog <= 0 {
		return fmt.Errorf("subscriber backlog must be positive, got %d", hub.SubscriberBacklog)
	}
	if hub.ReadTimeout < 0 || hub.IdleTimeout < 0 || hub.ShutdownWait < 0 {
		return fmt.Errorf("timeouts must be non-negative")
	}
	return nil
}

// validateClient validates registry and transport parameters.
func validateClient(client *ClientConfig) error {
	if client.HubURL != "" {
		if err := validateHTTPURL(client.HubURL); err != nil {
			return fmt.Errorf("hub url: %w", err)
		}
	}
	if client.SourcePort <= 0 || client.SourcePort > 65535 {
		return fmt.Errorf("source port %d outside [1, 65535]", client.SourcePort)
	}
	if client.PositionInterval <= 0 {
		return fmt.Errorf("position interval must be positive, got %v", client.PositionInterval)
	}
	if client.ColorInterval <= 0 {
		return fmt.Errorf("color interval must be positive, got %v", client.ColorInterval)
	}
	if client.ProbeTimeout <= 0 {
		return fmt.Errorf("probe timeout must be positive, got %v", client.ProbeTimeout)
	}
	if client.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must be non-negative, got %v", client.RequestTimeout)
	}
	if client.DialTimeout <= 0 {
		return fmt.Errorf("dial timeout must be positive, got %v", client.DialTimeout)
	}
	if client.HistoryLimit < 0 {
		return fmt.Errorf("history limit must be non-negative, got %d", client.HistoryLimit)
	}
	if client.FrameRate <= 0 || client.FrameRate > 240 {
		return fmt.Errorf("frame rate %d outside [1, 240]", client.FrameRate)
	}
	if _, err := interp.EasingByName(client.Easing); err != nil {
		return err
	}
	if client.ReconnectMin <= 0 {
		return fmt.Errorf("reconnect min must be positive, got %v", client.ReconnectMin)
	}
	if client.ReconnectMax < client.ReconnectMin {
		return fmt.Errorf("reconnect max %v must be >= min %v", client.ReconnectMax, client.ReconnectMin)
	}
	return nil
}

// validateSource validates the demo source parameters.
func validateSource(source *SourceConfig) error {
	if source.Addr == "" {
		return fmt.Errorf("addr must be set")
	}
	if strings.TrimSpace(source.Name) == "" {
		return fmt.Errorf("name must be set")
	}
	if source.Transport != "ws" && source.Transport != "http" {
		return fmt.Errorf("invalid transport %q, must be one of: [ws http]", source.Transport)
	}
	if source.HubURL != "" {
		if err := validateHTTPURL(source.HubURL); err != nil {
			return fmt.Errorf("hub url: %w", err)
		}
	}
	if source.PositionInterval <= 0 || source.ColorInterval <= 0 {
		return fmt.Errorf("intervals must be positive, got position=%v color=%v", source.PositionInterval, source.ColorInterval)
	}
	if source.RegisterDelay < 0 {
		return fmt.Errorf("register delay must be non-negative, got %v", source.RegisterDelay)
	}
	return nil
}

// validateLog validates logger parameters.
func validateLog(log *LogConfig) error {
	switch log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid level %q", log.Level)
	}
	switch log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid format %q", log.Format)
	}
	if log.File != "" && (log.MaxSizeMB <= 0 || log.MaxBackups < 0 || log.MaxAgeDays < 0) {
		return fmt.Errorf("invalid rotation settings size=%d backups=%d age=%d", log.MaxSizeMB, log.MaxBackups, log.MaxAgeDays)
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q is not http or https", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}
