package discovery

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ListenerOptions configures a Listener.
type ListenerOptions struct {
	// Bearer token sent with the stream request; empty sends none
	Token string

	ReconnectMin time.Duration
	ReconnectMax time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Listener follows a hub's event stream and hands every announcement to a
// callback, reconnecting with capped exponential backoff.
type Listener struct {
	url        string
	onAnnounce func(Announcement)
	opts       ListenerOptions
	logger     *slog.Logger
}

// NewListener creates a listener for the hub at hubURL.
func NewListener(hubURL string, onAnnounce func(Announcement), opts ListenerOptions) *Listener {
	if opts.ReconnectMin <= 0 {
		opts.ReconnectMin = time.Second
	}
	if opts.ReconnectMax < opts.ReconnectMin {
		opts.ReconnectMax = 60 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Listener{
		url:        strings.TrimSuffix(hubURL, "/") + "/events",
		onAnnounce: onAnnounce,
		opts:       opts,
		logger:     opts.Logger.With("hub", hubURL),
	}
}

// Run follows the stream until ctx is done.
func (l *Listener) Run(ctx context.Context) error {
	backoff := l.opts.ReconnectMin
	for {
		connected, err := l.stream(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			backoff = l.opts.ReconnectMin
		}
		if err != nil {
			l.logger.Warn("event stream lost", "error", err, "retry", backoff)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > l.opts.ReconnectMax {
			backoff = l.opts.ReconnectMax
		}
	}
}

// stream performs one connection. connected reports whether the hub accepted
// the stream before it ended.
func (l *Listener) stream(ctx context.Context) (connected bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if l.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+l.opts.Token)
	}

	resp, err := l.opts.HTTPClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	l.logger.Info("event stream connected")
	err = ReadEvents(resp.Body, func(event, data string) {
		if event != "" && event != "message" {
			return
		}
		var a Announcement
		if err := json.Unmarshal([]byte(data), &a); err != nil || a.Name == "" || a.URL == "" {
			l.logger.Debug("ignoring event", "data", data)
			return
		}
		l.onAnnounce(a)
	})
	if err == nil {
		err = io.EOF
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return true, err
}

// ReadEvents parses a text/event-stream body and calls fn once per dispatched
// event with its type and joined data lines. Comments and events without data
// are skipped.
func ReadEvents(r io.Reader, fn func(event, data string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	var (
		event string
		data  []string
	)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if len(data) > 0 {
				fn(event, strings.Join(data, "\n"))
			}
			event, data = "", nil
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			event = value
		case "data":
			data = append(data, value)
		}
	}
	return scanner.Err()
}
