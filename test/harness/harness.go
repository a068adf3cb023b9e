// Package harness starts in-process hubs and sources for black-box tests.
package harness

import (
	"context"
	"net"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/orbital-demo/satlink/internal/api"
	"github.com/orbital-demo/satlink/internal/discovery"
	"github.com/orbital-demo/satlink/internal/logging"
	"github.com/orbital-demo/satlink/internal/source"
)

// RegisterDelay is how long a harness source waits before announcing itself.
const RegisterDelay = 300 * time.Millisecond

// Options configures the hub under test.
type Options struct {
	HeartbeatInterval time.Duration
	Backlog           int
}

// DefaultOptions returns options suited to fast tests.
func DefaultOptions() Options {
	return Options{
		HeartbeatInterval: 50 * time.Millisecond,
		Backlog:           64,
	}
}

// Hub is a running discovery hub behind its HTTP API.
type Hub struct {
	URL string
	Hub *discovery.Hub

	server *httptest.Server
}

// NewHub starts a hub; it is torn down when the test ends.
func NewHub(t *testing.T, opts Options) *Hub {
	t.Helper()
	hub := discovery.NewHub(discovery.Options{
		HeartbeatInterval: opts.HeartbeatInterval,
		Backlog:           opts.Backlog,
		ShutdownWait:      time.Second,
		Logger:            logging.Discard(),
	})
	server := httptest.NewServer(api.NewServer(hub, api.Options{Logger: logging.Discard()}).Handler())

	t.Cleanup(func() {
		hub.Stop()
		server.Close()
	})
	return &Hub{URL: server.URL, Hub: hub, server: server}
}

// Source is a running demo source.
type Source struct {
	Server *source.Server
	Port   int

	cancel context.CancelFunc
	done   chan error
	once   sync.Once
}

// NewSource starts a demo source on a loopback port. When hubURL is set the
// source announces itself with the given transport after RegisterDelay, which
// leaves time for a client to subscribe using Port.
func NewSource(t *testing.T, name, transport, hubURL string) *Source {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	server := source.NewServer(source.Options{
		Name:             name,
		Transport:        transport,
		HubURL:           hubURL,
		RegisterDelay:    RegisterDelay,
		PositionInterval: 20 * time.Millisecond,
		ColorInterval:    50 * time.Millisecond,
		Logger:           logging.Discard(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	s := &Source{Server: server, Port: port, cancel: cancel, done: make(chan error, 1)}
	go func() { s.done <- server.Serve(ctx, ln) }()

	t.Cleanup(s.Stop)
	return s
}

// Stop shuts the source down and waits for it. It is safe to call twice.
func (s *Source) Stop() {
	s.once.Do(func() {
		s.cancel()
		select {
		case <-s.done:
		case <-time.After(5 * time.Second):
		}
	})
}
