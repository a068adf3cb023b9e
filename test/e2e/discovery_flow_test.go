// Package e2e exercises hub, sources and a client registry together over
// real sockets.
package e2e

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/orbital-demo/satlink/internal/discovery"
	"github.com/orbital-demo/satlink/internal/logging"
	"github.com/orbital-demo/satlink/internal/satellite"
	"github.com/orbital-demo/satlink/internal/source"
	"github.com/orbital-demo/satlink/internal/transport"
	"github.com/orbital-demo/satlink/test/harness"
)

type client struct {
	registry *satellite.Registry
	dirPath  string

	mu      sync.Mutex
	removed map[string]error
}

// newClient builds a registry following hubURL. Announced URLs carry no port,
// so sourcePort is appended the way a deployed client appends 7192.
func newClient(t *testing.T, hubURL string, sourcePort int) *client {
	t.Helper()
	opts := transport.Defaults()
	opts.DefaultPort = sourcePort

	c := &client{
		dirPath: filepath.Join(t.TempDir(), "satellites.json"),
		removed: make(map[string]error),
	}
	c.registry = satellite.NewRegistry(satellite.Options{
		Transport: opts,
		Directory: satellite.NewDirectory(c.dirPath),
		Logger:    logging.Discard(),
	})
	c.registry.OnRemoved(func(name string, err error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.removed[name] = err
	})

	ctx, cancel := context.WithCancel(context.Background())
	listener := discovery.NewListener(hubURL, func(a discovery.Announcement) {
		c.registry.Validate(a.Name, a.URL)
	}, discovery.ListenerOptions{
		ReconnectMin: 10 * time.Millisecond,
		ReconnectMax: 100 * time.Millisecond,
		Logger:       logging.Discard(),
	})
	done := make(chan struct{})
	go func() {
		listener.Run(ctx)
		close(done)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		c.registry.Close()
	})
	return c
}

func (c *client) removal(name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	err, ok := c.removed[name]
	return ok, err
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", msg)
}

func TestE2E_AnnouncedSourceBecomesEntity(t *testing.T) {
	for _, kind := range []string{"ws", "http"} {
		t.Run(kind, func(t *testing.T) {
			hub := harness.NewHub(t, harness.DefaultOptions())

			src := harness.NewSource(t, "echo", kind, "")
			c := newClient(t, hub.URL, src.Port)
			waitFor(t, func() bool { return hub.Hub.Subscribers() == 1 }, "client subscribed")

			if err := registerSource(t, hub.URL, "echo", kind); err != nil {
				t.Fatalf("Registration failed: %v", err)
			}

			waitFor(t, func() bool {
				e, ok := c.registry.Get("echo")
				return ok && !e.LastUpdate().IsZero() && len(e.History()) >= 2
			}, "entity receiving positions")

			e, _ := c.registry.Get("echo")
			if e.URL() != kind+"://127.0.0.1" {
				t.Errorf("Expected announced URL %s://127.0.0.1, got %s", kind, e.URL())
			}
			wantTransport := transport.KindPush
			if kind == "http" {
				wantTransport = transport.KindPull
			}
			if e.Transport() != wantTransport {
				t.Errorf("Expected %s transport, got %s", wantTransport, e.Transport())
			}

			data, err := os.ReadFile(c.dirPath)
			if err != nil {
				t.Fatalf("Failed to read directory: %v", err)
			}
			if !strings.Contains(string(data), `["echo","`+kind+`://127.0.0.1"]`) {
				t.Errorf("Expected directory to list echo, got %s", data)
			}
		})
	}
}

func TestE2E_DuplicateAnnouncementKeepsEntity(t *testing.T) {
	hub := harness.NewHub(t, harness.DefaultOptions())
	src := harness.NewSource(t, "echo", "ws", "")
	c := newClient(t, hub.URL, src.Port)
	waitFor(t, func() bool { return hub.Hub.Subscribers() == 1 }, "client subscribed")

	registerSource(t, hub.URL, "echo", "ws")
	waitFor(t, func() bool { _, ok := c.registry.Get("echo"); return ok }, "entity created")
	first, _ := c.registry.Get("echo")

	registerSource(t, hub.URL, "echo", "http")
	time.Sleep(100 * time.Millisecond)

	second, ok := c.registry.Get("echo")
	if !ok || second != first {
		t.Error("A second announcement under the same name must not replace the entity")
	}
	if c.registry.Len() != 1 {
		t.Errorf("Expected 1 entity, got %d", c.registry.Len())
	}
}

func TestE2E_LostPushSourceRemovesEntity(t *testing.T) {
	hub := harness.NewHub(t, harness.DefaultOptions())
	src := harness.NewSource(t, "doomed", "ws", "")
	c := newClient(t, hub.URL, src.Port)
	waitFor(t, func() bool { return hub.Hub.Subscribers() == 1 }, "client subscribed")

	registerSource(t, hub.URL, "doomed", "ws")
	waitFor(t, func() bool {
		e, ok := c.registry.Get("doomed")
		return ok && !e.LastUpdate().IsZero()
	}, "entity connected")

	src.Stop()

	waitFor(t, func() bool { ok, _ := c.removal("doomed"); return ok }, "entity removed")
	if _, err := c.removal("doomed"); err == nil {
		t.Error("Expected removal to carry the transport error")
	}
	if _, ok := c.registry.Get("doomed"); ok {
		t.Error("Entity should be gone from the registry")
	}

	// The directory still remembers the source for the next start.
	data, _ := os.ReadFile(c.dirPath)
	if !strings.Contains(string(data), `"doomed"`) {
		t.Errorf("Expected directory to keep the lost source, got %s", data)
	}
}

func TestE2E_SourceSelfRegisters(t *testing.T) {
	hub := harness.NewHub(t, harness.DefaultOptions())
	src := harness.NewSource(t, "self", "ws", hub.URL)

	c := newClient(t, hub.URL, src.Port)
	waitFor(t, func() bool { return hub.Hub.Subscribers() == 1 }, "client subscribed")

	waitFor(t, func() bool {
		e, ok := c.registry.Get("self")
		return ok && !e.LastUpdate().IsZero()
	}, "self-registered source followed")
}

func registerSource(t *testing.T, hubURL, name, kind string) error {
	t.Helper()
	return source.Register(context.Background(), http.DefaultClient, hubURL, name, kind)
}
