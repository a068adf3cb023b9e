//
//
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/orbital-demo/satlink/internal/metrics"
)

var (
	ErrMalformedPayload  = &Error{Code: "MALFORMED_PAYLOAD"}
	ErrInvalidTransport  = &Error{Code: "INVALID_TRANSPORT"}
	ErrHubStopped        = &Error{Code: "HUB_STOPPED"}
	ErrSubscriberEvicted = &Error{Code: "SUBSCRIBER_EVICTED"}
)

// Error is a hub failure carrying a stable code. The code is also the text
// returned to sources that fail to register.
type Error struct {
	Code string
}

func (e *Error) Error() string { return e.Code }

// AuditCode returns the code recorded in the audit log.
func (e *Error) AuditCode() string { return e.Code }

// RegisterRequest is the body a source posts to /register.
type RegisterRequest struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// Announcement is delivered to every open event stream.
type Announcement struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Auditor records registration attempts.
type Auditor interface {
	LogRegistration(ctx context.Context, remote, name, transport, url string, err error)
}

// Options configures a Hub.
type Options struct {
	HeartbeatInterval time.Duration

	// Announcements a subscriber may have pending before it is disconnected
	Backlog int

	// Bound on how long Stop waits for streams to drain
	ShutdownWait time.Duration

	Auditor Auditor
	Logger  *slog.Logger
}

// subscriber is one open event stream.
type subscriber struct {
	id     string
	cancel context.CancelFunc

	mu      sync.Mutex
	pending []Announcement
	evicted bool
	notify  chan struct{}
}

// enqueue appends a to the pending queue. It returns false when the backlog
// is exceeded.
func (s *subscriber) enqueue(a Announcement, backlog int) bool {
	s.mu.Lock()
	if s.evicted {
		s.mu.Unlock()
		return false
	}
	if backlog > 0 && len(s.pending) >= backlog {
		s.evicted = true
		s.pending = nil
		s.mu.Unlock()
		return false
	}
	s.pending = append(s.pending, a)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return true
}

func (s *subscriber) drain() ([]Announcement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := s.pending
	s.pending = nil
	return pending, s.evicted
}

// Hub fans registrations out to subscribers. The subscriber set is owned by the
// hub instance; there is no package-level state.
type Hub struct {
	opts   Options
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[string]*subscriber
	stopped     bool
	nextID      atomic.Uint64

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewHub creates a hub with no subscribers.
func NewHub(opts Options) *Hub {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 15 * time.Second
	}
	if opts.ShutdownWait <= 0 {
		opts.ShutdownWait = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Hub{
		opts:        opts,
		logger:      opts.Logger,
		subscribers: make(map[string]*subscriber),
		done:        make(chan struct{}),
	}
}

// Register validates req, builds the announcement from the caller's observed
// address and queues it to every open subscriber. Success does not depend on
// anyone listening.
func (h *Hub) Register(ctx context.Context, req RegisterRequest, remoteAddr string) (Announcement, error) {
	name := strings.TrimSpace(req.Name)
	transport := strings.TrimSpace(req.Type)

	announcement, err := h.announcement(name, transport, remoteAddr)
	metrics.RecordRegistration(transport, err == nil)
	if h.opts.Auditor != nil {
		h.opts.Auditor.LogRegistration(ctx, remoteAddr, name, transport, announcement.URL, err)
	}
	if err != nil {
		h.logger.Info("registration rejected", "remote", remoteAddr, "name", name, "type", transport, "error", err)
		return Announcement{}, err
	}

	delivered := h.broadcast(announcement)
	h.logger.Info("source registered", "name", announcement.Name, "url", announcement.URL, "subscribers", delivered)
	return announcement, nil
}

func (h *Hub) announcement(name, transport, remoteAddr string) (Announcement, error) {
	if name == "" || transport == "" {
		return Announcement{}, fmt.Errorf("%w: name and type are required", ErrMalformedPayload)
	}
	if transport != "http" && transport != "ws" {
		return Announcement{}, fmt.Errorf("%w: type must be http or ws, got %q", ErrInvalidTransport, transport)
	}
	host := ObservedHost(remoteAddr)
	if host == "" {
		return Announcement{}, fmt.Errorf("%w: cannot determine caller address", ErrMalformedPayload)
	}
	return Announcement{Name: name, URL: transport + "://" + host}, nil
}

// broadcast queues a to every subscriber and returns how many accepted it.
func (h *Hub) broadcast(a Announcement) int {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for _, s := range h.subscribers {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, s := range subs {
		if s.enqueue(a, h.opts.Backlog) {
			delivered++
			metrics.HubAnnouncementsTotal.Inc()
			continue
		}
		s.cancel()
	}
	return delivered
}

// Subscribe streams announcements and heartbeats to w until the client goes
// away, the subscriber is removed, or the hub stops.
func (h *Hub) Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return h.SubscribeNotify(ctx, w, r, nil)
}

// SubscribeNotify is Subscribe with a callback run once the subscriber has
// been accepted, before anything is written to w. It is not called when the
// hub refuses the subscriber.
func (h *Hub) SubscribeNotify(ctx context.Context, w http.ResponseWriter, r *http.Request, accepted func(id string)) error {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := &subscriber{
		id:     fmt.Sprintf("sub_%d", h.nextID.Add(1)),
		cancel: cancel,
		notify: make(chan struct{}, 1),
	}

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return ErrHubStopped
	}
	h.subscribers[s.id] = s
	h.wg.Add(1)
	h.mu.Unlock()
	metrics.HubSubscribers.Inc()

	defer func() {
		h.Unsubscribe(s.id)
		metrics.HubSubscribers.Dec()
		h.wg.Done()
	}()

	if accepted != nil {
		accepted(s.id)
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Subscriber-Id", s.id)
	w.WriteHeader(http.StatusOK)
	flush(w)

	h.logger.Debug("subscriber connected", "id", s.id, "remote", r.RemoteAddr)

	heartbeat := time.NewTicker(h.opts.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-streamCtx.Done():
			if _, evicted := s.drain(); evicted {
				metrics.HubEvictionsTotal.Inc()
				h.logger.Warn("subscriber evicted", "id", s.id, "backlog", h.opts.Backlog)
				return ErrSubscriberEvicted
			}
			return nil
		case <-h.done:
			return nil
		case <-heartbeat.C:
			if err := writePing(w, time.Now()); err != nil {
				return err
			}
		case <-s.notify:
			pending, evicted := s.drain()
			if evicted {
				metrics.HubEvictionsTotal.Inc()
				return ErrSubscriberEvicted
			}
			for _, a := range pending {
				if err := writeAnnouncement(w, a); err != nil {
					return err
				}
			}
		}
	}
}

// Unsubscribe closes the named stream. It reports whether it was open.
func (h *Hub) Unsubscribe(id string) bool {
	h.mu.Lock()
	s, ok := h.subscribers[id]
	delete(h.subscribers, id)
	h.mu.Unlock()

	if ok {
		s.cancel()
	}
	return ok
}

// Subscribers returns the number of open streams.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Stop ends every stream and waits, bounded by ShutdownWait, for them to exit.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.mu.Lock()
		h.stopped = true
		for _, s := range h.subscribers {
			s.cancel()
		}
		h.mu.Unlock()
		close(h.done)

		done := make(chan struct{})
		go func() {
			h.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(h.opts.ShutdownWait):
			h.logger.Warn("hub stop timed out waiting for subscribers")
		}
	})
}

func writeAnnouncement(w http.ResponseWriter, a Announcement) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal announcement: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write announcement: %w", err)
	}
	flush(w)
	return nil
}

func writePing(w http.ResponseWriter, now time.Time) error {
	if _, err := fmt.Fprintf(w, "event: ping\ndata: %s\n\n", now.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to write heartbeat: %w", err)
	}
	flush(w)
	return nil
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// ObservedHost returns the host part of a "host:port" remote address, with
// IPv6 literals bracketed so the result can be used in a URL.
func ObservedHost(remoteAddr string) string {
	host := strings.TrimSpace(remoteAddr)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if host == "" {
		return ""
	}
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}

// RemoteAddr returns the address a registration is attributed to. When
// trustForwarded is set the first X-Forwarded-For hop wins.
func RemoteAddr(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}
	return r.RemoteAddr
}
