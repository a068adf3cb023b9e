package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/orbital-demo/satlink/internal/logging"
	"github.com/orbital-demo/satlink/internal/telemetry"
)

// recordingSink captures everything an adapter reports.
type recordingSink struct {
	mu      sync.Mutex
	updates []telemetry.Update
	gone    []error
}

func (s *recordingSink) Apply(update telemetry.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, update)
}

func (s *recordingSink) Gone(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gone = append(s.gone, err)
}

func (s *recordingSink) snapshot() ([]telemetry.Update, []error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]telemetry.Update(nil), s.updates...), append([]error(nil), s.gone...)
}

func (s *recordingSink) ofKind(kind telemetry.Kind) []telemetry.Update {
	updates, _ := s.snapshot()
	var out []telemetry.Update
	for _, u := range updates {
		if u.Kind == kind {
			out = append(out, u)
		}
	}
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", msg)
}

func testOptions() Options {
	opts := Defaults()
	opts.Logger = logging.Discard()
	return opts
}

func TestResolve(t *testing.T) {
	tests := []struct {
		raw      string
		wantKind Kind
		wantURL  string
		wantErr  bool
	}{
		{"ws://10.0.0.5", KindPush, "ws://10.0.0.5:7192", false},
		{"wss://sat.example:9000", KindPush, "wss://sat.example:9000", false},
		{"http://10.0.0.6", KindPull, "http://10.0.0.6:7192", false},
		{"https://sat.example:8443/feed/", KindPull, "https://sat.example:8443/feed", false},
		{"ws://[::1]", KindPush, "ws://[::1]:7192", false},
		{"ftp://10.0.0.7", 0, "", true},
		{"10.0.0.7", 0, "", true},
		{"http://", 0, "", true},
		{"", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, kind, err := Resolve(tt.raw, 7192)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedScheme) {
					t.Fatalf("Expected ErrUnsupportedScheme, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() failed: %v", err)
			}
			if kind != tt.wantKind {
				t.Errorf("Expected kind %s, got %s", tt.wantKind, kind)
			}
			if u.String() != tt.wantURL {
				t.Errorf("Expected URL %q, got %q", tt.wantURL, u.String())
			}
		})
	}
}

func TestNewSelectsVariant(t *testing.T) {
	sink := &recordingSink{}

	a, err := New("ws://127.0.0.1:1", sink, testOptions())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if _, ok := a.(*Push); !ok || a.Transport() != KindPush {
		t.Errorf("Expected *Push, got %T", a)
	}

	a, err = New("http://127.0.0.1:1", sink, testOptions())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if _, ok := a.(*Pull); !ok || a.Transport() != KindPull {
		t.Errorf("Expected *Pull, got %T", a)
	}

	if _, err := New("udp://127.0.0.1:1", sink, testOptions()); !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("Expected ErrUnsupportedScheme, got %v", err)
	}
	if _, err := New("ws://127.0.0.1:1", nil, testOptions()); err == nil {
		t.Error("Expected error for nil sink")
	}
}

func TestStopBeforeStart(t *testing.T) {
	sink := &recordingSink{}
	for _, raw := range []string{"ws://127.0.0.1:1", "http://127.0.0.1:1"} {
		a, err := New(raw, sink, testOptions())
		if err != nil {
			t.Fatalf("New(%q) failed: %v", raw, err)
		}
		a.Stop()
		a.Stop()
		a.Start(context.Background())
	}
	time.Sleep(20 * time.Millisecond)
	if updates, gone := sink.snapshot(); len(updates) != 0 || len(gone) != 0 {
		t.Errorf("Expected no activity after Stop, got %d updates, %d gone", len(updates), len(gone))
	}
}

func TestChannelErrorUnwrap(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := error(&ChannelError{Channel: telemetry.KindColor, Err: cause})

	if !errors.Is(err, cause) {
		t.Error("ChannelError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "color channel") {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

// roundTripFunc lets tests script HTTP responses per request.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(r *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Request:    r,
	}
}
