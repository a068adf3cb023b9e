package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/orbital-demo/satlink/internal/telemetry"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// wsServer runs handler for every upgraded connection.
func wsServer(t *testing.T, handler func(conn *websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(server.Close)
	return server, "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestPushAppliesFramesAndIgnoresMalformed(t *testing.T) {
	_, url := wsServer(t, func(conn *websocket.Conn) {
		frames := []string{
			`{"type":"health","position":75,"couleur":1000}`,
			`not json`,
			`{"position":[9,9,9]}`,
			`{"type":"position","position":[1,2]}`,
			`{"type":"position","position":[0.5,1.3,0]}`,
			`{"type":"couleur","couleur":[255,127,0]}`,
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		time.Sleep(50 * time.Millisecond)
	})

	sink := &recordingSink{}
	a, err := New(url, sink, testOptions())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	a.Start(context.Background())
	defer a.Stop()

	waitFor(t, 2*time.Second, func() bool {
		_, gone := sink.snapshot()
		return len(gone) == 1
	}, "source gone")

	updates, gone := sink.snapshot()
	if len(updates) != 3 {
		t.Fatalf("Expected 3 updates, got %d: %+v", len(updates), updates)
	}
	if updates[0].Kind != telemetry.KindHealth || updates[0].Health.Position != 75*time.Millisecond {
		t.Errorf("Expected health first, got %+v", updates[0])
	}
	if updates[1].Kind != telemetry.KindPosition || updates[1].Position != (telemetry.Vector3{X: 0.5, Y: 1.3, Z: 0}) {
		t.Errorf("Unexpected position update %+v", updates[1])
	}
	if updates[2].Kind != telemetry.KindColor || updates[2].Color != (telemetry.RGB{R: 255, G: 127, B: 0}) {
		t.Errorf("Unexpected color update %+v", updates[2])
	}
	if !errors.Is(gone[0], ErrSourceGone) {
		t.Errorf("Expected ErrSourceGone, got %v", gone[0])
	}
	if h := a.(*Push).Health(); h.Color != time.Second {
		t.Errorf("Expected recorded color interval 1s, got %v", h.Color)
	}
}

func TestPushStopDoesNotReportGone(t *testing.T) {
	release := make(chan struct{})
	_, url := wsServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"position","position":[1,1,1]}`))
		<-release
	})
	defer close(release)

	sink := &recordingSink{}
	a, err := New(url, sink, testOptions())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	a.Start(context.Background())

	waitFor(t, 2*time.Second, func() bool {
		return len(sink.ofKind(telemetry.KindPosition)) == 1
	}, "first position")

	a.Stop()
	a.Stop()

	time.Sleep(20 * time.Millisecond)
	if _, gone := sink.snapshot(); len(gone) != 0 {
		t.Errorf("Stop must not report gone, got %v", gone)
	}
}

func TestPushDialFailureReportsGone(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	server.Close()

	sink := &recordingSink{}
	a, err := New(url, sink, testOptions())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	a.Start(context.Background())
	defer a.Stop()

	waitFor(t, 2*time.Second, func() bool {
		_, gone := sink.snapshot()
		return len(gone) == 1
	}, "dial failure")

	if _, gone := sink.snapshot(); !errors.Is(gone[0], ErrSourceGone) {
		t.Errorf("Expected ErrSourceGone, got %v", gone[0])
	}
}

func TestPushServerDropReportsGoneOnce(t *testing.T) {
	_, url := wsServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"position","position":[1,1,1]}`))
	})

	sink := &recordingSink{}
	a, err := New(url, sink, testOptions())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	a.Start(context.Background())

	waitFor(t, 2*time.Second, func() bool {
		_, gone := sink.snapshot()
		return len(gone) == 1
	}, "source gone")

	a.Stop()
	time.Sleep(20 * time.Millisecond)
	if _, gone := sink.snapshot(); len(gone) != 1 {
		t.Errorf("Expected exactly one gone report, got %d", len(gone))
	}
}
