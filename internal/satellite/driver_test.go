package satellite

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/orbital-demo/satlink/internal/telemetry"
)

func TestDriverTicksUntilCancelled(t *testing.T) {
	r := newTestRegistry(t, Options{})
	server := idleSource(t)
	r.Validate("sat1", server.URL)
	entity, _ := r.Get("sat1")
	entity.Apply(telemetry.PositionUpdate(telemetry.Vector3{Y: 1}))

	var batches atomic.Int32
	var last atomic.Value
	d := NewDriver(r, 100, func(frames []Frame) {
		batches.Add(1)
		last.Store(frames)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := d.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
	if batches.Load() == 0 {
		t.Fatal("Expected at least one frame batch")
	}
	frames := last.Load().([]Frame)
	if len(frames) != 1 || frames[0].Position != (telemetry.Vector3{Y: 1}) {
		t.Errorf("Expected interpolation to settle on the update, got %+v", frames)
	}
}
