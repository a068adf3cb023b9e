package satellite

import (
	"context"
	"time"
)

// Driver advances a registry at a fixed frame rate and hands each batch of
// frames to a callback. The callback runs on the driver goroutine.
type Driver struct {
	registry *Registry
	interval time.Duration
	onFrame  func([]Frame)
	now      func() time.Time
}

// NewDriver creates a driver ticking fps times per second.
func NewDriver(registry *Registry, fps int, onFrame func([]Frame)) *Driver {
	if fps <= 0 {
		fps = 60
	}
	return &Driver{
		registry: registry,
		interval: time.Second / time.Duration(fps),
		onFrame:  onFrame,
		now:      time.Now,
	}
}

// Run ticks until ctx is done. Each tick advances interpolators by the wall
// time elapsed since the previous one.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	last := d.now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := d.now()
			frames := d.registry.Tick(now.Sub(last))
			last = now
			if d.onFrame != nil {
				d.onFrame(frames)
			}
		}
	}
}
