package satellite

import (
	"sync"
	"time"

	"github.com/orbital-demo/satlink/internal/interp"
	"github.com/orbital-demo/satlink/internal/telemetry"
	"github.com/orbital-demo/satlink/internal/transport"
)

// Frame is the interpolated appearance of one entity at one animation tick.
type Frame struct {
	Name     string            `json:"name"`
	Position telemetry.Vector3 `json:"position"`
	Color    telemetry.RGB     `json:"color"`
}

// Entity is the client-side mirror of one telemetry source.
type Entity struct {
	name      string
	url       string
	transport transport.Kind

	mu           sync.Mutex
	state        telemetry.State
	history      []telemetry.Vector3
	historyLimit int
	health       telemetry.Health
	updated      time.Time
	position     *interp.Interpolator[telemetry.Vector3]
	color        *interp.Interpolator[telemetry.RGB]

	adapter transport.Adapter
	onGone  func(err error)

	cleanupOnce sync.Once
	onDestroy   func()
}

func newEntity(name, url string, kind transport.Kind, opts Options) *Entity {
	state := telemetry.DefaultState()
	return &Entity{
		name:         name,
		url:          url,
		transport:    kind,
		state:        state,
		historyLimit: opts.HistoryLimit,
		position:     interp.New(state.Position, opts.Transport.PositionInterval, telemetry.LerpVector3, opts.Easing),
		color:        interp.New(state.Color, opts.Transport.ColorInterval, telemetry.LerpRGB, opts.Easing),
	}
}

// Name returns the unique registry key.
func (e *Entity) Name() string { return e.name }

// URL returns the source URL as validated.
func (e *Entity) URL() string { return e.url }

// Transport returns the adapter variant chosen for the source.
func (e *Entity) Transport() transport.Kind { return e.transport }

// Apply records an update from the adapter. Position and color updates mutate
// state and retarget their interpolator; health updates only resize the
// interpolation windows, and only for polled sources.
func (e *Entity) Apply(update telemetry.Update) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch update.Kind {
	case telemetry.KindPosition:
		e.state.Position = update.Position
		e.history = append(e.history, update.Position)
		if e.historyLimit > 0 && len(e.history) > e.historyLimit {
			n := copy(e.history, e.history[len(e.history)-e.historyLimit:])
			e.history = e.history[:n]
		}
		e.position.Retarget(update.Position)
	case telemetry.KindColor:
		e.state.Color = update.Color
		e.color.Retarget(update.Color)
	case telemetry.KindHealth:
		e.health = update.Health
		if e.transport == transport.KindPull {
			if update.Health.Position > 0 {
				e.position.SetWindow(update.Health.Position)
			}
			if update.Health.Color > 0 {
				e.color.SetWindow(update.Health.Color)
			}
		}
		return
	}
	e.updated = time.Now()
}

// Gone is invoked by the adapter when the source is lost for good.
func (e *Entity) Gone(err error) {
	if e.onGone != nil {
		e.onGone(err)
	}
}

// Snapshot returns the last reported state.
func (e *Entity) Snapshot() telemetry.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// History returns a copy of the position trail, oldest first.
func (e *Entity) History() []telemetry.Vector3 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]telemetry.Vector3(nil), e.history...)
}

// Health returns the last intervals reported by the source.
func (e *Entity) Health() telemetry.Health {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.health
}

// LastUpdate returns when the last position or color update was applied.
func (e *Entity) LastUpdate() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updated
}

// Windows returns the current position and color interpolation windows.
func (e *Entity) Windows() (position, color time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position.Window(), e.color.Window()
}

// Frame samples both interpolators without advancing them.
func (e *Entity) Frame() Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Frame{Name: e.name, Position: e.position.Value(), Color: e.color.Value()}
}

func (e *Entity) tick(dt time.Duration) Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Frame{Name: e.name, Position: e.position.Tick(dt), Color: e.color.Tick(dt)}
}

// cleanup stops the adapter and runs the destructor once. It must not be
// called with e.mu held.
func (e *Entity) cleanup() {
	e.cleanupOnce.Do(func() {
		if e.adapter != nil {
			e.adapter.Stop()
		}
		if e.onDestroy != nil {
			e.onDestroy()
		}
	})
}
