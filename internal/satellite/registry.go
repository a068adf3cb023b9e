//
//
package satellite

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/orbital-demo/satlink/internal/interp"
	"github.com/orbital-demo/satlink/internal/metrics"
	"github.com/orbital-demo/satlink/internal/telemetry"
	"github.com/orbital-demo/satlink/internal/transport"
)

// Options configures a Registry.
type Options struct {
	Transport    transport.Options
	HistoryLimit int
	Easing       interp.Easing

	// Directory, when set, is rewritten after every validate and invalidate.
	Directory *Directory

	// OnDestroy is called once per entity after its adapter has stopped.
	OnDestroy func(name string)

	Logger *slog.Logger
}

// RemovedFunc observes entity removals. err is nil for explicit invalidation.
type RemovedFunc func(name string, err error)

// Registry owns every Entity, keyed by unique name.
type Registry struct {
	opts   Options
	logger *slog.Logger

	mu       sync.RWMutex
	entities map[string]*Entity
	order    []string
	hooks    []RemovedFunc
	closed   bool

	// persistMu serializes directory snapshots with their writes.
	persistMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	d := transport.Defaults()
	if opts.Transport.PositionInterval <= 0 {
		opts.Transport.PositionInterval = d.PositionInterval
	}
	if opts.Transport.ColorInterval <= 0 {
		opts.Transport.ColorInterval = d.ColorInterval
	}
	if opts.Transport.DefaultPort <= 0 {
		opts.Transport.DefaultPort = d.DefaultPort
	}
	if opts.Easing == nil {
		opts.Easing = interp.Linear
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Transport.Logger == nil {
		opts.Transport.Logger = opts.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		opts:     opts,
		logger:   opts.Logger,
		entities: make(map[string]*Entity),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// OnRemoved registers fn to run after an entity leaves the registry.
func (r *Registry) OnRemoved(fn RemovedFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Validate creates the entity for (name, url) and starts its adapter. It
// returns false without mutating anything if the name is empty or taken, or
// the URL scheme is unsupported.
func (r *Registry) Validate(name, url string) bool {
	if err := r.validate(name, url); err != nil {
		r.logger.Debug("validate rejected", "name", name, "url", url, "error", err)
		return false
	}
	return true
}

func (r *Registry) validate(name, url string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if _, _, err := transport.Resolve(url, r.opts.Transport.DefaultPort); err != nil {
		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return fmt.Errorf("registry closed")
	}
	if _, exists := r.entities[name]; exists {
		r.mu.Unlock()
		return fmt.Errorf("entity %s already exists", name)
	}

	entity := newEntity(name, url, transport.KindPush, r.opts)
	adapter, err := transport.New(url, entity, r.opts.Transport)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	entity.transport = adapter.Transport()
	entity.adapter = adapter
	entity.onGone = func(err error) { r.gone(entity, err) }
	if r.opts.OnDestroy != nil {
		entity.onDestroy = func() { r.opts.OnDestroy(name) }
	}

	r.entities[name] = entity
	r.order = append(r.order, name)
	r.mu.Unlock()

	metrics.RecordEntityAdded(entity.transport.String())
	r.logger.Info("entity added", "name", name, "url", url, "transport", entity.transport.String())

	adapter.Start(r.ctx)
	r.persist()
	return nil
}

// Invalidate stops and removes the named entity. It reports whether an entity
// was removed; invalidating an unknown name is a no-op.
func (r *Registry) Invalidate(name string) bool {
	entity := r.remove(name, nil)
	if entity == nil {
		return false
	}
	r.persist()
	r.notify(name, nil)
	return true
}

// gone removes entity after its source was lost. The directory is left alone
// so the source is retried on the next start.
func (r *Registry) gone(entity *Entity, err error) {
	if r.remove(entity.name, entity) == nil {
		return
	}
	r.logger.Warn("source gone, entity removed", "name", entity.name, "error", err)
	r.notify(entity.name, err)
}

// remove detaches name from the registry and cleans it up. When expect is
// non-nil the entry is removed only if it is still that instance.
func (r *Registry) remove(name string, expect *Entity) *Entity {
	r.mu.Lock()
	entity, ok := r.entities[name]
	if !ok || (expect != nil && entity != expect) {
		r.mu.Unlock()
		return nil
	}
	delete(r.entities, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
	r.mu.Unlock()

	entity.cleanup()
	metrics.RecordEntityRemoved(entity.transport.String())
	return entity
}

func (r *Registry) notify(name string, err error) {
	r.mu.RLock()
	hooks := slices.Clone(r.hooks)
	r.mu.RUnlock()

	for _, hook := range hooks {
		hook(name, err)
	}
}

// persist rewrites the directory from the current entries.
func (r *Registry) persist() {
	if r.opts.Directory == nil {
		return
	}
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	if err := r.opts.Directory.Save(r.Entries()); err != nil {
		r.logger.Error("failed to persist directory", "path", r.opts.Directory.Path(), "error", err)
	}
}

// Restore validates every persisted entry. Entries that fail validation are
// skipped. It returns the number of entities created.
func (r *Registry) Restore() (int, error) {
	if r.opts.Directory == nil {
		return 0, nil
	}
	entries, err := r.opts.Directory.Load()
	if err != nil {
		return 0, err
	}
	created := 0
	for _, e := range entries {
		if r.Validate(e.Name, e.URL) {
			created++
		}
	}
	return created, nil
}

// Get returns the named entity.
func (r *Registry) Get(name string) (*Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entity, ok := r.entities[name]
	return entity, ok
}

// Names returns all entity names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entities))
	for name := range r.entities {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Entries returns (name, url) pairs in insertion order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		entries = append(entries, Entry{Name: name, URL: r.entities[name].url})
	}
	return entries
}

// Len returns the number of live entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// Tick advances every interpolator by dt and returns one frame per entity,
// sorted by name.
func (r *Registry) Tick(dt time.Duration) []Frame {
	r.mu.RLock()
	entities := make([]*Entity, 0, len(r.entities))
	for _, e := range r.entities {
		entities = append(entities, e)
	}
	r.mu.RUnlock()

	frames := make([]Frame, 0, len(entities))
	for _, e := range entities {
		frames = append(frames, e.tick(dt))
	}
	slices.SortFunc(frames, func(a, b Frame) int { return strings.Compare(a.Name, b.Name) })
	return frames
}

// Pick returns the entity whose interpolated position is nearest along the ray
// from origin in direction dir, treating each entity as a sphere of radius.
func (r *Registry) Pick(origin, dir telemetry.Vector3, radius float64) (string, bool) {
	length := dir.Len()
	if length == 0 || radius <= 0 {
		return "", false
	}
	dir = dir.Scale(1 / length)

	best := math.Inf(1)
	var hit string
	for _, frame := range r.frames() {
		// Ray/sphere intersection with a normalized direction.
		oc := origin.Sub(frame.Position)
		b := oc.Dot(dir)
		c := oc.Dot(oc) - radius*radius
		disc := b*b - c
		if disc < 0 {
			continue
		}
		sq := math.Sqrt(disc)
		t := -b - sq
		if t < 0 {
			t = -b + sq
		}
		if t < 0 {
			continue
		}
		if t < best || (t == best && frame.Name < hit) {
			best, hit = t, frame.Name
		}
	}
	return hit, hit != ""
}

func (r *Registry) frames() []Frame {
	r.mu.RLock()
	defer r.mu.RUnlock()
	frames := make([]Frame, 0, len(r.entities))
	for _, e := range r.entities {
		frames = append(frames, e.Frame())
	}
	return frames
}

// Close stops every adapter and empties the registry. The directory is kept.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	entities := make([]*Entity, 0, len(r.entities))
	for _, e := range r.entities {
		entities = append(entities, e)
	}
	r.entities = make(map[string]*Entity)
	r.order = nil
	r.mu.Unlock()

	for _, e := range entities {
		e.cleanup()
		metrics.RecordEntityRemoved(e.transport.String())
	}
	r.cancel()
}
