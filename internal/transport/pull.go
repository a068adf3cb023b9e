package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/orbital-demo/satlink/internal/metrics"
	"github.com/orbital-demo/satlink/internal/telemetry"
)

// maxBody bounds a single poll response.
const maxBody = 64 << 10

// channel is one independently polled endpoint. At most one request is in
// flight per channel; issuing a new one cancels its predecessor.
type channel struct {
	kind telemetry.Kind
	path string

	mu       sync.Mutex
	seq      uint64
	cancel   context.CancelFunc
	inflight bool
}

// Pull polls a source over HTTP. Position and color are polled on separate
// tickers whose intervals come from the source's /health probe.
type Pull struct {
	base   *url.URL
	sink   Sink
	client *http.Client
	opts   Options
	logger *slog.Logger

	position *channel
	color    *channel

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	stopped bool
	polling bool
	health  telemetry.Health

	wg sync.WaitGroup
}

func newPull(u *url.URL, sink Sink, opts Options, logger *slog.Logger) *Pull {
	return &Pull{
		base:     u,
		sink:     sink,
		client:   opts.HTTPClient,
		opts:     opts,
		logger:   logger,
		position: &channel{kind: telemetry.KindPosition, path: "/position"},
		color:    &channel{kind: telemetry.KindColor, path: "/color"},
	}
}

func (p *Pull) isAdapter() {}

// Transport returns KindPull.
func (p *Pull) Transport() Kind { return KindPull }

// Health returns the intervals in use, zero until the probe has completed.
func (p *Pull) Health() telemetry.Health {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.health
}

// Polling reports whether the channel tickers are armed.
func (p *Pull) Polling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polling
}

// Start probes the source and arms both channels in the background.
func (p *Pull) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	p.mu.Unlock()

	go p.run(ctx)
}

// Stop cancels every in-flight request, disarms both channels and waits for
// them to exit.
func (p *Pull) Stop() {
	if p.halt() {
		p.wg.Wait()
	}
}

func (p *Pull) halt() bool {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return false
	}
	p.stopped = true
	p.polling = false
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()

	p.position.abort()
	p.color.abort()
	return true
}

func (p *Pull) isStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

func (p *Pull) run(ctx context.Context) {
	defer p.wg.Done()

	health, err := p.probe(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if !p.opts.ProbeFallback {
			p.logger.Warn("capability probe failed, polling abandoned", "error", err)
			return
		}
		p.logger.Warn("capability probe failed, polling with defaults", "error", err)
	}

	if health.Position <= 0 {
		health.Position = p.opts.PositionInterval
	}
	if health.Color <= 0 {
		health.Color = p.opts.ColorInterval
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.health = health
	p.polling = true
	p.wg.Add(2)
	p.mu.Unlock()

	p.sink.Apply(telemetry.HealthUpdate(health))
	p.logger.Info("polling", "position", health.Position, "color", health.Color)

	go p.loop(ctx, p.position, health.Position)
	go p.loop(ctx, p.color, health.Color)
}

// probe asks the source for its preferred intervals.
func (p *Pull) probe(ctx context.Context) (telemetry.Health, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint("/health"), nil)
	if err != nil {
		return telemetry.Health{}, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return telemetry.Health{}, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return telemetry.Health{}, fmt.Errorf("%w: status %d", ErrProbeFailed, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return telemetry.Health{}, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	health, err := telemetry.DecodeHealth(body)
	if err != nil {
		return telemetry.Health{}, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	return health, nil
}

func (p *Pull) loop(ctx context.Context, ch *channel, interval time.Duration) {
	defer p.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ch.abort()
			return
		case <-ticker.C:
			p.poll(ctx, ch)
		}
	}
}

// poll supersedes the channel's in-flight request, if any, with a new one.
func (p *Pull) poll(ctx context.Context, ch *channel) {
	ch.mu.Lock()
	if ch.inflight {
		ch.cancel()
		metrics.RecordSuperseded(ch.kind.String())
	}
	ch.seq++
	seq := ch.seq

	var reqCtx context.Context
	var cancel context.CancelFunc
	if p.opts.RequestTimeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, p.opts.RequestTimeout)
	} else {
		reqCtx, cancel = context.WithCancel(ctx)
	}
	ch.cancel = cancel
	ch.inflight = true
	ch.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()
		p.fetch(reqCtx, ch, seq)
	}()
}

func (p *Pull) fetch(ctx context.Context, ch *channel, seq uint64) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(ch.path), nil)
	if err != nil {
		p.channelFailed(ch, seq, err)
		return
	}
	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		p.channelFailed(ch, seq, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.logger.Debug("no update this tick", "channel", ch.kind.String(), "status", resp.StatusCode)
		ch.settle(seq)
		return
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		p.channelFailed(ch, seq, err)
		return
	}

	update, err := decodeBody(ch.kind, body)
	if err != nil {
		p.logger.Warn("malformed response", "channel", ch.kind.String(), "error", err)
		ch.settle(seq)
		return
	}
	metrics.RecordRequestDuration(ch.kind.String(), time.Since(start).Seconds())

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if seq != ch.seq {
		return
	}
	ch.inflight = false
	if p.isStopped() {
		return
	}
	p.sink.Apply(update)
	metrics.RecordUpdate(KindPull.String(), update.Kind.String())
}

// channelFailed handles a transport failure. A failing position channel means
// the source is gone; a failing color channel is only logged.
func (p *Pull) channelFailed(ch *channel, seq uint64, err error) {
	if !ch.settle(seq) || p.isStopped() {
		return
	}

	p.logger.Warn("request failed", "channel", ch.kind.String(), "error", err)
	metrics.RecordChannelError(KindPull.String(), ch.kind.String())

	if ch.kind != telemetry.KindPosition {
		return
	}
	if !p.halt() {
		return
	}
	p.sink.Gone(fmt.Errorf("%w: %w", ErrSourceGone, &ChannelError{Channel: ch.kind, Err: err}))
}

func (p *Pull) endpoint(path string) string {
	u := *p.base
	u.Path = p.base.Path + path
	u.RawQuery = ""
	return u.String()
}

// settle marks request seq complete and reports whether it was still current.
func (ch *channel) settle(seq uint64) bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if seq != ch.seq {
		return false
	}
	ch.inflight = false
	return true
}

func (ch *channel) abort() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.inflight {
		ch.cancel()
		ch.inflight = false
	}
	ch.seq++
}

func decodeBody(kind telemetry.Kind, body []byte) (telemetry.Update, error) {
	switch kind {
	case telemetry.KindPosition:
		var v telemetry.Vector3
		if err := json.Unmarshal(body, &v); err != nil {
			return telemetry.Update{}, err
		}
		return telemetry.PositionUpdate(v), nil
	case telemetry.KindColor:
		var c telemetry.RGB
		if err := json.Unmarshal(body, &c); err != nil {
			return telemetry.Update{}, err
		}
		return telemetry.ColorUpdate(c), nil
	default:
		return telemetry.Update{}, fmt.Errorf("%w: no endpoint for %s", telemetry.ErrMalformed, kind)
	}
}
