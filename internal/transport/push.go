package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/orbital-demo/satlink/internal/metrics"
	"github.com/orbital-demo/satlink/internal/telemetry"
)

// Push follows a source over one WebSocket connection. There is no reconnect:
// a failed dial or a closed connection means the source is gone.
type Push struct {
	url    *url.URL
	sink   Sink
	dialer *websocket.Dialer
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	cancel  context.CancelFunc
	started bool
	stopped bool
	health  telemetry.Health

	wg sync.WaitGroup
}

func newPush(u *url.URL, sink Sink, opts Options, logger *slog.Logger) *Push {
	return &Push{
		url:    u,
		sink:   sink,
		dialer: opts.Dialer,
		opts:   opts,
		logger: logger,
	}
}

func (p *Push) isAdapter() {}

// Transport returns KindPush.
func (p *Push) Transport() Kind { return KindPush }

// Health returns the last intervals the source advertised.
func (p *Push) Health() telemetry.Health {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.health
}

// Start dials the source in the background.
func (p *Push) Start(ctx context.Context) {
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

// Stop closes the connection and waits for the reader to exit.
func (p *Push) Stop() {
	if p.halt() {
		p.wg.Wait()
	}
}

// halt marks the adapter stopped and releases its resources. It reports
// whether this call was the one that stopped it.
func (p *Push) halt() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	p.stopped = true
	if p.cancel != nil {
		p.cancel()
	}
	if p.conn != nil {
		p.conn.Close()
	}
	return true
}

func (p *Push) isStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

func (p *Push) run(ctx context.Context) {
	defer p.wg.Done()

	dialCtx, cancel := context.WithTimeout(ctx, p.opts.DialTimeout)
	conn, _, err := p.dialer.DialContext(dialCtx, p.url.String(), nil)
	cancel()
	if err != nil {
		if p.isStopped() {
			return
		}
		p.logger.Warn("dial failed", "error", err)
		metrics.RecordChannelError(KindPush.String(), telemetry.KindPosition.String())
		p.fail(fmt.Errorf("%w: dial: %v", ErrSourceGone, err))
		return
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		conn.Close()
		return
	}
	p.conn = conn
	p.mu.Unlock()

	p.logger.Info("connected")
	p.readLoop(conn)
}

func (p *Push) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if p.isStopped() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.logger.Info("source closed connection")
			} else {
				p.logger.Warn("read failed", "error", err)
				metrics.RecordChannelError(KindPush.String(), telemetry.KindPosition.String())
			}
			p.fail(fmt.Errorf("%w: %v", ErrSourceGone, err))
			return
		}

		update, err := telemetry.DecodeFrame(message)
		if err != nil {
			if errors.Is(err, telemetry.ErrMalformed) {
				p.logger.Debug("ignoring frame", "error", err)
			}
			continue
		}

		p.mu.Lock()
		if p.stopped {
			p.mu.Unlock()
			return
		}
		if update.Kind == telemetry.KindHealth {
			p.health = update.Health
		}
		p.mu.Unlock()

		p.sink.Apply(update)
		metrics.RecordUpdate(KindPush.String(), update.Kind.String())
	}
}

func (p *Push) fail(err error) {
	if !p.halt() {
		return
	}
	p.sink.Gone(err)
}
