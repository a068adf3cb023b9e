package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/orbital-demo/satlink/internal/telemetry"
)

// Kind identifies the transport variant of an adapter.
type Kind int

const (
	KindPush Kind = iota
	KindPull
)

func (k Kind) String() string {
	switch k {
	case KindPush:
		return "push"
	case KindPull:
		return "pull"
	default:
		return "unknown"
	}
}

// Sink receives everything an adapter observes.
type Sink interface {
	// Apply is called for every decoded update.
	Apply(update telemetry.Update)

	// Gone is called at most once when the source is considered permanently lost.
	// It is never called as a result of Stop.
	Gone(err error)
}

// Adapter is implemented by *Push and *Pull only.
type Adapter interface {
	Transport() Kind

	// Start begins I/O in the background. It returns immediately.
	Start(ctx context.Context)

	// Stop halts all I/O. After the first call returns no further updates are
	// delivered. Stop is idempotent.
	Stop()

	isAdapter()
}

// Options configures adapter construction. Zero values fall back to Defaults().
type Options struct {
	DefaultPort int

	PositionInterval time.Duration
	ColorInterval    time.Duration

	ProbeTimeout   time.Duration
	RequestTimeout time.Duration
	DialTimeout    time.Duration

	// Poll with default intervals when the probe fails instead of abandoning.
	ProbeFallback bool

	HTTPClient *http.Client
	Dialer     *websocket.Dialer
	Logger     *slog.Logger
}

// Defaults returns the options the client uses without configuration.
func Defaults() Options {
	return Options{
		DefaultPort:      7192,
		PositionInterval: 200 * time.Millisecond,
		ColorInterval:    time.Second,
		ProbeTimeout:     5 * time.Second,
		RequestTimeout:   5 * time.Second,
		DialTimeout:      10 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := Defaults()
	if o.DefaultPort <= 0 {
		o.DefaultPort = d.DefaultPort
	}
	if o.PositionInterval <= 0 {
		o.PositionInterval = d.PositionInterval
	}
	if o.ColorInterval <= 0 {
		o.ColorInterval = d.ColorInterval
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = d.ProbeTimeout
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = d.DialTimeout
	}
	if o.HTTPClient == nil {
		o.HTTPClient = http.DefaultClient
	}
	if o.Dialer == nil {
		dialer := *websocket.DefaultDialer
		dialer.HandshakeTimeout = o.DialTimeout
		o.Dialer = &dialer
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Resolve parses rawURL, selects the transport kind from its scheme and adds
// defaultPort when the URL carries none.
func Resolve(rawURL string, defaultPort int) (*url.URL, Kind, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnsupportedScheme, err)
	}

	var kind Kind
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
		kind = KindPush
	case "http", "https":
		kind = KindPull
	default:
		return nil, 0, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, 0, fmt.Errorf("%w: missing host in %q", ErrUnsupportedScheme, rawURL)
	}

	if u.Port() == "" && defaultPort > 0 {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(defaultPort))
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u, kind, nil
}

// New builds the adapter matching the URL scheme. The adapter does nothing
// until Start is called.
func New(rawURL string, sink Sink, opts Options) (Adapter, error) {
	if sink == nil {
		return nil, fmt.Errorf("sink cannot be nil")
	}
	opts = opts.withDefaults()

	u, kind, err := Resolve(rawURL, opts.DefaultPort)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger.With("source", u.String(), "transport", kind.String())
	switch kind {
	case KindPush:
		return newPush(u, sink, opts, logger), nil
	default:
		return newPull(u, sink, opts, logger), nil
	}
}
