//
//
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/orbital-demo/satlink/internal/telemetry"
)

// sendBuffer is how many frames may queue for one socket before new ones are dropped.
const sendBuffer = 16

// Options configures a Server.
type Options struct {
	Name      string
	Transport string

	// Discovery hub base URL; empty disables self-registration
	HubURL        string
	RegisterDelay time.Duration

	PositionInterval time.Duration
	ColorInterval    time.Duration
	Altitude         float64

	AllowOrigin string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Server serves one simulated orbit over HTTP and WebSocket.
type Server struct {
	opts     Options
	orbit    *Orbit
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	sockets map[*socket]struct{}
}

// socket is one connected WebSocket peer. Frames are written by a single
// goroutine per connection.
type socket struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (s *socket) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// NewServer creates a source server.
func NewServer(opts Options) *Server {
	if opts.PositionInterval <= 0 {
		opts.PositionInterval = 75 * time.Millisecond
	}
	if opts.ColorInterval <= 0 {
		opts.ColorInterval = time.Second
	}
	if opts.Altitude == 0 {
		opts.Altitude = 1.3
	}
	if opts.Transport == "" {
		opts.Transport = "ws"
	}
	if opts.AllowOrigin == "" {
		opts.AllowOrigin = "*"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Server{
		opts:  opts,
		orbit: NewOrbit(opts.Altitude),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  opts.Logger.With("source", opts.Name),
		sockets: make(map[*socket]struct{}),
	}
}

// Orbit returns the simulated orbit.
func (s *Server) Orbit() *Orbit {
	return s.orbit
}

// Health returns the intervals the server advertises.
func (s *Server) Health() telemetry.Health {
	return telemetry.Health{
		Position: s.opts.PositionInterval,
		Color:    s.opts.ColorInterval,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/position", s.handlePosition)
	mux.HandleFunc("/color", s.handleColor)
	mux.HandleFunc("/couleur", s.handleColor)
	mux.HandleFunc("/", s.handleUpgrade)
	return mux
}

// ListenAndServe runs the simulation, serves on addr and announces the source
// to the hub until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener. ln is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{Handler: s.Handler()}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()
	s.logger.Info("source listening", "addr", ln.Addr().String(), "transport", s.opts.Transport)

	go s.Simulate(ctx)

	if s.opts.HubURL != "" {
		go func() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.opts.RegisterDelay):
			}
			if err := Register(ctx, s.opts.HTTPClient, s.opts.HubURL, s.opts.Name, s.opts.Transport); err != nil {
				s.logger.Error("registration failed", "hub", s.opts.HubURL, "error", err)
				return
			}
			s.logger.Info("registered with hub", "hub", s.opts.HubURL)
		}()
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.closeSockets()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown source server: %w", err)
	}
	return nil
}

// Simulate advances the orbit and pushes frames to every socket until ctx is done.
func (s *Server) Simulate(ctx context.Context) {
	positionTicker := time.NewTicker(s.opts.PositionInterval)
	defer positionTicker.Stop()
	colorTicker := time.NewTicker(s.opts.ColorInterval)
	defer colorTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-positionTicker.C:
			s.broadcast(telemetry.PositionUpdate(s.orbit.Step()))
		case <-colorTicker.C:
			s.broadcast(telemetry.ColorUpdate(s.orbit.Recolor()))
		}
	}
}

func (s *Server) broadcast(update telemetry.Update) {
	frame, err := telemetry.EncodeFrame(update)
	if err != nil {
		s.logger.Error("failed to encode frame", "kind", update.Kind, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for sock := range s.sockets {
		select {
		case sock.send <- frame:
		default:
			s.logger.Debug("dropping frame for slow socket", "remote", sock.conn.RemoteAddr())
		}
	}
}

// Sockets returns the number of connected WebSocket peers.
func (s *Server) Sockets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sockets)
}

func (s *Server) closeSockets() {
	s.mu.Lock()
	socks := make([]*socket, 0, len(s.sockets))
	for sock := range s.sockets {
		socks = append(socks, sock)
	}
	s.mu.Unlock()

	for _, sock := range socks {
		sock.close()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body, err := telemetry.EncodeHealth(s.Health())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, body)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	body, err := json.Marshal(s.orbit.Position())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, body)
}

func (s *Server) handleColor(w http.ResponseWriter, r *http.Request) {
	body, err := json.Marshal(s.orbit.Color())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, body)
}

func (s *Server) writeJSON(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", s.opts.AllowOrigin)
	_, _ = w.Write(body)
}

// handleUpgrade turns any other request into a WebSocket feed.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "not found", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	sock := &socket{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	hello, err := telemetry.EncodeFrame(telemetry.HealthUpdate(s.Health()))
	if err == nil {
		sock.send <- hello
	}

	s.mu.Lock()
	s.sockets[sock] = struct{}{}
	s.mu.Unlock()
	s.logger.Debug("socket connected", "remote", r.RemoteAddr)

	go s.writeLoop(sock)
	s.readLoop(sock)
}

// readLoop discards inbound messages and unregisters the socket when the peer leaves.
func (s *Server) readLoop(sock *socket) {
	defer func() {
		s.mu.Lock()
		delete(s.sockets, sock)
		s.mu.Unlock()
		sock.close()
		s.logger.Debug("socket disconnected", "remote", sock.conn.RemoteAddr())
	}()

	for {
		if _, _, err := sock.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeLoop(sock *socket) {
	for {
		select {
		case <-sock.done:
			return
		case frame := <-sock.send:
			if err := sock.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				sock.close()
				return
			}
		}
	}
}
