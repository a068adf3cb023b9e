//
//
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orbital-demo/satlink/internal/audit"
	"github.com/orbital-demo/satlink/internal/auth"
	"github.com/orbital-demo/satlink/internal/discovery"
)

// maxRegisterBody bounds a /register payload.
const maxRegisterBody = 4 << 10

// RegisterRoutes registers the hub endpoints on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/register", s.handleRegister)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	if s.opts.Auth == nil {
		mux.HandleFunc("/events", s.handleEvents)
		return
	}
	mux.HandleFunc("/events", s.opts.Auth.RequireAuth(s.opts.Auth.RequireScope(auth.ScopeEvents)(s.handleEvents)))
}

// handleRegister handles POST /register
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	switch r.Method {
	case http.MethodPost:
	case http.MethodOptions:
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusNoContent)
		return
	default:
		w.Header().Set("Allow", "POST, OPTIONS")
		WriteText(w, http.StatusMethodNotAllowed, "method not allowed, use POST")
		return
	}

	req, err := decodeRegisterRequest(r.Body)
	if err != nil {
		WriteText(w, StatusFor(err), err.Error())
		return
	}

	remote := discovery.RemoteAddr(r, s.opts.TrustForwardedFor)
	if _, err := s.hub.Register(r.Context(), req, remote); err != nil {
		WriteText(w, StatusFor(err), err.Error())
		return
	}

	WriteText(w, http.StatusOK, "ok")
}

func decodeRegisterRequest(body io.Reader) (discovery.RegisterRequest, error) {
	var req discovery.RegisterRequest
	dec := json.NewDecoder(io.LimitReader(body, maxRegisterBody))
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("%w: body must be a JSON object {\"type\":\"http|ws\",\"name\":\"...\"}: %v", ErrBadRequest, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return req, fmt.Errorf("%w: trailing data after JSON object", ErrBadRequest)
	}
	return req, nil
}

// handleEvents handles GET /events
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET method is allowed")
		return
	}

	remote := discovery.RemoteAddr(r, s.opts.TrustForwardedFor)

	err := s.hub.SubscribeNotify(r.Context(), w, r, func(string) {
		s.auditSubscription(r, audit.ActionSubscribe, remote, "opened")
	})
	switch {
	case errors.Is(err, discovery.ErrHubStopped):
		// Nothing was written yet.
		s.auditSubscription(r, audit.ActionSubscribe, remote, "refused")
		WriteError(w, http.StatusServiceUnavailable, "HUB_STOPPED", "Hub is shutting down")
		return
	case errors.Is(err, discovery.ErrSubscriberEvicted):
		s.auditSubscription(r, audit.ActionUnsubscribe, remote, "evicted")
	case err != nil:
		s.logger.Debug("event stream ended", "remote", remote, "error", err)
		s.auditSubscription(r, audit.ActionUnsubscribe, remote, "write_failed")
	default:
		s.auditSubscription(r, audit.ActionUnsubscribe, remote, "closed")
	}
}

func (s *Server) auditSubscription(r *http.Request, action, remote, outcome string) {
	if s.opts.Auditor != nil {
		s.opts.Auditor.LogSubscription(r.Context(), action, remote, outcome)
	}
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET method is allowed")
		return
	}

	WriteSuccess(w, map[string]any{
		"status":      "ok",
		"uptimeSec":   time.Since(s.startTime).Seconds(),
		"version":     Version,
		"subscribers": s.hub.Subscribers(),
	})
}
