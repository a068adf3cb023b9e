// Package api is the HTTP surface of the discovery hub.
//
// Sources announce themselves with POST /register, clients follow GET /events
// as a server-sent event stream, and operators read /health and /metrics.
package api
