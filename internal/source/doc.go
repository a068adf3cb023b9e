// Package source is a demo telemetry source.
//
// It simulates one orbiting object and serves it both ways a client can
// follow it: GET /position and /color for polling, and a WebSocket that
// pushes tagged frames. On start it can announce itself to a discovery hub.
package source
