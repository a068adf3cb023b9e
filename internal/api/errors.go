//
//
package api

import (
	"errors"
	"net/http"

	"github.com/orbital-demo/satlink/internal/discovery"
)

// ErrBadRequest marks a request body the hub could not decode.
var ErrBadRequest = errors.New("BAD_REQUEST")

// StatusFor maps hub errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, discovery.ErrMalformedPayload),
		errors.Is(err, discovery.ErrInvalidTransport):
		return http.StatusBadRequest
	case errors.Is(err, discovery.ErrHubStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
