package transport

import (
	"errors"
	"fmt"

	"github.com/orbital-demo/satlink/internal/telemetry"
)

var (
	ErrUnsupportedScheme = errors.New("UNSUPPORTED_SCHEME")
	ErrProbeFailed       = errors.New("PROBE_FAILED")
	ErrSourceGone        = errors.New("SOURCE_GONE")
)

// ChannelError reports a transport failure on one telemetry channel.
type ChannelError struct {
	Channel telemetry.Kind
	Err     error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("%s channel: %v", e.Channel, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}
