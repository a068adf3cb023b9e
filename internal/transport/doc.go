// Package transport connects a telemetry entity to its remote source.
//
// An Adapter is chosen once from the source URL scheme: ws/wss sources are
// followed over a single WebSocket (Push), http/https sources are polled on two
// independent channels, one for position and one for color (Pull). Adapters
// report decoded updates and permanent failure through a Sink.
//
// Errors:
//   - ErrUnsupportedScheme: the URL is neither ws(s) nor http(s)
//   - ErrProbeFailed: the pull capability probe did not return usable intervals
//   - ErrSourceGone: the source closed the socket or stopped answering
//   - *ChannelError: a single channel failure, wrapping the cause
package transport
