// Package discovery implements the Discovery Hub and its client-side Listener.
//
// Sources POST {name, type} to the hub, which turns the caller's observed
// address into a connection URL and announces {name, url} to every open event
// stream. Streams also carry an idle heartbeat so intermediaries keep them
// open. There is no replay: a stream only sees announcements made while it is
// connected.
package discovery
