// Package satellite keeps the client-side view of every telemetry source.
//
// The Registry owns one Entity per source name. Each Entity owns its transport
// adapter and the interpolators that smooth its position and color between
// updates. The Driver advances every interpolator at a fixed frame rate, and
// the Directory persists the [name, url] list so the registry can be restored
// without a hub.
package satellite
