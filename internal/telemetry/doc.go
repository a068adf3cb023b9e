// Package telemetry defines the domain types exchanged between telemetry sources
// and the client: positions, colors, reporting intervals and the tagged update
// frames that carry them.
//
// Wire formats:
//   - pull sources answer GET /position with [x,y,z] and GET /color with [r,g,b]
//   - push sources send {"type":"position"|"couleur"|"color"|"health", ...} frames
package telemetry
