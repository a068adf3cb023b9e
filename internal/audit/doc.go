// Package audit implements the append-only audit log of the discovery hub.
//
// Every registration attempt and every event stream opened or closed is written
// as one JSON line to audit.jsonl, rotated by size.
package audit
