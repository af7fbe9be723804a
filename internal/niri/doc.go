// Package niri talks to the niri compositor over its IPC socket.
//
// Requests and replies are single JSON lines. The event stream is a
// long-lived connection that emits one JSON object per line after the
// initial reply; Tracker folds those events into window snapshots.
package niri
