// Package events merges notifications, window snapshots and workspace
// changes into one ordered feed for a single consumer.
//
// Producers push into an unbounded queue and never block on a slow
// consumer. Workspace changes pass through a Gate and are dropped until the
// consumer has seen some other event first.
package events
