// Package daemon provides the main orchestration for niriurgentd.
// It consumes the merged event feed, keeps the set of urgent windows,
// applies the output filter and publishes the Waybar status line.
package daemon
