// Package proc reads process ancestry from the proc filesystem.
// It is used to walk from a notifying helper process up to the
// application process that owns a window.
package proc
