package daemon

import (
	"slices"

	"github.com/jmylchreest/niriurgent/internal/config"
	"github.com/jmylchreest/niriurgent/internal/model"
)

// DisplayFilter restricts which windows count towards the status.
// The zero value shows every output.
type DisplayFilter struct {
	Output string
}

// ShowAll reports whether every output is shown.
func (f DisplayFilter) ShowAll() bool {
	return f.Output == ""
}

// Allows reports whether w passes the filter. Windows without a known
// output are always shown.
func (f DisplayFilter) Allows(w model.WindowInfo) bool {
	if f.ShowAll() || w.Output == nil {
		return true
	}
	return *w.Output == f.Output
}

// ChooseFilter picks the filter for the connected outputs. ok is false
// when a single output was requested but could not be honoured.
func ChooseFilter(cfg config.WindowsConfig, outputs []string) (filter DisplayFilter, ok bool) {
	if cfg.ShowAllOutputs || cfg.Output == "" || len(outputs) <= 1 {
		return DisplayFilter{}, true
	}
	if slices.Contains(outputs, cfg.Output) {
		return DisplayFilter{Output: cfg.Output}, true
	}
	return DisplayFilter{}, false
}
