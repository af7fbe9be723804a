package core

import (
	"sort"
	"strings"

	"github.com/jmylchreest/niriurgent/internal/model"
)

// SortField represents a field to sort by.
type SortField string

const (
	SortByTimestamp SortField = "timestamp"
	SortByApp       SortField = "app"
	SortByStrategy  SortField = "strategy"
)

// SortOrder represents ascending or descending order.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SortOptions specifies sorting criteria.
type SortOptions struct {
	Field SortField
	Order SortOrder
}

// DefaultSortOptions returns default sort options (newest first).
func DefaultSortOptions() SortOptions {
	return SortOptions{
		Field: SortByTimestamp,
		Order: SortDesc,
	}
}

// strategyRank orders strategies from most to least precise.
func strategyRank(s model.Strategy) int {
	switch s {
	case model.StrategyPID:
		return 0
	case model.StrategyDesktopEntry:
		return 1
	case model.StrategyFuzzy:
		return 2
	default:
		return 3
	}
}

// Sort sorts records in place. Ties keep their log order.
func Sort(records []model.AttributionRecord, opts SortOptions) {
	if len(records) == 0 {
		return
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if opts.Order == SortDesc {
			a, b = b, a
		}

		switch opts.Field {
		case SortByApp:
			return strings.ToLower(a.AppName) < strings.ToLower(b.AppName)
		case SortByStrategy:
			return strategyRank(a.Strategy) < strategyRank(b.Strategy)
		default:
			return a.Timestamp < b.Timestamp
		}
	})
}

// ParseSortField parses a sort field string.
func ParseSortField(s string) (SortField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "timestamp", "time", "t":
		return SortByTimestamp, nil
	case "app", "appname", "a":
		return SortByApp, nil
	case "strategy", "s":
		return SortByStrategy, nil
	default:
		return SortByTimestamp, nil
	}
}

// ParseSortOrder parses a sort order string.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending", "a":
		return SortAsc, nil
	default:
		return SortDesc, nil
	}
}
