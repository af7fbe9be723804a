// Package core provides filtering, sorting, and lookup over attribution records.
package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/niriurgent/internal/model"
)

// FilterOp represents a comparison operator.
type FilterOp string

const (
	FilterOpEqual     FilterOp = "="  // Exact match
	FilterOpNotEqual  FilterOp = "!=" // Not equal
	FilterOpContains  FilterOp = "~"  // Contains substring
	FilterOpRegex     FilterOp = "~=" // Regex match
	FilterOpGreater   FilterOp = ">"  // Greater than
	FilterOpLess      FilterOp = "<"  // Less than
	FilterOpGreaterEq FilterOp = ">=" // Greater than or equal
	FilterOpLessEq    FilterOp = "<=" // Less than or equal
)

// FilterCondition represents a single filter condition.
type FilterCondition struct {
	Field    string   // app, summary, entry, sender, strategy, pid, matched, timestamp
	Operator FilterOp // Comparison operator
	Value    string   // Value to compare against

	regex       *regexp.Regexp
	intVal      int
	timestampOp time.Time
	boolVal     bool
}

// FilterExpr is a set of conditions ANDed together.
type FilterExpr struct {
	Conditions []FilterCondition
}

// FilterOptions specifies criteria for filtering records.
type FilterOptions struct {
	Since       time.Duration   // Only records newer than now-since (0=all)
	App         string          // Exact match on app name
	Strategy    *model.Strategy // Only records matched by this strategy (nil=any)
	MatchedOnly bool            // Drop records that marked no window
	Limit       int             // Maximum results (0=unlimited)
}

// Filter filters records based on the provided options.
func Filter(records []model.AttributionRecord, opts FilterOptions) []model.AttributionRecord {
	cutoff := time.Now().Add(-opts.Since)
	result := make([]model.AttributionRecord, 0, len(records))

	for _, r := range records {
		if opts.Since > 0 && r.TimestampTime().Before(cutoff) {
			continue
		}
		if opts.App != "" && r.AppName != opts.App {
			continue
		}
		if opts.Strategy != nil && r.Strategy != *opts.Strategy {
			continue
		}
		if opts.MatchedOnly && !r.Matched() {
			continue
		}
		result = append(result, r)
	}

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result
}

// ParseDuration parses a duration string with extended formats.
// Supports: 48h, 7d, 1w, 0 (all time)
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if s == "0" || s == "" {
		return 0, nil
	}

	if daysStr, found := strings.CutSuffix(s, "d"); found {
		days, err := strconv.Atoi(daysStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	if weeksStr, found := strings.CutSuffix(s, "w"); found {
		weeks, err := strconv.Atoi(weeksStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(weeks) * 7 * 24 * time.Hour, nil
	}

	return time.ParseDuration(s)
}

// ParseStrategy parses a strategy name. "none" selects unmatched records.
func ParseStrategy(s string) (model.Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pid", "process":
		return model.StrategyPID, nil
	case "desktop-entry", "desktop_entry", "entry", "exact":
		return model.StrategyDesktopEntry, nil
	case "fuzzy":
		return model.StrategyFuzzy, nil
	case "none", "":
		return model.StrategyNone, nil
	default:
		return "", fmt.Errorf("invalid strategy: %s (use pid, desktop-entry, fuzzy, or none)", s)
	}
}

// ParseFilter parses a filter expression string into a FilterExpr.
// Format: "field=value,field2~value2,field3>value3"
//
// Examples:
//   - "app=Slack" - exact app name match
//   - "strategy=fuzzy" - records matched only by fuzzy app_id comparison
//   - "matched=false,timestamp>1h" - unattributed notifications from the last hour
//   - "summary~=(?i)build (failed|passed)" - regex on the summary
func ParseFilter(expr string) (*FilterExpr, error) {
	filter := &FilterExpr{}
	if expr == "" {
		return filter, nil
	}

	for part := range strings.SplitSeq(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		cond, err := parseCondition(part)
		if err != nil {
			return nil, err
		}
		filter.Conditions = append(filter.Conditions, cond)
	}

	return filter, nil
}

// parseCondition parses a single condition like "app=discord".
func parseCondition(s string) (FilterCondition, error) {
	// Longest operators first so "!=" is not read as "=".
	operators := []FilterOp{
		FilterOpNotEqual,
		FilterOpGreaterEq,
		FilterOpLessEq,
		FilterOpRegex,
		FilterOpEqual,
		FilterOpContains,
		FilterOpGreater,
		FilterOpLess,
	}

	for _, op := range operators {
		idx := strings.Index(s, string(op))
		if idx > 0 {
			cond := FilterCondition{
				Field:    strings.ToLower(strings.TrimSpace(s[:idx])),
				Operator: op,
				Value:    strings.TrimSpace(s[idx+len(op):]),
			}
			if err := cond.init(); err != nil {
				return FilterCondition{}, err
			}
			return cond, nil
		}
	}

	return FilterCondition{}, fmt.Errorf("invalid filter condition: %s (missing operator)", s)
}

// init normalizes the field name and pre-parses the value.
func (c *FilterCondition) init() error {
	switch c.Field {
	case "app", "app_name", "appname":
		c.Field = "app"
	case "summary", "title":
		c.Field = "summary"
	case "entry", "desktop_entry", "desktop-entry":
		c.Field = "entry"
	case "sender":
	case "strategy", "via":
		c.Field = "strategy"
		strategy, err := ParseStrategy(c.Value)
		if err != nil {
			return err
		}
		c.Value = string(strategy)
	case "pid":
		n, err := strconv.Atoi(c.Value)
		if err != nil {
			return fmt.Errorf("invalid pid value: %s", c.Value)
		}
		c.intVal = n
	case "matched":
		c.boolVal = parseBool(c.Value)
	case "timestamp", "time", "ts":
		c.Field = "timestamp"
		dur, err := ParseDuration(c.Value)
		if err != nil {
			return fmt.Errorf("invalid timestamp value: %w", err)
		}
		c.timestampOp = time.Now().Add(-dur)
	default:
		return fmt.Errorf("unknown filter field: %s", c.Field)
	}

	if c.Operator == FilterOpRegex {
		re, err := regexp.Compile(c.Value)
		if err != nil {
			return fmt.Errorf("invalid regex: %w", err)
		}
		c.regex = re
	}

	return nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1", "y", "t":
		return true
	default:
		return false
	}
}

// Match tests if a record matches every condition.
func (f *FilterExpr) Match(r model.AttributionRecord) bool {
	for _, cond := range f.Conditions {
		if !cond.Match(r) {
			return false
		}
	}
	return true
}

// Match tests if a record matches this single condition.
func (c *FilterCondition) Match(r model.AttributionRecord) bool {
	switch c.Field {
	case "app":
		return c.matchString(r.AppName)
	case "summary":
		return c.matchString(r.Summary)
	case "entry":
		return c.matchString(r.DesktopEntry)
	case "sender":
		return c.matchString(r.Sender)
	case "strategy":
		return c.matchString(string(r.Strategy))
	case "pid":
		return c.matchInt(r.PID)
	case "matched":
		return c.matchBool(r.Matched())
	case "timestamp":
		return c.matchTimestamp(r.TimestampTime())
	default:
		return false
	}
}

func (c *FilterCondition) matchString(fieldValue string) bool {
	switch c.Operator {
	case FilterOpEqual:
		return fieldValue == c.Value
	case FilterOpNotEqual:
		return fieldValue != c.Value
	case FilterOpContains:
		return strings.Contains(strings.ToLower(fieldValue), strings.ToLower(c.Value))
	case FilterOpRegex:
		return c.regex != nil && c.regex.MatchString(fieldValue)
	default:
		return false
	}
}

func (c *FilterCondition) matchInt(fieldValue int) bool {
	switch c.Operator {
	case FilterOpEqual:
		return fieldValue == c.intVal
	case FilterOpNotEqual:
		return fieldValue != c.intVal
	case FilterOpGreater:
		return fieldValue > c.intVal
	case FilterOpLess:
		return fieldValue < c.intVal
	case FilterOpGreaterEq:
		return fieldValue >= c.intVal
	case FilterOpLessEq:
		return fieldValue <= c.intVal
	default:
		return false
	}
}

func (c *FilterCondition) matchBool(fieldValue bool) bool {
	switch c.Operator {
	case FilterOpEqual:
		return fieldValue == c.boolVal
	case FilterOpNotEqual:
		return fieldValue != c.boolVal
	default:
		return false
	}
}

// matchTimestamp compares against now minus the parsed duration, so
// "timestamp>1h" means "newer than one hour ago".
func (c *FilterCondition) matchTimestamp(fieldValue time.Time) bool {
	switch c.Operator {
	case FilterOpGreater:
		return fieldValue.After(c.timestampOp)
	case FilterOpLess:
		return fieldValue.Before(c.timestampOp)
	case FilterOpGreaterEq:
		return !fieldValue.Before(c.timestampOp)
	case FilterOpLessEq:
		return !fieldValue.After(c.timestampOp)
	default:
		return false
	}
}

// FilterWithExpr filters records using a filter expression.
func FilterWithExpr(records []model.AttributionRecord, expr *FilterExpr) []model.AttributionRecord {
	if expr == nil || len(expr.Conditions) == 0 {
		return records
	}

	result := make([]model.AttributionRecord, 0, len(records))
	for _, r := range records {
		if expr.Match(r) {
			result = append(result, r)
		}
	}
	return result
}
