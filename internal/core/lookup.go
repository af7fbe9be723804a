package core

import (
	"sort"
	"strings"

	"github.com/jmylchreest/niriurgent/internal/model"
)

// LookupByID finds a record by its ID or an unambiguous ID prefix
// (case-insensitive, since ULIDs are often typed in lowercase).
// Returns nil if nothing or more than one record matches.
func LookupByID(records []model.AttributionRecord, id string) *model.AttributionRecord {
	id = strings.ToUpper(strings.TrimSpace(id))
	if id == "" {
		return nil
	}

	var found *model.AttributionRecord
	for i := range records {
		if records[i].ID == id {
			return &records[i]
		}
		if strings.HasPrefix(records[i].ID, id) {
			if found != nil {
				return nil
			}
			found = &records[i]
		}
	}
	return found
}

// LookupByIndex finds a record by its 1-based index.
func LookupByIndex(records []model.AttributionRecord, index int) *model.AttributionRecord {
	idx := index - 1
	if idx < 0 || idx >= len(records) {
		return nil
	}
	return &records[idx]
}

// Search finds records whose summary or app name contains term.
func Search(records []model.AttributionRecord, term string) []model.AttributionRecord {
	if term == "" {
		return records
	}

	term = strings.ToLower(term)
	var result []model.AttributionRecord
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Summary), term) ||
			strings.Contains(strings.ToLower(r.AppName), term) {
			result = append(result, r)
		}
	}
	return result
}

// UniqueApps returns the sorted set of app names.
func UniqueApps(records []model.AttributionRecord) []string {
	seen := make(map[string]bool)
	var apps []string

	for _, r := range records {
		if r.AppName != "" && !seen[r.AppName] {
			seen[r.AppName] = true
			apps = append(apps, r.AppName)
		}
	}

	sort.Slice(apps, func(i, j int) bool {
		return strings.ToLower(apps[i]) < strings.ToLower(apps[j])
	})
	return apps
}

// MatchRate returns the fraction of records that marked a window.
func MatchRate(records []model.AttributionRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	matched := 0
	for i := range records {
		if records[i].Matched() {
			matched++
		}
	}
	return float64(matched) / float64(len(records))
}
