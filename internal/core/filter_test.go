package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/niriurgent/internal/model"
)

func testRecords() []model.AttributionRecord {
	now := time.Now()
	return []model.AttributionRecord{
		{ID: "01A", Timestamp: now.Add(-10 * time.Minute).Unix(), AppName: "Slack", Summary: "New message", PID: 4100, Strategy: model.StrategyPID, WindowIDs: []uint64{3}},
		{ID: "01B", Timestamp: now.Add(-2 * time.Hour).Unix(), AppName: "Thunderbird", Summary: "Inbox", DesktopEntry: "org.mozilla.Thunderbird", Strategy: model.StrategyDesktopEntry, WindowIDs: []uint64{5}},
		{ID: "01C", Timestamp: now.Add(-3 * 24 * time.Hour).Unix(), AppName: "notify-send", Summary: "Build failed"},
		{ID: "01D", Timestamp: now.Add(-5 * time.Minute).Unix(), AppName: "Telegram", Summary: "Alice", DesktopEntry: "telegramdesktop", Strategy: model.StrategyFuzzy, WindowIDs: []uint64{7, 8}},
	}
}

func TestFilter_Empty(t *testing.T) {
	assert.Len(t, Filter(nil, FilterOptions{}), 0)
}

func TestFilter_NoFilters(t *testing.T) {
	assert.Len(t, Filter(testRecords(), FilterOptions{}), 4)
}

func TestFilter_ByApp(t *testing.T) {
	result := Filter(testRecords(), FilterOptions{App: "Slack"})
	require.Len(t, result, 1)
	assert.Equal(t, "01A", result[0].ID)
}

func TestFilter_ByStrategy(t *testing.T) {
	fuzzy := model.StrategyFuzzy
	result := Filter(testRecords(), FilterOptions{Strategy: &fuzzy})
	require.Len(t, result, 1)
	assert.Equal(t, "01D", result[0].ID)

	none := model.StrategyNone
	result = Filter(testRecords(), FilterOptions{Strategy: &none})
	require.Len(t, result, 1)
	assert.Equal(t, "01C", result[0].ID)
}

func TestFilter_MatchedOnly(t *testing.T) {
	result := Filter(testRecords(), FilterOptions{MatchedOnly: true})
	assert.Len(t, result, 3)
	for _, r := range result {
		assert.True(t, r.Matched())
	}
}

func TestFilter_BySince(t *testing.T) {
	result := Filter(testRecords(), FilterOptions{Since: time.Hour})
	assert.Len(t, result, 2)
}

func TestFilter_WithLimit(t *testing.T) {
	result := Filter(testRecords(), FilterOptions{Limit: 2})
	require.Len(t, result, 2)
	assert.Equal(t, "01A", result[0].ID)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"0", 0, false},
		{"", 0, false},
		{"48h", 48 * time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"1w", 7 * 24 * time.Hour, false},
		{"30m", 30 * time.Minute, false},
		{"xd", 0, true},
		{"nonsense", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		input   string
		want    model.Strategy
		wantErr bool
	}{
		{"pid", model.StrategyPID, false},
		{"PID", model.StrategyPID, false},
		{"desktop-entry", model.StrategyDesktopEntry, false},
		{"entry", model.StrategyDesktopEntry, false},
		{"fuzzy", model.StrategyFuzzy, false},
		{"none", model.StrategyNone, false},
		{"magic", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseStrategy(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantIDs []string
		wantErr bool
	}{
		{"empty", "", []string{"01A", "01B", "01C", "01D"}, false},
		{"app equal", "app=Slack", []string{"01A"}, false},
		{"app not equal", "app!=Slack", []string{"01B", "01C", "01D"}, false},
		{"summary contains", "summary~inbox", []string{"01B"}, false},
		{"summary regex", "summary~=(?i)^build", []string{"01C"}, false},
		{"entry", "entry=telegramdesktop", []string{"01D"}, false},
		{"strategy", "strategy=pid", []string{"01A"}, false},
		{"unmatched", "matched=false", []string{"01C"}, false},
		{"pid compare", "pid>=4000", []string{"01A"}, false},
		{"recent", "timestamp>1h", []string{"01A", "01D"}, false},
		{"combined", "matched=true,timestamp>3h,app!=Telegram", []string{"01A", "01B"}, false},
		{"unknown field", "colour=red", nil, true},
		{"missing operator", "app", nil, true},
		{"bad regex", "summary~=(", nil, true},
		{"bad strategy", "strategy=magic", nil, true},
		{"bad pid", "pid=abc", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := ParseFilter(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			var ids []string
			for _, r := range FilterWithExpr(testRecords(), expr) {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestFilterWithExpr_Nil(t *testing.T) {
	assert.Len(t, FilterWithExpr(testRecords(), nil), 4)
}
