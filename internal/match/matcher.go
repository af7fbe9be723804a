// Package match decides which windows a notification marks urgent.
//
// Strategies run in order and the first one to return windows wins:
// the sender's process ancestry is checked against window pids, then the
// desktop-entry hint is compared with window app identifiers.
package match

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jmylchreest/niriurgent/internal/config"
	"github.com/jmylchreest/niriurgent/internal/model"
	"github.com/jmylchreest/niriurgent/internal/proc"
)

// AncestryResolver returns the parent of a process. *proc.Resolver implements it.
type AncestryResolver interface {
	Query(ctx context.Context, pid int) (proc.Info, error)
}

// Settings controls the matcher.
type Settings struct {
	UseDesktopEntry  bool
	UseFuzzyMatching bool
	MapAppIDs        map[string]string
	IgnoreAppIDs     []string
	AncestryTimeout  time.Duration
	MaxAncestryDepth int
}

// SettingsFromConfig extracts matcher settings from cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	mapped := make(map[string]string, len(cfg.Notifications.MapAppIDs))
	for k, v := range cfg.Notifications.MapAppIDs {
		mapped[k] = v
	}
	return Settings{
		UseDesktopEntry:  cfg.Notifications.UseDesktopEntry,
		UseFuzzyMatching: cfg.Notifications.UseFuzzyMatching,
		MapAppIDs:        mapped,
		IgnoreAppIDs:     append([]string(nil), cfg.Windows.IgnoreAppIDs...),
		AncestryTimeout:  cfg.Attribution.AncestryTimeout.Duration(),
		MaxAncestryDepth: cfg.Attribution.MaxAncestryDepth,
	}
}

// Result is the outcome of a match.
type Result struct {
	WindowIDs []uint64
	Strategy  model.Strategy

	// MatchedPID is the pid in the ancestry chain that owned the window,
	// for pid matches only.
	MatchedPID int
}

// Matched reports whether any window was selected.
func (r Result) Matched() bool {
	return len(r.WindowIDs) > 0
}

// Strategy maps a notification to windows. An empty result passes control
// to the next strategy.
type Strategy func(ctx context.Context, n *model.AttributedNotification, windows []model.WindowInfo) Result

// Matcher runs the strategy cascade against a window snapshot.
// Settings can be swapped at runtime; each Match uses one consistent set.
type Matcher struct {
	mu       sync.RWMutex
	settings Settings

	resolver AncestryResolver
	logger   *slog.Logger
}

// NewMatcher creates a matcher. resolver may be nil, in which case only
// direct pid matches are found.
func NewMatcher(resolver AncestryResolver, settings Settings, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		settings: normalize(settings),
		resolver: resolver,
		logger:   logger,
	}
}

func normalize(s Settings) Settings {
	if s.AncestryTimeout <= 0 {
		s.AncestryTimeout = config.DefaultAncestryTimeout
	}
	if s.MaxAncestryDepth <= 0 {
		s.MaxAncestryDepth = config.DefaultMaxAncestryDepth
	}
	return s
}

// SetSettings replaces the settings used by subsequent matches.
func (m *Matcher) SetSettings(s Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = normalize(s)
}

// Settings returns the current settings.
func (m *Matcher) Settings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// Match returns the windows n should mark urgent. Windows whose app_id is
// ignored are never returned.
func (m *Matcher) Match(ctx context.Context, n *model.AttributedNotification, snapshot model.WindowSnapshot) Result {
	if n == nil {
		return Result{}
	}
	settings := m.Settings()
	windows := markable(snapshot, settings.IgnoreAppIDs)

	for _, strategy := range m.strategies(settings) {
		if result := strategy(ctx, n, windows); result.Matched() {
			m.logger.Debug("notification matched",
				"id", n.ID,
				"strategy", string(result.Strategy),
				"windows", result.WindowIDs)
			return result
		}
	}

	m.logger.Debug("notification not matched", "id", n.ID, "app", n.Payload.AppName)
	return Result{}
}

func (m *Matcher) strategies(s Settings) []Strategy {
	return []Strategy{
		PIDChain(m.resolver, s.AncestryTimeout, s.MaxAncestryDepth, m.logger),
		DesktopEntry(s),
	}
}

// markable drops windows that must never be marked.
func markable(snapshot model.WindowSnapshot, ignore []string) []model.WindowInfo {
	ignored := make(map[string]struct{}, len(ignore))
	for _, id := range ignore {
		ignored[id] = struct{}{}
	}

	out := make([]model.WindowInfo, 0, snapshot.Len())
	for i := 0; i < snapshot.Len(); i++ {
		w := snapshot.At(i)
		if w.AppID != nil {
			if _, skip := ignored[*w.AppID]; skip {
				continue
			}
		}
		out = append(out, w)
	}
	return out
}

// PIDChain matches the notification's pid, then each of its ancestors, against
// the pids of unfocused windows. The first pid that owns a window wins.
// The walk is bounded by timeout and maxDepth and ends quietly on any
// resolver error.
func PIDChain(resolver AncestryResolver, timeout time.Duration, maxDepth int, logger *slog.Logger) Strategy {
	return func(ctx context.Context, n *model.AttributedNotification, windows []model.WindowInfo) Result {
		pid, ok := n.PID()
		if !ok {
			return Result{}
		}

		byPID := make(map[int][]uint64)
		for _, w := range windows {
			if w.PID == nil || w.IsFocused {
				continue
			}
			byPID[*w.PID] = append(byPID[*w.PID], w.ID)
		}
		if len(byPID) == 0 {
			return Result{}
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		visited := make(map[int]struct{})
		current := pid
		for depth := 0; depth <= maxDepth; depth++ {
			if ids, ok := byPID[current]; ok {
				return Result{WindowIDs: ids, Strategy: model.StrategyPID, MatchedPID: current}
			}
			visited[current] = struct{}{}

			if resolver == nil {
				break
			}
			info, err := resolver.Query(ctx, current)
			if err != nil {
				logger.Debug("process tree traversal ended", "pid", current, "error", err)
				break
			}
			if info.ParentID == nil {
				break
			}
			if _, seen := visited[*info.ParentID]; seen {
				logger.Debug("process ancestry loop", "pid", current, "parent", *info.ParentID)
				break
			}
			current = *info.ParentID
		}
		return Result{}
	}
}

// DesktopEntry matches the desktop-entry hint against window app identifiers.
// Exact matches win outright; fuzzy candidates are only used when there are
// none and fuzzy matching is enabled.
func DesktopEntry(s Settings) Strategy {
	return func(_ context.Context, n *model.AttributedNotification, windows []model.WindowInfo) Result {
		if !s.UseDesktopEntry {
			return Result{}
		}
		entry, ok := n.DesktopEntry()
		if !ok {
			return Result{}
		}
		if mapped, ok := s.MapAppIDs[entry]; ok {
			entry = mapped
		}

		entrySuffix := lastSegment(entry)

		var exact, fuzzy []uint64
		for _, w := range windows {
			if w.AppID == nil {
				continue
			}
			appID := *w.AppID

			switch {
			case appID == entry:
				exact = append(exact, w.ID)
			case s.UseFuzzyMatching && fuzzyEqual(appID, entry, entrySuffix):
				fuzzy = append(fuzzy, w.ID)
			}
		}

		if len(exact) > 0 {
			return Result{WindowIDs: exact, Strategy: model.StrategyDesktopEntry}
		}
		if len(fuzzy) > 0 {
			return Result{WindowIDs: fuzzy, Strategy: model.StrategyFuzzy}
		}
		return Result{}
	}
}

// fuzzyEqual compares case-insensitively, or by final dot segment when
// appID is dotted.
func fuzzyEqual(appID, entry, entrySuffix string) bool {
	if strings.EqualFold(appID, entry) {
		return true
	}
	return strings.Contains(appID, ".") && strings.EqualFold(lastSegment(appID), entrySuffix)
}

func lastSegment(s string) string {
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}
