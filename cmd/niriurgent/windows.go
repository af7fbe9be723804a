package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/niriurgent/internal/config"
	"github.com/jmylchreest/niriurgent/internal/model"
	"github.com/jmylchreest/niriurgent/internal/niri"
	"github.com/jmylchreest/niriurgent/internal/store"
)

var windowsOpts struct {
	urgentOnly bool
}

var windowsCmd = &cobra.Command{
	Use:   "windows",
	Short: "List niri windows with urgent ones highlighted",
	RunE:  runWindows,
}

func init() {
	rootCmd.AddCommand(windowsCmd)

	windowsCmd.Flags().BoolVarP(&windowsOpts.urgentOnly, "urgent", "u", false,
		"Only list urgent windows")
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	urgentStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	focusedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func runWindows(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snapshot, err := fetchSnapshot(ctx)
	if err != nil {
		return err
	}

	state, err := store.LoadSharedState(config.StatePath())
	if err != nil {
		logger.Warn("failed to load state", "error", err)
		state = store.DefaultSharedState()
	}
	marks := make(map[uint64]model.UrgentMark, len(state.Urgent))
	for _, m := range state.Urgent {
		marks[m.WindowID] = m
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%-6s %-8s %-28s %s", "ID", "OUTPUT", "APP", "TITLE")))
	for _, w := range snapshot.Windows() {
		if windowsOpts.urgentOnly && !state.IsMarked(w.ID) {
			continue
		}
		mark, urgent := marks[w.ID]
		fmt.Println(renderWindow(w, mark, urgent))
	}
	return nil
}

// fetchSnapshot builds a snapshot from the current compositor state.
func fetchSnapshot(ctx context.Context) (model.WindowSnapshot, error) {
	client, err := niriClient()
	if err != nil {
		return model.WindowSnapshot{}, err
	}
	windows, err := client.Windows(ctx)
	if err != nil {
		return model.WindowSnapshot{}, fmt.Errorf("failed to list windows: %w", err)
	}
	workspaces, err := client.Workspaces(ctx)
	if err != nil {
		return model.WindowSnapshot{}, fmt.Errorf("failed to list workspaces: %w", err)
	}
	return niri.SnapshotFrom(windows, workspaces), nil
}

func renderWindow(w model.WindowInfo, mark model.UrgentMark, urgent bool) string {
	line := fmt.Sprintf("%-6d %-8s %-28s %s",
		w.ID, w.OutputOrEmpty(), truncate(w.AppIDOrEmpty(), 28), w.TitleOrEmpty())

	switch {
	case urgent:
		line = urgentStyle.Render(line)
		if mark.Summary != "" {
			line += "\n       " + labelStyle.Render("marked by: ") + mark.Summary
		}
	case w.IsFocused:
		line = focusedStyle.Render(line)
	default:
		line = dimStyle.Render(line)
	}
	return line
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// printWindowLine prints a one-line description of w to stdout.
func printWindowLine(prefix string, w model.WindowInfo) {
	parts := []string{fmt.Sprintf("%d", w.ID)}
	if app := w.AppIDOrEmpty(); app != "" {
		parts = append(parts, app)
	}
	if title := w.TitleOrEmpty(); title != "" {
		parts = append(parts, fmt.Sprintf("%q", title))
	}
	fmt.Fprintln(os.Stdout, labelStyle.Render(prefix)+strings.Join(parts, " "))
}
