package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/niriurgent/internal/adapter/input"
	"github.com/jmylchreest/niriurgent/internal/match"
	"github.com/jmylchreest/niriurgent/internal/model"
	"github.com/jmylchreest/niriurgent/internal/proc"
)

var explainOpts struct {
	pid          int
	desktopEntry string
	app          string
	stdin        bool
}

var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Show which windows a notification would mark",
	Long: `Run the matcher against the live window list without marking anything.

The notification is described by the sending process and its desktop-entry
hint, as the daemon would see them. The ancestry chain of --pid is printed
so a missed pid match can be traced.

Examples:
  # Which window owns a process started from a terminal?
  niriurgent explain --pid 12345

  # Desktop-entry matching with the configured remapping and fuzzy rules
  niriurgent explain --desktop-entry org.mozilla.firefox

  # Replay the last hour of the attribution log against current windows
  niriurgent log --since 1h --format json | niriurgent explain --stdin`,
	RunE: runExplain,
}

func init() {
	rootCmd.AddCommand(explainCmd)

	explainCmd.Flags().IntVar(&explainOpts.pid, "pid", 0,
		"Process id of the notification sender")
	explainCmd.Flags().StringVar(&explainOpts.desktopEntry, "desktop-entry", "",
		"Value of the desktop-entry hint")
	explainCmd.Flags().StringVar(&explainOpts.app, "app", "explain",
		"Application name reported by the sender")
	explainCmd.Flags().BoolVar(&explainOpts.stdin, "stdin", false,
		"Read notifications (JSON array or lines) from stdin")
}

func runExplain(cmd *cobra.Command, args []string) error {
	payloads, err := explainPayloads()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snapshot, err := fetchSnapshot(ctx)
	if err != nil {
		return err
	}

	resolver := proc.NewResolver("")
	settings := match.SettingsFromConfig(cfg)
	matcher := match.NewMatcher(resolver, settings, logger)

	for i, payload := range payloads {
		if len(payloads) > 1 {
			if i > 0 {
				fmt.Println()
			}
			fmt.Println(headerStyle.Render(fmt.Sprintf("<%s> %s", payload.AppName, payload.Summary)))
		}
		ectx, ecancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := explainOne(ectx, resolver, matcher, settings, payload, snapshot)
		ecancel()
		if err != nil {
			return err
		}
	}
	return nil
}

// explainPayloads builds the notifications to explain from flags or stdin.
func explainPayloads() ([]model.Notification, error) {
	if explainOpts.stdin {
		payloads, err := input.ReadNotifications(os.Stdin)
		if err != nil {
			return nil, err
		}
		if len(payloads) == 0 {
			return nil, errors.New("no notifications on stdin")
		}
		return payloads, nil
	}

	if explainOpts.pid <= 0 && explainOpts.desktopEntry == "" {
		return nil, errors.New("specify --pid and/or --desktop-entry, or --stdin")
	}
	payload := model.Notification{
		AppName:      explainOpts.app,
		DesktopEntry: explainOpts.desktopEntry,
	}
	if explainOpts.pid > 0 {
		payload.SenderPID = &explainOpts.pid
	}
	return []model.Notification{payload}, nil
}

func explainOne(ctx context.Context, resolver *proc.Resolver, matcher *match.Matcher, settings match.Settings, payload model.Notification, snapshot model.WindowSnapshot) error {
	n, err := model.NewAttributedNotification(payload, "", nil)
	if err != nil {
		return err
	}

	if pid, ok := n.PID(); ok {
		chain := resolver.Chain(ctx, pid, settings.MaxAncestryDepth)
		parts := make([]string, len(chain))
		for i, p := range chain {
			parts[i] = strconv.Itoa(p)
		}
		fmt.Println(labelStyle.Render("ancestry: ") + strings.Join(parts, " -> "))
	}
	if entry, ok := n.DesktopEntry(); ok {
		if mapped, ok := cfg.Notifications.MapAppID(entry); ok {
			fmt.Println(labelStyle.Render("mapped:   ") + entry + " -> " + mapped)
		}
	}

	res := matcher.Match(ctx, n, snapshot)
	if !res.Matched() {
		fmt.Println(labelStyle.Render("result:   ") + "no window matched")
		return nil
	}

	result := string(res.Strategy)
	if res.MatchedPID > 0 {
		result += fmt.Sprintf(" (via pid %d)", res.MatchedPID)
	}
	fmt.Println(labelStyle.Render("result:   ") + result)
	for _, id := range res.WindowIDs {
		if w, ok := snapshot.Lookup(id); ok {
			printWindowLine("  window: ", w)
		}
	}
	return nil
}
