package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/niriurgent/internal/config"
	"github.com/jmylchreest/niriurgent/internal/daemon"
	"github.com/jmylchreest/niriurgent/internal/store"
)

var statusOpts struct {
	follow bool
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Output Waybar-compatible JSON status",
	Long: `Output the urgent window set in Waybar's custom module JSON format.

The status is read from the state file written by niriurgentd. With
--follow a new line is printed whenever the daemon updates the file:

  "custom/urgent": {
    "exec": "niriurgent status --follow",
    "return-type": "json",
    "on-click": "niriurgent focus"
  }

The output includes:
  - text: number of urgent windows (empty when none)
  - alt/class: "urgent" or "idle"
  - tooltip: the most recent urgent windows and what marked them`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&statusOpts.follow, "follow", "f", false,
		"Keep running and print a line on every state change")
}

func runStatus(cmd *cobra.Command, args []string) error {
	path := config.StatePath()

	if err := printStatus(path); err != nil {
		return err
	}
	if !statusOpts.follow {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.EnsureDataDir(); err != nil {
		return err
	}

	changed := make(chan struct{}, 1)
	watcher, err := store.NewFileWatcher(path, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}, logger)
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			if err := printStatus(path); err != nil {
				logger.Warn("failed to print status", "error", err)
			}
		}
	}
}

// printStatus renders the state file as one Waybar line.
func printStatus(path string) error {
	state, err := store.LoadSharedState(path)
	if err != nil {
		return daemon.WriteStatus(os.Stdout, daemon.Status{Alt: "error", Class: "error", Tooltip: err.Error()})
	}
	return daemon.WriteStatus(os.Stdout, daemon.StatusFromState(state, cfg.Status.MaxTooltipEntries, time.Now()))
}
