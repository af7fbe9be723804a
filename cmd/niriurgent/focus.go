package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/niriurgent/internal/config"
	"github.com/jmylchreest/niriurgent/internal/store"
)

var focusCmd = &cobra.Command{
	Use:   "focus [window-id]",
	Short: "Focus the most recently marked urgent window",
	Long: `Focus an urgent window through niri.

Without arguments the most recently marked window is focused. niriurgentd
clears the mark once the window gains focus.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFocus,
}

func init() {
	rootCmd.AddCommand(focusCmd)
}

func runFocus(cmd *cobra.Command, args []string) error {
	var id uint64
	if len(args) > 0 {
		parsed, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid window id %q: %w", args[0], err)
		}
		id = parsed
	} else {
		state, err := store.LoadSharedState(config.StatePath())
		if err != nil {
			return fmt.Errorf("failed to load state: %w", err)
		}
		newest := state.Newest()
		if len(newest) == 0 {
			fmt.Println("no urgent windows")
			return nil
		}
		id = newest[0].WindowID
	}

	client, err := niriClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return client.FocusWindow(ctx, id)
}
