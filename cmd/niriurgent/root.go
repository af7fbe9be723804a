// Package main provides the CLI entrypoint for niriurgent.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/niriurgent/internal/config"
	"github.com/jmylchreest/niriurgent/internal/niri"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose    bool
		configPath string
		socketPath string
	}
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "niriurgent",
	Short: "Notification-driven urgency for niri windows",
	Long: `niriurgent inspects the state kept by niriurgentd, which attributes
desktop notifications to the niri windows that sent them.

Use it as a Waybar custom module (niriurgent status --follow), to jump to
the latest urgent window (niriurgent focus) or to find out why a
notification did or did not mark a window (niriurgent explain).`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		cfg, err = config.LoadConfig(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/niriurgent/config.toml)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.socketPath, "socket", "",
		"niri IPC socket (default: $"+niri.SocketEnv+")")
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	// Log to stderr so stdout is clean for output
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// niriClient connects to the compositor named by --socket or the environment.
func niriClient() (*niri.Client, error) {
	return niri.NewClient(globalOpts.socketPath, logger)
}

func main() {
	Execute()
}
