// Package main is the entry point for the niriurgentd daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/niriurgent/internal/config"
	"github.com/jmylchreest/niriurgent/internal/daemon"
	"github.com/jmylchreest/niriurgent/internal/dbus"
	"github.com/jmylchreest/niriurgent/internal/events"
	"github.com/jmylchreest/niriurgent/internal/match"
	"github.com/jmylchreest/niriurgent/internal/niri"
	"github.com/jmylchreest/niriurgent/internal/proc"
	"github.com/jmylchreest/niriurgent/internal/store"
)

var (
	// Build-time variables
	version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/niriurgent/config.toml)")
	socketPath := flag.String("socket", "", "niri IPC socket (default: $"+niri.SocketEnv+")")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("niriurgentd version", version)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *socketPath, logger); err != nil {
		logger.Error("niriurgentd stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("niriurgentd stopped")
}

func run(ctx context.Context, configPath, socketPath string, logger *slog.Logger) error {
	logger.Info("starting niriurgentd", "version", version)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.EnsureDataDir(); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	client, err := niri.NewClient(socketPath, logger)
	if err != nil {
		return err
	}

	// The stream lives as long as ctx, so it cannot carry a handshake deadline.
	stream, err := client.EventStream(ctx)
	if err != nil {
		return fmt.Errorf("open niri event stream: %w", err)
	}

	matcher := match.NewMatcher(proc.NewResolver(""), match.SettingsFromConfig(cfg), logger)

	var recorder daemon.Recorder
	if cfg.Log.Enabled {
		history, err := openHistory(cfg, logger)
		if err != nil {
			logger.Warn("attribution log unavailable", "error", err)
		} else {
			defer history.Close()
			recorder = history
		}
	}

	d := daemon.New(matcher, recorder, client, daemon.Options{
		Windows:   cfg.Windows,
		Status:    cfg.Status,
		StatePath: config.StatePath(),
		Stdout:    os.Stdout,
	}, logger)

	watcher, err := config.NewWatcher(configPath, cfg, logger)
	if err != nil {
		logger.Warn("config hot reload unavailable", "error", err)
	} else {
		watcher.SetReloadCallback(func(c *config.Config) {
			matcher.SetSettings(match.SettingsFromConfig(c))
			d.ApplyConfig(c)
		})
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("failed to start config watcher", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	ctx, cancelAll := context.WithCancel(ctx)
	defer cancelAll()

	tracker := niri.NewTracker(logger)
	coord := events.NewCoordinator(logger)
	producers := events.Producers{
		Windows:    coord.ForwardSnapshots(tracker.Snapshots()),
		Workspaces: coord.ForwardWorkspaces(tracker.WorkspaceChanges()),
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Notifications.Enabled {
		notifications, err := startNotifications(gctx, g, cfg, coord, logger)
		if err != nil {
			logger.Error("notification monitor unavailable, tracking windows only", "error", err)
		} else {
			producers.Notifications = notifications
		}
	} else {
		logger.Info("notification attribution disabled")
	}

	g.Go(func() error {
		return tracker.Run(gctx, stream)
	})
	g.Go(func() error {
		return coord.Run(gctx, producers)
	})
	g.Go(func() error {
		// Once the consumer stops nothing else is useful.
		defer cancelAll()
		defer coord.Close()
		return d.Run(gctx, coord)
	})

	logger.Info("niriurgentd ready", "socket", client.SocketPath())

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// openHistory opens the attribution log and loads its records.
func openHistory(cfg *config.Config, logger *slog.Logger) (*store.History, error) {
	path := config.AttributionLogPath()
	persistence, err := store.NewJSONLPersistence(path)
	if err != nil {
		return nil, err
	}

	history := store.NewHistory(persistence, cfg.Log.Keep)
	if err := history.Hydrate(); err != nil {
		logger.Warn("failed to hydrate attribution log", "error", err)
	}
	logger.Info("attribution log initialized", "path", path, "count", history.Count())
	return history, nil
}

// startNotifications wires the bus: the PID cache follows owner changes on
// its own connection while the monitor eavesdrops on Notify calls.
func startNotifications(ctx context.Context, g *errgroup.Group, cfg *config.Config, coord *events.Coordinator, logger *slog.Logger) (events.ProducerFunc, error) {
	bus, err := dbus.ConnectSessionBus(logger)
	if err != nil {
		return nil, err
	}

	changes, err := bus.OwnerChanges(ctx)
	if err != nil {
		logger.Warn("owner changes unavailable, relying on cache expiry", "error", err)
		changes = nil
	}

	cache := dbus.NewPIDCache(bus, changes, dbus.PIDCacheOptions{
		TTL:           cfg.Attribution.CacheTTL.Duration(),
		SweepInterval: cfg.Attribution.CacheSweepInterval.Duration(),
		LookupTimeout: cfg.Attribution.LookupTimeout.Duration(),
	}, logger)

	g.Go(func() error {
		defer bus.Close()
		return cache.Run(ctx)
	})

	monitor := dbus.NewMonitor(cache, logger)
	monitor.SetNotifyHandler(coord.Notify)
	return monitor.Run, nil
}
