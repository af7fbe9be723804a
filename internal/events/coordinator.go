package events

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/niriurgent/internal/model"
)

// ProducerFunc runs one producer until ctx is done or its source ends.
// Producers emit through the Coordinator's Notify, UpdateWindows and
// WorkspacesChanged methods.
type ProducerFunc func(ctx context.Context) error

// Producers lists the coordinator's inputs. A nil producer is not started.
type Producers struct {
	Notifications ProducerFunc
	Windows       ProducerFunc
	Workspaces    ProducerFunc
}

// Coordinator merges the producers into one feed read with Next.
type Coordinator struct {
	queue  *Queue
	gate   *Gate
	logger *slog.Logger
}

// NewCoordinator creates a coordinator with an empty queue and a pending gate.
func NewCoordinator(logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		queue:  NewQueue(),
		gate:   NewGate(),
		logger: logger,
	}
}

// Notify queues a notification. Its signature matches dbus.NotificationHandler.
func (c *Coordinator) Notify(_ context.Context, n *model.AttributedNotification) error {
	if n == nil {
		return nil
	}
	return c.queue.Push(Event{Kind: KindNotification, Notification: n})
}

// UpdateWindows queues a window snapshot.
func (c *Coordinator) UpdateWindows(snapshot model.WindowSnapshot) error {
	return c.queue.Push(Event{Kind: KindWindowUpdate, Snapshot: snapshot})
}

// WorkspacesChanged queues a workspace signal if the gate lets it through.
// Signals dropped by a pending gate are not an error.
func (c *Coordinator) WorkspacesChanged() error {
	if !c.gate.Offer() {
		c.logger.Debug("workspace change dropped before activation", "dropped", c.gate.Dropped())
		return nil
	}
	return c.queue.Push(Event{Kind: KindWorkspacesChanged})
}

// Next returns the next event. Observing any non-workspace event arms the
// workspace gate.
func (c *Coordinator) Next(ctx context.Context) (Event, error) {
	ev, err := c.queue.Pop(ctx)
	if err != nil {
		return Event{}, err
	}
	if ev.Kind != KindWorkspacesChanged {
		c.gate.Arm()
	}
	return ev, nil
}

// Close stops the feed. Producers see ErrClosed on their next send.
func (c *Coordinator) Close() {
	c.queue.Close()
}

// GateState returns the workspace gate's state.
func (c *Coordinator) GateState() GateState {
	return c.gate.State()
}

// Run starts the producers and waits for them all to finish. A failing
// producer is logged and stops on its own; the others keep feeding, so a
// lost notification source leaves window tracking running.
func (c *Coordinator) Run(ctx context.Context, producers Producers) error {
	g, gctx := errgroup.WithContext(ctx)

	start := func(name string, fn ProducerFunc) {
		if fn == nil {
			c.logger.Debug("producer disabled", "producer", name)
			return
		}
		g.Go(func() error {
			err := fn(gctx)
			switch {
			case err == nil:
				c.logger.Debug("producer finished", "producer", name)
				return nil
			case errors.Is(err, ErrClosed):
				c.logger.Debug("producer stopped, feed closed", "producer", name)
				return nil
			case errors.Is(err, context.Canceled) && gctx.Err() != nil:
				return nil
			default:
				c.logger.Error("producer failed, continuing without it", "producer", name, "error", err)
				return nil
			}
		})
	}

	start("notifications", producers.Notifications)
	start("windows", producers.Windows)
	start("workspaces", producers.Workspaces)

	return g.Wait()
}

// ForwardSnapshots returns a producer that feeds snapshots from ch.
func (c *Coordinator) ForwardSnapshots(ch <-chan model.WindowSnapshot) ProducerFunc {
	return func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case snapshot, ok := <-ch:
				if !ok {
					return nil
				}
				if err := c.UpdateWindows(snapshot); err != nil {
					return err
				}
			}
		}
	}
}

// ForwardWorkspaces returns a producer that feeds workspace signals from ch.
func (c *Coordinator) ForwardWorkspaces(ch <-chan struct{}) ProducerFunc {
	return func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case _, ok := <-ch:
				if !ok {
					return nil
				}
				if err := c.WorkspacesChanged(); err != nil {
					return err
				}
			}
		}
	}
}
