package dbus

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Default cache timings.
const (
	DefaultPIDCacheTTL    = 24 * time.Hour
	DefaultSweepInterval  = 60 * time.Second
	DefaultLookupTimeout  = 500 * time.Millisecond
	defaultRequestBacklog = 16
)

// BusDaemon resolves a bus connection name to the pid of its process.
// A nil pid with a nil error is a definitive "no pid" answer and is cached;
// an error means the lookup failed and nothing is cached.
type BusDaemon interface {
	ConnectionPID(ctx context.Context, name string) (*uint32, error)
}

// PIDCacheOptions configures a PIDCache.
type PIDCacheOptions struct {
	TTL           time.Duration    // sliding expiry per entry
	SweepInterval time.Duration    // how often expired entries are purged
	LookupTimeout time.Duration    // bound on each daemon call
	Now           func() time.Time // clock, for tests
}

// DefaultPIDCacheOptions returns the default timings.
func DefaultPIDCacheOptions() PIDCacheOptions {
	return PIDCacheOptions{
		TTL:           DefaultPIDCacheTTL,
		SweepInterval: DefaultSweepInterval,
		LookupTimeout: DefaultLookupTimeout,
		Now:           time.Now,
	}
}

type cacheQuery struct {
	connection string
	reply      chan<- *uint32
}

// PIDCache maps bus sender identities to process ids.
// All entry state is owned by the goroutine started in Run; callers only
// reach it through Query.
type PIDCache struct {
	daemon  BusDaemon
	changes <-chan OwnerChange
	opts    PIDCacheOptions
	logger  *slog.Logger

	requests chan cacheQuery
	done     chan struct{}
}

// NewPIDCache creates a cache backed by daemon. changes may be nil, in
// which case entries only leave the cache through expiry.
func NewPIDCache(daemon BusDaemon, changes <-chan OwnerChange, opts PIDCacheOptions, logger *slog.Logger) *PIDCache {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultPIDCacheOptions()
	if opts.TTL <= 0 {
		opts.TTL = defaults.TTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaults.SweepInterval
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = defaults.LookupTimeout
	}
	if opts.Now == nil {
		opts.Now = defaults.Now
	}

	return &PIDCache{
		daemon:   daemon,
		changes:  changes,
		opts:     opts,
		logger:   logger,
		requests: make(chan cacheQuery, defaultRequestBacklog),
		done:     make(chan struct{}),
	}
}

// Query returns the pid of the connection, or false if it is unknown or
// could not be resolved. It never returns an error: callers treat a miss
// as "attribution unavailable".
func (c *PIDCache) Query(ctx context.Context, connection string) (uint32, bool) {
	reply := make(chan *uint32, 1)

	select {
	case c.requests <- cacheQuery{connection: connection, reply: reply}:
	case <-c.done:
		c.logger.Debug("pid cache stopped, query dropped", "connection", connection)
		return 0, false
	case <-ctx.Done():
		return 0, false
	}

	select {
	case pid := <-reply:
		if pid == nil {
			return 0, false
		}
		return *pid, true
	case <-c.done:
		return 0, false
	case <-ctx.Done():
		return 0, false
	}
}

// Run serves queries until ctx is cancelled.
func (c *PIDCache) Run(ctx context.Context) error {
	defer close(c.done)

	storage := newCacheStorage(c.opts.TTL, c.opts.Now)
	changes := c.changes

	sweep := time.NewTicker(c.opts.SweepInterval)
	defer sweep.Stop()

	c.logger.Debug("pid cache started", "ttl", c.opts.TTL, "sweep_interval", c.opts.SweepInterval)

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("pid cache stopped", "entries", storage.size())
			return nil

		case change, ok := <-changes:
			if !ok {
				c.logger.Warn("name owner change stream closed, relying on expiry only")
				changes = nil
				continue
			}
			c.handleOwnerChange(ctx, storage, change)

		case req := <-c.requests:
			req.reply <- c.handleQuery(ctx, storage, req.connection)

		case <-sweep.C:
			if removed := storage.removeExpired(c.opts.Now()); removed > 0 {
				c.logger.Debug("pid cache sweep", "removed", removed, "remaining", storage.size())
			}
		}
	}
}

func (c *PIDCache) handleQuery(ctx context.Context, storage *cacheStorage, connection string) *uint32 {
	if pid, ok := storage.retrieve(connection); ok {
		return pid
	}

	if !isUniqueName(connection) {
		c.logger.Debug("not a unique connection name, skipping lookup", "connection", connection)
		return nil
	}

	pid, err := c.lookup(ctx, connection)
	if err != nil {
		c.logger.Debug("connection pid lookup failed", "connection", connection, "error", err)
		return nil
	}

	storage.store(connection, pid)
	return pid
}

func (c *PIDCache) handleOwnerChange(ctx context.Context, storage *cacheStorage, change OwnerChange) {
	switch {
	case change.NewOwner != "":
		pid, err := c.lookup(ctx, change.NewOwner)
		if err != nil {
			c.logger.Debug("new owner pid lookup failed", "connection", change.NewOwner, "error", err)
			return
		}
		storage.store(change.NewOwner, pid)
	case change.OldOwner != "":
		storage.evict(change.OldOwner)
	}
}

func (c *PIDCache) lookup(ctx context.Context, connection string) (*uint32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.LookupTimeout)
	defer cancel()
	return c.daemon.ConnectionPID(ctx, connection)
}

// isUniqueName reports whether name is a unique connection name (":1.42").
func isUniqueName(name string) bool {
	return strings.HasPrefix(name, ":") && len(name) > 1
}

// cacheEntry holds a resolved pid; a nil pid is a cached "unknown".
type cacheEntry struct {
	pid       *uint32
	expiresAt time.Time
}

// cacheStorage is the entry map owned by the cache goroutine.
type cacheStorage struct {
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

func newCacheStorage(ttl time.Duration, now func() time.Time) *cacheStorage {
	return &cacheStorage{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     now,
	}
}

// retrieve returns the cached pid and slides its expiry forward.
func (s *cacheStorage) retrieve(connection string) (*uint32, bool) {
	entry, ok := s.entries[connection]
	if !ok {
		return nil, false
	}
	// Expired but unswept entries are still served and refreshed; only the sweep evicts.
	entry.expiresAt = s.now().Add(s.ttl)
	s.entries[connection] = entry
	return entry.pid, true
}

func (s *cacheStorage) store(connection string, pid *uint32) {
	s.entries[connection] = cacheEntry{
		pid:       pid,
		expiresAt: s.now().Add(s.ttl),
	}
}

func (s *cacheStorage) evict(connection string) {
	delete(s.entries, connection)
}

// removeExpired drops entries whose expiry is not after now.
func (s *cacheStorage) removeExpired(now time.Time) int {
	removed := 0
	for conn, entry := range s.entries {
		if !entry.expiresAt.After(now) {
			delete(s.entries, conn)
			removed++
		}
	}
	return removed
}

func (s *cacheStorage) size() int {
	return len(s.entries)
}
