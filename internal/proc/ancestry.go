package proc

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultRoot is where the kernel mounts process records.
const DefaultRoot = "/proc"

// Info is the subset of a process record used for ancestry walks.
type Info struct {
	// ParentID is nil for root or reaped processes (ppid 0).
	ParentID *int
}

// Resolver reads parent pids from <root>/<pid>/stat.
// It holds no state between calls.
type Resolver struct {
	root string
}

// NewResolver creates a resolver rooted at root. An empty root uses DefaultRoot.
func NewResolver(root string) *Resolver {
	if root == "" {
		root = DefaultRoot
	}
	return &Resolver{root: root}
}

// Query reads the record for pid once and returns its parent.
// Callers should treat any error as the end of the chain.
func (r *Resolver) Query(ctx context.Context, pid int) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, &ProcessError{PID: pid, Kind: KindRecordUnavailable, Err: err}
	}

	data, err := os.ReadFile(filepath.Join(r.root, strconv.Itoa(pid), "stat"))
	if err != nil {
		return Info{}, &ProcessError{PID: pid, Kind: KindRecordUnavailable, Err: err}
	}

	return parseStat(pid, string(data))
}

// parseStat extracts the parent pid, the fourth field of the record.
// The second field is the command name in parentheses and may itself
// contain spaces, so fields are counted from the last ')'.
func parseStat(pid int, raw string) (Info, error) {
	var rest []string
	if end := strings.LastIndex(raw, ")"); end != -1 {
		rest = strings.Fields(raw[end+1:])
		// rest[0] is state, rest[1] is ppid
		if len(rest) < 2 {
			return Info{}, &ProcessError{PID: pid, Kind: KindMalformedRecord}
		}
		rest = rest[1:]
	} else {
		fields := strings.Fields(raw)
		if len(fields) < 4 {
			return Info{}, &ProcessError{PID: pid, Kind: KindMalformedRecord}
		}
		rest = fields[3:]
	}

	ppid, err := strconv.Atoi(rest[0])
	if err != nil || ppid < 0 {
		return Info{}, &ProcessError{PID: pid, Kind: KindInvalidParentID, Value: rest[0]}
	}

	if ppid == 0 {
		return Info{}, nil
	}
	return Info{ParentID: &ppid}, nil
}

// Chain returns pid followed by its ancestors, nearest first.
// The walk stops at a process without a parent, at the first unreadable
// record, on a loop, or after maxDepth parents (0 = unlimited).
func (r *Resolver) Chain(ctx context.Context, pid, maxDepth int) []int {
	chain := []int{pid}
	seen := map[int]bool{pid: true}

	current := pid
	for maxDepth <= 0 || len(chain) <= maxDepth {
		info, err := r.Query(ctx, current)
		if err != nil || info.ParentID == nil {
			break
		}
		current = *info.ParentID
		if seen[current] {
			break // loop protection
		}
		seen[current] = true
		chain = append(chain, current)
	}

	return chain
}
