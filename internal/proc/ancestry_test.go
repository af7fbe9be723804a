package proc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeStat creates <root>/<pid>/stat with the given contents.
func writeStat(t *testing.T, root string, pid int, contents string) {
	t.Helper()
	dir := filepath.Join(root, strconv.Itoa(pid))
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stat"), []byte(contents), 0644))
}

func TestQuery_ParentID(t *testing.T) {
	root := t.TempDir()
	writeStat(t, root, 500, "500 (helper) S 400 500 500 0 -1 4194560 0 0 0 0\n")

	info, err := NewResolver(root).Query(context.Background(), 500)
	require.NoError(t, err)
	require.NotNil(t, info.ParentID)
	assert.Equal(t, 400, *info.ParentID)
}

func TestQuery_CommandWithSpaces(t *testing.T) {
	root := t.TempDir()
	writeStat(t, root, 77, "77 (Web Content (x)) S 12 77 77 0\n")

	info, err := NewResolver(root).Query(context.Background(), 77)
	require.NoError(t, err)
	require.NotNil(t, info.ParentID)
	assert.Equal(t, 12, *info.ParentID)
}

func TestQuery_ZeroParentIsRoot(t *testing.T) {
	root := t.TempDir()
	writeStat(t, root, 1, "1 (systemd) S 0 1 1 0\n")

	info, err := NewResolver(root).Query(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, info.ParentID)
}

func TestQuery_Errors(t *testing.T) {
	root := t.TempDir()
	writeStat(t, root, 10, "10 (short) S")
	writeStat(t, root, 11, "11 (bad) S notanumber 1 1")
	writeStat(t, root, 12, "12")

	tests := []struct {
		name     string
		pid      int
		sentinel error
		kind     ErrorKind
	}{
		{name: "missing record", pid: 9999, sentinel: ErrRecordUnavailable, kind: KindRecordUnavailable},
		{name: "missing field", pid: 10, sentinel: ErrMalformedRecord, kind: KindMalformedRecord},
		{name: "non-integer parent", pid: 11, sentinel: ErrInvalidParentID, kind: KindInvalidParentID},
		{name: "no command field", pid: 12, sentinel: ErrMalformedRecord, kind: KindMalformedRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResolver(root).Query(context.Background(), tt.pid)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			var perr *ProcessError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.kind, perr.Kind)
			assert.Equal(t, tt.pid, perr.PID)
			assert.NotEmpty(t, perr.Error())
		})
	}
}

func TestQuery_MissingRecordWrapsNotExist(t *testing.T) {
	_, err := NewResolver(t.TempDir()).Query(context.Background(), 4242)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestQuery_CancelledContext(t *testing.T) {
	root := t.TempDir()
	writeStat(t, root, 500, "500 (helper) S 400 500")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewResolver(root).Query(ctx, 500)
	assert.ErrorIs(t, err, ErrRecordUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChain(t *testing.T) {
	root := t.TempDir()
	writeStat(t, root, 500, "500 (helper) S 400")
	writeStat(t, root, 400, "400 (app) S 300")
	writeStat(t, root, 300, "300 (shell) S 1")
	writeStat(t, root, 1, "1 (init) S 0")

	r := NewResolver(root)
	assert.Equal(t, []int{500, 400, 300, 1}, r.Chain(context.Background(), 500, 0))
	assert.Equal(t, []int{500, 400}, r.Chain(context.Background(), 500, 1))
}

func TestChain_StopsOnUnreadableAndLoops(t *testing.T) {
	root := t.TempDir()
	writeStat(t, root, 20, "20 (a) S 21")
	writeStat(t, root, 21, "21 (b) S 20")
	writeStat(t, root, 30, "30 (c) S 31")

	r := NewResolver(root)
	assert.Equal(t, []int{20, 21}, r.Chain(context.Background(), 20, 0))
	assert.Equal(t, []int{30, 31}, r.Chain(context.Background(), 30, 0))
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "record unavailable", KindRecordUnavailable.String())
	assert.Equal(t, "malformed record", KindMalformedRecord.String())
	assert.Equal(t, "invalid parent id", KindInvalidParentID.String())
	assert.Equal(t, "unknown", ErrorKind(99).String())
}
