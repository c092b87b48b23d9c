package lock

import (
	"errors"
	"os"
	"strconv"
	"testing"

	ps "github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcess struct {
	pid        int
	executable string
}

func (p fakeProcess) Pid() int           { return p.pid }
func (p fakeProcess) PPid() int          { return 1 }
func (p fakeProcess) Executable() string { return p.executable }

// withProcesses replaces the process table for the duration of the test.
func withProcesses(t *testing.T, table map[int]string) {
	t.Helper()
	orig := findProcessFunc
	origDelay := retryDelay
	findProcessFunc = func(pid int) (ps.Process, error) {
		exe, ok := table[pid]
		if !ok {
			return nil, nil
		}
		return fakeProcess{pid: pid, executable: exe}, nil
	}
	retryDelay = 0
	t.Cleanup(func() {
		findProcessFunc = orig
		retryDelay = origDelay
	})
}

func TestAcquireAndRelease(t *testing.T) {
	withProcesses(t, map[int]string{os.Getpid(): "jaaptracker"})
	dir := t.TempDir()

	l, err := Acquire(dir, "import")
	require.NoError(t, err)

	content, err := os.ReadFile(Path(dir))
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid())+"|import", string(content))

	require.NoError(t, l.Release())
	_, err = os.Stat(Path(dir))
	assert.True(t, os.IsNotExist(err))
}

func TestLiveHolderBlocks(t *testing.T) {
	withProcesses(t, map[int]string{os.Getpid(): "jaaptracker"})
	dir := t.TempDir()

	l, err := Acquire(dir, "import")
	require.NoError(t, err)
	defer l.Release()

	_, err = Acquire(dir, "import")
	assert.True(t, errors.Is(err, ErrLocked))
	assert.ErrorIs(t, Check(dir), ErrLocked)
}

func TestStaleLockIsReclaimed(t *testing.T) {
	tests := []struct {
		name    string
		content string
		table   map[int]string
	}{
		{name: "dead pid", content: "424242|import", table: map[int]string{}},
		{name: "recycled pid", content: "424242|import", table: map[int]string{424242: "bash"}},
		{name: "malformed", content: "not-a-pid", table: map[int]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withProcesses(t, tt.table)
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(Path(dir), []byte(tt.content), 0600))

			assert.NoError(t, Check(dir))

			l, err := Acquire(dir, "import")
			require.NoError(t, err)
			defer l.Release()

			content, err := os.ReadFile(Path(dir))
			require.NoError(t, err)
			assert.Contains(t, string(content), strconv.Itoa(os.Getpid()))
		})
	}
}

func TestReleaseLeavesForeignLock(t *testing.T) {
	withProcesses(t, map[int]string{})
	dir := t.TempDir()

	l, err := Acquire(dir, "import")
	require.NoError(t, err)

	// another process reclaimed the file after deciding we were stale
	require.NoError(t, os.WriteFile(Path(dir), []byte("777|import"), 0600))
	require.NoError(t, l.Release())

	_, err = os.Stat(Path(dir))
	assert.NoError(t, err)
}

func TestNilLockRelease(t *testing.T) {
	var l *Lock
	assert.NoError(t, l.Release())
}
