package instance

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcs struct {
	alive    map[int]bool
	signaled []int
}

func newController(t *testing.T, procs *fakeProcs) *Controller {
	t.Helper()
	c := New(filepath.Join(t.TempDir(), "voice.pid"), nil)
	c.Alive = func(pid int) bool { return procs.alive[pid] }
	c.Signal = func(pid int) error {
		procs.signaled = append(procs.signaled, pid)
		return nil
	}
	return c
}

func writePID(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDecideAbsentStartsAndClaimsOnce(t *testing.T) {
	procs := &fakeProcs{}
	c := newController(t, procs)

	d, err := c.Decide()
	require.NoError(t, err)
	assert.Equal(t, ActionStart, d.Action)

	require.NoError(t, c.Claim())
	b, err := os.ReadFile(c.Path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid())+"\n", string(b))

	assert.ErrorIs(t, c.Claim(), ErrAlreadyClaimed)

	entries, err := os.ReadDir(filepath.Dir(c.Path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDecideLiveStopsWithoutNewFile(t *testing.T) {
	procs := &fakeProcs{alive: map[int]bool{4242: true}}
	c := newController(t, procs)
	writePID(t, c.Path, "4242\n")

	d, err := c.Decide()
	require.NoError(t, err)
	assert.Equal(t, ActionStop, d.Action)
	assert.Equal(t, 4242, d.PID)

	require.NoError(t, c.Stop(d.PID))
	assert.Equal(t, []int{4242}, procs.signaled)

	b, err := os.ReadFile(c.Path)
	require.NoError(t, err)
	assert.Equal(t, "4242\n", string(b), "pid file must be left for the running daemon")
}

func TestDecideStaleRemovesFile(t *testing.T) {
	procs := &fakeProcs{}
	c := newController(t, procs)
	writePID(t, c.Path, "999999\n")

	d, err := c.Decide()
	require.NoError(t, err)
	assert.Equal(t, ActionStart, d.Action)
	assert.Empty(t, procs.signaled)

	_, err = os.Stat(c.Path)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, c.Claim())
}

func TestDecideGarbageIsStale(t *testing.T) {
	c := newController(t, &fakeProcs{})
	writePID(t, c.Path, "not-a-pid")

	d, err := c.Decide()
	require.NoError(t, err)
	assert.Equal(t, ActionStart, d.Action)
	_, err = os.Stat(c.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestAssignAndRelease(t *testing.T) {
	c := newController(t, &fakeProcs{})
	require.NoError(t, c.Claim())
	require.NoError(t, c.Assign(31337))

	b, err := os.ReadFile(c.Path)
	require.NoError(t, err)
	assert.Equal(t, "31337\n", string(b))

	require.NoError(t, c.Release())
	require.NoError(t, c.Release())
	_, err = os.Stat(c.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestProcessAliveSelf(t *testing.T) {
	assert.True(t, processAlive(os.Getpid()))
}
