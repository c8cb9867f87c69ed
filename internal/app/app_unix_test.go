//go:build unix

package app

import (
	"bytes"
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/zackham/voice-transcribe/internal/record"
	"github.com/zackham/voice-transcribe/internal/session"
	"github.com/zackham/voice-transcribe/internal/status"
)

type silentDevice struct{}

func (silentDevice) ReadFrame(frame []int16) error {
	time.Sleep(time.Millisecond)
	for i := range frame {
		frame[i] = 0
	}
	return nil
}

func (silentDevice) Recover(err error) error { return err }
func (silentDevice) Close() error            { return nil }
func (silentDevice) Name() string            { return "silent" }

type echoTranscriber struct{}

func (echoTranscriber) Transcribe(context.Context, []byte) (string, error) { return "ok", nil }

type nopSink struct{}

func (nopSink) Copy(string) error { return nil }

func TestDaemonSignalsOnlyInChild(t *testing.T) {
	t.Setenv(daemonEnv, "")
	assert.Nil(t, daemonSignals())
}

func TestStopSentBeforeSessionStartsEndsIt(t *testing.T) {
	t.Setenv(daemonEnv, "1")
	sigs := daemonSignals()
	require.NotNil(t, sigs)
	defer signal.Stop(sigs)

	// The stop arrives while the child is still loading settings.
	require.NoError(t, unix.Kill(os.Getpid(), unix.SIGUSR1))
	time.Sleep(20 * time.Millisecond)

	opts := session.DefaultOptions()
	opts.Timing = session.Timing{Tick: time.Millisecond}
	sess := session.New(opts, session.Deps{
		Open:        func() (record.Device, error) { return silentDevice{}, nil },
		Transcriber: echoTranscriber{},
		Sink:        nopSink{},
	})
	defer forwardStops(sigs, sess.RequestStop, zap.NewNop())()

	done := make(chan status.Status, 1)
	go func() { done <- sess.Run(context.Background()) }()

	select {
	case st := <-done:
		assert.True(t, st.Terminal(), "ended in %s", st)
	case <-time.After(5 * time.Second):
		sess.RequestStop()
		<-done
		t.Fatal("early stop signal was lost; session kept recording")
	}
}

func TestToggleForwardsStopFromSpawnWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vt.pid")
	procs := &fakeProcs{}

	tg := &toggler{
		ctl: procs.controller(path),
		spawn: func() (int, error) {
			// A second invocation reads our pid from the claimed file and
			// signals us before the child's pid is assigned.
			if err := unix.Kill(os.Getpid(), unix.SIGUSR1); err != nil {
				return 0, err
			}
			time.Sleep(50 * time.Millisecond)
			return 6060, nil
		},
		out: &bytes.Buffer{},
	}
	require.NoError(t, tg.run())

	assert.Equal(t, []int{6060}, procs.signaled)
	assert.Equal(t, 6060, readPID(t, path))
}
