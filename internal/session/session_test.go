package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zackham/voice-transcribe/internal/asr"
	"github.com/zackham/voice-transcribe/internal/config"
	"github.com/zackham/voice-transcribe/internal/record"
	"github.com/zackham/voice-transcribe/internal/status"
)

// recorder is a status.Channel that keeps every distinct consecutive state.
type recorder struct {
	mu     sync.Mutex
	states []status.Status
	closed bool
}

func (r *recorder) Publish(rec status.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.states); n == 0 || r.states[n-1] != rec.Status {
		r.states = append(r.states, rec.Status)
	}
	return nil
}

func (r *recorder) Close() error { r.closed = true; return nil }

func (r *recorder) seen() []status.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]status.Status(nil), r.states...)
}

type fakeDevice struct {
	// next fills frame n (0-based) or returns an error.
	next    func(n int, frame []int16) error
	recover func(err error) error
	delay   time.Duration

	reads  atomic.Int32
	closed atomic.Bool
}

func (d *fakeDevice) ReadFrame(frame []int16) error {
	n := int(d.reads.Add(1)) - 1
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	return d.next(n, frame)
}

func (d *fakeDevice) Recover(err error) error {
	if d.recover != nil {
		return d.recover(err)
	}
	return err
}

func (d *fakeDevice) Close() error {
	d.closed.Store(true)
	return nil
}

func (d *fakeDevice) Name() string { return "fake" }

func fill(v int16) func(int, []int16) error {
	return func(_ int, frame []int16) error {
		for i := range frame {
			frame[i] = v
		}
		return nil
	}
}

type fakeTranscriber struct {
	text  string
	err   error
	calls atomic.Int32
	got   []byte
}

func (f *fakeTranscriber) Transcribe(_ context.Context, pcm []byte) (string, error) {
	f.calls.Add(1)
	f.got = append([]byte(nil), pcm...)
	return f.text, f.err
}

type fakeSink struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeSink) Copy(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.err
}

func fastOptions() Options {
	return Options{
		MaxDuration:   time.Minute,
		InitialBuffer: 1024,
		Timing:        Timing{Tick: time.Millisecond},
	}
}

func newSession(opts Options, dev *fakeDevice, tr Transcriber, sink *fakeSink, ch *recorder) *Session {
	return New(opts, Deps{
		Open:        func() (record.Device, error) { return dev, nil },
		Channel:     ch,
		Transcriber: tr,
		Sink:        sink,
	})
}

func TestScenarioNoAudio(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"text":"unexpected"}`))
	}))
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.APIEndpoint = server.URL
	cfg.CacheDir = t.TempDir()
	client, err := asr.New(cfg, server.Client(), nil)
	require.NoError(t, err)

	dev := &fakeDevice{next: fill(1000)}
	ch := &recorder{}
	sink := &fakeSink{}
	s := newSession(fastOptions(), dev, client, sink, ch)
	s.RequestStop()

	final := s.Run(context.Background())

	assert.Equal(t, status.NoAudio, final)
	assert.Equal(t, int32(0), calls.Load(), "no network call without audio")
	assert.Equal(t, int32(0), dev.reads.Load())
	assert.Empty(t, sink.texts)
	assert.True(t, dev.closed.Load())
	assert.Equal(t, []status.Status{
		status.Connecting, status.Ready, status.Recording, status.Processing, status.NoAudio,
	}, ch.seen())
}

func TestScenarioCopied(t *testing.T) {
	var uploaded atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, _, err := r.FormFile("file")
		if err == nil {
			n, _ := io.Copy(io.Discard, f)
			uploaded.Store(n)
			_ = f.Close()
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"hello world"}`))
	}))
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.APIEndpoint = server.URL
	cfg.CacheDir = t.TempDir()
	client, err := asr.New(cfg, server.Client(), nil)
	require.NoError(t, err)

	var s *Session
	dev := &fakeDevice{next: func(n int, frame []int16) error {
		for i := range frame {
			frame[i] = -1000
		}
		if n == 2 {
			s.RequestStop()
		}
		return nil
	}}
	ch := &recorder{}
	sink := &fakeSink{}
	s = newSession(fastOptions(), dev, client, sink, ch)

	final := s.Run(context.Background())

	assert.Equal(t, status.Copied, final)
	assert.Equal(t, []string{"hello world"}, sink.texts)
	assert.Equal(t, int64(44+3*record.FrameSamples*2), uploaded.Load())
	assert.InDelta(t, 1000.0/32768.0, s.Level(), 1e-6)
	assert.True(t, dev.closed.Load())
	assert.Equal(t, []status.Status{
		status.Connecting, status.Ready, status.Recording, status.Processing, status.Uploading, status.Copied,
	}, ch.seen())
}

func TestScenarioMaxTime(t *testing.T) {
	dev := &fakeDevice{next: fill(50), delay: 2 * time.Millisecond}
	tr := &fakeTranscriber{text: "long dictation"}
	ch := &recorder{}
	sink := &fakeSink{}
	opts := fastOptions()
	opts.MaxDuration = 40 * time.Millisecond

	final := newSession(opts, dev, tr, sink, ch).Run(context.Background())

	assert.Equal(t, status.Copied, final)
	assert.Greater(t, dev.reads.Load(), int32(1))
	assert.Equal(t, []status.Status{
		status.Connecting, status.Ready, status.Recording, status.MaxTime,
		status.Processing, status.Uploading, status.Copied,
	}, ch.seen())
}

func TestDeviceFatal(t *testing.T) {
	tr := &fakeTranscriber{text: "never"}
	ch := &recorder{}
	s := New(fastOptions(), Deps{
		Open:        func() (record.Device, error) { return nil, record.ErrNoDevice },
		Channel:     ch,
		Transcriber: tr,
		Sink:        &fakeSink{},
	})

	assert.Equal(t, status.Error, s.Run(context.Background()))
	assert.Equal(t, int32(0), tr.calls.Load())
	assert.Equal(t, []status.Status{status.Connecting, status.Error}, ch.seen())
}

func TestRecoverableErrorsContinue(t *testing.T) {
	var s *Session
	dev := &fakeDevice{
		next: func(n int, frame []int16) error {
			if n%2 == 0 {
				return record.ErrOverrun
			}
			fill(7)(n, frame)
			if n == 5 {
				s.RequestStop()
			}
			return nil
		},
		recover: func(err error) error {
			if errors.Is(err, record.ErrOverrun) {
				return nil
			}
			return err
		},
	}
	tr := &fakeTranscriber{text: "ok"}
	s = newSession(fastOptions(), dev, tr, &fakeSink{}, &recorder{})

	assert.Equal(t, status.Copied, s.Run(context.Background()))
	assert.Len(t, tr.got, 3*record.FrameSamples*2, "overrun frames are discarded")
}

func TestUnrecoverableErrorKeepsBufferedAudio(t *testing.T) {
	dev := &fakeDevice{next: func(n int, frame []int16) error {
		if n == 2 {
			return errors.New("device unplugged")
		}
		return fill(9)(n, frame)
	}}
	tr := &fakeTranscriber{text: "partial"}
	ch := &recorder{}
	sink := &fakeSink{}

	final := newSession(fastOptions(), dev, tr, sink, ch).Run(context.Background())

	assert.Equal(t, status.Copied, final)
	assert.Len(t, tr.got, 2*record.FrameSamples*2)
	assert.Equal(t, []string{"partial"}, sink.texts)
	assert.True(t, dev.closed.Load())
}

func TestTranscriptionFailure(t *testing.T) {
	for name, tr := range map[string]*fakeTranscriber{
		"error": {err: errors.New("boom")},
		"empty": {text: ""},
	} {
		t.Run(name, func(t *testing.T) {
			var s *Session
			dev := &fakeDevice{next: func(n int, frame []int16) error {
				s.RequestStop()
				return fill(1)(n, frame)
			}}
			ch := &recorder{}
			sink := &fakeSink{}
			s = newSession(fastOptions(), dev, tr, sink, ch)

			assert.Equal(t, status.Failed, s.Run(context.Background()))
			assert.Empty(t, sink.texts)
			assert.Equal(t, []status.Status{
				status.Connecting, status.Ready, status.Recording, status.Processing, status.Uploading, status.Failed,
			}, ch.seen())
		})
	}
}

func TestSinkErrorStillCopied(t *testing.T) {
	var s *Session
	dev := &fakeDevice{next: func(n int, frame []int16) error {
		s.RequestStop()
		return fill(1)(n, frame)
	}}
	sink := &fakeSink{err: errors.New("wl-copy missing")}
	s = newSession(fastOptions(), dev, &fakeTranscriber{text: "hi"}, sink, &recorder{})

	assert.Equal(t, status.Copied, s.Run(context.Background()))
	assert.Equal(t, []string{"hi"}, sink.texts)
}

func TestContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	dev := &fakeDevice{next: func(n int, frame []int16) error {
		if n == 1 {
			cancel()
		}
		return fill(3)(n, frame)
	}}
	tr := &fakeTranscriber{text: "done"}

	assert.Equal(t, status.Copied, newSession(fastOptions(), dev, tr, &fakeSink{}, &recorder{}).Run(ctx))
	assert.NotEmpty(t, tr.got)
}

func TestBufferLimitDropsFrames(t *testing.T) {
	var s *Session
	dev := &fakeDevice{next: func(n int, frame []int16) error {
		if n == 3 {
			s.RequestStop()
		}
		return fill(2)(n, frame)
	}}
	tr := &fakeTranscriber{text: "capped"}
	opts := fastOptions()
	opts.InitialBuffer = record.FrameSamples * 2
	opts.MaxBuffer = record.FrameSamples * 2 * 2

	s = newSession(opts, dev, tr, &fakeSink{}, &recorder{})
	assert.Equal(t, status.Copied, s.Run(context.Background()))
	assert.Len(t, tr.got, record.FrameSamples*2*2)
}
