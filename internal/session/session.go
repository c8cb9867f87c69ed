// Package session runs one recording from device open to clipboard.
//
// A Session owns two goroutines: capture, which fills the audio buffer and
// updates the live level, and broadcast, which republishes the current state
// for external observers. Run joins capture first, then broadcast, and then
// finalizes the recording.
package session

import (
	"context"
	"math"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/zackham/voice-transcribe/internal/audiobuf"
	"github.com/zackham/voice-transcribe/internal/clipboard"
	"github.com/zackham/voice-transcribe/internal/notify"
	"github.com/zackham/voice-transcribe/internal/record"
	"github.com/zackham/voice-transcribe/internal/status"
)

// Transcriber turns captured PCM into text.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte) (string, error)
}

// Opener opens the capture device. It is called on the capture goroutine.
type Opener func() (record.Device, error)

// Timing holds the display dwells and polling intervals.
type Timing struct {
	ReadySettle     time.Duration
	ProcessingDwell time.Duration
	UploadingDwell  time.Duration
	CopiedDwell     time.Duration
	// FailedDwell applies to FAILED, NO_AUDIO and ERROR.
	FailedDwell time.Duration
	Tick        time.Duration
	Drain       time.Duration
}

// DefaultTiming paces the states so a visualizer can render each one.
func DefaultTiming() Timing {
	return Timing{
		ReadySettle:     200 * time.Millisecond,
		ProcessingDwell: 200 * time.Millisecond,
		UploadingDwell:  200 * time.Millisecond,
		CopiedDwell:     time.Second,
		FailedDwell:     2 * time.Second,
		Tick:            50 * time.Millisecond,
		Drain:           100 * time.Millisecond,
	}
}

// Options configures a Session.
type Options struct {
	MaxDuration time.Duration
	// InitialBuffer is the starting buffer capacity in bytes.
	InitialBuffer int
	// MaxBuffer caps buffered bytes; 0 means unbounded.
	MaxBuffer int
	Timing    Timing
	// Visualizer is started when broadcasting begins, if set.
	Visualizer []string
}

// DefaultOptions matches a five minute ceiling and a ten second initial buffer.
func DefaultOptions() Options {
	return Options{
		MaxDuration:   300 * time.Second,
		InitialBuffer: record.BytesPerSecond * 10,
		Timing:        DefaultTiming(),
	}
}

// Deps are the collaborators of a Session.
type Deps struct {
	Open        Opener
	Channel     status.Channel
	Transcriber Transcriber
	Sink        clipboard.Sink
	Notifier    *notify.Notifier
	Log         *zap.Logger
	// RecordLog receives capture diagnostics; defaults to Log.
	RecordLog *zap.Logger
}

// Session is one recording attempt.
type Session struct {
	opts Options
	deps Deps
	log  *zap.Logger
	rlog *zap.Logger

	stop  atomic.Bool
	level atomic.Uint32
	state atomic.Int32

	// pubMu orders state changes with their publication so a tick never
	// overwrites a newer state with an older one.
	pubMu      sync.Mutex
	publishErr atomic.Bool

	start time.Time
	buf   *audiobuf.Buffer
}

// New prepares a Session. Nothing runs until Run.
func New(opts Options, deps Deps) *Session {
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = DefaultOptions().MaxDuration
	}
	if opts.InitialBuffer <= 0 {
		opts.InitialBuffer = DefaultOptions().InitialBuffer
	}
	if opts.Timing.Tick <= 0 {
		opts.Timing.Tick = time.Millisecond
	}
	if deps.Channel == nil {
		deps.Channel = status.Discard
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.RecordLog == nil {
		deps.RecordLog = deps.Log
	}
	return &Session{opts: opts, deps: deps, log: deps.Log, rlog: deps.RecordLog}
}

// RequestStop asks capture to finish. It never blocks and is safe from any goroutine.
func (s *Session) RequestStop() {
	if !s.stop.Swap(true) {
		s.log.Debug("stop requested")
	}
}

// Status returns the current state.
func (s *Session) Status() status.Status { return status.Status(s.state.Load()) }

// Level returns the peak level of the latest captured frame.
func (s *Session) Level() float32 { return math.Float32frombits(s.level.Load()) }

// Run records until stopped or the duration ceiling is hit, then transcribes
// and copies the result. It returns the terminal state. Cancelling ctx acts
// like RequestStop; the upload itself is not cancelled.
func (s *Session) Run(ctx context.Context) status.Status {
	s.start = time.Now()
	s.buf = audiobuf.New(s.opts.InitialBuffer, s.opts.MaxBuffer)
	defer s.buf.Release()

	stopOnCancel := context.AfterFunc(ctx, s.RequestStop)
	defer stopOnCancel()

	s.setStatus(status.Connecting)

	captureDone := make(chan struct{})
	go func() {
		defer close(captureDone)
		s.capture()
	}()
	broadcastDone := make(chan struct{})
	go func() {
		defer close(broadcastDone)
		s.broadcast()
	}()

	<-captureDone
	if s.Status() == status.Error {
		s.stop.Store(true)
		<-broadcastDone
		return s.terminal(status.Error, "Audio device failed", s.opts.Timing.FailedDwell)
	}

	s.setStatus(status.Processing)
	sleep(s.opts.Timing.ProcessingDwell)
	s.stop.Store(true)
	<-broadcastDone

	return s.finalize(context.WithoutCancel(ctx))
}

func (s *Session) finalize(ctx context.Context) status.Status {
	pcm := s.buf.Bytes()
	if dropped := s.buf.Dropped(); dropped > 0 {
		s.rlog.Warn("frames dropped at buffer limit", zap.Int("bytes", dropped))
	}
	if len(pcm) == 0 {
		return s.terminal(status.NoAudio, "No audio captured", s.opts.Timing.FailedDwell)
	}

	s.setStatus(status.Uploading)
	sleep(s.opts.Timing.UploadingDwell)

	text, err := s.deps.Transcriber.Transcribe(ctx, pcm)
	if err != nil || text == "" {
		s.log.Warn("transcription failed", zap.Error(err))
		return s.terminal(status.Failed, "Transcription failed", s.opts.Timing.FailedDwell)
	}
	if err := s.deps.Sink.Copy(text); err != nil {
		s.log.Warn("clipboard sink failed", zap.Error(err))
	}
	s.log.Info("transcription copied", zap.Int("chars", len(text)))
	return s.terminal(status.Copied, "Copied to clipboard", s.opts.Timing.CopiedDwell)
}

func (s *Session) terminal(st status.Status, message string, dwell time.Duration) status.Status {
	s.setStatus(st)
	s.log.Info("session finished", zap.Stringer("status", st), zap.Duration("elapsed", time.Since(s.start)))
	s.deps.Notifier.Post(message)
	sleep(dwell)
	return st
}

func (s *Session) capture() {
	dev, err := s.deps.Open()
	if err != nil {
		s.rlog.Error("audio device failed", zap.Error(err))
		s.setStatus(status.Error)
		return
	}
	defer func() {
		if err := dev.Close(); err != nil {
			s.rlog.Debug("device close", zap.Error(err))
		}
	}()
	s.rlog.Info("capture device ready", zap.String("device", dev.Name()))

	s.setStatus(status.Ready)
	sleep(s.opts.Timing.ReadySettle)
	s.setStatus(status.Recording)
	s.deps.Notifier.Post("Recording started")

	frame := make([]int16, record.FrameSamples)
	scratch := make([]byte, 0, record.FrameSamples*2)
	for !s.stop.Load() {
		if time.Since(s.start) > s.opts.MaxDuration {
			s.rlog.Info("maximum recording time reached", zap.Duration("max", s.opts.MaxDuration))
			s.setStatus(status.MaxTime)
			return
		}
		if err := dev.ReadFrame(frame); err != nil {
			if rerr := dev.Recover(err); rerr != nil {
				s.rlog.Warn("capture ended early", zap.Error(rerr), zap.Int("buffered", s.buf.Len()))
				return
			}
			continue
		}
		s.level.Store(math.Float32bits(record.PeakLevel(frame)))
		scratch = record.AppendFrame(scratch[:0], frame)
		s.buf.Append(scratch)
	}
	s.rlog.Debug("capture stopped", zap.Int("bytes", s.buf.Len()))
}

func (s *Session) broadcast() {
	s.launchVisualizer()

	ticker := time.NewTicker(s.opts.Timing.Tick)
	defer ticker.Stop()
	for !s.stop.Load() {
		s.publishCurrent()
		<-ticker.C
	}
	sleep(s.opts.Timing.Drain)
}

func (s *Session) launchVisualizer() {
	args := s.opts.Visualizer
	if len(args) == 0 {
		return
	}
	cmd := exec.Command(args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		s.log.Warn("visualizer failed to start", zap.Strings("cmd", args), zap.Error(err))
		return
	}
	go func() { _ = cmd.Wait() }()
}

func (s *Session) setStatus(st status.Status) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.state.Store(int32(st))
	s.publish()
}

func (s *Session) publishCurrent() {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.publish()
}

// publish must be called with pubMu held.
func (s *Session) publish() {
	st := s.Status()
	rec := status.Record{Status: st, Elapsed: time.Since(s.start)}
	if st == status.Recording {
		rec.Level = s.Level()
	}
	if err := s.deps.Channel.Publish(rec); err != nil {
		if !s.publishErr.Swap(true) {
			s.log.Warn("status publish failed", zap.Error(err))
		}
	}
}

func sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}
