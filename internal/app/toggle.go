package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zackham/voice-transcribe/internal/asr"
	"github.com/zackham/voice-transcribe/internal/clipboard"
	"github.com/zackham/voice-transcribe/internal/config"
	"github.com/zackham/voice-transcribe/internal/instance"
	"github.com/zackham/voice-transcribe/internal/logging"
	"github.com/zackham/voice-transcribe/internal/notify"
	"github.com/zackham/voice-transcribe/internal/record"
	"github.com/zackham/voice-transcribe/internal/session"
	"github.com/zackham/voice-transcribe/internal/status"
)

// runToggle stops a running daemon or starts a new one.
func runToggle(cfg config.Config, out io.Writer) error {
	t := &toggler{
		ctl: instance.New(cfg.PIDFile, nil),
		preflight: func() error {
			_, err := config.LoadToken(cfg)
			return err
		},
		spawn: spawnDaemon,
		out:   out,
	}
	return t.run()
}

// toggler runs the single-instance protocol.
type toggler struct {
	ctl *instance.Controller
	// preflight runs on the start path only, before the pid file is claimed.
	preflight func() error
	// spawn starts the detached recorder and returns its pid.
	spawn func() (int, error)
	out   io.Writer
}

func (t *toggler) run() error {
	d, err := t.ctl.Decide()
	if err != nil {
		return err
	}
	if d.Action == instance.ActionStop {
		if err := t.ctl.Stop(d.PID); err != nil {
			return err
		}
		fmt.Fprintf(t.out, "Stopping recording (pid %d)\n", d.PID)
		return nil
	}

	if t.preflight != nil {
		if err := t.preflight(); err != nil {
			return err
		}
	}
	if err := t.ctl.Claim(); err != nil {
		if errors.Is(err, instance.ErrAlreadyClaimed) {
			fmt.Fprintln(t.out, "Another invocation is starting a recording")
			return nil
		}
		return err
	}

	// Until Assign lands, the pid file names this process. A stop request
	// arriving in that window is held and forwarded to the child.
	pending := make(chan os.Signal, 1)
	signal.Notify(pending, stopSignals()...)
	defer signal.Stop(pending)

	pid, err := t.spawn()
	if err != nil {
		_ = t.ctl.Release()
		return fmt.Errorf("start recorder: %w", err)
	}
	if err := t.ctl.Assign(pid); err != nil {
		_ = t.ctl.Stop(pid)
		_ = t.ctl.Release()
		return err
	}
	select {
	case <-pending:
		_ = t.ctl.Stop(pid)
	default:
	}
	fmt.Fprintf(t.out, "Recording started (pid %d)\n", pid)
	return nil
}

// runDaemon is the detached child. It owns the pid file from here on.
func runDaemon(ctx context.Context, cfg config.Config, sigs chan os.Signal) error {
	defer signal.Stop(sigs)

	logFile := cfg.LogFile
	if logFile == "" {
		logFile = config.DefaultLogPath()
	}
	log, err := logging.New(logging.Options{File: logFile})
	if err != nil {
		log = zap.NewNop()
	}
	defer log.Sync()

	ctl := instance.New(cfg.PIDFile, log.Named("instance"))
	defer func() {
		if err := ctl.Release(); err != nil {
			log.Warn("remove pid file", zap.Error(err))
		}
	}()

	final, err := runSession(ctx, cfg, log, sigs)
	if err != nil {
		log.Error("recorder failed to start", zap.Error(err))
		return nil
	}
	log.Info("daemon exiting", zap.Stringer("status", final))
	return nil
}

// runForeground records in this process and prints progress to stderr.
func runForeground(ctx context.Context, cfg config.Config) error {
	sigs := notifyStop()
	defer signal.Stop(sigs)

	log, err := logging.New(logging.Options{})
	if err != nil {
		return err
	}
	defer log.Sync()

	ctl := instance.New(cfg.PIDFile, log.Named("instance"))
	d, err := ctl.Decide()
	if err != nil {
		return err
	}
	if d.Action == instance.ActionStop {
		return fmt.Errorf("a recording is already running (pid %d)", d.PID)
	}
	if err := ctl.Claim(); err != nil {
		return err
	}
	defer ctl.Release()

	final, err := runSession(ctx, cfg, log, sigs)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, final)
	return nil
}

// notifyStop starts catching the stop signals. A signal caught before the
// session exists is held and stops it on start.
func notifyStop() chan os.Signal {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, stopSignals()...)
	return sigs
}

// runSession assembles a session from cfg and runs it until a stop signal
// or the duration ceiling.
func runSession(ctx context.Context, cfg config.Config, log *zap.Logger, sigs <-chan os.Signal) (status.Status, error) {
	token, err := config.LoadToken(cfg)
	if err != nil {
		return status.Error, err
	}
	cfg.Token = token

	cleanupOldTempFiles(config.TempDir(&cfg), tempFileMaxAge, log.Named("cleanup"))

	upLog := logging.Component(log, "upload", cfg.UPLOAD_DEBUG)
	client, err := asr.New(cfg, newHTTPClient(cfg), upLog)
	if err != nil {
		return status.Error, err
	}
	client.WithFFmpegLogger(logging.Component(log, "ffmpeg", cfg.FFMPEG_DEBUG))

	ch := status.Open(cfg.StatusFile, log.Named("status"))
	defer ch.Close()

	recLog := logging.Component(log, "record", cfg.RECORD_DEBUG)
	opts := session.DefaultOptions()
	opts.MaxDuration = time.Duration(cfg.MaxDuration) * time.Second
	opts.MaxBuffer = cfg.MaxBufferMB << 20
	opts.Visualizer = strings.Fields(cfg.VisualizerCmd)

	sess := session.New(opts, session.Deps{
		Open: func() (record.Device, error) {
			return record.Open(record.Options{Device: cfg.CaptureDevice, Log: recLog})
		},
		Channel:     ch,
		Transcriber: client,
		Sink:        clipboard.New(cfg.ClipboardCmd),
		Notifier:    notify.New(cfg.Notification, log.Named("notify")),
		Log:         log.Named("session"),
		RecordLog:   recLog,
	})

	defer forwardStops(sigs, sess.RequestStop, log)()
	return sess.Run(ctx), nil
}

// forwardStops calls stop for every signal on sigs, including one already
// queued, until the returned func is called.
func forwardStops(sigs <-chan os.Signal, stop func(), log *zap.Logger) (cancel func()) {
	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigs:
				log.Info("signal received", zap.Stringer("signal", sig))
				stop()
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
