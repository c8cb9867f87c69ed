// Package instance implements the single-instance toggle over a pid file.
//
// A live pid file means a recording is running and the current invocation
// should ask it to stop. A missing or stale file means this invocation owns
// the next recording.
package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ErrAlreadyClaimed is returned by Claim when another process holds the file.
var ErrAlreadyClaimed = errors.New("instance already claimed")

// Action is the outcome of Decide.
type Action int

const (
	ActionStart Action = iota
	ActionStop
)

func (a Action) String() string {
	if a == ActionStop {
		return "stop"
	}
	return "start"
}

// Decision tells the caller whether to record or to stop a running daemon.
type Decision struct {
	Action Action
	PID    int
}

// Controller manages the pid file at Path.
type Controller struct {
	Path string
	// Alive reports whether pid names a running process.
	Alive func(pid int) bool
	// Signal delivers the stop request to pid.
	Signal func(pid int) error
	Log    *zap.Logger
}

// New returns a Controller using OS liveness probing and SIGUSR1 delivery.
func New(path string, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{Path: path, Alive: processAlive, Signal: signalStop, Log: log}
}

// Decide inspects the pid file. A stale file is removed.
func (c *Controller) Decide() (Decision, error) {
	pid, err := c.read()
	if errors.Is(err, os.ErrNotExist) {
		return Decision{Action: ActionStart}, nil
	}
	if err == nil && c.Alive(pid) {
		return Decision{Action: ActionStop, PID: pid}, nil
	}
	if err != nil {
		c.Log.Warn("unreadable pid file", zap.String("path", c.Path), zap.Error(err))
	} else {
		c.Log.Info("removing stale pid file", zap.String("path", c.Path), zap.Int("pid", pid))
	}
	if rmErr := os.Remove(c.Path); rmErr != nil && !os.IsNotExist(rmErr) {
		return Decision{}, fmt.Errorf("remove stale pid file: %w", rmErr)
	}
	return Decision{Action: ActionStart}, nil
}

// Stop sends the stop request to the recorded daemon.
func (c *Controller) Stop(pid int) error {
	if err := c.Signal(pid); err != nil {
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}
	c.Log.Info("stop requested", zap.Int("pid", pid))
	return nil
}

// Claim creates the pid file exclusively and records the current process.
func (c *Controller) Claim() error {
	f, err := os.OpenFile(c.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrAlreadyClaimed
		}
		return fmt.Errorf("create pid file: %w", err)
	}
	_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
	cerr := f.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(c.Path)
		return fmt.Errorf("write pid file: %w", errors.Join(werr, cerr))
	}
	return nil
}

// Assign replaces the pid recorded in a claimed file, used once the daemon
// has been spawned.
func (c *Controller) Assign(pid int) error {
	tmp := filepath.Join(filepath.Dir(c.Path), "."+filepath.Base(c.Path)+".tmp")
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	if err := os.Rename(tmp, c.Path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace pid file: %w", err)
	}
	return nil
}

// Release removes the pid file.
func (c *Controller) Release() error {
	if err := os.Remove(c.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (c *Controller) read() (int, error) {
	b, err := os.ReadFile(c.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file content %q", strings.TrimSpace(string(b)))
	}
	return pid, nil
}
