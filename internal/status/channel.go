package status

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Channel receives status snapshots. Implementations keep only the latest.
type Channel interface {
	Publish(Record) error
	Close() error
}

type discard struct{}

func (discard) Publish(Record) error { return nil }
func (discard) Close() error         { return nil }

// Discard is a Channel that drops everything.
var Discard Channel = discard{}

// FileChannel writes each record to a file by replacing it atomically, so
// pollers never observe a partially written line.
type FileChannel struct {
	mu     sync.Mutex
	path   string
	log    *zap.Logger
	closed bool
}

// OpenFile prepares the status file at path. The file is created empty so
// permission problems surface before recording starts.
func OpenFile(path string, log *zap.Logger) (*FileChannel, error) {
	if log == nil {
		log = zap.NewNop()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open status file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close status file: %w", err)
	}
	return &FileChannel{path: path, log: log}, nil
}

// Open returns a FileChannel, or Discard when the file cannot be created.
// The failure is logged; recording continues without observers.
func Open(path string, log *zap.Logger) Channel {
	ch, err := OpenFile(path, log)
	if err != nil {
		if log != nil {
			log.Warn("status channel unavailable", zap.String("path", path), zap.Error(err))
		}
		return Discard
	}
	return ch
}

// Path returns the status file location.
func (c *FileChannel) Path() string { return c.path }

// Publish replaces the status file with the formatted record.
func (c *FileChannel) Publish(r Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	line := Format(r) + "\n"
	tmp := filepath.Join(filepath.Dir(c.path), "."+filepath.Base(c.path)+"."+uuid.NewString()[:8])
	if err := os.WriteFile(tmp, []byte(line), 0o644); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace status: %w", err)
	}
	c.log.Debug("published", zap.String("line", line[:len(line)-1]))
	return nil
}

// Close removes the status file. Later publishes are ignored.
func (c *FileChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ReadFile returns the record currently stored at path.
func ReadFile(path string) (Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}
	return ParseRecord(string(b))
}
