// Package status publishes the daemon's recording state for external readers.
//
// The channel holds a single line of the form STATUS|level|MM:SS and is
// rewritten on every update.
package status

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status is a recording session state.
type Status int32

const (
	Connecting Status = iota
	Ready
	Recording
	Processing
	Uploading
	Copied
	Failed
	NoAudio
	MaxTime
	Error
)

var names = [...]string{
	Connecting: "CONNECTING",
	Ready:      "READY",
	Recording:  "RECORDING",
	Processing: "PROCESSING",
	Uploading:  "UPLOADING",
	Copied:     "COPIED",
	Failed:     "FAILED",
	NoAudio:    "NO_AUDIO",
	MaxTime:    "MAX_TIME",
	Error:      "ERROR",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(names) {
		return fmt.Sprintf("Status(%d)", int32(s))
	}
	return names[s]
}

// Terminal reports whether a session ends in s.
func (s Status) Terminal() bool {
	switch s {
	case Copied, Failed, NoAudio, Error:
		return true
	}
	return false
}

// ParseStatus maps a wire name back to a Status.
func ParseStatus(name string) (Status, error) {
	for i, n := range names {
		if n == name {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

// Record is one snapshot of a session.
type Record struct {
	Status  Status
	Level   float32
	Elapsed time.Duration
}

// Format renders r as STATUS|level|MM:SS.
func Format(r Record) string {
	level := r.Level
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	secs := int(r.Elapsed / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%s|%.2f|%02d:%02d", r.Status, level, secs/60, secs%60)
}

// ParseRecord parses a line produced by Format.
func ParseRecord(line string) (Record, error) {
	line = strings.TrimRight(line, "\r\n")
	parts := strings.Split(line, "|")
	if len(parts) != 3 {
		return Record{}, fmt.Errorf("malformed status line %q", line)
	}
	st, err := ParseStatus(parts[0])
	if err != nil {
		return Record{}, err
	}
	level, err := strconv.ParseFloat(parts[1], 32)
	if err != nil {
		return Record{}, fmt.Errorf("invalid level %q: %w", parts[1], err)
	}
	mm, ss, ok := strings.Cut(parts[2], ":")
	if !ok {
		return Record{}, fmt.Errorf("invalid elapsed %q", parts[2])
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return Record{}, fmt.Errorf("invalid minutes %q: %w", mm, err)
	}
	s, err := strconv.Atoi(ss)
	if err != nil || s < 0 || s > 59 {
		return Record{}, fmt.Errorf("invalid seconds %q", ss)
	}
	return Record{
		Status:  st,
		Level:   float32(level),
		Elapsed: time.Duration(m*60+s) * time.Second,
	}, nil
}
