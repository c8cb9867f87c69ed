// Package record opens the capture device and turns frames into PCM bytes.
package record

import (
	"encoding/binary"
	"errors"
)

const (
	// SampleRate is fixed; the transcription backend is fed 16 kHz speech.
	SampleRate = 16000
	Channels   = 1
	BitDepth   = 16
	// FrameSamples is the number of samples read per call.
	FrameSamples = 4096
	// BytesPerSecond of the captured stream.
	BytesPerSecond = SampleRate * Channels * BitDepth / 8
)

var (
	// ErrOverrun marks a recoverable input overflow.
	ErrOverrun = errors.New("input overrun")
	// ErrNoDevice is returned when neither the primary nor the fallback device opens.
	ErrNoDevice = errors.New("no usable capture device")
)

// Device is an open input stream delivering mono S16 frames.
type Device interface {
	// ReadFrame fills frame with the next samples.
	ReadFrame(frame []int16) error
	// Recover attempts to resume after a ReadFrame error. A nil return means
	// capture can continue.
	Recover(err error) error
	Close() error
	Name() string
}

// PeakLevel returns the largest absolute sample normalized to [0,1].
func PeakLevel(frame []int16) float32 {
	var peak int32
	for _, s := range frame {
		v := int32(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	level := float32(peak) / 32768
	if level > 1 {
		level = 1
	}
	return level
}

// AppendFrame appends frame to dst as little-endian bytes.
func AppendFrame(dst []byte, frame []int16) []byte {
	for _, s := range frame {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}
