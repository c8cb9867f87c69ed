// Package ffmpeg transcodes the recorded WAV before upload.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Options describes the target encoding. The input is always mono 16 kHz.
type Options struct {
	Codec      string
	BitRateK   int
	SampleRate int
	// Binary overrides the ffmpeg executable.
	Binary string
}

// Args builds the ffmpeg command line for converting inPath to outPath.
func Args(opts Options, inPath, outPath string) ([]string, error) {
	ffCodec, codecHasBitrate := CodecFor(opts.Codec)
	if ffCodec == "" {
		return nil, fmt.Errorf("unsupported codec: %s", opts.Codec)
	}
	sr := opts.SampleRate
	if sr <= 0 {
		sr = 16000
	}
	bitrate := opts.BitRateK
	if bitrate <= 0 {
		bitrate = 64
	}

	args := []string{"-y", "-loglevel", "error", "-i", inPath, "-ac", "1", "-ar", strconv.Itoa(sr), "-c:a", ffCodec}
	if codecHasBitrate {
		args = append(args, "-b:a", fmt.Sprintf("%dk", bitrate))
	}
	return append(args, outPath), nil
}

// Convert runs ffmpeg and returns its stderr on failure.
func Convert(ctx context.Context, opts Options, inPath, outPath string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	args, err := Args(opts, inPath, outPath)
	if err != nil {
		return err
	}
	bin := opts.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	log.Debug("executing", zap.String("cmd", bin+" "+strings.Join(args, " ")))

	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %v\n%s", err, stderr.String())
	}
	return nil
}

// CodecFor maps codec names to ffmpeg encoders and whether they take a bitrate.
func CodecFor(key string) (string, bool) {
	switch strings.ToLower(key) {
	case "opus", "libopus":
		return "libopus", true
	case "aac":
		return "aac", true
	case "mp3":
		return "libmp3lame", true
	case "flac":
		return "flac", false
	case "vorbis", "libvorbis":
		return "libvorbis", true
	case "pcm":
		return "pcm_s16le", false
	default:
		return "", false
	}
}
