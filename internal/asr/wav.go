package asr

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"

	"github.com/zackham/voice-transcribe/internal/record"
)

// TempPrefix marks files created per session; stale ones are removed at startup.
const TempPrefix = "RecordTemp_"

// wavChunk is the number of samples converted per encoder write.
const wavChunk = 4096

// Encode writes little-endian mono 16-bit PCM at 16 kHz into a WAV file in
// dir and returns its path. The file is a 44-byte header followed by the
// samples; a trailing odd byte is dropped.
func Encode(dir string, pcm []byte) (string, error) {
	if len(pcm) < 2 {
		return "", ErrNoAudio
	}
	path := tempPath(dir, "wav")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create wav failed: %w", err)
	}

	enc := wav.NewEncoder(f, record.SampleRate, record.BitDepth, record.Channels, 1)
	format := &audio.Format{NumChannels: record.Channels, SampleRate: record.SampleRate}
	intBuf := make([]int, wavChunk)

	samples := len(pcm) / 2
	for off := 0; off < samples; off += wavChunk {
		n := samples - off
		if n > wavChunk {
			n = wavChunk
		}
		for i := 0; i < n; i++ {
			intBuf[i] = int(int16(binary.LittleEndian.Uint16(pcm[(off+i)*2:])))
		}
		buf := &audio.IntBuffer{Format: format, Data: intBuf[:n], SourceBitDepth: record.BitDepth}
		if err := enc.Write(buf); err != nil {
			_ = f.Close()
			_ = os.Remove(path)
			return "", fmt.Errorf("wav write failed: %w", err)
		}
	}

	if err := enc.Close(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("wav close failed: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("wav close failed: %w", err)
	}
	return path, nil
}

func tempPath(dir, ext string) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
	base := fmt.Sprintf("%s%s.%s", TempPrefix, id, ext)
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, base)
}
