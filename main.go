// voice-transcribe toggles a background microphone recording. The first
// invocation starts recording; the next one stops it, uploads the audio for
// transcription and copies the text to the clipboard.
//
// Build notes:
//   - PortAudio is used through cgo, so the native library and CGO_ENABLED=1
//     are required.
//   - ffmpeg must be on PATH when CONTAINER is not WAV or for the file command.
package main

import (
	"fmt"
	"os"

	"github.com/zackham/voice-transcribe/internal/app"
)

func main() {
	if err := app.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
