//go:build !unix

package app

import (
	"errors"
	"os"
)

func stopSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

func spawnDaemon() (int, error) {
	return 0, errors.New("background recording is not supported on this platform; use --foreground")
}
