//go:build unix

package instance

import (
	"errors"

	"golang.org/x/sys/unix"
)

func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

func signalStop(pid int) error {
	return unix.Kill(pid, unix.SIGUSR1)
}
