//go:build !unix

package instance

import "fmt"

func processAlive(pid int) bool { return false }

func signalStop(pid int) error {
	return fmt.Errorf("stop signal not supported on this platform")
}
