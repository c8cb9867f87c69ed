// Package clipboard hands transcription text to the desktop clipboard.
package clipboard

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"

	"github.com/atotto/clipboard"
)

// Sink receives the final text.
type Sink interface {
	Copy(text string) error
}

// New returns a Command sink for a non-empty command line, else System.
func New(command string) Sink {
	args := strings.Fields(command)
	if len(args) == 0 {
		return System{}
	}
	return Command{Args: args}
}

// System writes through atotto/clipboard, which picks wl-copy, xclip or xsel.
type System struct{}

func (System) Copy(text string) error {
	return clipboard.WriteAll(text)
}

// Command pipes the text into an external program such as wl-copy.
type Command struct {
	Args []string
}

func (c Command) Copy(text string) error {
	if len(c.Args) == 0 {
		return fmt.Errorf("clipboard command is empty")
	}
	cmd := exec.Command(c.Args[0], c.Args[1:]...)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %v: %s", c.Args[0], err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
