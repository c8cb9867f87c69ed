package notify

import (
	"github.com/gen2brain/beeep"
	"go.uber.org/zap"
)

// Title is shown on every notification.
const Title = "Voice Transcribe"

// Notifier posts desktop notifications when enabled.
type Notifier struct {
	enabled bool
	send    func(title, message string) error
	log     *zap.Logger
}

// New returns a Notifier backed by beeep.
func New(enabled bool, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{enabled: enabled, send: Notify, log: log}
}

// Notify shows a desktop notification.
func Notify(title, message string) error {
	return beeep.Notify(title, message, "")
}

// Post shows message if notifications are enabled. Failures are only logged.
func (n *Notifier) Post(message string) {
	if n == nil || !n.enabled {
		return
	}
	if err := n.send(Title, message); err != nil {
		n.log.Debug("notification failed", zap.String("message", message), zap.Error(err))
	}
}
