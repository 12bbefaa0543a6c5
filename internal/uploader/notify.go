package uploader

import "go.uber.org/zap"

// Notifier shows human-readable messages to the user. Calls are
// fire-and-forget: nothing waits for the user to dismiss them.
type Notifier interface {
	Error(msg string)
	Warning(msg string)
}

// ZapNotifier surfaces notifications as log entries. It's what the CLI uses
// in place of a toast.
type ZapNotifier struct {
	logger *zap.Logger
}

// NewZapNotifier creates a notifier writing to logger.
func NewZapNotifier(logger *zap.Logger) *ZapNotifier {
	return &ZapNotifier{logger: logger.Named("notify")}
}

func (n *ZapNotifier) Error(msg string) {
	n.logger.Error(msg)
}

func (n *ZapNotifier) Warning(msg string) {
	n.logger.Warn(msg)
}
