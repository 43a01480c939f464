package leadqueue

import "leadflow/internal/common/logger"

// Notifier receives the user-facing outcome of every mutating action. The
// dashboard front-end renders these as toasts; the daemon logs them.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Success(string) {}
func (NopNotifier) Error(string)   {}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	Logger logger.Logger
}

func (n LogNotifier) Success(msg string) {
	n.Logger.Info(msg, map[string]interface{}{"notification": "success"})
}

func (n LogNotifier) Error(msg string) {
	n.Logger.Warn(msg, map[string]interface{}{"notification": "error"})
}
