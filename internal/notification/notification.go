package notification

import (
	"context"
	"log/slog"
)

const (
	// KindTransferCompleted announces a transfer that was sent and recorded.
	KindTransferCompleted = "transfer_completed"
	// KindTransferNotSent announces an attempt that failed before broadcast.
	KindTransferNotSent = "transfer_not_sent"
	// KindBookkeepingFailed announces a sent transfer whose conversion or record failed.
	KindBookkeepingFailed = "transfer_bookkeeping_failed"
)

// Message is a human-readable notice for the account holder.
type Message struct {
	Kind        string
	Destination string
	TxHash      string
	Body        string
}

// Notifier delivers notices to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notices to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send logs the notice; bookkeeping failures are logged at warn.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	level := slog.LevelInfo
	if message.Kind == KindBookkeepingFailed {
		level = slog.LevelWarn
	}
	n.logger.Log(ctx, level, "notification",
		"kind", message.Kind,
		"destination", message.Destination,
		"tx_hash", message.TxHash,
		"body", message.Body,
	)
	return nil
}
