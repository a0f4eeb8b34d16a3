package messenger

import (
	"context"

	"go.uber.org/zap"
)

// ConsoleMessenger logs messages instead of delivering them. Used in
// development when no bot token is configured.
type ConsoleMessenger struct {
	logger *zap.Logger
}

// NewConsoleMessenger creates a messenger that writes to the application log
func NewConsoleMessenger(logger *zap.Logger) *ConsoleMessenger {
	return &ConsoleMessenger{logger: logger.Named("console-messenger")}
}

// Send logs the message that would have been delivered
func (m *ConsoleMessenger) Send(_ context.Context, chatID string, text string) error {
	m.logger.Info("message delivery (console)",
		zap.String("chat_id", chatID),
		zap.String("text", text),
	)
	return nil
}

// Ensure ConsoleMessenger implements Messenger
var _ Messenger = (*ConsoleMessenger)(nil)
