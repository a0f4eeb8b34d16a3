package messenger

import (
	"context"
	"errors"
)

// Common errors
var (
	ErrNotConfigured = errors.New("messenger is not configured")
	ErrSendFailed    = errors.New("message send failed")
	ErrChatNotFound  = errors.New("recipient chat not found")
)

// Messenger delivers rendered ping messages to a participant's chat.
// ChatID is the messenger-native account identifier (for Telegram, the
// numeric chat ID as a string).
type Messenger interface {
	Send(ctx context.Context, chatID string, text string) error
}
