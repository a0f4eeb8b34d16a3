package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pingboard/backend/internal/infrastructure/config"
)

// maxTelegramResponseSize limits the response body size to prevent memory exhaustion
const maxTelegramResponseSize = 1 * 1024 * 1024 // 1MB max response

// TelegramMessenger implements Messenger using the Telegram Bot API.
// Messages are sent with HTML parse mode so the survey link renders as
// an anchor.
type TelegramMessenger struct {
	token      string
	apiBase    string
	httpClient *http.Client
}

// NewTelegramMessenger creates a messenger backed by the Telegram Bot API
func NewTelegramMessenger(cfg config.TelegramConfig) (*TelegramMessenger, error) {
	if cfg.BotToken == "" {
		return nil, ErrNotConfigured
	}
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &TelegramMessenger{
		token:   cfg.BotToken,
		apiBase: apiBase,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// sendMessageRequest is the Bot API sendMessage payload
type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// sendMessageResponse is the Bot API envelope
type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// Send delivers a message to a Telegram chat
func (m *TelegramMessenger) Send(ctx context.Context, chatID string, text string) error {
	payload := sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sendMessage payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", m.apiBase, m.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxTelegramResponseSize))
	if err != nil {
		return fmt.Errorf("read sendMessage response: %w", err)
	}

	var result sendMessageResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("decode sendMessage response: %w", err)
	}

	if !result.OK {
		// 400/403 with "chat not found" or "bot was blocked" means the
		// recipient is unreachable, not that the API is down
		if result.ErrorCode == http.StatusBadRequest || result.ErrorCode == http.StatusForbidden {
			return fmt.Errorf("%w: %s", ErrChatNotFound, result.Description)
		}
		return fmt.Errorf("%w: [%d] %s", ErrSendFailed, result.ErrorCode, result.Description)
	}

	return nil
}

// Ensure TelegramMessenger implements Messenger
var _ Messenger = (*TelegramMessenger)(nil)
