// Package notify delivers operator messages.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
)

const (
	defaultTelegramBaseURL = "https://api.telegram.org"
	defaultTimeout         = 5 * time.Second
	maxErrorBody           = 4 << 10
)

var ErrNotConfigured = errors.New("notifier not configured")

type Telegram struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
}

type TelegramOption func(*Telegram)

// WithTelegramBaseURL points the notifier at another Bot API host.
func WithTelegramBaseURL(u string) TelegramOption {
	return func(t *Telegram) {
		if u != "" {
			t.baseURL = u
		}
	}
}

func WithHTTPClient(c *http.Client) TelegramOption {
	return func(t *Telegram) {
		if c != nil {
			t.client = c
		}
	}
}

func NewTelegram(token, chatID string, opts ...TelegramOption) (*Telegram, error) {
	if token == "" || chatID == "" {
		return nil, ErrNotConfigured
	}
	t := &Telegram{
		baseURL: defaultTelegramBaseURL,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notify posts message to the configured chat through the Bot API sendMessage method.
func (t *Telegram) Notify(ctx context.Context, message string) error {
	body, err := jsoniter.ConfigFastest.Marshal(sendMessageRequest{ChatID: t.chatID, Text: message})
	if err != nil {
		return fmt.Errorf("encode telegram message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("read telegram response: %w", err)
	}

	var out sendMessageResponse
	if err := jsoniter.ConfigFastest.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("telegram responded %d: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !out.OK {
		return fmt.Errorf("telegram responded %d: %s", resp.StatusCode, out.Description)
	}
	return nil
}
