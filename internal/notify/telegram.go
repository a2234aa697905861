package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sweeney/power-monitor/internal/logic"
)

// DefaultTelegramAPI is the Telegram Bot API base URL.
const DefaultTelegramAPI = "https://api.telegram.org"

// TelegramConfig configures a TelegramNotifier.
type TelegramConfig struct {
	APIURL string
	Token  string
	ChatID string
	Texts  logic.Texts
}

// TelegramNotifier sends transitions to a chat through the Bot API.
type TelegramNotifier struct {
	client   *http.Client
	endpoint string
	chatID   string
	texts    logic.Texts
}

// NewTelegramNotifier creates a notifier for cfg. client may be nil.
func NewTelegramNotifier(cfg TelegramConfig, client *http.Client) (*TelegramNotifier, error) {
	if cfg.Token == "" || cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram: token and chat id are required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	api := cfg.APIURL
	if api == "" {
		api = DefaultTelegramAPI
	}
	return &TelegramNotifier{
		client:   client,
		endpoint: strings.TrimRight(api, "/") + "/bot" + cfg.Token + "/sendMessage",
		chatID:   cfg.ChatID,
		texts:    cfg.Texts,
	}, nil
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts msg and succeeds only when the API answers ok.
func (n *TelegramNotifier) Send(ctx context.Context, msg logic.Message) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: n.chatID, Text: msg.Text(n.texts)})
	if err != nil {
		return fmt.Errorf("telegram: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("telegram: read response: %w", err)
	}

	var r apiResponse
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("telegram: status %d: decode response: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !r.OK {
		return fmt.Errorf("telegram: status %d: %s", resp.StatusCode, r.Description)
	}
	return nil
}

// Close is a no-op.
func (n *TelegramNotifier) Close() error {
	return nil
}
