package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultTelegramAPI = "https://api.telegram.org"

var _ Notifier = (*TelegramNotifier)(nil)

// TelegramConfig holds Telegram Bot API settings.
type TelegramConfig struct {
	BotToken string  `yaml:"bot_token"`
	ChatID   string  `yaml:"chat_id"`
	APIURL   string  `yaml:"api_url"`
	Rate     float64 `yaml:"rate"` // messages per second
	Burst    int     `yaml:"burst"`
}

// Enabled reports whether a bot token is configured.
func (c TelegramConfig) Enabled() bool {
	return c.BotToken != ""
}

type telegramRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// TelegramNotifier posts messages with the Bot API sendMessage method.
type TelegramNotifier struct {
	client  *http.Client
	cfg     TelegramConfig
	limiter *rate.Limiter
}

func NewTelegramNotifier(cfg TelegramConfig) *TelegramNotifier {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultTelegramAPI
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &TelegramNotifier{
		client:  &http.Client{Timeout: 15 * time.Second},
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
	}
}

func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return classifyContext(ctx, fmt.Errorf("telegram rate limiter: %w", err))
	}

	body, err := json.Marshal(telegramRequest{
		ChatID:    t.cfg.ChatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return fmt.Errorf("marshal telegram request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.cfg.APIURL, "/"), t.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// The URL carries the bot token; report only the method.
		return classifyContext(ctx, fmt.Errorf("telegram sendMessage: %w", stripURL(err)))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	var tr telegramResponse
	_ = json.Unmarshal(raw, &tr)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retry := time.Second
		if tr.Parameters != nil && tr.Parameters.RetryAfter > 0 {
			retry = time.Duration(tr.Parameters.RetryAfter) * time.Second
		}
		return &RateLimitError{RetryAfter: retry}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: telegram status %d: %s", ErrRejected, resp.StatusCode, tr.Description)
	default:
		return fmt.Errorf("telegram status %d: %s", resp.StatusCode, tr.Description)
	}
}

// stripURL drops the request URL from a *url.Error.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}
