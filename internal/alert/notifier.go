package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Notifier delivers firing events to an external channel.
type Notifier interface {
	Notify(ctx context.Context, firing Firing) error
}

// TelegramNotifier pushes firings through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify posts the firing as a sendMessage call.
func (n *TelegramNotifier) Notify(ctx context.Context, firing Firing) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    RenderFiring(firing),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram responded %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().
		Str("rule_id", firing.Rule.ID).
		Str("condition", string(firing.Rule.Condition)).
		Str("threshold", firing.Rule.Threshold.String()).
		Msg("alert dispatched via telegram")
	return nil
}

// RenderFiring formats the user-visible notification text.
func RenderFiring(firing Firing) string {
	direction := "risen above"
	if firing.Rule.Condition == ConditionBelow {
		direction = "dropped below"
	}
	return fmt.Sprintf("Price Alert: BTC has %s $%s (now $%s)",
		direction, firing.Rule.Threshold.StringFixed(2), firing.Price.StringFixed(2))
}

var _ Notifier = (*TelegramNotifier)(nil)
