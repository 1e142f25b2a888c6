package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chitechevents/eventsync/internal/reconcile"
)

// telegramMaxMessage is the Bot API limit for one message.
const telegramMaxMessage = 4096

var telegramAPIBaseURL = "https://api.telegram.org/bot"

// TelegramNotifier sends the digest to a Telegram chat through the Bot API.
// Digests longer than one message are split on line boundaries.
type TelegramNotifier struct {
	botToken   string
	chatID     string
	httpClient *http.Client
	heading    string
	location   *time.Location
}

// NewTelegramNotifier creates a notifier that posts to chatID as the bot.
func NewTelegramNotifier(botToken, chatID, heading string, loc *time.Location, timeout time.Duration) (*TelegramNotifier, error) {
	if botToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if chatID == "" {
		return nil, fmt.Errorf("chat ID is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		heading:  heading,
		location: loc,
	}, nil
}

// Notify sends the digest for rows. An empty batch sends nothing.
func (n *TelegramNotifier) Notify(ctx context.Context, rows []reconcile.Row) error {
	if len(rows) == 0 {
		return nil
	}
	parts := splitMessage(FormatDigest(rows, n.heading, n.location), telegramMaxMessage)
	for i, part := range parts {
		if err := n.sendMessage(ctx, part); err != nil {
			return fmt.Errorf("sending digest part %d of %d: %w", i+1, len(parts), err)
		}
	}
	return nil
}

func (n *TelegramNotifier) sendMessage(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s%s/sendMessage", telegramAPIBaseURL, n.botToken)

	payload := map[string]interface{}{
		"chat_id":                  n.chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("telegram API error: %s", result.Description)
	}
	return nil
}

// splitMessage cuts text into chunks of at most limit bytes, preferring line
// breaks. A single line longer than limit is cut at a rune boundary.
func splitMessage(text string, limit int) []string {
	var parts []string
	for len(text) > limit {
		cut := strings.LastIndexByte(text[:limit], '\n')
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
		}
		parts = append(parts, strings.TrimRight(text[:cut], "\n"))
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if strings.TrimSpace(text) != "" {
		parts = append(parts, text)
	}
	return parts
}
