// Package telegram sends run reports to a Telegram chat.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fgeck/snapcron/internal/models"
	"github.com/rs/zerolog"
)

// Service defines the interface for Telegram notification operations.
type Service interface {
	SendNotification(ctx context.Context, cfg models.TelegramConfig, msg models.TelegramMessage) (*models.TelegramResult, error)
}

// HTTPClient allows mocking HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Impl implements the Service interface.
type Impl struct {
	httpClient HTTPClient
	logger     zerolog.Logger
	baseURL    string
}

// New creates a new Telegram service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		baseURL:    "https://api.telegram.org",
	}
}

// NewWithClient creates a new Telegram service with a custom HTTP client (for testing).
func NewWithClient(logger zerolog.Logger, httpClient HTTPClient, baseURL string) *Impl {
	return &Impl{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
	}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendNotification posts msg to the configured chat.
func (s *Impl) SendNotification(ctx context.Context, cfg models.TelegramConfig, msg models.TelegramMessage) (*models.TelegramResult, error) {
	result := &models.TelegramResult{}

	s.logger.Debug().
		Str("chat_id", cfg.ChatID).
		Bool("success", msg.Success).
		Msg("sending Telegram notification")

	body, err := json.Marshal(sendMessageRequest{
		ChatID:    cfg.ChatID,
		Text:      FormatMessage(msg),
		ParseMode: "HTML",
	})
	if err != nil {
		return result, fmt.Errorf("encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return result, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return result, fmt.Errorf("sending request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return result, fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	result.MessageSent = true
	return result, nil
}

// MaxMessageLength is the text limit of the sendMessage API.
const MaxMessageLength = 4096

const elided = "[...]"

// FormatMessage renders msg as Telegram HTML. Long error text is shortened so
// the message stays within MaxMessageLength.
func FormatMessage(msg models.TelegramMessage) string {
	var b strings.Builder

	if msg.Success {
		b.WriteString("✅ <b>Backup run succeeded</b>\n\n")
	} else {
		b.WriteString("❌ <b>Backup run failed</b>\n\n")
	}

	fmt.Fprintf(&b, "<b>Host:</b> %s\n", html.EscapeString(msg.Host))
	fmt.Fprintf(&b, "<b>Modes:</b> %s\n", html.EscapeString(strings.Join(msg.Modes, " ")))
	fmt.Fprintf(&b, "<b>Started:</b> %s\n", msg.StartTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "<b>Duration:</b> %s\n", msg.Duration.Round(time.Second))

	if msg.SyncedPaths > 0 || msg.Unmounted {
		b.WriteString("\n<b>Sync:</b>\n")
		fmt.Fprintf(&b, "  • Paths synced: %d\n", msg.SyncedPaths)
		fmt.Fprintf(&b, "  • Unmounted: %t\n", msg.Unmounted)
	}

	if len(msg.Rotations) > 0 {
		b.WriteString("\n<b>Snapshots:</b>\n")
		for _, r := range msg.Rotations {
			fmt.Fprintf(&b, "  • %s: %d generations, %d shifted\n", html.EscapeString(r.Frequency), r.Depth, r.Shifted)
		}
	}

	if !msg.Success {
		b.WriteString("\n<b>Error:</b>\n")
		fmt.Fprintf(&b, "  • Failed step: %s\n", html.EscapeString(msg.FailedStep))
		const wrapper = "  • <code></code>\n"
		budget := MaxMessageLength - utf8.RuneCountInString(b.String()) - utf8.RuneCountInString(wrapper)
		fmt.Fprintf(&b, "  • <code>%s</code>\n", clip(msg.ErrorMessage, budget))
	}

	return b.String()
}

// clip escapes text for HTML and shortens it to at most budget runes, keeping
// the first line and as many trailing lines as fit. Command output ends with
// the lines that explain the failure.
func clip(text string, budget int) string {
	escaped := html.EscapeString(text)
	if utf8.RuneCountInString(escaped) <= budget {
		return escaped
	}
	if budget <= 0 {
		return ""
	}

	lines := strings.Split(text, "\n")
	head := cutRunes(html.EscapeString(lines[0]), budget/2)
	used := utf8.RuneCountInString(head) + 1 + utf8.RuneCountInString(elided)

	var tail []string
	for i := len(lines) - 1; i > 0; i-- {
		line := html.EscapeString(lines[i])
		n := utf8.RuneCountInString(line) + 1
		if used+n > budget {
			break
		}
		tail = append(tail, line)
		used += n
	}

	var b strings.Builder
	b.WriteString(head)
	b.WriteString("\n")
	b.WriteString(elided)
	for i := len(tail) - 1; i >= 0; i-- {
		b.WriteString("\n")
		b.WriteString(tail[i])
	}
	return b.String()
}

// cutRunes shortens s to n runes without leaving half an HTML entity behind.
func cutRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	s = string(r[:n])
	if amp := strings.LastIndexByte(s, '&'); amp >= 0 && !strings.Contains(s[amp:], ";") {
		s = s[:amp]
	}
	return s
}
