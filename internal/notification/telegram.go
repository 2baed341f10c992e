package notification

import (
	"context"
	"fmt"
	"log"
	"strings"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramNotifier sends alerts through the Telegram Bot API sendMessage
// method, formatted as MarkdownV2.
type TelegramNotifier struct {
	botToken string
	chatID   string
	apiBase  string
	poster
}

type sendMessageRequest struct {
	ChatID              string `json:"chat_id"`
	Text                string `json:"text"`
	ParseMode           string `json:"parse_mode"`
	DisableNotification bool   `json:"disable_notification,omitempty"`
}

func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  telegramAPIBase,
		poster:   newPoster(),
	}
}

var levelMarker = map[AlertLevel]string{
	AlertInfo:     "ℹ️",
	AlertWarning:  "⚠️",
	AlertCritical: "🚨",
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s*\n\n%s", levelMarker[alert.Level], escapeMarkdown(alert.Title), escapeMarkdown(alert.Message))
	if alert.CycleID != "" {
		b.WriteString("\n\n_cycle " + escapeMarkdown(alert.CycleID) + "_")
	}

	req := sendMessageRequest{
		ChatID:    t.chatID,
		Text:      b.String(),
		ParseMode: "MarkdownV2",
		// INFO alerts are delivered silently.
		DisableNotification: alert.Level == AlertInfo,
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	if err := t.postJSON(ctx, "telegram", url, req); err != nil {
		return err
	}
	log.Printf("[telegram] sent alert: %s", alert.Title)
	return nil
}

var markdownEscaper = strings.NewReplacer(
	`_`, `\_`, `*`, `\*`, `[`, `\[`, `]`, `\]`, `(`, `\(`, `)`, `\)`,
	`~`, `\~`, "`", "\\`", `>`, `\>`, `#`, `\#`, `+`, `\+`, `-`, `\-`,
	`=`, `\=`, `|`, `\|`, `{`, `\{`, `}`, `\}`, `.`, `\.`, `!`, `\!`,
)

// escapeMarkdown escapes the MarkdownV2 reserved characters.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
