package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"PhoneVerse/internal/config"
	"PhoneVerse/internal/domain"
	"PhoneVerse/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

// Notifier sends article lifecycle messages to a Telegram chat via bot API.
type Notifier struct {
	apiBase  string
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(cfg config.TelegramConfig) *Notifier {
	base := strings.TrimRight(cfg.APIBase, "/")
	if base == "" {
		base = defaultAPIBase
	}
	return &Notifier{
		apiBase:  base,
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// NotifyArticle posts a short message for created and approved articles.
// Other event types are ignored.
func (n *Notifier) NotifyArticle(ctx context.Context, event domain.ArticleEvent) error {
	text := formatEvent(event)
	if text == "" {
		return nil
	}
	return n.send(ctx, text)
}

func formatEvent(event domain.ArticleEvent) string {
	switch event.Type {
	case domain.EventArticleCreated:
		if event.Approval == domain.ApprovalPending {
			return fmt.Sprintf("New article awaiting review [%s]\n%s\n/article/%s", event.Category, event.Title, event.Slug)
		}
		return fmt.Sprintf("Published [%s]\n%s\n/article/%s", event.Category, event.Title, event.Slug)
	case domain.EventArticleApproved:
		return fmt.Sprintf("Approved\n%s\n/article/%s", event.Title, event.Slug)
	default:
		return ""
	}
}

func (n *Notifier) send(ctx context.Context, text string) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}
