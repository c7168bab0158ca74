package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PhoneVerse/internal/config"
	"PhoneVerse/internal/domain"
)

func TestNotifyArticleSendsMessage(t *testing.T) {
	t.Parallel()

	var path, chat, text string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		path, chat, text = r.URL.Path, r.PostForm.Get("chat_id"), r.PostForm.Get("text")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	n := NewNotifier(config.TelegramConfig{BotToken: "tok", ChatID: "42", APIBase: srv.URL})
	err := n.NotifyArticle(context.Background(), domain.ArticleEvent{
		Type:     domain.EventArticleCreated,
		Title:    "Phone X Launched Today",
		Slug:     "phone-x-launched-today-abc",
		Category: domain.CategoryMobileNews,
		Approval: domain.ApprovalPending,
	})
	require.NoError(t, err)

	assert.Equal(t, "/bottok/sendMessage", path)
	assert.Equal(t, "42", chat)
	assert.Equal(t, "New article awaiting review [mobile-news]\nPhone X Launched Today\n/article/phone-x-launched-today-abc", text)
}

func TestNotifyArticleIgnoresOtherEvents(t *testing.T) {
	t.Parallel()

	n := NewNotifier(config.TelegramConfig{})
	assert.NoError(t, n.NotifyArticle(context.Background(), domain.ArticleEvent{Type: domain.EventArticleDeleted}))
	assert.EqualError(t, n.NotifyArticle(context.Background(), domain.ArticleEvent{Type: domain.EventArticleApproved}),
		"telegram notifier misconfigured")
}

func TestNotifyArticleReportsHTTPErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	n := NewNotifier(config.TelegramConfig{BotToken: "tok", ChatID: "42", APIBase: srv.URL})
	err := n.NotifyArticle(context.Background(), domain.ArticleEvent{Type: domain.EventArticleApproved, Title: "x"})
	assert.EqualError(t, err, "telegram error: 400 Bad Request")
}
