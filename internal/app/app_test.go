package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"PhoneVerse/internal/config"
	"PhoneVerse/internal/domain"
	"PhoneVerse/internal/usecase"
)

const feedBody = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>t</title><link>http://x.test</link><description>d</description>
<item>
  <title>Phone X Launched Today</title>
  <link>https://news.test/phone-x</link>
  <pubDate>%s</pubDate>
  <description>The Phone X ships with 12GB RAM and a 5000mAh battery for $699.</description>
</item>
</channel></rss>`

func testConfig(t *testing.T, feedURL string) config.Config {
	t.Helper()
	dir := t.TempDir()
	yaml := fmt.Sprintf(`
database:
  driver: sqlite
  dsn: %s
auth:
  jwtSecret: ""
  bcryptCost: 4
automation:
  itemDelay: 1ms
publishing:
  autoApprove: true
rewriter:
  strategy: openai
images:
  uploadDir: %s
feeds:
  sources:
    - name: Test
      url: %s
      category: mobile-news
`, filepath.Join(dir, "app.db"), filepath.Join(dir, "uploads"), feedURL)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	return cfg
}

func TestRunOncePublishesFeedItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, feedBody, time.Now().Add(-time.Hour).Format(time.RFC1123Z))
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	// No OpenAI key: the openai strategy falls back to the template rewriter.
	a, err := New(ctx, testConfig(t, srv.URL), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	res, err := a.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, usecase.TriggerManual, res.Trigger)
	assert.Equal(t, 1, res.Saved)

	res, err = a.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Saved)
	assert.Equal(t, 1, res.Duplicates)

	articles, err := a.store.ListVisible(ctx, domain.ArticleQuery{Limit: 10})
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "https://news.test/phone-x", articles[0].SourceURL)
	assert.Contains(t, articles[0].FeaturedImage, "picsum.photos")
}

func TestNewGeneratesSecretAndRegistersAdmin(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t, "http://127.0.0.1:1/feed"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	user, err := a.Auth().Register(ctx, usecase.RegisterInput{
		Username: "admin", Email: "admin@example.test", Password: "secret123", Role: domain.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, user.Role)

	res, err := a.Auth().Login(ctx, "admin", "secret123")
	require.NoError(t, err)
	verified, err := a.Auth().Verify(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, verified.ID)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1/feed")
	cfg.Database.Driver = "oracle"
	_, err := New(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestRandomSecret(t *testing.T) {
	a, b := RandomSecret(), RandomSecret()
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
