package usecase

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"PhoneVerse/internal/config"
	"PhoneVerse/internal/domain"
	"PhoneVerse/internal/infrastructure/storage"
)

var baseTime = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock { return &fakeClock{now: baseTime} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(context.Background(), storage.DriverSQLite, filepath.Join(t.TempDir(), "usecase.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func publishingConfig(autoApprove bool) config.PublishingConfig {
	return config.PublishingConfig{AutoApprove: autoApprove, TitlePrefixLength: 40, SlugMaxLength: 80}
}

func newPublisher(t *testing.T, s *storage.Store, clock *fakeClock, autoApprove bool) *Publisher {
	t.Helper()
	return NewPublisher(publishingConfig(autoApprove), PublisherDeps{
		Articles: s,
		Users:    s,
		Clock:    clock.Now,
	})
}

func createUser(t *testing.T, s *storage.Store, username string) int64 {
	t.Helper()
	id, err := s.CreateUser(context.Background(), domain.User{
		Username:     username,
		Email:        username + "@example.test",
		PasswordHash: "x",
	})
	require.NoError(t, err)
	return id
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.ArticleEvent
}

func (r *recordingNotifier) NotifyArticle(_ context.Context, e domain.ArticleEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingNotifier) types() []domain.ArticleEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ArticleEventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
