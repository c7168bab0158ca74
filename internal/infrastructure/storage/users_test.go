package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PhoneVerse/internal/domain"
)

func TestUserLifecycle(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateUser(ctx, domain.User{
		Username:     "alice",
		Email:        "Alice@Example.com",
		PasswordHash: "hash",
		FullName:     "Alice A",
	})
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, domain.User{Username: "alice", Email: "other@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, domain.ErrDuplicateUser)

	exists, err := s.UserExists(ctx, "nobody", "alice@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	byEmail, err := s.GetUserByLogin(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, byEmail.ID)
	assert.Equal(t, domain.RoleUser, byEmail.Role)
	assert.Equal(t, domain.UserActive, byEmail.Status)
	assert.Nil(t, byEmail.LastLogin)

	byName, err := s.GetUserByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, id, byName.ID)

	_, err = s.GetUserByLogin(ctx, "bob")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.UpdateLastLogin(ctx, id, time.Now()))
	bio := "phones"
	require.NoError(t, s.UpdateProfile(ctx, id, domain.ProfileUpdate{Bio: &bio}))
	require.NoError(t, s.SetUserStatus(ctx, id, domain.UserSuspended))
	require.NoError(t, s.SetUserRole(ctx, id, domain.RoleAdmin))

	got, err := s.GetUser(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, got.LastLogin)
	assert.Equal(t, "phones", got.Bio)
	assert.Equal(t, "Alice A", got.FullName)
	assert.Equal(t, domain.UserSuspended, got.Status)
	assert.Equal(t, domain.RoleAdmin, got.Role)

	assert.ErrorIs(t, s.SetUserStatus(ctx, id+50, domain.UserActive), domain.ErrNotFound)
	assert.ErrorIs(t, s.UpdateProfile(ctx, id+50, domain.ProfileUpdate{}), domain.ErrNotFound)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestArticleCountCache(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateUser(ctx, domain.User{Username: "bob", Email: "bob@example.com", PasswordHash: "x"})
	require.NoError(t, err)

	require.NoError(t, s.DecrementArticleCount(ctx, id))
	u, err := s.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), u.ArticleCount)

	require.NoError(t, s.IncrementArticleCount(ctx, id))
	require.NoError(t, s.IncrementArticleCount(ctx, id))
	require.NoError(t, s.IncrementArticleCount(ctx, id))

	aid := insertArticle(t, s, domain.Article{Title: "One", Slug: "one", Content: "x", AuthorID: &id})
	require.NoError(t, s.IncrementViews(ctx, aid))
	require.NoError(t, s.RecountUserStats(ctx, id))

	u, err = s.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ArticleCount)
	assert.Equal(t, int64(1), u.TotalViews)
}

func TestDeleteUserDetachesArticlesAndSessions(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateUser(ctx, domain.User{Username: "carol", Email: "carol@example.com", PasswordHash: "x"})
	require.NoError(t, err)
	aid := insertArticle(t, s, domain.Article{Title: "Hers", Slug: "hers", Content: "x", AuthorID: &id})
	require.NoError(t, s.CreateSession(ctx, domain.Session{Token: "tok", UserID: id, ExpiresAt: time.Now().Add(time.Hour)}))

	require.NoError(t, s.DeleteUser(ctx, id))
	assert.ErrorIs(t, s.DeleteUser(ctx, id), domain.ErrNotFound)

	a, err := s.GetArticle(ctx, aid)
	require.NoError(t, err)
	assert.Nil(t, a.AuthorID)

	_, err = s.GetSession(ctx, "tok", time.Now())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSessions(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	id, err := s.CreateUser(ctx, domain.User{Username: "dan", Email: "dan@example.com", PasswordHash: "x"})
	require.NoError(t, err)

	require.NoError(t, s.CreateSession(ctx, domain.Session{Token: "live", UserID: id, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.CreateSession(ctx, domain.Session{Token: "stale", UserID: id, ExpiresAt: now.Add(-time.Minute)}))

	got, err := s.GetSession(ctx, "live", now)
	require.NoError(t, err)
	assert.Equal(t, id, got.UserID)

	_, err = s.GetSession(ctx, "stale", now)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	swept, err := s.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)

	require.NoError(t, s.DeleteSession(ctx, "live"))
	require.NoError(t, s.DeleteSession(ctx, "live"))
	_, err = s.GetSession(ctx, "live", now)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
