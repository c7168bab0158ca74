package ports

import (
	"context"
	"io"
	"time"

	"PhoneVerse/internal/domain"
)

// NewsSource pulls fresh items from upstream feeds.
type NewsSource interface {
	FetchAll(ctx context.Context) ([]domain.NewsItem, error)
}

// ContentRewriter turns a raw item into publishable copy. Implementations
// degrade instead of failing.
type ContentRewriter interface {
	Name() string
	Rewrite(ctx context.Context, title, content, category string) domain.Rewrite
}

// ImageResolver maps a title and category to a featured image reference.
type ImageResolver interface {
	Resolve(title, category string) string
}

// ChatClient sends a single prompt to a text-generation API.
type ChatClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ArticleRepository persists articles and the source-tracking index.
type ArticleRepository interface {
	InsertArticle(ctx context.Context, article domain.Article) (int64, error)
	GetArticle(ctx context.Context, id int64) (domain.Article, error)
	GetVisibleBySlug(ctx context.Context, slug string) (domain.Article, error)
	IncrementViews(ctx context.Context, id int64) error
	ListVisible(ctx context.Context, query domain.ArticleQuery) ([]domain.Article, error)
	ListByApproval(ctx context.Context, approval domain.ApprovalStatus, limit int) ([]domain.Article, error)
	ListAll(ctx context.Context, limit int) ([]domain.Article, error)
	ListByAuthor(ctx context.Context, authorID int64) ([]domain.Article, error)
	Approve(ctx context.Context, id, adminID int64, at time.Time) error
	Reject(ctx context.Context, id int64, reason string) error
	DeleteArticle(ctx context.Context, id int64) (*int64, error)
	Stats(ctx context.Context) (domain.SiteStats, error)

	ExistsBySourceURL(ctx context.Context, sourceURL string) (bool, error)
	SourceTracked(ctx context.Context, sourceURL string) (bool, error)
	ExistsByTitle(ctx context.Context, title string) (bool, error)
	ExistsByTitlePrefix(ctx context.Context, prefix string) (bool, error)
	TrackSource(ctx context.Context, record domain.NewsSourceRecord) error
	ClearSources(ctx context.Context) (int64, error)
}

// UserRepository persists accounts and their cached aggregates.
type UserRepository interface {
	CreateUser(ctx context.Context, user domain.User) (int64, error)
	UserExists(ctx context.Context, username, email string) (bool, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetUserByLogin(ctx context.Context, login string) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	UpdateProfile(ctx context.Context, id int64, update domain.ProfileUpdate) error
	SetUserStatus(ctx context.Context, id int64, status domain.UserStatus) error
	SetUserRole(ctx context.Context, id int64, role domain.Role) error
	DeleteUser(ctx context.Context, id int64) error
	IncrementArticleCount(ctx context.Context, id int64) error
	DecrementArticleCount(ctx context.Context, id int64) error
	RecountUserStats(ctx context.Context, id int64) error
}

// SessionRepository persists issued tokens for revocation.
type SessionRepository interface {
	CreateSession(ctx context.Context, session domain.Session) error
	GetSession(ctx context.Context, token string, now time.Time) (domain.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Notifier fans article lifecycle events out to external channels.
type Notifier interface {
	NotifyArticle(ctx context.Context, event domain.ArticleEvent) error
}

// ImageStore keeps user-uploaded images and returns their public URL.
// Delete takes a URL returned by Save; unknown URLs are not an error.
type ImageStore interface {
	Save(ctx context.Context, name, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

// RunLock guards automation runs across processes.
type RunLock interface {
	Acquire(ctx context.Context) (release func(context.Context) error, acquired bool, err error)
}

// Scheduler controls when recurring jobs execute.
type Scheduler interface {
	Schedule(spec string, job func(time.Time)) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
