package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"PhoneVerse/internal/config"
	"PhoneVerse/internal/domain"
	"PhoneVerse/internal/metrics"
	"PhoneVerse/internal/ports"
)

// Duplicate tiers, in the order they are checked.
const (
	DuplicateSourceURL     = "source_url"
	DuplicateTrackedSource = "tracked_source"
	DuplicateTitle         = "title"
	DuplicateTitlePrefix   = "title_prefix"
)

// Draft is a rewritten article ready to be persisted.
type Draft struct {
	Title         string
	Content       string
	Excerpt       string
	WordCount     int
	Category      string
	FeaturedImage string
	SourceURL     string
	IsManual      bool
	AuthorID      *int64
	AuthorName    string
}

// PublisherDeps wires the driven adapters used by the publisher.
type PublisherDeps struct {
	Articles ports.ArticleRepository
	Users    ports.UserRepository
	Notifier ports.Notifier
	Logger   *zap.Logger
	Clock    func() time.Time
}

// Publisher owns the article lifecycle from ingestion to deletion.
type Publisher struct {
	articles    ports.ArticleRepository
	users       ports.UserRepository
	notifier    ports.Notifier
	logger      *zap.Logger
	now         func() time.Time
	slugs       *SlugGenerator
	autoApprove bool
	prefixLen   int
}

// NewPublisher constructs the publisher.
func NewPublisher(cfg config.PublishingConfig, deps PublisherDeps) *Publisher {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &Publisher{
		articles:    deps.Articles,
		users:       deps.Users,
		notifier:    deps.Notifier,
		logger:      logger.With(zap.String("component", "publisher")),
		now:         now,
		slugs:       NewSlugGenerator(cfg.SlugMaxLength, now),
		autoApprove: cfg.AutoApprove,
		prefixLen:   cfg.TitlePrefixLength,
	}
}

// Duplicate reports which tier, if any, already covers the source URL or title.
func (p *Publisher) Duplicate(ctx context.Context, sourceURL, title string) (string, error) {
	if sourceURL != "" {
		found, err := p.articles.ExistsBySourceURL(ctx, sourceURL)
		if err != nil {
			return "", err
		}
		if found {
			return DuplicateSourceURL, nil
		}
		found, err = p.articles.SourceTracked(ctx, sourceURL)
		if err != nil {
			return "", err
		}
		if found {
			return DuplicateTrackedSource, nil
		}
	}

	title = normalizeTitle(title)
	found, err := p.articles.ExistsByTitle(ctx, title)
	if err != nil {
		return "", err
	}
	if found {
		return DuplicateTitle, nil
	}

	if prefix, ok := titlePrefix(title, p.prefixLen); ok {
		found, err = p.articles.ExistsByTitlePrefix(ctx, prefix)
		if err != nil {
			return "", err
		}
		if found {
			return DuplicateTitlePrefix, nil
		}
	}
	return "", nil
}

// Publish persists a draft. It returns nil without error when the draft is a
// duplicate of something already stored.
func (p *Publisher) Publish(ctx context.Context, d Draft) (*domain.Article, error) {
	d.Title = normalizeTitle(d.Title)
	if d.Title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}

	tier, err := p.Duplicate(ctx, d.SourceURL, d.Title)
	if err != nil {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}
	if tier != "" {
		p.logger.Debug("duplicate skipped", zap.String("title", d.Title), zap.String("tier", tier))
		return nil, nil
	}

	now := p.now().UTC()
	article := domain.Article{
		Title:          d.Title,
		Slug:           p.slugs.Make(d.Title),
		Content:        d.Content,
		Excerpt:        d.Excerpt,
		Category:       d.Category,
		FeaturedImage:  d.FeaturedImage,
		SourceURL:      d.SourceURL,
		Status:         domain.StatusDraft,
		ApprovalStatus: domain.ApprovalPending,
		IsManual:       d.IsManual,
		WordCount:      d.WordCount,
		AuthorID:       d.AuthorID,
		AuthorName:     d.AuthorName,
		CreatedAt:      now,
	}
	if p.autoApprove && !d.IsManual {
		article.Status = domain.StatusPublished
		article.ApprovalStatus = domain.ApprovalApproved
		article.PublishedAt = &now
		article.ApprovedAt = &now
	}

	id, err := p.articles.InsertArticle(ctx, article)
	if err != nil {
		return nil, fmt.Errorf("insert article: %w", err)
	}
	article.ID = id

	if d.SourceURL != "" {
		// The article row is committed; a lost race here only weakens the secondary index.
		if err := p.articles.TrackSource(ctx, domain.NewsSourceRecord{SourceURL: d.SourceURL, Title: d.Title, ArticleID: id}); err != nil {
			p.logger.Warn("track source failed", zap.Int64("article_id", id), zap.Error(err))
		}
	}
	if d.AuthorID != nil {
		if err := p.users.IncrementArticleCount(ctx, *d.AuthorID); err != nil {
			p.logger.Warn("increment article count failed", zap.Int64("user_id", *d.AuthorID), zap.Error(err))
		}
	}

	metrics.ArticlesPublished.WithLabelValues(origin(d.IsManual), string(article.ApprovalStatus)).Inc()
	p.logger.Info("article saved",
		zap.Int64("article_id", id),
		zap.String("slug", article.Slug),
		zap.String("status", string(article.Status)))
	p.notify(ctx, domain.EventArticleCreated, article)
	return &article, nil
}

// Approve publishes an article and refreshes its author's cached stats.
func (p *Publisher) Approve(ctx context.Context, id, adminID int64) (domain.Article, error) {
	if err := p.articles.Approve(ctx, id, adminID, p.now().UTC()); err != nil {
		return domain.Article{}, err
	}
	article, err := p.articles.GetArticle(ctx, id)
	if err != nil {
		return domain.Article{}, err
	}
	if article.AuthorID != nil {
		if err := p.users.RecountUserStats(ctx, *article.AuthorID); err != nil {
			p.logger.Warn("recount user stats failed", zap.Int64("user_id", *article.AuthorID), zap.Error(err))
		}
	}
	p.notify(ctx, domain.EventArticleApproved, article)
	return article, nil
}

// Reject moves an article back to draft with a stored reason.
func (p *Publisher) Reject(ctx context.Context, id int64, reason string) error {
	if err := p.articles.Reject(ctx, id, strings.TrimSpace(reason)); err != nil {
		return err
	}
	p.notify(ctx, domain.EventArticleRejected, domain.Article{
		ID:             id,
		Status:         domain.StatusDraft,
		ApprovalStatus: domain.ApprovalRejected,
	})
	return nil
}

// Delete removes an article and decrements its author's article count.
func (p *Publisher) Delete(ctx context.Context, id int64) error {
	author, err := p.articles.DeleteArticle(ctx, id)
	if err != nil {
		return err
	}
	if author != nil {
		if err := p.users.DecrementArticleCount(ctx, *author); err != nil {
			p.logger.Warn("decrement article count failed", zap.Int64("user_id", *author), zap.Error(err))
		}
	}
	p.notify(ctx, domain.EventArticleDeleted, domain.Article{ID: id})
	return nil
}

func (p *Publisher) notify(ctx context.Context, typ domain.ArticleEventType, a domain.Article) {
	if p.notifier == nil {
		return
	}
	event := domain.ArticleEvent{
		Type:       typ,
		ArticleID:  a.ID,
		Title:      a.Title,
		Slug:       a.Slug,
		Category:   a.Category,
		Status:     a.Status,
		Approval:   a.ApprovalStatus,
		OccurredAt: p.now().UTC(),
	}
	if err := p.notifier.NotifyArticle(ctx, event); err != nil {
		p.logger.Warn("notify failed", zap.String("event", string(typ)), zap.Int64("article_id", a.ID), zap.Error(err))
	}
}

func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(title), " ")
}

// titlePrefix returns the first n runes of title when the title is at least
// that long; shorter titles are covered by the exact match.
func titlePrefix(title string, n int) (string, bool) {
	if n <= 0 {
		return "", false
	}
	runes := []rune(title)
	if len(runes) < n {
		return "", false
	}
	return string(runes[:n]), true
}

func origin(manual bool) string {
	if manual {
		return "manual"
	}
	return "automation"
}
