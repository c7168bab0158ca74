package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"PhoneVerse/internal/domain"
)

var articleColumns = []string{
	"id", "title", "slug", "content", "excerpt", "category", "featured_image",
	"source_url", "status", "approval_status", "is_manual", "view_count", "word_count",
	"author_id", "author_name", "created_at", "published_at", "approved_by",
	"approved_at", "rejection_reason",
}

// visible is the single definition of "publicly readable".
func visible() sq.Eq {
	return sq.Eq{
		"status":          string(domain.StatusPublished),
		"approval_status": string(domain.ApprovalApproved),
	}
}

func (s *Store) selectArticles() sq.SelectBuilder {
	return s.sb.Select(articleColumns...).From("articles")
}

func scanArticle(row scanner) (domain.Article, error) {
	var (
		a           domain.Article
		sourceURL   sql.NullString
		authorID    sql.NullInt64
		approvedBy  sql.NullInt64
		publishedAt sql.NullTime
		approvedAt  sql.NullTime
		reason      sql.NullString
		status      string
		approval    string
	)
	err := row.Scan(
		&a.ID, &a.Title, &a.Slug, &a.Content, &a.Excerpt, &a.Category, &a.FeaturedImage,
		&sourceURL, &status, &approval, &a.IsManual, &a.ViewCount, &a.WordCount,
		&authorID, &a.AuthorName, &a.CreatedAt, &publishedAt, &approvedBy,
		&approvedAt, &reason,
	)
	if err != nil {
		return domain.Article{}, err
	}
	a.SourceURL = sourceURL.String
	a.Status = domain.ArticleStatus(status)
	a.ApprovalStatus = domain.ApprovalStatus(approval)
	a.AuthorID = ptrInt(authorID)
	a.ApprovedBy = ptrInt(approvedBy)
	a.PublishedAt = ptrTime(publishedAt)
	a.ApprovedAt = ptrTime(approvedAt)
	a.RejectionReason = reason.String
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}

func (s *Store) listArticles(ctx context.Context, b sq.SelectBuilder) ([]domain.Article, error) {
	rows, err := s.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	articles := make([]domain.Article, 0)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return articles, nil
}

func (s *Store) getArticle(ctx context.Context, pred sq.Sqlizer) (domain.Article, error) {
	row, err := s.queryRow(ctx, s.selectArticles().Where(pred).Limit(1))
	if err != nil {
		return domain.Article{}, err
	}
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Article{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Article{}, fmt.Errorf("get article: %w", err)
	}
	return a, nil
}

// InsertArticle stores a new article and returns its id.
func (s *Store) InsertArticle(ctx context.Context, a domain.Article) (int64, error) {
	var publishedAt, approvedAt any
	if a.PublishedAt != nil {
		publishedAt = s.ts(*a.PublishedAt)
	}
	if a.ApprovedAt != nil {
		approvedAt = s.ts(*a.ApprovedAt)
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	b := s.sb.Insert("articles").
		Columns(
			"title", "slug", "content", "excerpt", "category", "featured_image",
			"source_url", "status", "approval_status", "is_manual", "word_count",
			"author_id", "author_name", "created_at", "published_at", "approved_by", "approved_at",
		).
		Values(
			a.Title, a.Slug, a.Content, a.Excerpt, a.Category, a.FeaturedImage,
			nullString(a.SourceURL), string(a.Status), string(a.ApprovalStatus), a.IsManual, a.WordCount,
			nullInt(a.AuthorID), a.AuthorName, s.ts(createdAt), publishedAt, nullInt(a.ApprovedBy), approvedAt,
		).
		Suffix("RETURNING id")

	row, err := s.queryRow(ctx, b)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("insert article: %w", err)
	}
	return id, nil
}

// GetArticle loads an article regardless of visibility.
func (s *Store) GetArticle(ctx context.Context, id int64) (domain.Article, error) {
	return s.getArticle(ctx, sq.Eq{"id": id})
}

// GetVisibleBySlug loads a publicly readable article.
func (s *Store) GetVisibleBySlug(ctx context.Context, slug string) (domain.Article, error) {
	return s.getArticle(ctx, sq.And{visible(), sq.Eq{"slug": slug}})
}

// IncrementViews bumps the view counter.
func (s *Store) IncrementViews(ctx context.Context, id int64) error {
	_, err := s.exec(ctx, s.sb.Update("articles").
		Set("view_count", sq.Expr("view_count + 1")).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	return nil
}

// ListVisible returns public articles, newest first.
func (s *Store) ListVisible(ctx context.Context, q domain.ArticleQuery) ([]domain.Article, error) {
	b := s.selectArticles().Where(visible())
	if q.Category != "" && q.Category != "all" {
		b = b.Where(sq.Eq{"category": q.Category})
	}
	if term := strings.TrimSpace(q.Search); term != "" {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		b = b.Where(sq.Or{
			sq.Expr(`LOWER(title) LIKE ? ESCAPE '\'`, pattern),
			sq.Expr(`LOWER(content) LIKE ? ESCAPE '\'`, pattern),
		})
	}
	b = b.OrderBy("published_at DESC", "id DESC").
		Limit(uint64(max(q.Limit, 1))).
		Offset(uint64(max(q.Offset, 0)))
	return s.listArticles(ctx, b)
}

// ListByApproval returns articles in a moderation state, newest first.
func (s *Store) ListByApproval(ctx context.Context, approval domain.ApprovalStatus, limit int) ([]domain.Article, error) {
	return s.listArticles(ctx, s.selectArticles().
		Where(sq.Eq{"approval_status": string(approval)}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(max(limit, 1))))
}

// ListAll returns the latest articles in any state.
func (s *Store) ListAll(ctx context.Context, limit int) ([]domain.Article, error) {
	return s.listArticles(ctx, s.selectArticles().
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(max(limit, 1))))
}

// ListByAuthor returns every article attributed to a user.
func (s *Store) ListByAuthor(ctx context.Context, authorID int64) ([]domain.Article, error) {
	return s.listArticles(ctx, s.selectArticles().
		Where(sq.Eq{"author_id": authorID}).
		OrderBy("created_at DESC", "id DESC"))
}

// Approve publishes an article on behalf of an admin.
func (s *Store) Approve(ctx context.Context, id, adminID int64, at time.Time) error {
	res, err := s.exec(ctx, s.sb.Update("articles").
		Set("status", string(domain.StatusPublished)).
		Set("approval_status", string(domain.ApprovalApproved)).
		Set("approved_by", adminID).
		Set("approved_at", s.ts(at)).
		Set("published_at", s.ts(at)).
		Set("rejection_reason", nil).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("approve article: %w", err)
	}
	return affectedOrNotFound(res)
}

// Reject moves an article back to draft with a reason.
func (s *Store) Reject(ctx context.Context, id int64, reason string) error {
	res, err := s.exec(ctx, s.sb.Update("articles").
		Set("status", string(domain.StatusDraft)).
		Set("approval_status", string(domain.ApprovalRejected)).
		Set("rejection_reason", nullString(reason)).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("reject article: %w", err)
	}
	return affectedOrNotFound(res)
}

// DeleteArticle removes an article and returns its author, if any.
func (s *Store) DeleteArticle(ctx context.Context, id int64) (*int64, error) {
	row, err := s.queryRow(ctx, s.sb.Select("author_id").From("articles").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	var author sql.NullInt64
	if err := row.Scan(&author); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("load article author: %w", err)
	}

	res, err := s.exec(ctx, s.sb.Delete("articles").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("delete article: %w", err)
	}
	if err := affectedOrNotFound(res); err != nil {
		return nil, err
	}
	return ptrInt(author), nil
}

// Stats aggregates dashboard counters.
func (s *Store) Stats(ctx context.Context) (domain.SiteStats, error) {
	var (
		stats domain.SiteStats
		err   error
	)
	if stats.TotalArticles, err = s.count(ctx, s.sb.Select("COUNT(1)").From("articles")); err != nil {
		return stats, fmt.Errorf("count articles: %w", err)
	}
	if stats.PublishedArticles, err = s.count(ctx, s.sb.Select("COUNT(1)").From("articles").Where(visible())); err != nil {
		return stats, fmt.Errorf("count published: %w", err)
	}
	if stats.PendingReview, err = s.count(ctx, s.sb.Select("COUNT(1)").From("articles").
		Where(sq.Eq{"approval_status": string(domain.ApprovalPending)})); err != nil {
		return stats, fmt.Errorf("count pending: %w", err)
	}
	if stats.TotalUsers, err = s.count(ctx, s.sb.Select("COUNT(1)").From("users")); err != nil {
		return stats, fmt.Errorf("count users: %w", err)
	}
	if stats.TotalViews, err = s.count(ctx, s.sb.Select("COALESCE(SUM(view_count), 0)").From("articles")); err != nil {
		return stats, fmt.Errorf("sum views: %w", err)
	}
	return stats, nil
}

// ExistsBySourceURL reports whether an article came from sourceURL.
func (s *Store) ExistsBySourceURL(ctx context.Context, sourceURL string) (bool, error) {
	ok, err := s.exists(ctx, "articles", sq.Eq{"source_url": sourceURL})
	if err != nil {
		return false, fmt.Errorf("lookup source url: %w", err)
	}
	return ok, nil
}

// SourceTracked reports whether sourceURL is in the tracking index.
func (s *Store) SourceTracked(ctx context.Context, sourceURL string) (bool, error) {
	ok, err := s.exists(ctx, "news_sources", sq.Eq{"source_url": sourceURL})
	if err != nil {
		return false, fmt.Errorf("lookup tracked source: %w", err)
	}
	return ok, nil
}

// ExistsByTitle reports an exact title match.
func (s *Store) ExistsByTitle(ctx context.Context, title string) (bool, error) {
	ok, err := s.exists(ctx, "articles", sq.Eq{"title": title})
	if err != nil {
		return false, fmt.Errorf("lookup title: %w", err)
	}
	return ok, nil
}

// ExistsByTitlePrefix reports whether any title starts with prefix, ignoring case.
func (s *Store) ExistsByTitlePrefix(ctx context.Context, prefix string) (bool, error) {
	pattern := escapeLike(strings.ToLower(prefix)) + "%"
	ok, err := s.exists(ctx, "articles", sq.Expr(`LOWER(title) LIKE ? ESCAPE '\'`, pattern))
	if err != nil {
		return false, fmt.Errorf("lookup title prefix: %w", err)
	}
	return ok, nil
}

// TrackSource records a source URL in the tracking index.
func (s *Store) TrackSource(ctx context.Context, rec domain.NewsSourceRecord) error {
	_, err := s.exec(ctx, s.sb.Insert("news_sources").
		Columns("source_url", "title", "article_id", "created_at").
		Values(rec.SourceURL, rec.Title, rec.ArticleID, s.ts(time.Now())))
	if err != nil {
		return fmt.Errorf("track source: %w", err)
	}
	return nil
}

// ClearSources empties the tracking index and reports removed rows.
func (s *Store) ClearSources(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, s.sb.Delete("news_sources"))
	if err != nil {
		return 0, fmt.Errorf("clear sources: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
