package domain

import "time"

// ArticleStatus is the editorial state of an article.
type ArticleStatus string

const (
	StatusDraft         ArticleStatus = "draft"
	StatusPendingReview ArticleStatus = "pending_review"
	StatusPublished     ArticleStatus = "published"
)

// ApprovalStatus is the moderation state of an article.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Well-known categories. Feeds may use any string; these drive hooks and images.
const (
	CategoryMobileNews     = "mobile-news"
	CategoryReviews        = "reviews"
	CategoryAndroidUpdates = "android-updates"
	CategoryIPhoneNews     = "iphone-news"
	CategoryComparisons    = "comparisons"
	CategoryGuides         = "guides"
)

// Article is a persisted, publishable story.
type Article struct {
	ID              int64          `json:"id"`
	Title           string         `json:"title"`
	Slug            string         `json:"slug"`
	Content         string         `json:"content"`
	Excerpt         string         `json:"excerpt"`
	Category        string         `json:"category"`
	FeaturedImage   string         `json:"featured_image"`
	SourceURL       string         `json:"source_url,omitempty"`
	Status          ArticleStatus  `json:"status"`
	ApprovalStatus  ApprovalStatus `json:"approval_status"`
	IsManual        bool           `json:"is_manual"`
	ViewCount       int64          `json:"view_count"`
	WordCount       int            `json:"word_count"`
	AuthorID        *int64         `json:"author_id,omitempty"`
	AuthorName      string         `json:"author_name,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	PublishedAt     *time.Time     `json:"published_at,omitempty"`
	ApprovedBy      *int64         `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time     `json:"approved_at,omitempty"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
}

// Visible reports whether the article may be served to anonymous readers.
func (a Article) Visible() bool {
	return a.Status == StatusPublished && a.ApprovalStatus == ApprovalApproved
}

// NewsItem is a normalized feed entry before rewriting.
type NewsItem struct {
	OriginalTitle   string
	OriginalContent string
	SourceURL       string
	PublishedAt     time.Time
	Category        string
	SourceName      string
}

// Rewrite is the output of a content rewriter.
type Rewrite struct {
	Title     string
	Content   string
	Excerpt   string
	WordCount int
}

// NewsSourceRecord tracks which upstream URLs were already turned into articles.
type NewsSourceRecord struct {
	SourceURL string
	Title     string
	ArticleID int64
}

// ArticleQuery filters public and admin listings.
type ArticleQuery struct {
	Category string
	Search   string
	Limit    int
	Offset   int
}

// SiteStats aggregates the admin dashboard counters.
type SiteStats struct {
	TotalArticles     int64 `json:"totalArticles"`
	PublishedArticles int64 `json:"publishedArticles"`
	PendingReview     int64 `json:"pendingReview"`
	TotalUsers        int64 `json:"totalUsers"`
	TotalViews        int64 `json:"totalViews"`
}

// ArticleEventType names a lifecycle transition broadcast to notifiers.
type ArticleEventType string

const (
	EventArticleCreated  ArticleEventType = "article.created"
	EventArticleApproved ArticleEventType = "article.approved"
	EventArticleRejected ArticleEventType = "article.rejected"
	EventArticleDeleted  ArticleEventType = "article.deleted"
)

// ArticleEvent is emitted after a lifecycle transition is committed.
type ArticleEvent struct {
	Type       ArticleEventType `json:"type"`
	ArticleID  int64            `json:"article_id"`
	Title      string           `json:"title,omitempty"`
	Slug       string           `json:"slug,omitempty"`
	Category   string           `json:"category,omitempty"`
	Status     ArticleStatus    `json:"status,omitempty"`
	Approval   ApprovalStatus   `json:"approval_status,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}
