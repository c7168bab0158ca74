package parser

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"PhoneVerse/internal/config"
	"PhoneVerse/internal/domain"
	"PhoneVerse/internal/metrics"
	"PhoneVerse/internal/ports"
)

// Extractor fetches the readable body of an article page.
type Extractor interface {
	Extract(ctx context.Context, pageURL string) (string, error)
}

// RSSSource implements ports.NewsSource over a static list of RSS feeds.
type RSSSource struct {
	feeds      []config.FeedConfig
	userAgent  string
	client     *http.Client
	maxAge     time.Duration
	minContent int
	extractor  Extractor
	now        func() time.Time
	logger     *zap.Logger
}

var _ ports.NewsSource = (*RSSSource)(nil)

// Option customizes an RSSSource.
type Option func(*RSSSource)

// WithExtractor enables full-text enrichment of thin items.
func WithExtractor(e Extractor) Option {
	return func(s *RSSSource) { s.extractor = e }
}

// WithHTTPClient replaces the client used to download feeds.
func WithHTTPClient(client *http.Client) Option {
	return func(s *RSSSource) { s.client = client }
}

// WithClock fixes the reference time for the freshness window.
func WithClock(now func() time.Time) Option {
	return func(s *RSSSource) { s.now = now }
}

// NewRSSSource wires gofeed with the configured feed list.
func NewRSSSource(cfg config.FeedsConfig, logger *zap.Logger, opts ...Option) *RSSSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RSSSource{
		feeds:      cfg.Sources,
		userAgent:  cfg.UserAgent,
		client:     &http.Client{Timeout: cfg.Timeout},
		maxAge:     cfg.MaxAge,
		minContent: cfg.MinContentLength,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchAll downloads every feed once, drops stale items and returns the rest
// newest first. A failing feed contributes nothing.
func (s *RSSSource) FetchAll(ctx context.Context) ([]domain.NewsItem, error) {
	now := s.now()
	cutoff := now.Add(-s.maxAge)

	perFeed := make([][]domain.NewsItem, len(s.feeds))
	var wg sync.WaitGroup
	for i, feed := range s.feeds {
		i, feed := i, feed
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := s.fetchFeed(ctx, feed, now)
			if err != nil {
				metrics.FeedFetches.WithLabelValues(feed.Name, "error").Inc()
				s.logger.Warn("feed fetch failed", zap.String("feed", feed.Name), zap.String("url", feed.URL), zap.Error(err))
				return
			}
			metrics.FeedFetches.WithLabelValues(feed.Name, "ok").Inc()
			perFeed[i] = items
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var fresh []domain.NewsItem
	for _, items := range perFeed {
		for _, item := range items {
			if item.PublishedAt.Before(cutoff) {
				continue
			}
			fresh = append(fresh, item)
		}
	}

	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].PublishedAt.After(fresh[j].PublishedAt)
	})

	s.logger.Debug("feeds fetched", zap.Int("feeds", len(s.feeds)), zap.Int("fresh_items", len(fresh)))
	return fresh, nil
}

func (s *RSSSource) fetchFeed(ctx context.Context, feed config.FeedConfig, now time.Time) ([]domain.NewsItem, error) {
	parsed, err := s.newParser().ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", feed.URL, err)
	}

	items := make([]domain.NewsItem, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		title := PlainText(it.Title)
		link := strings.TrimSpace(it.Link)
		if title == "" || link == "" {
			continue
		}

		content := it.Content
		if strings.TrimSpace(content) == "" {
			content = it.Description
		}
		text := PlainText(content)
		if s.extractor != nil && len(text) < s.minContent {
			text = s.enrich(ctx, link, text)
		}

		items = append(items, domain.NewsItem{
			OriginalTitle:   title,
			OriginalContent: text,
			SourceURL:       link,
			PublishedAt:     publishedAt(it, now),
			Category:        feed.Category,
			SourceName:      feed.Name,
		})
	}
	return items, nil
}

// newParser returns a parser for a single fetch. gofeed parsers keep per-parse
// state and must not be shared between goroutines.
func (s *RSSSource) newParser() *gofeed.Parser {
	fp := gofeed.NewParser()
	fp.UserAgent = s.userAgent
	fp.Client = s.client
	return fp
}

func (s *RSSSource) enrich(ctx context.Context, link, fallback string) string {
	full, err := s.extractor.Extract(ctx, link)
	if err != nil {
		s.logger.Debug("full text extraction failed", zap.String("url", link), zap.Error(err))
		return fallback
	}
	if len(full) <= len(fallback) {
		return fallback
	}
	return full
}

func publishedAt(it *gofeed.Item, now time.Time) time.Time {
	switch {
	case it.PublishedParsed != nil:
		return it.PublishedParsed.UTC()
	case it.UpdatedParsed != nil:
		return it.UpdatedParsed.UTC()
	default:
		return now.UTC()
	}
}
