package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"PhoneVerse/internal/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func intQuery(c *gin.Context, key string, def, lo, hi int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return min(max(n, lo), hi)
}

func pageQuery(c *gin.Context) (limit, offset int) {
	limit = intQuery(c, "limit", defaultPageSize, 1, maxPageSize)
	offset = intQuery(c, "offset", 0, 0, 1<<31-1)
	return limit, offset
}

func (h *handlers) listVisible(c *gin.Context, q domain.ArticleQuery) {
	q.Limit, q.Offset = pageQuery(c)
	articles, err := h.Articles.ListVisible(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(articles))
}

func (h *handlers) listArticles(c *gin.Context) {
	h.listVisible(c, domain.ArticleQuery{Category: c.Query("category")})
}

func (h *handlers) listCategory(c *gin.Context) {
	h.listVisible(c, domain.ArticleQuery{Category: c.Param("category")})
}

func (h *handlers) search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		writeError(c, http.StatusBadRequest, "Search query required")
		return
	}
	h.listVisible(c, domain.ArticleQuery{Search: q})
}

func (h *handlers) getArticle(c *gin.Context) {
	ctx := c.Request.Context()
	article, err := h.Articles.GetVisibleBySlug(ctx, c.Param("slug"))
	if err != nil {
		if statusFor(err) == http.StatusNotFound {
			writeError(c, http.StatusNotFound, "Article not found")
			return
		}
		h.fail(c, err)
		return
	}
	if err := h.Articles.IncrementViews(ctx, article.ID); err != nil {
		h.logger.Warn("increment views failed", zap.Int64("article_id", article.ID), zap.Error(err))
	} else {
		article.ViewCount++
	}
	c.JSON(http.StatusOK, article)
}

func (h *handlers) health(c *gin.Context) {
	if h.Ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := h.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "down"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "up", "time": time.Now().UTC()})
}

func (h *handlers) ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
