package httpapi

import (
	"bufio"
	"context"
	"errors"
	"html"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"PhoneVerse/internal/domain"
	"PhoneVerse/internal/infrastructure/uploads"
	"PhoneVerse/internal/rewrite"
	"PhoneVerse/internal/usecase"
)

const (
	sniffLen        = 512
	multipartMemory = 8 << 20
)

func (h *handlers) submitArticle(c *gin.Context) {
	ctx := c.Request.Context()
	user := currentUser(c)
	if h.Server.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Server.MaxUploadBytes)
	}

	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, http.StatusRequestEntityTooLarge, "Upload too large")
			return
		}
		writeError(c, http.StatusBadRequest, "Invalid form data")
		return
	}

	title := strings.TrimSpace(c.PostForm("title"))
	content := strings.TrimSpace(c.PostForm("content"))
	category := strings.TrimSpace(c.PostForm("category"))
	if title == "" || content == "" || category == "" {
		writeError(c, http.StatusBadRequest, "Title, content, and category are required")
		return
	}

	reason, err := h.Publisher.Duplicate(ctx, "", title)
	if err != nil {
		h.fail(c, err)
		return
	}
	if reason != "" {
		writeError(c, http.StatusConflict, "A similar article already exists")
		return
	}

	uploaded, err := h.saveUpload(c)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			writeError(c, http.StatusBadRequest, "Only JPEG, PNG, GIF and WebP images are allowed")
			return
		}
		h.fail(c, err)
		return
	}
	image := uploaded
	if image == "" {
		image = h.Images.Resolve(title, category)
	}

	plain := strings.Join(strings.Fields(content), " ")
	authorID := user.ID
	article, err := h.Publisher.Publish(ctx, usecase.Draft{
		Title:         title,
		Content:       paragraphs(content),
		Excerpt:       rewrite.Excerpt(plain),
		WordCount:     len(strings.Fields(plain)),
		Category:      category,
		FeaturedImage: image,
		IsManual:      true,
		AuthorID:      &authorID,
		AuthorName:    user.DisplayName(),
	})
	if err != nil || article == nil {
		h.discardUpload(c, uploaded)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	if article == nil {
		writeError(c, http.StatusConflict, "A similar article already exists")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":   true,
		"message":   "Article submitted for review",
		"articleId": article.ID,
		"slug":      article.Slug,
		"article":   article,
	})
}

// saveUpload stores the optional "image" part and returns its URL, or "" when
// no file was sent.
func (h *handlers) saveUpload(c *gin.Context) (string, error) {
	header, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", err
	}
	if h.Uploads == nil {
		return "", nil
	}
	f, err := header.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, sniffLen)
	head, err := r.Peek(sniffLen)
	if err != nil && len(head) == 0 {
		return "", domain.ErrValidation
	}
	contentType := http.DetectContentType(head)
	if _, ok := uploads.Extension(contentType); !ok {
		return "", domain.ErrValidation
	}

	url, err := h.Uploads.Save(c.Request.Context(), header.Filename, contentType, r)
	if err != nil {
		return "", err
	}
	h.logger.Info("image uploaded", zap.String("file", header.Filename), zap.String("url", url))
	return url, nil
}

// paragraphs escapes user text and wraps blank-line separated blocks in <p>.
func paragraphs(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var b strings.Builder
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		for i, line := range lines {
			lines[i] = html.EscapeString(strings.TrimSpace(line))
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br>"))
		b.WriteString("</p>\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// discardUpload removes an image stored for a submission that was not kept.
func (h *handlers) discardUpload(c *gin.Context, url string) {
	if url == "" || h.Uploads == nil {
		return
	}
	if err := h.Uploads.Delete(context.WithoutCancel(c.Request.Context()), url); err != nil {
		h.logger.Warn("discard upload failed", zap.String("url", url), zap.Error(err))
	}
}

func (h *handlers) myArticles(c *gin.Context) {
	articles, err := h.Articles.ListByAuthor(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(articles))
}
