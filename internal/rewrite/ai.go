package rewrite

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"PhoneVerse/internal/domain"
	"PhoneVerse/internal/metrics"
	"PhoneVerse/internal/ports"
)

const (
	minTitleLength = 10
	maxTitleLength = 200
)

var (
	headingTitleRe = regexp.MustCompile(`(?m)^#[ \t]+(.+)$`)
	labelTitleRe   = regexp.MustCompile(`(?mi)^\**title:\**[ \t]*(.+)$`)
	strongRe       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	emRe           = regexp.MustCompile(`\*([^*\s][^*]*)\*`)
)

// AIRewriter delegates rewriting to a text-generation API and degrades to the
// original text when the call fails.
type AIRewriter struct {
	name   string
	client ports.ChatClient
	logger *zap.Logger
}

var _ ports.ContentRewriter = (*AIRewriter)(nil)

// NewAIRewriter wraps client under the given strategy name.
func NewAIRewriter(name string, client ports.ChatClient, logger *zap.Logger) *AIRewriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AIRewriter{name: name, client: client, logger: logger}
}

func (a *AIRewriter) Name() string { return a.name }

func (a *AIRewriter) Rewrite(ctx context.Context, title, content, category string) domain.Rewrite {
	out, err := a.client.Complete(ctx, buildPrompt(title, content, category))
	if err == nil && strings.TrimSpace(out) == "" {
		err = fmt.Errorf("empty completion")
	}
	if err != nil {
		metrics.RewriteFallbacks.WithLabelValues(a.name).Inc()
		a.logger.Warn("rewrite failed, using original text",
			zap.String("strategy", a.name), zap.String("title", title), zap.Error(err))
		return fallbackRewrite(title, content)
	}

	newTitle, body := splitTitle(out, title)
	htmlBody := markdownToHTML(body)
	text := plainText(htmlBody)
	return domain.Rewrite{
		Title:     newTitle,
		Content:   htmlBody,
		Excerpt:   Excerpt(text),
		WordCount: len(strings.Fields(text)),
	}
}

func buildPrompt(title, content, category string) string {
	return fmt.Sprintf(`You are a tech journalist. Rewrite this phone news article in your own words.

ORIGINAL TITLE: %s

ORIGINAL: %s

INSTRUCTIONS:
- Rewrite completely (no plagiarism)
- Add your opinion
- 800-1200 words
- Professional but conversational tone
- Include H2 headings
- Start with the new headline on its own line, prefixed with "# "
- Category: %s

Write the article NOW:`, title, content, category)
}

// splitTitle pulls the headline out of generated markdown. The line is removed
// from the body only when it is accepted.
func splitTitle(out, original string) (string, string) {
	for _, re := range []*regexp.Regexp{headingTitleRe, labelTitleRe} {
		loc := re.FindStringSubmatchIndex(out)
		if loc == nil {
			continue
		}
		candidate := strings.Trim(strings.TrimSpace(out[loc[2]:loc[3]]), `*"`)
		n := utf8.RuneCountInString(candidate)
		if n < minTitleLength || n > maxTitleLength {
			continue
		}
		return candidate, out[:loc[0]] + out[loc[1]:]
	}
	return original, out
}

func fallbackRewrite(title, content string) domain.Rewrite {
	return domain.Rewrite{
		Title:     title,
		Content:   "<p>" + html.EscapeString(content) + "</p>",
		Excerpt:   Excerpt(content),
		WordCount: len(strings.Fields(content)),
	}
}

// markdownToHTML handles the subset models actually emit: headings,
// bullet lists, bold, italics and blank-line paragraphs.
func markdownToHTML(md string) string {
	var (
		out  strings.Builder
		para []string
		list []string
	)
	flushPara := func() {
		if len(para) > 0 {
			out.WriteString("<p>" + inline(strings.Join(para, " ")) + "</p>\n")
			para = nil
		}
	}
	flushList := func() {
		if len(list) > 0 {
			out.WriteString("<ul>\n")
			for _, item := range list {
				out.WriteString("<li>" + inline(item) + "</li>\n")
			}
			out.WriteString("</ul>\n")
			list = nil
		}
	}

	for _, raw := range strings.Split(strings.ReplaceAll(md, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
			flushPara()
			flushList()
		case strings.HasPrefix(line, "### "):
			flushPara()
			flushList()
			out.WriteString("<h3>" + inline(strings.TrimSpace(line[4:])) + "</h3>\n")
		case strings.HasPrefix(line, "## "), strings.HasPrefix(line, "# "):
			flushPara()
			flushList()
			out.WriteString("<h2>" + inline(strings.TrimSpace(strings.TrimLeft(line, "#"))) + "</h2>\n")
		case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
			flushPara()
			list = append(list, strings.TrimSpace(line[2:]))
		default:
			flushList()
			para = append(para, line)
		}
	}
	flushPara()
	flushList()
	return strings.TrimSpace(out.String())
}

func inline(s string) string {
	s = html.EscapeString(s)
	s = strongRe.ReplaceAllString(s, "<strong>$1</strong>")
	return emRe.ReplaceAllString(s, "<em>$1</em>")
}
