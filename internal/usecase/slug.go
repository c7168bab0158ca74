package usecase

import (
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const fallbackSlug = "article"

// SlugGenerator derives URL slugs that stay unique within the process even
// when two identical titles land in the same millisecond.
type SlugGenerator struct {
	mu     sync.Mutex
	now    func() time.Time
	maxLen int
	last   int64
	seq    int
}

// NewSlugGenerator builds a generator; maxLen bounds the title part.
func NewSlugGenerator(maxLen int, now func() time.Time) *SlugGenerator {
	if now == nil {
		now = time.Now
	}
	if maxLen <= 0 {
		maxLen = 80
	}
	return &SlugGenerator{now: now, maxLen: maxLen}
}

// Make returns "<title-part>-<base36 millis>[-<seq>]".
func (g *SlugGenerator) Make(title string) string {
	base := Slugify(title, g.maxLen)

	g.mu.Lock()
	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last
		g.seq++
	} else {
		g.last = ms
		g.seq = 0
	}
	seq := g.seq
	g.mu.Unlock()

	suffix := strconv.FormatInt(ms, 36)
	if seq > 0 {
		suffix += "-" + strconv.Itoa(seq)
	}
	return base + "-" + suffix
}

// Slugify lowercases title, keeps ASCII letters and digits, and joins words
// with single hyphens.
func Slugify(title string, maxLen int) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case r == '-' || r == ' ' || r == '\t' || r == '\n':
			pendingHyphen = true
		}
	}
	slug := b.String()
	if maxLen > 0 && utf8.RuneCountInString(slug) > maxLen {
		slug = strings.TrimRight(slug[:maxLen], "-")
	}
	if slug == "" {
		return fallbackSlug
	}
	return slug
}
