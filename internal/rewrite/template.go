package rewrite

import (
	"context"
	"fmt"
	"html"
	"math/rand"
	"regexp"
	"strings"

	"PhoneVerse/internal/domain"
	"PhoneVerse/internal/ports"
)

// StrategyTemplate names the template rewriter in the registry.
const StrategyTemplate = "template"

const (
	maxFactsPerKeyword = 2
	maxHighlights      = 5
	minSentenceLength  = 20
	sentencesPerPara   = 2
)

// Picker returns an index in [0, n). Tests inject a fixed picker.
type Picker func(n int) int

var categoryHooks = map[string][]string{
	domain.CategoryReviews: {
		": Should You Buy in 2026?",
		": Worth Your Money?",
		" Review: Best in Class?",
		": Real World Performance Test",
	},
	domain.CategoryMobileNews: {
		" Launched: Here's Everything New",
		": Price in India Revealed",
		" Coming Soon: Key Features Leaked",
		": What You Need to Know",
	},
	domain.CategoryAndroidUpdates: {
		" Update: 5 New Features You'll Love",
		": Update Rolling Out in India",
		" Gets Major Upgrade",
		" Update: Should You Install?",
	},
	domain.CategoryIPhoneNews: {
		": Is It Worth the Upgrade?",
		" vs Previous Model: What Changed?",
		": Best iPhone to Buy?",
		" Price Drop: Now or Wait?",
	},
	domain.CategoryComparisons: {
		" vs Competition: Clear Winner?",
		": Complete Comparison Guide",
	},
}

var priceRe = regexp.MustCompile(`(?:₹|Rs\.?|\$)\s*\d[\d,]*`)

// Lowercase keywords match case-insensitively; unit tokens must match exactly
// so that "MP" does not hit "impressive".
var specPatterns = buildSpecPatterns([]string{
	"processor", "battery", "camera", "display", "RAM", "storage",
	"mAh", "MP", "inch", "Hz", "GB", "5G", "chipset",
})

func buildSpecPatterns(keywords []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(keywords))
	for _, kw := range keywords {
		flags := ""
		if kw == strings.ToLower(kw) {
			flags = "(?i)"
		}
		out = append(out, regexp.MustCompile(flags+`[\w ]*`+regexp.QuoteMeta(kw)+`[\w ]*`))
	}
	return out
}

type keyFacts struct {
	price    string
	features []string
}

// TemplateRewriter restructures feed copy into a fixed article layout without
// any external service.
type TemplateRewriter struct {
	pick Picker
}

var _ ports.ContentRewriter = (*TemplateRewriter)(nil)

// NewTemplateRewriter builds the rewriter; a nil picker selects hooks at random.
func NewTemplateRewriter(pick Picker) *TemplateRewriter {
	if pick == nil {
		pick = rand.Intn
	}
	return &TemplateRewriter{pick: pick}
}

func (t *TemplateRewriter) Name() string { return StrategyTemplate }

// Rewrite never fails.
func (t *TemplateRewriter) Rewrite(_ context.Context, title, content, category string) domain.Rewrite {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)

	headline := t.headline(title, category)
	facts := extractFacts(content)
	body := buildBody(headline, content, category, facts)

	return domain.Rewrite{
		Title:     headline,
		Content:   body,
		Excerpt:   templateExcerpt(headline, facts),
		WordCount: countWords(body),
	}
}

func (t *TemplateRewriter) headline(title, category string) string {
	if strings.Contains(title, "?") || strings.Contains(title, ":") || strings.Contains(title, "vs") {
		return title
	}
	hooks, ok := categoryHooks[category]
	if !ok {
		hooks = categoryHooks[domain.CategoryMobileNews]
	}
	idx := t.pick(len(hooks))
	if idx < 0 || idx >= len(hooks) {
		idx = 0
	}
	return title + hooks[idx]
}

func extractFacts(content string) keyFacts {
	var facts keyFacts
	if m := priceRe.FindString(content); m != "" {
		facts.price = m
	}
	for _, re := range specPatterns {
		for _, m := range re.FindAllString(content, maxFactsPerKeyword) {
			if m = strings.TrimSpace(m); m != "" {
				facts.features = append(facts.features, m)
			}
		}
	}
	return facts
}

func buildBody(title, content, category string, facts keyFacts) string {
	var b strings.Builder
	writeIntro(&b, title, category, facts)
	writeHighlights(&b, facts)
	writeMainContent(&b, content)
	if category == domain.CategoryReviews || strings.Contains(strings.ToLower(title), "review") {
		writeProsCons(&b)
	}
	writeOpinion(&b, category, facts)
	writeFAQ(&b)
	return strings.TrimSpace(b.String())
}

func writeIntro(b *strings.Builder, title, category string, facts keyFacts) {
	t := "<strong>" + html.EscapeString(title) + "</strong>"
	var intro string
	switch category {
	case domain.CategoryReviews:
		segment := "This price segment"
		if facts.price != "" {
			segment = "The " + html.EscapeString(facts.price) + " price range"
		}
		intro = fmt.Sprintf("Wondering whether this phone is the best option for your budget? %s is crowded, but %s does a few things differently. Here is why.", segment, t)
	case domain.CategoryAndroidUpdates:
		intro = fmt.Sprintf("Good news for Android users. %s could make your phone noticeably better. Here is what is new.", t)
	case domain.CategoryIPhoneNews:
		intro = fmt.Sprintf("Attention Apple users. %s matters if you are thinking about an iPhone upgrade.", t)
	case domain.CategoryComparisons:
		intro = fmt.Sprintf("Not sure which phone to pick? %s puts the contenders side by side so you can make the right call.", t)
	default:
		intro = fmt.Sprintf("If you follow the latest in mobile technology, this one is for you. %s, with the complete details below.", t)
	}
	b.WriteString("<p>" + intro + "</p>\n\n")
}

func writeHighlights(b *strings.Builder, facts keyFacts) {
	b.WriteString("<div class=\"key-highlights\">\n<h2>Key Highlights</h2>\n<ul>\n")
	if facts.price != "" {
		fmt.Fprintf(b, "<li><strong>Price:</strong> %s</li>\n", html.EscapeString(facts.price))
	}
	features := facts.features
	if len(features) > maxHighlights {
		features = features[:maxHighlights]
	}
	for _, f := range features {
		fmt.Fprintf(b, "<li>%s</li>\n", html.EscapeString(f))
	}
	b.WriteString("</ul>\n</div>\n\n")
}

func writeMainContent(b *strings.Builder, content string) {
	var sentences []string
	for _, s := range strings.Split(content, ". ") {
		if len(strings.TrimSpace(s)) > minSentenceLength {
			sentences = append(sentences, strings.TrimSpace(s))
		}
	}
	for i := 0; i < len(sentences); i += sentencesPerPara {
		end := min(i+sentencesPerPara, len(sentences))
		para := strings.TrimSuffix(strings.Join(sentences[i:end], ". "), ".") + "."
		b.WriteString("<p>" + html.EscapeString(para) + "</p>\n\n")
	}
}

func writeProsCons(b *strings.Builder) {
	b.WriteString(`<div class="pros-cons">
<h2>Pros &amp; Cons</h2>
<h3>Pros</h3>
<ul>
<li>Good value for money</li>
<li>Latest features at a competitive price</li>
<li>Strong performance</li>
</ul>
<h3>Cons</h3>
<ul>
<li>Competition is strong in this segment</li>
<li>Some features could be better</li>
</ul>
</div>

`)
}

func writeOpinion(b *strings.Builder, category string, facts keyFacts) {
	switch category {
	case domain.CategoryReviews:
		budget := "this budget"
		if facts.price != "" {
			budget = html.EscapeString(facts.price)
		}
		fmt.Fprintf(b, "<h2>Our Verdict</h2>\n<p><strong>Final opinion:</strong> If you are shopping around %s, this phone is worth a serious look. Check it against your own priorities first: gamers should look at the processor and camera fans at the sensor specs.</p>\n\n", budget)
		b.WriteString("<p><em>This analysis is based on real-world usage and market comparison.</em></p>\n\n")
	case domain.CategoryComparisons:
		b.WriteString("<h2>Which One Should You Buy?</h2>\n<p><strong>Bottom line:</strong> Both phones are strong in their segment. If budget comes first the cheaper option wins. If you want features, look at the other one.</p>\n\n")
	default:
		point := "segment"
		if facts.price != "" {
			point = "price point"
		}
		fmt.Fprintf(b, "<h2>What We Think</h2>\n<p>This is an interesting move for the Indian market. Given the competition, the positioning at this %s looks aggressive.</p>\n\n", point)
	}
}

func writeFAQ(b *strings.Builder) {
	b.WriteString(`<div class="faq-section">
<h2>Frequently Asked Questions</h2>

<div class="faq-item">
<h3>Q: Is this phone worth buying in 2026?</h3>
<p><strong>A:</strong> Yes, if it matches your budget and requirements. There are plenty of options on the market, so compare before you buy.</p>
</div>

<div class="faq-item">
<h3>Q: Where can I buy this in India?</h3>
<p><strong>A:</strong> It is sold through Amazon India, Flipkart and official brand stores. Festival sales often add extra discounts.</p>
</div>
</div>
`)
}

func templateExcerpt(title string, facts keyFacts) string {
	excerpt := title + ". "
	if facts.price != "" {
		excerpt += "Price: " + facts.price + ". "
	}
	excerpt += "Complete details, specifications, and our honest opinion."
	return truncateRunes(excerpt, excerptLength)
}
