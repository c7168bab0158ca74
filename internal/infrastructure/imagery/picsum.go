package imagery

import (
	"fmt"
	"strings"
	"unicode/utf16"

	"PhoneVerse/internal/domain"
	"PhoneVerse/internal/ports"
)

const DefaultURLTemplate = "https://picsum.photos/id/%d/1344/768"

type keywordSet struct {
	keyword string
	ids     []int
}

// Checked in order; the first keyword contained in the lowercased title wins.
var keywordSets = []keywordSet{
	{"iphone", []int{0, 1, 48, 119, 152, 225, 237, 287, 367, 445, 659, 718}},
	{"apple", []int{0, 1, 48, 119, 152, 225, 237, 287, 367, 445}},
	{"macbook", []int{48, 119, 152, 225, 237, 287, 367, 445, 478, 525}},
	{"ipad", []int{1, 48, 152, 225, 287, 367, 445, 525, 659}},
	{"samsung", []int{10, 28, 63, 82, 96, 180, 200, 250, 381, 426, 548}},
	{"galaxy", []int{10, 28, 63, 82, 96, 180, 200, 250, 381, 426}},
	{"pixel", []int{1, 48, 82, 119, 169, 225, 287, 367, 445, 525, 593}},
	{"google", []int{1, 48, 82, 119, 169, 225, 287, 367, 445, 525}},
	{"android", []int{10, 28, 63, 96, 180, 287, 381, 445, 571, 593}},
	{"oneplus", []int{20, 48, 96, 180, 250, 367, 426, 525, 616}},
	{"xiaomi", []int{28, 63, 96, 180, 250, 381, 445, 548, 616}},
	{"redmi", []int{28, 63, 96, 180, 250, 381, 445, 548}},
	{"realme", []int{20, 63, 96, 180, 250, 381, 426, 548}},
	{"oppo", []int{28, 63, 180, 250, 381, 426, 548, 616}},
	{"vivo", []int{28, 63, 180, 250, 381, 426, 548, 616}},
	{"nothing", []int{1, 48, 96, 169, 287, 367, 445, 525, 593}},
	{"motorola", []int{20, 48, 96, 180, 250, 367, 426, 525}},
	{"ai", []int{1, 10, 82, 96, 180, 287, 381, 445, 571, 659}},
	{"artificial intelligence", []int{1, 10, 82, 96, 180, 287, 381, 445}},
	{"gaming", []int{20, 96, 103, 152, 250, 367, 426, 525, 616, 718}},
	{"game", []int{20, 96, 103, 152, 250, 367, 426, 525, 616}},
	{"camera", []int{26, 39, 48, 55, 70, 103, 119, 152, 169, 225}},
	{"battery", []int{28, 63, 82, 96, 180, 250, 287, 381, 426}},
	{"5g", []int{1, 10, 48, 82, 180, 287, 367, 445, 525, 593}},
	{"software", []int{1, 10, 82, 96, 180, 287, 381, 445, 571}},
	{"update", []int{10, 48, 82, 180, 287, 367, 445, 525, 593}},
}

var categoryRanges = map[string][]int{
	domain.CategoryMobileNews: {
		0, 1, 10, 20, 25, 28, 30, 40, 48, 52, 63, 69,
		82, 96, 106, 119, 152, 163, 164, 180, 182, 193,
		201, 206, 225, 237, 244, 250, 287, 367, 381, 403,
	},
	domain.CategoryReviews: {
		26, 39, 42, 48, 55, 70, 88, 103, 109, 119, 129,
		152, 158, 169, 177, 180, 200, 225, 237, 239, 250,
		269, 287, 292, 367, 381, 403, 426, 445, 478,
	},
	domain.CategoryAndroidUpdates: {
		1, 10, 28, 30, 48, 63, 82, 96, 103, 119, 152,
		169, 180, 193, 200, 225, 237, 250, 287, 292,
		367, 381, 403, 426, 445, 478, 525, 548, 571, 593,
	},
	domain.CategoryIPhoneNews: {
		0, 1, 48, 63, 82, 96, 119, 152, 169, 180, 200,
		225, 237, 244, 250, 287, 292, 367, 381, 403,
		426, 445, 478, 503, 525, 548, 571, 593, 659, 718,
	},
	domain.CategoryComparisons: {
		10, 20, 28, 39, 48, 82, 103, 119, 152, 180,
		200, 225, 237, 250, 287, 292, 367, 381, 403,
		426, 445, 478, 503, 525, 548, 571, 593, 616, 659,
	},
	domain.CategoryGuides: {
		26, 48, 70, 82, 103, 119, 152, 169, 180, 200,
		225, 237, 250, 287, 292, 367, 381, 403, 426,
		445, 478, 503, 525, 548, 571, 593, 616, 659, 718,
	},
}

// PicsumResolver picks a curated stock photo id from the title hash.
type PicsumResolver struct {
	urlTemplate string
}

var _ ports.ImageResolver = (*PicsumResolver)(nil)

// NewPicsumResolver builds a resolver; urlTemplate takes one %d for the id.
func NewPicsumResolver(urlTemplate string) *PicsumResolver {
	if urlTemplate == "" {
		urlTemplate = DefaultURLTemplate
	}
	return &PicsumResolver{urlTemplate: urlTemplate}
}

// Resolve is pure: the same title and category always give the same URL.
func (r *PicsumResolver) Resolve(title, category string) string {
	return fmt.Sprintf(r.urlTemplate, ImageID(title, category))
}

// ImageID selects the photo id for a title.
func ImageID(title, category string) int {
	lower := strings.ToLower(title)
	h := int64(TitleHash(title))
	if h < 0 {
		h = -h
	}

	for _, set := range keywordSets {
		if strings.Contains(lower, set.keyword) {
			return set.ids[h%int64(len(set.ids))]
		}
	}

	ids, ok := categoryRanges[category]
	if !ok {
		ids = categoryRanges[domain.CategoryMobileNews]
	}
	return ids[h%int64(len(ids))]
}

// TitleHash is the 32-bit h*31+c string hash over UTF-16 code units.
func TitleHash(s string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(c)
	}
	return h
}
