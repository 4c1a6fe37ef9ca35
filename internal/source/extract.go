package source

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	reDigits  = regexp.MustCompile(`\D`)
	reDecimal = regexp.MustCompile(`(\d+(?:[.,]\d+)?)`)

	// verbal room numerals seen in Ukrainian/Russian titles
	verbalRooms = []struct {
		prefix string
		count  int
	}{
		{"одно", 1}, {"дво", 2}, {"три", 3},
		{"чотири", 4}, {"п'яти", 5}, {"шести", 6},
	}

	reRoomsWord  = regexp.MustCompile(`(?i)(\d+)[\s\-]*(?:х\s*)?(?:кімнат[\p{L}]*|комнат[\p{L}]*)`)
	reRoomsShort = regexp.MustCompile(`(?i)(\d+)\s*-?\s*(?:кім|ком|к)(?:$|[\s\-.,])`)

	imageSkipWords = []string{"icon", "logo", "avatar", "banner", "svg"}
)

// ResolveURL joins a possibly relative reference against the page URL.
func ResolveURL(pageURL, ref string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}

// CleanDigits strips everything but digits ("2 500 000 грн" -> "2500000").
func CleanDigits(s string) string {
	return reDigits.ReplaceAllString(s, "")
}

// ParseAmount extracts a numeric amount from price text, 0 when absent.
func ParseAmount(s string) float64 {
	clean := CleanDigits(s)
	if clean == "" {
		return 0
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseDecimal reads the first decimal number in s, accepting a comma as the
// decimal separator.
func ParseDecimal(s string) (float64, bool) {
	m := reDecimal.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// RoomsFromTitle extracts a room count from a listing title: verbal numerals
// ("двокімнатна") first, then digit patterns. Counts outside 1..10 are
// treated as noise.
func RoomsFromTitle(title string) *int {
	low := strings.ToLower(title)
	for _, v := range verbalRooms {
		if strings.Contains(low, v.prefix+"кімнатн") || strings.Contains(low, v.prefix+"комнатн") {
			n := v.count
			return &n
		}
	}
	m := reRoomsWord.FindStringSubmatch(title)
	if m == nil {
		m = reRoomsShort.FindStringSubmatch(title)
	}
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 || n > 10 {
		return nil
	}
	return &n
}

// CollectImages gathers gallery image URLs from the given selectors, skipping
// icon/logo/banner assets, de-duplicating and resolving against the page URL.
// When nothing matches it falls back to the Open Graph image meta tag.
func CollectImages(doc *goquery.Document, pageURL string, selectors string) []string {
	seen := make(map[string]struct{})
	var images []string

	doc.Find(selectors).Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok || src == "" {
			src, _ = img.Attr("data-src")
		}
		if src == "" {
			src, _ = img.Attr("data-newsrc")
		}
		if src == "" || isAssetImage(src) {
			return
		}
		full := ResolveURL(pageURL, src)
		if _, dup := seen[full]; dup {
			return
		}
		seen[full] = struct{}{}
		images = append(images, full)
	})

	if len(images) == 0 {
		if og := OGImage(doc, pageURL); og != "" {
			images = append(images, og)
		}
	}
	return images
}

// OGImage returns the Open Graph image URL, or "".
func OGImage(doc *goquery.Document, pageURL string) string {
	content, ok := doc.Find(`meta[property="og:image"]`).Attr("content")
	if !ok || content == "" {
		return ""
	}
	return ResolveURL(pageURL, content)
}

func isAssetImage(src string) bool {
	low := strings.ToLower(src)
	for _, w := range imageSkipWords {
		if strings.Contains(low, w) {
			return true
		}
	}
	return false
}

// FlattenText renders a selection as plain text with single spaces between
// text runs, so regex extraction does not see words glued across element
// boundaries. Script and style contents are skipped.
func FlattenText(sel *goquery.Selection) string {
	return FlattenTextSep(sel, " ")
}

// FlattenTextSep is FlattenText with a custom separator between text runs.
func FlattenTextSep(sel *goquery.Selection, sep string) string {
	var parts []string
	for _, node := range sel.Nodes {
		collectText(node, &parts)
	}
	return strings.Join(parts, sep)
}

func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	if n.Type == html.TextNode {
		if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
			*parts = append(*parts, t)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

// IsRegionCrumb reports whether a breadcrumb label names an oblast.
func IsRegionCrumb(s string) bool {
	return strings.Contains(strings.ToLower(s), "область")
}

// IsDistrictCrumb reports whether a breadcrumb label names a district.
func IsDistrictCrumb(s string) bool {
	low := strings.ToLower(s)
	return strings.Contains(s, "р-н") || strings.Contains(low, "район")
}
