// Package meget parses listing and catalog pages of meget.kiev.ua.
package meget

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kvartyra/estate-crawler/internal/geo"
	"github.com/kvartyra/estate-crawler/internal/listing"
	"github.com/kvartyra/estate-crawler/internal/source"
)

const baseURL = "https://meget.kiev.ua/prodazha-kvartir/"

// garbageSelectors mark promoted/related blocks and chrome that must be
// pruned before any text extraction, or their prices and addresses leak into
// the current listing.
var garbageSelectors = []string{
	".simple-offers", ".popular", ".banner", ".gradblock-area",
	".similar-offers", ".header", ".footer", ".bottom-header",
}

// crumbSkip lists non-geographic breadcrumb labels.
var crumbSkip = map[string]struct{}{
	"Главная":              {},
	"Продажа квартир":      {},
	"Продажа недвижимости": {},
	"Meget":        {},
	"Недвижимость": {},
}

var (
	reListingHref = regexp.MustCompile(`/prodazha-kvartir/details/|/sale/flat/details/`)
	rePriceUAH    = regexp.MustCompile(`(?i)(\d[\d\s]*)\s*грн`)
	reRoomsTitle  = regexp.MustCompile(`(?i)(\d+)\s*-?\s*(?:ком|кім)`)
	reAreaLabeled = regexp.MustCompile(`(?i)(?:Площадь|Площа)[:\s]+(\d+(?:[.,]\d+)?)`)
	reAreaUnit    = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*м2`)
	reBoilerplate = regexp.MustCompile(`(?i)(?:Продажа|Продам).*?(?:квартиры|квартиру)`)
	reAdNumber    = regexp.MustCompile(`Объявление №\d+`)
	reSpaces      = regexp.MustCompile(`\s+`)
	reSpaceComma  = regexp.MustCompile(`\s+,\s*`)
)

// Adapter implements listing.Adapter for meget.
type Adapter struct {
	gaz  *geo.Gazetteer
	norm *geo.Normalizer
	ai   listing.AddressExtractor
}

// New constructs the meget adapter. ai may be nil.
func New(gaz *geo.Gazetteer, norm *geo.Normalizer, ai listing.AddressExtractor) *Adapter {
	return &Adapter{gaz: gaz, norm: norm, ai: ai}
}

// Name implements listing.Adapter.
func (a *Adapter) Name() string { return "meget" }

// CatalogURL implements listing.Adapter.
func (a *Adapter) CatalogURL(page int) string {
	if page > 1 {
		return fmt.Sprintf("%sshow/%d/", baseURL, page)
	}
	return baseURL
}

// ParseCatalog collects listing detail links from a catalog page.
func (a *Adapter) ParseCatalog(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	seen := make(map[string]struct{})
	var urls []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !reListingHref.MatchString(href) {
			return
		}
		full := source.ResolveURL(baseURL, href)
		if _, dup := seen[full]; dup {
			return
		}
		seen[full] = struct{}{}
		urls = append(urls, full)
	})
	return urls, nil
}

// ParseListing extracts a Raw listing from a detail page.
func (a *Adapter) ParseListing(ctx context.Context, body []byte, url string) (*listing.Raw, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	for _, sel := range garbageSelectors {
		doc.Find(sel).Remove()
	}

	pageText := source.FlattenText(doc.Selection)
	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = "No Title"
	}

	price, currency := a.price(doc, pageText)
	rooms, area := a.specs(title, pageText)
	address, city, district, region := a.location(ctx, doc, title, pageText)
	images := a.images(doc, url)

	return &listing.Raw{
		SourceURL:   url,
		Source:      a.Name(),
		Title:       title,
		Description: fmt.Sprintf("Scraped from %s", a.Name()),
		Price:       price,
		Currency:    currency,
		Address:     address,
		City:        city,
		District:    district,
		Region:      region,
		Rooms:       rooms,
		Area:        area,
		Images:      images,
	}, nil
}

// price prefers the dedicated UAH price node, then a currency-marked amount
// in the page text.
func (a *Adapter) price(doc *goquery.Document, pageText string) (float64, string) {
	node := doc.Find("span#price_uah").First()
	if node.Length() > 0 {
		if v := source.ParseAmount(node.Text()); v > 0 {
			return v, "UAH"
		}
	}
	if m := rePriceUAH.FindStringSubmatch(pageText); m != nil {
		if v := source.ParseAmount(m[1]); v > 0 {
			return v, "UAH"
		}
	}
	return 0, "UAH"
}

func (a *Adapter) specs(title, pageText string) (*int, *float64) {
	var rooms *int
	if m := reRoomsTitle.FindStringSubmatch(title); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			rooms = &n
		}
	}

	var area *float64
	m := reAreaLabeled.FindStringSubmatch(pageText)
	if m == nil {
		m = reAreaUnit.FindStringSubmatch(pageText)
	}
	if m != nil {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64); err == nil {
			area = &v
		}
	}
	return rooms, area
}

func (a *Adapter) location(ctx context.Context, doc *goquery.Document, title, pageText string) (address, city, district, region string) {
	address, city, district, region = a.addressSection(doc)

	crumbs := a.cleanCrumbs(doc)
	for i, crumb := range crumbs {
		if source.IsRegionCrumb(crumb) {
			region = crumb
			continue
		}
		if normalized := a.gaz.Normalize(crumb); normalized != "" {
			if city == "" {
				city = normalized
			}
			if i+1 < len(crumbs) && source.IsDistrictCrumb(crumbs[i+1]) {
				district = crumbs[i+1]
			}
		}
		if source.IsDistrictCrumb(crumb) && district == "" {
			district = crumb
		}
	}

	// fallback: city from title tokens
	if city == "" {
		for _, word := range strings.Fields(title) {
			if normalized := a.gaz.Normalize(strings.Trim(word, ".,")); normalized != "" {
				city = normalized
				break
			}
		}
	}

	if ai := a.aiExtract(ctx, doc, title, pageText); ai != nil && ai.City != "" {
		city = ai.City
		if ai.Region != "" {
			region = ai.Region
		}
		if ai.District != "" {
			district = ai.District
		}
		var parts []string
		if ai.Street != "" {
			parts = append(parts, ai.Street)
		}
		if ai.Number != "" {
			parts = append(parts, ai.Number)
		}
		if len(parts) > 0 {
			address = strings.Join(parts, ", ")
		} else {
			address = city
		}
		if !strings.Contains(address, city) {
			address = city + ", " + address
		}
	} else if address == "" {
		cleaned := reBoilerplate.ReplaceAllString(title, "")
		cleaned = reAdNumber.ReplaceAllString(cleaned, "")
		extracted := a.norm.ExtractFromText(cleaned)
		if extracted == "" {
			extracted = a.norm.ExtractFromText(pageText)
		}
		address = extracted
	}

	address = a.ensureCityPrefix(address, city)
	return address, city, district, region
}

// addressSection walks the dedicated address block: geographic links are
// classified into region/district/city and stripped from the address text.
func (a *Adapter) addressSection(doc *goquery.Document) (address, city, district, region string) {
	sec := doc.Find("address.address-sec").First()
	if sec.Length() == 0 {
		return "", "", "", ""
	}
	head := sec.Find("h2").First()
	if head.Length() == 0 {
		head = sec.Find("h1").First()
	}
	if head.Length() == 0 {
		head = sec.Find(".detail-page-topic").First()
	}
	if head.Length() == 0 {
		return "", "", "", ""
	}

	head.Find("a").Each(func(_ int, link *goquery.Selection) {
		text := strings.TrimSpace(link.Text())
		if text == "" {
			return
		}
		switch {
		case source.IsRegionCrumb(text):
			if region == "" {
				region = text
			}
		case source.IsDistrictCrumb(text):
			if district == "" {
				district = text
			}
		default:
			if normalized := a.gaz.Normalize(text); normalized != "" {
				city = normalized
			} else {
				city = text
			}
		}
	})

	address = source.FlattenText(head)
	address = reSpaceComma.ReplaceAllString(reSpaces.ReplaceAllString(address, " "), ", ")

	// no links at all: classify plain comma parts instead
	if city == "" && region == "" {
		var remaining []string
		for _, part := range splitParts(address) {
			switch {
			case source.IsRegionCrumb(part):
				region = part
			case source.IsDistrictCrumb(part):
				district = part
			default:
				remaining = append(remaining, part)
			}
		}
		if len(remaining) > 0 {
			if normalized := a.gaz.Normalize(remaining[0]); normalized != "" {
				city = normalized
			} else {
				city = remaining[0]
			}
			address = strings.Join(remaining, ", ")
		}
	}

	// strip region/district words from the address text itself
	var kept []string
	for _, part := range splitParts(address) {
		if source.IsRegionCrumb(part) || strings.Contains(part, "р-н") {
			continue
		}
		kept = append(kept, part)
	}
	// collapse a duplicated leading city ("Київ, Київ, вул...")
	if len(kept) >= 2 {
		first, second := a.gaz.Normalize(kept[0]), a.gaz.Normalize(kept[1])
		if first != "" && first == second {
			kept = kept[1:]
		}
	}
	address = strings.Join(kept, ", ")
	return address, city, district, region
}

func (a *Adapter) cleanCrumbs(doc *goquery.Document) []string {
	container := doc.Find("div.breadcrumbs").First()
	if container.Length() == 0 {
		container = doc.Find("ul.breadcrumb").First()
	}
	var crumbs []string
	container.Find("a").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		if _, skip := crumbSkip[text]; skip {
			return
		}
		crumbs = append(crumbs, text)
	})
	return crumbs
}

func (a *Adapter) aiExtract(ctx context.Context, doc *goquery.Document, title, pageText string) *listing.ExtractedAddress {
	if a.ai == nil {
		return nil
	}
	var crumbTexts []string
	doc.Find("div.breadcrumbs a, ul.breadcrumb a").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			crumbTexts = append(crumbTexts, t)
		}
	})
	return a.ai.ExtractAddress(ctx, title, pageText, strings.Join(crumbTexts, " > "))
}

// ensureCityPrefix guarantees the city (or one of its aliases) appears in
// the final address string.
func (a *Adapter) ensureCityPrefix(address, city string) string {
	if city == "" {
		return address
	}
	if address == "" {
		return city
	}
	if strings.Contains(address, city) {
		return address
	}
	for _, alias := range a.gaz.Aliases(city) {
		if strings.Contains(address, alias) {
			return address
		}
	}
	return city + ", " + address
}

// images takes the main photo plus small-gallery thumbnails, substituting
// the thumbnail suffix for the full-resolution variant.
func (a *Adapter) images(doc *goquery.Document, pageURL string) []string {
	var images []string
	if src, ok := doc.Find("div.image img").First().Attr("src"); ok && src != "" {
		images = append(images, source.ResolveURL(pageURL, src))
	}
	doc.Find("div.small_image img").Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok || src == "" {
			src, _ = img.Attr("data-src")
		}
		if src == "" {
			return
		}
		full := strings.ReplaceAll(src, "s.jpg", ".jpg")
		images = append(images, source.ResolveURL(pageURL, full))
	})
	return images
}

func splitParts(s string) []string {
	raw := strings.Split(s, ",")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
