// Package bonua parses listing and catalog pages of bon.ua.
//
// bon.ua detail pages render a feed of msg-inner cards: a promoted listing
// first, then the current one, then related offers. Every field extraction
// must be scoped to the card whose own link matches the target URL, or the
// promoted card's price wins.
package bonua

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kvartyra/estate-crawler/internal/geo"
	"github.com/kvartyra/estate-crawler/internal/listing"
	"github.com/kvartyra/estate-crawler/internal/source"
)

const (
	baseURL     = "https://bon.ua"
	listingsURL = "https://bon.ua/nedvizhimost/prodazha-kvartir"
)

// priceSelectors are tried in order within the scoped card.
var priceSelectors = []string{
	".m-price-wrap",
	".price-wrap",
	`[class*="price-value"]`,
	`[class*="offer-price"]`,
}

var (
	rePriceCurr   = regexp.MustCompile(`(?i)(\d[\d\s]*)\s*(грн|uah|\$|€|usd|eur)`)
	reAreaUnit    = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:кв\.?\s?м|м2|м²)`)
	reFirstNumber = regexp.MustCompile(`\d+`)
	reBoilerplate = regexp.MustCompile(`(?i)(?:Продажа|Продам).*?(?:квартиры|квартиру)`)
)

// Adapter implements listing.Adapter for bon.ua.
type Adapter struct {
	gaz  *geo.Gazetteer
	norm *geo.Normalizer
}

// New constructs the bon.ua adapter.
func New(gaz *geo.Gazetteer, norm *geo.Normalizer) *Adapter {
	return &Adapter{gaz: gaz, norm: norm}
}

// Name implements listing.Adapter.
func (a *Adapter) Name() string { return "bon_ua" }

// CatalogURL implements listing.Adapter.
func (a *Adapter) CatalogURL(page int) string {
	return fmt.Sprintf("%s?page=%d", listingsURL, page)
}

// ParseCatalog collects listing links from the msg-inner cards on a catalog
// page.
func (a *Adapter) ParseCatalog(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	seen := make(map[string]struct{})
	var urls []string
	doc.Find("div.msg-inner").Each(func(_ int, card *goquery.Selection) {
		link := card.Find(`a.w-image[href*="/obyavlenie/"]`).First()
		if link.Length() == 0 {
			link = card.Find(`a[href*="/obyavlenie/"]`).First()
		}
		href, ok := link.Attr("href")
		if !ok || href == "" {
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

// ParseListing extracts a Raw listing. When no card on the page links back
// to the target URL the listing is expired or sold and the page shows only
// related offers; that is reported as (nil, nil).
func (a *Adapter) ParseListing(_ context.Context, body []byte, url string) (*listing.Raw, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	scope := a.findMainCard(doc, url)
	if scope == nil {
		return nil, nil
	}

	scopeText := source.FlattenText(scope)
	title := a.title(scope, doc)

	price, currency := a.price(scope, doc)
	rooms, area := a.specs(scope, scopeText, title)
	address, city, district, region := a.location(doc, title, scopeText)
	images := source.CollectImages(doc, url,
		".gallery img, .slider img, .fotorama img, .item-image img, img[data-src]")

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

// findMainCard locates the msg-inner block that corresponds to this listing,
// not a promoted or related one.
func (a *Adapter) findMainCard(doc *goquery.Document, url string) *goquery.Selection {
	slug := url
	if i := strings.LastIndex(strings.TrimRight(url, "/"), "/"); i >= 0 {
		slug = strings.TrimRight(url, "/")[i+1:]
	}
	var main *goquery.Selection
	doc.Find("div.msg-inner").EachWithBreak(func(_ int, card *goquery.Selection) bool {
		found := false
		card.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
			href, _ := link.Attr("href")
			if strings.Contains(href, slug) {
				found = true
				return false
			}
			return true
		})
		if found {
			main = card
			return false
		}
		return true
	})
	return main
}

func (a *Adapter) title(scope *goquery.Selection, doc *goquery.Document) string {
	t := strings.TrimSpace(scope.Find("h1").First().Text())
	if t == "" {
		t = strings.TrimSpace(scope.Find(".w-title").First().Text())
	}
	if t == "" {
		t = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if t == "" {
		t = "No Title"
	}
	return t
}

// price tries the scoped price containers first, then JSON-LD structured
// data, which is reliable and not affected by the card feed.
func (a *Adapter) price(scope *goquery.Selection, doc *goquery.Document) (float64, string) {
	for _, sel := range priceSelectors {
		el := scope.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		m := rePriceCurr.FindStringSubmatch(source.FlattenText(el))
		if m == nil {
			continue
		}
		amount := source.ParseAmount(m[1])
		if amount <= 0 {
			continue
		}
		return amount, currencyOf(m[2])
	}

	if price, curr, ok := a.jsonLDPrice(doc); ok {
		return price, curr
	}
	return 0, "UAH"
}

func currencyOf(s string) string {
	low := strings.ToLower(s)
	switch {
	case strings.Contains(low, "$") || strings.Contains(low, "usd"):
		return "USD"
	case strings.Contains(low, "€") || strings.Contains(low, "eur"):
		return "EUR"
	default:
		return "UAH"
	}
}

func (a *Adapter) jsonLDPrice(doc *goquery.Document) (float64, string, bool) {
	var price float64
	var curr string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data map[string]any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		offers, _ := data["offers"].(map[string]any)
		if offers == nil {
			if list, ok := data["offers"].([]any); ok && len(list) > 0 {
				offers, _ = list[0].(map[string]any)
			}
		}
		if offers == nil {
			return true
		}
		p, ok := jsonNumber(offers["price"])
		if !ok || p <= 0 {
			return true
		}
		price = p
		curr = "UAH"
		if c, ok := offers["priceCurrency"].(string); ok {
			if c = strings.ToUpper(c); c == "USD" || c == "EUR" || c == "UAH" {
				curr = c
			}
		}
		return false
	})
	return price, curr, price > 0
}

func jsonNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(n, " ", ""), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func (a *Adapter) specs(scope *goquery.Selection, scopeText, title string) (*int, *float64) {
	rooms := source.RoomsFromTitle(title)

	if rooms == nil {
		scope.Find("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
			text := source.FlattenText(li)
			if !strings.Contains(text, "Кількість кімнат") && !strings.Contains(text, "Кімнат") {
				return true
			}
			if m := reFirstNumber.FindString(text); m != "" {
				if n, err := strconv.Atoi(m); err == nil && n >= 1 && n <= 10 {
					rooms = &n
				}
			}
			return false
		})
	}

	var area *float64
	scope.Find("li, table tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		text := source.FlattenText(row)
		if !strings.Contains(text, "Загальна площа") && !strings.Contains(text, "Площа") {
			return true
		}
		stripped := strings.ReplaceAll(strings.ReplaceAll(text, "Загальна площа", ""), "Площа", "")
		if v, ok := source.ParseDecimal(stripped); ok {
			area = &v
			return false
		}
		return true
	})
	if area == nil {
		if m := reAreaUnit.FindStringSubmatch(scopeText); m != nil {
			if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64); err == nil {
				area = &v
			}
		}
	}
	return rooms, area
}

func (a *Adapter) location(doc *goquery.Document, title, scopeText string) (address, city, district, region string) {
	doc.Find(`.breadcrumbs a, .breadcrumb a, [class*="bread"] a`).Each(func(_ int, s *goquery.Selection) {
		crumb := strings.TrimSpace(s.Text())
		if crumb == "" {
			return
		}
		switch {
		case source.IsRegionCrumb(crumb):
			// "Квартиры - Киевская область" keeps only the geographic part
			if i := strings.LastIndex(crumb, "-"); i >= 0 {
				region = strings.TrimSpace(crumb[i+1:])
			} else {
				region = crumb
			}
		case source.IsDistrictCrumb(crumb):
			if district == "" {
				district = crumb
			}
		default:
			if normalized := a.gaz.Normalize(crumb); normalized != "" && city == "" {
				city = normalized
			}
		}
	})

	if city == "" {
		for _, word := range strings.Fields(title) {
			if normalized := a.gaz.Normalize(strings.Trim(word, ".,!?-")); normalized != "" {
				city = normalized
				break
			}
		}
	}

	cleaned := reBoilerplate.ReplaceAllString(title, "")
	address = a.norm.ExtractFromText(cleaned)
	if address == "" {
		address = a.norm.ExtractFromText(scopeText)
	}
	if city != "" && address != "" && !strings.Contains(address, city) {
		address = city + ", " + address
	} else if city != "" && address == "" {
		address = city
	}
	return address, city, district, region
}
