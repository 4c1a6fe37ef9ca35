// Package rieltor parses listing and catalog pages of rieltor.ua.
//
// rieltor detail pages carry no usable h1; the title is synthesized from the
// room count and the address block.
package rieltor

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

const (
	baseURL     = "https://rieltor.ua"
	listingsURL = "https://rieltor.ua/flats-sale/"
)

var (
	reAddress    = regexp.MustCompile(`Продаж квартири за адресою (.*?)(?:, Київ|,|\.)`)
	reRooms      = regexp.MustCompile(`(\d+)\s*кімнат[аи]?`)
	rePriceCurr  = regexp.MustCompile(`(?i)(\d[\d\s]*)\s*(\$|usd|грн|uah|€|eur)`)
	reAreaTriple = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*/\s*\d+\s*/\s*\d+\s*м²`)
	reAreaSingle = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*м²`)
)

// Adapter implements listing.Adapter for rieltor.ua.
type Adapter struct {
	gaz  *geo.Gazetteer
	norm *geo.Normalizer
}

// New constructs the rieltor.ua adapter.
func New(gaz *geo.Gazetteer, norm *geo.Normalizer) *Adapter {
	return &Adapter{gaz: gaz, norm: norm}
}

// Name implements listing.Adapter.
func (a *Adapter) Name() string { return "rieltor_ua" }

// CatalogURL implements listing.Adapter.
func (a *Adapter) CatalogURL(page int) string {
	return fmt.Sprintf("%s?page=%d", listingsURL, page)
}

// ParseCatalog collects listing view links from a catalog page.
func (a *Adapter) ParseCatalog(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	seen := make(map[string]struct{})
	var urls []string
	doc.Find(`a[href*="/flats-sale/view/"]`).Each(func(_ int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		if !ok || href == "" || strings.Contains(href, "viber://") {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		full := source.ResolveURL(baseURL, href)
		if strings.HasPrefix(full, "http") {
			urls = append(urls, full)
		}
	})
	return urls, nil
}

// ParseListing extracts a Raw listing from a detail page.
func (a *Adapter) ParseListing(_ context.Context, body []byte, url string) (*listing.Raw, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	pageText := source.FlattenText(doc.Selection)
	title, addr, rooms := a.core(doc, pageText)

	price, currency := a.price(pageText)
	area := a.area(pageText)
	address, city, district, region := a.location(doc, addr)
	images := source.CollectImages(doc, url,
		".offer-view-gallery img, .gallery img, .slider img, img[data-src]")

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

// core derives the synthetic title, the raw address and the room count.
func (a *Adapter) core(doc *goquery.Document, pageText string) (title, addr string, rooms *int) {
	addr = "Квартира"
	if el := doc.Find(".offer-view-address, .address").First(); el.Length() > 0 {
		addr = strings.Trim(source.FlattenTextSep(el, ", "), ", ")
	} else if m := reAddress.FindStringSubmatch(pageText); m != nil {
		addr = strings.TrimSpace(m[1])
	}

	if m := reRooms.FindStringSubmatch(pageText); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			rooms = &n
		}
	}

	titleRooms := "Квартира"
	if rooms != nil {
		titleRooms = fmt.Sprintf("%d-кімнатна квартира", *rooms)
	}
	title = titleRooms + ", " + addr
	if r := []rune(title); len(r) > 200 {
		title = string(r[:200])
	}
	return title, addr, rooms
}

func (a *Adapter) price(pageText string) (float64, string) {
	m := rePriceCurr.FindStringSubmatch(pageText)
	if m == nil {
		return 0, "UAH"
	}
	amount := source.ParseAmount(m[1])
	curr := strings.ToLower(m[2])
	switch {
	case strings.Contains(curr, "$") || strings.Contains(curr, "usd"):
		return amount, "USD"
	case strings.Contains(curr, "€") || strings.Contains(curr, "eur"):
		return amount, "EUR"
	default:
		return amount, "UAH"
	}
}

func (a *Adapter) area(pageText string) *float64 {
	m := reAreaTriple.FindStringSubmatch(pageText)
	if m == nil {
		m = reAreaSingle.FindStringSubmatch(pageText)
	}
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return nil
	}
	return &v
}

func (a *Adapter) location(doc *goquery.Document, addr string) (address, city, district, region string) {
	doc.Find(".breadcrumbs li a, .breadcrumb li a").Each(func(_ int, s *goquery.Selection) {
		crumb := strings.TrimSpace(s.Text())
		if crumb == "" {
			return
		}
		switch {
		case source.IsRegionCrumb(crumb):
			region = crumb
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
		for _, word := range strings.Fields(addr) {
			cleanWord := strings.NewReplacer(",", "", ".", "").Replace(word)
			if normalized := a.gaz.Normalize(cleanWord); normalized != "" {
				city = normalized
				break
			}
		}
	}

	address = a.norm.ExtractFromText(addr)
	if address == "" {
		address = addr
	}
	if city != "" && address != "" && !strings.Contains(address, city) {
		address = city + ", " + address
	} else if city != "" && address == "" {
		address = city
	}
	return address, city, district, region
}
