// Package validate rejects spam and implausible listings before they reach
// geocoding or persistence. Validation is pure: no I/O, no logging.
package validate

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/kvartyra/estate-crawler/internal/listing"
)

// Thresholds are reporting-currency (USD) absolutes; validation runs after
// currency normalization.
const (
	MinTitleLength = 15
	MinPriceUSD    = 2000

	MinPricePerSqmUSD = 100
	MaxPricePerSqmUSD = 50000

	MinAreaSqm = 8
	MaxAreaSqm = 500
)

var spamRe = regexp.MustCompile(`(?i)^test([^\p{L}\d]|$)|^тест([^\p{L}\d]|$)|asdasd|qwerty|lorem\s+ipsum|^x{3,}$|^a{4,}$`)

// Validate reports whether a listing is plausible and, when it is not, the
// rejection reason.
func Validate(raw *listing.Raw) (bool, string) {
	titleLen := utf8.RuneCountInString(raw.Title)
	if titleLen < MinTitleLength {
		return false, fmt.Sprintf("Title too short (%d chars)", titleLen)
	}
	if spamRe.MatchString(raw.Title) {
		return false, fmt.Sprintf("Spam detected in title: %q", truncate(raw.Title, 50))
	}
	if raw.Price <= 0 {
		return false, "No price"
	}
	if raw.Price < MinPriceUSD {
		return false, fmt.Sprintf("Price too low: $%.0f", raw.Price)
	}
	if utf8.RuneCountInString(raw.Description) > 10 && spamRe.MatchString(raw.Description) {
		return false, "Spam detected in description"
	}
	if raw.Area != nil && *raw.Area > 0 {
		perSqm := raw.Price / *raw.Area
		if perSqm < MinPricePerSqmUSD {
			return false, fmt.Sprintf("Price/m² too low: $%.0f/m² (min $%d)", perSqm, MinPricePerSqmUSD)
		}
		if perSqm > MaxPricePerSqmUSD {
			return false, fmt.Sprintf("Price/m² too high: $%.0f/m² (max $%d)", perSqm, MaxPricePerSqmUSD)
		}
	}
	if raw.Area != nil && *raw.Area > 0 {
		if *raw.Area < MinAreaSqm {
			return false, fmt.Sprintf("Area too small: %g m²", *raw.Area)
		}
		if *raw.Area > MaxAreaSqm {
			return false, fmt.Sprintf("Area too large: %g m²", *raw.Area)
		}
	}
	return true, ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
