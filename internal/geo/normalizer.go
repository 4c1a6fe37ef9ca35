package geo

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// streetMarkers are the street-type words recognized in both Ukrainian and
// Russian spellings, abbreviated and full.
var streetMarkers = []string{
	"вулиця", "вул.", "вул", "улица", "ул.", "ул",
	"проспект", "просп.", "просп", "пр-т",
	"провулок", "пров.", "пер.", "переулок",
	"бульвар", "бульв.", "б-р",
	"площа", "пл.", "площадь",
	"узвіз", "спуск",
	"набережна", "наб.", "набережная",
	"шосе", "шоссе",
	"майдан", "тупик",
}

// streetTranslations map Russian street-type words to canonical Ukrainian.
var streetTranslations = map[string]string{
	"улица": "вулиця", "ул.": "вулиця",
	"проспект": "проспект", "просп.": "проспект",
	"переулок": "провулок", "пер.": "провулок",
	"площадь":    "площа",
	"бульвар":    "бульвар",
	"шоссе":      "шосе",
	"набережная": "набережна",
	"спуск":      "узвіз",
	"тупик":      "тупик",
}

// streetRenames map decommunized/renamed streets to their current official
// names. Some replacements embed a street-type marker of their own.
var streetRenames = map[string]string{
	"Челябинская":     "Пантелеймона Куліша",
	"Челябінська":     "Пантелеймона Куліша",
	"Магнитогорская":  "Якова Гніздовського",
	"Азербайджанская": "Азербайджанська",
	"Карагандинская":  "Холодноярської Бригади",
	"Владимирская":    "Володимирська",
	"Газеты Правда":   "Слобожанський проспект",
	"Правды":          "Слобожанський",
	"Королева":        "Корольова",
	"Ленина":          "вулиця Соборна",
	"Московская":      "Князів Острозьких",
}

// nonAddressQualifiers are words that precede a street-marker lookalike in
// spec text ("Загальна площа 72" is a floor area, not an address).
var nonAddressQualifiers = map[string]struct{}{
	"загальна": {}, "общая": {}, "житлова": {}, "жилая": {},
	"корисна": {}, "полезная": {}, "кухні": {}, "кухни": {},
}

var (
	reRegionNoise   = regexp.MustCompile(`(?i)[\p{L}\d_-]+\s+(?:область|район|р-н)\.?`)
	reDistrictNoise = regexp.MustCompile(`(?i)(^|[\s,])(?:м-н|ж/м|массив|микрорайон)\.?`)
	reNumberSigns   = regexp.MustCompile(`[№#]`)
	reSpaces        = regexp.MustCompile(`\s+`)
	reSpaceComma    = regexp.MustCompile(`\s+,\s*`)
	reParens        = regexp.MustCompile(`\((.*?)\)`)
	reHouseNumber   = regexp.MustCompile(`,\s*(\d+[a-zA-Zа-яіїєґ]?(?:/[\p{L}\d]+)?)`)
	reInitials      = regexp.MustCompile(`([\p{L}]+)\s+(\p{L}\.(?:\p{L}\.)?)`)
	reDoubleMarker  = regexp.MustCompile(`(?i)(вулиця|проспект|провулок|площа|бульвар|набережна|шосе|узвіз|тупик)\s+вулиця\s+`)
	reHousePrefix   = regexp.MustCompile(`^(?:буд\.|д\.)\s*`)
)

// Normalizer generates ranked geocoding candidates from raw addresses.
// It handles renamed streets, inverted initials, slash/parenthesis
// separators and RU→UA translation. Safe for concurrent use.
type Normalizer struct {
	gaz *Gazetteer

	// translation table: city aliases + street translations + renames,
	// applied longest-key-first to avoid partial-token collisions
	keys   []string
	values map[string]string

	extractA *regexp.Regexp
	extractB *regexp.Regexp
}

// NewNormalizer builds a Normalizer backed by the given gazetteer.
func NewNormalizer(gaz *Gazetteer) *Normalizer {
	n := &Normalizer{
		gaz:    gaz,
		values: make(map[string]string),
	}
	for alias, canonical := range gaz.AliasMap() {
		n.values[alias] = canonical
	}
	for k, v := range streetTranslations {
		n.values[strings.ToLower(k)] = v
	}
	for k, v := range streetRenames {
		n.values[strings.ToLower(k)] = v
	}
	for k := range n.values {
		n.keys = append(n.keys, k)
	}
	sort.Slice(n.keys, func(i, j int) bool {
		if len(n.keys[i]) != len(n.keys[j]) {
			return len(n.keys[i]) > len(n.keys[j])
		}
		return n.keys[i] < n.keys[j]
	})

	escaped := make([]string, len(streetMarkers))
	for i, m := range streetMarkers {
		escaped[i] = regexp.QuoteMeta(m)
	}
	markers := strings.Join(escaped, "|")
	nameWord := `[\p{L}][\p{L}\d_.\-]+`
	house := `((?:буд\.|д\.)?\s*\d+[\p{L}]?(?:/\d+)?)`
	n.extractA = regexp.MustCompile(
		`(?i)(?:` + markers + `)\s+(` + nameWord + `(?:\s+` + nameWord + `){0,2})[\s,]*` + house)
	n.extractB = regexp.MustCompile(
		`(?i)(` + nameWord + `)\s+(?:` + markers + `)[\s,]*` + house)
	return n
}

// Normalize returns a prioritized, case-insensitively de-duplicated list of
// geocoder search strings. Empty input yields an empty list; input without a
// comma yields the cleaned original as the only candidate. Never errors.
func (n *Normalizer) Normalize(address string) []string {
	if address == "" {
		return nil
	}

	var candidates []string
	cleaned := n.basicClean(address)

	parts := splitTrim(cleaned, ",")
	if len(parts) < 2 {
		return []string{cleaned}
	}

	city := parts[0]
	if ua := n.gaz.Normalize(city); ua != "" {
		city = ua
	}
	rest := strings.Join(parts[1:], ", ")

	// Multiple street spellings joined by a slash: one candidate each.
	// House numbers like 10/1 also split here; the junk candidates are
	// rejected downstream by the resolver.
	if strings.Contains(rest, "/") {
		for _, sp := range splitTrim(rest, "/") {
			candidates = append(candidates, city+", "+n.processStreetPart(sp))
		}
	}

	// Parenthesized alternative street name: emit it first, combined with
	// any trailing house number found outside the parens.
	if strings.Contains(rest, "(") {
		if inside := reParens.FindStringSubmatch(rest); inside != nil {
			suffix := ""
			outside := reParens.ReplaceAllString(rest, "")
			if num := reHouseNumber.FindStringSubmatch(outside); num != nil {
				suffix = ", " + num[1]
			}
			first := city + ", " + n.processStreetPart(inside[1]) + suffix
			candidates = append([]string{first}, candidates...)
		}
		outside := strings.TrimSpace(reParens.ReplaceAllString(rest, ""))
		outside = strings.Trim(reSpaceComma.ReplaceAllString(outside, ", "), " ,")
		candidates = append(candidates, city+", "+n.processStreetPart(outside))
	}

	if translated := n.translateFullString(cleaned); translated != cleaned {
		candidates = append(candidates, translated)
	}

	if len(parts) >= 3 {
		street := n.processStreetPart(parts[len(parts)-2])
		last := parts[len(parts)-1]
		candidates = append(candidates, city+", "+street+", "+last, city+", "+street)
	}

	if len(rest) > 3 {
		processed := n.processStreetPart(rest)
		candidates = append(candidates, city+", "+processed)
		if !hasStreetMarker(processed) {
			candidates = append(candidates, city+", вулиця "+processed)
		}
	}

	seen := make(map[string]struct{})
	final := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = strings.Trim(reSpaces.ReplaceAllString(c, " "), ", ")
		key := strings.ToLower(c)
		if c == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		final = append(final, c)
	}
	return final
}

func hasStreetMarker(s string) bool {
	low := strings.ToLower(s)
	for _, m := range []string{"вулиця", "вул", "провулок", "пров", "площа", "майдан"} {
		if strings.Contains(low, m) {
			return true
		}
	}
	return false
}

// basicClean strips administrative noise (region/district words, number
// signs, apartment-complex markers) and collapses whitespace.
func (n *Normalizer) basicClean(text string) string {
	text = reRegionNoise.ReplaceAllString(text, "")
	text = reDistrictNoise.ReplaceAllString(text, "$1")
	text = reNumberSigns.ReplaceAllString(text, "")
	text = reSpaces.ReplaceAllString(text, " ")
	return strings.Trim(strings.TrimSpace(text), ", ")
}

// translateFullString substitutes every recognized alias, rename and
// abbreviation with its canonical Ukrainian form, longest key first.
func (n *Normalizer) translateFullString(text string) string {
	for _, k := range n.keys {
		v := n.values[k]
		if strings.EqualFold(k, v) {
			continue
		}
		var b strings.Builder
		rest := text
		for {
			idx := indexAtWordStart(strings.ToLower(rest), k)
			if idx < 0 {
				b.WriteString(rest)
				break
			}
			b.WriteString(rest[:idx])
			b.WriteString(v)
			rest = rest[idx+len(k):]
		}
		text = b.String()
	}
	// A rename that already embeds a street-type marker must not keep the
	// duplicate marker from the original text.
	text = reDoubleMarker.ReplaceAllString(text, "вулиця ")
	return text
}

// indexAtWordStart finds key in text at a position not preceded by a letter
// or digit, emulating a leading word boundary.
func indexAtWordStart(text, key string) int {
	from := 0
	for {
		i := strings.Index(text[from:], key)
		if i < 0 {
			return -1
		}
		pos := from + i
		if pos == 0 {
			return pos
		}
		prev := []rune(text[:pos])
		r := prev[len(prev)-1]
		if !isWordRune(r) {
			return pos
		}
		from = pos + len(key)
		if from >= len(text) {
			return -1
		}
	}
}

func isWordRune(r rune) bool {
	return r == '_' || (r >= '0' && r <= '9') ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= 'А' && r <= 'я') || strings.ContainsRune("ЇїІіЄєҐґё", r)
}

// processStreetPart translates a street-name fragment word by word and fixes
// inverted initials ("Шевченко Т." -> "Т. Шевченко").
func (n *Normalizer) processStreetPart(text string) string {
	words := strings.Fields(text)
	out := make([]string, 0, len(words))
	for _, w := range words {
		term := strings.ToLower(strings.Trim(w, ".,"))
		trans, ok := n.values[term]
		if !ok {
			// abbreviations keep their dot in the table ("вул.")
			trans, ok = n.values[strings.ToLower(w)]
		}
		if ok {
			if hasStreetMarker(trans) && len(out) > 0 && isMarkerWord(out[len(out)-1]) {
				out = out[:len(out)-1]
			}
			out = append(out, trans)
			continue
		}
		out = append(out, w)
	}
	text = strings.Join(out, " ")

	if m := reInitials.FindStringSubmatch(text); m != nil {
		text = strings.Replace(text, m[0], m[2]+" "+m[1], 1)
	}
	return text
}

func isMarkerWord(w string) bool {
	low := strings.ToLower(strings.TrimRight(w, "."))
	for _, m := range streetMarkers {
		if low == strings.TrimRight(m, ".") {
			return true
		}
	}
	return false
}

// ExtractFromText scans free text (titles, descriptions) for a street marker
// adjacent to a capitalized name and a house number, in either order.
// Returns "" when no plausible address is present.
func (n *Normalizer) ExtractFromText(text string) string {
	if text == "" {
		return ""
	}

	if m := n.extractA.FindStringSubmatch(text); m != nil {
		return n.basicClean(m[0])
	}

	if m := n.extractB.FindStringSubmatch(text); m != nil {
		name := m[1]
		if n.isKnownTerm(name) || isQualifier(name) {
			return ""
		}
		number := reHousePrefix.ReplaceAllString(strings.TrimSpace(m[2]), "")
		return fmt.Sprintf("вулиця %s, %s", name, number)
	}
	return ""
}

func (n *Normalizer) isKnownTerm(word string) bool {
	low := strings.ToLower(word)
	if _, ok := n.values[low]; ok {
		return true
	}
	for _, v := range n.values {
		if strings.EqualFold(v, word) {
			return true
		}
	}
	return false
}

func isQualifier(word string) bool {
	_, ok := nonAddressQualifiers[strings.ToLower(word)]
	return ok
}

func splitTrim(s, sep string) []string {
	raw := strings.Split(s, sep)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
