// Package geo implements place-name lookup, heuristic address normalization
// and coordinate resolution for Ukrainian real-estate addresses.
package geo

import "strings"

// City is one gazetteer entry: canonical Ukrainian name, center coordinate
// and known transliterations/spellings.
type City struct {
	Name    string
	Lat     float64
	Lng     float64
	Aliases []string
}

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64
	Lng float64
}

var cities = []City{
	{"Київ", 50.4501, 30.5234, []string{"Киев", "Kyiv", "Kiev"}},
	{"Харків", 49.9935, 36.2304, []string{"Харьков", "Kharkiv", "Kharkov"}},
	{"Львів", 49.8397, 24.0297, []string{"Львов", "Lviv", "Lvov"}},
	{"Одеса", 46.4825, 30.7233, []string{"Одесса", "Odesa", "Odessa"}},
	{"Дніпро", 48.4647, 35.0462, []string{"Днепр", "Dnipro", "Днепропетровск"}},
	{"Вінниця", 49.2331, 28.4682, []string{"Винница", "Vinnytsia"}},
	{"Запоріжжя", 47.8388, 35.1396, []string{"Запорожье", "Zaporizhzhia"}},
	{"Івано-Франківськ", 48.9226, 24.7111, []string{"Ивано-Франковск", "Ivano-Frankivsk"}},
	{"Тернопіль", 49.5535, 25.5948, []string{"Тернополь", "Ternopil"}},
	{"Полтава", 49.5883, 34.5514, []string{"Poltava"}},
	{"Рівне", 50.6199, 26.2516, []string{"Ровно", "Rivne"}},
	{"Хмельницький", 49.4230, 26.9871, []string{"Хмельницкий", "Khmelnytskyi"}},
	{"Черкаси", 49.4444, 32.0598, []string{"Черкассы", "Cherkasy"}},
	{"Чернігів", 51.4982, 31.2893, []string{"Чернигов", "Chernihiv"}},
	{"Чернівці", 48.2921, 25.9358, []string{"Черновцы", "Chernivtsi"}},
	{"Житомир", 50.2547, 28.6587, []string{"Zhytomyr"}},
	{"Миколаїв", 46.9750, 31.9946, []string{"Николаев", "Mykolaiv"}},
	{"Суми", 50.9077, 34.7981, []string{"Сумы", "Sumy"}},
	{"Херсон", 46.6354, 32.6169, []string{"Kherson"}},
	{"Луцьк", 50.7472, 25.3254, []string{"Луцк", "Lutsk"}},
	{"Ужгород", 48.6208, 22.2879, []string{"Uzhhorod"}},
	{"Біла Церква", 49.7953, 30.1108, []string{"Белая Церковь", "Bila Tserkva"}},
	{"Кропивницький", 48.5079, 32.2623, []string{"Кировоград", "Kropyvnytskyi"}},
	{"Бровари", 50.5107, 30.7938, []string{"Бровары", "Brovary"}},
	{"Бориспіль", 50.3533, 30.9567, []string{"Борисполь", "Boryspil"}},
	{"Ірпінь", 50.5216, 30.2509, []string{"Ирпень", "Irpin"}},
	{"Буча", 50.5486, 30.2212, []string{"Bucha"}},
	{"Вишневе", 50.3886, 30.3720, []string{"Вишневое", "Vyshneve"}},
	{"Обухів", 50.1069, 30.6226, []string{"Обухов", "Obukhiv"}},
	{"Кам'янське", 48.5188, 34.6139, []string{"Каменское", "Днепродзержинск", "Kamianske"}},
	{"Нікополь", 47.5723, 34.3939, []string{"Никополь", "Nikopol"}},
	{"Маріуполь", 47.0958, 37.5532, []string{"Мариуполь", "Mariupol"}},
	{"Кременчук", 49.0653, 33.4106, []string{"Кременчуг", "Kremenchuk"}},
}

// Gazetteer is a read-only city/alias/coordinate lookup table. It is built
// once at process start and shared across workers without locking.
type Gazetteer struct {
	byName    map[string]*City    // lowercased name or alias -> entry
	regionIdx map[string]string   // 5-char root -> canonical city
	centers   map[string]Point    // canonical name -> center
	aliasOf   map[string][]string // canonical name -> aliases
	all       map[string]string   // every name/alias (lowercased) -> canonical
}

// NewGazetteer builds the lookup indexes from the static city table.
func NewGazetteer() *Gazetteer {
	g := &Gazetteer{
		byName:    make(map[string]*City),
		regionIdx: make(map[string]string),
		centers:   make(map[string]Point),
		aliasOf:   make(map[string][]string),
		all:       make(map[string]string),
	}
	for i := range cities {
		c := &cities[i]
		g.byName[strings.ToLower(c.Name)] = c
		g.centers[c.Name] = Point{c.Lat, c.Lng}
		g.aliasOf[c.Name] = c.Aliases
		g.all[strings.ToLower(c.Name)] = c.Name
		for _, a := range c.Aliases {
			g.byName[strings.ToLower(a)] = c
			g.all[strings.ToLower(a)] = c.Name
		}
	}
	g.buildRegionIndex()
	return g
}

// Region matching is a deliberate first-letters heuristic: "Київська
// область" and "Киевская" both reduce to the same 5-char root as "Київ".
// Short or similar city names can mis-bucket; downstream distance
// validation compensates.
const regionRootLen = 5

func (g *Gazetteer) buildRegionIndex() {
	for i := range cities {
		c := &cities[i]
		root := regionRoot(strings.ToLower(c.Name))
		g.regionIdx[root] = c.Name
		for _, a := range c.Aliases {
			if len([]rune(a)) < 3 {
				continue
			}
			aliasRoot := regionRoot(strings.ToLower(a))
			if _, taken := g.regionIdx[aliasRoot]; !taken {
				g.regionIdx[aliasRoot] = c.Name
			}
		}
	}
}

func regionRoot(s string) string {
	r := []rune(s)
	if len(r) > regionRootLen {
		r = r[:regionRootLen]
	}
	return string(r)
}

// Normalize maps a name or any known alias to the canonical city name.
// Lookup is case-insensitive; a miss returns "".
func (g *Gazetteer) Normalize(name string) string {
	if name == "" {
		return ""
	}
	if c, ok := g.byName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return c.Name
	}
	return ""
}

// CenterOf returns the center coordinate for a city name or alias.
func (g *Gazetteer) CenterOf(name string) *Point {
	if name == "" {
		return nil
	}
	if c, ok := g.byName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return &Point{c.Lat, c.Lng}
	}
	return nil
}

// Aliases returns the known alternate spellings of a canonical city name.
func (g *Gazetteer) Aliases(canonical string) []string {
	return g.aliasOf[canonical]
}

// AliasMap returns every known name and alias mapped to its canonical form.
// Keys are lowercased.
func (g *Gazetteer) AliasMap() map[string]string {
	out := make(map[string]string, len(g.all))
	for k, v := range g.all {
		out[k] = v
	}
	return out
}

var regionSuffixes = []string{"ська", "ская", "ський", "ский", "ське", "ское"}

// RegionCenter maps a region (oblast) name to the center of its
// representative city. Matching strips the oblast word and common
// morphological endings, then compares 5-char roots against the prefix
// index.
func (g *Gazetteer) RegionCenter(regionName string) (*Point, string) {
	if regionName == "" {
		return nil, ""
	}
	cleaned := strings.TrimSpace(strings.ReplaceAll(strings.ToLower(regionName), "область", ""))
	for _, suffix := range regionSuffixes {
		if strings.HasSuffix(cleaned, suffix) {
			cleaned = strings.TrimSuffix(cleaned, suffix)
			break
		}
	}
	root := regionRoot(strings.TrimSpace(cleaned))
	if root == "" {
		return nil, ""
	}
	city, ok := g.regionIdx[root]
	if !ok {
		return nil, ""
	}
	center := g.centers[city]
	return &Point{center.Lat, center.Lng}, city
}
