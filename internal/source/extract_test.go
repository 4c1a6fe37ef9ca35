package source

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		page string
		ref  string
		want string
	}{
		{"https://meget.kiev.ua/sale/1", "/images/1.jpg", "https://meget.kiev.ua/images/1.jpg"},
		{"https://meget.kiev.ua/sale/1", "https://cdn.meget.kiev.ua/2.jpg", "https://cdn.meget.kiev.ua/2.jpg"},
		{"https://rieltor.ua/flats-sale/", "view/10", "https://rieltor.ua/flats-sale/view/10"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ResolveURL(tc.page, tc.ref), tc.ref)
	}
}

func TestCleanDigits(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2500000", CleanDigits("2 500 000 грн"))
	assert.Equal(t, "85000", CleanDigits("$85,000"))
	assert.Equal(t, "", CleanDigits("договірна"))
}

func TestParseAmount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2500000.0, ParseAmount("2 500 000 грн"))
	assert.Equal(t, 85000.0, ParseAmount("85 000 $"))
	assert.Equal(t, 0.0, ParseAmount("ціну уточнюйте"))
	assert.Equal(t, 0.0, ParseAmount(""))
}

func TestParseDecimal(t *testing.T) {
	t.Parallel()

	v, ok := ParseDecimal("Загальна площа: 72.5 м²")
	require.True(t, ok)
	assert.Equal(t, 72.5, v)

	v, ok = ParseDecimal("64,3 м²")
	require.True(t, ok)
	assert.Equal(t, 64.3, v)

	_, ok = ParseDecimal("площа не вказана")
	assert.False(t, ok)
}

func TestRoomsFromTitle(t *testing.T) {
	t.Parallel()

	cases := []struct {
		title string
		want  int // 0 means nil
	}{
		{"Продам двокімнатну квартиру на Оболоні", 2},
		{"Трикімнатна квартира в центрі", 3},
		{"Однокомнатная квартира возле метро", 1},
		{"Продаж 2-кімнатної квартири", 2},
		{"Квартира, 3 комнаты, Харьков", 3},
		{"2-к квартира на Позняках", 2},
		{"Продам 25 кімнатний готель", 0},
		{"Офісне приміщення в центрі", 0},
	}
	for _, tc := range cases {
		got := RoomsFromTitle(tc.title)
		if tc.want == 0 {
			assert.Nil(t, got, tc.title)
			continue
		}
		require.NotNil(t, got, tc.title)
		assert.Equal(t, tc.want, *got, tc.title)
	}
}

func TestCollectImages(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<html><body>
			<div class="gallery">
				<img src="/photos/a.jpg">
				<img data-src="/photos/b.jpg">
				<img src="/photos/a.jpg">
				<img src="/assets/logo.png">
			</div>
		</body></html>`))
	require.NoError(t, err)

	images := CollectImages(doc, "https://example.ua/flat/1", ".gallery img")
	assert.Equal(t, []string{
		"https://example.ua/photos/a.jpg",
		"https://example.ua/photos/b.jpg",
	}, images)
}

func TestCollectImagesFallsBackToOpenGraph(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<html><head>
			<meta property="og:image" content="/photos/main.jpg">
		</head><body></body></html>`))
	require.NoError(t, err)

	images := CollectImages(doc, "https://example.ua/flat/1", ".gallery img")
	assert.Equal(t, []string{"https://example.ua/photos/main.jpg"}, images)
}

func TestFlattenText(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<div id="d"><p>Загальна   площа</p><span>72 м²</span><script>var x=1;</script></div>`))
	require.NoError(t, err)

	assert.Equal(t, "Загальна площа 72 м²", FlattenText(doc.Find("#d")))
}

func TestCrumbClassifiers(t *testing.T) {
	t.Parallel()

	assert.True(t, IsRegionCrumb("Київська область"))
	assert.False(t, IsRegionCrumb("Київ"))
	assert.True(t, IsDistrictCrumb("Шевченківський р-н"))
	assert.True(t, IsDistrictCrumb("Дарницький район"))
	assert.False(t, IsDistrictCrumb("вулиця Хрещатик"))
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_, err := r.Get("meget")
	assert.Error(t, err)
	assert.Empty(t, r.Names())
}
