package meget

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvartyra/estate-crawler/internal/geo"
)

const catalogPage = `
<html><body>
	<div class="offers">
		<a href="/prodazha-kvartir/details/12345.html">Квартира 1</a>
		<a href="/prodazha-kvartir/details/12345.html">Дубль</a>
		<a href="/sale/flat/details/67890.html">Квартира 2</a>
		<a href="/o-kompanii">Про нас</a>
	</div>
</body></html>`

const detailPage = `
<html><body>
	<div class="breadcrumbs">
		<a href="/">Главная</a>
		<a href="/kiev/">Киев</a>
		<a href="/kiev/golos/">Голосеевский р-н</a>
	</div>
	<h1>Продам 2-комнатную квартиру</h1>
	<address class="address-sec">
		<h2><a href="/kiev/">Киев</a>, вул. Саксаганського, 22</h2>
	</address>
	<span id="price_uah">2 500 000 грн</span>
	<div class="params">Площадь: 72 м2</div>
	<div class="image"><img src="/images/photo1.jpg"></div>
	<div class="small_image"><img src="/images/photo2s.jpg"></div>
	<div class="similar-offers">
		<span>1 грн</span>
	</div>
</body></html>`

func newAdapter() *Adapter {
	gaz := geo.NewGazetteer()
	return New(gaz, geo.NewNormalizer(gaz), nil)
}

func TestCatalogURL(t *testing.T) {
	t.Parallel()
	a := newAdapter()

	assert.Equal(t, "https://meget.kiev.ua/prodazha-kvartir/", a.CatalogURL(1))
	assert.Equal(t, "https://meget.kiev.ua/prodazha-kvartir/show/3/", a.CatalogURL(3))
}

func TestParseCatalog(t *testing.T) {
	t.Parallel()
	a := newAdapter()

	urls, err := a.ParseCatalog([]byte(catalogPage))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://meget.kiev.ua/prodazha-kvartir/details/12345.html",
		"https://meget.kiev.ua/sale/flat/details/67890.html",
	}, urls)
}

func TestParseListing(t *testing.T) {
	t.Parallel()
	a := newAdapter()

	raw, err := a.ParseListing(context.Background(),
		[]byte(detailPage), "https://meget.kiev.ua/prodazha-kvartir/details/12345.html")
	require.NoError(t, err)
	require.NotNil(t, raw)

	assert.Equal(t, "meget", raw.Source)
	assert.Equal(t, "Продам 2-комнатную квартиру", raw.Title)
	assert.Equal(t, 2500000.0, raw.Price, "promoted block price must not win")
	assert.Equal(t, "UAH", raw.Currency)
	assert.Equal(t, "Київ", raw.City)
	assert.Equal(t, "Голосеевский р-н", raw.District)
	assert.Contains(t, raw.Address, "Саксаганського")

	require.NotNil(t, raw.Rooms)
	assert.Equal(t, 2, *raw.Rooms)
	require.NotNil(t, raw.Area)
	assert.Equal(t, 72.0, *raw.Area)

	assert.Equal(t, []string{
		"https://meget.kiev.ua/images/photo1.jpg",
		"https://meget.kiev.ua/images/photo2.jpg",
	}, raw.Images)
}

func TestParseListingWithoutTitle(t *testing.T) {
	t.Parallel()
	a := newAdapter()

	raw, err := a.ParseListing(context.Background(),
		[]byte(`<html><body><p>порожньо</p></body></html>`),
		"https://meget.kiev.ua/prodazha-kvartir/details/1.html")
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.Equal(t, "No Title", raw.Title)
	assert.Zero(t, raw.Price)
}
