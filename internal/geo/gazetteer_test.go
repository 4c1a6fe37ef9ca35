package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGazetteerNormalize(t *testing.T) {
	t.Parallel()
	g := NewGazetteer()

	assert.Equal(t, "Київ", g.Normalize("Київ"))
	assert.Equal(t, "Київ", g.Normalize("Киев"))
	assert.Equal(t, "Київ", g.Normalize("kyiv"))
	assert.Equal(t, "Дніпро", g.Normalize("Днепропетровск"))
	assert.Equal(t, "", g.Normalize("Атлантида"))
	assert.Equal(t, "", g.Normalize(""))
}

func TestGazetteerCenterOf(t *testing.T) {
	t.Parallel()
	g := NewGazetteer()

	center := g.CenterOf("Харьков")
	require.NotNil(t, center)
	assert.InDelta(t, 49.9935, center.Lat, 0.001)
	assert.InDelta(t, 36.2304, center.Lng, 0.001)

	assert.Nil(t, g.CenterOf("немає такого міста"))
}

func TestGazetteerRegionCenter(t *testing.T) {
	t.Parallel()
	g := NewGazetteer()

	tests := []struct {
		region string
		city   string
	}{
		{"Київська область", "Київ"},
		{"Киевская", "Київ"},
		{"Львівська область", "Львів"},
		{"Харківська", "Харків"},
	}
	for _, tt := range tests {
		center, city := g.RegionCenter(tt.region)
		require.NotNil(t, center, "region %q", tt.region)
		assert.Equal(t, tt.city, city, "region %q", tt.region)
	}

	center, city := g.RegionCenter("Марсіанська область")
	assert.Nil(t, center)
	assert.Empty(t, city)
}
