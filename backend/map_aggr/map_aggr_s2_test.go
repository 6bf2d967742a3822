package map_aggr

import (
	"fmt"
	"testing"

	"cleanstreet/backend/server/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var europe = &api.ViewPort{
	LatMin: 42.691869916020075,
	LonMin: -4.318880552071925,
	LatMax: 52.80861391899353,
	LonMax: 11.800429267075046,
}

func pin(id string, lat, lon float64, open bool) api.MapResult {
	r := api.MapResult{Latitude: lat, Longitude: lon, Count: 1, ComplaintId: id}
	if open {
		r.Open = 1
	}
	return r
}

func TestBaseLevelShrinksWithViewport(t *testing.T) {
	city := &api.ViewPort{LatMin: 47.35, LonMin: 8.50, LatMax: 47.40, LonMax: 8.58}
	assert.Less(t, BaseLevel(europe), BaseLevel(city))
	assert.GreaterOrEqual(t, BaseLevel(europe), coarsestLevel)
	assert.LessOrEqual(t, BaseLevel(city), finestLevel)
}

func TestSparsePinsStayIndividual(t *testing.T) {
	a := New(europe)
	a.Add(pin("zurich", 47.3769, 8.5417, true))
	a.Add(pin("paris", 48.8566, 2.3522, false))
	a.Add(pin("lyon", 45.7640, 4.8357, true))

	res := a.Results()
	require.Len(t, res, 3)
	ids := map[string]bool{}
	for _, r := range res {
		assert.Equal(t, int64(1), r.Count)
		ids[r.ComplaintId] = true
	}
	assert.Equal(t, map[string]bool{"zurich": true, "paris": true, "lyon": true}, ids)
}

func TestDenseGroupsCluster(t *testing.T) {
	a := New(europe)
	for i := 0; i < 12; i++ {
		d := float64(i) * 0.001
		a.Add(pin(fmt.Sprintf("z%d", i), 47.37+d, 8.54+d, i%2 == 0))
		a.Add(pin(fmt.Sprintf("p%d", i), 48.85+d, 2.35-d, i < 3))
	}

	res := a.Results()
	require.Len(t, res, 2)

	var total int64
	for _, r := range res {
		total += r.Count
		assert.Equal(t, int64(12), r.Count)
		assert.Empty(t, r.ComplaintId)
		switch {
		case r.Longitude > 5:
			assert.InDelta(t, 47.375, r.Latitude, 0.05)
			assert.InDelta(t, 8.545, r.Longitude, 0.05)
			assert.Equal(t, int64(6), r.Open)
		default:
			assert.InDelta(t, 48.855, r.Latitude, 0.05)
			assert.InDelta(t, 2.345, r.Longitude, 0.05)
			assert.Equal(t, int64(3), r.Open)
		}
	}
	assert.Equal(t, int64(24), total)
}

func TestCountIsConserved(t *testing.T) {
	a := New(europe)
	n := 0
	for lat := 43.0; lat < 52.0; lat += 0.7 {
		for lon := -3.0; lon < 11.0; lon += 0.9 {
			a.Add(pin(fmt.Sprintf("%d", n), lat, lon, true))
			n++
		}
	}
	var total, open int64
	for _, r := range a.Results() {
		total += r.Count
		open += r.Open
	}
	assert.Equal(t, int64(n), total)
	assert.Equal(t, int64(n), open)
}

func TestEmpty(t *testing.T) {
	assert.Empty(t, New(europe).Results())
}
