package rtree

import (
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/charge-planner/pkg/models"
)

func TestBuild(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		ix, err := Build(nil)
		assert.Nil(t, ix)
		assert.True(t, eris.Is(err, models.ErrIndexBuild))
	})

	t.Run("invalid location", func(t *testing.T) {
		_, err := Build([]models.Facility{{ID: "a", X: math.NaN(), Y: 1}})
		assert.True(t, eris.Is(err, models.ErrIndexBuild))
	})

	t.Run("duplicate id", func(t *testing.T) {
		ix, err := Build([]models.Facility{{ID: "P", X: 0, Y: 0}, {ID: "Q", X: 5, Y: 0}, {ID: "P", X: 10, Y: 0}})
		assert.Nil(t, ix)
		require.Error(t, err)
		assert.True(t, eris.Is(err, models.ErrIndexBuild))
		assert.Contains(t, err.Error(), `duplicate facility id "P"`)
	})

	t.Run("copies facilities", func(t *testing.T) {
		facilities := []models.Facility{{ID: "a", X: 1, Y: 1}, {ID: "b", X: 2, Y: 2}}
		ix, err := Build(facilities)
		require.NoError(t, err)

		facilities[0].ID = "changed"
		assert.Equal(t, 2, ix.Len())
		assert.Equal(t, "a", ix.Facilities()[0].ID)
	})
}

func TestKNearest(t *testing.T) {
	// Longitude in X, latitude in Y.
	ix, err := Build([]models.Facility{
		{ID: "1", X: -122.4194, Y: 37.7749},
		{ID: "2", X: -122.4094, Y: 37.7849},
		{ID: "3", X: -122.4294, Y: 37.7649},
		{ID: "4", X: -122.3994, Y: 37.8049},
		{ID: "5", X: -122.4394, Y: 37.7549},
	})
	require.NoError(t, err)

	center := models.Coord{X: -122.4194, Y: 37.7749}
	results := ix.KNearest(center, 3)

	require.Len(t, results, 3)
	assert.Equal(t, "1", results[0].Facility.ID)
	assert.Equal(t, 0.0, results[0].Distance)
	assert.ElementsMatch(t, []string{"2", "3"}, []string{results[1].Facility.ID, results[2].Facility.ID})
	assert.Equal(t, "1", ix.Nearest(center).Facility.ID)
}

func TestKNearestBounds(t *testing.T) {
	ix, err := Build([]models.Facility{{ID: "a", X: 0, Y: 0}, {ID: "b", X: 5, Y: 0}})
	require.NoError(t, err)

	assert.Nil(t, ix.KNearest(models.Coord{}, 0))
	assert.Nil(t, ix.KNearest(models.Coord{}, -3))

	all := ix.KNearest(models.Coord{X: 4, Y: 0}, 10)
	require.Len(t, all, 2, "k beyond the facility count returns everything")
	assert.Equal(t, "b", all[0].Facility.ID)
	assert.InDelta(t, 1.0, all[0].Distance, 1e-12)
	assert.Equal(t, "a", all[1].Facility.ID)
}

func TestKNearestTiesFollowInsertionOrder(t *testing.T) {
	// Eight facilities on the four axis points of the unit circle, each
	// location used twice.
	var facilities []models.Facility
	for i := 0; i < 8; i++ {
		angle := float64(i) * math.Pi / 2
		facilities = append(facilities, models.Facility{
			ID: fmt.Sprintf("f%d", i),
			X:  math.Round(math.Cos(angle)),
			Y:  math.Round(math.Sin(angle)),
		})
	}
	for i := 0; i < 100; i++ {
		facilities = append(facilities, models.Facility{ID: fmt.Sprintf("far%d", i), X: 50 + float64(i), Y: 50})
	}

	ix, err := Build(facilities)
	require.NoError(t, err)

	results := ix.KNearest(models.Coord{}, 8)
	require.Len(t, results, 8)
	for i, n := range results {
		assert.Equal(t, fmt.Sprintf("f%d", i), n.Facility.ID)
		assert.Equal(t, i, n.Seq)
		assert.InDelta(t, 1.0, n.Distance, 1e-12)
	}
}

func TestKNearestMatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	facilities := generateFacilities(r, 2000)
	// Snap to a coarse grid so exact ties are common.
	for i := range facilities {
		facilities[i].X = math.Round(facilities[i].X)
		facilities[i].Y = math.Round(facilities[i].Y)
	}

	ix, err := Build(facilities)
	require.NoError(t, err)

	for q := 0; q < 50; q++ {
		p := models.Coord{X: math.Round(r.Float64() * 100), Y: math.Round(r.Float64() * 100)}
		k := 1 + r.Intn(60)

		got := ix.KNearest(p, k)
		want := bruteForce(facilities, p, k)
		require.Len(t, got, k)
		for i := range want {
			assert.Equal(t, want[i].Seq, got[i].Seq, "query %d rank %d", q, i)
		}

		// A longer query extends a shorter one.
		longer := ix.KNearest(p, k+10)
		assert.Equal(t, got, longer[:k])
	}
}

func TestConcurrentQueries(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	ix, err := Build(generateFacilities(r, 10000))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			qr := rand.New(rand.NewSource(seed))
			center := models.Coord{X: qr.Float64() * 100, Y: qr.Float64() * 100}
			results := ix.KNearest(center, qr.Intn(50)+1)
			assert.NotEmpty(t, results)
		}(int64(i))
	}
	wg.Wait()
}

func TestBoundsIndex(t *testing.T) {
	bi := NewBoundsIndex([]models.BoundingBox{
		{Min: models.Coord{X: 0, Y: 0}, Max: models.Coord{X: 10, Y: 10}},
		{Min: models.Coord{X: 5, Y: 5}, Max: models.Coord{X: 15, Y: 15}},
		{Min: models.Coord{X: 20, Y: 0}, Max: models.Coord{X: 20, Y: 0}},
		{Min: models.Coord{X: 0, Y: 30}, Max: models.Coord{X: 10, Y: 30}},
	})
	assert.Equal(t, 4, bi.Len())

	testCases := []struct {
		name  string
		point models.Coord
		want  []int
	}{
		{"inside first", models.Coord{X: 1, Y: 1}, []int{0}},
		{"overlap", models.Coord{X: 7, Y: 7}, []int{0, 1}},
		{"on edge", models.Coord{X: 10, Y: 10}, []int{0, 1}},
		{"point box", models.Coord{X: 20, Y: 0}, []int{2}},
		{"line box", models.Coord{X: 4, Y: 30}, []int{3}},
		{"near but outside", models.Coord{X: 20.0000001, Y: 0}, []int{}},
		{"nowhere", models.Coord{X: -5, Y: -5}, []int{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, bi.Containing(tc.point))
		})
	}
}

func TestPersistence(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	ix1, err := Build(generateFacilities(r, 100))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "facilities.gob")
	require.NoError(t, ix1.SaveToFile(path))

	ix2, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, ix1.Facilities(), ix2.Facilities())
	center := models.Coord{X: 50, Y: 50}
	assert.Equal(t, ix1.KNearest(center, 10), ix2.KNearest(center, 10))

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.gob"))
	assert.Error(t, err)
}

func TestDistance(t *testing.T) {
	testCases := []struct {
		name     string
		lat1     float64
		lon1     float64
		lat2     float64
		lon2     float64
		expected float64
		delta    float64
	}{
		{
			name: "Same point",
			lat1: 37.7749, lon1: -122.4194,
			lat2: 37.7749, lon2: -122.4194,
			expected: 0,
			delta:    0.01,
		},
		{
			name: "SF to Oakland",
			lat1: 37.7749, lon1: -122.4194,
			lat2: 37.8044, lon2: -122.2712,
			expected: 13.0, // Approximately 13km
			delta:    1.0,
		},
		{
			name: "SF to LA",
			lat1: 37.7749, lon1: -122.4194,
			lat2: 34.0522, lon2: -118.2437,
			expected: 559.0, // Approximately 559km
			delta:    5.0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dist := Distance(tc.lat1, tc.lon1, tc.lat2, tc.lon2)
			assert.InDelta(t, tc.expected, dist, tc.delta)
		})
	}

	sf := models.Coord{X: -122.4194, Y: 37.7749}
	la := models.Coord{X: -118.2437, Y: 34.0522}
	assert.InDelta(t, 559.0, GeoDistance(sf, la), 5.0)
}

func generateFacilities(r *rand.Rand, n int) []models.Facility {
	facilities := make([]models.Facility, n)
	for i := range facilities {
		facilities[i] = models.Facility{
			ID: fmt.Sprintf("facility_%d", i),
			X:  r.Float64() * 100,
			Y:  r.Float64() * 100,
		}
	}
	return facilities
}

func bruteForce(facilities []models.Facility, p models.Coord, k int) []Neighbor {
	all := make([]Neighbor, len(facilities))
	for i, f := range facilities {
		all[i] = Neighbor{Facility: f, Distance: math.Hypot(f.X-p.X, f.Y-p.Y), Seq: i}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Distance < all[j].Distance })
	if k > len(all) {
		k = len(all)
	}
	return all[:k]
}

// Benchmarks

func BenchmarkBuild(b *testing.B) {
	sizes := []int{1000, 10000, 100000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("%d_facilities", size), func(b *testing.B) {
			facilities := generateFacilities(rand.New(rand.NewSource(1)), size)
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = Build(facilities)
			}
		})
	}
}

func BenchmarkKNearest(b *testing.B) {
	ix, _ := Build(generateFacilities(rand.New(rand.NewSource(1)), 100000))
	center := models.Coord{X: 37.5, Y: 62.5}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ix.KNearest(center, 10)
	}
}
