package partition

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/charge-planner/pkg/models"
)

func generateDemand(n int, seed int64) []models.DemandPoint {
	r := rand.New(rand.NewSource(seed))
	points := make([]models.DemandPoint, n)
	for i := range points {
		points[i] = models.DemandPoint{
			X:      r.Float64() * 1000,
			Y:      r.Float64() * 500,
			Weight: float64(r.Intn(6)),
		}
	}
	return points
}

func sortedPoints(points []models.DemandPoint) []models.DemandPoint {
	out := make([]models.DemandPoint, len(points))
	copy(out, points)
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].Weight < out[j].Weight
	})
	return out
}

func collect(bubbles []models.Bubble) []models.DemandPoint {
	var all []models.DemandPoint
	for _, b := range bubbles {
		all = append(all, b.Points...)
	}
	return all
}

func TestBisectorCollinearExample(t *testing.T) {
	points := []models.DemandPoint{
		{X: 0, Y: 0, Weight: 5},
		{X: 1, Y: 0, Weight: 5},
		{X: 2, Y: 0, Weight: 5},
		{X: 3, Y: 0, Weight: 5},
	}

	bubbles, err := NewBisector(8).Partition(points)
	require.NoError(t, err)
	require.Len(t, bubbles, 2)

	assert.Equal(t, models.Segment, bubbles[0].Kind)
	assert.Equal(t, []models.Coord{{X: 0, Y: 0}, {X: 1, Y: 0}}, bubbles[0].Shape)
	assert.Equal(t, models.Segment, bubbles[1].Kind)
	assert.Equal(t, []models.Coord{{X: 2, Y: 0}, {X: 3, Y: 0}}, bubbles[1].Shape)
}

func TestBisectorEdgeCases(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		bubbles, err := NewBisector(8).Partition(nil)
		require.NoError(t, err)
		assert.NotNil(t, bubbles)
		assert.Empty(t, bubbles)
	})

	t.Run("single point above threshold", func(t *testing.T) {
		bubbles, err := NewBisector(1).Partition([]models.DemandPoint{{X: 1, Y: 2, Weight: 50}})
		require.NoError(t, err)
		require.Len(t, bubbles, 1)
		assert.Equal(t, models.SinglePoint, bubbles[0].Kind)
	})

	t.Run("light set stays whole", func(t *testing.T) {
		points := generateDemand(9, 3)
		for i := range points {
			points[i].Weight = 0.5
		}
		bubbles, err := NewBisector(8).Partition(points)
		require.NoError(t, err)
		require.Len(t, bubbles, 1)
		assert.Equal(t, models.Polygon, bubbles[0].Kind)
		assert.Len(t, bubbles[0].Points, 9)
	})

	t.Run("equal to threshold keeps splitting", func(t *testing.T) {
		points := []models.DemandPoint{{X: 0, Y: 0, Weight: 4}, {X: 1, Y: 0, Weight: 4}}
		bubbles, err := NewBisector(4).Partition(points)
		require.NoError(t, err)
		assert.Len(t, bubbles, 2)
	})

	t.Run("zero weights", func(t *testing.T) {
		points := []models.DemandPoint{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 0, Y: 2}}
		bubbles, err := NewBisector(8).Partition(points)
		require.NoError(t, err)
		require.Len(t, bubbles, 1)
		assert.Equal(t, models.Polygon, bubbles[0].Kind)
	})

	t.Run("negative threshold", func(t *testing.T) {
		_, err := NewBisector(-1).Partition(generateDemand(3, 1))
		assert.Error(t, err)
	})

	t.Run("nan threshold", func(t *testing.T) {
		_, err := NewBisector(math.NaN()).Partition(generateDemand(3, 1))
		assert.Error(t, err)
	})

	t.Run("zero threshold splits down to single points", func(t *testing.T) {
		points := []models.DemandPoint{{X: 0, Y: 0, Weight: 1}, {X: 1, Y: 0, Weight: 1}, {X: 2, Y: 0}}
		bubbles, err := Bisector{}.Partition(points)
		require.NoError(t, err)
		require.Len(t, bubbles, len(points))
		for i, b := range bubbles {
			assert.Equal(t, models.SinglePoint, b.Kind)
			assert.Equal(t, []models.DemandPoint{points[i]}, b.Points)
		}
	})
}

func TestBisectorAxisChoice(t *testing.T) {
	// Taller than wide: the split must run along y.
	points := []models.DemandPoint{
		{X: 0, Y: 9, Weight: 5},
		{X: 1, Y: 0, Weight: 5},
		{X: 0, Y: 3, Weight: 5},
		{X: 1, Y: 6, Weight: 5},
	}

	bubbles, err := NewBisector(8).Partition(points)
	require.NoError(t, err)
	require.Len(t, bubbles, 2)
	assert.Equal(t, []models.DemandPoint{{X: 1, Y: 0, Weight: 5}, {X: 0, Y: 3, Weight: 5}}, bubbles[0].Points)
	assert.Equal(t, []models.DemandPoint{{X: 1, Y: 6, Weight: 5}, {X: 0, Y: 9, Weight: 5}}, bubbles[1].Points)
}

func TestBisectorCeilingSplit(t *testing.T) {
	// Five points of weight 3: the first half takes three points (9 >= 8),
	// so the left side recurses while the right pair (6) would not.
	points := []models.DemandPoint{
		{X: 0, Y: 0, Weight: 3},
		{X: 1, Y: 0, Weight: 3},
		{X: 2, Y: 0, Weight: 3},
		{X: 3, Y: 0, Weight: 3},
		{X: 4, Y: 0, Weight: 3},
	}

	bubbles, err := NewBisector(8).Partition(points)
	require.NoError(t, err)

	kinds := make([]models.ShapeKind, len(bubbles))
	for i, b := range bubbles {
		kinds[i] = b.Kind
	}
	assert.Equal(t, []models.ShapeKind{models.Polygon, models.Segment}, kinds)
	assert.Len(t, bubbles[0].Points, 3)
	assert.Equal(t, 3.0, bubbles[1].Points[0].X)
}

func TestBisectorStableTies(t *testing.T) {
	points := []models.DemandPoint{
		{X: 1, Y: 0, Weight: 7},
		{X: 1, Y: 0, Weight: 6},
		{X: 0, Y: 0, Weight: 5},
	}

	bubbles, err := NewBisector(8).Partition(points)
	require.NoError(t, err)

	all := collect(bubbles)
	assert.Equal(t, []models.DemandPoint{
		{X: 0, Y: 0, Weight: 5},
		{X: 1, Y: 0, Weight: 7},
		{X: 1, Y: 0, Weight: 6},
	}, all)
}

func TestBisectorProperties(t *testing.T) {
	for _, tc := range []struct {
		n         int
		threshold float64
	}{
		{n: 1, threshold: 8},
		{n: 17, threshold: 8},
		{n: 500, threshold: 8},
		{n: 500, threshold: 40},
		{n: 2000, threshold: 2},
	} {
		t.Run(fmt.Sprintf("%d_points_threshold_%g", tc.n, tc.threshold), func(t *testing.T) {
			points := generateDemand(tc.n, int64(tc.n))
			bubbles, err := NewBisector(tc.threshold).Partition(points)
			require.NoError(t, err)

			// Coverage: every input point exactly once.
			assert.Empty(t, cmp.Diff(sortedPoints(points), sortedPoints(collect(bubbles))))

			for i, b := range bubbles {
				require.NotEmpty(t, b.Points)
				assert.Equal(t, models.KindForCount(len(b.Points)), b.Kind, "bubble %d", i)
				if len(b.Points) == 1 {
					continue
				}

				// A multi-point bubble is a set whose two halves both fell
				// below the threshold.
				parent := make([]models.DemandPoint, len(b.Points))
				copy(parent, b.Points)
				sortAlongWiderAxis(parent)
				assert.Equal(t, b.Points, parent, "bubble %d points are not in split order", i)

				mid := (len(parent) + 1) / 2
				assert.Less(t, totalWeight(parent[:mid]), tc.threshold, "bubble %d", i)
				assert.Less(t, totalWeight(parent[mid:]), tc.threshold, "bubble %d", i)
			}
		})
	}
}

func TestBisectorDoesNotModifyInput(t *testing.T) {
	points := generateDemand(100, 5)
	before := make([]models.DemandPoint, len(points))
	copy(before, points)

	_, err := NewBisector(8).Partition(points)
	require.NoError(t, err)
	assert.Equal(t, before, points)
}

func TestBisectorDeterminism(t *testing.T) {
	points := generateDemand(1000, 11)

	first, err := NewBisector(8).Partition(points)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := NewBisector(8).Partition(points)
		require.NoError(t, err)
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("run %d differs (-first +again):\n%s", i, diff)
		}
	}
}

func TestBisectorParallelMatchesSequential(t *testing.T) {
	for _, workers := range []int{2, 3, 4, 8, 64} {
		t.Run(fmt.Sprintf("%d_workers", workers), func(t *testing.T) {
			points := generateDemand(3000, 21)

			sequential, err := NewBisector(8).Partition(points)
			require.NoError(t, err)
			parallel, err := Bisector{Threshold: 8, Workers: workers}.Partition(points)
			require.NoError(t, err)

			if diff := cmp.Diff(sequential, parallel); diff != "" {
				t.Fatalf("parallel order differs (-sequential +parallel):\n%s", diff)
			}
		})
	}

	t.Run("root is a leaf", func(t *testing.T) {
		points := []models.DemandPoint{{X: 0, Y: 0, Weight: 1}, {X: 1, Y: 1, Weight: 1}}
		bubbles, err := Bisector{Threshold: 8, Workers: 4}.Partition(points)
		require.NoError(t, err)
		assert.Len(t, bubbles, 1)
	})
}

func BenchmarkBisector(b *testing.B) {
	sizes := []int{1000, 10000, 100000}

	for _, size := range sizes {
		points := generateDemand(size, 1)
		b.Run(fmt.Sprintf("%d_points", size), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_, _ = NewBisector(8).Partition(points)
			}
		})
		b.Run(fmt.Sprintf("%d_points_parallel", size), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_, _ = Bisector{Threshold: 8, Workers: 8}.Partition(points)
			}
		})
	}
}
