package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/charge-planner/pkg/models"
)

func TestMarshalWKT(t *testing.T) {
	testCases := []struct {
		name   string
		bubble models.Bubble
		want   string
	}{
		{
			name:   "point",
			bubble: models.Bubble{Kind: models.SinglePoint, Shape: []models.Coord{{X: 1, Y: 2}}},
			want:   "POINT (1 2)",
		},
		{
			name:   "segment",
			bubble: models.Bubble{Kind: models.Segment, Shape: []models.Coord{{X: 1, Y: 2}, {X: 3, Y: 4}}},
			want:   "LINESTRING (1 2, 3 4)",
		},
		{
			name: "polygon ring is closed",
			bubble: models.Bubble{
				Kind:  models.Polygon,
				Shape: []models.Coord{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}},
			},
			want: "POLYGON ((0 0, 1 0, 0 1, 0 0))",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := MarshalWKT(tc.bubble)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)

			back, err := UnmarshalWKT(got)
			require.NoError(t, err)
			assert.Equal(t, tc.bubble.Kind, back.Kind)
			assert.Equal(t, tc.bubble.Shape, back.Shape)
		})
	}
}

func TestUnmarshalWKTRejects(t *testing.T) {
	for _, s := range []string{
		"not wkt",
		"LINESTRING (0 0, 1 1, 2 2)",
		"MULTIPOINT ((0 0), (1 1))",
	} {
		_, err := UnmarshalWKT(s)
		assert.Error(t, err, s)
	}
}

func TestMarshalWKTEmpty(t *testing.T) {
	_, err := MarshalWKT(models.Bubble{Kind: models.Polygon})
	assert.Error(t, err)
}
