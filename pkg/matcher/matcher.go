// Package matcher assigns bubbles to facilities under a per-facility cap.
//
// Bubbles are processed strictly in order. Each one goes to the nearest
// facility, measured from its representative point, that has not reached
// capacity yet. A facility that reaches capacity is excluded for the rest of
// the run, so earlier bubbles shape the choices of later ones.
package matcher

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kass/charge-planner/pkg/geometry"
	"github.com/kass/charge-planner/pkg/models"
	"github.com/kass/charge-planner/pkg/rtree"
)

// Index is the nearest-facility lookup the matcher needs. KNearest must be
// deterministic and return ranked prefixes: the first j results of a query
// for k > j equal the results of a query for j. Neighbor.Seq is the
// facility's position in Facilities().
type Index interface {
	KNearest(p models.Coord, k int) []rtree.Neighbor
	Facilities() []models.Facility
	Len() int
}

var _ Index = (*rtree.FacilityIndex)(nil)

// Matcher holds the inputs of a matching run. It keeps no state between
// calls to Match.
type Matcher struct {
	index    Index
	capacity int
	log      *zap.Logger
}

// New creates a matcher over index where no facility takes more than
// capacity bubbles.
func New(index Index, capacity int) *Matcher {
	return &Matcher{
		index:    index,
		capacity: capacity,
		log:      zap.L().With(zap.String("component", "matcher")),
	}
}

// Capacity returns the per-facility cap.
func (m *Matcher) Capacity() int {
	return m.capacity
}

// assignmentState is the per-run bookkeeping, indexed by facility insertion
// position.
type assignmentState struct {
	counts   []int
	excluded []bool
	closed   int
}

// Match assigns every bubble in order. It fails with a
// *models.CapacityExhaustedError as soon as a bubble finds every facility at
// capacity; nothing is assigned partially in that case.
func (m *Matcher) Match(bubbles []models.Bubble) (*models.AssignmentResult, error) {
	facilities := m.index.Facilities()
	state := assignmentState{
		counts:   make([]int, len(facilities)),
		excluded: make([]bool, len(facilities)),
	}
	pairings := make([]models.Pairing, 0, len(bubbles))

	for i, b := range bubbles {
		rep, err := geometry.Representative(b)
		if err != nil {
			return nil, eris.Wrapf(err, "matcher: bubble %d", i)
		}

		n, ok := m.nearestOpen(rep, &state)
		if !ok {
			return nil, &models.CapacityExhaustedError{
				BubbleIndex: i,
				Capacity:    m.capacity,
				Facilities:  len(facilities),
			}
		}

		state.counts[n.Seq]++
		if state.counts[n.Seq] >= m.capacity {
			state.excluded[n.Seq] = true
			state.closed++
		}
		pairings = append(pairings, models.Pairing{
			BubbleIndex: i,
			FacilityID:  n.Facility.ID,
			Distance:    n.Distance,
		})

		if ce := m.log.Check(zap.DebugLevel, "assigned"); ce != nil {
			ce.Write(
				zap.Int("bubble", i),
				zap.String("facility", n.Facility.ID),
				zap.Float64("distance", n.Distance),
				zap.Int("count", state.counts[n.Seq]),
			)
		}
	}

	entries := make([]models.AssignmentEntry, len(facilities))
	for i, f := range facilities {
		entries[i] = models.AssignmentEntry{FacilityID: f.ID, X: f.X, Y: f.Y, Count: state.counts[i]}
	}
	return models.NewAssignmentResult(m.capacity, entries, pairings), nil
}

// nearestOpen walks the ranked neighbours of p and returns the first one not
// excluded. The window doubles each time it is used up and the cursor
// resumes where the previous window ended, which picks the same facility as
// re-querying with k, k+1, k+2 and so on.
func (m *Matcher) nearestOpen(p models.Coord, state *assignmentState) (rtree.Neighbor, bool) {
	total := len(state.counts)
	if m.capacity <= 0 || state.closed >= total {
		return rtree.Neighbor{}, false
	}

	cursor := 0
	for window := 1; ; window *= 2 {
		ranked := m.index.KNearest(p, window)
		for ; cursor < len(ranked); cursor++ {
			if !state.excluded[ranked[cursor].Seq] {
				return ranked[cursor], true
			}
		}
		if len(ranked) < window || window >= total {
			return rtree.Neighbor{}, false
		}
	}
}

// MinimumCapacity is the smallest cap that lets facilities absorb every
// bubble: ceil(bubbles / facilities). It is zero without facilities.
func MinimumCapacity(bubbles, facilities int) int {
	if facilities <= 0 || bubbles <= 0 {
		return 0
	}
	return (bubbles + facilities - 1) / facilities
}

// Feasible reports whether capacity lets facilities absorb every bubble.
func Feasible(capacity, bubbles, facilities int) bool {
	if bubbles == 0 {
		return true
	}
	return facilities > 0 && capacity > 0 && capacity >= MinimumCapacity(bubbles, facilities)
}
