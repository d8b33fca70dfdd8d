package rtree

import (
	"sort"

	"github.com/dhconnelly/rtreego"

	"github.com/kass/charge-planner/pkg/models"
)

type boxItem struct {
	idx  int
	rect rtreego.Rect
}

func (b *boxItem) Bounds() rtreego.Rect {
	return b.rect
}

// BoundsIndex answers "which boxes contain this point" over a fixed list of
// bounding boxes. Results are positions in that list.
type BoundsIndex struct {
	tree  *rtreego.Rtree
	boxes []models.BoundingBox
}

// NewBoundsIndex indexes boxes. Every box is padded by a small tolerance so
// that points and axis-parallel lines get a non-empty rectangle.
func NewBoundsIndex(boxes []models.BoundingBox) *BoundsIndex {
	items := make([]rtreego.Spatial, len(boxes))
	for i, box := range boxes {
		items[i] = &boxItem{idx: i, rect: boxRect(box)}
	}

	owned := make([]models.BoundingBox, len(boxes))
	copy(owned, boxes)
	return &BoundsIndex{
		tree:  rtreego.NewTree(dimensions, minChildren, maxChildren, items...),
		boxes: owned,
	}
}

// Len returns the number of indexed boxes.
func (bi *BoundsIndex) Len() int {
	return len(bi.boxes)
}

// Containing returns the positions of every box containing c, in ascending
// order.
func (bi *BoundsIndex) Containing(c models.Coord) []int {
	query := rtreego.Point{c.X, c.Y}.ToRect(tolerance)
	results := bi.tree.SearchIntersect(query)

	// Strict boundary check
	out := make([]int, 0, len(results))
	for _, r := range results {
		item := r.(*boxItem)
		if bi.boxes[item.idx].Contains(c) {
			out = append(out, item.idx)
		}
	}
	sort.Ints(out)
	return out
}

func boxRect(box models.BoundingBox) rtreego.Rect {
	corner := rtreego.Point{box.Min.X - tolerance, box.Min.Y - tolerance}
	// Lengths are at least 2*tolerance, so NewRect cannot fail.
	rect, _ := rtreego.NewRect(corner, []float64{
		box.Max.X - box.Min.X + 2*tolerance,
		box.Max.Y - box.Min.Y + 2*tolerance,
	})
	return rect
}
