package spatial

import (
	"math"

	"github.com/gekko3d/voxstream/voxel/core"
	"github.com/go-gl/mathgl/mgl32"
)

// Box is a float axis aligned box. A point is a Box with Min == Max, so
// box-vs-box and box-vs-point tests share one code path.
type Box core.AABB

func BoxOf(a core.AABB) Box {
	return Box(a)
}

func PointBox(p mgl32.Vec3) Box {
	return Box{Min: p, Max: p}
}

func (b Box) AABB() core.AABB {
	return core.AABB(b)
}

func (b Box) Intersects(other Box) bool {
	return core.AABB(b).Intersects(core.AABB(other))
}

func (b Box) Cells(cellSize float32) ([3]int, [3]int, bool) {
	var lo, hi [3]int
	for i := 0; i < 3; i++ {
		mn, mx := float64(b.Min[i]/cellSize), float64(b.Max[i]/cellSize)
		if math.IsNaN(mn) || math.IsNaN(mx) || math.IsInf(mn, 0) || math.IsInf(mx, 0) {
			return lo, hi, false
		}
		if math.Abs(mn) > math.MaxInt32 || math.Abs(mx) > math.MaxInt32 {
			return lo, hi, false
		}
		lo[i] = int(math.Floor(mn))
		hi[i] = int(math.Floor(mx))
	}
	return lo, hi, true
}

// Area is an inclusive box of integer coordinates (chunk or block space).
type Area struct {
	Min [3]int
	Max [3]int
}

// AreaAround returns the cube of the given radius centred on c.
func AreaAround(c [3]int, radius, vertical int) Area {
	return Area{
		Min: [3]int{c[0] - radius, c[1] - vertical, c[2] - radius},
		Max: [3]int{c[0] + radius, c[1] + vertical, c[2] + radius},
	}
}

func CellArea(c [3]int) Area {
	return Area{Min: c, Max: c}
}

func (a Area) Intersects(other Area) bool {
	for i := 0; i < 3; i++ {
		if a.Max[i] < other.Min[i] || other.Max[i] < a.Min[i] {
			return false
		}
	}
	return true
}

func (a Area) Contains(c [3]int) bool {
	return a.Intersects(CellArea(c))
}

func (a Area) Cells(cellSize float32) ([3]int, [3]int, bool) {
	size := int(cellSize)
	if size < 1 {
		size = 1
	}
	var lo, hi [3]int
	for i := 0; i < 3; i++ {
		lo[i] = floorDiv(a.Min[i], size)
		hi[i] = floorDiv(a.Max[i], size)
	}
	return lo, hi, true
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
