package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// AABB is an axis aligned box. Boxes touching on a face intersect.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

func NewAABB(a, b mgl32.Vec3) AABB {
	return AABB{
		Min: mgl32.Vec3{min(a.X(), b.X()), min(a.Y(), b.Y()), min(a.Z(), b.Z())},
		Max: mgl32.Vec3{max(a.X(), b.X()), max(a.Y(), b.Y()), max(a.Z(), b.Z())},
	}
}

// PointAABB is the degenerate box holding a single point.
func PointAABB(p mgl32.Vec3) AABB {
	return AABB{Min: p, Max: p}
}

func (a AABB) Intersects(b AABB) bool {
	for i := 0; i < 3; i++ {
		if a.Max[i] < b.Min[i] || b.Max[i] < a.Min[i] {
			return false
		}
	}
	return true
}

func (a AABB) Contains(p mgl32.Vec3) bool {
	for i := 0; i < 3; i++ {
		if p[i] < a.Min[i] || p[i] > a.Max[i] {
			return false
		}
	}
	return true
}

func (a AABB) Union(b AABB) AABB {
	return AABB{
		Min: mgl32.Vec3{min(a.Min.X(), b.Min.X()), min(a.Min.Y(), b.Min.Y()), min(a.Min.Z(), b.Min.Z())},
		Max: mgl32.Vec3{max(a.Max.X(), b.Max.X()), max(a.Max.Y(), b.Max.Y()), max(a.Max.Z(), b.Max.Z())},
	}
}

func (a AABB) Expand(d float32) AABB {
	e := mgl32.Vec3{d, d, d}
	return AABB{Min: a.Min.Sub(e), Max: a.Max.Add(e)}
}

func (a AABB) Center() mgl32.Vec3 {
	return a.Min.Add(a.Max).Mul(0.5)
}
