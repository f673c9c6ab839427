package mesh

import (
	"context"
	"fmt"

	"github.com/gekko3d/voxstream/voxel/volume"
)

// Mesher turns a chunk snapshot into vertices. dst has been reset.
type Mesher interface {
	Mesh(ctx context.Context, snap *volume.Snapshot, dst *Buffer) error
}

type face struct {
	dir     [3]int
	normal  [3]float32
	shade   float32
	corners [4][3]float32
}

// Corners wind counter-clockwise seen from outside the voxel.
var faces = [6]face{
	{dir: [3]int{1, 0, 0}, normal: [3]float32{1, 0, 0}, shade: 0.8,
		corners: [4][3]float32{{1, 0, 1}, {1, 0, 0}, {1, 1, 0}, {1, 1, 1}}},
	{dir: [3]int{-1, 0, 0}, normal: [3]float32{-1, 0, 0}, shade: 0.8,
		corners: [4][3]float32{{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0}}},
	{dir: [3]int{0, 1, 0}, normal: [3]float32{0, 1, 0}, shade: 1.0,
		corners: [4][3]float32{{0, 1, 1}, {1, 1, 1}, {1, 1, 0}, {0, 1, 0}}},
	{dir: [3]int{0, -1, 0}, normal: [3]float32{0, -1, 0}, shade: 0.5,
		corners: [4][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}},
	{dir: [3]int{0, 0, 1}, normal: [3]float32{0, 0, 1}, shade: 0.7,
		corners: [4][3]float32{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}},
	{dir: [3]int{0, 0, -1}, normal: [3]float32{0, 0, -1}, shade: 0.7,
		corners: [4][3]float32{{1, 0, 0}, {0, 0, 0}, {0, 1, 0}, {1, 1, 0}}},
}

// FaceMesher emits one quad per voxel face that borders a non-solid voxel.
type FaceMesher struct {
	Registry *volume.Registry
}

func NewFaceMesher(reg *volume.Registry) *FaceMesher {
	return &FaceMesher{Registry: reg}
}

func (m *FaceMesher) Mesh(ctx context.Context, snap *volume.Snapshot, dst *Buffer) error {
	var quad [4]Vertex
	for x := 0; x < volume.ChunkSize; x++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for y := 0; y < volume.ChunkSize; y++ {
			for z := 0; z < volume.ChunkSize; z++ {
				v := snap.At(x, y, z)
				if v == volume.Air {
					continue
				}
				if _, ok := m.Registry.Lookup(v); !ok {
					return fmt.Errorf("%w: unknown voxel id %d at local (%d,%d,%d) of chunk %v",
						ErrMalformedChunk, v, x, y, z, snap.Coord)
				}

				for _, f := range faces {
					if m.Registry.IsSolid(snap.At(x+f.dir[0], y+f.dir[1], z+f.dir[2])) {
						continue
					}
					for i, c := range f.corners {
						quad[i] = Vertex{
							Position: [3]float32{float32(x) + c[0], float32(y) + c[1], float32(z) + c[2]},
							Normal:   f.normal,
							Voxel:    uint32(v),
							Shade:    f.shade,
						}
					}
					if err := dst.Append(quad[:]...); err != nil {
						return fmt.Errorf("chunk %v: %w", snap.Coord, err)
					}
				}
			}
		}
	}
	return nil
}
