package volume

const (
	BrickSize   = 8
	MicroSize   = 2
	ChunkBricks = 2
	ChunkSize   = ChunkBricks * BrickSize // 16

	microPerAxis = BrickSize / MicroSize // 4
)

// Brick is a dense 8³ block of voxels with a 64-bit occupancy mask over its
// 2³ micro cells. A chunk keeps nil for bricks that are entirely air.
type Brick struct {
	OccupancyMask64 uint64
	Payload         [BrickSize][BrickSize][BrickSize]VoxelType
	count           int
}

func NewBrick() *Brick {
	return &Brick{}
}

func (b *Brick) Copy() *Brick {
	newB := *b
	return &newB
}

func (b *Brick) Get(bx, by, bz int) VoxelType {
	return b.Payload[bx][by][bz]
}

// Set writes a voxel and reports whether the stored value changed.
func (b *Brick) Set(bx, by, bz int, val VoxelType) bool {
	old := b.Payload[bx][by][bz]
	if old == val {
		return false
	}
	b.Payload[bx][by][bz] = val

	switch {
	case old == Air:
		b.count++
	case val == Air:
		b.count--
	}

	mx, my, mz := bx/MicroSize, by/MicroSize, bz/MicroSize
	bitIdx := mx + my*microPerAxis + mz*microPerAxis*microPerAxis

	if val != Air {
		b.OccupancyMask64 |= (1 << bitIdx)
		return true
	}

	// Re-evaluate the micro cell
	startX, startY, startZ := mx*MicroSize, my*MicroSize, mz*MicroSize
	for x := 0; x < MicroSize; x++ {
		for y := 0; y < MicroSize; y++ {
			for z := 0; z < MicroSize; z++ {
				if b.Payload[startX+x][startY+y][startZ+z] != Air {
					return true
				}
			}
		}
	}
	b.OccupancyMask64 &^= (1 << bitIdx)
	return true
}

// MicroOccupied reports whether the micro cell holding (bx,by,bz) has any
// non-air voxel.
func (b *Brick) MicroOccupied(bx, by, bz int) bool {
	bitIdx := bx/MicroSize + (by/MicroSize)*microPerAxis + (bz/MicroSize)*microPerAxis*microPerAxis
	return b.OccupancyMask64&(1<<bitIdx) != 0
}

func (b *Brick) Count() int {
	return b.count
}

func (b *Brick) IsEmpty() bool {
	return b.OccupancyMask64 == 0
}
