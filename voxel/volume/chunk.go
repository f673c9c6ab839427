package volume

import (
	"sync"
)

// Chunk owns a 16³ grid of voxels stored as 2³ sparse bricks. Every write
// that changes a voxel bumps Version; mesh regeneration compares versions to
// detect edits that raced with it.
type Chunk struct {
	coord ChunkCoord

	mu      sync.RWMutex
	bricks  [ChunkBricks][ChunkBricks][ChunkBricks]*Brick
	version uint64
}

func NewChunk(coord ChunkCoord) *Chunk {
	return &Chunk{coord: coord}
}

func (c *Chunk) Coord() ChunkCoord {
	return c.coord
}

func (c *Chunk) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

func (c *Chunk) Get(lx, ly, lz int) VoxelType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.get(lx, ly, lz)
}

// Set writes a voxel at a chunk-local position and reports whether it changed.
func (c *Chunk) Set(lx, ly, lz int, val VoxelType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.set(lx, ly, lz, val)
}

// Fill overwrites every voxel with fn's value under a single lock.
func (c *Chunk) Fill(fn func(lx, ly, lz int) VoxelType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for x := 0; x < ChunkSize; x++ {
		for y := 0; y < ChunkSize; y++ {
			for z := 0; z < ChunkSize; z++ {
				c.set(x, y, z, fn(x, y, z))
			}
		}
	}
}

// Count returns the number of non-air voxels.
func (c *Chunk) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, plane := range c.bricks {
		for _, row := range plane {
			for _, b := range row {
				if b != nil {
					n += b.Count()
				}
			}
		}
	}
	return n
}

func (c *Chunk) get(lx, ly, lz int) VoxelType {
	b := c.bricks[lx/BrickSize][ly/BrickSize][lz/BrickSize]
	if b == nil {
		return Air
	}
	return b.Get(lx%BrickSize, ly%BrickSize, lz%BrickSize)
}

func (c *Chunk) set(lx, ly, lz int, val VoxelType) bool {
	bx, by, bz := lx/BrickSize, ly/BrickSize, lz/BrickSize
	b := c.bricks[bx][by][bz]
	if b == nil {
		if val == Air {
			return false
		}
		b = NewBrick()
		c.bricks[bx][by][bz] = b
	}
	if !b.Set(lx%BrickSize, ly%BrickSize, lz%BrickSize, val) {
		return false
	}
	if b.IsEmpty() {
		c.bricks[bx][by][bz] = nil
	}
	c.version++
	return true
}
