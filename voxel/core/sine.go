package core

import "math"

const (
	sineTableSize = 65536
	sineTableMask = sineTableSize - 1
	radToIndex    = float32(sineTableSize / (2 * math.Pi))
)

// SineTable is a precomputed sine lookup over one full turn. It is immutable
// after construction; build it once at startup and hand it to whatever needs
// it so every consumer gets bit-identical results.
type SineTable struct {
	values [sineTableSize]float32
}

func NewSineTable() *SineTable {
	t := &SineTable{}
	for i := range t.values {
		t.values[i] = float32(math.Sin(float64(i) * math.Pi * 2 / sineTableSize))
	}
	return t
}

func (t *SineTable) Sin(rad float32) float32 {
	return t.values[int(rad*radToIndex)&sineTableMask]
}

func (t *SineTable) Cos(rad float32) float32 {
	return t.values[int(rad*radToIndex+sineTableSize/4)&sineTableMask]
}
