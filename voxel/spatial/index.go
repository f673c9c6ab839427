// Package spatial provides a generic shape → element index with
// intersection queries. It backs chunk-bound broad-phase tests and
// chunk-visibility bookkeeping.
package spatial

import (
	"iter"
	"slices"
	"sync"
)

// Shape is a value that can be tested against another shape of the same
// type. Intersects must be total and symmetric.
type Shape[S any] interface {
	comparable
	Intersects(other S) bool
}

// Celled shapes report the inclusive range of hash-grid cells they cover.
// Shapes that do not implement it are always scanned.
type Celled interface {
	Cells(cellSize float32) (min, max [3]int, ok bool)
}

const (
	DefaultCellSize = 16

	// Shapes (and queries) covering more cells than this bypass the grid.
	maxCellsPerShape = 512
)

type pairKey[S, E comparable] struct {
	shape S
	elem  E
}

type entry[S, E any] struct {
	shape S
	elem  E
	seq   uint64

	gridded  bool
	min, max [3]int
}

// Index maps shapes to elements. Shapes and elements may repeat but each
// (shape, element) pair is stored at most once. All methods are safe for
// concurrent use; queries iterate over a snapshot taken when they are called.
type Index[S Shape[S], E comparable] struct {
	mu       sync.RWMutex
	cellSize float32
	seq      uint64

	pairs    map[pairKey[S, E]]*entry[S, E]
	byShape  map[S][]*entry[S, E]
	byElem   map[E][]*entry[S, E]
	cells    map[[3]int][]*entry[S, E]
	overflow []*entry[S, E]
}

func NewIndex[S Shape[S], E comparable](cellSize float32) *Index[S, E] {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	idx := &Index[S, E]{cellSize: cellSize}
	idx.reset()
	return idx
}

func (idx *Index[S, E]) reset() {
	idx.pairs = make(map[pairKey[S, E]]*entry[S, E])
	idx.byShape = make(map[S][]*entry[S, E])
	idx.byElem = make(map[E][]*entry[S, E])
	idx.cells = make(map[[3]int][]*entry[S, E])
	idx.overflow = nil
}

// Add stores the pair. It returns false if the exact pair is already present.
func (idx *Index[S, E]) Add(shape S, elem E) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	key := pairKey[S, E]{shape: shape, elem: elem}
	if _, ok := idx.pairs[key]; ok {
		return false
	}

	idx.seq++
	en := &entry[S, E]{shape: shape, elem: elem, seq: idx.seq}
	idx.pairs[key] = en
	idx.byShape[shape] = append(idx.byShape[shape], en)
	idx.byElem[elem] = append(idx.byElem[elem], en)

	if lo, hi, ok := idx.cellRange(shape); ok {
		en.gridded, en.min, en.max = true, lo, hi
		forEachCell(lo, hi, func(c [3]int) {
			idx.cells[c] = append(idx.cells[c], en)
		})
	} else {
		idx.overflow = append(idx.overflow, en)
	}
	return true
}

func (idx *Index[S, E]) Remove(shape S, elem E) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	en, ok := idx.pairs[pairKey[S, E]{shape: shape, elem: elem}]
	if !ok {
		return false
	}
	idx.removeEntry(en)
	return true
}

// RemoveByShape removes the earliest inserted pair holding shape.
func (idx *Index[S, E]) RemoveByShape(shape S) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	list := idx.byShape[shape]
	if len(list) == 0 {
		return false
	}
	idx.removeEntry(list[0])
	return true
}

// RemoveByElement removes the earliest inserted pair holding elem.
func (idx *Index[S, E]) RemoveByElement(elem E) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	list := idx.byElem[elem]
	if len(list) == 0 {
		return false
	}
	idx.removeEntry(list[0])
	return true
}

func (idx *Index[S, E]) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.pairs)
}

func (idx *Index[S, E]) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.reset()
}

// Contains reports whether the exact pair is stored.
func (idx *Index[S, E]) Contains(shape S, elem E) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.pairs[pairKey[S, E]{shape: shape, elem: elem}]
	return ok
}

// Query yields every distinct stored shape intersecting shape, in insertion
// order.
func (idx *Index[S, E]) Query(shape S) iter.Seq[S] {
	candidates := idx.candidates(shape)
	return func(yield func(S) bool) {
		seen := make(map[S]struct{}, len(candidates))
		for _, en := range candidates {
			if _, ok := seen[en.shape]; ok {
				continue
			}
			seen[en.shape] = struct{}{}
			if !en.shape.Intersects(shape) {
				continue
			}
			if !yield(en.shape) {
				return
			}
		}
	}
}

// QueryPairs yields every stored pair whose shape intersects shape.
func (idx *Index[S, E]) QueryPairs(shape S) iter.Seq2[S, E] {
	candidates := idx.candidates(shape)
	return func(yield func(S, E) bool) {
		for _, en := range candidates {
			if !en.shape.Intersects(shape) {
				continue
			}
			if !yield(en.shape, en.elem) {
				return
			}
		}
	}
}

// All yields every pair in insertion order.
func (idx *Index[S, E]) All() iter.Seq2[S, E] {
	entries := idx.snapshot()
	return func(yield func(S, E) bool) {
		for _, en := range entries {
			if !yield(en.shape, en.elem) {
				return
			}
		}
	}
}

// Elements yields each distinct element once, ordered by its first pair.
func (idx *Index[S, E]) Elements() iter.Seq[E] {
	entries := idx.snapshot()
	return func(yield func(E) bool) {
		seen := make(map[E]struct{}, len(entries))
		for _, en := range entries {
			if _, ok := seen[en.elem]; ok {
				continue
			}
			seen[en.elem] = struct{}{}
			if !yield(en.elem) {
				return
			}
		}
	}
}

func (idx *Index[S, E]) snapshot() []*entry[S, E] {
	idx.mu.RLock()
	res := make([]*entry[S, E], 0, len(idx.pairs))
	for _, en := range idx.pairs {
		res = append(res, en)
	}
	idx.mu.RUnlock()

	sortBySeq(res)
	return res
}

func (idx *Index[S, E]) candidates(shape S) []*entry[S, E] {
	lo, hi, ok := idx.cellRange(shape)
	if !ok {
		return idx.snapshot()
	}

	idx.mu.RLock()
	unique := make(map[*entry[S, E]]struct{})
	var res []*entry[S, E]
	forEachCell(lo, hi, func(c [3]int) {
		for _, en := range idx.cells[c] {
			if _, dup := unique[en]; !dup {
				unique[en] = struct{}{}
				res = append(res, en)
			}
		}
	})
	res = append(res, idx.overflow...)
	idx.mu.RUnlock()

	sortBySeq(res)
	return res
}

func (idx *Index[S, E]) removeEntry(en *entry[S, E]) {
	delete(idx.pairs, pairKey[S, E]{shape: en.shape, elem: en.elem})

	if list := removeFrom(idx.byShape[en.shape], en); len(list) > 0 {
		idx.byShape[en.shape] = list
	} else {
		delete(idx.byShape, en.shape)
	}
	if list := removeFrom(idx.byElem[en.elem], en); len(list) > 0 {
		idx.byElem[en.elem] = list
	} else {
		delete(idx.byElem, en.elem)
	}

	if !en.gridded {
		idx.overflow = removeFrom(idx.overflow, en)
		return
	}
	forEachCell(en.min, en.max, func(c [3]int) {
		if list := removeFrom(idx.cells[c], en); len(list) > 0 {
			idx.cells[c] = list
		} else {
			delete(idx.cells, c)
		}
	})
}

func (idx *Index[S, E]) cellRange(shape S) ([3]int, [3]int, bool) {
	c, ok := any(shape).(Celled)
	if !ok {
		return [3]int{}, [3]int{}, false
	}
	lo, hi, ok := c.Cells(idx.cellSize)
	if !ok {
		return lo, hi, false
	}
	count := 1
	for i := 0; i < 3; i++ {
		span := hi[i] - lo[i] + 1
		if span <= 0 || span > maxCellsPerShape {
			return lo, hi, false
		}
		count *= span
		if count > maxCellsPerShape {
			return lo, hi, false
		}
	}
	return lo, hi, true
}

func forEachCell(lo, hi [3]int, fn func([3]int)) {
	for x := lo[0]; x <= hi[0]; x++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for z := lo[2]; z <= hi[2]; z++ {
				fn([3]int{x, y, z})
			}
		}
	}
}

func removeFrom[T comparable](list []T, v T) []T {
	if i := slices.Index(list, v); i >= 0 {
		return slices.Delete(list, i, i+1)
	}
	return list
}

func sortBySeq[S, E any](entries []*entry[S, E]) {
	slices.SortFunc(entries, func(a, b *entry[S, E]) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
}
