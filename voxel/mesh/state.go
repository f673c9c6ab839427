package mesh

import (
	"errors"
	"fmt"
)

// State is the lifecycle position of a ChunkMesh slot.
type State int

const (
	Unassigned State = iota
	Reassigned
	Loaded
	Unloaded
)

func (s State) String() string {
	switch s {
	case Unassigned:
		return "UNASSIGNED"
	case Reassigned:
		return "REASSIGNED"
	case Loaded:
		return "LOADED"
	case Unloaded:
		return "UNLOADED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	// ErrInvalidTransition marks a lifecycle call the current state does not
	// allow. It is a caller bug, not a runtime condition.
	ErrInvalidTransition = errors.New("mesh: invalid state transition")

	// ErrMalformedChunk is returned by meshers for voxel data they cannot mesh.
	ErrMalformedChunk = errors.New("mesh: malformed chunk data")

	// ErrBufferFull means geometry exceeded the preallocated vertex capacity.
	ErrBufferFull = errors.New("mesh: vertex buffer full")
)

func invalidTransition(id int, from, to State) error {
	return fmt.Errorf("%w: slot %d %v -> %v", ErrInvalidTransition, id, from, to)
}
