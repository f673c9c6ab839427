package interact

import (
	"errors"
	"fmt"

	"github.com/gekko3d/voxstream/voxel/raycast"
	"github.com/gekko3d/voxstream/voxel/volume"
)

// DefaultTicksPerInteraction is the hold-repeat period. At a 60 Hz fixed step
// a held button edits four times a second.
const DefaultTicksPerInteraction = 15

type InteractionState int

const (
	None InteractionState = iota
	Primary
	Secondary
)

func (s InteractionState) String() string {
	switch s {
	case None:
		return "none"
	case Primary:
		return "primary"
	case Secondary:
		return "secondary"
	}
	return fmt.Sprintf("InteractionState(%d)", int(s))
}

// PlayerState is what the controller needs from the player each tick.
// Hit is refreshed by the raycast system and may be nil.
type PlayerState struct {
	Hit         *raycast.Hit
	VoxelInHand volume.VoxelType
}

// Lockable reports whether input is currently captured elsewhere, such as
// by an open menu.
type Lockable interface {
	IsLocked() bool
}

type Unlocked struct{}

func (Unlocked) IsLocked() bool { return false }

// World is the voxel access the controller edits through.
type World interface {
	GetVoxelAtPosition(pos volume.BlockPos) (volume.VoxelType, error)
	SetVoxelAtPosition(val volume.VoxelType, pos volume.BlockPos) error
}

// Edit describes one applied interaction.
type Edit struct {
	Kind InteractionState
	Pos  volume.BlockPos
	Old  volume.VoxelType
	New  volume.VoxelType
}

// Controller turns held buttons into rate-limited voxel edits.
type Controller struct {
	TicksPerInteraction int

	world World
	lock  Lockable

	state InteractionState
	delay int
}

func NewController(world World, lock Lockable) *Controller {
	if lock == nil {
		lock = Unlocked{}
	}
	return &Controller{
		TicksPerInteraction: DefaultTicksPerInteraction,
		world:               world,
		lock:                lock,
	}
}

func (c *Controller) State() InteractionState {
	return c.state
}

func (c *Controller) Press(button InteractionState) {
	if c.lock.IsLocked() || button == None {
		return
	}
	if c.state == None {
		c.delay = c.TicksPerInteraction
	}
	c.state = button
}

func (c *Controller) Release(button InteractionState) {
	if c.lock.IsLocked() {
		return
	}
	if c.state == button {
		c.state = None
	}
}

// Tick advances the controller by one fixed step and applies at most one
// edit. While locked nothing happens, and a button held across the lock
// resumes once it lifts.
func (c *Controller) Tick(player *PlayerState) (Edit, bool, error) {
	if c.lock.IsLocked() {
		return Edit{}, false, nil
	}
	if c.delay > 0 {
		c.delay--
	}
	if c.delay > 0 || c.state == None || player == nil || player.Hit == nil {
		return Edit{}, false, nil
	}

	var (
		edit Edit
		ok   bool
		err  error
	)
	switch c.state {
	case Primary:
		edit, ok, err = c.breakVoxel(player.Hit.Block)
	case Secondary:
		edit, ok, err = c.placeVoxel(player.Hit.Adjacent(), player.VoxelInHand)
	}
	if errors.Is(err, volume.ErrNoSuchChunk) {
		return Edit{}, false, nil
	}
	if err != nil {
		return Edit{}, false, err
	}
	if ok {
		c.delay = c.TicksPerInteraction
	}
	return edit, ok, nil
}

// breakVoxel clears pos even when it already holds air; Old tells the two
// cases apart.
func (c *Controller) breakVoxel(pos volume.BlockPos) (Edit, bool, error) {
	old, err := c.world.GetVoxelAtPosition(pos)
	if err != nil {
		return Edit{}, false, err
	}
	if err := c.world.SetVoxelAtPosition(volume.Air, pos); err != nil {
		return Edit{}, false, err
	}
	return Edit{Kind: Primary, Pos: pos, Old: old, New: volume.Air}, true, nil
}

func (c *Controller) placeVoxel(pos volume.BlockPos, v volume.VoxelType) (Edit, bool, error) {
	if v == volume.Air {
		return Edit{}, false, nil
	}
	old, err := c.world.GetVoxelAtPosition(pos)
	if err != nil || old != volume.Air {
		return Edit{}, false, err
	}
	if err := c.world.SetVoxelAtPosition(v, pos); err != nil {
		return Edit{}, false, err
	}
	return Edit{Kind: Secondary, Pos: pos, Old: old, New: v}, true, nil
}
