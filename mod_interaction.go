package voxstream

import (
	"github.com/gekko3d/voxstream/voxel/core"
	"github.com/gekko3d/voxstream/voxel/interact"
	"github.com/gekko3d/voxstream/voxel/raycast"
	"github.com/gekko3d/voxstream/voxel/volume"
)

type CameraComponent struct {
	core.CameraState
}

func NewCameraComponent() CameraComponent {
	return CameraComponent{CameraState: *core.NewCameraState()}
}

// PlayerComponent carries a player's interaction state. Controller is
// created on the first frame the entity is seen.
type PlayerComponent struct {
	State      interact.PlayerState
	Controller *interact.Controller
	Reach      float32
}

func NewPlayerComponent(inHand volume.VoxelType) PlayerComponent {
	return PlayerComponent{State: interact.PlayerState{VoxelInHand: inHand}}
}

// InputLock is set while something other than the world owns input, such
// as a menu. Every player controller reads it.
type InputLock struct {
	Locked bool
}

func (l *InputLock) IsLocked() bool {
	return l.Locked
}

// Interaction holds the interaction settings and the edits applied during
// the current frame.
type Interaction struct {
	TicksPerInteraction int
	Reach               float32

	Edits   []interact.Edit
	Applied uint64
}

type InteractionModule struct {
	TicksPerInteraction int
	Reach               float32
}

// Install requires ChunkStreamingModule for the store and registry.
func (m InteractionModule) Install(app *App, cmd *Commands) {
	store, ok := Resource[volume.Store](app)
	if !ok {
		panic("InteractionModule requires ChunkStreamingModule")
	}
	reg, _ := Resource[volume.Registry](app)

	ticks := m.TicksPerInteraction
	if ticks <= 0 {
		ticks = interact.DefaultTicksPerInteraction
	}
	reach := m.Reach
	if reach <= 0 {
		reach = raycast.DefaultReach
	}

	ensureSineTable(app)
	ensureInputLock(app)
	cmd.AddResources(
		raycast.New(store, reg),
		&Interaction{TicksPerInteraction: ticks, Reach: reach},
	)

	app.UseSystem(
		System(InteractionInputSystem).
			InStage(PreUpdate).
			RunAlways(),
	)
	app.UseSystem(
		System(InteractionTickSystem).
			InStage(FixedTick).
			RunAlways(),
	)
	app.UseSystem(
		System(PlayerRaycastSystem).
			InStage(PostUpdate).
			RunAlways(),
	)
}

func ensureSineTable(app *App) *core.SineTable {
	if table, ok := Resource[core.SineTable](app); ok {
		return table
	}
	table := core.NewSineTable()
	app.addResources(table)
	return table
}

func ensureInputLock(app *App) *InputLock {
	if lock, ok := Resource[InputLock](app); ok {
		return lock
	}
	lock := &InputLock{}
	app.addResources(lock)
	return lock
}

var handKeys = [...]int{Key1, Key2, Key3, Key4, Key5}

// InteractionInputSystem creates missing controllers and turns this
// frame's button edges into controller presses and releases. Escape
// toggles the input lock.
func InteractionInputSystem(cmd *Commands, input *Input, lock *InputLock, settings *Interaction, store *volume.Store) {
	settings.Edits = settings.Edits[:0]

	if input.JustPressed[KeyEscape] {
		lock.Locked = !lock.Locked
		if lock.Locked {
			input.MouseCaptured = false
		}
		cmd.Logger().Debugf("input lock: %v", lock.Locked)
	}

	MakeQuery1[PlayerComponent](cmd).Map(func(eid EntityId, player *PlayerComponent) bool {
		if player.Controller == nil {
			player.Controller = interact.NewController(store, lock)
			player.Controller.TicksPerInteraction = settings.TicksPerInteraction
		}
		if player.Reach <= 0 {
			player.Reach = settings.Reach
		}

		c := player.Controller
		if input.JustPressed[MouseButtonLeft] {
			c.Press(interact.Primary)
		}
		if input.JustPressed[MouseButtonRight] {
			c.Press(interact.Secondary)
		}
		if input.JustReleased[MouseButtonLeft] {
			c.Release(interact.Primary)
		}
		if input.JustReleased[MouseButtonRight] {
			c.Release(interact.Secondary)
		}

		if !lock.Locked {
			for i, key := range handKeys {
				if input.JustPressed[key] {
					player.State.VoxelInHand = volume.VoxelType(i + 1)
				}
			}
		}
		return true
	})
}

// InteractionTickSystem advances every controller by one fixed tick.
func InteractionTickSystem(cmd *Commands, settings *Interaction) {
	MakeQuery1[PlayerComponent](cmd).Map(func(eid EntityId, player *PlayerComponent) bool {
		if player.Controller == nil {
			return true
		}
		edit, ok, err := player.Controller.Tick(&player.State)
		if err != nil {
			cmd.Logger().Warnf("player %d: %v", eid, err)
			return true
		}
		if ok {
			settings.Edits = append(settings.Edits, edit)
			settings.Applied++
			cmd.Logger().Debugf("player %d %v at %v: %d -> %d", eid, edit.Kind, edit.Pos, edit.Old, edit.New)
		}
		return true
	})
}

// PlayerRaycastSystem refreshes each player's targeted voxel from its
// camera.
func PlayerRaycastSystem(cmd *Commands, caster *raycast.Raycaster, table *core.SineTable) {
	MakeQuery2[CameraComponent, PlayerComponent](cmd).Map(func(eid EntityId, cam *CameraComponent, player *PlayerComponent) bool {
		reach := player.Reach
		if reach <= 0 {
			reach = raycast.DefaultReach
		}
		hit, ok := caster.Cast(raycast.FromCamera(&cam.CameraState, table), reach)
		if ok {
			player.State.Hit = &hit
		} else {
			player.State.Hit = nil
		}
		return true
	})
}
