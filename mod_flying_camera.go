package voxstream

import (
	"math"

	"github.com/gekko3d/voxstream/voxel/core"
	"github.com/go-gl/mathgl/mgl32"
)

const maxPitch = 89 * math.Pi / 180

type FlyingCameraModule struct{}

func (m FlyingCameraModule) Install(app *App, cmd *Commands) {
	ensureSineTable(app)
	ensureInputLock(app)
	app.UseSystem(
		System(FlyingCameraInputSystem).
			InStage(Update).
			RunAlways(),
	)
	app.UseSystem(
		System(FlyingCameraControlSystem).
			InStage(Update).
			RunAlways(),
	)
}

// FlyingCameraComponent moves a CameraComponent on the same entity. Speed
// is in voxels per second, Sensitivity in radians per pixel of mouse
// movement.
type FlyingCameraComponent struct {
	Speed       float32
	Sensitivity float32
	Move        mgl32.Vec3
	Look        mgl32.Vec2
}

func FlyingCameraInputSystem(input *Input, lock *InputLock, cmd *Commands) {
	if input.JustPressed[KeyTab] && !lock.Locked {
		input.MouseCaptured = !input.MouseCaptured
	}

	MakeQuery1[FlyingCameraComponent](cmd).Map(func(eid EntityId, fly *FlyingCameraComponent) bool {
		fly.Move = mgl32.Vec3{0, 0, 0}
		fly.Look = mgl32.Vec2{0, 0}
		if lock.Locked {
			return true
		}
		if input.Pressed[KeyW] {
			fly.Move[2] += 1
		}
		if input.Pressed[KeyS] {
			fly.Move[2] -= 1
		}
		if input.Pressed[KeyA] {
			fly.Move[0] -= 1
		}
		if input.Pressed[KeyD] {
			fly.Move[0] += 1
		}
		if input.Pressed[KeySpace] {
			fly.Move[1] += 1
		}
		if input.Pressed[KeyShift] {
			fly.Move[1] -= 1
		}

		if input.MouseCaptured {
			fly.Look[0] = float32(input.MouseDeltaX)
			fly.Look[1] = float32(input.MouseDeltaY)
		}
		return true
	})
}

func FlyingCameraControlSystem(cmd *Commands, time *Time, table *core.SineTable) {
	dt := float32(time.Dt.Seconds())
	if dt <= 0 {
		return
	}

	MakeQuery2[CameraComponent, FlyingCameraComponent](cmd).Map(func(eid EntityId, cam *CameraComponent, fly *FlyingCameraComponent) bool {
		if fly.Sensitivity == 0 {
			fly.Sensitivity = 0.0025
		}
		cam.Yaw += fly.Look[0] * fly.Sensitivity
		cam.Pitch -= fly.Look[1] * fly.Sensitivity
		cam.Pitch = mgl32.Clamp(cam.Pitch, -maxPitch, maxPitch)

		if fly.Speed == 0 {
			fly.Speed = 10.0
		}

		// Horizontal movement ignores pitch so W never digs into the ground.
		forward := mgl32.Vec3{table.Sin(cam.Yaw), 0, -table.Cos(cam.Yaw)}
		right := forward.Cross(mgl32.Vec3{0, 1, 0})
		up := mgl32.Vec3{0, 1, 0}

		moveDir := right.Mul(fly.Move[0]).
			Add(up.Mul(fly.Move[1])).
			Add(forward.Mul(fly.Move[2]))
		if moveDir.Len() > 0 {
			cam.Position = cam.Position.Add(moveDir.Normalize().Mul(fly.Speed * dt))
		}
		return true
	})
}
