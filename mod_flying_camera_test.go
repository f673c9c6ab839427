package voxstream

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCameraApp(t *testing.T) (*App, *Input) {
	t.Helper()
	app := NewAppBuilder().UseModule(
		TimeModule{Manual: true, TickRate: 60},
		InputModule{},
		FlyingCameraModule{},
	).Build()
	app.Commands().AddEntity(NewCameraComponent(), FlyingCameraComponent{Speed: 6})
	app.FlushCommands()
	return app, mustResource[Input](t, app)
}

func camera(app *App) CameraComponent {
	var c CameraComponent
	MakeQuery1[CameraComponent](app.Commands()).Map(func(eid EntityId, cam *CameraComponent) bool {
		c = *cam
		return false
	})
	return c
}

func TestFlyingCamera_MovesAlongYaw(t *testing.T) {
	app, input := newCameraApp(t)
	start := camera(app).Position

	input.Hold(KeyW)
	for i := 0; i < 60; i++ {
		app.Step()
	}

	moved := camera(app).Position.Sub(start)
	assert.InDelta(t, 0, moved.X(), 1e-3)
	assert.InDelta(t, 0, moved.Y(), 1e-3)
	assert.InDelta(t, -6, moved.Z(), 1e-2)
}

func TestFlyingCamera_LookNeedsCapture(t *testing.T) {
	app, input := newCameraApp(t)

	input.MoveMouse(100, 0)
	app.Step()
	assert.Zero(t, camera(app).Yaw)

	input.MouseCaptured = true
	input.MoveMouse(100, 0)
	app.Step()
	assert.InDelta(t, 0.25, camera(app).Yaw, 1e-5)
}

func TestFlyingCamera_PitchIsClamped(t *testing.T) {
	app, input := newCameraApp(t)
	input.MouseCaptured = true

	input.MoveMouse(0, -10000)
	app.Step()
	assert.InDelta(t, maxPitch, camera(app).Pitch, 1e-6)
}

func TestFlyingCamera_LockedIgnoresInput(t *testing.T) {
	app, input := newCameraApp(t)
	lock := mustResource[InputLock](t, app)
	lock.Locked = true
	start := camera(app).Position

	input.Hold(KeyW)
	for i := 0; i < 10; i++ {
		app.Step()
	}
	require.Equal(t, start, camera(app).Position)
	assert.Equal(t, mgl32.Vec2{}, mgl32.Vec2{camera(app).Yaw, camera(app).Pitch})
}
