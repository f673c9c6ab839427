package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

const (
	DefaultFOV  = 70.0
	DefaultNear = 0.05
	DefaultFar  = 1000.0
)

// CameraState is a Y-up first person camera. Yaw and Pitch are in radians.
type CameraState struct {
	Position mgl32.Vec3
	Yaw      float32
	Pitch    float32
	FOV      float32 // degrees
	Near     float32
	Far      float32
}

func NewCameraState() *CameraState {
	return &CameraState{
		Position: mgl32.Vec3{0, 2, 0},
		FOV:      DefaultFOV,
		Near:     DefaultNear,
		Far:      DefaultFar,
	}
}

func (c *CameraState) Forward(table *SineTable) mgl32.Vec3 {
	cp := table.Cos(c.Pitch)
	return mgl32.Vec3{
		table.Sin(c.Yaw) * cp,
		table.Sin(c.Pitch),
		-table.Cos(c.Yaw) * cp,
	}
}

func (c *CameraState) ViewMatrix(table *SineTable) mgl32.Mat4 {
	eye := c.Position
	return mgl32.LookAtV(eye, eye.Add(c.Forward(table)), mgl32.Vec3{0, 1, 0})
}

func (c *CameraState) Projection(width, height int) mgl32.Mat4 {
	aspect := float32(1)
	if height > 0 {
		aspect = float32(width) / float32(height)
	}
	fov, near, far := c.FOV, c.Near, c.Far
	if fov <= 0 {
		fov = DefaultFOV
	}
	if near <= 0 {
		near = DefaultNear
	}
	if far <= near {
		far = DefaultFar
	}
	return mgl32.Perspective(mgl32.DegToRad(fov), aspect, near, far)
}

// ScreenRay unprojects a cursor position (pixels, origin top-left) into a
// normalized world-space direction starting at the camera position.
func (c *CameraState) ScreenRay(table *SineTable, x, y float64, width, height int) (mgl32.Vec3, mgl32.Vec3, error) {
	view := c.ViewMatrix(table)
	proj := c.Projection(width, height)
	winY := float32(height) - float32(y)

	near, err := mgl32.UnProject(mgl32.Vec3{float32(x), winY, 0}, view, proj, 0, 0, width, height)
	if err != nil {
		return mgl32.Vec3{}, mgl32.Vec3{}, err
	}
	far, err := mgl32.UnProject(mgl32.Vec3{float32(x), winY, 1}, view, proj, 0, 0, width, height)
	if err != nil {
		return mgl32.Vec3{}, mgl32.Vec3{}, err
	}
	return c.Position, far.Sub(near).Normalize(), nil
}
