package voxstream

import (
	"github.com/go-gl/glfw/v3.3/glfw"
)

const (
	KeyW int = iota
	KeyA
	KeyS
	KeyD
	KeyQ
	KeyE
	Key1
	Key2
	Key3
	Key4
	Key5
	KeySpace
	KeyShift
	KeyControl
	KeyEscape
	KeyTab
	MouseButtonLeft
	MouseButtonRight
	MouseButtonMiddle

	keyCount
)

// Input is the per-frame key and mouse state. Systems read Pressed for
// held keys and JustPressed/JustReleased for edges within this frame.
type Input struct {
	Pressed      [keyCount]bool
	JustPressed  [keyCount]bool
	JustReleased [keyCount]bool

	MouseX, MouseY           float64
	MouseDeltaX, MouseDeltaY float64
	MouseCaptured            bool

	WindowWidth, WindowHeight int

	held [keyCount]bool
}

// Hold marks key as down from the next input poll on. Used when no window
// provides input.
func (in *Input) Hold(key int) {
	in.held[key] = true
}

// Let releases a key previously held with Hold.
func (in *Input) Let(key int) {
	in.held[key] = false
}

// MoveMouse adds a mouse delta for the next poll.
func (in *Input) MoveMouse(dx, dy float64) {
	in.MouseX += dx
	in.MouseY += dy
	in.MouseDeltaX += dx
	in.MouseDeltaY += dy
}

func (in *Input) latch(key int, down bool) {
	in.JustPressed[key] = down && !in.Pressed[key]
	in.JustReleased[key] = !down && in.Pressed[key]
	in.Pressed[key] = down
}

// InputModule polls the glfw window when a WindowState resource exists,
// otherwise latches the keys set through Hold and Let. Install it after
// the window module.
type InputModule struct {
	Width, Height int
}

func (mod InputModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&Input{WindowWidth: mod.Width, WindowHeight: mod.Height})
	if _, ok := Resource[WindowState](app); ok {
		app.UseSystem(
			System(inputSystem).
				InStage(PreUpdate).
				RunAlways(),
		)
		return
	}
	app.UseSystem(
		System(scriptedInputSystem).
			InStage(PreUpdate).
			RunAlways(),
	)
	app.UseSystem(
		System(mouseResetSystem).
			InStage(Finale).
			RunAlways(),
	)
}

func scriptedInputSystem(input *Input) {
	for key := 0; key < keyCount; key++ {
		input.latch(key, input.held[key])
	}
}

func mouseResetSystem(input *Input) {
	input.MouseDeltaX = 0
	input.MouseDeltaY = 0
}

func inputSystem(s *WindowState, input *Input) {
	glfw.PollEvents()
	if s.windowGlfw.ShouldClose() {
		s.CloseRequested = true
	}

	for key, glfwKey := range keyToGlfw {
		input.latch(key, glfw.Press == s.windowGlfw.GetKey(glfwKey))
	}
	for btn, glfwBtn := range buttonToGlfw {
		input.latch(btn, glfw.Press == s.windowGlfw.GetMouseButton(glfwBtn))
	}

	mx, my := s.windowGlfw.GetCursorPos()
	if input.MouseCaptured {
		input.MouseDeltaX = mx - input.MouseX
		input.MouseDeltaY = my - input.MouseY
	} else {
		input.MouseDeltaX = 0
		input.MouseDeltaY = 0
	}
	input.MouseX = mx
	input.MouseY = my

	input.WindowWidth, input.WindowHeight = s.windowGlfw.GetSize()
	s.WindowWidth, s.WindowHeight = input.WindowWidth, input.WindowHeight

	if input.MouseCaptured {
		s.windowGlfw.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
	} else {
		s.windowGlfw.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
	}
}

var keyToGlfw = map[int]glfw.Key{
	KeyW:       glfw.KeyW,
	KeyA:       glfw.KeyA,
	KeyS:       glfw.KeyS,
	KeyD:       glfw.KeyD,
	KeyQ:       glfw.KeyQ,
	KeyE:       glfw.KeyE,
	Key1:       glfw.Key1,
	Key2:       glfw.Key2,
	Key3:       glfw.Key3,
	Key4:       glfw.Key4,
	Key5:       glfw.Key5,
	KeySpace:   glfw.KeySpace,
	KeyShift:   glfw.KeyLeftShift,
	KeyControl: glfw.KeyLeftControl,
	KeyEscape:  glfw.KeyEscape,
	KeyTab:     glfw.KeyTab,
}

var buttonToGlfw = map[int]glfw.MouseButton{
	MouseButtonLeft:   glfw.MouseButtonLeft,
	MouseButtonRight:  glfw.MouseButtonRight,
	MouseButtonMiddle: glfw.MouseButtonMiddle,
}
