package voxstream

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
)

type WindowState struct {
	windowGlfw     *glfw.Window
	WindowWidth    int
	WindowHeight   int
	windowTitle    string
	CloseRequested bool
}

// PlatformWindowModule creates the single glfw window as a WindowState
// resource. Install is a no-op when one already exists.
type PlatformWindowModule struct {
	Width  int
	Height int
	Title  string
}

func NewPlatformWindow(width, height int, title string) *PlatformWindowModule {
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}
	if title == "" {
		title = "voxstream"
	}
	return &PlatformWindowModule{
		Width:  width,
		Height: height,
		Title:  title,
	}
}

func (m PlatformWindowModule) Install(app *App, cmd *Commands) {
	if _, ok := Resource[WindowState](app); ok {
		return
	}

	ws, err := createWindowState(m.Width, m.Height, m.Title)
	if err != nil {
		panic(err)
	}
	app.addResources(ws)
	app.OnClose(func() {
		ws.windowGlfw.Destroy()
		glfw.Terminate()
	})
	app.UseSystem(System(windowCloseSystem).InStage(Finale).RunAlways())
}

func createWindowState(windowWidth int, windowHeight int, windowTitle string) (*WindowState, error) {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("failed to init glfw: %w", err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(windowWidth, windowHeight, windowTitle, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	return &WindowState{
		windowGlfw:   win,
		WindowWidth:  windowWidth,
		WindowHeight: windowHeight,
		windowTitle:  windowTitle,
	}, nil
}

func windowCloseSystem(s *WindowState, cmd *Commands) {
	if s.CloseRequested {
		cmd.Stop()
	}
}
