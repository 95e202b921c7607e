package tumble

import (
	"reflect"

	"github.com/go-gl/glfw/v3.3/glfw"
)

// WindowState owns the single GLFW window shared by input, cameras and
// the renderer.
type WindowState struct {
	windowGlfw   *glfw.Window
	windowWidth  int
	windowHeight int
}

func createWindowState(windowWidth int, windowHeight int, windowTitle string) *WindowState {
	if err := glfw.Init(); err != nil {
		panic(err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(windowWidth, windowHeight, windowTitle, nil, nil)
	if err != nil {
		panic(err)
	}

	return &WindowState{
		windowGlfw:   win,
		windowWidth:  windowWidth,
		windowHeight: windowHeight,
	}
}

// PlatformWindowModule ensures a single shared GLFW window (WindowState)
// is created and made available as a resource.
// Install is idempotent: if a WindowState resource already exists, it is reused.
type PlatformWindowModule struct {
	Width  int
	Height int
	Title  string
}

// NewPlatformWindow creates a module that provides a shared WindowState
// resource. If Width/Height are zero, sensible defaults are used.
func NewPlatformWindow(width, height int, title string) *PlatformWindowModule {
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}
	if title == "" {
		title = "Tumble"
	}
	return &PlatformWindowModule{
		Width:  width,
		Height: height,
		Title:  title,
	}
}

func (m PlatformWindowModule) Install(app *App, cmd *Commands) {
	t := reflect.TypeOf((*WindowState)(nil)).Elem()
	if _, ok := app.resources[t]; ok {
		// Already created by another module; no-op to preserve the
		// single-window invariant.
		return
	}

	ws := createWindowState(m.Width, m.Height, m.Title)
	app.addResources(ws)
	app.UseSystem(System(windowCloseSystem).InStage(Finale))
}

// windowCloseSystem turns the window manager's close request into a
// clean app quit.
func windowCloseSystem(s *WindowState, cmd *Commands) {
	if s.windowGlfw.ShouldClose() {
		cmd.Quit()
	}
}
