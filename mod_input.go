package tumble

import (
	"github.com/go-gl/glfw/v3.3/glfw"
)

const (
	KeyA int = iota
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
	KeyG
	KeyH
	KeyI
	KeyJ
	KeyK
	KeyL
	KeyM
	KeyN
	KeyO
	KeyP
	KeyQ
	KeyR
	KeyS
	KeyT
	KeyU
	KeyV
	KeyW
	KeyX
	KeyY
	KeyZ
	Key0
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeySpace
	KeyEnter
	KeyEscape
	KeyTab
	KeyRight
	KeyLeft
	KeyDown
	KeyUp
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyShift
	KeyControl
	MouseButtonLeft
	MouseButtonRight
	MouseButtonMiddle
	keyCount
)

// MouseMotion is one raw cursor movement delta, in pixels.
type MouseMotion struct {
	DeltaX float64
	DeltaY float64
}

type InputModule struct{}

// Input is the per-tick input snapshot. MouseMotions holds every
// cursor delta received since the previous tick; the queue is rebuilt
// (and therefore cleared) each tick, so consumers that care must read
// it the tick it is published.
type Input struct {
	Pressed      [keyCount]bool
	JustPressed  [keyCount]bool
	JustReleased [keyCount]bool

	MouseX, MouseY float64
	MouseMotions   []MouseMotion
	MouseCaptured  bool

	WindowWidth, WindowHeight int

	pendingMotions []MouseMotion
	haveCursorPos  bool
	lastX, lastY   float64
	callbackSet    bool
}

func (mod InputModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&Input{})
	app.UseSystem(
		System(inputSystem).
			InStage(Prelude),
	)
}

func inputSystem(s *WindowState, input *Input) {
	if !input.callbackSet {
		s.windowGlfw.SetCursorPosCallback(func(w *glfw.Window, x, y float64) {
			if input.haveCursorPos {
				input.pendingMotions = append(input.pendingMotions, MouseMotion{
					DeltaX: x - input.lastX,
					DeltaY: y - input.lastY,
				})
			}
			input.lastX, input.lastY = x, y
			input.haveCursorPos = true
			input.MouseX, input.MouseY = x, y
		})
		input.callbackSet = true
	}

	glfw.PollEvents()

	// Publish this tick's motion queue, start a fresh one
	input.MouseMotions = input.pendingMotions
	input.pendingMotions = nil

	// Update keyboard
	for key, glfwKey := range keyToGlfw {
		action := s.windowGlfw.GetKey(glfwKey)

		input.JustPressed[key] = false
		input.JustReleased[key] = false

		if glfw.Press == action {
			if !input.Pressed[key] {
				input.JustPressed[key] = true
			}
			input.Pressed[key] = true
		} else if glfw.Release == action {
			if input.Pressed[key] {
				input.JustReleased[key] = true
			}
			input.Pressed[key] = false
		}
	}

	// Update mouse buttons
	for btn := MouseButtonLeft; btn <= MouseButtonMiddle; btn++ {
		var glfwBtn glfw.MouseButton
		switch btn {
		case MouseButtonLeft:
			glfwBtn = glfw.MouseButtonLeft
		case MouseButtonRight:
			glfwBtn = glfw.MouseButtonRight
		case MouseButtonMiddle:
			glfwBtn = glfw.MouseButtonMiddle
		}

		action := s.windowGlfw.GetMouseButton(glfwBtn)
		input.JustPressed[btn] = false
		input.JustReleased[btn] = false

		if glfw.Press == action {
			if !input.Pressed[btn] {
				input.JustPressed[btn] = true
			}
			input.Pressed[btn] = true
		} else if glfw.Release == action {
			if input.Pressed[btn] {
				input.JustReleased[btn] = true
			}
			input.Pressed[btn] = false
		}
	}

	input.WindowWidth, input.WindowHeight = s.windowGlfw.GetSize()

	if input.MouseCaptured {
		s.windowGlfw.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
	} else {
		s.windowGlfw.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
	}
}

var keyToGlfw = map[int]glfw.Key{
	KeyA:       glfw.KeyA,
	KeyB:       glfw.KeyB,
	KeyC:       glfw.KeyC,
	KeyD:       glfw.KeyD,
	KeyE:       glfw.KeyE,
	KeyF:       glfw.KeyF,
	KeyG:       glfw.KeyG,
	KeyH:       glfw.KeyH,
	KeyI:       glfw.KeyI,
	KeyJ:       glfw.KeyJ,
	KeyK:       glfw.KeyK,
	KeyL:       glfw.KeyL,
	KeyM:       glfw.KeyM,
	KeyN:       glfw.KeyN,
	KeyO:       glfw.KeyO,
	KeyP:       glfw.KeyP,
	KeyQ:       glfw.KeyQ,
	KeyR:       glfw.KeyR,
	KeyS:       glfw.KeyS,
	KeyT:       glfw.KeyT,
	KeyU:       glfw.KeyU,
	KeyV:       glfw.KeyV,
	KeyW:       glfw.KeyW,
	KeyX:       glfw.KeyX,
	KeyY:       glfw.KeyY,
	KeyZ:       glfw.KeyZ,
	Key0:       glfw.Key0,
	Key1:       glfw.Key1,
	Key2:       glfw.Key2,
	Key3:       glfw.Key3,
	Key4:       glfw.Key4,
	Key5:       glfw.Key5,
	Key6:       glfw.Key6,
	Key7:       glfw.Key7,
	Key8:       glfw.Key8,
	Key9:       glfw.Key9,
	KeySpace:   glfw.KeySpace,
	KeyEnter:   glfw.KeyEnter,
	KeyEscape:  glfw.KeyEscape,
	KeyTab:     glfw.KeyTab,
	KeyRight:   glfw.KeyRight,
	KeyLeft:    glfw.KeyLeft,
	KeyDown:    glfw.KeyDown,
	KeyUp:      glfw.KeyUp,
	KeyF1:      glfw.KeyF1,
	KeyF2:      glfw.KeyF2,
	KeyF3:      glfw.KeyF3,
	KeyF4:      glfw.KeyF4,
	KeyShift:   glfw.KeyLeftShift,
	KeyControl: glfw.KeyLeftControl,
}

// quitSystem ends the process cleanly on the configured quit key.
func quitSystem(input *Input, bindings *KeyBindings, log *DefaultLogger, cmd *Commands) {
	if input.JustPressed[bindings.Quit] {
		log.Infof("quit key pressed, exiting")
		cmd.Quit()
	}
}

// cursorGrabSystem toggles cursor capture. While captured, mouse
// deltas drive the active camera; while free, they are drained and
// discarded.
func cursorGrabSystem(input *Input, bindings *KeyBindings) {
	if input.JustPressed[bindings.GrabCursor] {
		input.MouseCaptured = !input.MouseCaptured
	}
}

// GameControlModule wires the process-level bindings (quit, cursor
// grab). Separate from InputModule so headless tests can drive an
// Input resource by hand.
type GameControlModule struct{}

func (GameControlModule) Install(app *App, cmd *Commands) {
	app.UseSystem(System(quitSystem).InStage(PreUpdate))
	app.UseSystem(System(cursorGrabSystem).InStage(PreUpdate))
}
