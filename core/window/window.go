// Package window opens the glfw window and OpenGL context the demo renders into.
package window

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"

	"deferred-engine/core"
)

func init() {
	runtime.LockOSThread()
}

// Window is a glfw window owning one OpenGL 4.1 core context.
type Window struct {
	Handle *glfw.Window
	Width  int
	Height int
	Title  string
	Input  *core.Input

	resizeHandlers []func(width, height int)
}

func New(config core.WindowConfig) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize GLFW: %w", err)
	}

	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Resizable, boolToInt(config.Resizable))

	monitor := (*glfw.Monitor)(nil)
	if config.Fullscreen {
		monitor = glfw.GetPrimaryMonitor()
	}

	handle, err := glfw.CreateWindow(config.Width, config.Height, config.Title, monitor, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("failed to create window: %w", err)
	}
	handle.MakeContextCurrent()
	if config.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	window := &Window{
		Handle: handle,
		Title:  config.Title,
		Input:  core.NewInput(),
	}
	window.Width, window.Height = handle.GetFramebufferSize()

	handle.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		window.Width = width
		window.Height = height
		for _, h := range window.resizeHandlers {
			h(width, height)
		}
	})
	handle.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		switch action {
		case glfw.Press:
			window.Input.KeyDown(int(key))
		case glfw.Release:
			window.Input.KeyUp(int(key))
		}
	})
	handle.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		switch action {
		case glfw.Press:
			window.Input.KeyDown(MouseButtonBase + int(button))
		case glfw.Release:
			window.Input.KeyUp(MouseButtonBase + int(button))
		}
	})

	return window, nil
}

// MouseButtonBase offsets mouse buttons so they share the Input key space.
const MouseButtonBase = 1 << 12

// OnResize registers fn to run whenever the framebuffer size changes.
func (w *Window) OnResize(fn func(width, height int)) {
	w.resizeHandlers = append(w.resizeHandlers, fn)
}

func (w *Window) ShouldClose() bool {
	return w.Handle.ShouldClose()
}

func (w *Window) PollEvents() {
	glfw.PollEvents()
}

// SwapBuffers presents the back buffer. Blocks while vsync is on.
func (w *Window) SwapBuffers() {
	w.Handle.SwapBuffers()
}

func (w *Window) Size() core.Size {
	return core.Size{W: w.Width, H: w.Height}
}

func (w *Window) Destroy() {
	w.Handle.Destroy()
	glfw.Terminate()
}

func (w *Window) SetTitle(title string) {
	w.Handle.SetTitle(title)
	w.Title = title
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Key codes used by the demo; any glfw.Key value converted to int works.
const (
	KeyEscape = int(glfw.KeyEscape)
	KeySpace  = int(glfw.KeySpace)
	KeyF1     = int(glfw.KeyF1)
	Key1      = int(glfw.Key1)
	Key2      = int(glfw.Key2)
	Key3      = int(glfw.Key3)
	Key4      = int(glfw.Key4)
	KeyA      = int(glfw.KeyA)
	KeyD      = int(glfw.KeyD)
	KeyL      = int(glfw.KeyL)
	KeyS      = int(glfw.KeyS)
	KeyW      = int(glfw.KeyW)
)
