// Package gpu defines the backend-neutral device the render pipeline drives.
//
// The interface mirrors the subset of OpenGL state the pipeline needs: textures,
// framebuffers with multiple color attachments, programs with named uniforms,
// depth/face state, indexed and full-screen draws, and framebuffer blits.
// Handles are plain integers so the OpenGL backend can pass them through
// unchanged; zero is never a valid texture, program or mesh, and framebuffer
// zero is the window's display framebuffer.
package gpu

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

type (
	Texture     uint32
	Framebuffer uint32
	Program     uint32
	Mesh        uint32
	// Location is a resolved uniform location; -1 means "not present".
	Location int32
)

// DisplayFramebuffer is the window's default framebuffer.
const DisplayFramebuffer Framebuffer = 0

// NoLocation is returned for uniforms the program does not declare.
const NoLocation Location = -1

type TextureFormat int

const (
	FormatRGBA8 TextureFormat = iota
	FormatRGBA16F
	FormatRGBA32F
	FormatDepth32F
)

// TextureDesc describes a 2D texture. Pixels, when non-nil, holds RGBA8 rows
// bottom-to-top and is only valid with FormatRGBA8.
type TextureDesc struct {
	Width, Height int
	Format        TextureFormat
	Pixels        []byte
	Linear        bool
}

type DepthFunc int

const (
	DepthLess DepthFunc = iota
	DepthLessEqual
	DepthGreater
	DepthGreaterEqual
	DepthAlways
)

type ClearMask uint8

const (
	ClearColorBit ClearMask = 1 << iota
	ClearDepthBit
)

type Winding int

const (
	CounterClockwise Winding = iota
	Clockwise
)

// ShaderSource is the text of one program. Geometry is optional.
type ShaderSource struct {
	Vertex   string
	Fragment string
	Geometry string
}

// Vertex is the fixed vertex layout uploaded by CreateMesh:
// location 0 position, 1 normal, 2 uv.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
}

var (
	ErrIncompleteFramebuffer = errors.New("framebuffer incomplete")
	ErrCompile               = errors.New("shader compile failed")
	ErrLink                  = errors.New("program link failed")
	ErrCreateProgram         = errors.New("program object creation failed")
	ErrInvalidHandle         = errors.New("invalid handle")
)

// Device is a single rendering context. It is not safe for concurrent use;
// all calls must come from the goroutine that owns the context.
type Device interface {
	CreateTexture(desc TextureDesc) (Texture, error)
	// ResizeTexture reallocates storage in place; the handle stays valid.
	ResizeTexture(tex Texture, width, height int) error
	TextureSize(tex Texture) (width, height int)
	DeleteTexture(tex Texture)

	CreateFramebuffer() Framebuffer
	AttachColor(fb Framebuffer, index int, tex Texture)
	AttachDepth(fb Framebuffer, tex Texture)
	// CheckFramebuffer wraps ErrIncompleteFramebuffer when fb cannot be drawn to.
	CheckFramebuffer(fb Framebuffer) error
	DeleteFramebuffer(fb Framebuffer)
	BindFramebuffer(fb Framebuffer)
	// DrawBuffers selects which color attachments of the bound framebuffer
	// receive clears and fragment outputs; output i goes to attachments[i].
	DrawBuffers(attachments ...int)
	Viewport(width, height int)

	ClearColor(c mgl32.Vec4)
	ClearDepth(d float32)
	// Clear fills the selected draw buffers and/or the depth attachment of
	// the bound framebuffer with the current clear values.
	Clear(mask ClearMask)

	SetDepthTest(enabled bool)
	SetDepthFunc(fn DepthFunc)
	SetDepthMask(write bool)
	SetCullFace(enabled bool)
	SetFrontFace(w Winding)

	CompileProgram(src ShaderSource) (Program, error)
	DeleteProgram(p Program)
	UseProgram(p Program)
	UniformLocation(p Program, name string) Location

	Uniform1i(loc Location, v int32)
	Uniform1f(loc Location, v float32)
	Uniform2f(loc Location, v mgl32.Vec2)
	Uniform3f(loc Location, v mgl32.Vec3)
	Uniform4f(loc Location, v mgl32.Vec4)
	UniformMatrix4(loc Location, m mgl32.Mat4)
	// Array uploads write consecutive elements starting at loc. Elements past
	// the declared array length are dropped by the backend.
	Uniform1fv(loc Location, v []float32)
	Uniform3fv(loc Location, v []mgl32.Vec3)
	BindTexture(unit int, tex Texture)

	CreateMesh(vertices []Vertex, indices []uint32) (Mesh, error)
	DeleteMesh(m Mesh)
	DrawIndexed(m Mesh)
	// DrawFullscreen draws one triangle covering the viewport.
	DrawFullscreen()

	// Blit copies color attachment srcAttachment of src into the first draw
	// buffer of dst with nearest filtering, scaling if sizes differ.
	Blit(src Framebuffer, srcAttachment int, srcW, srcH int, dst Framebuffer, dstW, dstH int)
}
