package opengl

import (
	"fmt"
	"strings"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"deferred-engine/core"
	"deferred-engine/internal/gpu"
)

type texture struct {
	width, height int
	format        gpu.TextureFormat
}

// Device drives an OpenGL 4.1 core context through go-gl.
// The context must be current on the calling goroutine.
type Device struct {
	textures map[gpu.Texture]*texture
	meshes   map[gpu.Mesh]*GPUMesh
	quadVAO  uint32 // empty VAO for the fullscreen triangle
	drawFB   gpu.Framebuffer
}

// GPUMesh holds the OpenGL buffer objects for an uploaded mesh.
type GPUMesh struct {
	VAO        uint32
	VBO        uint32
	EBO        uint32
	IndexCount int32
}

// NewDevice initialises OpenGL. Must be called after the GLFW window context
// is made current.
func NewDevice() (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	core.LogInfo("OpenGL version: %s", gl.GoStr(gl.GetString(gl.VERSION)))

	d := &Device{
		textures: make(map[gpu.Texture]*texture),
		meshes:   make(map[gpu.Mesh]*GPUMesh),
	}
	gl.GenVertexArrays(1, &d.quadVAO)
	gl.Enable(gl.DEPTH_TEST)
	return d, nil
}

// Destroy frees objects owned by the device itself.
func (d *Device) Destroy() {
	for m := range d.meshes {
		d.DeleteMesh(m)
	}
	if d.quadVAO != 0 {
		gl.DeleteVertexArrays(1, &d.quadVAO)
		d.quadVAO = 0
	}
}

// ── Textures ──────────────────────────────────────────────────────────────────

func formatOf(f gpu.TextureFormat) (internal int32, format, xtype uint32) {
	switch f {
	case gpu.FormatRGBA16F:
		return gl.RGBA16F, gl.RGBA, gl.HALF_FLOAT
	case gpu.FormatRGBA32F:
		return gl.RGBA32F, gl.RGBA, gl.FLOAT
	case gpu.FormatDepth32F:
		return gl.DEPTH_COMPONENT32F, gl.DEPTH_COMPONENT, gl.FLOAT
	default:
		return gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE
	}
}

func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	if desc.Width < 1 || desc.Height < 1 {
		return 0, fmt.Errorf("texture size %dx%d: %w", desc.Width, desc.Height, gpu.ErrInvalidHandle)
	}
	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)

	internal, format, xtype := formatOf(desc.Format)
	if len(desc.Pixels) > 0 {
		gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(desc.Width), int32(desc.Height), 0, format, xtype, gl.Ptr(desc.Pixels))
	} else {
		gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(desc.Width), int32(desc.Height), 0, format, xtype, nil)
	}

	filter := int32(gl.NEAREST)
	if desc.Linear {
		filter = gl.LINEAR
	}
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	tex := gpu.Texture(id)
	d.textures[tex] = &texture{width: desc.Width, height: desc.Height, format: desc.Format}
	return tex, nil
}

func (d *Device) ResizeTexture(tex gpu.Texture, width, height int) error {
	t, ok := d.textures[tex]
	if !ok {
		return fmt.Errorf("resize texture %d: %w", tex, gpu.ErrInvalidHandle)
	}
	internal, format, xtype := formatOf(t.format)
	gl.BindTexture(gl.TEXTURE_2D, uint32(tex))
	gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(width), int32(height), 0, format, xtype, nil)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	t.width, t.height = width, height
	return nil
}

func (d *Device) TextureSize(tex gpu.Texture) (int, int) {
	if t, ok := d.textures[tex]; ok {
		return t.width, t.height
	}
	return 0, 0
}

func (d *Device) DeleteTexture(tex gpu.Texture) {
	if _, ok := d.textures[tex]; !ok {
		return
	}
	id := uint32(tex)
	gl.DeleteTextures(1, &id)
	delete(d.textures, tex)
}

// ── Framebuffers ──────────────────────────────────────────────────────────────

func (d *Device) CreateFramebuffer() gpu.Framebuffer {
	var fbo uint32
	gl.GenFramebuffers(1, &fbo)
	return gpu.Framebuffer(fbo)
}

func (d *Device) AttachColor(fb gpu.Framebuffer, index int, tex gpu.Texture) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(fb))
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0+uint32(index), gl.TEXTURE_2D, uint32(tex), 0)
	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(d.drawFB))
}

func (d *Device) AttachDepth(fb gpu.Framebuffer, tex gpu.Texture) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(fb))
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.TEXTURE_2D, uint32(tex), 0)
	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(d.drawFB))
}

func (d *Device) CheckFramebuffer(fb gpu.Framebuffer) error {
	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(fb))
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(d.drawFB))
	if status != gl.FRAMEBUFFER_COMPLETE {
		return fmt.Errorf("status=0x%X: %w", status, gpu.ErrIncompleteFramebuffer)
	}
	return nil
}

func (d *Device) DeleteFramebuffer(fb gpu.Framebuffer) {
	if fb == gpu.DisplayFramebuffer {
		return
	}
	id := uint32(fb)
	gl.DeleteFramebuffers(1, &id)
}

func (d *Device) BindFramebuffer(fb gpu.Framebuffer) {
	d.drawFB = fb
	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(fb))
}

func (d *Device) DrawBuffers(attachments ...int) {
	if d.drawFB == gpu.DisplayFramebuffer || len(attachments) == 0 {
		gl.DrawBuffer(gl.BACK)
		return
	}
	bufs := make([]uint32, len(attachments))
	for i, a := range attachments {
		bufs[i] = gl.COLOR_ATTACHMENT0 + uint32(a)
	}
	gl.DrawBuffers(int32(len(bufs)), &bufs[0])
}

func (d *Device) Viewport(width, height int) {
	gl.Viewport(0, 0, int32(width), int32(height))
}

func (d *Device) ClearColor(c mgl32.Vec4) { gl.ClearColor(c[0], c[1], c[2], c[3]) }
func (d *Device) ClearDepth(v float32)    { gl.ClearDepth(float64(v)) }

func (d *Device) Clear(mask gpu.ClearMask) {
	var bits uint32
	if mask&gpu.ClearColorBit != 0 {
		bits |= gl.COLOR_BUFFER_BIT
	}
	if mask&gpu.ClearDepthBit != 0 {
		bits |= gl.DEPTH_BUFFER_BIT
	}
	gl.Clear(bits)
}

// ── Fixed-function state ──────────────────────────────────────────────────────

func (d *Device) SetDepthTest(enabled bool) {
	if enabled {
		gl.Enable(gl.DEPTH_TEST)
	} else {
		gl.Disable(gl.DEPTH_TEST)
	}
}

func (d *Device) SetDepthFunc(fn gpu.DepthFunc) {
	switch fn {
	case gpu.DepthLess:
		gl.DepthFunc(gl.LESS)
	case gpu.DepthLessEqual:
		gl.DepthFunc(gl.LEQUAL)
	case gpu.DepthGreater:
		gl.DepthFunc(gl.GREATER)
	case gpu.DepthGreaterEqual:
		gl.DepthFunc(gl.GEQUAL)
	default:
		gl.DepthFunc(gl.ALWAYS)
	}
}

func (d *Device) SetDepthMask(write bool) { gl.DepthMask(write) }

func (d *Device) SetCullFace(enabled bool) {
	if enabled {
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.BACK)
	} else {
		gl.Disable(gl.CULL_FACE)
	}
}

func (d *Device) SetFrontFace(w gpu.Winding) {
	if w == gpu.Clockwise {
		gl.FrontFace(gl.CW)
	} else {
		gl.FrontFace(gl.CCW)
	}
}

// ── Programs ──────────────────────────────────────────────────────────────────

func (d *Device) CompileProgram(src gpu.ShaderSource) (gpu.Program, error) {
	vert, err := compileShader(src.Vertex, gl.VERTEX_SHADER)
	if err != nil {
		return 0, fmt.Errorf("vertex: %w", err)
	}
	defer gl.DeleteShader(vert)
	frag, err := compileShader(src.Fragment, gl.FRAGMENT_SHADER)
	if err != nil {
		return 0, fmt.Errorf("fragment: %w", err)
	}
	defer gl.DeleteShader(frag)

	var geom uint32
	if src.Geometry != "" {
		geom, err = compileShader(src.Geometry, gl.GEOMETRY_SHADER)
		if err != nil {
			return 0, fmt.Errorf("geometry: %w", err)
		}
		defer gl.DeleteShader(geom)
	}

	prog := gl.CreateProgram()
	if prog == 0 {
		return 0, gpu.ErrCreateProgram
	}
	gl.AttachShader(prog, vert)
	gl.AttachShader(prog, frag)
	if geom != 0 {
		gl.AttachShader(prog, geom)
	}
	gl.LinkProgram(prog)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetProgramInfoLog(prog, logLen, nil, gl.Str(log))
		gl.DeleteProgram(prog)
		return 0, fmt.Errorf("%w: %v", gpu.ErrLink, log)
	}
	return gpu.Program(prog), nil
}

func compileShader(src string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csrc, free := gl.Strs(src + "\x00")
	gl.ShaderSource(shader, 1, csrc, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetShaderInfoLog(shader, logLen, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("%w: %v", gpu.ErrCompile, log)
	}
	return shader, nil
}

func (d *Device) DeleteProgram(p gpu.Program) { gl.DeleteProgram(uint32(p)) }
func (d *Device) UseProgram(p gpu.Program)    { gl.UseProgram(uint32(p)) }

func (d *Device) UniformLocation(p gpu.Program, name string) gpu.Location {
	return gpu.Location(gl.GetUniformLocation(uint32(p), gl.Str(name+"\x00")))
}

func (d *Device) Uniform1i(loc gpu.Location, v int32)      { gl.Uniform1i(int32(loc), v) }
func (d *Device) Uniform1f(loc gpu.Location, v float32)    { gl.Uniform1f(int32(loc), v) }
func (d *Device) Uniform2f(loc gpu.Location, v mgl32.Vec2) { gl.Uniform2f(int32(loc), v[0], v[1]) }

func (d *Device) Uniform3f(loc gpu.Location, v mgl32.Vec3) {
	gl.Uniform3f(int32(loc), v[0], v[1], v[2])
}

func (d *Device) Uniform4f(loc gpu.Location, v mgl32.Vec4) {
	gl.Uniform4f(int32(loc), v[0], v[1], v[2], v[3])
}

func (d *Device) UniformMatrix4(loc gpu.Location, m mgl32.Mat4) {
	gl.UniformMatrix4fv(int32(loc), 1, false, &m[0])
}

func (d *Device) Uniform1fv(loc gpu.Location, v []float32) {
	if len(v) == 0 {
		return
	}
	gl.Uniform1fv(int32(loc), int32(len(v)), &v[0])
}

func (d *Device) Uniform3fv(loc gpu.Location, v []mgl32.Vec3) {
	if len(v) == 0 {
		return
	}
	gl.Uniform3fv(int32(loc), int32(len(v)), &v[0][0])
}

func (d *Device) BindTexture(unit int, tex gpu.Texture) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(gl.TEXTURE_2D, uint32(tex))
}

// ── Meshes and draws ──────────────────────────────────────────────────────────

func (d *Device) CreateMesh(vertices []gpu.Vertex, indices []uint32) (gpu.Mesh, error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return 0, fmt.Errorf("empty mesh: %w", gpu.ErrInvalidHandle)
	}
	const stride = int32(8 * 4)
	m := &GPUMesh{IndexCount: int32(len(indices))}

	flat := make([]float32, 0, len(vertices)*8)
	for _, v := range vertices {
		flat = append(flat,
			v.Position[0], v.Position[1], v.Position[2],
			v.Normal[0], v.Normal[1], v.Normal[2],
			v.UV[0], v.UV[1])
	}

	gl.GenVertexArrays(1, &m.VAO)
	gl.GenBuffers(1, &m.VBO)
	gl.GenBuffers(1, &m.EBO)

	gl.BindVertexArray(m.VAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, m.VBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(flat)*4, gl.Ptr(flat), gl.STATIC_DRAW)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.EBO)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indices)*4, gl.Ptr(indices), gl.STATIC_DRAW)

	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, stride, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointer(1, 3, gl.FLOAT, false, stride, gl.PtrOffset(12))
	gl.EnableVertexAttribArray(2)
	gl.VertexAttribPointer(2, 2, gl.FLOAT, false, stride, gl.PtrOffset(24))
	gl.BindVertexArray(0)

	id := gpu.Mesh(m.VAO)
	d.meshes[id] = m
	return id, nil
}

func (d *Device) DeleteMesh(id gpu.Mesh) {
	m, ok := d.meshes[id]
	if !ok {
		return
	}
	gl.DeleteVertexArrays(1, &m.VAO)
	gl.DeleteBuffers(1, &m.VBO)
	gl.DeleteBuffers(1, &m.EBO)
	delete(d.meshes, id)
}

func (d *Device) DrawIndexed(id gpu.Mesh) {
	m, ok := d.meshes[id]
	if !ok {
		return
	}
	gl.BindVertexArray(m.VAO)
	gl.DrawElements(gl.TRIANGLES, m.IndexCount, gl.UNSIGNED_INT, nil)
	gl.BindVertexArray(0)
}

func (d *Device) DrawFullscreen() {
	gl.BindVertexArray(d.quadVAO)
	gl.DrawArrays(gl.TRIANGLES, 0, 3)
	gl.BindVertexArray(0)
}

func (d *Device) Blit(src gpu.Framebuffer, srcAttachment int, srcW, srcH int, dst gpu.Framebuffer, dstW, dstH int) {
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, uint32(src))
	if src == gpu.DisplayFramebuffer {
		gl.ReadBuffer(gl.BACK)
	} else {
		gl.ReadBuffer(gl.COLOR_ATTACHMENT0 + uint32(srcAttachment))
	}
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, uint32(dst))
	if dst == gpu.DisplayFramebuffer {
		gl.DrawBuffer(gl.BACK)
	} else {
		gl.DrawBuffer(gl.COLOR_ATTACHMENT0)
	}
	gl.BlitFramebuffer(0, 0, int32(srcW), int32(srcH), 0, 0, int32(dstW), int32(dstH),
		gl.COLOR_BUFFER_BIT, gl.NEAREST)
	d.BindFramebuffer(dst)
}

var _ gpu.Device = (*Device)(nil)
