// Package software is a CPU implementation of gpu.Device.
//
// It runs without a window or driver, which makes the whole pipeline testable
// headless. Fragment stages cannot be compiled from GLSL; instead each
// fragment source is paired with a Go Kernel. The built-in programs from the
// shaders package are registered by New, and callers may RegisterKernel for
// their own sources. Uniform declarations are still parsed from the GLSL so
// locations, array bounds and "not found" behave like a real driver.
package software

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"deferred-engine/internal/gpu"
	"deferred-engine/shaders"
)

type image struct {
	width, height int
	format        gpu.TextureFormat
	pix           []mgl32.Vec4
}

func (im *image) index(x, y int) int { return y*im.width + x }

func (im *image) store(i int, c mgl32.Vec4) {
	if im.format == gpu.FormatRGBA8 {
		for k := range c {
			c[k] = float32(math.Round(float64(clamp01(c[k])*255))) / 255
		}
	}
	im.pix[i] = c
}

type framebuffer struct {
	color       map[int]gpu.Texture
	depth       gpu.Texture
	drawBuffers []int
}

type program struct {
	src        gpu.ShaderSource
	kernel     Kernel
	fullscreen bool
	locs       map[string]gpu.Location
	arrayEnd   map[gpu.Location]gpu.Location
	values     map[gpu.Location][]float32
}

type mesh struct {
	vertices []gpu.Vertex
	indices  []uint32
}

// Stats counts the work submitted to the device.
type Stats struct {
	IndexedDraws    int
	FullscreenDraws int
	Blits           int
	Clears          int
}

// Device is the software backend. Framebuffer 0 is an internal display image
// sized by New and ResizeDisplay.
type Device struct {
	nextID       uint32
	textures     map[gpu.Texture]*image
	framebuffers map[gpu.Framebuffer]*framebuffer
	programs     map[gpu.Program]*program
	meshes       map[gpu.Mesh]*mesh
	kernels      map[string]Kernel

	current    *program
	bound      gpu.Framebuffer
	units      map[int]gpu.Texture
	viewW      int
	viewH      int
	clearColor mgl32.Vec4
	clearDepth float32
	depthTest  bool
	depthFunc  gpu.DepthFunc
	depthMask  bool
	cull       bool
	front      gpu.Winding

	Stats Stats
}

// New creates a device whose display framebuffer is width×height.
func New(width, height int) *Device {
	d := &Device{
		textures:     make(map[gpu.Texture]*image),
		framebuffers: make(map[gpu.Framebuffer]*framebuffer),
		programs:     make(map[gpu.Program]*program),
		meshes:       make(map[gpu.Mesh]*mesh),
		kernels:      make(map[string]Kernel),
		units:        make(map[int]gpu.Texture),
		clearDepth:   1,
		depthTest:    true,
		depthMask:    true,
		viewW:        width,
		viewH:        height,
	}
	display, _ := d.CreateTexture(gpu.TextureDesc{Width: width, Height: height, Format: gpu.FormatRGBA8})
	d.framebuffers[gpu.DisplayFramebuffer] = &framebuffer{
		color:       map[int]gpu.Texture{0: display},
		drawBuffers: []int{0},
	}
	registerBuiltins(d)
	return d
}

func (d *Device) id() uint32 {
	d.nextID++
	return d.nextID
}

// RegisterKernel pairs a fragment source with the Go function that stands in
// for it. Programs compiled afterwards with that fragment source use k.
func (d *Device) RegisterKernel(fragment string, k Kernel) {
	d.kernels[fragment] = k
}

// ResizeDisplay resizes the display image, as a window resize would.
func (d *Device) ResizeDisplay(width, height int) {
	_ = d.ResizeTexture(d.framebuffers[gpu.DisplayFramebuffer].color[0], width, height)
}

// ── Textures ──────────────────────────────────────────────────────────────────

func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	if desc.Width < 1 || desc.Height < 1 {
		return 0, fmt.Errorf("texture size %dx%d: %w", desc.Width, desc.Height, gpu.ErrInvalidHandle)
	}
	im := &image{
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
		pix:    make([]mgl32.Vec4, desc.Width*desc.Height),
	}
	if len(desc.Pixels) >= len(im.pix)*4 {
		for i := range im.pix {
			p := desc.Pixels[i*4 : i*4+4]
			im.pix[i] = mgl32.Vec4{float32(p[0]) / 255, float32(p[1]) / 255, float32(p[2]) / 255, float32(p[3]) / 255}
		}
	}
	tex := gpu.Texture(d.id())
	d.textures[tex] = im
	return tex, nil
}

func (d *Device) ResizeTexture(tex gpu.Texture, width, height int) error {
	im, ok := d.textures[tex]
	if !ok {
		return fmt.Errorf("resize texture %d: %w", tex, gpu.ErrInvalidHandle)
	}
	im.width, im.height = width, height
	im.pix = make([]mgl32.Vec4, width*height)
	return nil
}

func (d *Device) TextureSize(tex gpu.Texture) (int, int) {
	if im, ok := d.textures[tex]; ok {
		return im.width, im.height
	}
	return 0, 0
}

func (d *Device) DeleteTexture(tex gpu.Texture) {
	delete(d.textures, tex)
}

// Live reports whether tex has not been deleted.
func (d *Device) Live(tex gpu.Texture) bool {
	_, ok := d.textures[tex]
	return ok
}

// Pixels returns a copy of a texture's contents, rows bottom-to-top.
func (d *Device) Pixels(tex gpu.Texture) []mgl32.Vec4 {
	im, ok := d.textures[tex]
	if !ok {
		return nil
	}
	return append([]mgl32.Vec4(nil), im.pix...)
}

// ReadPixels returns a copy of color attachment index of fb.
func (d *Device) ReadPixels(fb gpu.Framebuffer, index int) []mgl32.Vec4 {
	f, ok := d.framebuffers[fb]
	if !ok {
		return nil
	}
	return d.Pixels(f.color[index])
}

// ── Framebuffers ──────────────────────────────────────────────────────────────

func (d *Device) CreateFramebuffer() gpu.Framebuffer {
	fb := gpu.Framebuffer(d.id())
	d.framebuffers[fb] = &framebuffer{color: make(map[int]gpu.Texture), drawBuffers: []int{0}}
	return fb
}

func (d *Device) AttachColor(fb gpu.Framebuffer, index int, tex gpu.Texture) {
	if f, ok := d.framebuffers[fb]; ok {
		f.color[index] = tex
	}
}

func (d *Device) AttachDepth(fb gpu.Framebuffer, tex gpu.Texture) {
	if f, ok := d.framebuffers[fb]; ok {
		f.depth = tex
	}
}

// CheckFramebuffer requires at least one attachment, all live, all one size,
// and a depth attachment of depth format.
func (d *Device) CheckFramebuffer(fb gpu.Framebuffer) error {
	f, ok := d.framebuffers[fb]
	if !ok {
		return fmt.Errorf("framebuffer %d: %w", fb, gpu.ErrInvalidHandle)
	}
	if len(f.color) == 0 && f.depth == 0 {
		return fmt.Errorf("no attachments: %w", gpu.ErrIncompleteFramebuffer)
	}
	w, h := -1, -1
	check := func(tex gpu.Texture, depth bool) error {
		im, ok := d.textures[tex]
		if !ok {
			return fmt.Errorf("attachment %d missing: %w", tex, gpu.ErrIncompleteFramebuffer)
		}
		if depth != (im.format == gpu.FormatDepth32F) {
			return fmt.Errorf("attachment %d has wrong format: %w", tex, gpu.ErrIncompleteFramebuffer)
		}
		if w >= 0 && (im.width != w || im.height != h) {
			return fmt.Errorf("attachment sizes differ: %w", gpu.ErrIncompleteFramebuffer)
		}
		w, h = im.width, im.height
		return nil
	}
	for _, tex := range f.color {
		if err := check(tex, false); err != nil {
			return err
		}
	}
	if f.depth != 0 {
		if err := check(f.depth, true); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) DeleteFramebuffer(fb gpu.Framebuffer) {
	if fb == gpu.DisplayFramebuffer {
		return
	}
	delete(d.framebuffers, fb)
}

func (d *Device) BindFramebuffer(fb gpu.Framebuffer) { d.bound = fb }

func (d *Device) DrawBuffers(attachments ...int) {
	f, ok := d.framebuffers[d.bound]
	if !ok || d.bound == gpu.DisplayFramebuffer {
		return
	}
	f.drawBuffers = append(f.drawBuffers[:0], attachments...)
}

func (d *Device) Viewport(width, height int) { d.viewW, d.viewH = width, height }

func (d *Device) ClearColor(c mgl32.Vec4) { d.clearColor = c }
func (d *Device) ClearDepth(v float32)    { d.clearDepth = v }

func (d *Device) Clear(mask gpu.ClearMask) {
	f, ok := d.framebuffers[d.bound]
	if !ok {
		return
	}
	d.Stats.Clears++
	if mask&gpu.ClearColorBit != 0 {
		for _, a := range f.drawBuffers {
			if im, ok := d.textures[f.color[a]]; ok {
				for i := range im.pix {
					im.store(i, d.clearColor)
				}
			}
		}
	}
	if mask&gpu.ClearDepthBit != 0 {
		if im, ok := d.textures[f.depth]; ok {
			for i := range im.pix {
				im.pix[i] = mgl32.Vec4{d.clearDepth}
			}
		}
	}
}

// ── Fixed-function state ──────────────────────────────────────────────────────

func (d *Device) SetDepthTest(enabled bool)     { d.depthTest = enabled }
func (d *Device) SetDepthFunc(fn gpu.DepthFunc) { d.depthFunc = fn }
func (d *Device) SetDepthMask(write bool)       { d.depthMask = write }
func (d *Device) SetCullFace(enabled bool)      { d.cull = enabled }
func (d *Device) SetFrontFace(w gpu.Winding)    { d.front = w }

// FrontFace reports the current winding; tests use it to check state restore.
func (d *Device) FrontFace() gpu.Winding { return d.front }

// DepthState reports the current depth function and write mask.
func (d *Device) DepthState() (gpu.DepthFunc, bool) { return d.depthFunc, d.depthMask }

// ── Programs ──────────────────────────────────────────────────────────────────

var (
	defineRe  = regexp.MustCompile(`#define\s+(\w+)\s+(\d+)`)
	uniformRe = regexp.MustCompile(`uniform\s+\w+\s+(\w+)\s*(?:\[\s*(\w+)\s*\])?\s*;`)
)

func (d *Device) CompileProgram(src gpu.ShaderSource) (gpu.Program, error) {
	for stage, text := range map[string]string{"vertex": src.Vertex, "fragment": src.Fragment} {
		if !strings.Contains(text, "void main") {
			return 0, fmt.Errorf("%s: %w: missing entry point main", stage, gpu.ErrCompile)
		}
	}
	kernel, ok := d.kernels[src.Fragment]
	if !ok {
		return 0, fmt.Errorf("%w: no kernel registered for fragment stage", gpu.ErrLink)
	}

	p := &program{
		src:        src,
		kernel:     kernel,
		fullscreen: src.Vertex == shaders.FullscreenVert,
		locs:       make(map[string]gpu.Location),
		arrayEnd:   make(map[gpu.Location]gpu.Location),
		values:     make(map[gpu.Location][]float32),
	}
	all := src.Vertex + "\n" + src.Geometry + "\n" + src.Fragment
	defines := map[string]int{}
	for _, m := range defineRe.FindAllStringSubmatch(all, -1) {
		n, _ := strconv.Atoi(m[2])
		defines[m[1]] = n
	}
	next := gpu.Location(0)
	for _, m := range uniformRe.FindAllStringSubmatch(all, -1) {
		name := m[1]
		if _, dup := p.locs[name]; dup {
			continue
		}
		size := 1
		if m[2] != "" {
			if n, err := strconv.Atoi(m[2]); err == nil {
				size = n
			} else if n, ok := defines[m[2]]; ok {
				size = n
			}
		}
		base := next
		p.locs[name] = base
		if m[2] != "" {
			for i := 0; i < size; i++ {
				p.locs[fmt.Sprintf("%s[%d]", name, i)] = base + gpu.Location(i)
			}
		}
		for i := 0; i < size; i++ {
			p.arrayEnd[base+gpu.Location(i)] = base + gpu.Location(size)
		}
		next += gpu.Location(size)
	}

	id := gpu.Program(d.id())
	d.programs[id] = p
	return id, nil
}

func (d *Device) DeleteProgram(p gpu.Program) {
	if d.current == d.programs[p] {
		d.current = nil
	}
	delete(d.programs, p)
}

func (d *Device) UseProgram(p gpu.Program) { d.current = d.programs[p] }

func (d *Device) UniformLocation(p gpu.Program, name string) gpu.Location {
	prog, ok := d.programs[p]
	if !ok {
		return gpu.NoLocation
	}
	if loc, ok := prog.locs[name]; ok {
		return loc
	}
	return gpu.NoLocation
}

// Uniform returns the current value stored for name in program p.
func (d *Device) Uniform(p gpu.Program, name string) ([]float32, bool) {
	prog, ok := d.programs[p]
	if !ok {
		return nil, false
	}
	loc, ok := prog.locs[name]
	if !ok {
		return nil, false
	}
	v, ok := prog.values[loc]
	return v, ok
}

func (d *Device) set(loc gpu.Location, v ...float32) {
	if d.current == nil || loc < 0 {
		return
	}
	if _, ok := d.current.arrayEnd[loc]; !ok {
		return
	}
	d.current.values[loc] = v
}

func (d *Device) Uniform1i(loc gpu.Location, v int32)      { d.set(loc, float32(v)) }
func (d *Device) Uniform1f(loc gpu.Location, v float32)    { d.set(loc, v) }
func (d *Device) Uniform2f(loc gpu.Location, v mgl32.Vec2) { d.set(loc, v[:]...) }
func (d *Device) Uniform3f(loc gpu.Location, v mgl32.Vec3) { d.set(loc, v[:]...) }
func (d *Device) Uniform4f(loc gpu.Location, v mgl32.Vec4) { d.set(loc, v[:]...) }
func (d *Device) UniformMatrix4(loc gpu.Location, m mgl32.Mat4) {
	d.set(loc, m[:]...)
}

func (d *Device) Uniform1fv(loc gpu.Location, v []float32) {
	if d.current == nil || loc < 0 {
		return
	}
	end := d.current.arrayEnd[loc]
	for i, x := range v {
		if loc+gpu.Location(i) >= end {
			break
		}
		d.set(loc+gpu.Location(i), x)
	}
}

func (d *Device) Uniform3fv(loc gpu.Location, v []mgl32.Vec3) {
	if d.current == nil || loc < 0 {
		return
	}
	end := d.current.arrayEnd[loc]
	for i, x := range v {
		if loc+gpu.Location(i) >= end {
			break
		}
		d.set(loc+gpu.Location(i), x[0], x[1], x[2])
	}
}

func (d *Device) BindTexture(unit int, tex gpu.Texture) { d.units[unit] = tex }

// ── Meshes ────────────────────────────────────────────────────────────────────

func (d *Device) CreateMesh(vertices []gpu.Vertex, indices []uint32) (gpu.Mesh, error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return 0, fmt.Errorf("empty mesh: %w", gpu.ErrInvalidHandle)
	}
	for _, i := range indices {
		if int(i) >= len(vertices) {
			return 0, fmt.Errorf("index %d out of range: %w", i, gpu.ErrInvalidHandle)
		}
	}
	id := gpu.Mesh(d.id())
	d.meshes[id] = &mesh{
		vertices: append([]gpu.Vertex(nil), vertices...),
		indices:  append([]uint32(nil), indices...),
	}
	return id, nil
}

func (d *Device) DeleteMesh(m gpu.Mesh) { delete(d.meshes, m) }

// Blit copies with nearest sampling and leaves dst bound.
func (d *Device) Blit(src gpu.Framebuffer, srcAttachment int, srcW, srcH int, dst gpu.Framebuffer, dstW, dstH int) {
	d.Stats.Blits++
	d.bound = dst
	sf, ok := d.framebuffers[src]
	if !ok {
		return
	}
	df, ok := d.framebuffers[dst]
	if !ok {
		return
	}
	if src == gpu.DisplayFramebuffer {
		srcAttachment = 0
	}
	from, ok := d.textures[sf.color[srcAttachment]]
	if !ok {
		return
	}
	to, ok := d.textures[df.color[0]]
	if !ok {
		return
	}
	srcW, srcH = min(srcW, from.width), min(srcH, from.height)
	dstW, dstH = min(dstW, to.width), min(dstH, to.height)
	if srcW < 1 || srcH < 1 {
		return
	}
	for y := 0; y < dstH; y++ {
		sy := y * srcH / dstH
		for x := 0; x < dstW; x++ {
			sx := x * srcW / dstW
			to.store(to.index(x, y), from.pix[from.index(sx, sy)])
		}
	}
}

var _ gpu.Device = (*Device)(nil)

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
