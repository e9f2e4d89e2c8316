package software

import (
	"github.com/go-gl/mathgl/mgl32"

	"deferred-engine/internal/gpu"
)

// Fragment is the interpolated input of one fragment invocation. For
// full-screen draws UV is the screen coordinate in [0,1].
type Fragment struct {
	UV       mgl32.Vec2
	Position mgl32.Vec3
	Normal   mgl32.Vec3
}

// Kernel computes the outputs of one fragment. Output i is written to the
// i-th draw buffer. A nil result discards the fragment.
type Kernel func(u *Uniforms, f Fragment) []mgl32.Vec4

// Uniforms gives a kernel read access to the current program's uniforms and
// the texture units.
type Uniforms struct {
	dev  *Device
	prog *program
}

func (u *Uniforms) raw(name string) []float32 {
	loc, ok := u.prog.locs[name]
	if !ok {
		return nil
	}
	return u.prog.values[loc]
}

func (u *Uniforms) Float(name string) float32 {
	if v := u.raw(name); len(v) > 0 {
		return v[0]
	}
	return 0
}

func (u *Uniforms) Int(name string) int { return int(u.Float(name)) }

func (u *Uniforms) Vec2(name string) (out mgl32.Vec2) {
	copy(out[:], u.raw(name))
	return out
}

func (u *Uniforms) Vec3(name string) (out mgl32.Vec3) {
	copy(out[:], u.raw(name))
	return out
}

func (u *Uniforms) Vec4(name string) (out mgl32.Vec4) {
	copy(out[:], u.raw(name))
	return out
}

func (u *Uniforms) Mat4(name string) (out mgl32.Mat4) {
	copy(out[:], u.raw(name))
	return out
}

// FloatAt and Vec3At read element i of an array uniform.
func (u *Uniforms) FloatAt(name string, i int) float32 {
	loc, ok := u.prog.locs[name]
	if !ok {
		return 0
	}
	if v := u.prog.values[loc+gpu.Location(i)]; len(v) > 0 {
		return v[0]
	}
	return 0
}

func (u *Uniforms) Vec3At(name string, i int) (out mgl32.Vec3) {
	loc, ok := u.prog.locs[name]
	if !ok {
		return out
	}
	copy(out[:], u.prog.values[loc+gpu.Location(i)])
	return out
}

// Len is the declared element count of an array uniform.
func (u *Uniforms) Len(name string) int {
	loc, ok := u.prog.locs[name]
	if !ok {
		return 0
	}
	return int(u.prog.arrayEnd[loc] - loc)
}

// Sample reads the texture bound to the unit named by the sampler uniform,
// nearest filtered with clamp-to-edge.
func (u *Uniforms) Sample(sampler string, uv mgl32.Vec2) mgl32.Vec4 {
	im, ok := u.dev.textures[u.dev.units[u.Int(sampler)]]
	if !ok || len(im.pix) == 0 {
		return mgl32.Vec4{}
	}
	x := clampInt(int(uv[0]*float32(im.width)), 0, im.width-1)
	y := clampInt(int(uv[1]*float32(im.height)), 0, im.height-1)
	return im.pix[im.index(x, y)]
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ── Rasterizer ────────────────────────────────────────────────────────────────

type target struct {
	fb     *framebuffer
	color  []*image
	depth  *image
	width  int
	height int
}

func (d *Device) bindTarget() (*target, bool) {
	f, ok := d.framebuffers[d.bound]
	if !ok {
		return nil, false
	}
	t := &target{fb: f, width: d.viewW, height: d.viewH}
	for _, a := range f.drawBuffers {
		im := d.textures[f.color[a]]
		t.color = append(t.color, im)
		if im != nil {
			t.width, t.height = min(t.width, im.width), min(t.height, im.height)
		}
	}
	if im, ok := d.textures[f.depth]; ok {
		t.depth = im
		t.width, t.height = min(t.width, im.width), min(t.height, im.height)
	}
	return t, t.width > 0 && t.height > 0
}

func (d *Device) depthPasses(z, stored float32) bool {
	switch d.depthFunc {
	case gpu.DepthLess:
		return z < stored
	case gpu.DepthLessEqual:
		return z <= stored
	case gpu.DepthGreater:
		return z > stored
	case gpu.DepthGreaterEqual:
		return z >= stored
	}
	return true
}

func (d *Device) shade(t *target, x, y int, z float32, u *Uniforms, f Fragment) {
	if t.depth != nil && d.depthTest {
		i := t.depth.index(x, y)
		if !d.depthPasses(z, t.depth.pix[i][0]) {
			return
		}
		if d.depthMask {
			t.depth.pix[i] = mgl32.Vec4{z}
		}
	}
	out := d.current.kernel(u, f)
	for j, c := range out {
		if j >= len(t.color) || t.color[j] == nil {
			break
		}
		t.color[j].store(t.color[j].index(x, y), c)
	}
}

// DrawFullscreen shades every pixel of the viewport at the depth given by the
// program's depth uniform.
func (d *Device) DrawFullscreen() {
	d.Stats.FullscreenDraws++
	if d.current == nil {
		return
	}
	t, ok := d.bindTarget()
	if !ok {
		return
	}
	u := &Uniforms{dev: d, prog: d.current}
	z := u.Float("depth")
	for y := 0; y < t.height; y++ {
		for x := 0; x < t.width; x++ {
			uv := mgl32.Vec2{(float32(x) + 0.5) / float32(d.viewW), (float32(y) + 0.5) / float32(d.viewH)}
			d.shade(t, x, y, z, u, Fragment{UV: uv})
		}
	}
}

type projected struct {
	x, y, z, invW float32
	world, normal mgl32.Vec3
	uv            mgl32.Vec2
}

// DrawIndexed runs the fixed vertex stage (mvp, model, rotation) and fills
// each triangle. Triangles with a vertex behind the eye are dropped.
func (d *Device) DrawIndexed(m gpu.Mesh) {
	d.Stats.IndexedDraws++
	msh, ok := d.meshes[m]
	if !ok || d.current == nil {
		return
	}
	t, ok := d.bindTarget()
	if !ok {
		return
	}
	u := &Uniforms{dev: d, prog: d.current}
	mvp, model, rot := u.Mat4("mvp"), u.Mat4("model"), u.Mat4("rotation")

	verts := make([]projected, len(msh.vertices))
	behind := make([]bool, len(msh.vertices))
	for i, v := range msh.vertices {
		clip := mvp.Mul4x1(v.Position.Vec4(1))
		if clip[3] <= 0 {
			behind[i] = true
			continue
		}
		inv := 1 / clip[3]
		verts[i] = projected{
			x:      (clip[0]*inv + 1) * 0.5 * float32(d.viewW),
			y:      (clip[1]*inv + 1) * 0.5 * float32(d.viewH),
			z:      (clip[2]*inv + 1) * 0.5,
			invW:   inv,
			world:  model.Mul4x1(v.Position.Vec4(1)).Vec3(),
			normal: rot.Mul4x1(v.Normal.Vec4(0)).Vec3(),
			uv:     v.UV,
		}
	}

	for i := 0; i+2 < len(msh.indices); i += 3 {
		a, b, c := msh.indices[i], msh.indices[i+1], msh.indices[i+2]
		if behind[a] || behind[b] || behind[c] {
			continue
		}
		d.fillTriangle(t, u, verts[a], verts[b], verts[c])
	}
}

func edge(a, b projected, px, py float32) float32 {
	return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
}

func (d *Device) fillTriangle(t *target, u *Uniforms, a, b, c projected) {
	area := edge(a, b, c.x, c.y)
	if area == 0 {
		return
	}
	// Positive area is counter-clockwise in window space.
	ccw := area > 0
	if d.cull && ccw != (d.front == gpu.CounterClockwise) {
		return
	}

	minX := clampInt(int(min(a.x, b.x, c.x)), 0, t.width-1)
	maxX := clampInt(int(max(a.x, b.x, c.x))+1, 0, t.width-1)
	minY := clampInt(int(min(a.y, b.y, c.y)), 0, t.height-1)
	maxY := clampInt(int(max(a.y, b.y, c.y))+1, 0, t.height-1)

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			px, py := float32(x)+0.5, float32(y)+0.5
			w0 := edge(b, c, px, py) / area
			w1 := edge(c, a, px, py) / area
			w2 := edge(a, b, px, py) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			z := w0*a.z + w1*b.z + w2*c.z
			if z < 0 || z > 1 {
				continue
			}
			// Perspective-correct weights.
			p0, p1, p2 := w0*a.invW, w1*b.invW, w2*c.invW
			s := p0 + p1 + p2
			p0, p1, p2 = p0/s, p1/s, p2/s
			f := Fragment{
				UV:       a.uv.Mul(p0).Add(b.uv.Mul(p1)).Add(c.uv.Mul(p2)),
				Position: a.world.Mul(p0).Add(b.world.Mul(p1)).Add(c.world.Mul(p2)),
				Normal:   a.normal.Mul(p0).Add(b.normal.Mul(p1)).Add(c.normal.Mul(p2)),
			}
			d.shade(t, x, y, z, u, f)
		}
	}
}
