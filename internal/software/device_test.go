package software

import (
	"errors"
	"strconv"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"deferred-engine/internal/gpu"
	"deferred-engine/shaders"
)

func newTarget(t *testing.T, d *Device, w, h int, withDepth bool) (gpu.Framebuffer, gpu.Texture) {
	t.Helper()
	tex, err := d.CreateTexture(gpu.TextureDesc{Width: w, Height: h, Format: gpu.FormatRGBA32F})
	if err != nil {
		t.Fatal(err)
	}
	fb := d.CreateFramebuffer()
	d.AttachColor(fb, 0, tex)
	if withDepth {
		depth, err := d.CreateTexture(gpu.TextureDesc{Width: w, Height: h, Format: gpu.FormatDepth32F})
		if err != nil {
			t.Fatal(err)
		}
		d.AttachDepth(fb, depth)
	}
	if err := d.CheckFramebuffer(fb); err != nil {
		t.Fatal(err)
	}
	return fb, tex
}

func TestCompileUnknownFragment(t *testing.T) {
	d := New(4, 4)
	_, err := d.CompileProgram(gpu.ShaderSource{Vertex: shaders.FullscreenVert, Fragment: "void main() {}"})
	if !errors.Is(err, gpu.ErrLink) {
		t.Fatalf("expected ErrLink, got %v", err)
	}
	_, err = d.CompileProgram(gpu.ShaderSource{Vertex: "garbage", Fragment: shaders.CopyFrag})
	if !errors.Is(err, gpu.ErrCompile) {
		t.Fatalf("expected ErrCompile, got %v", err)
	}
}

func TestUniformLocations(t *testing.T) {
	d := New(4, 4)
	p, err := d.CompileProgram(gpu.ShaderSource{Vertex: shaders.FullscreenVert, Fragment: shaders.LightingFrag})
	if err != nil {
		t.Fatal(err)
	}
	if loc := d.UniformLocation(p, "doesNotExist"); loc != gpu.NoLocation {
		t.Errorf("unknown uniform location = %d, want -1", loc)
	}
	base := d.UniformLocation(p, "lightPos")
	if got := d.UniformLocation(p, "lightPos[3]"); got != base+3 {
		t.Errorf("lightPos[3] = %d, want %d", got, base+3)
	}

	d.UseProgram(p)
	vals := make([]float32, shaders.MaxLights+5)
	for i := range vals {
		vals[i] = float32(i)
	}
	d.Uniform1fv(d.UniformLocation(p, "lightIntensity"), vals)
	last, ok := d.Uniform(p, "lightIntensity["+strconv.Itoa(shaders.MaxLights-1)+"]")
	if !ok || last[0] != float32(shaders.MaxLights-1) {
		t.Errorf("last element = %v, %v", last, ok)
	}
	// The element past the array belongs to the next uniform and must be untouched.
	if v, ok := d.Uniform(p, "ambient"); ok {
		t.Errorf("ambient was written by overflowing array upload: %v", v)
	}
}

func TestFullscreenInvert(t *testing.T) {
	d := New(4, 4)
	srcFB, src := newTarget(t, d, 4, 4, false)
	dstFB, _ := newTarget(t, d, 4, 4, false)

	d.BindFramebuffer(srcFB)
	d.ClearColor(mgl32.Vec4{0.25, 0.5, 1, 1})
	d.Clear(gpu.ClearColorBit)

	p, err := d.CompileProgram(gpu.ShaderSource{Vertex: shaders.FullscreenVert, Fragment: shaders.InvertFrag})
	if err != nil {
		t.Fatal(err)
	}
	d.BindFramebuffer(dstFB)
	d.Viewport(4, 4)
	d.UseProgram(p)
	d.BindTexture(0, src)
	d.Uniform1i(d.UniformLocation(p, "source"), 0)
	d.DrawFullscreen()

	for i, px := range d.ReadPixels(dstFB, 0) {
		if px != (mgl32.Vec4{0.75, 0.5, 0, 1}) {
			t.Fatalf("pixel %d = %v", i, px)
		}
	}
}

func TestTriangleDepthTest(t *testing.T) {
	d := New(8, 8)
	fb, _ := newTarget(t, d, 8, 8, true)
	const solid = "uniform vec4 baseColor;\nvoid main() { solid }"
	d.RegisterKernel(solid, func(u *Uniforms, _ Fragment) []mgl32.Vec4 {
		return []mgl32.Vec4{u.Vec4("baseColor")}
	})
	p, err := d.CompileProgram(gpu.ShaderSource{
		Vertex:   shaders.GeometryVert,
		Fragment: solid,
	})
	if err != nil {
		t.Fatal(err)
	}
	// Two full-screen quads in NDC at different depths.
	quad := func(z float32) gpu.Mesh {
		m, err := d.CreateMesh([]gpu.Vertex{
			{Position: mgl32.Vec3{-1, -1, z}},
			{Position: mgl32.Vec3{1, -1, z}},
			{Position: mgl32.Vec3{1, 1, z}},
			{Position: mgl32.Vec3{-1, 1, z}},
		}, []uint32{0, 1, 2, 0, 2, 3})
		if err != nil {
			t.Fatal(err)
		}
		return m
	}
	near, far := quad(0.5), quad(-0.5)

	d.BindFramebuffer(fb)
	d.Viewport(8, 8)
	d.ClearDepth(0)
	d.Clear(gpu.ClearColorBit | gpu.ClearDepthBit)
	d.SetDepthFunc(gpu.DepthGreater)
	d.UseProgram(p)
	id := mgl32.Ident4()
	d.UniformMatrix4(d.UniformLocation(p, "mvp"), id)

	if d.UniformLocation(p, "baseColor") == gpu.NoLocation {
		t.Fatal("baseColor did not resolve")
	}
	d.Uniform4f(d.UniformLocation(p, "baseColor"), mgl32.Vec4{1, 0, 0, 1})
	d.DrawIndexed(near)
	d.Uniform4f(d.UniformLocation(p, "baseColor"), mgl32.Vec4{0, 1, 0, 1})
	d.DrawIndexed(far)

	for i, px := range d.ReadPixels(fb, 0) {
		if px != (mgl32.Vec4{1, 0, 0, 1}) {
			t.Fatalf("pixel %d = %v, want the greater-depth quad", i, px)
		}
	}
}

func TestBackfaceCulling(t *testing.T) {
	d := New(4, 4)
	fb, _ := newTarget(t, d, 4, 4, false)
	d.RegisterKernel("void main() { white }", func(*Uniforms, Fragment) []mgl32.Vec4 {
		return []mgl32.Vec4{{1, 1, 1, 1}}
	})
	p, err := d.CompileProgram(gpu.ShaderSource{Vertex: shaders.GeometryVert, Fragment: "void main() { white }"})
	if err != nil {
		t.Fatal(err)
	}
	cw, err := d.CreateMesh([]gpu.Vertex{
		{Position: mgl32.Vec3{-1, -1, 0}},
		{Position: mgl32.Vec3{-1, 3, 0}},
		{Position: mgl32.Vec3{3, -1, 0}},
	}, []uint32{0, 1, 2})
	if err != nil {
		t.Fatal(err)
	}
	d.BindFramebuffer(fb)
	d.Viewport(4, 4)
	d.Clear(gpu.ClearColorBit)
	d.SetCullFace(true)
	d.UseProgram(p)
	d.UniformMatrix4(d.UniformLocation(p, "mvp"), mgl32.Ident4())
	d.DrawIndexed(cw)
	if px := d.ReadPixels(fb, 0)[0]; px != (mgl32.Vec4{}) {
		t.Fatalf("clockwise triangle drawn with CCW front: %v", px)
	}
	d.SetFrontFace(gpu.Clockwise)
	d.DrawIndexed(cw)
	if px := d.ReadPixels(fb, 0)[0]; px != (mgl32.Vec4{1, 1, 1, 1}) {
		t.Fatalf("clockwise triangle culled with CW front: %v", px)
	}
}

func TestBlitScales(t *testing.T) {
	d := New(2, 2)
	srcFB, src := newTarget(t, d, 4, 4, false)
	dstFB, _ := newTarget(t, d, 2, 2, false)
	d.textures[src].pix[d.textures[src].index(2, 2)] = mgl32.Vec4{1, 1, 1, 1}

	d.Blit(srcFB, 0, 4, 4, dstFB, 2, 2)
	got := d.ReadPixels(dstFB, 0)
	if got[3] != (mgl32.Vec4{1, 1, 1, 1}) || got[0] != (mgl32.Vec4{}) {
		t.Fatalf("blit result = %v", got)
	}
	if d.bound != dstFB {
		t.Errorf("blit left %d bound, want %d", d.bound, dstFB)
	}
}

func TestCheckFramebufferMismatch(t *testing.T) {
	d := New(2, 2)
	a, _ := d.CreateTexture(gpu.TextureDesc{Width: 2, Height: 2})
	b, _ := d.CreateTexture(gpu.TextureDesc{Width: 3, Height: 2})
	fb := d.CreateFramebuffer()
	d.AttachColor(fb, 0, a)
	d.AttachColor(fb, 1, b)
	if err := d.CheckFramebuffer(fb); !errors.Is(err, gpu.ErrIncompleteFramebuffer) {
		t.Fatalf("expected incomplete framebuffer, got %v", err)
	}
	if err := d.CheckFramebuffer(d.CreateFramebuffer()); !errors.Is(err, gpu.ErrIncompleteFramebuffer) {
		t.Fatalf("empty framebuffer: %v", err)
	}
}

func TestRGBA8Quantizes(t *testing.T) {
	d := New(1, 1)
	d.BindFramebuffer(gpu.DisplayFramebuffer)
	d.ClearColor(mgl32.Vec4{2, -1, 0.5, 1})
	d.Clear(gpu.ClearColorBit)
	px := d.ReadPixels(gpu.DisplayFramebuffer, 0)[0]
	if px[0] != 1 || px[1] != 0 || px[2] != float32(128)/255 {
		t.Fatalf("quantized = %v", px)
	}
}
