package scene

import (
	"errors"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"deferred-engine/core"
	"deferred-engine/internal/software"
	"deferred-engine/shader"
	"deferred-engine/shaders"
)

// vecNear compares component-wise by absolute difference.
func vecNear(a, b mgl32.Vec3, eps float32) bool {
	for i := range a {
		if math.Abs(float64(a[i]-b[i])) > float64(eps) {
			return false
		}
	}
	return true
}

func windowDepth(m mgl32.Mat4, p mgl32.Vec3) float32 {
	clip := m.Mul4x1(p.Vec4(1))
	return clip[2]/clip[3]*0.5 + 0.5
}

func TestProjectionIsReversed(t *testing.T) {
	cam := NewCamera(mgl32.DegToRad(60), 4.0/3.0, 0.1, 100)
	proj := cam.ProjectionMatrix()

	near := windowDepth(proj, mgl32.Vec3{0, 0, -0.1})
	far := windowDepth(proj, mgl32.Vec3{0, 0, -100})
	mid := windowDepth(proj, mgl32.Vec3{0, 0, -10})
	if math.Abs(float64(near-1)) > 1e-4 {
		t.Errorf("near plane depth = %v, want 1", near)
	}
	if math.Abs(float64(far)) > 1e-4 {
		t.Errorf("far plane depth = %v, want 0", far)
	}
	if !(mid < near && mid > far) {
		t.Errorf("depth not monotonic: near %v mid %v far %v", near, mid, far)
	}
}

func TestCameraLookAt(t *testing.T) {
	cam := NewCamera(mgl32.DegToRad(60), 1, 0.1, 100)
	cam.SetPosition(mgl32.Vec3{5, 0, 0})
	cam.LookAt(mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	if !vecNear(cam.Forward(), mgl32.Vec3{-1, 0, 0}, 1e-5) {
		t.Errorf("forward = %v", cam.Forward())
	}
	eye := cam.ViewMatrix().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if !vecNear(eye.Vec3(), mgl32.Vec3{0, 0, -5}, 1e-4) {
		t.Errorf("origin in view space = %v", eye)
	}

	cam.UpdateAspectRatio(core.Size{W: 0, H: 10})
	if cam.AspectRatio != 1 {
		t.Error("invalid size changed the aspect ratio")
	}
	cam.UpdateAspectRatio(core.Size{W: 400, H: 300})
	if cam.AspectRatio != 400.0/300.0 {
		t.Errorf("aspect = %v", cam.AspectRatio)
	}
}

func TestPrimitiveWinding(t *testing.T) {
	for _, m := range []*Mesh{CreateCube(2), CreateSphere(1, 12, 8), CreatePlane(4, 4, 3), CreateQuad()} {
		for i := 0; i+2 < len(m.Indices); i += 3 {
			a := m.Vertices[m.Indices[i]]
			b := m.Vertices[m.Indices[i+1]]
			c := m.Vertices[m.Indices[i+2]]
			n := b.Position.Sub(a.Position).Cross(c.Position.Sub(a.Position))
			if n.Len() < 1e-6 {
				continue
			}
			if n.Dot(a.Normal.Add(b.Normal).Add(c.Normal)) <= 0 {
				t.Fatalf("%s triangle %d is clockwise from outside", m.Name, i/3)
			}
		}
	}
}

func TestFromImageFlipsRows(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(1, 1, color.NRGBA{B: 255, A: 255})
	tex := FromImage(img)
	if tex.Width != 2 || tex.Height != 2 || len(tex.Pixels) != 16 {
		t.Fatalf("texture %dx%d with %d bytes", tex.Width, tex.Height, len(tex.Pixels))
	}
	// Bottom-right of the picture is the first row in memory.
	if got := tex.Pixels[4:8]; got[2] != 255 || got[0] != 0 {
		t.Errorf("bottom-right = %v", got)
	}
	if got := tex.Pixels[8:12]; got[0] != 255 || got[2] != 0 {
		t.Errorf("top-left = %v", got)
	}
}

func TestTextureUploadOnce(t *testing.T) {
	dev := software.New(2, 2)
	tex := NewSolidTexture("white", 255, 255, 255, 255)
	h1, err := tex.Upload(dev)
	if err != nil {
		t.Fatal(err)
	}
	h2, _ := tex.Upload(dev)
	if h1 != h2 || !dev.Live(h1) {
		t.Fatalf("handles %d, %d", h1, h2)
	}
	tex.Release(dev)
	if dev.Live(h1) || tex.Handle() != 0 {
		t.Error("release kept the texture")
	}
}

func geometryShader(t *testing.T, dev *software.Device) *shader.Shader {
	t.Helper()
	s, err := shader.Compile(dev, "geometry", shader.Source{Vertex: shaders.GeometryVert, Fragment: shaders.GeometryFrag})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestMaterialBind(t *testing.T) {
	dev := software.New(2, 2)
	s := geometryShader(t, dev)
	m := NewPBRMaterial("steel", s, core.Color{R: 0.5, G: 0.5, B: 0.5, A: 1}, 0.9, 0.3)
	m.AlbedoTexture = NewSolidTexture("white", 255, 255, 255, 255)

	if err := m.SetUniform("tint", shader.Float(2), shader.Set); err != nil {
		t.Fatal(err)
	}
	if err := m.SetUniform("tint", shader.Float(3), shader.Multiply); err != nil {
		t.Fatal(err)
	}
	if v, _ := m.Uniform("tint"); v.Float() != 6 {
		t.Errorf("tint = %v", v.Float())
	}

	err := m.Bind(dev)
	if !errors.Is(err, shader.ErrUniformNotFound) {
		t.Fatalf("bind err = %v, want only the missing tint", err)
	}
	prog := s.Program()
	if v, _ := dev.Uniform(prog, "metallic"); v[0] != 0.9 {
		t.Errorf("metallic = %v", v)
	}
	if v, _ := dev.Uniform(prog, "hasAlbedoTex"); v[0] != 1 {
		t.Errorf("hasAlbedoTex = %v", v)
	}
	if !dev.Live(m.AlbedoTexture.Handle()) {
		t.Error("albedo texture not uploaded")
	}

	m.ClearUniform("tint")
	if err := m.Bind(dev); err != nil {
		t.Errorf("bind after clearing tint: %v", err)
	}
}

func TestMaterialSetShader(t *testing.T) {
	dev := software.New(2, 2)
	first := geometryShader(t, dev)
	second := geometryShader(t, dev)
	m := NewMaterial("red", first, core.ColorRed)
	if err := m.Bind(dev); err != nil {
		t.Fatal(err)
	}
	if !m.Binding().Valid() {
		t.Fatal("binding invalid after bind")
	}

	m.SetShader(second)
	if m.Shader() != second || m.Binding().Valid() {
		t.Fatal("rebind kept the old cache")
	}
	if err := m.Bind(dev); err != nil {
		t.Fatal(err)
	}
	if v, ok := dev.Uniform(second.Program(), "baseColor"); !ok || v[0] != 1 {
		t.Errorf("baseColor on new program = %v", v)
	}
}

func TestDrawableHierarchy(t *testing.T) {
	parent := NewDrawable("parent", nil, nil)
	parent.SetPosition(mgl32.Vec3{10, 0, 0})
	parent.Rotate(mgl32.Vec3{0, 1, 0}, mgl32.DegToRad(90))
	child := NewDrawable("child", nil, nil)
	child.Parent = parent
	child.SetPosition(mgl32.Vec3{1, 0, 0})

	got := child.WorldMatrix().Mul4x1(mgl32.Vec4{0, 0, 0, 1}).Vec3()
	if !vecNear(got, mgl32.Vec3{10, 0, -1}, 1e-5) {
		t.Errorf("child origin = %v", got)
	}
	n := child.WorldRotation().Mul4x1(mgl32.Vec4{1, 0, 0, 0}).Vec3()
	if !vecNear(n, mgl32.Vec3{0, 0, -1}, 1e-5) {
		t.Errorf("rotated normal = %v", n)
	}
	if child.Shader() != nil {
		t.Error("drawable without material has a shader")
	}
}

func TestSceneLists(t *testing.T) {
	s := NewScene(nil)
	a, b := NewDrawable("a", nil, nil), NewDrawable("b", nil, nil)
	s.Add(a)
	s.Add(b)
	s.Remove(a)
	if len(s.Drawables) != 1 || s.Find("b") != b || s.Find("a") != nil {
		t.Errorf("drawables = %v", s.Drawables)
	}
	l := NewLight(mgl32.Vec3{}, core.ColorWhite, 1)
	s.AddLight(l)
	s.RemoveLight(l)
	if len(s.Lights) != 0 {
		t.Error("light not removed")
	}
}

func TestLoadOBJ(t *testing.T) {
	dir := t.TempDir()
	obj := `mtllib quad.mtl
o quad
v -1 -1 0
v 1 -1 0
v 1 1 0
v -1 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
usemtl red
f 1/1 2/2 3/3 4/4
o tri
v 0 0 1
v 1 0 1
v 0 1 1
f -3 -2 -1
`
	mtl := `newmtl red
Kd 1 0 0
Ns 98
Pm 0.5
illum 0
`
	if err := os.WriteFile(filepath.Join(dir, "quad.obj"), []byte(obj), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "quad.mtl"), []byte(mtl), 0o644); err != nil {
		t.Fatal(err)
	}

	drawables, err := LoadOBJ(filepath.Join(dir, "quad.obj"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(drawables) != 2 || drawables[0].Name != "quad" || drawables[1].Name != "tri" {
		t.Fatalf("drawables = %v", drawables)
	}

	quad := drawables[0].Mesh
	if len(quad.Vertices) != 4 || len(quad.Indices) != 6 {
		t.Fatalf("quad has %d vertices, %d indices", len(quad.Vertices), len(quad.Indices))
	}
	for _, v := range quad.Vertices {
		if !vecNear(v.Normal, mgl32.Vec3{0, 0, 1}, 1e-5) {
			t.Errorf("generated normal = %v", v.Normal)
		}
	}
	if quad.Vertices[2].UV != (mgl32.Vec2{1, 1}) {
		t.Errorf("uv = %v", quad.Vertices[2].UV)
	}

	tri := drawables[1].Mesh
	if tri.Vertices[0].Position != (mgl32.Vec3{0, 0, 1}) {
		t.Errorf("negative index resolved to %v", tri.Vertices[0].Position)
	}

	mat := drawables[0].Material
	if mat.Name != "red" || mat.BaseColor != core.ColorRed || mat.Metallic != 0.5 || mat.Lit {
		t.Errorf("material = %+v", mat)
	}
	if math.Abs(float64(mat.Roughness)-math.Sqrt(0.02)) > 1e-6 {
		t.Errorf("roughness = %v", mat.Roughness)
	}
	if drawables[1].Material != mat {
		t.Error("usemtl did not carry into the next object")
	}
}

func TestReadOBJWithoutFaces(t *testing.T) {
	if _, err := ReadOBJ(strings.NewReader("v 0 0 0\n"), ".", nil); err == nil {
		t.Error("accepted an obj without faces")
	}
}

func TestSceneFileRoundTrip(t *testing.T) {
	cam := NewCamera(mgl32.DegToRad(45), 1, 0.5, 50)
	cam.SetPosition(mgl32.Vec3{1, 2, 3})
	s := NewScene(cam)
	s.Sky = DefaultSky()
	s.AddLight(NewLight(mgl32.Vec3{0, 4, 0}, core.ColorYellow, 2.5))

	body := NewDrawable("body", CreateCube(1), NewPBRMaterial("body", nil, core.ColorRed, 0.2, 0.7))
	body.SetPosition(mgl32.Vec3{0, 1, 0})
	head := NewDrawable("head", CreateSphere(0.5, 8, 4), NewMaterial("head", nil, core.ColorBlue))
	head.Material.Lit = false
	head.Parent = body
	head.SetScale(mgl32.Vec3{2, 2, 2})
	s.Add(body)
	s.Add(head)

	path := filepath.Join(t.TempDir(), "scene.toml")
	if err := SaveScene(s, path); err != nil {
		t.Fatal(err)
	}
	got, err := LoadScene(path, nil)
	if err != nil {
		t.Fatal(err)
	}

	if got.Camera == nil || got.Camera.Position != cam.Position || got.Camera.FarPlane != 50 {
		t.Errorf("camera = %+v", got.Camera)
	}
	if *got.Sky != *s.Sky {
		t.Errorf("sky = %+v", got.Sky)
	}
	if len(got.Lights) != 1 || got.Lights[0].Intensity != 2.5 || got.Lights[0].Color != core.ColorYellow {
		t.Errorf("lights = %+v", got.Lights)
	}
	if len(got.Drawables) != 2 {
		t.Fatalf("%d drawables", len(got.Drawables))
	}
	b, h := got.Find("body"), got.Find("head")
	if b == nil || h == nil || h.Parent != b {
		t.Fatal("hierarchy lost")
	}
	if b.Mesh.Name != "Cube" || h.Mesh.Name != "Sphere" {
		t.Errorf("meshes %s, %s", b.Mesh.Name, h.Mesh.Name)
	}
	if b.Material.Metallic != 0.2 || b.Material.Roughness != 0.7 || b.Material.BaseColor != core.ColorRed {
		t.Errorf("body material = %+v", b.Material)
	}
	if h.Material.Lit || h.Transform.Scale != (mgl32.Vec3{2, 2, 2}) {
		t.Errorf("head = %+v", h)
	}
	if b.Transform.Rotation != mgl32.QuatIdent() {
		t.Errorf("rotation = %v", b.Transform.Rotation)
	}
}

func TestSceneFileUnknownParent(t *testing.T) {
	f := File{Version: 1, Drawables: []DrawableRecord{{Name: "a", Parent: "missing", Mesh: "cube"}}}
	if _, err := f.Build(".", nil); err == nil {
		t.Error("built a drawable with an unknown parent")
	}
}
