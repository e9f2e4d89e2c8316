package shader

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl32"

	"deferred-engine/internal/gpu"
	"deferred-engine/internal/software"
	"deferred-engine/shaders"
)

func TestCombine(t *testing.T) {
	tests := []struct {
		name    string
		cur     Value
		mode    Mode
		operand Value
		want    Value
		wantErr error
	}{
		{"set replaces", Float(2), Set, Float(5), Float(5), nil},
		{"set changes type", Float(2), Set, Vec2(mgl32.Vec2{1, 2}), Vec2(mgl32.Vec2{1, 2}), nil},
		{"add float", Float(2), Add, Float(0.5), Float(2.5), nil},
		{"multiply vec3", Vec3(mgl32.Vec3{1, 2, 3}), Multiply, Vec3(mgl32.Vec3{2, 2, 2}), Vec3(mgl32.Vec3{2, 4, 6}), nil},
		{"divide vec4", Vec4(mgl32.Vec4{4, 6, 8, 1}), Divide, Vec4(mgl32.Vec4{2, 3, 4, 1}), Vec4(mgl32.Vec4{2, 2, 2, 1}), nil},
		{"int division truncates", Int(7), Divide, Int(2), Int(3), nil},
		{"divide by zero", Float(1), Divide, Float(0), Float(1), ErrDivideByZero},
		{"type mismatch", Float(1), Add, Int(1), Float(1), ErrTypeMismatch},
		{"texture add", Texture(3), Add, Texture(4), Texture(3), ErrModeUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cur.Combine(tt.mode, tt.operand)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestUniformsUpdate(t *testing.T) {
	u := NewUniforms()
	if err := u.Update("tint", Vec3(mgl32.Vec3{1, 1, 1}), Multiply); err != nil {
		t.Fatal(err)
	}
	if err := u.Update("tint", Vec3(mgl32.Vec3{0.5, 2, 1}), Multiply); err != nil {
		t.Fatal(err)
	}
	if err := u.Update("exposure", Float(1), Set); err != nil {
		t.Fatal(err)
	}
	v, _ := u.Get("tint")
	if v.Vec3() != (mgl32.Vec3{0.5, 2, 1}) {
		t.Errorf("tint = %v", v.Vec3())
	}
	if err := u.Update("tint", Float(1), Add); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("mismatched add: %v", err)
	}
	if names := u.Names(); len(names) != 2 || names[0] != "tint" || names[1] != "exposure" {
		t.Errorf("names = %v", names)
	}
	u.Delete("tint")
	if _, ok := u.Get("tint"); ok || u.Len() != 1 {
		t.Errorf("delete left %v", u.Names())
	}
}

func compile(t *testing.T, dev gpu.Device, frag string) *Shader {
	t.Helper()
	s, err := Compile(dev, "test", Source{Vertex: shaders.FullscreenVert, Fragment: frag})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestCompileFailure(t *testing.T) {
	dev := software.New(1, 1)
	_, err := Compile(dev, "broken", Source{Vertex: shaders.FullscreenVert, Fragment: "not glsl"})
	if !errors.Is(err, gpu.ErrCompile) {
		t.Fatalf("err = %v, want ErrCompile", err)
	}
}

func TestBindingResolve(t *testing.T) {
	dev := software.New(1, 1)
	s := compile(t, dev, shaders.ToneMapFrag)
	b := NewBinding(s, 0)

	if _, err := b.Resolve("exposure"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Resolve("missing"); !errors.Is(err, ErrUniformNotFound) {
		t.Fatalf("missing uniform: %v", err)
	}
	if b.Cached() != 2 {
		t.Errorf("cached = %d, want hit and miss", b.Cached())
	}
}

func TestBindingInvalidation(t *testing.T) {
	dev := software.New(1, 1)
	tone := compile(t, dev, shaders.ToneMapFrag)
	invert := compile(t, dev, shaders.InvertFrag)
	b := NewBinding(tone, 0)
	if _, err := b.Resolve("exposure"); err != nil {
		t.Fatal(err)
	}

	b.Rebind(invert)
	if b.Valid() || b.Cached() != 0 {
		t.Fatal("rebind kept stale locations")
	}
	if _, err := b.Resolve("exposure"); !errors.Is(err, ErrUniformNotFound) {
		t.Fatalf("exposure resolved against invert shader: %v", err)
	}

	gen := invert.Generation()
	if err := invert.Replace(Source{Vertex: shaders.FullscreenVert, Fragment: shaders.ToneMapFrag}); err != nil {
		t.Fatal(err)
	}
	if invert.Generation() == gen {
		t.Fatal("generation unchanged after replace")
	}
	if b.Valid() {
		t.Fatal("binding still valid after recompile")
	}
	if _, err := b.Resolve("exposure"); err != nil {
		t.Fatalf("exposure after recompile: %v", err)
	}
}

func TestReplaceFailureKeepsProgram(t *testing.T) {
	dev := software.New(1, 1)
	s := compile(t, dev, shaders.CopyFrag)
	prog, gen := s.Program(), s.Generation()
	if err := s.Replace(Source{Vertex: shaders.FullscreenVert, Fragment: "void main() {}"}); err == nil {
		t.Fatal("expected failure")
	}
	if s.Program() != prog || s.Generation() != gen {
		t.Fatal("failed replace changed the shader")
	}
}

func TestUniformsApply(t *testing.T) {
	dev := software.New(1, 1)
	s := compile(t, dev, shaders.ToneMapFrag)
	b := NewBinding(s, 0)

	u := NewUniforms()
	_ = u.Update("exposure", Float(2), Set)
	_ = u.Update("nope", Float(1), Set)
	_ = u.Update("source", Texture(9), Set)

	if err := b.Begin(); err != nil {
		t.Fatal(err)
	}
	err := u.Apply(b)
	if !errors.Is(err, ErrUniformNotFound) {
		t.Fatalf("apply err = %v", err)
	}
	if v, ok := dev.Uniform(s.Program(), "exposure"); !ok || v[0] != 2 {
		t.Errorf("exposure = %v, %v", v, ok)
	}
	if v, ok := dev.Uniform(s.Program(), "source"); !ok || v[0] != 0 {
		t.Errorf("source unit = %v, %v", v, ok)
	}
}

func writeSources(t *testing.T, dir, frag string) Paths {
	t.Helper()
	p := Paths{Vertex: filepath.Join(dir, "post.vert"), Fragment: filepath.Join(dir, "post.frag")}
	if err := os.WriteFile(p.Vertex, []byte(shaders.FullscreenVert), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p.Fragment, []byte(frag), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadAndReload(t *testing.T) {
	dev := software.New(1, 1)
	paths := writeSources(t, t.TempDir(), shaders.CopyFrag)
	s, err := Load(dev, "post", paths)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Location("exposure"); !errors.Is(err, ErrUniformNotFound) {
		t.Fatalf("copy shader has exposure: %v", err)
	}
	writeSources(t, filepath.Dir(paths.Vertex), shaders.ToneMapFrag)
	if err := s.Reload(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Location("exposure"); err != nil {
		t.Fatalf("after reload: %v", err)
	}
	if _, err := Load(dev, "gone", Paths{Vertex: "/nonexistent.vert", Fragment: "/nonexistent.frag"}); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing file: %v", err)
	}
}

func TestWatcherReloads(t *testing.T) {
	dev := software.New(1, 1)
	paths := writeSources(t, t.TempDir(), shaders.CopyFrag)
	s, err := Load(dev, "post", paths)
	if err != nil {
		t.Fatal(err)
	}
	w, err := NewWatcher(log.New(io.Discard))
	if err != nil {
		t.Skipf("file watching unavailable: %v", err)
	}
	defer w.Close()
	if err := w.Add(s); err != nil {
		t.Fatal(err)
	}

	gen := s.Generation()
	writeSources(t, filepath.Dir(paths.Vertex), shaders.InvertFrag)
	deadline := time.Now().Add(5 * time.Second)
	for w.Pending() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no file event observed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := w.Apply(); err != nil {
		t.Fatal(err)
	}
	if s.Generation() == gen || s.Source().Fragment != shaders.InvertFrag {
		t.Fatal("shader not reloaded")
	}
}
