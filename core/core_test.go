package core

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl32"
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

func TestParseConfigKeepsDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
target_fps = 30
post_process = ["grayscale", "invert"]

[window]
width = 800
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TargetFPS != 30 || cfg.Window.Width != 800 {
		t.Errorf("parsed values lost: %+v", cfg)
	}
	if cfg.Window.Height != DefaultWindowConfig().Height || cfg.Window.Title != "Deferred Engine" {
		t.Errorf("defaults lost: %+v", cfg.Window)
	}
	if len(cfg.PostProcess) != 2 || cfg.PostProcess[1] != "invert" {
		t.Errorf("post_process = %v", cfg.PostProcess)
	}
	if cfg.BackgroundColor() != (Color{R: 0.1, G: 0.1, B: 0.12, A: 1}) {
		t.Errorf("background = %v", cfg.BackgroundColor())
	}
}

func TestParseConfigRejects(t *testing.T) {
	for _, doc := range []string{
		"target_fps = 0",
		"[window]\nwidth = -1",
		"target_fps = \"fast\"",
	} {
		if _, err := ParseConfig([]byte(doc)); err == nil {
			t.Errorf("accepted %q", doc)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(filepath.Join(dir, "missing.toml"))
	if err != nil || cfg.TargetFPS != DefaultConfig().TargetFPS {
		t.Fatalf("missing file: %+v, %v", cfg, err)
	}

	path := filepath.Join(dir, "engine.toml")
	if err := os.WriteFile(path, []byte("exit_on_error = true\nambient = [0.5, 0.25, 0]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.ExitOnError || cfg.AmbientColor() != (Color{R: 0.5, G: 0.25, B: 0, A: 1}) {
		t.Errorf("loaded %+v", cfg)
	}
}

func TestInputTransitions(t *testing.T) {
	in := NewInput()
	in.KeyDown(1)
	in.KeyDown(1)
	if !in.WasPressed(1) || !in.IsDown(1) {
		t.Fatal("press not recorded")
	}
	in.EndTick()
	if in.WasPressed(1) || !in.IsDown(1) {
		t.Error("EndTick cleared held state or kept the transition")
	}
	in.KeyUp(1)
	in.KeyUp(2)
	if !in.WasReleased(1) || in.WasReleased(2) || in.IsDown(1) {
		t.Error("release transitions wrong")
	}
}

func TestSize(t *testing.T) {
	tests := []struct {
		size   Size
		valid  bool
		aspect float32
	}{
		{Size{W: 800, H: 600}, true, 800.0 / 600.0},
		{Size{W: 1, H: 1}, true, 1},
		{Size{W: 0, H: 600}, false, 0},
		{Size{W: 10, H: 0}, false, 1},
	}
	for _, tt := range tests {
		if tt.size.Valid() != tt.valid {
			t.Errorf("%v.Valid() = %v", tt.size, tt.size.Valid())
		}
		if tt.size.Aspect() != tt.aspect {
			t.Errorf("%v.Aspect() = %v, want %v", tt.size, tt.size.Aspect(), tt.aspect)
		}
	}
}

func TestTransformMatrix(t *testing.T) {
	tr := NewTransform()
	tr.Position = mgl32.Vec3{1, 2, 3}
	tr.Scale = mgl32.Vec3{2, 2, 2}
	tr.Rotation = mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})

	got := tr.Matrix().Mul4x1(mgl32.Vec4{1, 0, 0, 1}).Vec3()
	want := mgl32.Vec3{1, 2, 1}
	if !vecNear(got, want, 1e-5) {
		t.Errorf("transformed point = %v, want %v", got, want)
	}
	if !vecNear(tr.Forward(), mgl32.Vec3{-1, 0, 0}, 1e-5) {
		t.Errorf("forward = %v", tr.Forward())
	}
}

func TestClamp(t *testing.T) {
	if Clamp(5, 0, 3) != 3 || Clamp(-1, 0, 3) != 0 || Clamp(2, 0, 3) != 2 {
		t.Error("int clamp")
	}
	if Clamp(float32(1.5), -1, 1) != 1 {
		t.Error("float clamp")
	}
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, log.WarnLevel)
	l.Info("hidden")
	l.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("log output: %q", buf.String())
	}
}
