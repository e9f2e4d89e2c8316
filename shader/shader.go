// Package shader owns compiled programs and the uniform state that feeds them.
//
// A Shader wraps one device program. Consumers never cache raw locations;
// they go through a Binding, which memoizes locations for one shader and
// drops the cache whenever the consumer is rebound or the shader is
// recompiled in place.
package shader

import (
	"errors"
	"fmt"
	"os"

	"deferred-engine/internal/gpu"
)

// Source is the GLSL text of one program.
type Source = gpu.ShaderSource

// Paths names the files a Source is read from. Geometry is optional.
type Paths struct {
	Vertex   string
	Fragment string
	Geometry string
}

// ErrUniformNotFound is returned when a program does not declare a uniform,
// or the driver optimized it away.
var ErrUniformNotFound = errors.New("uniform not found")

// Shader is a compiled program on one device.
type Shader struct {
	Name string

	dev        gpu.Device
	program    gpu.Program
	src        Source
	paths      Paths
	generation uint64
}

// Compile builds a program from source. Failures wrap gpu.ErrCompile,
// gpu.ErrLink or gpu.ErrCreateProgram.
func Compile(dev gpu.Device, name string, src Source) (*Shader, error) {
	program, err := dev.CompileProgram(src)
	if err != nil {
		return nil, fmt.Errorf("shader %q: %w", name, err)
	}
	return &Shader{Name: name, dev: dev, program: program, src: src, generation: 1}, nil
}

// Load reads and compiles the files in paths. The shader remembers the paths
// so Reload and Watcher can rebuild it.
func Load(dev gpu.Device, name string, paths Paths) (*Shader, error) {
	src, err := readSource(paths)
	if err != nil {
		return nil, fmt.Errorf("shader %q: %w", name, err)
	}
	s, err := Compile(dev, name, src)
	if err != nil {
		return nil, err
	}
	s.paths = paths
	return s, nil
}

func readSource(paths Paths) (Source, error) {
	var src Source
	vert, err := os.ReadFile(paths.Vertex)
	if err != nil {
		return src, fmt.Errorf("read vertex stage: %w", err)
	}
	frag, err := os.ReadFile(paths.Fragment)
	if err != nil {
		return src, fmt.Errorf("read fragment stage: %w", err)
	}
	src.Vertex, src.Fragment = string(vert), string(frag)
	if paths.Geometry != "" {
		geom, err := os.ReadFile(paths.Geometry)
		if err != nil {
			return src, fmt.Errorf("read geometry stage: %w", err)
		}
		src.Geometry = string(geom)
	}
	return src, nil
}

func (s *Shader) Program() gpu.Program { return s.program }
func (s *Shader) Source() Source       { return s.src }
func (s *Shader) Paths() Paths         { return s.paths }

// Generation changes every time the program is replaced. Bindings compare it
// to decide whether their cached locations are stale.
func (s *Shader) Generation() uint64 { return s.generation }

func (s *Shader) Use() { s.dev.UseProgram(s.program) }

// Location asks the device for name's location.
func (s *Shader) Location(name string) (gpu.Location, error) {
	loc := s.dev.UniformLocation(s.program, name)
	if loc == gpu.NoLocation {
		return loc, fmt.Errorf("shader %q: %w: %s", s.Name, ErrUniformNotFound, name)
	}
	return loc, nil
}

// Replace recompiles from src. On failure the previous program stays active.
func (s *Shader) Replace(src Source) error {
	program, err := s.dev.CompileProgram(src)
	if err != nil {
		return fmt.Errorf("shader %q: %w", s.Name, err)
	}
	s.dev.DeleteProgram(s.program)
	s.program = program
	s.src = src
	s.generation++
	return nil
}

// Reload re-reads the shader's files and recompiles.
func (s *Shader) Reload() error {
	if s.paths.Vertex == "" {
		return fmt.Errorf("shader %q was not loaded from files", s.Name)
	}
	src, err := readSource(s.paths)
	if err != nil {
		return fmt.Errorf("shader %q: %w", s.Name, err)
	}
	return s.Replace(src)
}

func (s *Shader) Delete() {
	s.dev.DeleteProgram(s.program)
	s.program = 0
}
