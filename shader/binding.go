package shader

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"deferred-engine/internal/gpu"
)

// Binding caches uniform locations for one consumer (a material, a pass, a
// post stage) against the shader it is currently bound to.
type Binding struct {
	shader     *Shader
	generation uint64
	locs       map[string]gpu.Location
	firstUnit  int
	unit       int
}

// NewBinding returns a binding for s. Texture values use units from
// firstUnit upwards.
func NewBinding(s *Shader, firstUnit int) *Binding {
	return &Binding{shader: s, firstUnit: firstUnit}
}

func (b *Binding) Shader() *Shader { return b.shader }

// Rebind points the binding at s and discards every cached location.
func (b *Binding) Rebind(s *Shader) {
	b.shader = s
	b.locs = nil
}

// Valid reports whether the cache matches the current program.
func (b *Binding) Valid() bool {
	return b.locs != nil && b.shader != nil && b.generation == b.shader.Generation()
}

// Begin makes the shader's program current and resets texture unit
// allocation. Call it before a batch of Set calls.
func (b *Binding) Begin() error {
	if b.shader == nil {
		return fmt.Errorf("binding has no shader")
	}
	b.shader.Use()
	b.unit = b.firstUnit
	return nil
}

// Resolve returns the cached location of name, resolving it on first use.
// Misses are cached too, so a missing uniform is only looked up once per
// program generation.
func (b *Binding) Resolve(name string) (gpu.Location, error) {
	if b.shader == nil {
		return gpu.NoLocation, fmt.Errorf("resolve %q: binding has no shader", name)
	}
	if !b.Valid() {
		b.locs = make(map[string]gpu.Location)
		b.generation = b.shader.Generation()
	}
	loc, ok := b.locs[name]
	if !ok {
		loc = b.shader.dev.UniformLocation(b.shader.program, name)
		b.locs[name] = loc
	}
	if loc == gpu.NoLocation {
		return loc, fmt.Errorf("shader %q: %w: %s", b.shader.Name, ErrUniformNotFound, name)
	}
	return loc, nil
}

// Set uploads v to name. The program must already be current (see Begin).
func (b *Binding) Set(name string, v Value) error {
	loc, err := b.Resolve(name)
	if err != nil {
		return err
	}
	v.upload(b.shader.dev, loc, b.nextUnit)
	return nil
}

// SetFloats uploads an array uniform starting at element 0.
func (b *Binding) SetFloats(name string, v []float32) error {
	loc, err := b.Resolve(name)
	if err != nil {
		return err
	}
	b.shader.dev.Uniform1fv(loc, v)
	return nil
}

func (b *Binding) SetVec3s(name string, v []mgl32.Vec3) error {
	loc, err := b.Resolve(name)
	if err != nil {
		return err
	}
	b.shader.dev.Uniform3fv(loc, v)
	return nil
}

func (b *Binding) nextUnit() int {
	u := b.unit
	b.unit++
	return u
}

// Cached is the number of names currently memoized, hits and misses.
func (b *Binding) Cached() int { return len(b.locs) }
