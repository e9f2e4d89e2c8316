package renderer

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"deferred-engine/internal/gpu"
	"deferred-engine/shader"
	"deferred-engine/shaders"
)

// Stage is one post-processing step. Shader returns the program that turns
// source into the stage's output; it is called once per frame.
type Stage interface {
	Shader(source gpu.Texture) (*shader.Shader, error)
}

// UniformStage is implemented by stages carrying custom uniforms. They are
// applied after the chain's defaults, source and windowSize.
type UniformStage interface {
	Stage
	Uniforms() *shader.Uniforms
}

// ShaderStage runs a precompiled shader.
type ShaderStage struct {
	shader   *shader.Shader
	uniforms *shader.Uniforms
}

func NewShaderStage(s *shader.Shader) *ShaderStage {
	return &ShaderStage{shader: s, uniforms: shader.NewUniforms()}
}

func (st *ShaderStage) Shader(gpu.Texture) (*shader.Shader, error) { return st.shader, nil }
func (st *ShaderStage) Uniforms() *shader.Uniforms                 { return st.uniforms }

func (st *ShaderStage) SetUniform(name string, v shader.Value, mode shader.Mode) error {
	return st.uniforms.Update(name, v, mode)
}

// FuncStage synthesizes its shader every frame from the source image. The
// function owns the shaders it returns.
type FuncStage struct {
	Fn       func(source gpu.Texture) (*shader.Shader, error)
	uniforms *shader.Uniforms
}

func NewFuncStage(fn func(source gpu.Texture) (*shader.Shader, error)) *FuncStage {
	return &FuncStage{Fn: fn, uniforms: shader.NewUniforms()}
}

func (st *FuncStage) Shader(source gpu.Texture) (*shader.Shader, error) { return st.Fn(source) }
func (st *FuncStage) Uniforms() *shader.Uniforms                        { return st.uniforms }

func (st *FuncStage) SetUniform(name string, v shader.Value, mode shader.Mode) error {
	return st.uniforms.Update(name, v, mode)
}

// AddStage appends st to the chain.
func (c *RenderContext) AddStage(st Stage) { c.stages = append(c.stages, st) }

// RemoveStage drops the first occurrence of st.
func (c *RenderContext) RemoveStage(st Stage) {
	if i := slices.Index(c.stages, st); i >= 0 {
		c.stages = slices.Delete(c.stages, i, i+1)
	}
}

func (c *RenderContext) ClearStages() { c.stages = nil }

// Stages returns a copy of the chain in execution order.
func (c *RenderContext) Stages() []Stage { return slices.Clone(c.stages) }

var builtinStages = map[string]string{
	"invert":    shaders.InvertFrag,
	"grayscale": shaders.GrayscaleFrag,
	"tonemap":   shaders.ToneMapFrag,
}

// BuiltinStage compiles one of the bundled post effects: "invert",
// "grayscale" or "tonemap". The tone mapper starts with exposure 1.
func (c *RenderContext) BuiltinStage(name string) (*ShaderStage, error) {
	frag, ok := builtinStages[name]
	if !ok {
		return nil, newError("post stage "+name, KindRecoverable, fmt.Errorf("unknown built-in stage %q", name))
	}
	s, err := shader.Compile(c.dev, name, shader.Source{Vertex: shaders.FullscreenVert, Fragment: frag})
	if err != nil {
		return nil, newError("post stage "+name, KindFatal, err)
	}
	st := NewShaderStage(s)
	if name == "tonemap" {
		_ = st.SetUniform("exposure", shader.Float(1), shader.Set)
	}
	return st, nil
}

// postPass runs the chain over the lit image and returns the target holding
// the final image. Stages ping-pong between two targets; the first reads the
// lit image. An empty chain returns the lit target itself. A stage that
// fails is skipped and the next one reads what it would have read.
func (c *RenderContext) postPass() (*Target, error) {
	src := c.lit
	ran := 0
	for i, st := range c.stages {
		s, err := st.Shader(src.Color(0))
		if err != nil {
			c.policy.Handle(newError(fmt.Sprintf("post stage %d", i), Classify(err), err))
			continue
		}
		if s == nil {
			continue
		}
		dst := c.post[ran%2]
		if err := dst.Bind(c); err != nil {
			return src, err
		}
		c.dev.DrawBuffers(0)
		c.dev.SetDepthTest(false)

		b := c.postBinding
		if b.Shader() != s {
			b.Rebind(s)
		}
		if err := b.Begin(); err != nil {
			return src, newError(fmt.Sprintf("post stage %d", i), KindFatal, err)
		}
		size := dst.Size()
		errs := []error{
			b.Set("source", shader.Texture(src.Color(0))),
			b.Set("windowSize", shader.Vec2(mgl32.Vec2{float32(size.W), float32(size.H)})),
		}
		if us, ok := st.(UniformStage); ok {
			errs = append(errs, us.Uniforms().Apply(b))
		}
		c.policy.Handle(errors.Join(errs...))
		c.dev.DrawFullscreen()
		c.dev.SetDepthTest(true)

		src = dst
		ran++
	}
	return src, nil
}
