// Package renderer runs the deferred pipeline for one window: a geometry
// pass into the G-buffer, a sky pass behind it, deferred lighting into the
// lit image, an ordered post-processing chain, and presentation with a
// one-frame feedback copy.
package renderer

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"deferred-engine/core"
	"deferred-engine/internal/gpu"
	"deferred-engine/shader"
	"deferred-engine/shaders"
)

// G-buffer color attachments.
const (
	AttachAlbedo = iota
	AttachNormal
	AttachPosition
	AttachMaterial
)

// Options configures a RenderContext.
type Options struct {
	Size        core.Size
	Background  core.Color
	Ambient     core.Color
	ExitOnError bool
	// Logger defaults to the process logger.
	Logger *log.Logger
	// Exit defaults to os.Exit.
	Exit func(code int)
}

// OptionsFromConfig maps the engine config onto context options.
func OptionsFromConfig(cfg core.Config) Options {
	return Options{
		Size:        core.Size{W: cfg.Window.Width, H: cfg.Window.Height},
		Background:  cfg.BackgroundColor(),
		Ambient:     cfg.AmbientColor(),
		ExitOnError: cfg.ExitOnError,
	}
}

// RenderContext owns every GPU resource and piece of pipeline state for one
// window. Nothing in this package is shared between contexts.
type RenderContext struct {
	Background core.Color
	Ambient    core.Color

	dev    gpu.Device
	id     uuid.UUID
	policy *Policy
	logger *log.Logger
	size   core.Size

	gbuffer   *Target
	lit       *Target
	post      [2]*Target
	lastFrame *Target

	sky      *shader.Shader
	lighting *shader.Shader

	skyBinding   *shader.Binding
	lightBinding *shader.Binding
	postBinding  *shader.Binding

	stages       []Stage
	warnedLights bool
}

var (
	gbufferSpec = TargetSpec{
		Name:  "gbuffer",
		Color: []gpu.TextureFormat{gpu.FormatRGBA8, gpu.FormatRGBA16F, gpu.FormatRGBA32F, gpu.FormatRGBA8},
		Depth: true,
	}
	litSpec       = TargetSpec{Name: "lit", Color: []gpu.TextureFormat{gpu.FormatRGBA16F}}
	pingSpec      = TargetSpec{Name: "post-ping", Color: []gpu.TextureFormat{gpu.FormatRGBA16F}}
	pongSpec      = TargetSpec{Name: "post-pong", Color: []gpu.TextureFormat{gpu.FormatRGBA16F}}
	lastFrameSpec = TargetSpec{Name: "last-frame", Color: []gpu.TextureFormat{gpu.FormatRGBA8}}
)

// NewRenderContext allocates the pipeline's targets and built-in programs on
// dev. Failures are reported through the context's policy before returning.
func NewRenderContext(dev gpu.Device, opts Options) (*RenderContext, error) {
	logger := opts.Logger
	if logger == nil {
		logger = core.Logger()
	}
	id := uuid.New()
	logger = logger.With("window", id.String()[:8])

	policy := NewPolicy(opts.ExitOnError, logger)
	if opts.Exit != nil {
		policy.Exit = opts.Exit
	}

	c := &RenderContext{
		Background: opts.Background,
		Ambient:    opts.Ambient,
		dev:        dev,
		id:         id,
		policy:     policy,
		logger:     logger,
		size:       opts.Size,
	}
	if err := c.init(); err != nil {
		policy.Handle(err)
		c.Release()
		return nil, err
	}
	logger.Info("render context ready", "size", opts.Size)
	return c, nil
}

func (c *RenderContext) init() error {
	var err error
	if c.gbuffer, err = c.CreateTarget(gbufferSpec, c.size); err != nil {
		return err
	}
	if c.lit, err = c.CreateTarget(litSpec, c.size); err != nil {
		return err
	}
	if c.post[0], err = c.CreateTarget(pingSpec, c.size); err != nil {
		return err
	}
	if c.post[1], err = c.CreateTarget(pongSpec, c.size); err != nil {
		return err
	}
	if c.lastFrame, err = c.CreateTarget(lastFrameSpec, c.size); err != nil {
		return err
	}

	if c.sky, err = shader.Compile(c.dev, "sky", shader.Source{Vertex: shaders.FullscreenVert, Fragment: shaders.SkyFrag}); err != nil {
		return newError("compile sky", KindFatal, err)
	}
	if c.lighting, err = shader.Compile(c.dev, "lighting", shader.Source{Vertex: shaders.FullscreenVert, Fragment: shaders.LightingFrag}); err != nil {
		return newError("compile lighting", KindFatal, err)
	}
	c.skyBinding = shader.NewBinding(c.sky, 0)
	c.lightBinding = shader.NewBinding(c.lighting, 0)
	c.postBinding = shader.NewBinding(nil, 0)
	return nil
}

func (c *RenderContext) targets() []*Target {
	return []*Target{c.gbuffer, c.lit, c.post[0], c.post[1], c.lastFrame}
}

func (c *RenderContext) ID() uuid.UUID       { return c.id }
func (c *RenderContext) Device() gpu.Device  { return c.dev }
func (c *RenderContext) Policy() *Policy     { return c.policy }
func (c *RenderContext) Logger() *log.Logger { return c.logger }
func (c *RenderContext) Size() core.Size     { return c.size }

// GBuffer is the geometry pass output.
func (c *RenderContext) GBuffer() *Target { return c.gbuffer }

// LitTarget holds the lighting pass output.
func (c *RenderContext) LitTarget() *Target { return c.lit }

// LastFrameTarget holds a copy of the previously displayed image.
func (c *RenderContext) LastFrameTarget() *Target { return c.lastFrame }

// Read-only image handles for post stages and tooling.
func (c *RenderContext) Albedo() gpu.Texture        { return c.gbuffer.Color(AttachAlbedo) }
func (c *RenderContext) Normal() gpu.Texture        { return c.gbuffer.Color(AttachNormal) }
func (c *RenderContext) Position() gpu.Texture      { return c.gbuffer.Color(AttachPosition) }
func (c *RenderContext) MaterialProps() gpu.Texture { return c.gbuffer.Color(AttachMaterial) }
func (c *RenderContext) Depth() gpu.Texture         { return c.gbuffer.Depth() }
func (c *RenderContext) Lit() gpu.Texture           { return c.lit.Color(0) }
func (c *RenderContext) LastFrame() gpu.Texture     { return c.lastFrame.Color(0) }

// Resize is the window-resize notification. Every target of the context is
// resized in place; an invalid size leaves them all untouched.
func (c *RenderContext) Resize(width, height int) {
	size := core.Size{W: width, H: height}
	if !size.Valid() {
		c.policy.Handle(newError("resize", KindRecoverable, fmt.Errorf("%w: got %dx%d", ErrInvalidSize, width, height)))
		return
	}
	for _, t := range c.targets() {
		if !c.policy.Handle(t.Resize(size)) {
			return
		}
	}
	c.size = size
	c.logger.Debug("resized", "size", size)
}

// Release frees every target and built-in program.
func (c *RenderContext) Release() {
	for _, t := range c.targets() {
		if t != nil {
			t.Release()
		}
	}
	if c.sky != nil {
		c.sky.Delete()
	}
	if c.lighting != nil {
		c.lighting.Delete()
	}
}
