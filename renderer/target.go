package renderer

import (
	"fmt"

	"github.com/google/uuid"

	"deferred-engine/core"
	"deferred-engine/internal/gpu"
)

// Attachment is one image of a Target. Borrowed attachments are supplied by
// the caller and are never resized or deleted by the target.
type Attachment struct {
	Texture gpu.Texture
	Format  gpu.TextureFormat
	Owned   bool
}

// Target is a framebuffer with its image buffers, tagged with the window
// that created it.
type Target struct {
	Name string

	dev    gpu.Device
	window uuid.UUID
	fb     gpu.Framebuffer
	color  []Attachment
	depth  *Attachment
	size   core.Size
}

// TargetSpec lists the color formats of a target, attached in order, and
// whether it carries a depth buffer.
type TargetSpec struct {
	Name  string
	Color []gpu.TextureFormat
	Depth bool
}

// CreateTarget allocates a framebuffer and owned image buffers of size.
// A size below 1x1 is recoverable and creates nothing; an incomplete
// framebuffer is fatal.
func (c *RenderContext) CreateTarget(spec TargetSpec, size core.Size) (*Target, error) {
	op := "create target " + spec.Name
	if !size.Valid() {
		return nil, newError(op, KindRecoverable, fmt.Errorf("%w: got %dx%d", ErrInvalidSize, size.W, size.H))
	}
	t := &Target{Name: spec.Name, dev: c.dev, window: c.id, size: size}
	t.fb = c.dev.CreateFramebuffer()
	for i, format := range spec.Color {
		tex, err := c.dev.CreateTexture(gpu.TextureDesc{Width: size.W, Height: size.H, Format: format})
		if err != nil {
			t.Release()
			return nil, newError(op, KindFatal, err)
		}
		t.color = append(t.color, Attachment{Texture: tex, Format: format, Owned: true})
		c.dev.AttachColor(t.fb, i, tex)
	}
	if spec.Depth {
		tex, err := c.dev.CreateTexture(gpu.TextureDesc{Width: size.W, Height: size.H, Format: gpu.FormatDepth32F})
		if err != nil {
			t.Release()
			return nil, newError(op, KindFatal, err)
		}
		t.depth = &Attachment{Texture: tex, Format: gpu.FormatDepth32F, Owned: true}
		c.dev.AttachDepth(t.fb, tex)
	}
	if err := c.dev.CheckFramebuffer(t.fb); err != nil {
		t.Release()
		return nil, newError(op, KindFatal, err)
	}
	c.logger.Debug("target created", "target", spec.Name, "size", fmt.Sprintf("%dx%d", size.W, size.H))
	return t, nil
}

// BorrowTarget wraps an existing texture in a framebuffer. The texture stays
// owned by the caller.
func (c *RenderContext) BorrowTarget(name string, tex gpu.Texture, format gpu.TextureFormat) (*Target, error) {
	op := "borrow target " + name
	w, h := c.dev.TextureSize(tex)
	size := core.Size{W: w, H: h}
	if !size.Valid() {
		return nil, newError(op, KindRecoverable, fmt.Errorf("%w: texture %d is %dx%d", ErrInvalidSize, tex, w, h))
	}
	t := &Target{Name: name, dev: c.dev, window: c.id, size: size}
	t.fb = c.dev.CreateFramebuffer()
	t.color = []Attachment{{Texture: tex, Format: format}}
	c.dev.AttachColor(t.fb, 0, tex)
	if err := c.dev.CheckFramebuffer(t.fb); err != nil {
		t.Release()
		return nil, newError(op, KindFatal, err)
	}
	return t, nil
}

func (t *Target) Size() core.Size              { return t.size }
func (t *Target) Framebuffer() gpu.Framebuffer { return t.fb }
func (t *Target) Window() uuid.UUID            { return t.window }
func (t *Target) Attachments() int             { return len(t.color) }

// Color returns the texture of color attachment i, or 0.
func (t *Target) Color(i int) gpu.Texture {
	if i < 0 || i >= len(t.color) {
		return 0
	}
	return t.color[i].Texture
}

// Depth returns the depth texture, or 0 when the target has none.
func (t *Target) Depth() gpu.Texture {
	if t.depth == nil {
		return 0
	}
	return t.depth.Texture
}

// Resize reallocates every owned image in place; handles stay the same.
func (t *Target) Resize(size core.Size) error {
	op := "resize target " + t.Name
	if !size.Valid() {
		return newError(op, KindRecoverable, fmt.Errorf("%w: got %dx%d", ErrInvalidSize, size.W, size.H))
	}
	if size == t.size {
		return nil
	}
	for _, a := range t.owned() {
		if err := t.dev.ResizeTexture(a.Texture, size.W, size.H); err != nil {
			return newError(op, KindFatal, err)
		}
	}
	t.size = size
	if err := t.dev.CheckFramebuffer(t.fb); err != nil {
		return newError(op, KindFatal, err)
	}
	return nil
}

func (t *Target) owned() []Attachment {
	var out []Attachment
	for _, a := range t.color {
		if a.Owned {
			out = append(out, a)
		}
	}
	if t.depth != nil && t.depth.Owned {
		out = append(out, *t.depth)
	}
	return out
}

// Bind makes t the draw framebuffer for c, with the viewport covering it.
// Binding a target created by another window is recoverable and binds
// nothing.
func (t *Target) Bind(c *RenderContext) error {
	if t.window != c.id {
		return newError("bind target "+t.Name, KindRecoverable,
			fmt.Errorf("%w: created by %s, used by %s", ErrWrongContext, t.window, c.id))
	}
	t.dev.BindFramebuffer(t.fb)
	t.dev.Viewport(t.size.W, t.size.H)
	return nil
}

// Release deletes the framebuffer and owned images. Borrowed images survive.
func (t *Target) Release() {
	for _, a := range t.owned() {
		t.dev.DeleteTexture(a.Texture)
	}
	t.dev.DeleteFramebuffer(t.fb)
	t.color, t.depth = nil, nil
}
