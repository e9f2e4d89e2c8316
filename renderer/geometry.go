package renderer

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"deferred-engine/internal/gpu"
	"deferred-engine/scene"
	"deferred-engine/shader"
)

// geometryPass fills the G-buffer with s's drawables, in list order.
//
// A drawable without a material is drawn with whatever program is current
// and without per-draw matrices; nothing validates that case.
func (c *RenderContext) geometryPass(s *scene.Scene) error {
	if s.Camera == nil {
		return newError("geometry pass", KindRecoverable, ErrNoCamera)
	}
	if err := c.gbuffer.Bind(c); err != nil {
		return err
	}
	dev := c.dev

	// Channel 0 clears to the background, the rest to zero, depth to far.
	dev.DrawBuffers(AttachAlbedo)
	dev.ClearColor(c.Background.Vec4())
	dev.Clear(gpu.ClearColorBit)
	dev.DrawBuffers(AttachNormal, AttachPosition, AttachMaterial)
	dev.ClearColor(mgl32.Vec4{})
	dev.Clear(gpu.ClearColorBit)
	dev.ClearDepth(DepthFar)
	dev.SetDepthMask(true)
	dev.Clear(gpu.ClearDepthBit)

	dev.DrawBuffers(AttachAlbedo, AttachNormal, AttachPosition, AttachMaterial)
	dev.SetDepthTest(true)
	dev.SetDepthFunc(gpu.DepthGreater)

	viewProj := s.Camera.ViewProjectionMatrix()
	for _, d := range s.Drawables {
		c.policy.Handle(c.draw(d, viewProj))
	}
	return nil
}

func (c *RenderContext) draw(d *scene.Drawable, viewProj mgl32.Mat4) error {
	if d.Mesh == nil {
		return newError("draw "+d.Name, KindRecoverable, errors.New("drawable has no mesh"))
	}
	mesh, err := d.Mesh.Upload(c.dev)
	if err != nil {
		return newError("draw "+d.Name, KindRecoverable, err)
	}

	var errs []error
	if d.Material != nil {
		if err := d.Material.Bind(c.dev); err != nil {
			if Classify(err) != KindSilent {
				return fmt.Errorf("draw %s: %w", d.Name, err)
			}
			errs = append(errs, err)
		}
		model := d.WorldMatrix()
		b := d.Material.Binding()
		errs = append(errs,
			b.Set("model", shader.Mat4(model)),
			b.Set("mvp", shader.Mat4(viewProj.Mul4(model))),
			b.Set("rotation", shader.Mat4(d.WorldRotation())),
		)
	}
	c.dev.DrawIndexed(mesh)
	return errors.Join(errs...)
}
