package renderer

import (
	"errors"

	"deferred-engine/internal/gpu"
	"deferred-engine/scene"
	"deferred-engine/shader"
)

// Depth runs reversed: the buffer clears to DepthFar and a fragment passes
// when its depth is greater than the stored value. SkyDepth is the smallest
// normal float32 above DepthFar, so the sky passes only where the depth was
// left at DepthFar. Geometry at the far plane rasterizes to DepthFar or to a
// value well above SkyDepth.
const (
	DepthFar float32 = 0
	SkyDepth float32 = 0x1p-126
)

// skyPass paints s.Sky into G-buffer channel 0 behind the geometry. Depth
// writes are off and the front face is flipped to clockwise for the pass;
// both are restored before returning. No pass enables face culling, so the
// winding is recorded state only and does not change which pixels the sky
// covers.
func (c *RenderContext) skyPass(s *scene.Scene) error {
	if s.Sky == nil {
		return nil
	}
	if s.Camera == nil {
		return newError("sky pass", KindRecoverable, ErrNoCamera)
	}
	if err := c.gbuffer.Bind(c); err != nil {
		return err
	}
	dev := c.dev
	dev.DrawBuffers(AttachAlbedo)
	dev.SetDepthTest(true)
	dev.SetDepthFunc(gpu.DepthGreater)
	dev.SetDepthMask(false)
	dev.SetFrontFace(gpu.Clockwise)
	defer func() {
		dev.SetFrontFace(gpu.CounterClockwise)
		dev.SetDepthMask(true)
		dev.DrawBuffers(AttachAlbedo, AttachNormal, AttachPosition, AttachMaterial)
	}()

	b := c.skyBinding
	if err := b.Begin(); err != nil {
		return newError("sky pass", KindFatal, err)
	}
	cam := s.Camera
	invViewProj := cam.ProjectionMatrix().Mul4(cam.ViewRotation()).Inv()
	err := errors.Join(
		b.Set("depth", shader.Float(SkyDepth)),
		b.Set("invViewProj", shader.Mat4(invViewProj)),
		b.Set("zenith", shader.Vec3(s.Sky.Zenith.Vec3())),
		b.Set("horizon", shader.Vec3(s.Sky.Horizon.Vec3())),
		b.Set("ground", shader.Vec3(s.Sky.Ground.Vec3())),
	)
	c.policy.Handle(err)
	dev.DrawFullscreen()
	return nil
}
