package renderer

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"

	"deferred-engine/scene"
	"deferred-engine/shader"
	"deferred-engine/shaders"
)

// lightingPass resolves the G-buffer into the lit image. With no lights the
// albedo channel is blitted across unchanged and the lighting program never
// runs.
//
// Light arrays are uploaded whole with the true count. The program declares
// shaders.MaxLights elements and the device drops anything beyond; the first
// time that happens a warning is logged.
func (c *RenderContext) lightingPass(s *scene.Scene) error {
	if err := c.lit.Bind(c); err != nil {
		return err
	}
	dev := c.dev
	size := c.lit.Size()

	if len(s.Lights) == 0 {
		dev.Blit(c.gbuffer.Framebuffer(), AttachAlbedo, size.W, size.H, c.lit.Framebuffer(), size.W, size.H)
		return nil
	}
	if s.Camera == nil {
		return newError("lighting pass", KindRecoverable, ErrNoCamera)
	}
	if len(s.Lights) > shaders.MaxLights && !c.warnedLights {
		c.logger.Warn("light count exceeds shader capacity; extra lights are ignored",
			"lights", len(s.Lights), "max", shaders.MaxLights)
		c.warnedLights = true
	}

	dev.DrawBuffers(0)
	dev.SetDepthTest(false)
	defer dev.SetDepthTest(true)

	b := c.lightBinding
	if err := b.Begin(); err != nil {
		return newError("lighting pass", KindFatal, err)
	}

	positions := make([]mgl32.Vec3, len(s.Lights))
	colors := make([]mgl32.Vec3, len(s.Lights))
	intensities := make([]float32, len(s.Lights))
	for i, l := range s.Lights {
		positions[i] = l.Position
		colors[i] = l.Color.Vec3()
		intensities[i] = l.Intensity
	}

	cam := s.Camera
	err := errors.Join(
		b.Set("gAlbedo", shader.Texture(c.gbuffer.Color(AttachAlbedo))),
		b.Set("gNormal", shader.Texture(c.gbuffer.Color(AttachNormal))),
		b.Set("gPosition", shader.Texture(c.gbuffer.Color(AttachPosition))),
		b.Set("gMaterial", shader.Texture(c.gbuffer.Color(AttachMaterial))),
		b.Set("lightCount", shader.Int(int32(len(s.Lights)))),
		b.SetVec3s("lightPos", positions),
		b.SetVec3s("lightColor", colors),
		b.SetFloats("lightIntensity", intensities),
		b.Set("ambient", shader.Vec3(c.Ambient.Vec3())),
		b.Set("cameraPos", shader.Vec3(cam.Position)),
		b.Set("cameraRotation", shader.Mat4(cam.Rotation.Mat4())),
		b.Set("farPlane", shader.Float(cam.FarPlane)),
		b.Set("projection", shader.Mat4(cam.ProjectionMatrix())),
	)
	c.policy.Handle(err)
	dev.DrawFullscreen()
	return nil
}
