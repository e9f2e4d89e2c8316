package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"deferred-engine/core"
)

// reverseZ flips NDC depth so the near plane maps to window depth 1 and the
// far plane to 0.
var reverseZ = mgl32.Diag4(mgl32.Vec4{1, 1, -1, 1})

// Camera represents a view camera
type Camera struct {
	Position    mgl32.Vec3
	Rotation    mgl32.Quat
	FOV         float32 // vertical, radians
	AspectRatio float32
	NearPlane   float32
	FarPlane    float32

	// Cached matrices
	viewMatrix       mgl32.Mat4
	projectionMatrix mgl32.Mat4
	viewProjMatrix   mgl32.Mat4
	dirty            bool
}

func NewCamera(fov, aspectRatio, nearPlane, farPlane float32) *Camera {
	return &Camera{
		Rotation:    mgl32.QuatIdent(),
		FOV:         fov,
		AspectRatio: aspectRatio,
		NearPlane:   nearPlane,
		FarPlane:    farPlane,
		dirty:       true,
	}
}

func (c *Camera) UpdateAspectRatio(size core.Size) {
	if size.Valid() {
		c.AspectRatio = size.Aspect()
		c.dirty = true
	}
}

func (c *Camera) SetPosition(pos mgl32.Vec3) {
	c.Position = pos
	c.dirty = true
}

func (c *Camera) SetRotation(rot mgl32.Quat) {
	c.Rotation = rot
	c.dirty = true
}

func (c *Camera) Translate(delta mgl32.Vec3) {
	c.Position = c.Position.Add(delta)
	c.dirty = true
}

func (c *Camera) Rotate(axis mgl32.Vec3, angle float32) {
	c.Rotation = c.Rotation.Mul(mgl32.QuatRotate(angle, axis)).Normalize()
	c.dirty = true
}

// LookAt orients the camera towards target.
func (c *Camera) LookAt(target, up mgl32.Vec3) {
	view := mgl32.LookAtV(c.Position, target, up)
	c.Rotation = mgl32.Mat4ToQuat(view.Mat3().Transpose().Mat4()).Normalize()
	c.dirty = true
}

func (c *Camera) ViewMatrix() mgl32.Mat4 {
	if c.dirty {
		c.updateMatrices()
	}
	return c.viewMatrix
}

// ProjectionMatrix is a reversed-depth perspective projection.
func (c *Camera) ProjectionMatrix() mgl32.Mat4 {
	if c.dirty {
		c.updateMatrices()
	}
	return c.projectionMatrix
}

func (c *Camera) ViewProjectionMatrix() mgl32.Mat4 {
	if c.dirty {
		c.updateMatrices()
	}
	return c.viewProjMatrix
}

// ViewRotation is the rotation-only part of the view matrix.
func (c *Camera) ViewRotation() mgl32.Mat4 {
	return c.Rotation.Inverse().Mat4()
}

func (c *Camera) Forward() mgl32.Vec3 { return c.Rotation.Rotate(mgl32.Vec3{0, 0, -1}) }
func (c *Camera) Right() mgl32.Vec3   { return c.Rotation.Rotate(mgl32.Vec3{1, 0, 0}) }
func (c *Camera) Up() mgl32.Vec3      { return c.Rotation.Rotate(mgl32.Vec3{0, 1, 0}) }

func (c *Camera) updateMatrices() {
	translation := mgl32.Translate3D(-c.Position.X(), -c.Position.Y(), -c.Position.Z())
	c.viewMatrix = c.ViewRotation().Mul4(translation)
	c.projectionMatrix = reverseZ.Mul4(mgl32.Perspective(c.FOV, c.AspectRatio, c.NearPlane, c.FarPlane))
	c.viewProjMatrix = c.projectionMatrix.Mul4(c.viewMatrix)
	c.dirty = false
}

// OrbitCamera is a specialized camera for orbiting around a target
type OrbitCamera struct {
	Camera
	Target   mgl32.Vec3
	Distance float32
	Yaw      float32
	Pitch    float32
}

func NewOrbitCamera(target mgl32.Vec3, distance, fov, aspectRatio float32) *OrbitCamera {
	c := &OrbitCamera{
		Target:   target,
		Distance: distance,
		Pitch:    0.3,
	}
	c.Camera = *NewCamera(fov, aspectRatio, 0.1, 1000.0)
	c.UpdatePosition()
	return c
}

func (c *OrbitCamera) UpdatePosition() {
	c.Pitch = core.Clamp(c.Pitch, -1.5, 1.5)

	cosPitch := float32(math.Cos(float64(c.Pitch)))
	sinPitch := float32(math.Sin(float64(c.Pitch)))
	cosYaw := float32(math.Cos(float64(c.Yaw)))
	sinYaw := float32(math.Sin(float64(c.Yaw)))

	offset := mgl32.Vec3{
		c.Distance * cosPitch * sinYaw,
		c.Distance * sinPitch,
		c.Distance * cosPitch * cosYaw,
	}
	c.Position = c.Target.Add(offset)
	c.LookAt(c.Target, mgl32.Vec3{0, 1, 0})
}

func (c *OrbitCamera) Orbit(deltaYaw, deltaPitch float32) {
	c.Yaw += deltaYaw
	c.Pitch += deltaPitch
	c.UpdatePosition()
}

func (c *OrbitCamera) Zoom(delta float32) {
	c.Distance = max(c.Distance+delta, 0.1)
	c.UpdatePosition()
}
