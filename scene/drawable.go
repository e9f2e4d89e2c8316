package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"deferred-engine/core"
	"deferred-engine/shader"
)

// Drawable is a mesh placed in the world with a material. An optional parent
// composes its world matrix with this one's local transform.
type Drawable struct {
	Name      string
	Mesh      *Mesh
	Material  *Material
	Transform core.Transform
	Parent    *Drawable
}

func NewDrawable(name string, mesh *Mesh, material *Material) *Drawable {
	return &Drawable{
		Name:      name,
		Mesh:      mesh,
		Material:  material,
		Transform: core.NewTransform(),
	}
}

// Shader is the program the drawable's material is bound to, or nil.
func (d *Drawable) Shader() *shader.Shader {
	if d.Material == nil {
		return nil
	}
	return d.Material.Shader()
}

func (d *Drawable) WorldMatrix() mgl32.Mat4 {
	local := d.Transform.Matrix()
	if d.Parent != nil {
		return d.Parent.WorldMatrix().Mul4(local)
	}
	return local
}

// WorldRotation is the accumulated rotation, used to transform normals.
func (d *Drawable) WorldRotation() mgl32.Mat4 {
	return d.worldQuat().Mat4()
}

func (d *Drawable) worldQuat() mgl32.Quat {
	if d.Parent != nil {
		return d.Parent.worldQuat().Mul(d.Transform.Rotation)
	}
	return d.Transform.Rotation
}

func (d *Drawable) SetPosition(pos mgl32.Vec3) { d.Transform.Position = pos }
func (d *Drawable) SetRotation(rot mgl32.Quat) { d.Transform.Rotation = rot }
func (d *Drawable) SetScale(scale mgl32.Vec3)  { d.Transform.Scale = scale }

func (d *Drawable) Translate(delta mgl32.Vec3) {
	d.Transform.Position = d.Transform.Position.Add(delta)
}

func (d *Drawable) Rotate(axis mgl32.Vec3, angle float32) {
	d.Transform.Rotation = d.Transform.Rotation.Mul(mgl32.QuatRotate(angle, axis)).Normalize()
}
