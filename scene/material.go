package scene

import (
	"errors"
	"fmt"

	"deferred-engine/core"
	"deferred-engine/internal/gpu"
	"deferred-engine/shader"
)

// Material describes surface appearance properties for a mesh and the shader
// that draws it. A material is bound to exactly one shader at a time.
type Material struct {
	Name      string
	BaseColor core.Color // multiplied with AlbedoTexture if set
	Roughness float32    // 0 = perfectly smooth, 1 = fully rough
	Metallic  float32    // 0 = dielectric, 1 = fully metallic
	Lit       bool       // false outputs raw albedo, skipping lighting

	// Optional albedo texture; uploaded on first bind.
	AlbedoTexture *Texture

	custom  *shader.Uniforms
	binding *shader.Binding
}

// NewMaterial creates a lit material with the given base color bound to s.
func NewMaterial(name string, s *shader.Shader, baseColor core.Color) *Material {
	return &Material{
		Name:      name,
		BaseColor: baseColor,
		Roughness: 0.5,
		Lit:       true,
		custom:    shader.NewUniforms(),
		binding:   shader.NewBinding(s, 0),
	}
}

// NewPBRMaterial creates a lit material with explicit metallic and roughness.
func NewPBRMaterial(name string, s *shader.Shader, baseColor core.Color, metallic, roughness float32) *Material {
	m := NewMaterial(name, s, baseColor)
	m.Metallic = metallic
	m.Roughness = roughness
	return m
}

func (m *Material) Shader() *shader.Shader { return m.binding.Shader() }

// SetShader rebinds the material. Cached uniform locations are discarded and
// resolved again against s on next use.
func (m *Material) SetShader(s *shader.Shader) {
	m.binding.Rebind(s)
}

// Binding exposes the material's location cache so passes can upload
// per-draw uniforms through the same program.
func (m *Material) Binding() *shader.Binding { return m.binding }

// SetUniform updates a custom uniform uploaded after the built-in ones.
func (m *Material) SetUniform(name string, v shader.Value, mode shader.Mode) error {
	if err := m.custom.Update(name, v, mode); err != nil {
		return fmt.Errorf("material %q: %w", m.Name, err)
	}
	return nil
}

func (m *Material) Uniform(name string) (shader.Value, bool) { return m.custom.Get(name) }

func (m *Material) ClearUniform(name string) { m.custom.Delete(name) }

// Bind makes the material's program current and uploads its scalars,
// texture units and custom uniforms. Uniforms the program does not declare
// are skipped; they are reported together in the returned error, which wraps
// shader.ErrUniformNotFound. Other errors abort the bind.
func (m *Material) Bind(dev gpu.Device) error {
	if err := m.binding.Begin(); err != nil {
		return fmt.Errorf("material %q: %w", m.Name, err)
	}
	lit := int32(0)
	if m.Lit {
		lit = 1
	}
	errs := []error{
		m.binding.Set("baseColor", shader.Vec4(m.BaseColor.Vec4())),
		m.binding.Set("roughness", shader.Float(m.Roughness)),
		m.binding.Set("metallic", shader.Float(m.Metallic)),
		m.binding.Set("lit", shader.Int(lit)),
	}
	hasTex := int32(0)
	if m.AlbedoTexture != nil {
		tex, err := m.AlbedoTexture.Upload(dev)
		if err != nil {
			return fmt.Errorf("material %q: %w", m.Name, err)
		}
		errs = append(errs, m.binding.Set("albedoTex", shader.Texture(tex)))
		hasTex = 1
	}
	errs = append(errs,
		m.binding.Set("hasAlbedoTex", shader.Int(hasTex)),
		m.custom.Apply(m.binding),
	)
	return errors.Join(errs...)
}
