package scene

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"

	"deferred-engine/core"
	"deferred-engine/shader"
)

// File is the TOML form of a scene. Geometry is referenced, not stored:
// Mesh names a unit primitive ("cube", "sphere", "plane", "quad",
// "triangle") or a .obj/.gltf/.glb path relative to the scene file.
type File struct {
	Version   int              `toml:"version"`
	Camera    *CameraRecord    `toml:"camera,omitempty"`
	Sky       *SkyRecord       `toml:"sky,omitempty"`
	Lights    []LightRecord    `toml:"light"`
	Drawables []DrawableRecord `toml:"drawable"`
}

type CameraRecord struct {
	Position [3]float32 `toml:"position"`
	Rotation [4]float32 `toml:"rotation"` // x, y, z, w
	FOV      float32    `toml:"fov"`
	Near     float32    `toml:"near"`
	Far      float32    `toml:"far"`
}

type SkyRecord struct {
	Zenith  [4]float32 `toml:"zenith"`
	Horizon [4]float32 `toml:"horizon"`
	Ground  [4]float32 `toml:"ground"`
}

type LightRecord struct {
	Position  [3]float32 `toml:"position"`
	Color     [4]float32 `toml:"color"`
	Intensity float32    `toml:"intensity"`
}

type DrawableRecord struct {
	Name     string     `toml:"name"`
	Parent   string     `toml:"parent,omitempty"`
	Mesh     string     `toml:"mesh"`
	Position [3]float32 `toml:"position"`
	Rotation [4]float32 `toml:"rotation"`
	Scale    [3]float32 `toml:"scale"`

	Color     [4]float32 `toml:"color"`
	Roughness float32    `toml:"roughness"`
	Metallic  float32    `toml:"metallic"`
	Unlit     bool       `toml:"unlit,omitempty"`
	Texture   string     `toml:"texture,omitempty"`
}

const fileVersion = 1

var primitives = map[string]func() *Mesh{
	"cube":     func() *Mesh { return CreateCube(1) },
	"sphere":   func() *Mesh { return CreateSphere(0.5, 32, 16) },
	"plane":    func() *Mesh { return CreatePlane(1, 1, 1) },
	"quad":     CreateQuad,
	"triangle": CreateTriangle,
}

func colorArray(c core.Color) [4]float32 { return [4]float32{c.R, c.G, c.B, c.A} }
func arrayColor(a [4]float32) core.Color { return core.Color{R: a[0], G: a[1], B: a[2], A: a[3]} }
func quatArray(q mgl32.Quat) [4]float32  { return [4]float32{q.V[0], q.V[1], q.V[2], q.W} }

func arrayQuat(a [4]float32) mgl32.Quat {
	if a == [4]float32{} {
		return mgl32.QuatIdent()
	}
	return mgl32.Quat{W: a[3], V: mgl32.Vec3{a[0], a[1], a[2]}}
}

// Encode captures s. Drawables whose mesh is not a primitive are recorded
// under the mesh's name, so a model only round-trips if that name is its
// path. Texture paths are taken from Texture.Name.
func Encode(s *Scene) File {
	f := File{Version: fileVersion}
	if c := s.Camera; c != nil {
		f.Camera = &CameraRecord{
			Position: c.Position,
			Rotation: quatArray(c.Rotation),
			FOV:      c.FOV,
			Near:     c.NearPlane,
			Far:      c.FarPlane,
		}
	}
	if s.Sky != nil {
		f.Sky = &SkyRecord{
			Zenith:  colorArray(s.Sky.Zenith),
			Horizon: colorArray(s.Sky.Horizon),
			Ground:  colorArray(s.Sky.Ground),
		}
	}
	for _, l := range s.Lights {
		f.Lights = append(f.Lights, LightRecord{Position: l.Position, Color: colorArray(l.Color), Intensity: l.Intensity})
	}
	for _, d := range s.Drawables {
		r := DrawableRecord{
			Name:     d.Name,
			Position: d.Transform.Position,
			Rotation: quatArray(d.Transform.Rotation),
			Scale:    d.Transform.Scale,
		}
		if d.Parent != nil {
			r.Parent = d.Parent.Name
		}
		if d.Mesh != nil {
			r.Mesh = d.Mesh.Name
			if _, ok := primitives[strings.ToLower(d.Mesh.Name)]; ok {
				r.Mesh = strings.ToLower(d.Mesh.Name)
			}
		}
		if m := d.Material; m != nil {
			r.Color = colorArray(m.BaseColor)
			r.Roughness = m.Roughness
			r.Metallic = m.Metallic
			r.Unlit = !m.Lit
			if m.AlbedoTexture != nil {
				r.Texture = m.AlbedoTexture.Name
			}
		}
		f.Drawables = append(f.Drawables, r)
	}
	return f
}

// SaveScene writes s to path as TOML.
func SaveScene(s *Scene, path string) error {
	data, err := toml.Marshal(Encode(s))
	if err != nil {
		return fmt.Errorf("marshal scene: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write scene %q: %w", path, err)
	}
	return nil
}

// LoadScene reads a scene file and builds it with every material bound to
// s. Parents must appear before their children.
func LoadScene(path string, s *shader.Shader) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene %q: %w", path, err)
	}
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse scene %q: %w", path, err)
	}
	return f.Build(filepath.Dir(path), s)
}

// Build instantiates f. dir resolves model and texture paths.
func (f File) Build(dir string, s *shader.Shader) (*Scene, error) {
	if f.Version > fileVersion {
		return nil, fmt.Errorf("scene version %d is newer than %d", f.Version, fileVersion)
	}

	var cam *Camera
	if c := f.Camera; c != nil {
		cam = NewCamera(c.FOV, 1, c.Near, c.Far)
		cam.SetPosition(c.Position)
		cam.SetRotation(arrayQuat(c.Rotation))
	}
	sc := NewScene(cam)
	if f.Sky != nil {
		sc.Sky = &Sky{Zenith: arrayColor(f.Sky.Zenith), Horizon: arrayColor(f.Sky.Horizon), Ground: arrayColor(f.Sky.Ground)}
	}
	for _, l := range f.Lights {
		sc.AddLight(NewLight(l.Position, arrayColor(l.Color), l.Intensity))
	}

	byName := map[string]*Drawable{}
	for _, r := range f.Drawables {
		d := NewDrawable(r.Name, nil, nil)
		d.Transform = core.Transform{Position: r.Position, Rotation: arrayQuat(r.Rotation), Scale: r.Scale}
		if r.Scale == [3]float32{} {
			d.Transform.Scale = mgl32.Vec3{1, 1, 1}
		}
		if r.Parent != "" {
			parent, ok := byName[r.Parent]
			if !ok {
				return nil, fmt.Errorf("drawable %q: unknown parent %q", r.Name, r.Parent)
			}
			d.Parent = parent
		}
		byName[r.Name] = d

		if mk, ok := primitives[r.Mesh]; ok {
			d.Mesh = mk()
			mat, err := r.material(dir, s)
			if err != nil {
				return nil, err
			}
			d.Material = mat
			sc.Add(d)
			continue
		}

		models, err := loadModel(filepath.Join(dir, r.Mesh), s)
		if err != nil {
			return nil, fmt.Errorf("drawable %q: %w", r.Name, err)
		}
		for _, m := range models {
			root := m
			for root.Parent != nil && root.Parent != d {
				root = root.Parent
			}
			root.Parent = d
			sc.Add(m)
		}
	}
	return sc, nil
}

func (r DrawableRecord) material(dir string, s *shader.Shader) (*Material, error) {
	m := NewPBRMaterial(r.Name, s, arrayColor(r.Color), r.Metallic, r.Roughness)
	m.Lit = !r.Unlit
	if r.Texture != "" {
		tex, err := LoadTexture(filepath.Join(dir, r.Texture))
		if err != nil {
			return nil, err
		}
		m.AlbedoTexture = tex
	}
	return m, nil
}

func loadModel(path string, s *shader.Shader) ([]*Drawable, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		return LoadOBJ(path, s)
	case ".gltf", ".glb":
		return LoadGLTF(path, s)
	}
	return nil, fmt.Errorf("unknown mesh %q", path)
}
