package scene

import (
	"bytes"
	"fmt"
	"image"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"deferred-engine/core"
	"deferred-engine/internal/gpu"
	"deferred-engine/shader"
)

// LoadGLTF opens a .glb or .gltf file and returns its drawables with
// materials bound to s. Node hierarchy becomes Parent links; nodes without
// geometry are kept only as parents and are not returned.
func LoadGLTF(path string, s *shader.Shader) ([]*Drawable, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gltf open %q: %w", path, err)
	}
	return FromGLTF(doc, filepath.Dir(path), s)
}

// FromGLTF converts a decoded document. dir resolves external image URIs.
func FromGLTF(doc *gltf.Document, dir string, s *shader.Shader) ([]*Drawable, error) {
	textures := make([]*Texture, len(doc.Textures))
	for i, gt := range doc.Textures {
		if gt.Source == nil || *gt.Source >= len(doc.Images) {
			continue
		}
		tex, err := loadGLTFImage(doc, dir, *gt.Source)
		if err != nil {
			return nil, fmt.Errorf("gltf texture %d: %w", i, err)
		}
		textures[i] = tex
	}

	materials := make([]*Material, len(doc.Materials))
	for i, gm := range doc.Materials {
		name := gm.Name
		if name == "" {
			name = fmt.Sprintf("material_%d", i)
		}
		mat := NewMaterial(name, s, core.ColorWhite)
		if pbr := gm.PBRMetallicRoughness; pbr != nil {
			cf := pbr.BaseColorFactorOrDefault()
			mat.BaseColor = core.Color{R: float32(cf[0]), G: float32(cf[1]), B: float32(cf[2]), A: float32(cf[3])}
			mat.Roughness = float32(pbr.RoughnessFactorOrDefault())
			mat.Metallic = float32(pbr.MetallicFactorOrDefault())
			if pbr.BaseColorTexture != nil && pbr.BaseColorTexture.Index < len(textures) {
				mat.AlbedoTexture = textures[pbr.BaseColorTexture.Index]
			}
		}
		materials[i] = mat
	}
	fallback := NewMaterial("default", s, core.ColorWhite)

	// One mesh per triangle primitive.
	meshes := make([][]*Mesh, len(doc.Meshes))
	meshMats := make([][]*Material, len(doc.Meshes))
	for mi, gm := range doc.Meshes {
		for pi, prim := range gm.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles {
				continue
			}
			m, err := loadGLTFPrimitive(doc, gm.Name, pi, prim)
			if err != nil {
				return nil, fmt.Errorf("gltf mesh %d primitive %d: %w", mi, pi, err)
			}
			mat := fallback
			if prim.Material != nil && *prim.Material < len(materials) {
				mat = materials[*prim.Material]
			}
			meshes[mi] = append(meshes[mi], m)
			meshMats[mi] = append(meshMats[mi], mat)
		}
	}

	var drawables []*Drawable
	nodes := make([]*Drawable, len(doc.Nodes))
	for i, gn := range doc.Nodes {
		name := gn.Name
		if name == "" {
			name = fmt.Sprintf("node_%d", i)
		}
		n := NewDrawable(name, nil, nil)
		t := gn.TranslationOrDefault()
		r := gn.RotationOrDefault() // x, y, z, w
		sc := gn.ScaleOrDefault()
		n.Transform = core.Transform{
			Position: mgl32.Vec3{float32(t[0]), float32(t[1]), float32(t[2])},
			Rotation: mgl32.Quat{W: float32(r[3]), V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])}},
			Scale:    mgl32.Vec3{float32(sc[0]), float32(sc[1]), float32(sc[2])},
		}
		nodes[i] = n

		if gn.Mesh == nil || *gn.Mesh >= len(meshes) {
			continue
		}
		prims := meshes[*gn.Mesh]
		if len(prims) == 1 {
			n.Mesh, n.Material = prims[0], meshMats[*gn.Mesh][0]
			drawables = append(drawables, n)
			continue
		}
		for pi, m := range prims {
			child := NewDrawable(fmt.Sprintf("%s_prim%d", name, pi), m, meshMats[*gn.Mesh][pi])
			child.Parent = n
			drawables = append(drawables, child)
		}
	}
	for i, gn := range doc.Nodes {
		for _, c := range gn.Children {
			if c < len(nodes) {
				nodes[c].Parent = nodes[i]
			}
		}
	}
	return drawables, nil
}

func loadGLTFPrimitive(doc *gltf.Document, meshName string, primIdx int, prim *gltf.Primitive) (*Mesh, error) {
	name := fmt.Sprintf("%s_p%d", meshName, primIdx)
	if meshName == "" {
		name = fmt.Sprintf("prim_%d", primIdx)
	}

	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, fmt.Errorf("no POSITION attribute")
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}

	var normals [][3]float32
	var uvs [][2]float32
	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		if normals, err = modeler.ReadNormal(doc, doc.Accessors[idx], nil); err != nil {
			return nil, fmt.Errorf("normals: %w", err)
		}
	}
	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		if uvs, err = modeler.ReadTextureCoord(doc, doc.Accessors[idx], nil); err != nil {
			return nil, fmt.Errorf("uvs: %w", err)
		}
	}

	verts := make([]gpu.Vertex, len(positions))
	for i, p := range positions {
		v := gpu.Vertex{Position: mgl32.Vec3(p)}
		if i < len(normals) {
			v.Normal = mgl32.Vec3(normals[i])
		}
		// glTF puts the UV origin at the top-left; textures are stored bottom-up.
		if i < len(uvs) {
			v.UV = mgl32.Vec2{uvs[i][0], 1 - uvs[i][1]}
		}
		verts[i] = v
	}

	var indices []uint32
	if prim.Indices != nil {
		if indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil); err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
	} else {
		indices = make([]uint32, len(verts))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	if len(normals) == 0 {
		generateNormals(verts, indices)
	}
	return CreateMeshFromData(name, verts, indices), nil
}

func loadGLTFImage(doc *gltf.Document, dir string, idx int) (*Texture, error) {
	img := doc.Images[idx]
	name := img.Name
	if name == "" {
		name = fmt.Sprintf("gltf_img_%d", idx)
	}

	var data []byte
	switch {
	case img.BufferView != nil:
		raw, err := modeler.ReadBufferView(doc, doc.BufferViews[*img.BufferView])
		if err != nil {
			return nil, err
		}
		data = raw
	case img.IsEmbeddedResource():
		raw, err := img.MarshalData()
		if err != nil {
			return nil, err
		}
		data = raw
	default:
		return LoadTexture(filepath.Join(dir, img.URI))
	}

	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	tex := FromImage(decoded)
	tex.Name = name
	return tex, nil
}
