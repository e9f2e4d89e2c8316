package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

func TestFromGLTF(t *testing.T) {
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	uv := modeler.WriteTextureCoord(doc, [][2]float32{{0, 0}, {1, 0}, {0, 1}})
	idx := modeler.WriteIndices(doc, []uint16{0, 1, 2})
	doc.Meshes = []*gltf.Mesh{{
		Name: "tri",
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(idx),
			Attributes: map[string]int{gltf.POSITION: pos, gltf.TEXCOORD_0: uv},
			Material:   gltf.Index(0),
		}},
	}}
	doc.Materials = []*gltf.Material{{
		Name: "gold",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float64{1, 0.5, 0.25, 1},
			MetallicFactor:  gltf.Float(1),
			RoughnessFactor: gltf.Float(0.25),
		},
	}}
	doc.Nodes = []*gltf.Node{
		{Name: "root", Children: []int{1}},
		{Name: "leaf", Mesh: gltf.Index(0)},
	}

	drawables, err := FromGLTF(doc, ".", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(drawables) != 1 {
		t.Fatalf("%d drawables, want only the node with geometry", len(drawables))
	}
	d := drawables[0]
	if d.Name != "leaf" || d.Parent == nil || d.Parent.Name != "root" {
		t.Errorf("hierarchy lost: %s parent %v", d.Name, d.Parent)
	}

	m := d.Mesh
	if len(m.Vertices) != 3 || len(m.Indices) != 3 {
		t.Fatalf("mesh %d/%d", len(m.Vertices), len(m.Indices))
	}
	if !vecNear(m.Vertices[0].Normal, mgl32.Vec3{0, 0, 1}, 1e-5) {
		t.Errorf("generated normal = %v", m.Vertices[0].Normal)
	}
	if m.Vertices[2].UV != (mgl32.Vec2{0, 0}) || m.Vertices[0].UV != (mgl32.Vec2{0, 1}) {
		t.Errorf("uvs not flipped: %v %v", m.Vertices[0].UV, m.Vertices[2].UV)
	}

	mat := d.Material
	if mat.Name != "gold" || mat.Metallic != 1 || mat.Roughness != 0.25 || mat.BaseColor.G != 0.5 {
		t.Errorf("material = %+v", mat)
	}
}
