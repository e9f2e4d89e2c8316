package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"deferred-engine/internal/gpu"
)

// Mesh holds CPU-side vertex/index data and, once uploaded, its device
// handle.
type Mesh struct {
	Name     string
	Vertices []gpu.Vertex
	Indices  []uint32

	handle gpu.Mesh
}

func CreateMeshFromData(name string, vertices []gpu.Vertex, indices []uint32) *Mesh {
	return &Mesh{Name: name, Vertices: vertices, Indices: indices}
}

// Upload sends the mesh to dev on first use.
func (m *Mesh) Upload(dev gpu.Device) (gpu.Mesh, error) {
	if m.handle != 0 {
		return m.handle, nil
	}
	handle, err := dev.CreateMesh(m.Vertices, m.Indices)
	if err != nil {
		return 0, fmt.Errorf("upload mesh %q: %w", m.Name, err)
	}
	m.handle = handle
	return handle, nil
}

func (m *Mesh) Handle() gpu.Mesh { return m.handle }

func (m *Mesh) Release(dev gpu.Device) {
	if m.handle != 0 {
		dev.DeleteMesh(m.handle)
		m.handle = 0
	}
}

// Primitive generation helpers

func CreateTriangle() *Mesh {
	n := mgl32.Vec3{0, 0, 1}
	vertices := []gpu.Vertex{
		{Position: mgl32.Vec3{0, -0.5, 0}, Normal: n, UV: mgl32.Vec2{0.5, 0}},
		{Position: mgl32.Vec3{0.5, 0.5, 0}, Normal: n, UV: mgl32.Vec2{1, 1}},
		{Position: mgl32.Vec3{-0.5, 0.5, 0}, Normal: n, UV: mgl32.Vec2{0, 1}},
	}
	return CreateMeshFromData("Triangle", vertices, []uint32{0, 1, 2})
}

func CreateQuad() *Mesh {
	n := mgl32.Vec3{0, 0, 1}
	vertices := []gpu.Vertex{
		{Position: mgl32.Vec3{-0.5, -0.5, 0}, Normal: n, UV: mgl32.Vec2{0, 0}},
		{Position: mgl32.Vec3{0.5, -0.5, 0}, Normal: n, UV: mgl32.Vec2{1, 0}},
		{Position: mgl32.Vec3{0.5, 0.5, 0}, Normal: n, UV: mgl32.Vec2{1, 1}},
		{Position: mgl32.Vec3{-0.5, 0.5, 0}, Normal: n, UV: mgl32.Vec2{0, 1}},
	}
	return CreateMeshFromData("Quad", vertices, []uint32{0, 1, 2, 2, 3, 0})
}

// CreateCube builds a cube with per-face normals, counter-clockwise when
// seen from outside.
func CreateCube(size float32) *Mesh {
	s := size / 2
	faces := []struct {
		normal, u, v mgl32.Vec3
	}{
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
	}
	corners := [4]mgl32.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

	vertices := make([]gpu.Vertex, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range faces {
		base := uint32(len(vertices))
		for _, c := range corners {
			pos := f.normal.Add(f.u.Mul(c[0]*2 - 1)).Add(f.v.Mul(c[1]*2 - 1)).Mul(s)
			vertices = append(vertices, gpu.Vertex{Position: pos, Normal: f.normal, UV: c})
		}
		indices = append(indices, base, base+1, base+2, base+2, base+3, base)
	}
	return CreateMeshFromData("Cube", vertices, indices)
}
