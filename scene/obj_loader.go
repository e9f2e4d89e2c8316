package scene

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"deferred-engine/core"
	"deferred-engine/internal/gpu"
	"deferred-engine/shader"
)

// objFace is an already-triangulated face (three vertex references).
type objFace struct {
	v, vt, vn [3]int // 0-based position / UV / normal indices (-1 = absent)
}

type objObject struct {
	name    string
	matName string
	faces   []objFace
}

// LoadOBJ parses a Wavefront .obj file and returns one drawable per object or
// group, each with a material bound to s. A companion .mtl file referenced by
// "mtllib" supplies base colors, roughness and albedo textures.
func LoadOBJ(path string, s *shader.Shader) ([]*Drawable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open obj %q: %w", path, err)
	}
	defer f.Close()
	return ReadOBJ(f, filepath.Dir(path), s)
}

// ReadOBJ is LoadOBJ over a reader; dir resolves mtllib and texture paths.
func ReadOBJ(r io.Reader, dir string, s *shader.Shader) ([]*Drawable, error) {
	var (
		positions []mgl32.Vec3
		normals   []mgl32.Vec3
		uvs       []mgl32.Vec2
		objects   []objObject
	)
	materials := map[string]*Material{}
	cur := &objObject{name: "default"}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		switch fields[0] {
		case "v":
			if len(fields) >= 4 {
				positions = append(positions, parseVec3(fields[1:4]))
			}
		case "vn":
			if len(fields) >= 4 {
				normals = append(normals, parseVec3(fields[1:4]))
			}
		case "vt":
			if len(fields) >= 3 {
				uvs = append(uvs, mgl32.Vec2{parseFloat(fields[1]), parseFloat(fields[2])})
			}

		case "o", "g":
			if len(cur.faces) > 0 {
				objects = append(objects, *cur)
			}
			name := "default"
			if len(fields) > 1 {
				name = fields[1]
			}
			cur = &objObject{name: name, matName: cur.matName}

		case "usemtl":
			if len(fields) > 1 {
				cur.matName = fields[1]
			}

		case "mtllib":
			if len(fields) > 1 {
				loaded, err := loadMTL(filepath.Join(dir, fields[1]), dir, s)
				if err != nil {
					return nil, err
				}
				for k, v := range loaded {
					materials[k] = v
				}
			}

		case "f":
			if len(fields) < 4 {
				continue
			}
			verts := make([][3]int, 0, len(fields)-1)
			for _, tok := range fields[1:] {
				verts = append(verts, parseFaceVertex(tok, len(positions), len(uvs), len(normals)))
			}
			// Fan triangulation: 0-1-2, 0-2-3, ...
			for i := 1; i+1 < len(verts); i++ {
				a, b, c := verts[0], verts[i], verts[i+1]
				cur.faces = append(cur.faces, objFace{
					v:  [3]int{a[0], b[0], c[0]},
					vt: [3]int{a[1], b[1], c[1]},
					vn: [3]int{a[2], b[2], c[2]},
				})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan obj: %w", err)
	}
	if len(cur.faces) > 0 {
		objects = append(objects, *cur)
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("obj has no faces")
	}

	drawables := make([]*Drawable, 0, len(objects))
	for _, obj := range objects {
		mesh := buildOBJMesh(obj.name, obj.faces, positions, normals, uvs)
		mat, ok := materials[obj.matName]
		if !ok {
			mat = NewMaterial("default", s, core.ColorWhite)
		}
		drawables = append(drawables, NewDrawable(obj.name, mesh, mat))
	}
	return drawables, nil
}

func parseFloat(s string) float32 {
	f, _ := strconv.ParseFloat(s, 32)
	return float32(f)
}

func parseVec3(f []string) mgl32.Vec3 {
	return mgl32.Vec3{parseFloat(f[0]), parseFloat(f[1]), parseFloat(f[2])}
}

// parseFaceVertex parses "v", "v/vt", "v//vn" or "v/vt/vn" into 0-based
// indices, -1 when absent. Negative OBJ indices count back from the end of
// the pools read so far.
func parseFaceVertex(tok string, nv, nvt, nvn int) [3]int {
	res := [3]int{-1, -1, -1}
	pools := [3]int{nv, nvt, nvn}
	for i, part := range strings.SplitN(tok, "/", 3) {
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		switch {
		case err != nil:
		case n > 0:
			res[i] = n - 1
		case n < 0:
			res[i] = pools[i] + n
		}
	}
	return res
}

// buildOBJMesh converts parsed faces into an indexed mesh, sharing vertices
// with identical index triples.
func buildOBJMesh(name string, faces []objFace, positions, normals []mgl32.Vec3, uvs []mgl32.Vec2) *Mesh {
	type key struct{ v, vt, vn int }
	seen := map[key]uint32{}
	var vertices []gpu.Vertex
	var indices []uint32
	missingNormals := false

	for _, face := range faces {
		for c := 0; c < 3; c++ {
			k := key{face.v[c], face.vt[c], face.vn[c]}
			if idx, ok := seen[k]; ok {
				indices = append(indices, idx)
				continue
			}
			var vtx gpu.Vertex
			if k.v >= 0 && k.v < len(positions) {
				vtx.Position = positions[k.v]
			}
			if k.vt >= 0 && k.vt < len(uvs) {
				vtx.UV = uvs[k.vt]
			}
			if k.vn >= 0 && k.vn < len(normals) {
				vtx.Normal = normals[k.vn]
			} else {
				missingNormals = true
			}
			idx := uint32(len(vertices))
			vertices = append(vertices, vtx)
			seen[k] = idx
			indices = append(indices, idx)
		}
	}

	if missingNormals {
		generateNormals(vertices, indices)
	}
	return CreateMeshFromData(name, vertices, indices)
}

// generateNormals writes area-weighted face normals, accumulated per vertex.
func generateNormals(vertices []gpu.Vertex, indices []uint32) {
	accum := make([]mgl32.Vec3, len(vertices))
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		v0 := vertices[i0].Position
		n := vertices[i1].Position.Sub(v0).Cross(vertices[i2].Position.Sub(v0))
		accum[i0] = accum[i0].Add(n)
		accum[i1] = accum[i1].Add(n)
		accum[i2] = accum[i2].Add(n)
	}
	for i := range vertices {
		if accum[i].Len() > 0 {
			vertices[i].Normal = accum[i].Normalize()
		}
	}
}

// loadMTL reads the materials of one .mtl file. Ns maps to roughness with
// sqrt(2/(Ns+2)); the PBR extension keys Pr and Pm override it directly.
func loadMTL(path, dir string, s *shader.Shader) (map[string]*Material, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mtl %q: %w", path, err)
	}
	defer f.Close()

	mats := map[string]*Material{}
	var cur *Material

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "newmtl" {
			if len(fields) > 1 {
				cur = NewMaterial(fields[1], s, core.ColorWhite)
				mats[fields[1]] = cur
			}
			continue
		}
		if cur == nil || len(fields) < 2 {
			continue
		}

		switch fields[0] {
		case "Kd":
			if len(fields) >= 4 {
				c := parseVec3(fields[1:4])
				cur.BaseColor = core.Color{R: c[0], G: c[1], B: c[2], A: cur.BaseColor.A}
			}
		case "d":
			cur.BaseColor.A = parseFloat(fields[1])
		case "Ns":
			ns := math.Max(0, float64(parseFloat(fields[1])))
			cur.Roughness = float32(math.Sqrt(2 / (ns + 2)))
		case "Pr":
			cur.Roughness = parseFloat(fields[1])
		case "Pm":
			cur.Metallic = parseFloat(fields[1])
		case "illum":
			cur.Lit = fields[1] != "0"
		case "map_Kd":
			tex, err := LoadTexture(filepath.Join(dir, fields[len(fields)-1]))
			if err != nil {
				return nil, err
			}
			cur.AlbedoTexture = tex
		}
	}
	return mats, scanner.Err()
}
