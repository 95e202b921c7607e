package tumble

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// SceneDocument is a decoded level file, flattened into a node list
// with parent indices. Instantiation into entities happens on the main
// thread; decoding can run anywhere.
type SceneDocument struct {
	Path  string
	Nodes []SceneNode
}

// SceneNode is one authored node. Parent indexes into
// SceneDocument.Nodes; roots carry -1.
type SceneNode struct {
	Name        string
	Parent      int
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3
	Mesh        *SceneMesh
}

// SceneMesh is triangle geometry: positions plus a flat index list,
// three indices per triangle.
type SceneMesh struct {
	Positions []mgl32.Vec3
	Indices   []uint32
}

func decodeGLTF(path string) (*SceneDocument, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf %s: %w", path, err)
	}

	sceneIdx := 0
	if doc.Scene != nil {
		sceneIdx = int(*doc.Scene)
	}
	if sceneIdx >= len(doc.Scenes) {
		return nil, fmt.Errorf("gltf %s: scene index %d out of range", path, sceneIdx)
	}
	scene := doc.Scenes[sceneIdx]

	out := &SceneDocument{Path: path}

	var walk func(nodeIdx int, parent int) error
	walk = func(nodeIdx int, parent int) error {
		if nodeIdx >= len(doc.Nodes) {
			return fmt.Errorf("gltf %s: node index %d out of range", path, nodeIdx)
		}
		node := doc.Nodes[nodeIdx]

		t := node.TranslationOrDefault()
		r := node.RotationOrDefault()
		s := node.ScaleOrDefault()

		sn := SceneNode{
			Name:        node.Name,
			Parent:      parent,
			Translation: mgl32.Vec3{float32(t[0]), float32(t[1]), float32(t[2])},
			// gltf stores quaternions as [x y z w]
			Rotation: mgl32.Quat{
				W: float32(r[3]),
				V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])},
			},
			Scale: mgl32.Vec3{float32(s[0]), float32(s[1]), float32(s[2])},
		}

		if node.Mesh != nil {
			mesh, err := decodeGLTFMesh(doc, int(*node.Mesh))
			if err != nil {
				return fmt.Errorf("gltf %s node %q: %w", path, node.Name, err)
			}
			sn.Mesh = mesh
		}

		selfIdx := len(out.Nodes)
		out.Nodes = append(out.Nodes, sn)

		for _, child := range node.Children {
			if err := walk(int(child), selfIdx); err != nil {
				return err
			}
		}
		return nil
	}

	for _, rootIdx := range scene.Nodes {
		if err := walk(int(rootIdx), -1); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// decodeGLTFMesh merges all primitives of a mesh into one position and
// index list. Only positions and indices are read; materials, normals
// and UVs belong to the renderer, not the level format.
func decodeGLTFMesh(doc *gltf.Document, meshIdx int) (*SceneMesh, error) {
	if meshIdx >= len(doc.Meshes) {
		return nil, fmt.Errorf("mesh index %d out of range", meshIdx)
	}
	mesh := doc.Meshes[meshIdx]

	out := &SceneMesh{}

	for primIdx, prim := range mesh.Primitives {
		posAccessor, ok := prim.Attributes[gltf.POSITION]
		if !ok {
			return nil, fmt.Errorf("primitive %d has no positions", primIdx)
		}
		positions, err := modeler.ReadPosition(doc, doc.Accessors[posAccessor], nil)
		if err != nil {
			return nil, fmt.Errorf("primitive %d positions: %w", primIdx, err)
		}

		base := uint32(len(out.Positions))
		for _, p := range positions {
			out.Positions = append(out.Positions, mgl32.Vec3{p[0], p[1], p[2]})
		}

		if prim.Indices != nil {
			indices, err := modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
			if err != nil {
				return nil, fmt.Errorf("primitive %d indices: %w", primIdx, err)
			}
			for _, i := range indices {
				out.Indices = append(out.Indices, base+i)
			}
		} else {
			// Non-indexed primitive: triangles in vertex order
			for i := range positions {
				out.Indices = append(out.Indices, base+uint32(i))
			}
		}
	}

	return out, nil
}
