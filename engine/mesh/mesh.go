// Package mesh holds GPU-resident triangle meshes produced by asset loaders.
package mesh

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/backend"
	"github.com/Carmen-Shannon/oxy-rt/engine/material"
)

// mesh is the implementation of the Mesh interface.
type mesh struct {
	name         string
	vertexBuffer backend.Buffer
	indexBuffer  backend.Buffer
	subMeshes    []SubMesh
	materials    []material.Material
	blas         backend.AccelerationStructure
	bounds       common.AABB

	once sync.Once
}

// Mesh is shared geometry: vertex and index buffers, submeshes, their materials and
// a bottom-level acceleration structure. The Mesh value itself is its identity for
// deduplication; many mesh nodes may reference one Mesh.
type Mesh interface {
	// Name retrieves the mesh identifier.
	//
	// Returns:
	//   - string: the name of the mesh
	Name() string

	// VertexBuffer retrieves the device buffer holding vertex data.
	//
	// Returns:
	//   - backend.Buffer: the vertex buffer
	VertexBuffer() backend.Buffer

	// IndexBuffer retrieves the device buffer holding triangle indices.
	//
	// Returns:
	//   - backend.Buffer: the index buffer
	IndexBuffer() backend.Buffer

	// SubMeshes retrieves the index ranges of the mesh. The slice must not be modified.
	//
	// Returns:
	//   - []SubMesh: the submeshes in authoring order
	SubMeshes() []SubMesh

	// Materials retrieves the materials referenced by SubMesh.MaterialIndex.
	//
	// Returns:
	//   - []material.Material: the material list
	Materials() []material.Material

	// SubMeshMaterial retrieves the material of submesh i, or nil when its index is out of range.
	//
	// Parameters:
	//   - i: the submesh index
	//
	// Returns:
	//   - material.Material: the material or nil
	SubMeshMaterial(i int) material.Material

	// AccelerationStructure retrieves the bottom-level acceleration structure.
	//
	// Returns:
	//   - backend.AccelerationStructure: the structure, or nil if not built
	AccelerationStructure() backend.AccelerationStructure

	// Bounds retrieves the local-space bounds of the geometry.
	//
	// Returns:
	//   - common.AABB: the bounds
	Bounds() common.AABB

	// Release frees the buffers and acceleration structure. Subsequent calls are no-ops.
	Release()
}

var _ Mesh = &mesh{}

// NewMesh creates a Mesh from device buffers. NewMesh panics if either buffer is nil.
//
// Parameters:
//   - vertices: the vertex buffer
//   - indices: the index buffer
//   - options: functional options to configure the mesh
//
// Returns:
//   - Mesh: the mesh
func NewMesh(vertices, indices backend.Buffer, options ...MeshBuilderOption) Mesh {
	if vertices == nil || indices == nil {
		panic("mesh: NewMesh requires non-nil vertex and index buffers")
	}
	m := &mesh{
		vertexBuffer: vertices,
		indexBuffer:  indices,
		bounds:       common.EmptyAABB(),
	}
	for _, opt := range options {
		opt(m)
	}
	if len(m.subMeshes) == 0 {
		m.subMeshes = []SubMesh{{IndexCount: uint32(indices.Size() / 4)}}
	}
	return m
}

func (m *mesh) Name() string {
	return m.name
}

func (m *mesh) VertexBuffer() backend.Buffer {
	return m.vertexBuffer
}

func (m *mesh) IndexBuffer() backend.Buffer {
	return m.indexBuffer
}

func (m *mesh) SubMeshes() []SubMesh {
	return m.subMeshes
}

func (m *mesh) Materials() []material.Material {
	return m.materials
}

func (m *mesh) SubMeshMaterial(i int) material.Material {
	if i < 0 || i >= len(m.subMeshes) {
		return nil
	}
	idx := int(m.subMeshes[i].MaterialIndex)
	if idx >= len(m.materials) {
		return nil
	}
	return m.materials[idx]
}

func (m *mesh) AccelerationStructure() backend.AccelerationStructure {
	return m.blas
}

func (m *mesh) Bounds() common.AABB {
	return m.bounds
}

func (m *mesh) Release() {
	m.once.Do(func() {
		m.vertexBuffer.Release()
		m.indexBuffer.Release()
		if m.blas != nil {
			m.blas.Release()
		}
	})
}
