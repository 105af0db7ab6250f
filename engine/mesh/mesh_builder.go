package mesh

import (
	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/backend"
	"github.com/Carmen-Shannon/oxy-rt/engine/material"
)

// MeshBuilderOption is a functional option for configuring a Mesh via NewMesh.
type MeshBuilderOption func(*mesh)

// WithName is an option builder that sets the name of the Mesh.
//
// Parameters:
//   - name: the mesh identifier
//
// Returns:
//   - MeshBuilderOption: a function that applies the name option to a mesh
func WithName(name string) MeshBuilderOption {
	return func(m *mesh) {
		m.name = name
	}
}

// WithSubMeshes is an option builder that sets the index ranges of the Mesh.
// Without it the whole index buffer forms one submesh using material 0.
//
// Parameters:
//   - subMeshes: the submeshes
//
// Returns:
//   - MeshBuilderOption: a function that applies the submesh option to a mesh
func WithSubMeshes(subMeshes ...SubMesh) MeshBuilderOption {
	return func(m *mesh) {
		m.subMeshes = subMeshes
	}
}

// WithMaterials is an option builder that sets the materials referenced by the submeshes.
//
// Parameters:
//   - mats: the materials
//
// Returns:
//   - MeshBuilderOption: a function that applies the materials option to a mesh
func WithMaterials(mats ...material.Material) MeshBuilderOption {
	return func(m *mesh) {
		m.materials = mats
	}
}

// WithAccelerationStructure is an option builder that sets the bottom-level acceleration structure.
//
// Parameters:
//   - blas: the bottom-level structure
//
// Returns:
//   - MeshBuilderOption: a function that applies the option to a mesh
func WithAccelerationStructure(blas backend.AccelerationStructure) MeshBuilderOption {
	return func(m *mesh) {
		m.blas = blas
	}
}

// WithBounds is an option builder that sets the local-space bounds.
//
// Parameters:
//   - bounds: the bounds
//
// Returns:
//   - MeshBuilderOption: a function that applies the bounds option to a mesh
func WithBounds(bounds common.AABB) MeshBuilderOption {
	return func(m *mesh) {
		m.bounds = bounds
	}
}
