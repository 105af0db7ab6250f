package mesh

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/backend"
)

const vertexUsage = backend.BufferUsageStorage | backend.BufferUsageVertex |
	backend.BufferUsageAccelerationStructureInput | backend.BufferUsageDeviceAddress

const indexUsage = backend.BufferUsageStorage | backend.BufferUsageIndex |
	backend.BufferUsageAccelerationStructureInput | backend.BufferUsageDeviceAddress

// Upload creates vertex and index buffers for the given geometry, a bottom-level
// acceleration structure bounding it, and wraps them in a Mesh. Options are applied
// after the computed bounds, so WithBounds overrides them.
//
// Parameters:
//   - b: the backend to allocate on
//   - name: the mesh name, also used for buffer labels
//   - vertices: the vertices
//   - indices: triangle indices, three per triangle
//   - options: functional options to configure the mesh
//
// Returns:
//   - Mesh: the mesh
//   - error: error if an allocation fails or the index count is not a multiple of three
func Upload(b backend.Backend, name string, vertices []GPUVertex, indices []uint32, options ...MeshBuilderOption) (Mesh, error) {
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("mesh: %q has %d indices, want a multiple of 3", name, len(indices))
	}

	var v GPUVertex
	vbo, err := b.CreateBuffer(backend.BufferDescriptor{
		Label:    name + " Vertices",
		Size:     uint64(len(vertices) * v.Size()),
		Usage:    vertexUsage,
		Location: backend.MemoryHostToDevice,
	})
	if err != nil {
		return nil, fmt.Errorf("mesh: create vertex buffer %q: %w", name, err)
	}
	bounds := common.EmptyAABB()
	mapped := vbo.Mapped()
	for i := range vertices {
		vertices[i].Marshal(mapped[i*v.Size():])
		bounds = bounds.GrowPoint(vertices[i].Position)
	}
	vbo.Flush(0, vbo.Size())

	ibo, err := b.CreateBuffer(backend.BufferDescriptor{
		Label:    name + " Indices",
		Size:     uint64(len(indices) * 4),
		Usage:    indexUsage,
		Location: backend.MemoryHostToDevice,
	})
	if err != nil {
		vbo.Release()
		return nil, fmt.Errorf("mesh: create index buffer %q: %w", name, err)
	}
	marshalIndices(ibo.Mapped(), indices)
	ibo.Flush(0, ibo.Size())

	blas, err := b.CreateAccelerationStructure(backend.AccelerationStructureDescriptor{
		Label: name + " BLAS",
		Level: backend.LevelBottom,
		Flags: backend.BuildPreferFastTrace,
		Bounds: backend.Bounds{
			Min: [3]float32(bounds.Min),
			Max: [3]float32(bounds.Max),
		},
	})
	if err != nil {
		vbo.Release()
		ibo.Release()
		return nil, fmt.Errorf("mesh: create acceleration structure %q: %w", name, err)
	}

	opts := append([]MeshBuilderOption{WithName(name), WithBounds(bounds), WithAccelerationStructure(blas)}, options...)
	return NewMesh(vbo, ibo, opts...), nil
}
