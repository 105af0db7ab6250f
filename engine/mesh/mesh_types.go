package mesh

// SubMesh is a contiguous index range drawn with one material.
type SubMesh struct {
	// MaterialIndex indexes the owning mesh's material list.
	MaterialIndex uint32

	// BaseIndex is the first index of the range in the index buffer.
	BaseIndex uint32

	// IndexCount is the number of indices in the range (three per triangle).
	IndexCount uint32

	// BaseVertex is added to every index of the range.
	BaseVertex uint32
}

// PrimitiveOffset returns the first triangle of the range.
func (s SubMesh) PrimitiveOffset() uint32 {
	return s.BaseIndex / 3
}

// PrimitiveCount returns the number of triangles in the range.
func (s SubMesh) PrimitiveCount() uint32 {
	return s.IndexCount / 3
}
