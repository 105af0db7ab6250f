package scene

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/backend"
	"github.com/Carmen-Shannon/oxy-rt/engine/light"
	"github.com/Carmen-Shannon/oxy-rt/engine/material"
	"github.com/Carmen-Shannon/oxy-rt/engine/mesh"
	"github.com/Carmen-Shannon/oxy-rt/engine/texture"
)

// ErrCapacityExceeded is returned by Scene.Update when a frame needs more instances,
// materials, textures or lights than the scene's tables hold. The frame is aborted and
// descriptor writes already applied are not rolled back.
var ErrCapacityExceeded = errors.New("scene: capacity exceeded")

// Bindings of the scene descriptor set.
const (
	BindingMaterials   uint32 = 0
	BindingInstances   uint32 = 1
	BindingLights      uint32 = 2
	BindingTLAS        uint32 = 3
	BindingEnvironment uint32 = 4
)

// registry holds the deduplicated resource tables of the last structural pass. Slots are
// assigned in traversal order, so an unchanged graph always yields the same slots.
type registry struct {
	meshSlots     map[mesh.Mesh]uint32
	materialSlots map[material.Material]uint32
	textureSlots  map[texture.Texture]int32

	vertexBuffers   []backend.Buffer
	indexBuffers    []backend.Buffer
	materialIndices []backend.Buffer
	textures        []backend.Image
	environment     backend.Image

	// published is what the descriptor sets currently hold.
	published struct {
		vertexBuffers   []backend.Buffer
		indexBuffers    []backend.Buffer
		materialIndices []backend.Buffer
		textures        []backend.Image
		environment     backend.Image
	}
}

func newRegistry() *registry {
	return &registry{
		meshSlots:     make(map[mesh.Mesh]uint32),
		materialSlots: make(map[material.Material]uint32),
		textureSlots:  make(map[texture.Texture]int32),
	}
}

func (r *registry) reset() {
	clear(r.meshSlots)
	clear(r.materialSlots)
	clear(r.textureSlots)
	r.vertexBuffers = r.vertexBuffers[:0]
	r.indexBuffers = r.indexBuffers[:0]
	r.materialIndices = r.materialIndices[:0]
	r.textures = r.textures[:0]
	r.environment = nil
}

// register re-derives every table from the frame's mesh list, packs material records,
// material-index pairs and area lights, then writes the descriptors of tables that changed.
func (s *scene) register(state *RenderState) error {
	r := s.registry
	r.reset()

	if uint32(len(state.Meshes)) > s.capacity.MaxMeshInstances {
		return fmt.Errorf("%d mesh instances, limit %d: %w", len(state.Meshes), s.capacity.MaxMeshInstances, ErrCapacityExceeded)
	}

	var texErr error
	textureSlot := func(t texture.Texture) int32 {
		if slot, ok := r.textureSlots[t]; ok {
			return slot
		}
		if uint32(len(r.textures)) >= s.capacity.MaxTextures {
			texErr = fmt.Errorf("texture %q, limit %d: %w", t.Name(), s.capacity.MaxTextures, ErrCapacityExceeded)
			return material.NoTexture
		}
		slot := int32(len(r.textures))
		r.textureSlots[t] = slot
		r.textures = append(r.textures, t.Image())
		return slot
	}

	materials := s.materialBuffer.Mapped()
	lights := s.lightBuffer.Mapped()
	var areaLights uint32

	for instance, mn := range state.Meshes {
		p := mn.payload()
		m := p.mesh
		if _, ok := r.meshSlots[m]; !ok {
			r.meshSlots[m] = uint32(len(r.vertexBuffers))
			r.vertexBuffers = append(r.vertexBuffers, m.VertexBuffer())
			r.indexBuffers = append(r.indexBuffers, m.IndexBuffer())
		}

		pairs := p.materialIndices.Mapped()
		for i, sub := range m.SubMeshes() {
			mat := p.effectiveMaterial(i)
			if mat == nil {
				mat = s.defaultMaterial
			}
			slot, ok := r.materialSlots[mat]
			if !ok {
				if uint32(len(r.materialSlots)) >= s.capacity.MaxMaterials {
					return fmt.Errorf("material %q, limit %d: %w", mat.Name(), s.capacity.MaxMaterials, ErrCapacityExceeded)
				}
				slot = uint32(len(r.materialSlots))
				r.materialSlots[mat] = slot
				rec := material.NewGPUMaterial(mat, textureSlot)
				if texErr != nil {
					return texErr
				}
				rec.Marshal(materials[int(slot)*rec.Size():])
				s.materialBuffer.Flush(uint64(int(slot)*rec.Size()), uint64(rec.Size()))
			}

			if mat.IsEmissive() {
				if areaLights >= s.capacity.MaxLights {
					return fmt.Errorf("area lights, limit %d: %w", s.capacity.MaxLights, ErrCapacityExceeded)
				}
				rec := light.NewArea(uint32(instance), slot, sub.PrimitiveOffset(), sub.PrimitiveCount())
				rec.Marshal(lights[int(areaLights)*rec.Size():])
				s.lightBuffer.Flush(uint64(int(areaLights)*rec.Size()), uint64(rec.Size()))
				areaLights++
			}

			if off := i * GPUMaterialIndexSize; off+GPUMaterialIndexSize <= len(pairs) {
				pair := GPUMaterialIndex{PrimitiveOffset: sub.PrimitiveOffset(), MaterialSlot: slot}
				pair.Marshal(pairs[off:])
			}
		}
		p.materialIndices.Flush(0, p.materialIndices.Size())
		r.materialIndices = append(r.materialIndices, p.materialIndices)
	}
	s.areaLights = areaLights

	r.environment = s.environmentImage(state)

	writes := s.descriptorWrites()
	if len(writes) > 0 {
		if err := s.backend.UpdateDescriptorSets(writes); err != nil {
			return fmt.Errorf("scene: update descriptor sets: %w", err)
		}
	}
	s.publish()

	common.Logger().Debug("scene: registered resources",
		"instances", len(state.Meshes),
		"meshes", len(r.vertexBuffers),
		"materials", len(r.materialSlots),
		"textures", len(r.textures),
		"area_lights", areaLights,
		"descriptor_writes", len(writes),
	)
	return nil
}

// environmentImage picks the environment map: the active probe's image, else the sky
// cube map while directional lights exist, else the default cube map.
func (s *scene) environmentImage(state *RenderState) backend.Image {
	if img := state.IBL.Image(); img != nil {
		return img.Image()
	}
	if len(state.DirectionalLights) > 0 && s.sky != nil {
		return s.sky.Cubemap()
	}
	return s.defaultEnvironment
}

// descriptorWrites returns one write per table whose contents differ from what was last published.
func (s *scene) descriptorWrites() []backend.DescriptorWrite {
	r := s.registry
	var writes []backend.DescriptorWrite
	if r.environment != nil && r.environment != r.published.environment {
		writes = append(writes, backend.DescriptorWrite{
			Set:     s.sets.scene,
			Binding: BindingEnvironment,
			Images:  []backend.Image{r.environment},
		})
	}
	bufferTable := func(set backend.DescriptorSet, cur, published []backend.Buffer) {
		if len(cur) == 0 || slices.Equal(cur, published) {
			return
		}
		writes = append(writes, backend.DescriptorWrite{Set: set, Binding: 0, Buffers: slices.Clone(cur)})
	}
	bufferTable(s.sets.vertexBuffers, r.vertexBuffers, r.published.vertexBuffers)
	bufferTable(s.sets.indexBuffers, r.indexBuffers, r.published.indexBuffers)
	bufferTable(s.sets.materialIndices, r.materialIndices, r.published.materialIndices)
	if len(r.textures) > 0 && !slices.Equal(r.textures, r.published.textures) {
		writes = append(writes, backend.DescriptorWrite{Set: s.sets.textures, Binding: 0, Images: slices.Clone(r.textures)})
	}
	return writes
}

func (s *scene) publish() {
	r := s.registry
	r.published.vertexBuffers = append(r.published.vertexBuffers[:0], r.vertexBuffers...)
	r.published.indexBuffers = append(r.published.indexBuffers[:0], r.indexBuffers...)
	r.published.materialIndices = append(r.published.materialIndices[:0], r.materialIndices...)
	r.published.textures = append(r.published.textures[:0], r.textures...)
	if r.environment != nil {
		r.published.environment = r.environment
	}
}

// writeLights packs the environment entry and the punctual lights after the area
// lights of the last structural pass, in the order directional, point, spot.
func (s *scene) writeLights(state *RenderState) error {
	count := s.areaLights
	if state.IBL.Image() != nil || len(state.DirectionalLights) > 0 {
		count++
	}
	count += uint32(len(state.DirectionalLights) + len(state.PointLights) + len(state.SpotLights))
	if count > s.capacity.MaxLights {
		return fmt.Errorf("%d lights, limit %d: %w", count, s.capacity.MaxLights, ErrCapacityExceeded)
	}

	buf := s.lightBuffer.Mapped()
	next := s.areaLights
	put := func(rec light.GPULight) {
		rec.Marshal(buf[int(next)*rec.Size():])
		next++
	}
	if state.IBL.Image() != nil || len(state.DirectionalLights) > 0 {
		put(light.NewEnvironment())
	}
	for _, l := range state.DirectionalLights {
		p := l.payload()
		put(light.NewDirectional(p.color, p.intensity, l.Forward(), p.radius))
	}
	for _, l := range state.PointLights {
		p := l.payload()
		put(light.NewPoint(p.color, p.intensity, l.GlobalPosition(), p.radius))
	}
	for _, l := range state.SpotLights {
		p := l.payload()
		put(light.NewSpot(p.color, p.intensity, l.Forward(), l.GlobalPosition(), p.radius, p.innerDeg, p.outerDeg))
	}
	var rec light.GPULight
	first := int(s.areaLights) * rec.Size()
	s.lightBuffer.Flush(uint64(first), uint64(int(next)*rec.Size()-first))
	s.lightCount = count
	return nil
}

// writeInstances rewrites the instance record and the TLAS instance record of every
// visible mesh. It runs every frame since transforms change without structural change.
func (s *scene) writeInstances(state *RenderState) {
	records := s.instanceBuffer.Mapped()
	staging := s.tlas.hostInstances.Mapped()
	for i, mn := range state.Meshes {
		slot, _ := mn.slot()
		m := mn.payload().mesh
		model := s.graph.world(slot)

		inst := GPUInstance{
			Model:     model,
			Normal:    s.graph.worldWithoutScale(slot),
			MeshIndex: s.registry.meshSlots[m],
		}
		inst.Marshal(records[i*GPUInstanceSize:])

		var blas uint64
		if as := m.AccelerationStructure(); as != nil {
			blas = as.DeviceAddress()
		}
		tlasInst := NewGPUTLASInstance(uint32(i), model, blas)
		tlasInst.Marshal(staging[i*GPUTLASInstanceSize:])
	}
	n := len(state.Meshes)
	s.instanceBuffer.Flush(0, uint64(n*GPUInstanceSize))
	s.tlas.hostInstances.Flush(0, uint64(n*GPUTLASInstanceSize))
}
