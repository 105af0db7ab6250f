package scene

// visit is the single depth-first pass that fills state. Structural flags are consumed
// before the enabled check so that disabling a node is itself observed as a change.
func (g *graph) visit(slot int32, state *RenderState) {
	n := &g.slots[slot]
	if n.hierarchyDirty {
		state.structureChanged = true
		n.hierarchyDirty = false
	}
	if !n.enabled {
		return
	}
	if n.xf != nil && n.xf.recompute() {
		state.transformsChanged = true
	}
	if n.paramsDirty {
		state.transformsChanged = true
		n.paramsDirty = false
	}

	h := Node{g: g, id: n.id}
	switch n.kind {
	case KindMesh:
		if n.mesh.mesh != nil {
			state.Meshes = append(state.Meshes, MeshNode{TransformNode{h}})
		}
	case KindDirectionalLight:
		state.DirectionalLights = append(state.DirectionalLights, LightNode{TransformNode{h}})
	case KindSpotLight:
		state.SpotLights = append(state.SpotLights, LightNode{TransformNode{h}})
	case KindPointLight:
		state.PointLights = append(state.PointLights, LightNode{TransformNode{h}})
	case KindCamera:
		cam := CameraNode{TransformNode{h}}
		cam.updateMatrices(slot, state.Viewport)
		if state.Camera.g == nil {
			state.Camera = cam
		}
	case KindIBL:
		if state.IBL.g == nil {
			state.IBL = IBLNode{h}
		}
	}

	for _, c := range n.children {
		g.visit(c, state)
	}
}
