package scene

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-rt/common"
	"github.com/Carmen-Shannon/oxy-rt/engine/backend"
)

// tlasSync owns the top-level acceleration structure and its instance and scratch buffers.
type tlasSync struct {
	as backend.AccelerationStructure
	// hostInstances is the host-visible staging copy written every frame.
	hostInstances backend.Buffer
	// instances is the device-local copy the build reads.
	instances backend.Buffer
	scratch   backend.Buffer

	built      bool
	builtCount uint32
	lastMode   backend.BuildMode
}

func newTLASSync(b backend.Backend, label string, maxInstances uint32) (*tlasSync, error) {
	t := &tlasSync{}
	var err error
	t.as, err = b.CreateAccelerationStructure(backend.AccelerationStructureDescriptor{
		Label:        label + " tlas",
		Level:        backend.LevelTop,
		Flags:        backend.BuildPreferFastTrace | backend.BuildAllowUpdate,
		MaxInstances: maxInstances,
	})
	if err != nil {
		return nil, fmt.Errorf("scene: create tlas: %w", err)
	}
	size := uint64(maxInstances) * uint64(GPUTLASInstanceSize)
	t.hostInstances, err = b.CreateBuffer(backend.BufferDescriptor{
		Label:    label + " tlas instances (host)",
		Size:     size,
		Usage:    backend.BufferUsageTransferSrc,
		Location: backend.MemoryHostToDevice,
	})
	if err != nil {
		t.release()
		return nil, fmt.Errorf("scene: create tlas staging buffer: %w", err)
	}
	t.instances, err = b.CreateBuffer(backend.BufferDescriptor{
		Label:    label + " tlas instances",
		Size:     size,
		Usage:    backend.BufferUsageTransferDst | backend.BufferUsageAccelerationStructureInput | backend.BufferUsageDeviceAddress,
		Location: backend.MemoryDeviceLocal,
	})
	if err != nil {
		t.release()
		return nil, fmt.Errorf("scene: create tlas instance buffer: %w", err)
	}
	t.scratch, err = b.CreateBuffer(backend.BufferDescriptor{
		Label:    label + " tlas scratch",
		Size:     t.as.ScratchSize(),
		Usage:    backend.BufferUsageStorage | backend.BufferUsageDeviceAddress,
		Location: backend.MemoryDeviceLocal,
	})
	if err != nil {
		t.release()
		return nil, fmt.Errorf("scene: create tlas scratch buffer: %w", err)
	}
	return t, nil
}

// mode returns Build when nothing was built yet or the instance count changed since the
// last build, since a refit cannot add or drop instances.
func (t *tlasSync) mode(count uint32) backend.BuildMode {
	if !t.built || count != t.builtCount {
		return backend.BuildModeBuild
	}
	return backend.BuildModeUpdate
}

// record copies count staged instances to the device, builds or refits the structure and
// makes the result visible to later builds and ray tracing.
func (t *tlasSync) record(cmd backend.CommandRecorder, count uint32) backend.BuildMode {
	mode := t.mode(count)
	if count > 0 {
		cmd.CopyBuffer(t.hostInstances, 0, t.instances, 0, uint64(count)*uint64(GPUTLASInstanceSize))
	}
	cmd.PipelineBarrier(backend.MemoryBarrier{
		SrcAccess: backend.AccessTransferWrite,
		DstAccess: backend.AccessAccelerationStructureWrite,
		SrcStage:  backend.StageTransfer,
		DstStage:  backend.StageAccelerationStructureBuild,
	})
	cmd.BuildAccelerationStructure(backend.BuildInfo{
		Dst:           t.as,
		Mode:          mode,
		Instances:     t.instances,
		InstanceCount: count,
		Scratch:       t.scratch,
	})
	cmd.PipelineBarrier(backend.MemoryBarrier{
		SrcAccess: backend.AccessAccelerationStructureWrite,
		DstAccess: backend.AccessAccelerationStructureRead | backend.AccessAccelerationStructureWrite,
		SrcStage:  backend.StageAccelerationStructureBuild,
		DstStage:  backend.StageAccelerationStructureBuild | backend.StageRayTracingShader,
	})

	if !t.built {
		common.Logger().Info("scene: first tlas build", "instances", count)
	}
	t.built = true
	t.builtCount = count
	t.lastMode = mode
	return mode
}

// invalidate forgets the last recorded build so the next record is a full build.
func (t *tlasSync) invalidate() {
	t.built = false
	t.builtCount = 0
}

func (t *tlasSync) release() {
	for _, r := range []backend.Releasable{t.scratch, t.instances, t.hostInstances, t.as} {
		if r != nil {
			r.Release()
		}
	}
}
