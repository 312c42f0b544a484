package raytracing

import (
	"fmt"

	"github.com/spaghettifunk/anima-rt/engine/containers"
	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/spaghettifunk/anima-rt/engine/renderer/metadata"
)

type ShaderBindingTableDesc struct {
	Name string
	// Pipeline must be a ray tracing pipeline; it provides the shader group handles.
	Pipeline PipelineState
	// HitShadersPerInstance is the number of ray types every geometry has a hit group for.
	HitShadersPerInstance uint32
}

// ShaderBindingTable lays out the ray generation, miss, hit group and callable
// shader records. Every record is [shader group handle][user data] and all
// records share the same stride. Records are overwritten in place; tables only
// grow and unwritten bytes hold containers.EmptyRecordByte.
//
// A table is not safe for concurrent use.
type ShaderBindingTable struct {
	desc     ShaderBindingTableDesc
	device   RenderDevice
	pipeline PipelineState

	shaderRecordSize   uint32
	shaderRecordStride uint32

	rayGen    *containers.RecordBuffer
	miss      *containers.RecordBuffer
	callable  *containers.RecordBuffer
	hitGroups *containers.RecordBuffer

	changed bool
}

func NewShaderBindingTable(device RenderDevice, desc *ShaderBindingTableDesc) (*ShaderBindingTable, error) {
	sbt := &ShaderBindingTable{
		device:    device,
		rayGen:    containers.NewRecordBuffer(0),
		miss:      containers.NewRecordBuffer(0),
		callable:  containers.NewRecordBuffer(0),
		hitGroups: containers.NewRecordBuffer(0),
	}
	if err := sbt.Reset(desc); err != nil {
		return nil, err
	}
	return sbt, nil
}

func validateShaderBindingTableDesc(device RenderDevice, desc *ShaderBindingTableDesc) error {
	if desc.Pipeline == nil {
		return fmt.Errorf("description of shader binding table '%s' is invalid: %w: %w", desc.Name, core.ErrInvalidDescription, core.ErrNilPipeline)
	}
	if desc.Pipeline.Desc().PipelineType != metadata.PipelineTypeRayTracing {
		return fmt.Errorf("description of shader binding table '%s' is invalid: %w: %w", desc.Name, core.ErrInvalidDescription, core.ErrNotRayTracingPipeline)
	}

	handleSize := device.ShaderGroupHandleSize()
	maxStride := device.MaxShaderRecordStride()
	recordSize := desc.Pipeline.RayTracingPipelineDesc().ShaderRecordSize
	stride := recordSize + handleSize

	if handleSize == 0 {
		return fmt.Errorf("description of shader binding table '%s' is invalid: %w: shader group handle size is zero", desc.Name, core.ErrInvalidDescription)
	}
	if stride > maxStride {
		return fmt.Errorf("description of shader binding table '%s' is invalid: %w: %w: ShaderRecordSize(%d) is too big, max size is: %d",
			desc.Name, core.ErrInvalidDescription, core.ErrShaderRecordTooBig, recordSize, maxStride-handleSize)
	}
	if stride%handleSize != 0 {
		return fmt.Errorf("description of shader binding table '%s' is invalid: %w: %w: ShaderRecordSize(%d) plus ShaderGroupHandleSize(%d) must be multiple of %d",
			desc.Name, core.ErrInvalidDescription, core.ErrMisalignedShaderRecord, recordSize, handleSize, handleSize)
	}
	return nil
}

// Reset clears all records and reconfigures the table. When desc is invalid the
// table is left empty and detached from any pipeline, and the error is returned.
func (sbt *ShaderBindingTable) Reset(desc *ShaderBindingTableDesc) error {
	sbt.rayGen.Reset()
	sbt.miss.Reset()
	sbt.callable.Reset()
	sbt.hitGroups.Reset()
	sbt.changed = true
	sbt.pipeline = nil
	sbt.desc = ShaderBindingTableDesc{}
	sbt.shaderRecordSize = 0
	sbt.shaderRecordStride = 0

	var d ShaderBindingTableDesc
	if desc != nil {
		d = *desc
	}
	d.Name = core.ObjectName("sbt", d.Name)
	if err := validateShaderBindingTableDesc(sbt.device, &d); err != nil {
		core.LogError("%s", err.Error())
		return err
	}

	sbt.desc = d
	sbt.pipeline = d.Pipeline
	sbt.shaderRecordSize = d.Pipeline.RayTracingPipelineDesc().ShaderRecordSize
	sbt.shaderRecordStride = sbt.shaderRecordSize + sbt.device.ShaderGroupHandleSize()

	for _, rb := range []*containers.RecordBuffer{sbt.rayGen, sbt.miss, sbt.callable, sbt.hitGroups} {
		rb.SetStride(sbt.shaderRecordStride)
	}
	return nil
}

// ResetHitGroups drops the hit group records only and changes the number of
// hit shaders per instance used to place them.
func (sbt *ShaderBindingTable) ResetHitGroups(hitShadersPerInstance uint32) {
	sbt.desc.HitShadersPerInstance = hitShadersPerInstance
	sbt.hitGroups.Reset()
	sbt.changed = true
}

func (sbt *ShaderBindingTable) BindRayGenShader(shaderGroupName string, data []byte) error {
	handle, err := sbt.prepareRecord(shaderGroupName, data, 1)
	if err != nil {
		return err
	}

	sbt.rayGen.Resize(int(sbt.shaderRecordStride))
	sbt.writeRecord(sbt.rayGen.Record(0), handle, data)
	sbt.changed = true
	core.LogDebug("sbt '%s': ray gen shader '%s' bound", sbt.desc.Name, shaderGroupName)
	return nil
}

func (sbt *ShaderBindingTable) BindMissShader(shaderGroupName string, missIndex uint32, data []byte) error {
	handle, err := sbt.prepareRecord(shaderGroupName, data, 1)
	if err != nil {
		return err
	}

	sbt.writeRecord(sbt.miss.Record(missIndex), handle, data)
	sbt.changed = true
	core.LogDebug("sbt '%s': miss shader '%s' bound at %d", sbt.desc.Name, shaderGroupName, missIndex)
	return nil
}

func (sbt *ShaderBindingTable) BindCallableShader(shaderGroupName string, callableIndex uint32, data []byte) error {
	handle, err := sbt.prepareRecord(shaderGroupName, data, 1)
	if err != nil {
		return err
	}

	sbt.writeRecord(sbt.callable.Record(callableIndex), handle, data)
	sbt.changed = true
	core.LogDebug("sbt '%s': callable shader '%s' bound at %d", sbt.desc.Name, shaderGroupName, callableIndex)
	return nil
}

// BindHitGroup binds a shader group to one geometry of one instance for the ray
// type rayOffsetInHitGroupIndex. The TLAS must use per-geometry binding.
// The record lands at index
//
//	instanceOffset + geometryIndex*HitShadersPerInstance + rayOffsetInHitGroupIndex
func (sbt *ShaderBindingTable) BindHitGroup(tlas InstanceTable, instanceName, geometryName string, rayOffsetInHitGroupIndex uint32, shaderGroupName string, data []byte) error {
	if err := sbt.checkHitGroupArgs(tlas, rayOffsetInHitGroupIndex); err != nil {
		return err
	}
	if mode := tlas.Desc().BindingMode; mode != metadata.ShaderBindingModePerGeometry {
		return sbt.contractError("BindHitGroup requires per_geometry binding mode, TLAS '%s' uses %s", tlas.Desc().Name, mode)
	}

	inst, err := tlas.GetInstanceDesc(instanceName)
	if err != nil {
		return err
	}
	if inst.BLAS == nil {
		return fmt.Errorf("sbt '%s': instance '%s': %w", sbt.desc.Name, instanceName, core.ErrMissingBLAS)
	}
	geometryIndex := inst.BLAS.GeometryIndex(geometryName)
	if geometryIndex == metadata.InvalidIndex {
		return fmt.Errorf("sbt '%s': %w '%s' in BLAS '%s'", sbt.desc.Name, core.ErrUnknownGeometry, geometryName, inst.BLAS.Name())
	}

	index, err := sbt.hitGroupIndex(inst.ContributionToHitGroupIndex, geometryIndex, rayOffsetInHitGroupIndex)
	if err != nil {
		return err
	}
	handle, err := sbt.prepareRecord(shaderGroupName, data, 1)
	if err != nil {
		return err
	}

	sbt.writeRecord(sbt.hitGroups.Record(index), handle, data)
	sbt.changed = true
	core.LogDebug("sbt '%s': hit group '%s' bound at %d (%s/%s ray %d)", sbt.desc.Name, shaderGroupName, index, instanceName, geometryName, rayOffsetInHitGroupIndex)
	return nil
}

// BindHitGroups binds the same shader group to every geometry of an instance
// (a single slot in per-instance mode). data is empty or the concatenation of
// one record of user data per geometry, in geometry index order.
func (sbt *ShaderBindingTable) BindHitGroups(tlas InstanceTable, instanceName string, rayOffsetInHitGroupIndex uint32, shaderGroupName string, data []byte) error {
	if err := sbt.checkHitGroupArgs(tlas, rayOffsetInHitGroupIndex); err != nil {
		return err
	}

	inst, err := tlas.GetInstanceDesc(instanceName)
	if err != nil {
		return err
	}
	if inst.BLAS == nil {
		return fmt.Errorf("sbt '%s': instance '%s': %w", sbt.desc.Name, instanceName, core.ErrMissingBLAS)
	}

	var geometryCount uint32
	switch mode := tlas.Desc().BindingMode; mode {
	case metadata.ShaderBindingModePerGeometry:
		geometryCount = inst.BLAS.GeometryCount()
	case metadata.ShaderBindingModePerInstance:
		geometryCount = 1
	default:
		return sbt.contractError("BindHitGroups requires per_geometry or per_instance binding mode, TLAS '%s' uses %s", tlas.Desc().Name, mode)
	}

	if _, err := sbt.hitGroupIndex(inst.ContributionToHitGroupIndex, geometryCount-1, rayOffsetInHitGroupIndex); err != nil {
		return err
	}
	handle, err := sbt.prepareRecord(shaderGroupName, data, geometryCount)
	if err != nil {
		return err
	}

	for i := uint32(0); i < geometryCount; i++ {
		var payload []byte
		if len(data) != 0 {
			payload = data[i*sbt.shaderRecordSize : (i+1)*sbt.shaderRecordSize]
		}
		index, _ := sbt.hitGroupIndex(inst.ContributionToHitGroupIndex, i, rayOffsetInHitGroupIndex)
		sbt.writeRecord(sbt.hitGroups.Record(index), handle, payload)
	}
	sbt.changed = true
	core.LogDebug("sbt '%s': hit group '%s' bound to %d geometries of '%s' (ray %d)", sbt.desc.Name, shaderGroupName, geometryCount, instanceName, rayOffsetInHitGroupIndex)
	return nil
}

// Verify reports whether the table can be used for a trace. Completeness of the
// bound records is not checked: it succeeds for any table, configured or not.
func (sbt *ShaderBindingTable) Verify() error {
	return nil
}

// hitGroupIndex computes the record index of a geometry, failing when it does
// not fit in a 32-bit index.
func (sbt *ShaderBindingTable) hitGroupIndex(instanceOffset, geometryIndex, rayOffsetInHitGroupIndex uint32) (uint32, error) {
	index := uint64(instanceOffset) + uint64(geometryIndex)*uint64(sbt.desc.HitShadersPerInstance) + uint64(rayOffsetInHitGroupIndex)
	if index >= uint64(metadata.InvalidIndex) {
		return 0, sbt.contractError("hit group index %d exceeds the index range", index)
	}
	return uint32(index), nil
}

func (sbt *ShaderBindingTable) checkHitGroupArgs(tlas InstanceTable, rayOffsetInHitGroupIndex uint32) error {
	if sbt.pipeline == nil {
		return fmt.Errorf("sbt '%s': %w", sbt.desc.Name, core.ErrNotConfigured)
	}
	if tlas == nil {
		return sbt.contractError("TLAS must not be nil")
	}
	if rayOffsetInHitGroupIndex >= sbt.desc.HitShadersPerInstance {
		return sbt.contractError("ray offset %d must be less than hit shaders per instance (%d)", rayOffsetInHitGroupIndex, sbt.desc.HitShadersPerInstance)
	}
	return nil
}

// prepareRecord validates the user data size for recordCount records and fetches
// the shader group handle, so that nothing is written when either is wrong.
func (sbt *ShaderBindingTable) prepareRecord(shaderGroupName string, data []byte, recordCount uint32) ([]byte, error) {
	if sbt.pipeline == nil {
		return nil, fmt.Errorf("sbt '%s': %w", sbt.desc.Name, core.ErrNotConfigured)
	}
	if len(data) != 0 && uint32(len(data)) != sbt.shaderRecordSize*recordCount {
		return nil, sbt.contractError("user data size (%d) must be %d bytes", len(data), sbt.shaderRecordSize*recordCount)
	}

	handle := make([]byte, sbt.device.ShaderGroupHandleSize())
	if err := sbt.pipeline.CopyShaderHandle(shaderGroupName, handle); err != nil {
		core.LogError("%s", err.Error())
		return nil, err
	}
	return handle, nil
}

func (sbt *ShaderBindingTable) writeRecord(record, handle, data []byte) {
	copy(record, handle)
	copy(record[len(handle):], data)
}

func (sbt *ShaderBindingTable) contractError(format string, args ...interface{}) error {
	err := fmt.Errorf("sbt '%s': %w: %s", sbt.desc.Name, core.ErrContractViolation, fmt.Sprintf(format, args...))
	core.LogError("%s", err.Error())
	return err
}

func (sbt *ShaderBindingTable) Desc() ShaderBindingTableDesc {
	return sbt.desc
}

// Pipeline returns the pipeline the table is attached to, nil after a failed Reset.
func (sbt *ShaderBindingTable) Pipeline() PipelineState {
	return sbt.pipeline
}

func (sbt *ShaderBindingTable) ShaderRecordSize() uint32 {
	return sbt.shaderRecordSize
}

func (sbt *ShaderBindingTable) ShaderRecordStride() uint32 {
	return sbt.shaderRecordStride
}

// RayGenShaderRecord and the other record accessors return the live table
// bytes; they are only valid until the next bind or reset.
func (sbt *ShaderBindingTable) RayGenShaderRecord() []byte {
	return sbt.rayGen.Bytes()
}

func (sbt *ShaderBindingTable) MissShaderRecords() []byte {
	return sbt.miss.Bytes()
}

func (sbt *ShaderBindingTable) HitGroupRecords() []byte {
	return sbt.hitGroups.Bytes()
}

func (sbt *ShaderBindingTable) CallableShaderRecords() []byte {
	return sbt.callable.Bytes()
}

// IsChanged reports whether records changed since the last MarkUploaded.
func (sbt *ShaderBindingTable) IsChanged() bool {
	return sbt.changed
}

// MarkUploaded is called by the uploader once the records reached GPU memory.
func (sbt *ShaderBindingTable) MarkUploaded() {
	sbt.changed = false
}
