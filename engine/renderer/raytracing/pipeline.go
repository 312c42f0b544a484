package raytracing

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"

	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/spaghettifunk/anima-rt/engine/renderer/metadata"
)

// PipelineState is the part of a pipeline state object the shader binding table consumes.
type PipelineState interface {
	Desc() metadata.PipelineStateDesc
	RayTracingPipelineDesc() metadata.RayTracingPipelineDesc
	// CopyShaderHandle writes the handle of the named shader group at the start of dst.
	// len(dst) is the room available at the destination and must hold a whole handle.
	CopyShaderHandle(groupName string, dst []byte) error
}

// RayTracingPipelineCreateInfo lists the shader groups of a ray tracing pipeline.
// Groups are indexed in declaration order: general, triangle hit, procedural hit.
type RayTracingPipelineCreateInfo struct {
	Desc                 metadata.PipelineStateDesc
	RayTracing           metadata.RayTracingPipelineDesc
	GeneralShaders       []string
	TriangleHitShaders   []string
	ProceduralHitShaders []string
}

// RayTracingPipeline holds the shader group handles of a ray tracing pipeline.
// Handles start out as deterministic per-group values; a backend replaces them with
// the driver's handles through SetShaderGroupHandles.
type RayTracingPipeline struct {
	desc       metadata.PipelineStateDesc
	rtDesc     metadata.RayTracingPipelineDesc
	handleSize uint32
	groups     map[string]uint32
	handles    []byte
}

func NewRayTracingPipeline(device RenderDevice, info *RayTracingPipelineCreateInfo) (*RayTracingPipeline, error) {
	desc := info.Desc
	desc.Name = core.ObjectName("pipeline", desc.Name)

	if desc.PipelineType != metadata.PipelineTypeRayTracing {
		err := fmt.Errorf("pipeline '%s': %w", desc.Name, core.ErrNotRayTracingPipeline)
		core.LogError("%s", err.Error())
		return nil, err
	}

	p := &RayTracingPipeline{
		desc:       desc,
		rtDesc:     info.RayTracing,
		handleSize: device.ShaderGroupHandleSize(),
		groups:     make(map[string]uint32),
	}

	all := make([]string, 0, len(info.GeneralShaders)+len(info.TriangleHitShaders)+len(info.ProceduralHitShaders))
	all = append(all, info.GeneralShaders...)
	all = append(all, info.TriangleHitShaders...)
	all = append(all, info.ProceduralHitShaders...)

	if len(all) == 0 {
		err := fmt.Errorf("pipeline '%s': %w: at least one shader group is required", desc.Name, core.ErrInvalidDescription)
		core.LogError("%s", err.Error())
		return nil, err
	}

	p.handles = make([]byte, len(all)*int(p.handleSize))
	for i, name := range all {
		if name == "" {
			err := fmt.Errorf("pipeline '%s': %w: shader group %d has no name", desc.Name, core.ErrInvalidDescription, i)
			core.LogError("%s", err.Error())
			return nil, err
		}
		if _, exists := p.groups[name]; exists {
			err := fmt.Errorf("pipeline '%s': %w: shader group name '%s' is not unique", desc.Name, core.ErrInvalidDescription, name)
			core.LogError("%s", err.Error())
			return nil, err
		}
		p.groups[name] = uint32(i)
		fillDefaultHandle(p.handles[i*int(p.handleSize):(i+1)*int(p.handleSize)], uint32(i), name)
	}

	core.LogDebug("ray tracing pipeline '%s' created with %d shader groups", desc.Name, len(all))
	return p, nil
}

// fillDefaultHandle writes a handle that is unique per group: the group index
// followed by a hash of its name, repeated to fill the handle.
func fillDefaultHandle(dst []byte, index uint32, name string) {
	var seed [12]byte
	binary.LittleEndian.PutUint32(seed[0:4], index+1)
	h := fnv.New64a()
	h.Write([]byte(name))
	binary.LittleEndian.PutUint64(seed[4:12], h.Sum64())
	for i := range dst {
		dst[i] = seed[i%len(seed)]
	}
}

func (p *RayTracingPipeline) Desc() metadata.PipelineStateDesc {
	return p.desc
}

func (p *RayTracingPipeline) RayTracingPipelineDesc() metadata.RayTracingPipelineDesc {
	return p.rtDesc
}

// ShaderGroupCount returns the number of shader groups in the pipeline.
func (p *RayTracingPipeline) ShaderGroupCount() uint32 {
	return uint32(len(p.groups))
}

// ShaderGroupIndex returns the index of the named group, or InvalidIndex.
func (p *RayTracingPipeline) ShaderGroupIndex(name string) uint32 {
	if idx, ok := p.groups[name]; ok {
		return idx
	}
	return metadata.InvalidIndex
}

// SetShaderGroupHandles replaces all handles, laid out as ShaderGroupCount
// consecutive handles in group index order.
func (p *RayTracingPipeline) SetShaderGroupHandles(handles []byte) error {
	if len(handles) != len(p.handles) {
		return fmt.Errorf("pipeline '%s': expected %d bytes of shader group handles, got %d", p.desc.Name, len(p.handles), len(handles))
	}
	copy(p.handles, handles)
	return nil
}

func (p *RayTracingPipeline) CopyShaderHandle(groupName string, dst []byte) error {
	idx, ok := p.groups[groupName]
	if !ok {
		return fmt.Errorf("pipeline '%s': %w '%s'", p.desc.Name, core.ErrUnknownShaderGroup, groupName)
	}
	if uint32(len(dst)) < p.handleSize {
		return fmt.Errorf("pipeline '%s': %w: destination (%d bytes) is smaller than the shader group handle (%d bytes)",
			p.desc.Name, core.ErrContractViolation, len(dst), p.handleSize)
	}
	begin := idx * p.handleSize
	copy(dst, p.handles[begin:begin+p.handleSize])
	return nil
}
