package metadata

import (
	"fmt"
	"strings"
)

/** @brief Special value for TLAS instances asking for an automatically computed hit group offset. */
const TLASInstanceOffsetAuto uint32 = 0xFFFFFFFF

/** @brief Returned by index lookups when nothing matches. */
const InvalidIndex uint32 = 0xFFFFFFFF

/**
 * @brief Defines how the hit group index of a ray is computed from the instance and geometry it hits.
 */
type ShaderBindingMode uint8

const (
	/** @brief Every geometry of every instance has its own hit group slot(s). */
	ShaderBindingModePerGeometry ShaderBindingMode = iota
	/** @brief Every instance has a single hit group slot per ray type. */
	ShaderBindingModePerInstance
	/** @brief The application provides all instance offsets explicitly. */
	ShaderBindingUserDefined
)

func (m ShaderBindingMode) String() string {
	switch m {
	case ShaderBindingModePerGeometry:
		return "per_geometry"
	case ShaderBindingModePerInstance:
		return "per_instance"
	case ShaderBindingUserDefined:
		return "user_defined"
	default:
		return fmt.Sprintf("ShaderBindingMode(%d)", uint8(m))
	}
}

// ParseShaderBindingMode converts the configuration spelling of a binding mode.
// An empty string selects per-geometry binding.
func ParseShaderBindingMode(s string) (ShaderBindingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "per_geometry":
		return ShaderBindingModePerGeometry, nil
	case "per_instance":
		return ShaderBindingModePerInstance, nil
	case "user_defined":
		return ShaderBindingUserDefined, nil
	default:
		return ShaderBindingModePerGeometry, fmt.Errorf("unknown shader binding mode '%s'", s)
	}
}

/** @brief The pipeline kinds a pipeline state can hold. */
type PipelineType uint8

const (
	PipelineTypeGraphics PipelineType = iota
	PipelineTypeCompute
	PipelineTypeMesh
	PipelineTypeRayTracing
)

/**
 * @brief Usage state of a resource as a whole, used by callers to decide barriers.
 * States are bit flags; a single state is a single bit.
 */
type ResourceState uint32

const (
	ResourceStateUnknown        ResourceState = 0
	ResourceStateUndefined      ResourceState = 1 << 0
	ResourceStateShaderResource ResourceState = 1 << 1
	ResourceStateCopyDest       ResourceState = 1 << 2
	ResourceStateCopySource     ResourceState = 1 << 3
	ResourceStateBuildASRead    ResourceState = 1 << 4
	ResourceStateBuildASWrite   ResourceState = 1 << 5
	ResourceStateRayTracing     ResourceState = 1 << 6
)

/** @brief Acceleration structure build flags. */
type RaytracingBuildASFlags uint8

const (
	RaytracingBuildASNone            RaytracingBuildASFlags = 0
	RaytracingBuildASAllowUpdate     RaytracingBuildASFlags = 1 << 0
	RaytracingBuildASAllowCompaction RaytracingBuildASFlags = 1 << 1
	RaytracingBuildASPreferFastTrace RaytracingBuildASFlags = 1 << 2
	RaytracingBuildASPreferFastBuild RaytracingBuildASFlags = 1 << 3
	RaytracingBuildASLowMemory       RaytracingBuildASFlags = 1 << 4
)

type PipelineStateDesc struct {
	Name         string
	PipelineType PipelineType
}

type RayTracingPipelineDesc struct {
	/** @brief Size of the user data stored after the shader group handle in every shader record. */
	ShaderRecordSize uint32
	/** @brief Maximum recursion depth of TraceRay calls. */
	MaxRecursionDepth uint8
}

/** @brief A triangle geometry of a bottom-level AS. */
type BLASTriangleDesc struct {
	GeometryName      string
	MaxVertexCount    uint32
	MaxPrimitiveCount uint32
}

/** @brief A procedural (axis-aligned box) geometry of a bottom-level AS. */
type BLASBoundingBoxDesc struct {
	GeometryName string
	MaxBoxCount  uint32
}

type BottomLevelASDesc struct {
	Name      string
	Triangles []BLASTriangleDesc
	Boxes     []BLASBoundingBoxDesc
	Flags     RaytracingBuildASFlags
}

/** @brief The number of triangle geometries. */
func (d *BottomLevelASDesc) TriangleCount() uint32 {
	return uint32(len(d.Triangles))
}

/** @brief The number of procedural box geometries. */
func (d *BottomLevelASDesc) BoxCount() uint32 {
	return uint32(len(d.Boxes))
}

type TopLevelASDesc struct {
	Name string
	/** @brief Maximum number of instances the TLAS can be built with. Must not be zero. */
	MaxInstanceCount uint32
	Flags            RaytracingBuildASFlags
	BindingMode      ShaderBindingMode
}

/**
 * @brief Ray tracing limits of a device.
 */
type DeviceLimits struct {
	/** @brief Size in bytes of a shader group handle. */
	ShaderGroupHandleSize uint32 `toml:"shader_group_handle_size"`
	/** @brief Maximum stride in bytes between two shader records. */
	MaxShaderRecordStride uint32 `toml:"max_shader_record_stride"`
	/** @brief Required alignment of the start of every shader table. */
	ShaderGroupBaseAlignment uint32 `toml:"shader_group_base_alignment"`
}
