package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/spaghettifunk/anima-rt/engine/renderer/metadata"
)

/**
 * @brief Ray tracing pipeline properties of a physical device, as reported by
 * VkPhysicalDeviceRayTracingPipelinePropertiesKHR.
 */
type RayTracingProperties struct {
	ShaderGroupHandleSize              uint32
	MaxRayRecursionDepth               uint32
	MaxShaderGroupStride               uint32
	ShaderGroupBaseAlignment           uint32
	ShaderGroupHandleCaptureReplaySize uint32
	MaxRayDispatchInvocationCount      uint32
	ShaderGroupHandleAlignment         uint32
	MaxRayHitAttributeSize             uint32
}

/**
 * @brief A Vulkan physical device seen through the limits the shader binding table needs.
 */
type VulkanRayTracingDevice struct {
	Properties vk.PhysicalDeviceProperties
	RayTracing RayTracingProperties
}

func NewVulkanRayTracingDevice(properties vk.PhysicalDeviceProperties, rayTracing RayTracingProperties) (*VulkanRayTracingDevice, error) {
	d := &VulkanRayTracingDevice{
		Properties: properties,
		RayTracing: rayTracing,
	}

	if rayTracing.ShaderGroupHandleSize == 0 {
		err := fmt.Errorf("%w: device '%s' reports no ray tracing support", core.ErrInvalidDescription, d.DeviceName())
		core.LogError("%s", err.Error())
		return nil, err
	}

	core.LogInfo("Selected device: '%s'.", d.DeviceName())
	switch properties.DeviceType {
	default:
		fallthrough
	case vk.PhysicalDeviceTypeOther:
		core.LogInfo("GPU type is Unknown.")
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	}
	core.LogInfo("Shader group handle size: %d, max shader group stride: %d, base alignment: %d",
		rayTracing.ShaderGroupHandleSize, rayTracing.MaxShaderGroupStride, rayTracing.ShaderGroupBaseAlignment)

	return d, nil
}

func (d *VulkanRayTracingDevice) DeviceName() string {
	name := d.Properties.DeviceName[:]
	return string(name[:FindFirstZeroInByteArray(name)])
}

func (d *VulkanRayTracingDevice) ShaderGroupHandleSize() uint32 {
	return d.RayTracing.ShaderGroupHandleSize
}

func (d *VulkanRayTracingDevice) MaxShaderRecordStride() uint32 {
	return d.RayTracing.MaxShaderGroupStride
}

func (d *VulkanRayTracingDevice) ShaderGroupBaseAlignment() uint32 {
	return d.RayTracing.ShaderGroupBaseAlignment
}

// Limits returns the device limits in backend independent form.
func (d *VulkanRayTracingDevice) Limits() metadata.DeviceLimits {
	return metadata.DeviceLimits{
		ShaderGroupHandleSize:    d.RayTracing.ShaderGroupHandleSize,
		MaxShaderRecordStride:    d.RayTracing.MaxShaderGroupStride,
		ShaderGroupBaseAlignment: d.RayTracing.ShaderGroupBaseAlignment,
	}
}
