package vulkan

import (
	"io"
	"os"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/spaghettifunk/anima-rt/engine/renderer/raytracing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func testProperties(name string) vk.PhysicalDeviceProperties {
	var props vk.PhysicalDeviceProperties
	props.DeviceType = vk.PhysicalDeviceTypeDiscreteGpu
	copy(props.DeviceName[:], name)
	return props
}

func TestVulkanRayTracingDevice(t *testing.T) {
	d, err := NewVulkanRayTracingDevice(testProperties("Test GPU"), RayTracingProperties{
		ShaderGroupHandleSize:    32,
		MaxShaderGroupStride:     4096,
		ShaderGroupBaseAlignment: 64,
	})
	require.NoError(t, err)

	assert.Equal(t, "Test GPU", d.DeviceName())
	assert.Equal(t, uint32(32), d.ShaderGroupHandleSize())
	assert.Equal(t, uint32(4096), d.MaxShaderRecordStride())
	assert.Equal(t, uint32(64), d.ShaderGroupBaseAlignment())
	assert.Equal(t, uint32(4096), d.Limits().MaxShaderRecordStride)

	var _ raytracing.RenderDevice = d

	_, err = NewVulkanRayTracingDevice(testProperties("No RT"), RayTracingProperties{})
	assert.ErrorIs(t, err, core.ErrInvalidDescription)
}

func TestShaderBindingTableRegions(t *testing.T) {
	layout := raytracing.ShaderTableLayout{
		RayGen:   raytracing.ShaderTableRegion{Offset: 0, Size: 64, Stride: 64},
		Miss:     raytracing.ShaderTableRegion{Offset: 64, Size: 128, Stride: 64},
		HitGroup: raytracing.ShaderTableRegion{Offset: 192, Size: 0, Stride: 64},
		Callable: raytracing.ShaderTableRegion{Offset: 192, Size: 64, Stride: 64},
		Size:     256,
	}

	regions := NewShaderBindingTableRegions(vk.NullBuffer, layout)
	assert.Equal(t, vk.DeviceSize(64), regions.RayGen.Size)
	assert.Equal(t, regions.RayGen.Size, regions.RayGen.Stride)
	assert.Equal(t, vk.DeviceSize(64), regions.Miss.Offset)
	assert.Equal(t, vk.DeviceSize(0), regions.HitGroup.Stride)
	assert.Equal(t, vk.DeviceSize(0), regions.HitGroup.Size)

	assert.Equal(t, uint64(0x1000+64), regions.Miss.DeviceAddress(0x1000))
	assert.Equal(t, uint64(0), regions.HitGroup.DeviceAddress(0x1000))

	copies := UploadRegions(layout)
	require.Len(t, copies, 3)
	assert.Equal(t, vk.BufferCopy{SrcOffset: 192, DstOffset: 192, Size: 64}, copies[2])

	assert.Empty(t, UploadRegions(raytracing.ShaderTableLayout{}))
}

func TestFindFirstZeroInByteArray(t *testing.T) {
	assert.Equal(t, 2, FindFirstZeroInByteArray([]byte{1, 2, 0, 3}))
	assert.Equal(t, 3, FindFirstZeroInByteArray([]byte{1, 2, 3}))
}
