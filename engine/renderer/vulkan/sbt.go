package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-rt/engine/renderer/raytracing"
)

// StridedBufferRegion addresses one shader table inside the SBT buffer. Added to
// the buffer device address it gives a VkStridedDeviceAddressRegionKHR.
type StridedBufferRegion struct {
	Buffer vk.Buffer
	Offset vk.DeviceSize
	Stride vk.DeviceSize
	Size   vk.DeviceSize
}

// DeviceAddress returns the address of the region for a buffer starting at base.
// Empty regions have a null address.
func (r StridedBufferRegion) DeviceAddress(base uint64) uint64 {
	if r.Size == 0 {
		return 0
	}
	return base + uint64(r.Offset)
}

// ShaderBindingTableRegions holds the four regions passed to vkCmdTraceRaysKHR.
type ShaderBindingTableRegions struct {
	RayGen   StridedBufferRegion
	Miss     StridedBufferRegion
	HitGroup StridedBufferRegion
	Callable StridedBufferRegion
}

// NewShaderBindingTableRegions translates a packed layout for an SBT stored in buffer.
// Empty tables get a zero stride and size so the driver ignores them.
func NewShaderBindingTableRegions(buffer vk.Buffer, layout raytracing.ShaderTableLayout) ShaderBindingTableRegions {
	region := func(r raytracing.ShaderTableRegion) StridedBufferRegion {
		if r.Size == 0 {
			return StridedBufferRegion{Buffer: buffer, Offset: vk.DeviceSize(r.Offset)}
		}
		return StridedBufferRegion{
			Buffer: buffer,
			Offset: vk.DeviceSize(r.Offset),
			Stride: vk.DeviceSize(r.Stride),
			Size:   vk.DeviceSize(r.Size),
		}
	}
	return ShaderBindingTableRegions{
		RayGen:   region(layout.RayGen),
		Miss:     region(layout.Miss),
		HitGroup: region(layout.HitGroup),
		Callable: region(layout.Callable),
	}
}

// UploadRegions returns one copy per non-empty table, for a staging buffer
// holding the output of ShaderBindingTable.Pack.
func UploadRegions(layout raytracing.ShaderTableLayout) []vk.BufferCopy {
	var rg []vk.BufferCopy
	for _, r := range []raytracing.ShaderTableRegion{layout.RayGen, layout.Miss, layout.HitGroup, layout.Callable} {
		if r.Size == 0 {
			continue
		}
		rg = append(rg, vk.BufferCopy{SrcOffset: vk.DeviceSize(r.Offset), DstOffset: vk.DeviceSize(r.Offset), Size: vk.DeviceSize(r.Size)})
	}
	return rg
}

// CmdUploadShaderBindingTable records the copy of the packed tables from the
// staging buffer into the device SBT buffer. It returns false when there is nothing to copy.
func CmdUploadShaderBindingTable(cmd vk.CommandBuffer, staging, dst vk.Buffer, layout raytracing.ShaderTableLayout) bool {
	rg := UploadRegions(layout)
	if len(rg) == 0 {
		return false
	}
	vk.CmdCopyBuffer(cmd, staging, dst, uint32(len(rg)), rg)
	return true
}
