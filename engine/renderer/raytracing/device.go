package raytracing

import (
	"fmt"

	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/spaghettifunk/anima-rt/engine/renderer/metadata"
)

// RenderDevice exposes the ray tracing limits the binding code depends on.
// Backends implement it on top of their own device objects.
type RenderDevice interface {
	// ShaderGroupHandleSize is the size in bytes of an opaque shader group handle.
	ShaderGroupHandleSize() uint32
	// MaxShaderRecordStride is the largest supported distance between two shader records.
	MaxShaderRecordStride() uint32
	// ShaderGroupBaseAlignment is the required alignment of the start of a shader table.
	ShaderGroupBaseAlignment() uint32
}

// Device is a RenderDevice backed by a fixed set of limits.
type Device struct {
	limits metadata.DeviceLimits
}

func NewDevice(limits metadata.DeviceLimits) (*Device, error) {
	if limits.ShaderGroupHandleSize == 0 {
		err := fmt.Errorf("%w: shader group handle size must not be zero", core.ErrInvalidDescription)
		core.LogError("%s", err.Error())
		return nil, err
	}
	if limits.MaxShaderRecordStride < limits.ShaderGroupHandleSize {
		err := fmt.Errorf("%w: max shader record stride (%d) is smaller than the shader group handle size (%d)",
			core.ErrInvalidDescription, limits.MaxShaderRecordStride, limits.ShaderGroupHandleSize)
		core.LogError("%s", err.Error())
		return nil, err
	}
	return &Device{limits: limits}, nil
}

func (d *Device) Limits() metadata.DeviceLimits {
	return d.limits
}

func (d *Device) ShaderGroupHandleSize() uint32 {
	return d.limits.ShaderGroupHandleSize
}

func (d *Device) MaxShaderRecordStride() uint32 {
	return d.limits.MaxShaderRecordStride
}

// ShaderGroupBaseAlignment falls back to the handle size when the limits leave it unset.
func (d *Device) ShaderGroupBaseAlignment() uint32 {
	if d.limits.ShaderGroupBaseAlignment == 0 {
		return d.limits.ShaderGroupHandleSize
	}
	return d.limits.ShaderGroupBaseAlignment
}
