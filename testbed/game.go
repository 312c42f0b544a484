package testbed

import (
	"fmt"
	"io"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-rt/engine"
	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/spaghettifunk/anima-rt/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-rt/engine/renderer/raytracing"
	"github.com/spaghettifunk/anima-rt/engine/renderer/vulkan"
	"github.com/spaghettifunk/anima-rt/engine/systems"
)

// TestGame builds a scene offline and prints the shader binding table the way
// a Vulkan backend would upload it.
type TestGame struct {
	*engine.Game
	out io.Writer
}

type gameState struct {
	uploads int
	device  *vulkan.VulkanRayTracingDevice
}

func NewTestGame(scenePath string, watch bool, out io.Writer) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				Name:      "Anima RT testbed",
				ScenePath: scenePath,
				Watch:     watch,
			},
			State: &gameState{},
		},
		out: out,
	}

	tg.FnCreateDevice = tg.CreateDevice
	tg.FnInitialize = tg.Initialize
	tg.FnUpload = tg.Upload
	tg.FnOnSceneReload = tg.OnSceneReload

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

// CreateDevice wraps the scene limits in a Vulkan device description.
func (g *TestGame) CreateDevice(limits metadata.DeviceLimits) (raytracing.RenderDevice, error) {
	var props vk.PhysicalDeviceProperties
	props.DeviceType = vk.PhysicalDeviceTypeOther
	copy(props.DeviceName[:], "offline")

	d, err := vulkan.NewVulkanRayTracingDevice(props, vulkan.RayTracingProperties{
		ShaderGroupHandleSize:    limits.ShaderGroupHandleSize,
		MaxShaderGroupStride:     limits.MaxShaderRecordStride,
		ShaderGroupBaseAlignment: limits.ShaderGroupBaseAlignment,
	})
	if err != nil {
		return nil, err
	}
	g.state().device = d
	return d, nil
}

func (g *TestGame) Initialize(rts *systems.RayTracingSystem) error {
	tlas := rts.TLAS()
	fmt.Fprintf(g.out, "TLAS '%s' (%s): %d instances, %d hit group records\n",
		tlas.Desc().Name, tlas.Desc().BindingMode, tlas.InstanceCount(), tlas.RequiredHitGroupCount())
	for _, name := range tlas.InstanceNames() {
		inst, err := tlas.GetInstanceDesc(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(g.out, "  %-12s blas=%-10s hit group offset=%d\n", name, inst.BLAS.Name(), inst.ContributionToHitGroupIndex)
	}
	return nil
}

func (g *TestGame) OnSceneReload(rts *systems.RayTracingSystem) error {
	core.LogInfo("scene reloaded")
	return g.Initialize(rts)
}

// Upload prints the strided regions and buffer copies of the packed table.
func (g *TestGame) Upload(data []byte, layout raytracing.ShaderTableLayout) error {
	g.state().uploads++
	regions := vulkan.NewShaderBindingTableRegions(vk.NullBuffer, layout)
	fmt.Fprintf(g.out, "SBT upload #%d: %d bytes\n", g.state().uploads, len(data))
	for _, r := range []struct {
		name   string
		region vulkan.StridedBufferRegion
	}{
		{"raygen", regions.RayGen},
		{"miss", regions.Miss},
		{"hit", regions.HitGroup},
		{"callable", regions.Callable},
	} {
		fmt.Fprintf(g.out, "  %-8s offset=%-6d size=%-6d stride=%d\n", r.name, r.region.Offset, r.region.Size, r.region.Stride)
	}
	for _, c := range vulkan.UploadRegions(layout) {
		fmt.Fprintf(g.out, "  copy src=%d dst=%d size=%d\n", c.SrcOffset, c.DstOffset, c.Size)
	}
	return nil
}
