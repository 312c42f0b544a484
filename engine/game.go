package engine

import (
	"github.com/spaghettifunk/anima-rt/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-rt/engine/renderer/raytracing"
	"github.com/spaghettifunk/anima-rt/engine/systems"
)

// Game is the application driving the engine. Every hook is optional.
type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnCreateDevice    CreateDevice
	FnInitialize      Initialize
	FnUpload          Upload
	FnOnSceneReload   OnSceneReload
}

type CreateDevice func(limits metadata.DeviceLimits) (raytracing.RenderDevice, error)
type Initialize func(rts *systems.RayTracingSystem) error
type Upload func(data []byte, layout raytracing.ShaderTableLayout) error
type OnSceneReload func(rts *systems.RayTracingSystem) error
