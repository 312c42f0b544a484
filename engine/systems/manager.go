package systems

import (
	"github.com/spaghettifunk/anima-rt/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-rt/engine/renderer/raytracing"
)

type SystemManagerConfig struct {
	Scene *metadata.RayTracingSceneConfig
	// Device is optional; the limits of the scene are used when nil.
	Device raytracing.RenderDevice
	// JobWorkers is the number of workers running scene reloads. Defaults to 1.
	JobWorkers int
}

type SystemManager struct {
	jobSystem        *JobSystem
	rayTracingSystem *RayTracingSystem
}

func NewSystemManager(config SystemManagerConfig) (*SystemManager, error) {
	workers := config.JobWorkers
	if workers == 0 {
		workers = 1
	}
	js, err := NewJobSystem(workers, 8)
	if err != nil {
		return nil, err
	}

	rts, err := NewRayTracingSystem(RayTracingSystemConfig{
		Scene:  config.Scene,
		Device: config.Device,
	})
	if err != nil {
		js.Shutdown()
		return nil, err
	}

	return &SystemManager{
		jobSystem:        js,
		rayTracingSystem: rts,
	}, nil
}

func (sm *SystemManager) JobSystem() *JobSystem {
	return sm.jobSystem
}

func (sm *SystemManager) RayTracingSystem() *RayTracingSystem {
	return sm.rayTracingSystem
}

func (sm *SystemManager) Shutdown() error {
	if err := sm.jobSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.rayTracingSystem.Shutdown(); err != nil {
		return err
	}
	return nil
}
