package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/spaghettifunk/anima-rt/engine/assets"
	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/spaghettifunk/anima-rt/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-rt/engine/renderer/raytracing"
	"github.com/spaghettifunk/anima-rt/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage  atomic.Uint32
	gameInstance  *Game
	assetManager  *assets.AssetManager
	systemManager *systems.SystemManager
	scenePath     string
	watch         bool
	reloadCount   atomic.Uint32
}

func New(g *Game) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil || g.ApplicationConfig.ScenePath == "" {
		err := fmt.Errorf("%w: a scene path is required", core.ErrInvalidDescription)
		core.LogError("%s", err.Error())
		return nil, err
	}

	e := &Engine{
		gameInstance: g,
		scenePath:    filepath.Clean(g.ApplicationConfig.ScenePath),
		watch:        g.ApplicationConfig.Watch,
	}
	e.setStage(EngineStageBooting)

	am, err := assets.NewAssetManager()
	if err != nil {
		core.LogError("%s", err.Error())
		return nil, err
	}
	e.assetManager = am

	e.setStage(EngineStageBootComplete)
	return e, nil
}

func (e *Engine) Stage() Stage {
	return Stage(e.currentStage.Load())
}

func (e *Engine) setStage(s Stage) {
	e.currentStage.Store(uint32(s))
}

// ReloadCount returns the number of scene rebuilds that succeeded since Run started.
func (e *Engine) ReloadCount() uint32 {
	return e.reloadCount.Load()
}

func (e *Engine) SystemManager() *systems.SystemManager {
	return e.systemManager
}

func (e *Engine) Initialize() error {
	e.setStage(EngineStageInitializing)
	app := e.gameInstance.ApplicationConfig

	cfg, err := e.loadScene()
	if err != nil {
		return err
	}

	level := cfg.Engine.LogLevel
	if app.LogLevel != "" {
		level = app.LogLevel
	}
	if level != "" {
		if err := core.SetLogLevel(level); err != nil {
			return err
		}
	}
	e.watch = e.watch || cfg.Engine.Watch

	var device raytracing.RenderDevice
	if e.gameInstance.FnCreateDevice != nil {
		if device, err = e.gameInstance.FnCreateDevice(cfg.Device); err != nil {
			return err
		}
	}

	sm, err := systems.NewSystemManager(systems.SystemManagerConfig{
		Scene:  cfg,
		Device: device,
	})
	if err != nil {
		return err
	}
	e.systemManager = sm

	if e.watch {
		dir := app.AssetsDir
		if dir == "" {
			dir = filepath.Dir(e.scenePath)
		}
		if err := e.assetManager.Initialize(dir); err != nil {
			return err
		}
		core.LogInfo("watching '%s' for scene changes", dir)
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(sm.RayTracingSystem()); err != nil {
			return err
		}
	}

	e.setStage(EngineStageInitialized)
	core.LogInfo("%s initialized with scene '%s'", app.Name, e.scenePath)
	return nil
}

func (e *Engine) loadScene() (*metadata.RayTracingSceneConfig, error) {
	res, err := e.assetManager.LoadAsset(e.scenePath, nil)
	if err != nil {
		return nil, err
	}
	cfg, ok := res.Data.(*metadata.RayTracingSceneConfig)
	if !ok {
		return nil, fmt.Errorf("%w: '%s' is not a scene", core.ErrInvalidDescription, e.scenePath)
	}
	return cfg, nil
}

// Run uploads the shader binding table and, in watch mode, rebuilds the scene
// every time its file changes until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	e.setStage(EngineStageRunning)

	if err := e.upload(); err != nil {
		return err
	}
	if !e.watch {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-e.assetManager.Changes():
			if !ok {
				return nil
			}
			if change.Path != e.scenePath {
				continue
			}
			core.LogDebug("scene '%s' changed", change.Path)
			e.systemManager.JobSystem().Submit(systems.JobTask{
				Name: "scene-reload",
				Run:  e.reloadScene,
				OnComplete: func() {
					e.reloadCount.Add(1)
				},
			})
		}
	}
}

func (e *Engine) reloadScene() error {
	cfg, err := e.loadScene()
	if err != nil {
		return err
	}
	rts := e.systemManager.RayTracingSystem()
	if err := rts.Rebuild(cfg); err != nil {
		return err
	}
	if e.gameInstance.FnOnSceneReload != nil {
		if err := e.gameInstance.FnOnSceneReload(rts); err != nil {
			return err
		}
	}
	return e.upload()
}

func (e *Engine) upload() error {
	if e.gameInstance.FnUpload == nil {
		return nil
	}
	_, err := e.systemManager.RayTracingSystem().Upload(e.gameInstance.FnUpload)
	return err
}

func (e *Engine) Shutdown() error {
	e.setStage(EngineStageShuttingDown)
	if err := e.assetManager.Shutdown(); err != nil {
		return err
	}
	if e.systemManager != nil {
		if err := e.systemManager.Shutdown(); err != nil {
			return err
		}
	}
	return nil
}
