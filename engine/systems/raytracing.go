package systems

import (
	"fmt"
	"sort"
	"sync"

	"github.com/spaghettifunk/anima-rt/engine/assets/loaders"
	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/spaghettifunk/anima-rt/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-rt/engine/renderer/raytracing"
)

type RayTracingSystemConfig struct {
	Scene *metadata.RayTracingSceneConfig
	// Device overrides the limits of the scene file, e.g. with a Vulkan device.
	Device raytracing.RenderDevice
}

// RayTracingSystem owns the objects of one ray tracing scene: pipeline, BLAS
// list, TLAS and shader binding table.
type RayTracingSystem struct {
	mutex sync.RWMutex

	config   RayTracingSystemConfig
	device   raytracing.RenderDevice
	pipeline *raytracing.RayTracingPipeline
	blas     map[string]*raytracing.BottomLevelAS
	tlas     *raytracing.TopLevelAS
	sbt      *raytracing.ShaderBindingTable
}

/**
 * @brief Creates the system and builds the scene of the configuration.
 */
func NewRayTracingSystem(config RayTracingSystemConfig) (*RayTracingSystem, error) {
	if config.Scene == nil {
		return nil, fmt.Errorf("%w: ray tracing system requires a scene", core.ErrInvalidDescription)
	}
	s := &RayTracingSystem{config: config}
	if err := s.Rebuild(config.Scene); err != nil {
		return nil, err
	}
	return s, nil
}

// scene holds the objects built from one scene config before they replace the
// current ones.
type scene struct {
	device   raytracing.RenderDevice
	pipeline *raytracing.RayTracingPipeline
	blas     map[string]*raytracing.BottomLevelAS
	tlas     *raytracing.TopLevelAS
	sbt      *raytracing.ShaderBindingTable
}

func (sc *scene) release() {
	if sc.tlas != nil {
		sc.tlas.Destroy()
	}
	for _, b := range sc.blas {
		b.Release()
	}
}

// Rebuild builds every object of cfg and swaps them in. On error the current
// scene stays untouched.
func (s *RayTracingSystem) Rebuild(cfg *metadata.RayTracingSceneConfig) error {
	sc, err := s.build(cfg)
	if err != nil {
		if sc != nil {
			sc.release()
		}
		core.LogError("failed to build ray tracing scene: %s", err.Error())
		return err
	}

	s.mutex.Lock()
	old := scene{blas: s.blas, tlas: s.tlas}
	s.config.Scene = cfg
	s.device = sc.device
	s.pipeline = sc.pipeline
	s.blas = sc.blas
	s.tlas = sc.tlas
	s.sbt = sc.sbt
	s.mutex.Unlock()

	old.release()

	core.LogInfo("ray tracing scene built: %d BLAS, %d instances, %d hit group records",
		len(sc.blas), sc.tlas.InstanceCount(), sc.tlas.RequiredHitGroupCount())
	return nil
}

func (s *RayTracingSystem) build(cfg *metadata.RayTracingSceneConfig) (*scene, error) {
	sc := &scene{device: s.config.Device}
	if sc.device == nil {
		d, err := raytracing.NewDevice(cfg.Device)
		if err != nil {
			return nil, err
		}
		sc.device = d
	}

	pipeline, err := raytracing.NewRayTracingPipeline(sc.device, &raytracing.RayTracingPipelineCreateInfo{
		Desc: metadata.PipelineStateDesc{
			Name:         cfg.Pipeline.Name,
			PipelineType: metadata.PipelineTypeRayTracing,
		},
		RayTracing: metadata.RayTracingPipelineDesc{
			ShaderRecordSize:  cfg.Pipeline.ShaderRecordSize,
			MaxRecursionDepth: cfg.Pipeline.MaxRecursionDepth,
		},
		GeneralShaders:       cfg.Pipeline.GeneralGroups,
		TriangleHitShaders:   cfg.Pipeline.TriangleHitGroups,
		ProceduralHitShaders: cfg.Pipeline.ProceduralHitGroups,
	})
	if err != nil {
		return nil, err
	}
	sc.pipeline = pipeline

	sc.blas = make(map[string]*raytracing.BottomLevelAS, len(cfg.BLAS))
	for _, bc := range cfg.BLAS {
		desc := metadata.BottomLevelASDesc{Name: bc.Name}
		for _, name := range bc.Triangles {
			desc.Triangles = append(desc.Triangles, metadata.BLASTriangleDesc{GeometryName: name})
		}
		for _, name := range bc.Boxes {
			desc.Boxes = append(desc.Boxes, metadata.BLASBoundingBoxDesc{GeometryName: name})
		}
		b, err := raytracing.NewBottomLevelAS(&desc)
		if err != nil {
			return sc, err
		}
		if _, exists := sc.blas[b.Name()]; exists {
			b.Release()
			return sc, fmt.Errorf("%w: BLAS name '%s' is not unique", core.ErrInvalidDescription, b.Name())
		}
		b.Build()
		sc.blas[b.Name()] = b
	}

	if sc.tlas, err = buildTLAS(&cfg.TLAS, sc.blas); err != nil {
		return sc, err
	}

	sc.sbt, err = raytracing.NewShaderBindingTable(sc.device, &raytracing.ShaderBindingTableDesc{
		Name:                  cfg.SBT.Name,
		Pipeline:              sc.pipeline,
		HitShadersPerInstance: cfg.TLAS.HitShadersPerInstance,
	})
	if err != nil {
		return sc, err
	}
	if err := applyBindings(sc.sbt, sc.tlas, &cfg.SBT); err != nil {
		return sc, err
	}
	return sc, nil
}

func buildTLAS(cfg *metadata.TLASConfig, blas map[string]*raytracing.BottomLevelAS) (*raytracing.TopLevelAS, error) {
	mode, err := metadata.ParseShaderBindingMode(cfg.BindingMode)
	if err != nil {
		return nil, fmt.Errorf("top-level AS '%s': %w: %w", cfg.Name, core.ErrInvalidDescription, err)
	}

	maxInstances := cfg.MaxInstanceCount
	if maxInstances == 0 {
		maxInstances = uint32(len(cfg.Instances))
	}

	tlas, err := raytracing.NewTopLevelAS(&metadata.TopLevelASDesc{
		Name:             cfg.Name,
		MaxInstanceCount: maxInstances,
		Flags:            metadata.RaytracingBuildASPreferFastTrace,
		BindingMode:      mode,
	})
	if err != nil {
		return nil, err
	}

	instances := make([]raytracing.TLASBuildInstanceData, 0, len(cfg.Instances))
	for _, ic := range cfg.Instances {
		b, ok := blas[ic.BLAS]
		if !ok {
			return tlas, fmt.Errorf("instance '%s' references BLAS '%s': %w", ic.Name, ic.BLAS, core.ErrMissingBLAS)
		}
		offset := metadata.TLASInstanceOffsetAuto
		if ic.HitGroupOffset != nil {
			offset = *ic.HitGroupOffset
		}
		instances = append(instances, raytracing.TLASBuildInstanceData{
			InstanceName:                ic.Name,
			BLAS:                        b,
			CustomID:                    ic.CustomID,
			Mask:                        ic.Mask,
			ContributionToHitGroupIndex: offset,
		})
	}

	tlas.SetState(metadata.ResourceStateBuildASWrite)
	if err := tlas.SetInstanceData(instances, cfg.HitShadersPerInstance); err != nil {
		return tlas, err
	}
	tlas.SetState(metadata.ResourceStateRayTracing)
	return tlas, nil
}

// applyBindings writes every record of cfg into sbt. A hit group without a
// geometry name is bound to all geometries of the instance.
func applyBindings(sbt *raytracing.ShaderBindingTable, tlas raytracing.InstanceTable, cfg *metadata.SBTConfig) error {
	if cfg.RayGen.Group != "" {
		data, err := loaders.DecodeRecordData(cfg.RayGen.Data)
		if err != nil {
			return err
		}
		if err := sbt.BindRayGenShader(cfg.RayGen.Group, data); err != nil {
			return err
		}
	}
	for _, mc := range cfg.Miss {
		data, err := loaders.DecodeRecordData(mc.Data)
		if err != nil {
			return err
		}
		if err := sbt.BindMissShader(mc.Group, mc.Index, data); err != nil {
			return err
		}
	}
	for _, cc := range cfg.Callable {
		data, err := loaders.DecodeRecordData(cc.Data)
		if err != nil {
			return err
		}
		if err := sbt.BindCallableShader(cc.Group, cc.Index, data); err != nil {
			return err
		}
	}
	for _, hc := range cfg.HitGroups {
		data, err := loaders.DecodeRecordData(hc.Data)
		if err != nil {
			return err
		}
		if hc.Geometry == "" {
			err = sbt.BindHitGroups(tlas, hc.Instance, hc.RayOffset, hc.Group, data)
		} else {
			err = sbt.BindHitGroup(tlas, hc.Instance, hc.Geometry, hc.RayOffset, hc.Group, data)
		}
		if err != nil {
			return err
		}
	}
	return sbt.Verify()
}

// SetShaderGroupHandles replaces the pipeline's shader group handles, e.g. with
// the ones returned by the driver, and rewrites the shader binding table.
func (s *RayTracingSystem) SetShaderGroupHandles(handles []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.checkConfigured(); err != nil {
		return err
	}
	if err := s.pipeline.SetShaderGroupHandles(handles); err != nil {
		return err
	}
	sbt, err := s.bindTable(s.tlas)
	if err != nil {
		return err
	}
	s.sbt = sbt
	return nil
}

// RebuildBLAS rebuilds the named BLAS and returns the TLAS instances that now
// reference stale geometry.
func (s *RayTracingSystem) RebuildBLAS(name string) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if err := s.checkConfigured(); err != nil {
		return nil, err
	}
	b, ok := s.blas[name]
	if !ok {
		return nil, fmt.Errorf("%w: BLAS '%s'", core.ErrMissingBLAS, name)
	}
	b.Build()
	stale := s.tlas.StaleInstances()
	if len(stale) > 0 {
		core.LogWarn("BLAS '%s' rebuilt, %d TLAS instances are stale", name, len(stale))
	}
	return stale, nil
}

// RebuildTLAS sets the TLAS instances again from the current scene, which
// refreshes the BLAS versions they captured, and rewrites the hit groups into a
// new shader binding table. On error the current TLAS and table are kept.
func (s *RayTracingSystem) RebuildTLAS() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.checkConfigured(); err != nil {
		return err
	}
	tlas, err := buildTLAS(&s.config.Scene.TLAS, s.blas)
	if err != nil {
		if tlas != nil {
			tlas.Destroy()
		}
		return err
	}
	sbt, err := s.bindTable(tlas)
	if err != nil {
		tlas.Destroy()
		return err
	}
	s.tlas.Destroy()
	s.tlas = tlas
	s.sbt = sbt
	return nil
}

// bindTable writes the bindings of the current scene into a new shader binding
// table with the description of the current one.
func (s *RayTracingSystem) bindTable(tlas *raytracing.TopLevelAS) (*raytracing.ShaderBindingTable, error) {
	desc := s.sbt.Desc()
	sbt, err := raytracing.NewShaderBindingTable(s.device, &desc)
	if err != nil {
		return nil, err
	}
	if err := applyBindings(sbt, tlas, &s.config.Scene.SBT); err != nil {
		return nil, err
	}
	return sbt, nil
}

func (s *RayTracingSystem) checkConfigured() error {
	if s.tlas == nil || s.sbt == nil {
		return fmt.Errorf("ray tracing system: %w", core.ErrNotConfigured)
	}
	return nil
}

// Upload hands the packed shader binding table to upload when it changed since
// the last successful upload. It reports whether upload was called.
func (s *RayTracingSystem) Upload(upload func(data []byte, layout raytracing.ShaderTableLayout) error) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.checkConfigured(); err != nil {
		return false, err
	}
	if !s.sbt.IsChanged() {
		return false, nil
	}
	if !s.tlas.CheckBLASVersion() {
		return false, fmt.Errorf("%w: TLAS '%s' references rebuilt BLAS", core.ErrContractViolation, s.tlas.Desc().Name)
	}
	data, layout := s.sbt.Pack()
	if err := upload(data, layout); err != nil {
		return true, err
	}
	s.sbt.MarkUploaded()
	return true, nil
}

func (s *RayTracingSystem) Device() raytracing.RenderDevice {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.device
}

func (s *RayTracingSystem) Pipeline() *raytracing.RayTracingPipeline {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.pipeline
}

func (s *RayTracingSystem) TLAS() *raytracing.TopLevelAS {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.tlas
}

func (s *RayTracingSystem) SBT() *raytracing.ShaderBindingTable {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.sbt
}

func (s *RayTracingSystem) BLAS(name string) *raytracing.BottomLevelAS {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.blas[name]
}

func (s *RayTracingSystem) BLASNames() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	names := make([]string, 0, len(s.blas))
	for name := range s.blas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

/**
 * @brief Releases the TLAS instances and the BLAS references held by the system.
 */
func (s *RayTracingSystem) Shutdown() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	sc := scene{blas: s.blas, tlas: s.tlas}
	sc.release()
	s.blas = nil
	s.tlas = nil
	s.sbt = nil
	return nil
}
