package systems

import (
	"bytes"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/spaghettifunk/anima-rt/engine/assets/loaders"
	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/spaghettifunk/anima-rt/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-rt/engine/renderer/raytracing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demoStride = 64

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func loadDemoScene(t *testing.T) *metadata.RayTracingSceneConfig {
	t.Helper()
	data, err := os.ReadFile("testdata/demo.rtscene")
	require.NoError(t, err)
	cfg, err := loaders.DecodeScene(data)
	require.NoError(t, err)
	return cfg
}

func newDemoSystem(t *testing.T) *RayTracingSystem {
	t.Helper()
	s, err := NewRayTracingSystem(RayTracingSystemConfig{Scene: loadDemoScene(t)})
	require.NoError(t, err)
	return s
}

func hitRecord(s *RayTracingSystem, i int) []byte {
	return s.SBT().HitGroupRecords()[i*demoStride : (i+1)*demoStride]
}

func groupHandle(t *testing.T, s *RayTracingSystem, group string) []byte {
	t.Helper()
	h := make([]byte, 32)
	require.NoError(t, s.Pipeline().CopyShaderHandle(group, h))
	return h
}

func TestRayTracingSystemBuildsDemoScene(t *testing.T) {
	s := newDemoSystem(t)
	defer s.Shutdown()

	assert.Equal(t, []string{"cube", "glass", "sphere"}, s.BLASNames())
	assert.True(t, s.TLAS().CheckState(metadata.ResourceStateRayTracing))

	glass, err := s.TLAS().GetInstanceDesc("glass0")
	require.NoError(t, err)
	assert.Equal(t, uint32(4), glass.ContributionToHitGroupIndex)
	assert.Equal(t, uint32(8), s.TLAS().RequiredHitGroupCount())

	sbt := s.SBT()
	assert.Len(t, sbt.RayGenShaderRecord(), demoStride)
	assert.Len(t, sbt.MissShaderRecords(), 2*demoStride)
	assert.Len(t, sbt.HitGroupRecords(), 8*demoStride)
	assert.Empty(t, sbt.CallableShaderRecords())

	rec := hitRecord(s, 0)
	assert.Equal(t, groupHandle(t, s, "PrimaryHit"), rec[:32])
	assert.Equal(t, []byte{0, 0, 0x80, 0x3f, 0, 0, 0, 0}, rec[32:40])

	assert.Equal(t, groupHandle(t, s, "SpherePrimaryHit"), hitRecord(s, 2)[:32])
	for _, i := range []int{4, 6} {
		assert.Equal(t, groupHandle(t, s, "GlassPrimaryHit"), hitRecord(s, i)[:32], "record %d", i)
	}
	for _, i := range []int{1, 3, 5, 7} {
		assert.Equal(t, groupHandle(t, s, "ShadowHit"), hitRecord(s, i)[:32], "record %d", i)
	}
}

func TestRayTracingSystemUpload(t *testing.T) {
	s := newDemoSystem(t)
	defer s.Shutdown()

	failing := func([]byte, raytracing.ShaderTableLayout) error { return errors.New("device lost") }
	called, err := s.Upload(failing)
	assert.True(t, called)
	assert.Error(t, err)
	assert.True(t, s.SBT().IsChanged())

	var got raytracing.ShaderTableLayout
	var size int
	called, err = s.Upload(func(data []byte, layout raytracing.ShaderTableLayout) error {
		got = layout
		size = len(data)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, uint64(704), got.Size)
	assert.Equal(t, 704, size)
	assert.Equal(t, raytracing.ShaderTableRegion{Offset: 192, Size: 512, Stride: demoStride}, got.HitGroup)

	called, err = s.Upload(failing)
	require.NoError(t, err)
	assert.False(t, called)
}

func TestRayTracingSystemStaleBLAS(t *testing.T) {
	s := newDemoSystem(t)
	defer s.Shutdown()

	stale, err := s.RebuildBLAS("glass")
	require.NoError(t, err)
	assert.Equal(t, []string{"glass0"}, stale)

	_, err = s.Upload(func([]byte, raytracing.ShaderTableLayout) error { return nil })
	assert.ErrorIs(t, err, core.ErrContractViolation)

	require.NoError(t, s.RebuildTLAS())
	assert.Empty(t, s.TLAS().StaleInstances())
	assert.Len(t, s.SBT().HitGroupRecords(), 8*demoStride)

	called, err := s.Upload(func([]byte, raytracing.ShaderTableLayout) error { return nil })
	require.NoError(t, err)
	assert.True(t, called)

	_, err = s.RebuildBLAS("teapot")
	assert.ErrorIs(t, err, core.ErrMissingBLAS)
}

func TestRayTracingSystemRebuildKeepsSceneOnError(t *testing.T) {
	s := newDemoSystem(t)
	defer s.Shutdown()
	sbt := s.SBT()

	cfg := loadDemoScene(t)
	cfg.SBT.HitGroups = append(cfg.SBT.HitGroups, metadata.HitGroupRecordConfig{
		Instance: "teapot0", Geometry: "teapot", Group: "PrimaryHit",
	})
	err := s.Rebuild(cfg)
	assert.ErrorIs(t, err, core.ErrUnknownInstance)
	assert.Same(t, sbt, s.SBT())

	cfg = loadDemoScene(t)
	cfg.TLAS.Instances[1].BLAS = "teapot"
	assert.ErrorIs(t, s.Rebuild(cfg), core.ErrMissingBLAS)

	cfg = loadDemoScene(t)
	cfg.TLAS.BindingMode = "per_mesh"
	assert.ErrorIs(t, s.Rebuild(cfg), core.ErrInvalidDescription)

	cfg = loadDemoScene(t)
	cfg.Pipeline.ShaderRecordSize = 8
	assert.ErrorIs(t, s.Rebuild(cfg), core.ErrMisalignedShaderRecord)
	assert.Same(t, sbt, s.SBT())

	require.NoError(t, s.Rebuild(loadDemoScene(t)))
	assert.NotSame(t, sbt, s.SBT())
}

func TestRayTracingSystemReleasesBLAS(t *testing.T) {
	s := newDemoSystem(t)
	glass := s.BLAS("glass")
	require.NotNil(t, glass)
	assert.Equal(t, int32(2), glass.RefCount())

	require.NoError(t, s.Rebuild(loadDemoScene(t)))
	assert.Equal(t, int32(0), glass.RefCount())

	current := s.BLAS("glass")
	require.NoError(t, s.Shutdown())
	assert.Equal(t, int32(0), current.RefCount())
}

func TestRayTracingSystemShaderGroupHandles(t *testing.T) {
	s := newDemoSystem(t)
	defer s.Shutdown()

	count := int(s.Pipeline().ShaderGroupCount())
	handles := bytes.Repeat([]byte{0x11}, count*32)
	require.NoError(t, s.SetShaderGroupHandles(handles))

	rec := hitRecord(s, 0)
	assert.Equal(t, bytes.Repeat([]byte{0x11}, 32), rec[:32])
	assert.Equal(t, []byte{0, 0, 0x80, 0x3f}, rec[32:36])

	assert.Error(t, s.SetShaderGroupHandles(handles[:32]))
}

func TestRayTracingSystemDeviceOverride(t *testing.T) {
	device, err := raytracing.NewDevice(metadata.DeviceLimits{
		ShaderGroupHandleSize:    32,
		MaxShaderRecordStride:    48,
		ShaderGroupBaseAlignment: 64,
	})
	require.NoError(t, err)

	_, err = NewRayTracingSystem(RayTracingSystemConfig{Scene: loadDemoScene(t), Device: device})
	assert.ErrorIs(t, err, core.ErrShaderRecordTooBig)

	_, err = NewRayTracingSystem(RayTracingSystemConfig{})
	assert.ErrorIs(t, err, core.ErrInvalidDescription)
}

func TestRayTracingSystemRebuildTLASKeepsTableOnError(t *testing.T) {
	s := newDemoSystem(t)
	defer s.Shutdown()
	sbt := s.SBT()
	tlas := s.TLAS()
	records := append([]byte(nil), sbt.HitGroupRecords()...)
	glass := s.BLAS("glass")
	refs := glass.RefCount()

	s.config.Scene.SBT.HitGroups = append(s.config.Scene.SBT.HitGroups, metadata.HitGroupRecordConfig{
		Instance: "teapot0", Geometry: "teapot", Group: "PrimaryHit",
	})
	assert.ErrorIs(t, s.RebuildTLAS(), core.ErrUnknownInstance)
	assert.Same(t, sbt, s.SBT())
	assert.Same(t, tlas, s.TLAS())
	assert.Equal(t, records, s.SBT().HitGroupRecords())
	assert.Equal(t, refs, glass.RefCount())

	_, err := s.Upload(func([]byte, raytracing.ShaderTableLayout) error { return nil })
	require.NoError(t, err)

	s.config.Scene.SBT.HitGroups = s.config.Scene.SBT.HitGroups[:len(s.config.Scene.SBT.HitGroups)-1]
	require.NoError(t, s.RebuildTLAS())
	assert.NotSame(t, sbt, s.SBT())
	assert.NotSame(t, tlas, s.TLAS())
	assert.Equal(t, records, s.SBT().HitGroupRecords())
	assert.True(t, s.SBT().IsChanged())
}

func TestRayTracingSystemAfterShutdown(t *testing.T) {
	s := newDemoSystem(t)
	require.NoError(t, s.Shutdown())

	called, err := s.Upload(func([]byte, raytracing.ShaderTableLayout) error { return nil })
	assert.ErrorIs(t, err, core.ErrNotConfigured)
	assert.False(t, called)

	_, err = s.RebuildBLAS("glass")
	assert.ErrorIs(t, err, core.ErrNotConfigured)
	assert.ErrorIs(t, s.RebuildTLAS(), core.ErrNotConfigured)
	assert.ErrorIs(t, s.SetShaderGroupHandles(nil), core.ErrNotConfigured)

	require.NoError(t, s.Rebuild(loadDemoScene(t)))
	defer s.Shutdown()
	_, err = s.RebuildBLAS("glass")
	assert.NoError(t, err)
}
