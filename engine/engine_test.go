package engine

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/spaghettifunk/anima-rt/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-rt/engine/renderer/raytracing"
	"github.com/spaghettifunk/anima-rt/engine/systems"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func copyDemoScene(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("testdata/demo.rtscene")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "demo.rtscene")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestEngineBuildsAndUploads(t *testing.T) {
	var uploads atomic.Int32
	var layout raytracing.ShaderTableLayout
	var initialized bool

	g := &Game{
		ApplicationConfig: &ApplicationConfig{Name: "test", ScenePath: "testdata/demo.rtscene", LogLevel: "warn"},
		FnInitialize: func(rts *systems.RayTracingSystem) error {
			initialized = rts.TLAS().InstanceCount() == 3
			return nil
		},
		FnUpload: func(data []byte, l raytracing.ShaderTableLayout) error {
			uploads.Add(1)
			layout = l
			return nil
		},
	}

	e, err := New(g)
	require.NoError(t, err)
	assert.Equal(t, EngineStageBootComplete, e.Stage())

	require.NoError(t, e.Initialize())
	assert.Equal(t, EngineStageInitialized, e.Stage())
	assert.True(t, initialized)

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, EngineStageRunning, e.Stage())
	assert.Equal(t, int32(1), uploads.Load())
	assert.Equal(t, uint64(704), layout.Size)

	require.NoError(t, e.Shutdown())
	assert.Equal(t, EngineStageShuttingDown, e.Stage())
}

func TestEngineDeviceHook(t *testing.T) {
	var got metadata.DeviceLimits
	g := &Game{
		ApplicationConfig: &ApplicationConfig{ScenePath: "testdata/demo.rtscene"},
		FnCreateDevice: func(limits metadata.DeviceLimits) (raytracing.RenderDevice, error) {
			got = limits
			return raytracing.NewDevice(limits)
		},
	}
	e, err := New(g)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	defer e.Shutdown()

	assert.Equal(t, uint32(32), got.ShaderGroupHandleSize)
	assert.Equal(t, uint32(64), e.SystemManager().RayTracingSystem().Device().ShaderGroupBaseAlignment())
}

func TestEngineWatchRebuildsScene(t *testing.T) {
	path := copyDemoScene(t)
	var reloads atomic.Int32

	g := &Game{
		ApplicationConfig: &ApplicationConfig{ScenePath: path, Watch: true},
		FnOnSceneReload: func(rts *systems.RayTracingSystem) error {
			reloads.Add(1)
			return nil
		},
		FnUpload: func([]byte, raytracing.ShaderTableLayout) error { return nil },
	}
	e, err := New(g)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(data, []byte("\n# touched\n")...), 0o644))

	require.Eventually(t, func() bool {
		return e.ReloadCount() > 0 && reloads.Load() > 0
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, e.Shutdown())
}

func TestEngineRejectsMissingScene(t *testing.T) {
	_, err := New(&Game{ApplicationConfig: &ApplicationConfig{}})
	assert.ErrorIs(t, err, core.ErrInvalidDescription)

	e, err := New(&Game{ApplicationConfig: &ApplicationConfig{ScenePath: filepath.Join(t.TempDir(), "missing.rtscene")}})
	require.NoError(t, err)
	assert.Error(t, e.Initialize())
	require.NoError(t, e.Shutdown())
}
