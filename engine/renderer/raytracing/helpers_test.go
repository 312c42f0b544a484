package raytracing

import (
	"io"
	"os"
	"testing"

	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/spaghettifunk/anima-rt/engine/renderer/metadata"
	"github.com/stretchr/testify/require"
)

const (
	testHandleSize = 32
	testRecordSize = 32
	testStride     = testHandleSize + testRecordSize
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	d, err := NewDevice(metadata.DeviceLimits{
		ShaderGroupHandleSize:    testHandleSize,
		MaxShaderRecordStride:    4096,
		ShaderGroupBaseAlignment: 64,
	})
	require.NoError(t, err)
	return d
}

func newTestPipeline(t *testing.T, device RenderDevice, recordSize uint32) *RayTracingPipeline {
	t.Helper()
	p, err := NewRayTracingPipeline(device, &RayTracingPipelineCreateInfo{
		Desc:                 metadata.PipelineStateDesc{Name: "rt", PipelineType: metadata.PipelineTypeRayTracing},
		RayTracing:           metadata.RayTracingPipelineDesc{ShaderRecordSize: recordSize, MaxRecursionDepth: 1},
		GeneralShaders:       []string{"Main", "PrimaryMiss", "ShadowMiss", "Callable"},
		TriangleHitShaders:   []string{"PrimaryHit", "ShadowHit", "GlassHit"},
		ProceduralHitShaders: []string{"SphereHit"},
	})
	require.NoError(t, err)
	return p
}

func newTestBLAS(t *testing.T, name string, triangles, boxes int) *BottomLevelAS {
	t.Helper()
	desc := metadata.BottomLevelASDesc{Name: name}
	for i := 0; i < triangles; i++ {
		desc.Triangles = append(desc.Triangles, metadata.BLASTriangleDesc{GeometryName: geometryName("tri", i), MaxPrimitiveCount: 12})
	}
	for i := 0; i < boxes; i++ {
		desc.Boxes = append(desc.Boxes, metadata.BLASBoundingBoxDesc{GeometryName: geometryName("box", i), MaxBoxCount: 1})
	}
	b, err := NewBottomLevelAS(&desc)
	require.NoError(t, err)
	return b
}

func geometryName(prefix string, i int) string {
	return prefix + string(rune('0'+i))
}

func newTestTLAS(t *testing.T, mode metadata.ShaderBindingMode) *TopLevelAS {
	t.Helper()
	tlas, err := NewTopLevelAS(&metadata.TopLevelASDesc{Name: "scene", MaxInstanceCount: 16, BindingMode: mode})
	require.NoError(t, err)
	return tlas
}

func handleOf(t *testing.T, p PipelineState, group string) []byte {
	t.Helper()
	h := make([]byte, testHandleSize)
	require.NoError(t, p.CopyShaderHandle(group, h))
	return h
}

func payload(seed byte, size int) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = seed + byte(i)
	}
	return b
}

type graphicsPipeline struct{}

func (graphicsPipeline) Desc() metadata.PipelineStateDesc {
	return metadata.PipelineStateDesc{Name: "gfx", PipelineType: metadata.PipelineTypeGraphics}
}

func (graphicsPipeline) RayTracingPipelineDesc() metadata.RayTracingPipelineDesc {
	return metadata.RayTracingPipelineDesc{}
}

func (graphicsPipeline) CopyShaderHandle(string, []byte) error {
	return nil
}
