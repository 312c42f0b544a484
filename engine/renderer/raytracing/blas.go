package raytracing

import (
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/spaghettifunk/anima-rt/engine/renderer/metadata"
)

// BottomLevelAS describes the geometry of one mesh. It is shared by every TLAS
// instance that references it; the reference count tracks those holders and the
// version counter moves forward every time the geometry is rebuilt.
type BottomLevelAS struct {
	desc       metadata.BottomLevelASDesc
	geometries map[string]uint32
	version    atomic.Uint32
	refs       atomic.Int32
}

// NewBottomLevelAS creates a BLAS owned by the caller (reference count of one).
// Geometry indices follow declaration order: triangles first, then boxes.
func NewBottomLevelAS(desc *metadata.BottomLevelASDesc) (*BottomLevelAS, error) {
	d := *desc
	d.Name = core.ObjectName("blas", d.Name)

	if d.TriangleCount()+d.BoxCount() == 0 {
		err := fmt.Errorf("bottom-level AS '%s': %w: at least one geometry is required", d.Name, core.ErrInvalidDescription)
		core.LogError("%s", err.Error())
		return nil, err
	}

	b := &BottomLevelAS{
		desc:       d,
		geometries: make(map[string]uint32, d.TriangleCount()+d.BoxCount()),
	}

	names := make([]string, 0, d.TriangleCount()+d.BoxCount())
	for _, tri := range d.Triangles {
		names = append(names, tri.GeometryName)
	}
	for _, box := range d.Boxes {
		names = append(names, box.GeometryName)
	}
	for i, name := range names {
		if name == "" {
			err := fmt.Errorf("bottom-level AS '%s': %w: geometry %d has no name", d.Name, core.ErrInvalidDescription, i)
			core.LogError("%s", err.Error())
			return nil, err
		}
		if _, exists := b.geometries[name]; exists {
			err := fmt.Errorf("bottom-level AS '%s': %w: geometry name '%s' is not unique", d.Name, core.ErrInvalidDescription, name)
			core.LogError("%s", err.Error())
			return nil, err
		}
		b.geometries[name] = uint32(i)
	}

	b.refs.Store(1)
	return b, nil
}

func (b *BottomLevelAS) Desc() metadata.BottomLevelASDesc {
	return b.desc
}

func (b *BottomLevelAS) Name() string {
	return b.desc.Name
}

// GeometryCount is the number of triangle plus box geometries.
func (b *BottomLevelAS) GeometryCount() uint32 {
	return b.desc.TriangleCount() + b.desc.BoxCount()
}

// GeometryIndex returns the index of the named geometry, or InvalidIndex.
func (b *BottomLevelAS) GeometryIndex(name string) uint32 {
	if idx, ok := b.geometries[name]; ok {
		return idx
	}
	return metadata.InvalidIndex
}

func (b *BottomLevelAS) Version() uint32 {
	return b.version.Load()
}

// Build records a (re)build of the geometry and returns the new version.
// TLAS built against an older version must be rebuilt.
func (b *BottomLevelAS) Build() uint32 {
	return b.version.Add(1)
}

// Retain adds a reference to the BLAS.
func (b *BottomLevelAS) Retain() {
	b.refs.Add(1)
}

// Release drops a reference and returns the remaining count.
func (b *BottomLevelAS) Release() int32 {
	n := b.refs.Add(-1)
	if n < 0 {
		core.LogError("bottom-level AS '%s' released more times than retained", b.desc.Name)
	} else if n == 0 {
		core.LogDebug("bottom-level AS '%s' has no more holders", b.desc.Name)
	}
	return n
}

func (b *BottomLevelAS) RefCount() int32 {
	return b.refs.Load()
}
