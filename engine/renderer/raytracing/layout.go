package raytracing

import (
	"bytes"

	"github.com/spaghettifunk/anima-rt/engine/containers"
	"github.com/spaghettifunk/anima-rt/engine/math"
)

// ShaderTableRegion locates one shader table inside the packed buffer.
type ShaderTableRegion struct {
	Offset uint64
	Size   uint64
	Stride uint64
}

// ShaderTableLayout places the four shader tables in a single buffer, in the
// order ray gen, miss, hit group, callable. Each table starts at a multiple of
// the device shader group base alignment.
type ShaderTableLayout struct {
	RayGen   ShaderTableRegion
	Miss     ShaderTableRegion
	HitGroup ShaderTableRegion
	Callable ShaderTableRegion
	// Size is the total size of the packed buffer.
	Size uint64
}

// Layout computes where the current tables go once packed. The ray gen region
// has its stride equal to its size, as required for the ray gen table.
func (sbt *ShaderBindingTable) Layout() ShaderTableLayout {
	align := uint64(sbt.device.ShaderGroupBaseAlignment())
	stride := uint64(sbt.shaderRecordStride)

	var layout ShaderTableLayout
	var cursor uint64

	place := func(size, recordStride uint64) ShaderTableRegion {
		cursor = math.AlignUp(cursor, align)
		r := ShaderTableRegion{Offset: cursor, Size: size, Stride: recordStride}
		cursor += size
		return r
	}

	rayGenSize := uint64(sbt.rayGen.Len())
	layout.RayGen = place(rayGenSize, rayGenSize)
	layout.Miss = place(uint64(sbt.miss.Len()), stride)
	layout.HitGroup = place(uint64(sbt.hitGroups.Len()), stride)
	layout.Callable = place(uint64(sbt.callable.Len()), stride)
	layout.Size = math.AlignUp(cursor, align)
	return layout
}

// Pack copies the four tables into one buffer following Layout. Alignment
// padding holds containers.EmptyRecordByte like unwritten records.
func (sbt *ShaderBindingTable) Pack() ([]byte, ShaderTableLayout) {
	layout := sbt.Layout()
	buf := bytes.Repeat([]byte{containers.EmptyRecordByte}, int(layout.Size))

	copy(buf[layout.RayGen.Offset:], sbt.rayGen.Bytes())
	copy(buf[layout.Miss.Offset:], sbt.miss.Bytes())
	copy(buf[layout.HitGroup.Offset:], sbt.hitGroups.Bytes())
	copy(buf[layout.Callable.Offset:], sbt.callable.Bytes())
	return buf, layout
}
