package raytracing

import (
	"fmt"
	"sort"

	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/spaghettifunk/anima-rt/engine/renderer/metadata"
)

// TLASBuildInstanceData describes one instance passed to SetInstanceData.
type TLASBuildInstanceData struct {
	// InstanceName must be unique within the TLAS.
	InstanceName string
	BLAS         *BottomLevelAS
	CustomID     uint32
	Mask         uint8
	// ContributionToHitGroupIndex is the first hit group slot of the instance,
	// or metadata.TLASInstanceOffsetAuto to have it computed.
	ContributionToHitGroupIndex uint32
}

// TLASInstanceDesc is the result of an instance lookup.
type TLASInstanceDesc struct {
	ContributionToHitGroupIndex uint32
	BLAS                        *BottomLevelAS
}

type tlasInstance struct {
	contributionToHitGroupIndex uint32
	blas                        *BottomLevelAS
	// BLAS version captured when the instance was set.
	version uint32
}

// InstanceTable is what the shader binding table needs from a TLAS to place hit groups.
type InstanceTable interface {
	Desc() metadata.TopLevelASDesc
	GetInstanceDesc(name string) (TLASInstanceDesc, error)
}

// TopLevelAS maps instance names to bottom-level AS and their hit group offsets
// for one TLAS build. It is not safe for concurrent mutation.
type TopLevelAS struct {
	desc                  metadata.TopLevelASDesc
	state                 metadata.ResourceState
	hitShadersPerInstance uint32
	instances             map[string]tlasInstance
}

func NewTopLevelAS(desc *metadata.TopLevelASDesc) (*TopLevelAS, error) {
	d := *desc
	d.Name = core.ObjectName("tlas", d.Name)

	if err := validateTopLevelASDesc(&d); err != nil {
		core.LogError("%s", err.Error())
		return nil, err
	}

	return &TopLevelAS{
		desc:      d,
		state:     metadata.ResourceStateUnknown,
		instances: make(map[string]tlasInstance),
	}, nil
}

func validateTopLevelASDesc(desc *metadata.TopLevelASDesc) error {
	if desc.MaxInstanceCount == 0 {
		return fmt.Errorf("description of top-level AS '%s' is invalid: %w: MaxInstanceCount must not be zero", desc.Name, core.ErrInvalidDescription)
	}
	fastTrace := desc.Flags&metadata.RaytracingBuildASPreferFastTrace != 0
	fastBuild := desc.Flags&metadata.RaytracingBuildASPreferFastBuild != 0
	if fastTrace && fastBuild {
		return fmt.Errorf("description of top-level AS '%s' is invalid: %w: PreferFastTrace and PreferFastBuild are mutually exclusive", desc.Name, core.ErrInvalidDescription)
	}
	switch desc.BindingMode {
	case metadata.ShaderBindingModePerGeometry, metadata.ShaderBindingModePerInstance, metadata.ShaderBindingUserDefined:
	default:
		return fmt.Errorf("description of top-level AS '%s' is invalid: %w: unknown binding mode %s", desc.Name, core.ErrInvalidDescription, desc.BindingMode)
	}
	return nil
}

func (t *TopLevelAS) Desc() metadata.TopLevelASDesc {
	return t.desc
}

func (t *TopLevelAS) HitShadersPerInstance() uint32 {
	return t.hitShadersPerInstance
}

func (t *TopLevelAS) InstanceCount() uint32 {
	return uint32(len(t.instances))
}

// InstanceNames returns the instance names in lexical order.
func (t *TopLevelAS) InstanceNames() []string {
	names := make([]string, 0, len(t.instances))
	for name := range t.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetInstanceData replaces every instance of the table. Automatic offsets are a
// left-to-right running sum over the input: the order of instances decides the
// order of their hit group ranges. The call is all or nothing: on error the
// table holds no instance.
func (t *TopLevelAS) SetInstanceData(instances []TLASBuildInstanceData, hitShadersPerInstance uint32) error {
	t.clearInstances()
	t.hitShadersPerInstance = hitShadersPerInstance

	if err := t.fillInstances(instances, hitShadersPerInstance); err != nil {
		t.clearInstances()
		core.LogError("%s", err.Error())
		return err
	}

	core.LogDebug("top-level AS '%s': %d instances set, %d hit group records required", t.desc.Name, len(t.instances), t.RequiredHitGroupCount())
	return nil
}

func (t *TopLevelAS) fillInstances(instances []TLASBuildInstanceData, hitShadersPerInstance uint32) error {
	if uint32(len(instances)) > t.desc.MaxInstanceCount {
		return fmt.Errorf("top-level AS '%s': %w: %d instances exceed MaxInstanceCount (%d)",
			t.desc.Name, core.ErrInvalidDescription, len(instances), t.desc.MaxInstanceCount)
	}
	if len(instances) > 0 && hitShadersPerInstance == 0 {
		return fmt.Errorf("top-level AS '%s': %w: hit shaders per instance must not be zero", t.desc.Name, core.ErrInvalidDescription)
	}

	var instanceOffset uint64
	for i := range instances {
		inst := &instances[i]
		if inst.InstanceName == "" {
			return fmt.Errorf("top-level AS '%s': %w: instance %d has no name", t.desc.Name, core.ErrInvalidDescription, i)
		}
		if inst.BLAS == nil {
			return fmt.Errorf("top-level AS '%s': instance '%s': %w", t.desc.Name, inst.InstanceName, core.ErrMissingBLAS)
		}
		if _, exists := t.instances[inst.InstanceName]; exists {
			return fmt.Errorf("top-level AS '%s': %w: '%s'", t.desc.Name, core.ErrDuplicateInstanceName, inst.InstanceName)
		}

		desc := tlasInstance{
			contributionToHitGroupIndex: inst.ContributionToHitGroupIndex,
			blas:                        inst.BLAS,
			version:                     inst.BLAS.Version(),
		}

		span := t.hitGroupSpan(inst.BLAS, hitShadersPerInstance)
		if desc.contributionToHitGroupIndex == metadata.TLASInstanceOffsetAuto {
			switch t.desc.BindingMode {
			case metadata.ShaderBindingModePerGeometry, metadata.ShaderBindingModePerInstance:
			default:
				return fmt.Errorf("top-level AS '%s': instance '%s': %w %s",
					t.desc.Name, inst.InstanceName, core.ErrIncompatibleBindingMode, t.desc.BindingMode)
			}
			if instanceOffset+span > uint64(metadata.TLASInstanceOffsetAuto) {
				return fmt.Errorf("top-level AS '%s': %w: hit group range of instance '%s' starting at %d exceeds the index range",
					t.desc.Name, core.ErrInvalidDescription, inst.InstanceName, instanceOffset)
			}
			desc.contributionToHitGroupIndex = uint32(instanceOffset)
			instanceOffset += span
		} else if uint64(desc.contributionToHitGroupIndex)+span > uint64(metadata.TLASInstanceOffsetAuto) {
			return fmt.Errorf("top-level AS '%s': %w: hit group range of instance '%s' starting at %d exceeds the index range",
				t.desc.Name, core.ErrInvalidDescription, inst.InstanceName, desc.contributionToHitGroupIndex)
		}

		inst.BLAS.Retain()
		t.instances[inst.InstanceName] = desc
	}
	return nil
}

// CopyInstanceData replaces the instances of the table with a copy of the ones
// held by src, together with its binding mode and hit shaders per instance.
func (t *TopLevelAS) CopyInstanceData(src *TopLevelAS) {
	if src == t {
		return
	}
	t.clearInstances()
	t.hitShadersPerInstance = src.hitShadersPerInstance
	t.desc.BindingMode = src.desc.BindingMode

	for name, inst := range src.instances {
		inst.blas.Retain()
		t.instances[name] = inst
	}
}

// GetInstanceDesc looks up an instance by name. An unknown name is a programming
// error on the caller side: names must come from the last SetInstanceData.
func (t *TopLevelAS) GetInstanceDesc(name string) (TLASInstanceDesc, error) {
	inst, ok := t.instances[name]
	if !ok {
		err := fmt.Errorf("top-level AS '%s': %w '%s'", t.desc.Name, core.ErrUnknownInstance, name)
		core.LogError("%s", err.Error())
		return TLASInstanceDesc{}, err
	}
	return TLASInstanceDesc{
		ContributionToHitGroupIndex: inst.contributionToHitGroupIndex,
		BLAS:                        inst.blas,
	}, nil
}

// RequiredHitGroupCount returns the end of the highest hit group range claimed by
// an instance, i.e. the number of hit group records a complete table holds.
func (t *TopLevelAS) RequiredHitGroupCount() uint32 {
	var count uint64
	for _, inst := range t.instances {
		if end := uint64(inst.contributionToHitGroupIndex) + t.hitGroupSpan(inst.blas, t.hitShadersPerInstance); end > count {
			count = end
		}
	}
	return uint32(count)
}

// hitGroupSpan is the number of hit group slots an instance of blas occupies.
func (t *TopLevelAS) hitGroupSpan(blas *BottomLevelAS, hitShadersPerInstance uint32) uint64 {
	if t.desc.BindingMode == metadata.ShaderBindingModePerInstance {
		return uint64(hitShadersPerInstance)
	}
	return uint64(blas.GeometryCount()) * uint64(hitShadersPerInstance)
}

func (t *TopLevelAS) SetState(state metadata.ResourceState) {
	t.state = state
}

func (t *TopLevelAS) GetState() metadata.ResourceState {
	return t.state
}

func (t *TopLevelAS) IsInKnownState() bool {
	return t.state != metadata.ResourceStateUnknown
}

// CheckState reports whether the TLAS is in the given single state.
func (t *TopLevelAS) CheckState(state metadata.ResourceState) bool {
	if state == 0 || state&(state-1) != 0 {
		core.LogWarn("top-level AS '%s': CheckState expects a single state, got %#x", t.desc.Name, uint32(state))
		return false
	}
	if !t.IsInKnownState() {
		core.LogWarn("top-level AS '%s': state is unknown", t.desc.Name)
		return false
	}
	return t.state&state == state
}

// StaleInstances returns, in lexical order, the instances whose BLAS was rebuilt
// after they were set. A non-empty result means the TLAS must be rebuilt.
func (t *TopLevelAS) StaleInstances() []string {
	var stale []string
	for _, name := range t.InstanceNames() {
		inst := t.instances[name]
		if inst.version != inst.blas.Version() {
			stale = append(stale, name)
		}
	}
	return stale
}

// CheckBLASVersion reports the first stale instance, if any. It is diagnostic only.
func (t *TopLevelAS) CheckBLASVersion() bool {
	stale := t.StaleInstances()
	if len(stale) == 0 {
		return true
	}
	core.LogError("instance with name ('%s') has BLAS that was changed after TLAS build, you must rebuild TLAS", stale[0])
	return false
}

// Destroy drops every instance and the BLAS references they hold.
func (t *TopLevelAS) Destroy() {
	t.clearInstances()
}

func (t *TopLevelAS) clearInstances() {
	for _, inst := range t.instances {
		inst.blas.Release()
	}
	t.instances = make(map[string]tlasInstance)
}
