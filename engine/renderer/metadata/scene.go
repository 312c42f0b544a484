package metadata

/**
 * @brief Configuration of a ray tracing scene, as read from a .rtscene (TOML) file.
 */
type RayTracingSceneConfig struct {
	Engine   EngineConfig   `toml:"engine"`
	Device   DeviceLimits   `toml:"device"`
	Pipeline PipelineConfig `toml:"pipeline"`
	BLAS     []BLASConfig   `toml:"blas"`
	TLAS     TLASConfig     `toml:"tlas"`
	SBT      SBTConfig      `toml:"sbt"`
}

type EngineConfig struct {
	/** @brief Level of the engine logger (debug, info, warn, error). */
	LogLevel string `toml:"log_level"`
	/** @brief Rebuild the scene whenever its file changes. */
	Watch bool `toml:"watch"`
}

/**
 * @brief Ray tracing pipeline configuration. Shader groups get their index in declaration
 * order: general groups first, then triangle hit groups, then procedural hit groups.
 */
type PipelineConfig struct {
	Name                string   `toml:"name"`
	ShaderRecordSize    uint32   `toml:"shader_record_size"`
	MaxRecursionDepth   uint8    `toml:"max_recursion_depth"`
	GeneralGroups       []string `toml:"general_groups"`
	TriangleHitGroups   []string `toml:"triangle_hit_groups"`
	ProceduralHitGroups []string `toml:"procedural_hit_groups"`
}

type BLASConfig struct {
	Name      string   `toml:"name"`
	Triangles []string `toml:"triangles"`
	Boxes     []string `toml:"boxes"`
}

type TLASConfig struct {
	Name                  string               `toml:"name"`
	BindingMode           string               `toml:"binding_mode"`
	HitShadersPerInstance uint32               `toml:"hit_shaders_per_instance"`
	MaxInstanceCount      uint32               `toml:"max_instance_count"`
	Instances             []TLASInstanceConfig `toml:"instance"`
}

type TLASInstanceConfig struct {
	Name string `toml:"name"`
	BLAS string `toml:"blas"`
	/** @brief Explicit hit group offset; automatic when absent. */
	HitGroupOffset *uint32 `toml:"hit_group_offset"`
	CustomID       uint32  `toml:"custom_id"`
	Mask           uint8   `toml:"mask"`
}

type SBTConfig struct {
	Name      string                 `toml:"name"`
	RayGen    ShaderRecordConfig     `toml:"ray_gen"`
	Miss      []IndexedRecordConfig  `toml:"miss"`
	Callable  []IndexedRecordConfig  `toml:"callable"`
	HitGroups []HitGroupRecordConfig `toml:"hit_group"`
}

/** @brief A shader record: the group name and the user data as a hex string. */
type ShaderRecordConfig struct {
	Group string `toml:"group"`
	Data  string `toml:"data"`
}

type IndexedRecordConfig struct {
	Index uint32 `toml:"index"`
	Group string `toml:"group"`
	Data  string `toml:"data"`
}

/**
 * @brief A hit group binding. When Geometry is empty the group is bound to every
 * geometry of the instance and Data holds one record of user data per geometry.
 */
type HitGroupRecordConfig struct {
	Instance  string `toml:"instance"`
	Geometry  string `toml:"geometry"`
	RayOffset uint32 `toml:"ray_offset"`
	Group     string `toml:"group"`
	Data      string `toml:"data"`
}
