package core

import (
	"errors"
)

// Description errors. Returned when an object is created or reset with an invalid
// description; the object is never left partially configured.
var (
	ErrInvalidDescription      = errors.New("invalid description")
	ErrNilPipeline             = errors.New("pipeline state must not be nil")
	ErrNotRayTracingPipeline   = errors.New("pipeline state must be a ray tracing pipeline")
	ErrShaderRecordTooBig      = errors.New("shader record stride exceeds device limit")
	ErrMisalignedShaderRecord  = errors.New("shader record stride is not a multiple of the shader group handle size")
	ErrDuplicateInstanceName   = errors.New("instance name must be unique")
	ErrIncompatibleBindingMode = errors.New("automatic hit group offset is not compatible with the binding mode")
	ErrMissingBLAS             = errors.New("instance has no bottom-level acceleration structure")
)

// Caller errors. These point at a programming error in the code driving the
// binding calls; nothing is written when one of them is returned.
var (
	ErrContractViolation  = errors.New("contract violation")
	ErrUnknownInstance    = errors.New("unknown instance")
	ErrUnknownGeometry    = errors.New("unknown geometry")
	ErrUnknownShaderGroup = errors.New("unknown shader group")
	ErrNotConfigured      = errors.New("shader binding table is not configured")
)

var (
	ErrUnknown = errors.New("unknown")
)
