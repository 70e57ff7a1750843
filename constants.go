package mlfq

import "github.com/arkalon/mlfq/internal/constants"

// Re-exported compile-time defaults from the specification's external
// interface section.
const (
	DefaultBaseQuantum = constants.BaseQuantum
	DefaultMaxProcs    = constants.MaxProcs
	DefaultBufSize     = constants.BufSize
	DefaultPipePath    = constants.DefaultPipePath
)
