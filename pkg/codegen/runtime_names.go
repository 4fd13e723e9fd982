package codegen

// Runtime-contract names (spec §6, §7): the host quantum-chemistry runtime's
// class and routine names, printed verbatim into the emitted text streams.
// The emitter never imports or type-checks against these; they are opaque
// string constants, exactly as the original C++ generator treats them.
const (
	RuntimeTask       = "Task"
	RuntimeSubTask    = "SubTask"
	RuntimeTensor     = "Tensor"
	RuntimeIndexRange = "IndexRange"
	RuntimeIndex      = "Index"
	RuntimeQueue      = "Queue"

	RuntimeResidual   = "Residual"
	RuntimeEnergy     = "Energy"
	RuntimeDedci      = "Dedci"
	RuntimeCorrection = "Correction"
	RuntimeDensity    = "Density"
	RuntimeDensity1   = "Density1"
	RuntimeDensity2   = "Density2"

	RuntimeDgemm   = "dgemm_"
	RuntimeZgemm3m = "zgemm3m_"
	RuntimeDdot    = "ddot_"
	RuntimeZdotu   = "zdotu_"
	RuntimeDscal   = "dscal_"
	RuntimeZscal   = "zscal_"

	RuntimeGetBlock    = "get_block"
	RuntimePutBlock    = "put_block"
	RuntimeZero        = "zero"
	RuntimeSize        = "size"
	RuntimeSortIndices = "sort_indices"

	RuntimeMatrix  = "Matrix"
	RuntimeZMatrix = "ZMatrix"
)

// wrapperClassName maps an equation.TreeType to the runtime wrapper class
// whose constructor builds and runs the emitted Queue (spec §4.7).
func wrapperClassName(typeName string) string {
	switch typeName {
	case "Residual":
		return RuntimeResidual
	case "Energy":
		return RuntimeEnergy
	case "Dedci":
		return RuntimeDedci
	case "Correction":
		return RuntimeCorrection
	case "Density":
		return RuntimeDensity
	case "Density1":
		return RuntimeDensity1
	case "Density2":
		return RuntimeDensity2
	default:
		return typeName
	}
}
