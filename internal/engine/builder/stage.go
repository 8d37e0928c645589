package builder

// Stage is the last completed step of a build. Stages only move forward.
type Stage int

const (
	StageEmpty Stage = iota
	StageModules
	StageImports
	StageMatrices
)

func (s Stage) String() string {
	switch s {
	case StageEmpty:
		return "empty"
	case StageModules:
		return "modules"
	case StageImports:
		return "imports"
	case StageMatrices:
		return "matrices"
	default:
		return "unknown"
	}
}
