package analysis

import (
	"depmatrix/internal/engine/matrix"
)

// Report gathers every check for one matrix.
type Report struct {
	Depth      int                `json:"depth"`
	Nodes      int                `json:"nodes"`
	Cycles     [][]string         `json:"cycles"`
	Violations []Violation        `json:"violations"`
	GodModules []GodModule        `json:"god_modules"`
	Metrics    map[string]Metrics `json:"metrics"`
}

// Clean reports whether no check found anything.
func (r Report) Clean() bool {
	return len(r.Cycles) == 0 && len(r.Violations) == 0 && len(r.GodModules) == 0
}

// Analyze runs every check on m. rules may be nil.
func Analyze(m *matrix.Matrix, rules *LayerRuleEngine, godThreshold int) Report {
	violations := rules.Validate(m)
	if violations == nil {
		violations = []Violation{}
	}
	gods := GodModules(m, godThreshold)
	if gods == nil {
		gods = []GodModule{}
	}
	return Report{
		Depth:      m.Depth,
		Nodes:      m.Size(),
		Cycles:     Cycles(m),
		Violations: violations,
		GodModules: gods,
		Metrics:    ComputeMetrics(m),
	}
}
