package analysis

import (
	"sort"

	"depmatrix/internal/engine/matrix"
)

// ImportanceScore weights how central a node is:
//
//	Score = (FanIn * 2) + FanOut
//
// Being depended upon counts double because changes there ripple outward.
func ImportanceScore(fanIn, fanOut int) int {
	return fanIn*2 + fanOut
}

// GodModule is a node whose importance score reached the threshold.
type GodModule struct {
	Name    string  `json:"name"`
	Metrics Metrics `json:"metrics"`
}

// GodModules lists nodes scoring at least threshold, highest first. A
// non-positive threshold disables the check.
func GodModules(m *matrix.Matrix, threshold int) []GodModule {
	if threshold <= 0 {
		return nil
	}
	out := make([]GodModule, 0)
	for name, mt := range ComputeMetrics(m) {
		if mt.Score >= threshold {
			out = append(out, GodModule{Name: name, Metrics: mt})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Metrics.Score != out[j].Metrics.Score {
			return out[i].Metrics.Score > out[j].Metrics.Score
		}
		return out[i].Name < out[j].Name
	})
	return out
}
