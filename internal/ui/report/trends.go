package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"depmatrix/internal/core/ports"
)

// RenderRunsTSV lists runs newest first. Deltas compare each run with the
// next older run in the list.
func RenderRunsTSV(runs []ports.RunSummary) ([]byte, error) {
	var buf strings.Builder

	buf.WriteString("Timestamp\tRunID\tProject\tMaxDepth\tModules\tEdges\tDeltaModules\tDeltaEdges\n")
	for i, run := range runs {
		deltaModules, deltaEdges := 0, 0
		if i+1 < len(runs) {
			deltaModules = run.Modules - runs[i+1].Modules
			deltaEdges = run.Edges - runs[i+1].Edges
		}
		buf.WriteString(fmt.Sprintf(
			"%s\t%s\t%s\t%d\t%d\t%d\t%+d\t%+d\n",
			run.CreatedAt.UTC().Format(time.RFC3339),
			run.ID,
			run.Project,
			run.MaxDepth,
			run.Modules,
			run.Edges,
			deltaModules,
			deltaEdges,
		))
	}

	return []byte(buf.String()), nil
}

func RenderRunsJSON(runs []ports.RunSummary) ([]byte, error) {
	if runs == nil {
		runs = []ports.RunSummary{}
	}
	return json.MarshalIndent(runs, "", "  ")
}
