package resolver

// RawImport is one import statement as extracted by the parser. Plain marks
// the "import <from>" form; otherwise the statement is "from <from> import <names>".
type RawImport struct {
	By    string   `json:"by"`
	From  string   `json:"from"`
	Names []string `json:"import"`
	Plain bool     `json:"plain,omitempty"`
}

// Edge is a resolved dependency between two registry modules. Cardinal
// counts imported names with repetition; Imports keeps one entry per
// originating statement, restricted to the names attributed to this target.
type Edge struct {
	SourceIndex int         `json:"source_index"`
	SourceName  string      `json:"source_name"`
	TargetIndex int         `json:"target_index"`
	TargetName  string      `json:"target_name"`
	Cardinal    int         `json:"cardinal"`
	Imports     []RawImport `json:"imports"`
}

func cloneImports(in []RawImport) []RawImport {
	if in == nil {
		return nil
	}
	out := make([]RawImport, len(in))
	for i, imp := range in {
		imp.Names = append([]string(nil), imp.Names...)
		out[i] = imp
	}
	return out
}

// Clone returns a deep copy of e.
func (e Edge) Clone() Edge {
	e.Imports = cloneImports(e.Imports)
	return e
}

// CloneEdges deep-copies a slice of edges.
func CloneEdges(in []Edge) []Edge {
	if in == nil {
		return nil
	}
	out := make([]Edge, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}
