package resolver

import (
	"depmatrix/internal/engine/registry"
	"depmatrix/internal/shared/observability"
	"depmatrix/internal/shared/util"
)

// Memo records, per candidate dotted name, whether it denotes a module or
// package inside the registry. Entries are written once and never change.
type Memo struct {
	reg    *registry.Registry
	inside map[string]bool
}

func newMemo(reg *registry.Registry) *Memo {
	return &Memo{reg: reg, inside: make(map[string]bool)}
}

// Inside reports whether name is a registry module, or a package whose
// package-self module is in the registry.
func (m *Memo) Inside(name string) bool {
	if v, ok := m.inside[name]; ok {
		observability.MemoLookupsTotal.WithLabelValues("hit").Inc()
		return v
	}
	observability.MemoLookupsTotal.WithLabelValues("miss").Inc()
	v := m.reg.Has(name) || m.reg.Has(registry.PackageSelf(name))
	m.inside[name] = v
	return v
}

// Snapshot returns a copy of every memoized lookup.
func (m *Memo) Snapshot() map[string]bool {
	out := make(map[string]bool, len(m.inside))
	for k, v := range m.inside {
		out[k] = v
	}
	return out
}

// Keys returns the memoized names in lexical order.
func (m *Memo) Keys() []string {
	return util.SortedStringKeys(m.inside)
}

func (m *Memo) Len() int { return len(m.inside) }
