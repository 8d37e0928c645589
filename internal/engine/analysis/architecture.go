package analysis

import (
	"fmt"
	"sort"
	"strings"

	"depmatrix/internal/core/errors"
	"depmatrix/internal/engine/matrix"
	"depmatrix/internal/shared/util"

	"github.com/gobwas/glob"
)

// Model assigns nodes to layers by dotted-name patterns and lists which
// layers each layer may import.
type Model struct {
	Layers []Layer
	Rules  []Rule
}

type Layer struct {
	Name     string
	Patterns []string
}

type Rule struct {
	Name  string
	From  string
	Allow []string
}

type Violation struct {
	Rule      string `json:"rule"`
	FromNode  string `json:"from_node"`
	FromLayer string `json:"from_layer"`
	ToNode    string `json:"to_node"`
	ToLayer   string `json:"to_layer"`
	Cardinal  int    `json:"cardinal"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s (%s -> %s): %s imports %s (%d)", v.Rule, v.FromLayer, v.ToLayer, v.FromNode, v.ToNode, v.Cardinal)
}

// LayerRuleEngine checks matrix dependencies against a Model.
type LayerRuleEngine struct {
	layers []layerMatcher
	rules  map[string]ruleSet
}

type layerMatcher struct {
	name     string
	patterns []compiledPattern
}

type compiledPattern struct {
	raw  string
	glob glob.Glob
}

type ruleSet struct {
	name  string
	allow map[string]bool
}

// NewLayerRuleEngine compiles the model. Patterns with glob metacharacters
// use '.' as the separator; plain patterns match a name and everything
// below it.
func NewLayerRuleEngine(model Model) (*LayerRuleEngine, error) {
	engine := &LayerRuleEngine{rules: make(map[string]ruleSet)}
	known := make(map[string]bool, len(model.Layers))

	for _, layer := range model.Layers {
		if known[layer.Name] {
			return nil, errors.Newf(errors.CodeInvalidInput, "duplicate layer %q", layer.Name)
		}
		known[layer.Name] = true
		matcher := layerMatcher{name: layer.Name}
		for _, raw := range layer.Patterns {
			cp := compiledPattern{raw: util.NormalizeDottedName(raw)}
			if strings.ContainsAny(cp.raw, "*?[]{}") {
				g, err := glob.Compile(cp.raw, '.')
				if err != nil {
					return nil, errors.Wrap(err, errors.CodeInvalidInput, fmt.Sprintf("layer %q pattern %q", layer.Name, raw))
				}
				cp.glob = g
			}
			matcher.patterns = append(matcher.patterns, cp)
		}
		engine.layers = append(engine.layers, matcher)
	}

	for _, rule := range model.Rules {
		if !known[rule.From] {
			return nil, errors.Newf(errors.CodeInvalidInput, "rule %q refers to unknown layer %q", rule.Name, rule.From)
		}
		allow := make(map[string]bool, len(rule.Allow))
		for _, target := range rule.Allow {
			if !known[target] {
				return nil, errors.Newf(errors.CodeInvalidInput, "rule %q allows unknown layer %q", rule.Name, target)
			}
			allow[target] = true
		}
		engine.rules[rule.From] = ruleSet{name: rule.Name, allow: allow}
	}
	return engine, nil
}

// Validate lists dependencies that leave a layer for one its rule does not
// allow. Imports within a layer and nodes outside every layer are ignored.
func (e *LayerRuleEngine) Validate(m *matrix.Matrix) []Violation {
	if e == nil || len(e.rules) == 0 {
		return nil
	}

	layerOf := make(map[string]string, len(m.Keys))
	for _, key := range m.Keys {
		layerOf[key] = e.LayerFor(key)
	}

	violations := make([]Violation, 0)
	for _, d := range m.Dependencies {
		fromLayer, toLayer := layerOf[d.SourceName], layerOf[d.TargetName]
		if fromLayer == "" || toLayer == "" || fromLayer == toLayer {
			continue
		}
		rule, ok := e.rules[fromLayer]
		if !ok || rule.allow[toLayer] {
			continue
		}
		violations = append(violations, Violation{
			Rule:      rule.name,
			FromNode:  d.SourceName,
			FromLayer: fromLayer,
			ToNode:    d.TargetName,
			ToLayer:   toLayer,
			Cardinal:  d.Cardinal,
		})
	}
	return violations
}

// LayerFor returns the layer whose longest matching pattern matches name,
// or "" when none does.
func (e *LayerRuleEngine) LayerFor(name string) string {
	type candidate struct {
		layer string
		score int
	}

	candidates := make([]candidate, 0)
	for _, layer := range e.layers {
		best := 0
		for _, p := range layer.patterns {
			if p.match(name) && len(p.raw) > best {
				best = len(p.raw)
			}
		}
		if best > 0 {
			candidates = append(candidates, candidate{layer: layer.name, score: best})
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score == candidates[j].score {
			return candidates[i].layer < candidates[j].layer
		}
		return candidates[i].score > candidates[j].score
	})
	return candidates[0].layer
}

func (p compiledPattern) match(name string) bool {
	if p.glob != nil {
		return p.glob.Match(name)
	}
	return util.HasNamePrefix(name, p.raw)
}
