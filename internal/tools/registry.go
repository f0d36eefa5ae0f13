package tools

import (
	"fmt"
	"sort"

	"photoagent/internal/chat"
)

// Registry is the closed set of operations the planner may name. Lookups are
// by exact name; listings are alphabetical so the model sees a stable order.
type Registry struct {
	byName map[string]Tool
	sorted []string
}

// NewRegistry panics on a duplicate name: two tools answering to one name is a
// wiring bug, not a runtime condition.
func NewRegistry(ts ...Tool) *Registry {
	r := &Registry{byName: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		name := t.Name()
		if _, dup := r.byName[name]; dup {
			panic(fmt.Sprintf("tools: duplicate tool %q", name))
		}
		r.byName[name] = t
		r.sorted = append(r.sorted, name)
	}
	sort.Strings(r.sorted)
	return r
}

func (r *Registry) Definitions() []chat.ToolDef {
	return r.DefinitionsFiltered(nil)
}

// DefinitionsFiltered omits tools mapped to false in enabled; absent names stay.
func (r *Registry) DefinitionsFiltered(enabled map[string]bool) []chat.ToolDef {
	out := make([]chat.ToolDef, 0, len(r.sorted))
	for _, name := range r.sorted {
		if on, ok := enabled[name]; ok && !on {
			continue
		}
		out = append(out, r.byName[name].Definition())
	}
	return out
}

func (r *Registry) Names() []string {
	return append([]string(nil), r.sorted...)
}

func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}
