package permission

import (
	"sort"
	"strings"

	"photoagent/internal/config"
)

type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

type Result struct {
	Decision Decision
	Reason   string
}

// Policy decides whether a tool may run at all. Consent for mutating tools is
// separate and always required, so "ask" in the config reads as allow here.
type Policy struct {
	fallback Decision
	rules    map[string]Decision
}

// New resolves the configured rules once; tool names are case-insensitive.
func New(cfg config.PermissionConfig) *Policy {
	p := &Policy{
		fallback: parseDecision(cfg.Default, DecisionAllow),
		rules:    make(map[string]Decision, len(cfg.Tools)),
	}
	for name, raw := range cfg.Tools {
		if name = normalizeTool(name); name != "" {
			p.rules[name] = parseDecision(raw, p.fallback)
		}
	}
	return p
}

func (p *Policy) Decide(toolName string) Result {
	tool := normalizeTool(toolName)
	if tool == "" {
		return Result{Decision: DecisionDeny, Reason: "tool missing"}
	}
	d, ok := p.rules[tool]
	if !ok {
		d = p.fallback
	}
	if d == DecisionDeny {
		return Result{Decision: DecisionDeny, Reason: "blocked by policy"}
	}
	return Result{Decision: DecisionAllow}
}

// Summary 权限矩阵的简短描述 / one-line description of the rule set
func (p *Policy) Summary() string {
	names := make([]string, 0, len(p.rules))
	for name := range p.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names)+1)
	parts = append(parts, "default: "+string(p.fallback))
	for _, name := range names {
		parts = append(parts, name+": "+string(p.rules[name]))
	}
	return strings.Join(parts, ", ")
}

func normalizeTool(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func parseDecision(raw string, fallback Decision) Decision {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "allow", "ask":
		return DecisionAllow
	case "deny":
		return DecisionDeny
	}
	return fallback
}
