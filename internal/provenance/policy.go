package provenance

// Policy is the static, immutable directed graph of allowed transitions
// (C2). It is parametric in the state id type so the same engine serves the
// agent lifecycle (the reference policy below) and any sub-domain
// policy — persona evolution, content pipelines — built over its own state
// set. Policy holds no references to state; it is pure data, built once and
// never mutated for the lifetime of a machine.
type Policy[S comparable] struct {
	edges map[S]map[S]struct{}
}

// NewPolicy builds an immutable adjacency map from an edge list. Edges may
// be self-loops. A state with no outgoing edges is terminal.
func NewPolicy[S comparable](edges map[S][]S) *Policy[S] {
	p := &Policy[S]{edges: make(map[S]map[S]struct{}, len(edges))}
	for from, tos := range edges {
		set := make(map[S]struct{}, len(tos))
		for _, to := range tos {
			set[to] = struct{}{}
		}
		p.edges[from] = set
	}
	return p
}

// CanTransition is the single predicate the state machine consults.
func (p *Policy[S]) CanTransition(from, to S) bool {
	set, ok := p.edges[from]
	if !ok {
		return false
	}
	_, ok = set[to]
	return ok
}

// Allowed returns the set of states reachable from from in one step.
func (p *Policy[S]) Allowed(from S) []S {
	set, ok := p.edges[from]
	if !ok {
		return nil
	}
	out := make([]S, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

// IsTerminal reports whether from has no outgoing edges.
func (p *Policy[S]) IsTerminal(from S) bool {
	set, ok := p.edges[from]
	return !ok || len(set) == 0
}

// States returns every state referenced anywhere in the policy, either as a
// source or a destination — used at construction time to validate that a
// machine's declared state set is a superset of the policy's.
func (p *Policy[S]) States() []S {
	seen := make(map[S]struct{})
	for from, tos := range p.edges {
		seen[from] = struct{}{}
		for to := range tos {
			seen[to] = struct{}{}
		}
	}
	out := make([]S, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	return out
}

// AgentLifecyclePolicy is the reference concrete policy: the generic
// lifecycle state set every concrete agent instantiates the engine over
// unless it defines its own.
func AgentLifecyclePolicy() *Policy[string] {
	return NewPolicy(map[string][]string{
		"IDLE":        {"INIT", "ERROR", "TERMINATED"},
		"INIT":        {"GOAL_PARSE", "ERROR", "TERMINATED", "IDLE"},
		"GOAL_PARSE":  {"PLANNING", "ERROR", "TERMINATED", "IDLE"},
		"PLANNING":    {"PLANNING", "EXECUTING", "ERROR", "TERMINATED", "IDLE"},
		"EXECUTING":   {"EXECUTING", "VALIDATING", "REPORTING", "ERROR", "TERMINATED", "IDLE"},
		"VALIDATING":  {"VALIDATING", "COMPLETED", "REPORTING", "EXECUTING", "ERROR", "TERMINATED", "IDLE"},
		"REPORTING":   {"VALIDATING", "REPORTING", "COMPLETED", "ERROR", "TERMINATED", "IDLE"},
		"COMPLETED":   {"TERMINATED", "IDLE"},
		"ERROR":       {"TERMINATED", "IDLE"},
		"TERMINATED":  {},
	})
}
