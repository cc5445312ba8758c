package provenance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_CanTransition(t *testing.T) {
	p := NewPolicy(map[string][]string{"A": {"B", "C"}})
	assert.True(t, p.CanTransition("A", "B"))
	assert.True(t, p.CanTransition("A", "C"))
	assert.False(t, p.CanTransition("A", "D"))
	assert.False(t, p.CanTransition("B", "A"))
}

func TestPolicy_IsTerminal(t *testing.T) {
	p := NewPolicy(map[string][]string{"A": {"B"}, "B": {}})
	assert.False(t, p.IsTerminal("A"))
	assert.True(t, p.IsTerminal("B"))
	assert.True(t, p.IsTerminal("unknown-state"))
}

func TestPolicy_AllowedReturnsOutgoingEdges(t *testing.T) {
	p := NewPolicy(map[string][]string{"A": {"B", "C"}})
	allowed := p.Allowed("A")
	assert.ElementsMatch(t, []string{"B", "C"}, allowed)
	assert.Nil(t, p.Allowed("Z"))
}

func TestPolicy_StatesIncludesSourcesAndDestinations(t *testing.T) {
	p := NewPolicy(map[string][]string{"A": {"B"}})
	assert.ElementsMatch(t, []string{"A", "B"}, p.States())
}

func TestAgentLifecyclePolicy_TerminatedIsTerminal(t *testing.T) {
	p := AgentLifecyclePolicy()
	assert.True(t, p.IsTerminal("TERMINATED"))
}

func TestAgentLifecyclePolicy_ErrorAndCompletedReachTerminated(t *testing.T) {
	p := AgentLifecyclePolicy()
	assert.True(t, p.CanTransition("ERROR", "TERMINATED"))
	assert.True(t, p.CanTransition("COMPLETED", "TERMINATED"))
}

func TestAgentLifecyclePolicy_IdleCannotReachExecutingDirectly(t *testing.T) {
	p := AgentLifecyclePolicy()
	assert.False(t, p.CanTransition("IDLE", "EXECUTING"))
}

func TestAgentLifecyclePolicy_PlanningAndExecutingSelfLoop(t *testing.T) {
	p := AgentLifecyclePolicy()
	assert.True(t, p.CanTransition("PLANNING", "PLANNING"))
	assert.True(t, p.CanTransition("EXECUTING", "EXECUTING"))
}
