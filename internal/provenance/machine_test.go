package provenance

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMachine(t *testing.T, clock func() time.Time) (*Machine, *PublicKey) {
	t.Helper()
	privHex, pubHex, err := GenerateKeyPair()
	require.NoError(t, err)

	policy := AgentLifecyclePolicy()
	states := []string{"IDLE", "INIT", "GOAL_PARSE", "PLANNING", "EXECUTING",
		"VALIDATING", "REPORTING", "COMPLETED", "ERROR", "TERMINATED"}

	var opts []Option
	if clock != nil {
		opts = append(opts, WithClock(clock))
	}

	m, err := NewMachine("agent-1", "session-1", privHex, states, policy, "IDLE", opts...)
	require.NoError(t, err)

	pub, err := ParsePublicKeyHex(pubHex)
	require.NoError(t, err)
	return m, pub
}

// S1 — single transition.
func TestTransition_SingleTransition(t *testing.T) {
	m, pub := testMachine(t, nil)

	proof, err := m.Transition("INIT", "start", Object(map[string]Value{"foo": Number(1)}))
	require.NoError(t, err)

	assert.Empty(t, proof.PrevHash)
	ok, err := pub.Verify(proof.StateHash, proof.Signature)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, verifyMerkleProofAt(proof.StateHash, proof.MerkleProof, 0, proof.MerkleRoot))
	assert.Equal(t, proof.StateHash, proof.MerkleRoot) // single-leaf tree: root == leaf
	assert.Equal(t, "INIT", m.CurrentState())
}

// S2 — chain of three.
func TestTransition_ChainOfThree(t *testing.T) {
	m, pub := testMachine(t, nil)

	p0, err := m.Transition("INIT", "start", Object(nil))
	require.NoError(t, err)
	p1, err := m.Transition("GOAL_PARSE", "parse", Object(map[string]Value{"g": String("x")}))
	require.NoError(t, err)
	p2, err := m.Transition("PLANNING", "plan", Object(nil))
	require.NoError(t, err)

	assert.Equal(t, p0.StateHash, p1.PrevHash)
	assert.Equal(t, p1.StateHash, p2.PrevHash)

	result := VerifyChain(m.Log(), pub)
	assert.True(t, result.OK)
}

// S3 — invalid transition rejected.
func TestTransition_InvalidTransitionRejected(t *testing.T) {
	m, _ := testMachine(t, nil)

	_, err := m.Transition("EXECUTING", "skip", Object(nil))
	require.Error(t, err)

	var invalid *InvalidTransition
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "IDLE", invalid.From)
	assert.Equal(t, "EXECUTING", invalid.To)

	assert.Equal(t, "IDLE", m.CurrentState())
	assert.Empty(t, m.Log())
}

// S4 — tamper detection.
func TestVerifyChain_TamperDetection(t *testing.T) {
	m, pub := testMachine(t, nil)

	_, err := m.Transition("INIT", "start", Object(nil))
	require.NoError(t, err)
	_, err = m.Transition("GOAL_PARSE", "parse", Object(nil))
	require.NoError(t, err)
	_, err = m.Transition("PLANNING", "plan", Object(nil))
	require.NoError(t, err)

	proofs := m.Log()
	// Flip one character of the second proof's state hash.
	tampered := []rune(proofs[1].StateHash)
	if tampered[0] == 'a' {
		tampered[0] = 'b'
	} else {
		tampered[0] = 'a'
	}
	proofs[1].StateHash = string(tampered)

	result := VerifyChain(proofs, pub)
	assert.False(t, result.OK)
	require.NotNil(t, result.FailedAt)
	assert.Contains(t, []int{1, 2}, *result.FailedAt)

	// The reported reason is rendered through ProofInvalid's Error(), so it
	// always carries the "proof invalid at index N" prefix.
	assert.Contains(t, result.Reason, fmt.Sprintf("proof invalid at index %d", *result.FailedAt))
}

// S6 — terminal policy.
func TestTransition_TerminalStateHasNoAvailable(t *testing.T) {
	m, _ := testMachine(t, nil)

	_, err := m.Transition("ERROR", "fail", Object(nil))
	require.NoError(t, err)
	_, err = m.Transition("TERMINATED", "halt", Object(nil))
	require.NoError(t, err)

	assert.Empty(t, m.Available())

	_, err = m.Transition("IDLE", "resurrect", Object(nil))
	require.Error(t, err)
	var invalid *InvalidTransition
	require.ErrorAs(t, err, &invalid)
}

func TestNewMachine_RejectsUnknownInitialState(t *testing.T) {
	privHex, _, err := GenerateKeyPair()
	require.NoError(t, err)
	policy := AgentLifecyclePolicy()

	_, err = NewMachine("a", "s", privHex, []string{"IDLE"}, policy, "NOT_A_STATE")
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestNewMachine_RejectsPolicyReferencingUnknownState(t *testing.T) {
	privHex, _, err := GenerateKeyPair()
	require.NoError(t, err)
	policy := NewPolicy(map[string][]string{"A": {"B"}})

	_, err = NewMachine("a", "s", privHex, []string{"A"}, policy, "A")
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestAvailable_IsSubsetOfPolicyEdges(t *testing.T) {
	m, _ := testMachine(t, nil)
	available := m.Available()
	policy := AgentLifecyclePolicy()
	for _, s := range available {
		assert.True(t, policy.CanTransition("IDLE", s))
	}
}

func TestLoggerSink_RecordsFormattedLines(t *testing.T) {
	logger := NewLoggerSink(nil)
	privHex, _, err := GenerateKeyPair()
	require.NoError(t, err)

	m, err := NewMachine("agent-9", "session-9", privHex,
		[]string{"IDLE", "INIT"}, NewPolicy(map[string][]string{"IDLE": {"INIT"}}), "IDLE",
		WithSinks(logger))
	require.NoError(t, err)

	_, err = m.Transition("INIT", "start", Object(nil))
	require.NoError(t, err)

	logs := logger.GetLogs("session-9")
	assert.Contains(t, logs, "agent-9")
	assert.Contains(t, logs, "IDLE->INIT")
	assert.Contains(t, logs, "sig(")

	// Machine.Logs must delegate to the same sink rather than re-deriving
	// its own formatting.
	assert.Equal(t, logs, m.Logs())
}

func TestMachine_LogsIsEmptyWithoutLoggerSink(t *testing.T) {
	m, _ := testMachine(t, nil)
	assert.Empty(t, m.Logs())
}

// failingSink always errors, simulating a durable store that is down.
type failingSink struct{}

func (failingSink) Name() string { return "failing" }
func (failingSink) OnTransition(agentID, sessionID, from, to, action string, proof Proof) error {
	return fmt.Errorf("store unreachable")
}

// A sink failure must not roll back the already-appended proof: the caller
// gets both a non-nil SinkError and a valid proof in the same call.
func TestTransition_SinkFailureReturnsProofAlongsideSinkError(t *testing.T) {
	privHex, _, err := GenerateKeyPair()
	require.NoError(t, err)

	m, err := NewMachine("agent-1", "session-1", privHex,
		[]string{"IDLE", "INIT"}, NewPolicy(map[string][]string{"IDLE": {"INIT"}}), "IDLE",
		WithSinks(failingSink{}))
	require.NoError(t, err)

	proof, err := m.Transition("INIT", "start", Object(nil))
	require.Error(t, err)
	var sinkErr *SinkError
	require.ErrorAs(t, err, &sinkErr)
	assert.Equal(t, "failing", sinkErr.Sink)

	assert.NotEmpty(t, proof.StateHash)
	assert.Equal(t, "INIT", m.CurrentState())
	assert.Len(t, m.Log(), 1)
}
