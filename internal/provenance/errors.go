package provenance

import "fmt"

// ConfigError reports a malformed machine construction: an initial state
// outside the declared state set, or a policy edge referencing an unknown
// state.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "provenance: config error: " + e.Reason }

// InvalidTransition reports a transition the policy graph does not allow.
// No side effects occur when this is returned: current state, log, and
// sinks are all left exactly as they were.
type InvalidTransition struct {
	From, To string
}

func (e *InvalidTransition) Error() string {
	return fmt.Sprintf("provenance: invalid transition %s -> %s", e.From, e.To)
}

// CanonicalizationError reports params or payload that could not be
// deterministically serialized.
type CanonicalizationError struct {
	Reason string
}

func (e *CanonicalizationError) Error() string {
	return "provenance: canonicalization error: " + e.Reason
}

// CryptoKeyError reports missing or malformed key material.
type CryptoKeyError struct {
	Reason string
}

func (e *CryptoKeyError) Error() string { return "provenance: crypto key error: " + e.Reason }

// CryptoOpError reports a signing or verification primitive failure.
type CryptoOpError struct {
	Op     string
	Reason string
}

func (e *CryptoOpError) Error() string {
	return fmt.Sprintf("provenance: crypto op %q failed: %s", e.Op, e.Reason)
}

// SinkError reports a sink that failed to accept a proof. It is never
// fatal to the machine: the in-memory chain remains authoritative and the
// failure is reported to the caller alongside the successfully produced
// proof.
type SinkError struct {
	Sink   string
	Reason string
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("provenance: sink %q failed: %s", e.Sink, e.Reason)
}

// ProofInvalid is returned only by VerifyChain, never by Transition. It
// names the first offending index and the specific invariant that failed.
type ProofInvalid struct {
	Index  int
	Reason string
}

func (e *ProofInvalid) Error() string {
	return fmt.Sprintf("provenance: proof invalid at index %d: %s", e.Index, e.Reason)
}
