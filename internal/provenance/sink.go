package provenance

// Sink consumes finished proofs. Implementations must
// be idempotent with respect to (agentID, sessionID, proof.StateHash) — they
// MAY deduplicate but MUST NOT reorder. Two reference sinks are defined in
// this package: the in-memory structured logger (logger_sink.go) and the
// durable store family (store_postgres.go, store_supabase.go,
// sink_broadcast.go).
type Sink interface {
	OnTransition(agentID, sessionID, from, to, action string, proof Proof) error
	Name() string
}
