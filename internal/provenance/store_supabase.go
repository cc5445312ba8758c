package provenance

import (
	"fmt"

	supabase "github.com/supabase-community/supabase-go"
)

// SupabaseSink is an alternate durable-store sink, backed by Supabase's
// PostgREST table API instead of a raw *sql.DB connection. It implements
// the same Sink interface as PostgresSink so a deployment can swap backends
// at construction.
type SupabaseSink struct {
	client *supabase.Client
	table  string
}

// NewSupabaseSink wraps an already-configured Supabase client. table is the
// destination table name; it must accept the same columns as
// EnsurePostgresSchema's provenance_proofs table.
func NewSupabaseSink(client *supabase.Client, table string) *SupabaseSink {
	if table == "" {
		table = "provenance_proofs"
	}
	return &SupabaseSink{client: client, table: table}
}

func (s *SupabaseSink) Name() string { return "supabase" }

// supabaseProofRow mirrors the row shape expected by the destination table.
type supabaseProofRow struct {
	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id"`
	FromState string `json:"from_state"`
	ToState   string `json:"to_state"`
	Action    string `json:"action"`
	ProofJSON Proof  `json:"proof_json"`
}

func (s *SupabaseSink) OnTransition(agentID, sessionID, from, to, action string, proof Proof) error {
	row := supabaseProofRow{
		AgentID:   agentID,
		SessionID: sessionID,
		FromState: from,
		ToState:   to,
		Action:    action,
		ProofJSON: proof,
	}
	var result []map[string]interface{}
	_, err := s.client.From(s.table).
		Insert(row, false, "", "", "").
		ExecuteTo(&result)
	if err != nil {
		return fmt.Errorf("failed to insert proof row into %s: %w", s.table, err)
	}
	return nil
}
