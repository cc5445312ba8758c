package provenance

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresSink is the reference durable-store sink, backed by Postgres.
// Persistence is append-only: each call inserts one row keyed by a
// DB-assigned monotonic identifier (the table's serial primary key).
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink wraps an already-open *sql.DB. Callers are expected to
// have created the backing table with EnsurePostgresSchema (or equivalent)
// before using the sink.
func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

// EnsurePostgresSchema creates the append-only proofs table if it does not
// already exist.
func EnsurePostgresSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS provenance_proofs (
			id          BIGSERIAL PRIMARY KEY,
			agent_id    TEXT NOT NULL,
			session_id  TEXT NOT NULL,
			from_state  TEXT NOT NULL,
			to_state    TEXT NOT NULL,
			action      TEXT NOT NULL,
			proof_json  JSONB NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create provenance_proofs table: %w", err)
	}
	return nil
}

func (s *PostgresSink) Name() string { return "postgres" }

func (s *PostgresSink) OnTransition(agentID, sessionID, from, to, action string, proof Proof) error {
	payload, err := json.Marshal(proof)
	if err != nil {
		return fmt.Errorf("failed to marshal proof: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO provenance_proofs (agent_id, session_id, from_state, to_state, action, proof_json)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		agentID, sessionID, from, to, action, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert proof row: %w", err)
	}
	return nil
}
