package provenance

import "github.com/google/uuid"

// NewAgentID and NewSessionID generate fresh identifiers for callers that do
// not supply their own: a fixed prefix followed by a random UUID v4 from
// github.com/google/uuid.
func NewAgentID() string   { return "agent-" + uuid.NewString() }
func NewSessionID() string { return "session-" + uuid.NewString() }
