package provenance

import (
	"fmt"
	"log/slog"
	"sync"
)

// LoggerSink is the reference structured-logger sink. It appends
// one human-oriented line per transition to an in-memory buffer, keyed by
// session, and also emits a structured slog record per transition for
// operational visibility.
type LoggerSink struct {
	mu      sync.Mutex
	buffers map[string][]string // sessionID -> lines
	logger  *slog.Logger
}

// NewLoggerSink creates a LoggerSink. If logger is nil, slog.Default() is
// used.
func NewLoggerSink(logger *slog.Logger) *LoggerSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggerSink{buffers: make(map[string][]string), logger: logger}
}

func (s *LoggerSink) Name() string { return "logger" }

func (s *LoggerSink) OnTransition(agentID, sessionID, from, to, action string, proof Proof) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := fmt.Sprintf("[%d] %s %s %s->%s: %s; sig(%s (%d))",
		proof.Timestamp, agentID, sessionID, from, to, action,
		truncateSig(proof.Signature), len(proof.Signature))
	s.buffers[sessionID] = append(s.buffers[sessionID], line)

	s.logger.Info("transition recorded",
		"agent_id", agentID, "session_id", sessionID,
		"from", from, "to", to, "action", action,
		"state_hash", proof.StateHash)
	return nil
}

// truncateSig renders a signature as "<first8>...<last8>", or the signature
// itself if it is too short to truncate meaningfully.
func truncateSig(sig string) string {
	if len(sig) <= 16 {
		return sig
	}
	return sig[:8] + "..." + sig[len(sig)-8:]
}

// GetLogs returns a header banner followed by the joined lines recorded for
// sessionID. The banner is decorative and must not be parsed by callers.
func (s *LoggerSink) GetLogs(sessionID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.buffers[sessionID]
	out := fmt.Sprintf("=== provenance log: session %s (%d entries) ===\n", sessionID, len(lines))
	for _, l := range lines {
		out += l + "\n"
	}
	return out
}
