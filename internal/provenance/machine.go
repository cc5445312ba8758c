package provenance

import (
	"sync"
	"time"
)

// Machine is the C3 State Machine: current-state tracking, transition
// execution, proof emission, log append, and sink fan-out. A Machine is
// owned by a single logical actor — it is not reentrant and is safe
// under concurrent callers only via the mutex it already holds internally
// per-instance; callers must still confine one *Machine to one task or wrap
// calls with their own external synchronization if they share it across
// goroutines intentionally.
type Machine struct {
	mu sync.Mutex

	agentID   string
	sessionID string
	states    map[string]struct{}
	policy    *Policy[string]
	current   string

	engine     *engine
	log        []Proof
	sinks      []Sink
	loggerSink *LoggerSink
	clock      func() time.Time
	metrics    *Metrics
}

// Option configures a Machine at construction.
type Option func(*Machine)

// WithSinks attaches sinks invoked, in order, after every accepted
// transition.
func WithSinks(sinks ...Sink) Option {
	return func(m *Machine) { m.sinks = append(m.sinks, sinks...) }
}

// WithClock overrides the wall clock used to stamp proofs; tests use this
// for determinism.
func WithClock(clock func() time.Time) Option {
	return func(m *Machine) { m.clock = clock }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Machine) { m.metrics = metrics }
}

// NewMachine constructs a Machine for one agent session. It fails with
// ConfigError if initialState is not in states, or if policy references any
// state outside states.
func NewMachine(agentID, sessionID, privateKeyHex string, states []string, policy *Policy[string], initialState string, opts ...Option) (*Machine, error) {
	stateSet := make(map[string]struct{}, len(states))
	for _, s := range states {
		stateSet[s] = struct{}{}
	}
	if _, ok := stateSet[initialState]; !ok {
		return nil, &ConfigError{Reason: "initial state \"" + initialState + "\" is not in the declared state set"}
	}
	for _, s := range policy.States() {
		if _, ok := stateSet[s]; !ok {
			return nil, &ConfigError{Reason: "policy references state \"" + s + "\" outside the declared state set"}
		}
	}

	priv, err := ParsePrivateKeyHex(privateKeyHex)
	if err != nil {
		return nil, err
	}

	m := &Machine{
		agentID:   agentID,
		sessionID: sessionID,
		states:    stateSet,
		policy:    policy,
		current:   initialState,
		engine:    newEngine(priv),
		log:       make([]Proof, 0),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, sink := range m.sinks {
		if ls, ok := sink.(*LoggerSink); ok {
			m.loggerSink = ls
			break
		}
	}
	return m, nil
}

// Transition attempts to move from the current state to to, recording the
// action and params. It is either fully appended (log, merkle leaf, and all
// sinks attempted) or it did not happen: no partial state changes are ever
// visible to callers.
func (m *Machine) Transition(to, action string, params Value) (Proof, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.current
	if !m.policy.CanTransition(from, to) {
		m.observeOutcome("rejected")
		return Proof{}, &InvalidTransition{From: from, To: to}
	}

	start := m.clock()
	descriptor := Descriptor{
		Timestamp: start.UnixMilli(),
		From:      from,
		To:        to,
		Action:    action,
		Params:    params,
	}

	var prevHash string
	if len(m.log) > 0 {
		prevHash = m.log[len(m.log)-1].StateHash
	}

	proof, err := m.engine.produce(descriptor, prevHash)
	if err != nil {
		m.observeOutcome("rejected")
		return Proof{}, err
	}

	// Chain-append: purely CPU-bound, must not suspend.
	m.log = append(m.log, proof)

	// Sink emission is the only permitted suspension point; a sink failure
	// does not roll back the already-appended proof.
	var sinkErr error
	for _, sink := range m.sinks {
		if err := sink.OnTransition(m.agentID, m.sessionID, from, to, action, proof); err != nil {
			if m.metrics != nil {
				m.metrics.SinkFailuresTotal.WithLabelValues(m.agentID, sink.Name()).Inc()
			}
			if sinkErr == nil {
				sinkErr = &SinkError{Sink: sink.Name(), Reason: err.Error()}
			}
		}
	}

	m.current = to
	m.observeOutcome("accepted")
	if m.metrics != nil {
		m.metrics.TransitionDuration.WithLabelValues(m.agentID).Observe(time.Since(start).Seconds())
	}

	return proof, sinkErr
}

func (m *Machine) observeOutcome(outcome string) {
	if m.metrics != nil {
		m.metrics.TransitionsTotal.WithLabelValues(m.agentID, outcome).Inc()
	}
}

// Available returns the set of states reachable from current in one step.
func (m *Machine) Available() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.policy.Allowed(m.current)
}

// CurrentState returns the machine's current state.
func (m *Machine) CurrentState() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Log returns a copy of the accepted-proof log in append order.
func (m *Machine) Log() []Proof {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Proof, len(m.log))
	copy(out, m.log)
	return out
}

// PublicKey returns the machine's public key, for handing to auditors who
// will call VerifyChain against this machine's log.
func (m *Machine) PublicKey() *PublicKey {
	return m.engine.priv.Public()
}

// Logs returns the formatted banner-plus-lines view of this session's
// transitions, delegating to whichever LoggerSink the machine was built
// with. Returns "" if no LoggerSink is attached.
func (m *Machine) Logs() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loggerSink == nil {
		return ""
	}
	return m.loggerSink.GetLogs(m.sessionID)
}
