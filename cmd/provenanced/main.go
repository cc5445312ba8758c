package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	supabase "github.com/supabase-community/supabase-go"

	"github.com/ocx/provenance/internal/config"
	"github.com/ocx/provenance/internal/infra"
	"github.com/ocx/provenance/internal/provenance"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, continuing with process environment")
	}
	cfg := config.Get()

	reg := prometheus.NewRegistry()
	metrics := provenance.NewMetrics(reg)

	sinks, closers := buildSinks(cfg)
	defer func() {
		for _, c := range closers {
			c()
		}
	}()

	defaultKeyHex, err := resolveDefaultPrivateKeyHex(cfg)
	if err != nil {
		log.Printf("no default signing key configured, agents without their own key get a freshly generated one: %v", err)
	}

	srv := newServer(cfg, metrics, sinks, reg, defaultKeyHex)

	addr := fmt.Sprintf(":%s", cfg.GetPort())
	log.Printf("provenanced listening on %s (env=%s)", addr, cfg.Server.Env)
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      srv.router(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSec) * time.Second,
	}
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}

// buildSinks wires every durable/observability sink the config enables.
// Each is optional; a deployment with nothing enabled still runs with the
// in-memory logger sink so transitions are never silently unobserved.
func buildSinks(cfg *config.Config) ([]provenance.Sink, []func()) {
	var sinks []provenance.Sink
	var closers []func()

	sinks = append(sinks, provenance.NewLoggerSink(nil))

	if cfg.Postgres.Enabled && cfg.Postgres.DSN != "" {
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			log.Printf("postgres sink disabled: %v", err)
		} else if err := provenance.EnsurePostgresSchema(db); err != nil {
			log.Printf("postgres sink disabled: %v", err)
			db.Close()
		} else {
			sinks = append(sinks, provenance.NewPostgresSink(db))
			closers = append(closers, func() { db.Close() })
			log.Println("postgres sink enabled")
		}
	}

	if cfg.Supabase.Enabled && cfg.Supabase.URL != "" {
		client, err := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.ServiceKey, &supabase.ClientOptions{})
		if err != nil {
			log.Printf("supabase sink disabled: %v", err)
		} else {
			sinks = append(sinks, provenance.NewSupabaseSink(client, cfg.Supabase.Table))
			log.Println("supabase sink enabled")
		}
	}

	if cfg.Redis.Enabled && cfg.Redis.Addr != "" {
		adapter, err := infra.NewGoRedisAdapter(cfg.Redis.Addr, "", 0)
		if err != nil {
			log.Printf("redis tail cache disabled: %v", err)
		} else {
			cache := provenance.NewTailCache(adapter, "", time.Duration(cfg.Redis.TTLSec)*time.Second)
			sinks = append(sinks, cache.AsSink())
			closers = append(closers, func() { adapter.Close() })
			log.Println("redis tail cache enabled")
		}
	}

	return sinks, closers
}

// resolveDefaultPrivateKeyHex produces the signing key new agents get when a
// create request doesn't supply its own. A wrapped key on disk takes
// priority over a bare hex key in config, since an operator who configured
// wrapping clearly intends the plaintext hex to never touch config.yaml or
// the environment.
func resolveDefaultPrivateKeyHex(cfg *config.Config) (string, error) {
	if cfg.Key.WrappedPath != "" {
		data, err := os.ReadFile(cfg.Key.WrappedPath)
		if err != nil {
			return "", fmt.Errorf("failed to read wrapped key file %s: %w", cfg.Key.WrappedPath, err)
		}
		privHex, err := provenance.UnwrapPrivateKeyHex(strings.TrimSpace(string(data)), cfg.Key.Passphrase)
		if err != nil {
			return "", fmt.Errorf("failed to unwrap key file %s: %w", cfg.Key.WrappedPath, err)
		}
		return privHex, nil
	}
	if cfg.Key.PrivateKeyHex != "" {
		return cfg.Key.PrivateKeyHex, nil
	}
	return "", errors.New("neither key.wrapped_path nor key.private_key_hex is set")
}

// server holds the shared dependencies HTTP handlers need: the sinks every
// new machine is built with, the default signing key, the policy source,
// and an in-process registry of live machines keyed by session id.
type server struct {
	cfg           *config.Config
	metrics       *provenance.Metrics
	sinks         []provenance.Sink
	broadcast     *provenance.BroadcastSink
	policy        *provenance.Policy[string]
	registry      *prometheus.Registry
	defaultKeyHex string

	machinesMu sync.RWMutex
	machines   map[string]*provenance.Machine
}

func newServer(cfg *config.Config, metrics *provenance.Metrics, sinks []provenance.Sink, reg *prometheus.Registry, defaultKeyHex string) *server {
	broadcast := provenance.NewBroadcastSink()
	policy := provenance.AgentLifecyclePolicy()
	if cfg.Policy.Path != "" {
		loaded, err := provenance.LoadPolicyYAML(cfg.Policy.Path)
		if err != nil {
			log.Printf("failed to load policy file %s, falling back to built-in agent lifecycle policy: %v", cfg.Policy.Path, err)
		} else {
			policy = loaded
		}
	}

	return &server{
		cfg:           cfg,
		metrics:       metrics,
		sinks:         append(sinks, broadcast),
		broadcast:     broadcast,
		policy:        policy,
		registry:      reg,
		defaultKeyHex: defaultKeyHex,
		machines:      make(map[string]*provenance.Machine),
	}
}

func (s *server) router() http.Handler {
	r := mux.NewRouter()

	r.Use(s.corsMiddleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods("GET")

	r.HandleFunc("/v1/agents", s.handleCreateAgent).Methods("POST")
	r.HandleFunc("/v1/agents/{sessionId}/transitions", s.handleTransition).Methods("POST")
	r.HandleFunc("/v1/agents/{sessionId}/log", s.handleLog).Methods("GET")
	r.HandleFunc("/v1/agents/{sessionId}/logs", s.handleLogsText).Methods("GET")
	r.HandleFunc("/v1/verify", s.handleVerify).Methods("POST")
	r.HandleFunc("/v1/stream", s.broadcast.HandleWebSocket)

	return r
}

func (s *server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// createAgentRequest starts a new machine. It signs with the request's key
// if one is supplied, else with the server's default key, and generates a
// fresh key pair only when neither is set.
type createAgentRequest struct {
	AgentID       string   `json:"agentId"`
	States        []string `json:"states"`
	InitialState  string   `json:"initialState"`
	PrivateKeyHex string   `json:"privateKeyHex,omitempty"`
}

type createAgentResponse struct {
	SessionID  string `json:"sessionId"`
	AgentID    string `json:"agentId"`
	PublicKey  string `json:"publicKeyHex"`
	StartState string `json:"state"`
}

func (s *server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if req.AgentID == "" {
		req.AgentID = provenance.NewAgentID()
	}
	privHex := req.PrivateKeyHex
	if privHex == "" {
		privHex = s.defaultKeyHex
	}
	if privHex == "" {
		generated, _, err := provenance.GenerateKeyPair()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		privHex = generated
	}

	sessionID := provenance.NewSessionID()
	m, err := provenance.NewMachine(req.AgentID, sessionID, privHex, req.States, s.policy, req.InitialState,
		provenance.WithSinks(s.sinks...),
		provenance.WithMetrics(s.metrics),
	)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.machinesMu.Lock()
	s.machines[sessionID] = m
	s.machinesMu.Unlock()

	pubHex, err := m.PublicKey().Hex()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(createAgentResponse{
		SessionID:  sessionID,
		AgentID:    req.AgentID,
		PublicKey:  pubHex,
		StartState: m.CurrentState(),
	})
}

type transitionRequest struct {
	To     string         `json:"to"`
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

func (s *server) handleTransition(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]
	s.machinesMu.RLock()
	m, ok := s.machines[sessionID]
	s.machinesMu.RUnlock()
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	params := provenance.Object(nil)
	if req.Params != nil {
		v, err := provenance.TryFromAny(req.Params)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		params = v
	}

	proof, err := m.Transition(req.To, req.Action, params)
	if err != nil {
		var sinkErr *provenance.SinkError
		if errors.As(err, &sinkErr) {
			// The transition itself succeeded and proof is already appended
			// to the chain; only a sink failed to observe it. Report success
			// with a warning rather than discarding the proof.
			json.NewEncoder(w).Encode(transitionResponse{Proof: proof, SinkWarning: err.Error()})
			return
		}
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	json.NewEncoder(w).Encode(transitionResponse{Proof: proof})
}

type transitionResponse struct {
	Proof       provenance.Proof `json:"proof"`
	SinkWarning string           `json:"sinkWarning,omitempty"`
}

func (s *server) handleLog(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]
	s.machinesMu.RLock()
	m, ok := s.machines[sessionID]
	s.machinesMu.RUnlock()
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(m.Log())
}

// handleLogsText serves the formatted banner-plus-lines log view, delegating
// to Machine.Logs rather than re-deriving it from the raw proof list.
func (s *server) handleLogsText(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]
	s.machinesMu.RLock()
	m, ok := s.machines[sessionID]
	s.machinesMu.RUnlock()
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, m.Logs())
}

type verifyRequest struct {
	Proofs       []provenance.Proof `json:"proofs"`
	PublicKeyHex string             `json:"publicKeyHex"`
}

// handleVerify is the external verification surface: given a proof chain and
// a public key, it returns whether the chain is internally consistent
// without needing access to any machine's live state.
func (s *server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	pub, err := provenance.ParsePublicKeyHex(req.PublicKeyHex)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result := provenance.VerifyChain(req.Proofs, pub)
	json.NewEncoder(w).Encode(result)
}
