package provenance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RedisClient is a minimal interface any Redis library (go-redis, redigo)
// can satisfy. TailCache doesn't import a specific driver — the caller
// constructs the concrete client (e.g. github.com/redis/go-redis/v9) and
// injects it (internal/infra.GoRedisAdapter is the go-redis implementation).
type RedisClient interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// TailCache is a read-through cache in front of a machine's most recent
// proof, so readers that only need "what's the latest state_hash for this
// session" don't need to replay the whole log. TailCache itself does not
// implement Sink; AsSink wraps it so a Machine writes each accepted proof
// into the cache directly, and readers consult it through Get.
type TailCache struct {
	client    RedisClient
	keyPrefix string
	ttl       time.Duration
}

func NewTailCache(client RedisClient, keyPrefix string, ttl time.Duration) *TailCache {
	if keyPrefix == "" {
		keyPrefix = "provenance:tail:"
	}
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	return &TailCache{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (c *TailCache) key(sessionID string) string { return c.keyPrefix + sessionID }

// Put caches the most recent proof for sessionID.
func (c *TailCache) Put(ctx context.Context, sessionID string, proof Proof) error {
	data, err := json.Marshal(proof)
	if err != nil {
		return fmt.Errorf("failed to marshal proof for cache: %w", err)
	}
	return c.client.Set(ctx, c.key(sessionID), data, c.ttl)
}

// Get returns the cached most-recent proof for sessionID, if present.
func (c *TailCache) Get(ctx context.Context, sessionID string) (Proof, bool, error) {
	data, err := c.client.Get(ctx, c.key(sessionID))
	if err != nil {
		return Proof{}, false, nil
	}
	if data == nil {
		return Proof{}, false, nil
	}
	var p Proof
	if err := json.Unmarshal(data, &p); err != nil {
		return Proof{}, false, fmt.Errorf("failed to unmarshal cached proof: %w", err)
	}
	return p, true, nil
}

// AsSink adapts TailCache into a Sink so it can be attached directly to a
// Machine alongside the durable store and logger sinks.
func (c *TailCache) AsSink() Sink { return &tailCacheSink{cache: c} }

type tailCacheSink struct {
	cache *TailCache
}

func (s *tailCacheSink) Name() string { return "redis-tail-cache" }

func (s *tailCacheSink) OnTransition(agentID, sessionID, from, to, action string, proof Proof) error {
	return s.cache.Put(context.Background(), sessionID, proof)
}
