package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v2"
)

// =============================================================================
// Provenance Service Configuration with Environment Overrides
// =============================================================================

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Supabase SupabaseConfig `yaml:"supabase"`
	Redis    RedisConfig    `yaml:"redis"`
	Key      KeyConfig      `yaml:"key"`
	Policy   PolicyConfig   `yaml:"policy"`
}

type ServerConfig struct {
	Port             string   `yaml:"port"`
	Env              string   `yaml:"env"`
	ReadTimeoutSec   int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec  int      `yaml:"write_timeout_sec"`
	IdleTimeoutSec   int      `yaml:"idle_timeout_sec"`
	ShutdownTimeout  int      `yaml:"shutdown_timeout_sec"`
	CORSAllowOrigins []string `yaml:"cors_allow_origins"`
}

// PostgresConfig backs the durable proof sink.
type PostgresConfig struct {
	DSN     string `yaml:"dsn"`
	Enabled bool   `yaml:"enabled"`
}

// SupabaseConfig backs the alternate hosted-Postgres proof sink.
type SupabaseConfig struct {
	URL        string `yaml:"url"`
	ServiceKey string `yaml:"service_key"`
	Table      string `yaml:"table"`
	Enabled    bool   `yaml:"enabled"`
}

// RedisConfig backs the tail-cache sink (last proof per session).
type RedisConfig struct {
	Addr    string `yaml:"addr"`
	TTLSec  int    `yaml:"ttl_sec"`
	Enabled bool   `yaml:"enabled"`
}

// KeyConfig locates the engine's signing key.
type KeyConfig struct {
	PrivateKeyHex string `yaml:"private_key_hex"`
	WrappedPath   string `yaml:"wrapped_path"`
	Passphrase    string `yaml:"passphrase"`
}

// PolicyConfig selects which transition policy governs new machines.
type PolicyConfig struct {
	Path string `yaml:"path"` // empty = built-in agent lifecycle policy
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the singleton config instance.
func Get() *Config {
	once.Do(func() {
		cfg, err := LoadConfig(getEnv("CONFIG_PATH", "config.yaml"))
		if err != nil {
			slog.Warn("config: failed to load config file, using defaults", "error", err)
		}
		if cfg == nil {
			cfg = &Config{}
		}
		cfg.applyEnvOverrides()
		instance = cfg
	})
	return instance
}

// LoadConfig loads config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Env = getEnv("PROVENANCE_ENV", c.Server.Env)
	if origins := getEnv("CORS_ALLOW_ORIGINS", ""); origins != "" {
		c.Server.CORSAllowOrigins = splitCSV(origins)
	}
	if v := getEnvInt("SERVER_READ_TIMEOUT_SEC", 0); v > 0 {
		c.Server.ReadTimeoutSec = v
	}
	if v := getEnvInt("SERVER_WRITE_TIMEOUT_SEC", 0); v > 0 {
		c.Server.WriteTimeoutSec = v
	}
	if v := getEnvInt("SERVER_IDLE_TIMEOUT_SEC", 0); v > 0 {
		c.Server.IdleTimeoutSec = v
	}
	if v := getEnvInt("SERVER_SHUTDOWN_TIMEOUT_SEC", 0); v > 0 {
		c.Server.ShutdownTimeout = v
	}

	c.Postgres.DSN = getEnv("POSTGRES_DSN", c.Postgres.DSN)
	c.Postgres.Enabled = getEnvBool("POSTGRES_ENABLED", c.Postgres.Enabled)

	c.Supabase.URL = getEnv("SUPABASE_URL", c.Supabase.URL)
	c.Supabase.ServiceKey = getEnv("SUPABASE_SERVICE_KEY", c.Supabase.ServiceKey)
	c.Supabase.Table = getEnv("SUPABASE_PROOFS_TABLE", c.Supabase.Table)
	c.Supabase.Enabled = getEnvBool("SUPABASE_ENABLED", c.Supabase.Enabled)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Enabled = getEnvBool("REDIS_ENABLED", c.Redis.Enabled)
	if v := getEnvInt("REDIS_TTL_SEC", 0); v > 0 {
		c.Redis.TTLSec = v
	}

	c.Key.PrivateKeyHex = getEnv("PROVENANCE_PRIVATE_KEY_HEX", c.Key.PrivateKeyHex)
	c.Key.WrappedPath = getEnv("PROVENANCE_WRAPPED_KEY_PATH", c.Key.WrappedPath)
	c.Key.Passphrase = getEnv("PROVENANCE_KEY_PASSPHRASE", c.Key.Passphrase)

	c.Policy.Path = getEnv("PROVENANCE_POLICY_PATH", c.Policy.Path)

	c.applyDefaults()
}

// applyDefaults sets sensible defaults for zero-valued config fields.
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.Env == "" {
		c.Server.Env = "development"
	}
	if c.Server.ReadTimeoutSec == 0 {
		c.Server.ReadTimeoutSec = 15
	}
	if c.Server.WriteTimeoutSec == 0 {
		c.Server.WriteTimeoutSec = 15
	}
	if c.Server.IdleTimeoutSec == 0 {
		c.Server.IdleTimeoutSec = 60
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10
	}
	if c.Supabase.Table == "" {
		c.Supabase.Table = "provenance_proofs"
	}
	if c.Redis.TTLSec == 0 {
		c.Redis.TTLSec = 86400
	}
}

func (c *Config) IsProduction() bool  { return c.Server.Env == "production" }
func (c *Config) IsDevelopment() bool { return !c.IsProduction() }
func (c *Config) GetPort() string     { return c.Server.Port }

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func splitCSV(s string) []string {
	parts := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
