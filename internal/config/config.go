package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment overrides, e.g. RAPPORT_SERVER_PORT.
const EnvPrefix = "RAPPORT_"

// Config holds all rapport configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	State     StateConfig
	LLM       LLMConfig
	Embedding EmbeddingConfig
	Memory    MemoryConfig
	Scoring   ScoringConfig
	Throttle  ThrottleConfig
	Log       LogConfig
}

type ServerConfig struct {
	Bind        string
	Port        int
	CORSOrigins []string
}

type DatabaseConfig struct {
	Path string // empty resolves to store.DefaultDBPath()
}

// StateConfig selects where per-user emotional and relationship documents live.
type StateConfig struct {
	Backend       string // "sqlite" or "redis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type LLMConfig struct {
	Provider      string // "none", "ollama", "openai"
	Model         string
	OllamaURL     string
	OpenAIKey     string
	OpenAIBaseURL string
	Timeout       time.Duration // 0 waits as long as the caller does
}

type EmbeddingConfig struct {
	Provider   string // "auto", "ollama", "openai", "hashing"
	Model      string
	Dimensions int
}

type MemoryConfig struct {
	TopK              int
	Workers           int
	MaxRecordsPerUser int           // 0 disables count-based eviction
	MaxAge            time.Duration // 0 disables age-based eviction
	PinImportance     float64       // records at or above this importance survive MaxAge
	QueryTimeout      time.Duration // 0 waits as long as the caller does
}

// ScoringConfig overrides the operator-facing scoring tunables. A nil
// NoiseRate and zero caps keep the package defaults; a NoiseRate of 0
// disables the noise.
type ScoringConfig struct {
	Seed         uint64
	NoiseRate    *float64
	HistoryCap   int
	AttackWindow int
}

// ThrottleConfig bounds how many messages one user may send. Throttled
// messages get the relationship tier's busy response instead of a reply.
type ThrottleConfig struct {
	Backend string // "off", "local" or "redis" (uses State.RedisAddr)
	Limit   int    // messages per Window
	Window  time.Duration
}

type LogConfig struct {
	Level  string
	Format string // "json" or "console"
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind:        "127.0.0.1",
			Port:        37778,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		State: StateConfig{
			Backend:   "sqlite",
			RedisAddr: "localhost:6379",
		},
		LLM: LLMConfig{
			Provider:  "none",
			OllamaURL: "http://localhost:11434",
			Timeout:   60 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider:   "auto",
			Model:      "nomic-embed-text",
			Dimensions: 768,
		},
		Memory: MemoryConfig{
			TopK:              3,
			Workers:           4,
			MaxRecordsPerUser: 5000,
			MaxAge:            180 * 24 * time.Hour,
			PinImportance:     2.0,
			QueryTimeout:      5 * time.Second,
		},
		Throttle: ThrottleConfig{
			Backend: "local",
			Limit:   20,
			Window:  time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// Load builds a Config from defaults, an optional dotenv file at path, and
// RAPPORT_* environment variables, in increasing order of precedence.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		fileKeys := koanf.New(".")
		err := fileKeys.Load(file.Provider(path), dotenv.Parser())
		switch {
		case err == nil:
			for _, key := range fileKeys.Keys() {
				name := envKey(key)
				if name == "" {
					continue
				}
				if err := k.Set(name, fileKeys.Get(key)); err != nil {
					return Config{}, fmt.Errorf("set %s: %w", name, err)
				}
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load env vars: %w", err)
	}

	cfg := Default()
	if err := apply(k, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKey maps RAPPORT_MEMORY_TOP_K to memory.top.k. Keys without the prefix
// are dropped.
func envKey(s string) string {
	if !strings.HasPrefix(s, EnvPrefix) {
		return ""
	}
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ToLower(strings.ReplaceAll(s, "_", "."))
}

func apply(k *koanf.Koanf, cfg *Config) error {
	str := func(key string, dst *string) {
		if k.Exists(key) {
			*dst = k.String(key)
		}
	}
	num := func(key string, dst *int) {
		if k.Exists(key) {
			*dst = k.Int(key)
		}
	}

	str("server.bind", &cfg.Server.Bind)
	num("server.port", &cfg.Server.Port)
	if k.Exists("server.cors.origins") {
		cfg.Server.CORSOrigins = nil
		for _, o := range strings.Split(k.String("server.cors.origins"), ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.Server.CORSOrigins = append(cfg.Server.CORSOrigins, o)
			}
		}
	}
	str("database.path", &cfg.Database.Path)

	str("state.backend", &cfg.State.Backend)
	str("state.redis.addr", &cfg.State.RedisAddr)
	str("state.redis.password", &cfg.State.RedisPassword)
	num("state.redis.db", &cfg.State.RedisDB)

	str("llm.provider", &cfg.LLM.Provider)
	str("llm.model", &cfg.LLM.Model)
	str("llm.ollama.url", &cfg.LLM.OllamaURL)
	str("llm.openai.key", &cfg.LLM.OpenAIKey)
	str("llm.openai.base.url", &cfg.LLM.OpenAIBaseURL)

	str("embedding.provider", &cfg.Embedding.Provider)
	str("embedding.model", &cfg.Embedding.Model)
	num("embedding.dimensions", &cfg.Embedding.Dimensions)

	num("memory.top.k", &cfg.Memory.TopK)
	num("memory.workers", &cfg.Memory.Workers)
	num("memory.max.records", &cfg.Memory.MaxRecordsPerUser)
	if k.Exists("memory.pin.importance") {
		cfg.Memory.PinImportance = k.Float64("memory.pin.importance")
	}

	if k.Exists("scoring.seed") {
		cfg.Scoring.Seed = uint64(k.Int64("scoring.seed"))
	}
	if k.Exists("scoring.noise.rate") {
		rate := k.Float64("scoring.noise.rate")
		if rate < 0 || rate > 1 {
			return fmt.Errorf("scoring.noise.rate must be within [0, 1], got %v", rate)
		}
		cfg.Scoring.NoiseRate = &rate
	}
	num("scoring.history.cap", &cfg.Scoring.HistoryCap)
	num("scoring.attack.window", &cfg.Scoring.AttackWindow)

	str("throttle.backend", &cfg.Throttle.Backend)
	num("throttle.limit", &cfg.Throttle.Limit)

	str("log.level", &cfg.Log.Level)
	str("log.format", &cfg.Log.Format)

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"llm.timeout", &cfg.LLM.Timeout},
		{"memory.max.age", &cfg.Memory.MaxAge},
		{"memory.query.timeout", &cfg.Memory.QueryTimeout},
		{"throttle.window", &cfg.Throttle.Window},
	}
	for _, d := range durations {
		if !k.Exists(d.key) {
			continue
		}
		v, err := time.ParseDuration(k.String(d.key))
		if err != nil {
			return fmt.Errorf("parsing %s: %w", d.key, err)
		}
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %s", d.key, v)
		}
		*d.dst = v
	}

	if cfg.Memory.TopK <= 0 {
		return fmt.Errorf("memory.top.k must be positive, got %d", cfg.Memory.TopK)
	}
	if cfg.Memory.Workers <= 0 {
		cfg.Memory.Workers = 1
	}
	return nil
}
