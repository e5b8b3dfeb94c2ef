package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lazypower/rapport/internal/config"
	"github.com/lazypower/rapport/internal/embedding"
	"github.com/lazypower/rapport/internal/engine"
	"github.com/lazypower/rapport/internal/llm"
	"github.com/lazypower/rapport/internal/memory"
	"github.com/lazypower/rapport/internal/store"
	"github.com/lazypower/rapport/internal/throttle"
)

// app holds everything a command needs, built from config.
type app struct {
	cfg    config.Config
	log    *zap.Logger
	db     *store.DB
	redis  *redis.Client
	memory *memory.Index
	engine *engine.Engine
	cancel context.CancelFunc
}

// loadConfig resolves the config file path and loads it.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".rapport", "rapport.env")
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	return cfg, nil
}

// newLogger builds the root logger: json uses the production encoder,
// anything else the development console encoder.
func newLogger(cfg config.LogConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "timestamp"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}

	logger, err := zc.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func openDB(cfg config.Config) (*store.DB, error) {
	path := cfg.Database.Path
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// newApp wires config, storage, memory, generation and throttling into an
// engine. Callers must call close.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: newLogger(cfg.Log)}
	ctx, a.cancel = context.WithCancel(ctx)

	if err := a.wire(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	a.db = db

	var states store.StateStore = db
	if cfg.State.Backend == "redis" {
		rdb, err := a.redisClient(ctx)
		if err != nil {
			return err
		}
		states = store.NewRedisState(rdb, 0)
	} else if cfg.State.Backend != "sqlite" && cfg.State.Backend != "" {
		return fmt.Errorf("unknown state backend %q", cfg.State.Backend)
	}

	emb, err := embedding.Select(embedding.Options{
		Provider:      cfg.Embedding.Provider,
		Model:         cfg.Embedding.Model,
		Dimensions:    cfg.Embedding.Dimensions,
		OllamaURL:     cfg.LLM.OllamaURL,
		OpenAIKey:     cfg.LLM.OpenAIKey,
		OpenAIBaseURL: cfg.LLM.OpenAIBaseURL,
	})
	if err != nil {
		return fmt.Errorf("select embedder: %w", err)
	}
	a.memory = memory.New(db, emb, memory.Options{Workers: cfg.Memory.Workers}, a.log)
	if err := a.memory.Load(ctx); err != nil {
		return err
	}

	gen, err := llm.NewClient(cfg.LLM)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		gen = nil
		a.log.Info("llm not configured, using canned replies")
	case err != nil:
		return fmt.Errorf("llm client: %w", err)
	}

	limiter, err := a.limiter(ctx)
	if err != nil {
		return err
	}

	deps := engine.Deps{
		States:  states,
		Facts:   db,
		Memory:  a.memory,
		LLM:     gen,
		Limiter: limiter,
	}
	a.engine = engine.New(deps, engine.OptionsFromConfig(cfg), a.log)

	a.log.Debug("engine wired",
		zap.String("state", cfg.State.Backend),
		zap.String("embedder", emb.Model()),
		zap.String("llm", cfg.LLM.Provider),
		zap.String("throttle", cfg.Throttle.Backend))
	return nil
}

func (a *app) redisClient(ctx context.Context) (*redis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	st := a.cfg.State
	rdb, err := store.NewRedisClient(ctx, st.RedisAddr, st.RedisPassword, st.RedisDB)
	if err != nil {
		return nil, err
	}
	a.redis = rdb
	return rdb, nil
}

func (a *app) limiter(ctx context.Context) (throttle.Limiter, error) {
	t := a.cfg.Throttle
	switch t.Backend {
	case "", "off":
		return throttle.Unlimited{}, nil
	case "local":
		return throttle.NewLocal(ctx, t.Limit, t.Window), nil
	case "redis":
		rdb, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return throttle.NewRedis(rdb, t.Limit, t.Window), nil
	default:
		return nil, fmt.Errorf("unknown throttle backend %q", t.Backend)
	}
}

func (a *app) close() {
	if a.engine != nil {
		a.engine.Stop()
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	a.log.Sync()
}
