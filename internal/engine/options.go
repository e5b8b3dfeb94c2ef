package engine

import (
	"context"
	"time"

	"github.com/lazypower/rapport/internal/config"
	"github.com/lazypower/rapport/internal/defense"
	"github.com/lazypower/rapport/internal/emotion"
	"github.com/lazypower/rapport/internal/relationship"
	"github.com/lazypower/rapport/internal/sentiment"
	"github.com/lazypower/rapport/internal/store"
)

// Options holds the scoring tunables and pipeline budgets.
type Options struct {
	Sentiment    sentiment.Config
	Emotion      emotion.Config
	Defense      defense.Config
	Relationship relationship.Config
	Seed         uint64 // 0 seeds from the clock

	TopK         int
	QueryTimeout time.Duration // 0 means no deadline of its own
	ReplyTimeout time.Duration // 0 means no deadline of its own
	Retention    store.RetentionPolicy
}

// DefaultOptions returns the package defaults.
func DefaultOptions() Options {
	return Options{
		Sentiment:    sentiment.DefaultConfig(),
		Emotion:      emotion.DefaultConfig(),
		Defense:      defense.DefaultConfig(),
		Relationship: relationship.DefaultConfig(),
		TopK:         3,
		QueryTimeout: 5 * time.Second,
		ReplyTimeout: 60 * time.Second,
	}
}

// OptionsFromConfig applies the operator overrides in cfg to the defaults.
func OptionsFromConfig(cfg config.Config) Options {
	o := DefaultOptions()
	o.Seed = cfg.Scoring.Seed
	if cfg.Scoring.NoiseRate != nil {
		o.Relationship.NoiseRate = *cfg.Scoring.NoiseRate
	}
	if cfg.Scoring.HistoryCap > 0 {
		o.Emotion.HistoryCap = cfg.Scoring.HistoryCap
	}
	if cfg.Scoring.AttackWindow > 0 {
		o.Defense.AttackWindow = cfg.Scoring.AttackWindow
	}
	o.TopK = cfg.Memory.TopK
	o.QueryTimeout = cfg.Memory.QueryTimeout
	o.ReplyTimeout = cfg.LLM.Timeout
	o.Retention = store.RetentionPolicy{
		MaxPerUser:    cfg.Memory.MaxRecordsPerUser,
		MaxAge:        cfg.Memory.MaxAge,
		PinImportance: cfg.Memory.PinImportance,
	}
	return o
}

// withBudget bounds ctx by d, or only by ctx itself when d is zero.
func withBudget(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
