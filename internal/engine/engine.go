// Package engine runs the per-message pipeline: score the message, update
// the user's emotional profile and relationship record, recall memories,
// and produce a reply.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lazypower/rapport/internal/defense"
	"github.com/lazypower/rapport/internal/emotion"
	"github.com/lazypower/rapport/internal/keyed"
	"github.com/lazypower/rapport/internal/llm"
	"github.com/lazypower/rapport/internal/memory"
	"github.com/lazypower/rapport/internal/metrics"
	"github.com/lazypower/rapport/internal/relationship"
	"github.com/lazypower/rapport/internal/sentiment"
	"github.com/lazypower/rapport/internal/store"
	"github.com/lazypower/rapport/internal/throttle"
	"github.com/lazypower/rapport/internal/tone"
)

// FactSource renders what is known about a user as prompt context.
type FactSource interface {
	UserContext(ctx context.Context, userID string) (string, error)
}

// Deps are the engine's collaborators. Only States is required.
type Deps struct {
	States  store.StateStore
	Facts   FactSource
	Memory  *memory.Index
	LLM     llm.Client
	Limiter throttle.Limiter
}

// EmotionalContext is the full per-message evaluation.
type EmotionalContext struct {
	emotion.Context
	Banter       bool          `json:"is_banter"`
	ShouldDefend bool          `json:"should_defend"`
	DefenseLevel defense.Level `json:"defense_level"`
	Severity     int           `json:"severity"`
}

// Outcome is the result of processing one message.
type Outcome struct {
	Emotion      EmotionalContext     `json:"emotion"`
	Relationship relationship.Summary `json:"relationship"`
	Memories     []memory.Result      `json:"memories"`
	Reply        string               `json:"reply"`
	Mode         tone.Mode            `json:"mode"`
	Throttled    bool                 `json:"throttled,omitempty"`
}

// Engine orchestrates scoring, memory and reply generation.
type Engine struct {
	deps       Deps
	opts       Options
	analyzer   *sentiment.Analyzer
	tracker    *emotion.Tracker
	classifier *defense.Classifier
	ledger     *relationship.Ledger
	styler     *tone.Styler
	locks      *keyed.Mutex
	log        *zap.Logger
	now        func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates an Engine.
func New(deps Deps, opts Options, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if deps.Limiter == nil {
		deps.Limiter = throttle.Unlimited{}
	}
	if deps.Memory == nil {
		deps.Memory = memory.New(nil, nil, memory.Options{}, log)
	}
	analyzer := sentiment.New(opts.Sentiment)
	return &Engine{
		deps:       deps,
		opts:       opts,
		analyzer:   analyzer,
		tracker:    emotion.NewTracker(opts.Emotion, analyzer),
		classifier: defense.New(opts.Defense),
		ledger:     relationship.New(opts.Relationship, opts.Seed),
		styler:     tone.NewStyler(opts.Seed),
		locks:      keyed.New(),
		log:        log.With(zap.String("component", "engine")),
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
}

// Analyzer exposes the sentiment analyzer for read-only use.
func (e *Engine) Analyzer() *sentiment.Analyzer { return e.analyzer }

// Memory returns the memory index.
func (e *Engine) Memory() *memory.Index { return e.deps.Memory }

// Process runs the full pipeline for one inbound message. Messages from the
// same user are scored strictly in arrival order.
func (e *Engine) Process(ctx context.Context, userID, text string) (*Outcome, error) {
	userID, err := NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	text = normalizeMessage(text)

	allowed, err := e.deps.Limiter.Allow(ctx, userID)
	if err != nil {
		e.log.Warn("throttle check failed, allowing", zap.String("user_id", userID), zap.Error(err))
		allowed = true
	}
	if !allowed {
		return e.throttled(ctx, userID)
	}

	emo, rec, err := e.evaluate(ctx, userID, text)
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		Emotion:      emo,
		Relationship: relationship.Summarize(rec),
		Mode:         tone.ModeFor(emo.MoodScore),
	}

	qctx, cancel := withBudget(ctx, e.opts.QueryTimeout)
	out.Memories = e.deps.Memory.Query(qctx, userID, text, e.opts.TopK)
	cancel()

	out.Reply = e.reply(ctx, userID, text, emo, out)
	e.deps.Memory.Remember(userID, text, out.Reply, memory.Importance(text))
	return out, nil
}

// Evaluate scores text for userID and commits the state change without
// recalling memories or generating a reply.
func (e *Engine) Evaluate(ctx context.Context, userID, text string) (EmotionalContext, relationship.Summary, error) {
	userID, err := NormalizeUserID(userID)
	if err != nil {
		return EmotionalContext{}, relationship.Summary{}, err
	}
	emo, rec, err := e.evaluate(ctx, userID, normalizeMessage(text))
	if err != nil {
		return EmotionalContext{}, relationship.Summary{}, err
	}
	return emo, relationship.Summarize(rec), nil
}

// evaluate is the serialized read-modify-write of a user's two documents.
func (e *Engine) evaluate(ctx context.Context, userID, text string) (EmotionalContext, *relationship.Record, error) {
	unlock := e.locks.Lock(userID)
	defer unlock()

	now := e.now()
	profile, err := e.loadProfile(ctx, userID)
	if err != nil {
		return EmotionalContext{}, nil, err
	}
	rec, err := e.loadRecord(ctx, userID, now)
	if err != nil {
		return EmotionalContext{}, nil, err
	}

	reading := e.analyzer.Analyze(text)
	trust := e.tracker.Trust(profile)
	decision := e.classifier.Classify(profile, trust, reading.Score, text)
	ectx := e.tracker.Apply(profile, reading, emotion.Modifiers{
		Banter:    decision.Banter,
		Defending: decision.Defend,
	}, now)
	e.ledger.Apply(rec, relationship.KindFor(reading.Category), e.ledger.BasePoints(), text, now)

	if err := e.saveAll(ctx, userID, map[string]any{
		store.KindEmotion:      profile,
		store.KindRelationship: rec,
	}); err != nil {
		return EmotionalContext{}, nil, err
	}

	emo := EmotionalContext{
		Context:      ectx,
		Banter:       decision.Banter,
		ShouldDefend: decision.Defend,
		DefenseLevel: decision.Level,
		Severity:     decision.Severity,
	}

	metrics.EvaluationsTotal.WithLabelValues(string(reading.Category)).Inc()
	metrics.MoodScore.Observe(float64(emo.MoodScore))
	if decision.Defend {
		metrics.RoastDefenseTotal.WithLabelValues(string(decision.Level)).Inc()
		e.log.Debug("roast defense",
			zap.String("user_id", userID),
			zap.String("level", string(decision.Level)),
			zap.Int("severity", decision.Severity))
	}
	return emo, rec, nil
}

func (e *Engine) reply(ctx context.Context, userID, text string, emo EmotionalContext, out *Outcome) string {
	if emo.ShouldDefend {
		return e.styler.Comeback(emo.DefenseLevel)
	}

	base := e.generate(ctx, userID, text, emo, out)
	return e.styler.Decorate(base, tone.Signals{
		Mood:     emo.MoodScore,
		GenAlpha: emo.GenAlpha,
		Toxicity: emo.Toxicity,
	})
}

// generate asks the LLM for a reply and falls back to a canned one.
func (e *Engine) generate(ctx context.Context, userID, text string, emo EmotionalContext, out *Outcome) string {
	if e.deps.LLM == nil {
		return llm.Fallback(emo.MoodScore, e.styler.Rand())
	}

	facts := ""
	if e.deps.Facts != nil {
		var err error
		if facts, err = e.deps.Facts.UserContext(ctx, userID); err != nil {
			e.log.Debug("load facts failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	prompt := llm.BuildPrompt(llm.PromptInput{
		Message:  text,
		Mood:     emo.MoodScore,
		Extremes: string(emo.Extremes),
		Banter:   emo.Banter,
		Toxicity: emo.Toxicity,
		TierName: out.Relationship.TierName,
		Memories: memory.FormatContext(out.Memories),
		Facts:    facts,
	})

	gctx, cancel := withBudget(ctx, e.opts.ReplyTimeout)
	defer cancel()
	resp, err := e.deps.LLM.Complete(gctx, prompt)
	if err != nil || resp == nil || resp.Content == "" {
		e.log.Warn("generation failed, using fallback", zap.String("user_id", userID), zap.Error(err))
		return llm.Fallback(emo.MoodScore, e.styler.Rand())
	}
	return resp.Content
}

// throttled answers with the tier's busy response and leaves state alone.
func (e *Engine) throttled(ctx context.Context, userID string) (*Outcome, error) {
	metrics.ThrottledTotal.Inc()
	summary, err := e.Relationship(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Relationship: summary,
		Reply:        relationship.BusyResponse(summary.Points),
		Throttled:    true,
	}, nil
}

// ApplyGift records a gift in either direction.
func (e *Engine) ApplyGift(ctx context.Context, userID string, kind relationship.Kind) (relationship.Summary, error) {
	if kind != relationship.KindGiftReceived && kind != relationship.KindGiftGiven {
		return relationship.Summary{}, fmt.Errorf("not a gift: %q", kind)
	}
	userID, err := NormalizeUserID(userID)
	if err != nil {
		return relationship.Summary{}, err
	}

	unlock := e.locks.Lock(userID)
	defer unlock()

	now := e.now()
	rec, err := e.loadRecord(ctx, userID, now)
	if err != nil {
		return relationship.Summary{}, err
	}
	e.ledger.Apply(rec, kind, e.ledger.BasePoints(), "", now)
	if err := e.save(ctx, store.KindRelationship, userID, rec); err != nil {
		return relationship.Summary{}, err
	}
	return relationship.Summarize(rec), nil
}

// Relationship returns the user's relationship snapshot without changing it.
func (e *Engine) Relationship(ctx context.Context, userID string) (relationship.Summary, error) {
	userID, err := NormalizeUserID(userID)
	if err != nil {
		return relationship.Summary{}, err
	}
	unlock := e.locks.Lock(userID)
	defer unlock()

	rec, err := e.loadRecord(ctx, userID, e.now())
	if err != nil {
		return relationship.Summary{}, err
	}
	return relationship.Summarize(rec), nil
}

// EmotionalState returns the user's emotional state without changing it.
func (e *Engine) EmotionalState(ctx context.Context, userID string) (emotion.State, error) {
	userID, err := NormalizeUserID(userID)
	if err != nil {
		return emotion.State{}, err
	}
	unlock := e.locks.Lock(userID)
	defer unlock()

	p, err := e.loadProfile(ctx, userID)
	if err != nil {
		return emotion.State{}, err
	}
	return e.tracker.Snapshot(p), nil
}

// loadProfile returns the stored profile, a fresh one if none exists, or a
// fresh one if the stored document is corrupt.
func (e *Engine) loadProfile(ctx context.Context, userID string) (*emotion.Profile, error) {
	data, err := e.deps.States.LoadState(ctx, store.KindEmotion, userID)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return emotion.NewProfile(userID), nil
	}
	var p emotion.Profile
	if err := store.Decode(data, &p); err != nil {
		e.reset(store.KindEmotion, userID, err)
		return emotion.NewProfile(userID), nil
	}
	p.UserID = userID
	return &p, nil
}

func (e *Engine) loadRecord(ctx context.Context, userID string, now time.Time) (*relationship.Record, error) {
	data, err := e.deps.States.LoadState(ctx, store.KindRelationship, userID)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return e.ledger.NewRecord(userID, now), nil
	}
	var r relationship.Record
	if err := store.Decode(data, &r); err != nil {
		e.reset(store.KindRelationship, userID, err)
		return e.ledger.NewRecord(userID, now), nil
	}
	r.UserID = userID
	return &r, nil
}

func (e *Engine) reset(kind, userID string, err error) {
	metrics.StateResetsTotal.WithLabelValues(kind).Inc()
	e.log.Warn("corrupt state reset to defaults",
		zap.String("kind", kind),
		zap.String("user_id", userID),
		zap.Error(err))
}

func (e *Engine) save(ctx context.Context, kind, userID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s state: %w", kind, err)
	}
	return e.deps.States.SaveState(context.WithoutCancel(ctx), kind, userID, data)
}

// saveAll commits several documents together; either all land or none do.
func (e *Engine) saveAll(ctx context.Context, userID string, docs map[string]any) error {
	batch := make(map[string][]byte, len(docs))
	for kind, v := range docs {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s state: %w", kind, err)
		}
		batch[kind] = data
	}
	return e.deps.States.SaveStates(context.WithoutCancel(ctx), userID, batch)
}

// Reset forgets a user's emotional profile and relationship record. Stored
// memories and facts are left alone.
func (e *Engine) Reset(ctx context.Context, userID string) error {
	userID, err := NormalizeUserID(userID)
	if err != nil {
		return err
	}
	unlock := e.locks.Lock(userID)
	defer unlock()

	if err := e.deps.States.DeleteStates(context.WithoutCancel(ctx), userID, store.KindEmotion, store.KindRelationship); err != nil {
		return err
	}
	e.log.Info("user state reset", zap.String("user_id", userID))
	return nil
}

// Users returns the relationship snapshot of every known user. Records that
// fail to decode are skipped.
func (e *Engine) Users(ctx context.Context) ([]relationship.Summary, error) {
	docs, err := e.deps.States.ListStates(ctx, store.KindRelationship)
	if err != nil {
		return nil, err
	}
	out := make([]relationship.Summary, 0, len(docs))
	for _, d := range docs {
		var r relationship.Record
		if err := store.Decode(d.Data, &r); err != nil {
			e.log.Warn("skipping corrupt relationship record", zap.String("user_id", d.UserID), zap.Error(err))
			continue
		}
		r.UserID = d.UserID
		out = append(out, relationship.Summarize(&r))
	}
	return out, nil
}

// Prune applies the retention policy to stored memories.
func (e *Engine) Prune(ctx context.Context) (int64, error) {
	n, err := e.deps.Memory.Prune(ctx, e.opts.Retention, e.now())
	if err != nil {
		return 0, err
	}
	e.log.Info("memory retention", zap.Int64("removed", n))
	return n, nil
}

// StartRetentionTimer prunes memories on startup and then daily.
func (e *Engine) StartRetentionTimer() {
	if e.opts.Retention == (store.RetentionPolicy{}) {
		return
	}
	if _, err := e.Prune(context.Background()); err != nil {
		e.log.Warn("retention prune failed", zap.Error(err))
	}

	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := e.Prune(context.Background()); err != nil {
					e.log.Warn("retention prune failed", zap.Error(err))
				}
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down background work and waits for pending memory writes.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.deps.Memory.Wait()
}

// IsInvalidInput reports whether err came from rejecting caller input.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidUser)
}
