package emotion

import (
	"math"
	"time"

	"github.com/lazypower/rapport/internal/sentiment"
)

// Extreme flags a raw score that bypassed linear mood mapping.
type Extreme string

const (
	ExtremeNone      Extreme = ""
	ExtremeCold      Extreme = "cold"
	ExtremeAffection Extreme = "affection"
)

// Config holds the mood, trust and whiplash tunables.
type Config struct {
	HistoryCap     int
	RecentWindow   int
	WhiplashSpan   int
	WhiplashShifts int

	NeutralMood int
	Slope       float64

	ColdThreshold      float64
	AffectionThreshold float64
	ColdBase           int
	AffectionBase      int

	// StrongWeight applies when |raw| >= StrongMagnitude, MildWeight otherwise.
	// The weight is the share of the new base in the smoothed score.
	StrongWeight    float64
	MildWeight      float64
	StrongMagnitude float64

	PositiveCutoff        int
	RatioWeight           float64
	ConsistencyWeight     float64
	DefaultConsistency    float64
	ConsistencyMinHistory int
	DurationPerEntry      float64
	DurationCap           float64

	BanterDampening float64
	BanterFloor     int
	DefenseCeiling  int

	ToxicityThreshold int
}

// DefaultConfig returns the production tunables.
func DefaultConfig() Config {
	return Config{
		HistoryCap:     15,
		RecentWindow:   5,
		WhiplashSpan:   3,
		WhiplashShifts: 2,

		NeutralMood: 50,
		Slope:       2,

		ColdThreshold:      -12,
		AffectionThreshold: 25,
		ColdBase:           15,
		AffectionBase:      95,

		StrongWeight:    1.0,
		MildWeight:      0.95,
		StrongMagnitude: 12,

		PositiveCutoff:        60,
		RatioWeight:           60,
		ConsistencyWeight:     0.2,
		DefaultConsistency:    60,
		ConsistencyMinHistory: 4,
		DurationPerEntry:      2,
		DurationCap:           30,

		BanterDampening: 0.5,
		BanterFloor:     35,
		DefenseCeiling:  70,

		ToxicityThreshold: -8,
	}
}

// epsilon absorbs float error before truncating the smoothed mood.
const epsilon = 1e-9

// Modifiers carry the defense classifier's verdict into mood mapping.
type Modifiers struct {
	Banter    bool
	Defending bool
}

// Context is the per-message emotional evaluation.
type Context struct {
	Category     sentiment.Category `json:"category"`
	RawScore     int                `json:"raw_score"`
	MoodScore    int                `json:"mood_score"`
	TrustScore   float64            `json:"trust_score"`
	Whiplash     bool               `json:"whiplash"`
	GenAlpha     bool               `json:"gen_alpha_detected"`
	Toxicity     int                `json:"toxicity_level"`
	Extremes     Extreme            `json:"extremes"`
	Interactions int                `json:"interaction_count"`
}

// Tracker applies readings to profiles. It holds no per-user state; callers
// serialize access to a given Profile.
type Tracker struct {
	cfg      Config
	analyzer *sentiment.Analyzer
}

// NewTracker creates a Tracker.
func NewTracker(cfg Config, analyzer *sentiment.Analyzer) *Tracker {
	return &Tracker{cfg: cfg, analyzer: analyzer}
}

// Config returns the tracker's configuration.
func (t *Tracker) Config() Config { return t.cfg }

// Evaluate analyzes text and applies it to p with no banter or defense
// adjustment.
func (t *Tracker) Evaluate(p *Profile, text string, now time.Time) Context {
	return t.Apply(p, t.analyzer.Analyze(text), Modifiers{}, now)
}

// Apply folds one reading into p and returns the resulting context. Trust is
// computed from the history as it stood before this message.
func (t *Tracker) Apply(p *Profile, r sentiment.Reading, mod Modifiers, now time.Time) Context {
	trust := t.Trust(p)
	baseline := float64(p.LastMood(t.cfg.NeutralMood))

	adjusted := float64(r.Score)
	if mod.Banter {
		adjusted *= t.cfg.BanterDampening
	}

	base, extreme := t.base(adjusted)

	w := t.cfg.MildWeight
	if math.Abs(adjusted) >= t.cfg.StrongMagnitude {
		w = t.cfg.StrongWeight
	}
	mood := clampInt(int(math.Floor(w*base+(1-w)*baseline+epsilon)), 0, 100)

	if mod.Banter && mood < t.cfg.BanterFloor {
		mood = t.cfg.BanterFloor
	}
	if mod.Defending && mood > t.cfg.DefenseCeiling {
		mood = t.cfg.DefenseCeiling
	}

	p.History = appendCapped(p.History, mood, t.cfg.HistoryCap)
	p.Recent = appendCapped(p.Recent, Reading{Category: r.Category, Score: r.Score, At: now}, t.cfg.RecentWindow)
	p.InteractionCount++
	p.UpdatedAt = now

	toxicity := 0
	if r.Score <= t.cfg.ToxicityThreshold {
		toxicity = -r.Score
	}

	return Context{
		Category:     r.Category,
		RawScore:     r.Score,
		MoodScore:    mood,
		TrustScore:   trust,
		Whiplash:     t.Whiplash(p),
		GenAlpha:     r.GenAlpha,
		Toxicity:     toxicity,
		Extremes:     extreme,
		Interactions: p.InteractionCount,
	}
}

func (t *Tracker) base(adjusted float64) (float64, Extreme) {
	switch {
	case adjusted <= t.cfg.ColdThreshold:
		return float64(t.cfg.ColdBase), ExtremeCold
	case adjusted >= t.cfg.AffectionThreshold:
		return float64(t.cfg.AffectionBase), ExtremeAffection
	default:
		return float64(t.cfg.NeutralMood) + adjusted*t.cfg.Slope, ExtremeNone
	}
}

// Trust derives a 0–100 trust score from mood history: the share of positive
// moods, their consistency, and a bonus for history length. An empty history
// has zero trust.
func (t *Tracker) Trust(p *Profile) float64 {
	n := len(p.History)
	if n == 0 {
		return 0
	}

	positive := 0
	for _, s := range p.History {
		if s > t.cfg.PositiveCutoff {
			positive++
		}
	}
	ratio := float64(positive) / float64(n)

	consistency := t.cfg.DefaultConsistency
	if n >= t.cfg.ConsistencyMinHistory {
		consistency = 100 - pstdev(p.History)
	}

	duration := math.Min(float64(n)*t.cfg.DurationPerEntry, t.cfg.DurationCap)

	trust := ratio*t.cfg.RatioWeight + consistency*t.cfg.ConsistencyWeight + duration
	return math.Max(0, math.Min(100, trust))
}

// Whiplash reports whether the category flipped at least WhiplashShifts
// times within the last WhiplashSpan readings.
func (t *Tracker) Whiplash(p *Profile) bool {
	recent := p.Recent
	if len(recent) > t.cfg.WhiplashSpan {
		recent = recent[len(recent)-t.cfg.WhiplashSpan:]
	}
	shifts := 0
	for i := 1; i < len(recent); i++ {
		if recent[i].Category != recent[i-1].Category {
			shifts++
		}
	}
	return shifts >= t.cfg.WhiplashShifts
}

// State is a read-only summary of a profile.
type State struct {
	UserID           string    `json:"user_id"`
	MoodScore        int       `json:"mood_score"`
	TrustScore       float64   `json:"trust_score"`
	InteractionCount int       `json:"interaction_count"`
	Whiplash         bool      `json:"whiplash"`
	AttackCount      int       `json:"attack_count"`
	History          []int     `json:"sentiment_history"`
	Recent           []Reading `json:"recent"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Snapshot summarizes p without modifying it.
func (t *Tracker) Snapshot(p *Profile) State {
	return State{
		UserID:           p.UserID,
		MoodScore:        p.LastMood(t.cfg.NeutralMood),
		TrustScore:       t.Trust(p),
		InteractionCount: p.InteractionCount,
		Whiplash:         t.Whiplash(p),
		AttackCount:      len(p.AttackHistory),
		History:          append([]int(nil), p.History...),
		Recent:           append([]Reading(nil), p.Recent...),
		UpdatedAt:        p.UpdatedAt,
	}
}

func pstdev(xs []int) float64 {
	var sum float64
	for _, x := range xs {
		sum += float64(x)
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		d := float64(x) - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
