// Package relationship keeps the per-user points ledger: tier lookup,
// interaction accounting with seeded noise, and a compatibility score.
package relationship

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/lazypower/rapport/internal/sentiment"
)

// Kind classifies an interaction for point accounting.
type Kind string

const (
	KindPositive     Kind = "positive"
	KindNegative     Kind = "negative"
	KindNeutral      Kind = "neutral"
	KindGiftReceived Kind = "gift_received"
	KindGiftGiven    Kind = "gift_given"
)

// KindFor derives an interaction kind from a sentiment category.
func KindFor(c sentiment.Category) Kind {
	switch c {
	case sentiment.Positive:
		return KindPositive
	case sentiment.Negative:
		return KindNegative
	default:
		return KindNeutral
	}
}

// Snapshot is one point in a user's compatibility history.
type Snapshot struct {
	Compatibility int       `json:"compatibility"`
	At            time.Time `json:"at"`
}

// Record is the persisted relationship state of one user.
type Record struct {
	UserID               string     `json:"user_id"`
	Points               int        `json:"points"`
	Likes                int        `json:"likes"`
	Dislikes             int        `json:"dislikes"`
	NeutralCount         int        `json:"neutral_count"`
	GiftsReceived        int        `json:"gifts_received"`
	GiftsGiven           int        `json:"gifts_given"`
	ConversationDepth    int        `json:"conversation_depth"`
	InteractionCount     int        `json:"interaction_count"`
	Trust                int        `json:"trust_level"`
	CompatibilityHistory []Snapshot `json:"compatibility_history"`
	LastSync             time.Time  `json:"last_sync"`
}

// Config holds ledger tunables.
type Config struct {
	StartingPoints int
	StartingTrust  int
	PointsFloor    int

	MinBasePoints int
	MaxBasePoints int

	DepthMinLength int
	DepthBonus     int

	// NoiseRate is the Bernoulli probability of a NoisePenalty deduction on
	// any non-negative interaction.
	NoiseRate    float64
	NoisePenalty int

	TrustGain int
	TrustLoss int

	HistoryCap int
}

// DefaultConfig returns the production tunables.
func DefaultConfig() Config {
	return Config{
		StartingPoints: 100,
		StartingTrust:  50,
		PointsFloor:    0,
		MinBasePoints:  8,
		MaxBasePoints:  15,
		DepthMinLength: 50,
		DepthBonus:     3,
		NoiseRate:      0.05,
		NoisePenalty:   2,
		TrustGain:      2,
		TrustLoss:      5,
		HistoryCap:     10,
	}
}

// Ledger applies interactions to records. The only shared state is the
// seeded RNG; records themselves must be serialized per user by the caller.
type Ledger struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Ledger. A zero seed draws one from the clock.
func New(cfg Config, seed uint64) *Ledger {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Ledger{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Config returns the ledger's configuration.
func (l *Ledger) Config() Config { return l.cfg }

// NewRecord returns the initial record for a user.
func (l *Ledger) NewRecord(userID string, now time.Time) *Record {
	return &Record{
		UserID:   userID,
		Points:   l.cfg.StartingPoints,
		Trust:    l.cfg.StartingTrust,
		LastSync: now,
	}
}

// BasePoints draws a base award uniformly from [MinBasePoints, MaxBasePoints].
func (l *Ledger) BasePoints() int {
	span := l.cfg.MaxBasePoints - l.cfg.MinBasePoints
	if span <= 0 {
		return l.cfg.MinBasePoints
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg.MinBasePoints + l.rng.IntN(span+1)
}

func (l *Ledger) noise() bool {
	if l.cfg.NoiseRate <= 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Float64() < l.cfg.NoiseRate
}

// Apply mutates r for one interaction and returns it.
func (l *Ledger) Apply(r *Record, kind Kind, basePoints int, text string, now time.Time) *Record {
	r.InteractionCount++
	r.LastSync = now

	switch kind {
	case KindPositive:
		r.Likes++
		r.Points += basePoints
		if utf8.RuneCountInString(text) > l.cfg.DepthMinLength {
			r.ConversationDepth++
			r.Points += l.cfg.DepthBonus
		}
		r.Trust = min(100, r.Trust+l.cfg.TrustGain)
	case KindNegative:
		r.Dislikes++
		r.Points -= basePoints / 2
		r.Trust = max(0, r.Trust-l.cfg.TrustLoss)
	case KindGiftReceived:
		r.GiftsReceived++
		r.Points += basePoints * 2
	case KindGiftGiven:
		r.GiftsGiven++
		r.Points += basePoints / 2
	default:
		r.NeutralCount++
		r.Points += basePoints / 2
	}

	if kind != KindNegative && l.noise() {
		r.Points -= l.cfg.NoisePenalty
	}
	if r.Points < l.cfg.PointsFloor {
		r.Points = l.cfg.PointsFloor
	}

	r.CompatibilityHistory = append(r.CompatibilityHistory, Snapshot{
		Compatibility: Compatibility(r),
		At:            now,
	})
	if n := len(r.CompatibilityHistory); l.cfg.HistoryCap > 0 && n > l.cfg.HistoryCap {
		r.CompatibilityHistory = append([]Snapshot(nil), r.CompatibilityHistory[n-l.cfg.HistoryCap:]...)
	}
	return r
}

// Compatibility blends like ratio, interaction frequency, gifts, depth and
// the stability of recent snapshots into a 0–100 score. A record with no
// interactions scores exactly 50.
func Compatibility(r *Record) int {
	if r.InteractionCount == 0 {
		return 50
	}

	baseRatio := 50.0
	if total := r.Likes + r.Dislikes; total > 0 {
		baseRatio = 100 * float64(r.Likes) / float64(total)
	}
	interaction := math.Min(float64(r.InteractionCount)/20*30, 30)
	gift := math.Min(float64(r.GiftsReceived)*10, 15)
	depth := math.Min(float64(r.ConversationDepth)*5, 15)

	consistency := 0.0
	if h := r.CompatibilityHistory; len(h) >= 3 {
		lo, hi := h[len(h)-3].Compatibility, h[len(h)-3].Compatibility
		for _, s := range h[len(h)-2:] {
			lo = min(lo, s.Compatibility)
			hi = max(hi, s.Compatibility)
		}
		if hi-lo <= 10 {
			consistency = 10
		}
	}

	score := 0.4*baseRatio + interaction + gift + depth + consistency
	return clamp(int(math.Floor(score+1e-9)), 0, 100)
}

// Summary is the relationship view handed to prompt building and the API.
type Summary struct {
	UserID          string `json:"user_id"`
	Points          int    `json:"points"`
	TierName        string `json:"tier_name"`
	TierEmoji       string `json:"tier_emoji"`
	TierMessage     string `json:"tier_message"`
	NextTierName    string `json:"next_tier_name,omitempty"`
	ProgressPercent int    `json:"progress_percent"`
	Compatibility   int    `json:"compatibility"`
	Trust           int    `json:"trust_level"`
	Interactions    int    `json:"interaction_count"`
}

// Summarize builds the Summary for r.
func Summarize(r *Record) Summary {
	info := TierFor(r.Points)
	s := Summary{
		UserID:          r.UserID,
		Points:          r.Points,
		TierName:        info.Current.Name,
		TierEmoji:       info.Current.Emoji,
		TierMessage:     info.Current.Message,
		ProgressPercent: info.Progress,
		Compatibility:   Compatibility(r),
		Trust:           r.Trust,
		Interactions:    r.InteractionCount,
	}
	if info.Next != nil {
		s.NextTierName = info.Next.Name
	}
	return s
}
