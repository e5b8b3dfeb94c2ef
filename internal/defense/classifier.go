// Package defense decides when a hostile message warrants a defensive
// reply and how hard to push back, and recognizes friendly banter that
// must never trigger one.
package defense

import (
	"github.com/lazypower/rapport/internal/emotion"
	"github.com/lazypower/rapport/internal/sentiment"
)

// Level is the escalation tier of a defensive reply.
type Level string

const (
	LevelNone         Level = ""
	SkillRoast        Level = "SKILL_ROAST"
	HumorousDismissal Level = "HUMOROUS_DISMISSAL"
	Aggressive        Level = "AGGRESSIVE"
	Dominant          Level = "DOMINANT"
)

// Config holds keyword tiers and activation thresholds.
type Config struct {
	Mild   []string
	Medium []string
	Severe []string
	// AttackWords mark a message as an attack without contributing severity.
	AttackWords  []string
	PlayfulWords []string

	LowTrust            float64
	NewUserInteractions int
	HostilityThreshold  int
	MinSeverity         int

	BanterTrust    float64
	BanterMinScore int
	BanterMaxScore int

	VeryLowTrust   float64
	RepeatOffender int
	AttackWindow   int
}

// DefaultConfig returns the production tiers and thresholds.
func DefaultConfig() Config {
	return Config{
		Mild:         []string{"bad", "suck", "lame", "cringe", "annoying"},
		Medium:       []string{"trash", "garbage", "stupid", "dumb", "useless", "worst"},
		Severe:       []string{"fake", "pathetic", "worthless", "disgusting", "ugly", "shit", "bitch"},
		AttackWords:  []string{"terrible", "awful", "horrible"},
		PlayfulWords: []string{"game", "music", "playlist", "fortnite", "suck at", "bad at", "terrible", "noob", "lol", "lmao", "xd"},

		LowTrust:            30,
		NewUserInteractions: 3,
		HostilityThreshold:  -8,
		MinSeverity:         2,

		BanterTrust:    80,
		BanterMinScore: -15,
		BanterMaxScore: -5,

		VeryLowTrust:   15,
		RepeatOffender: 3,
		AttackWindow:   5,
	}
}

// Decision is the classifier's verdict for one message.
type Decision struct {
	Banter   bool     `json:"is_banter"`
	Attack   bool     `json:"is_attack"`
	Severity int      `json:"severity"`
	Defend   bool     `json:"should_defend"`
	Level    Level    `json:"defense_level,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// Classifier is stateless; attack history lives on the caller's profile.
type Classifier struct {
	cfg     Config
	tiers   [3]sentiment.Phrases
	attack  sentiment.Phrases
	playful sentiment.Phrases
}

// New compiles cfg into a Classifier.
func New(cfg Config) *Classifier {
	return &Classifier{
		cfg: cfg,
		tiers: [3]sentiment.Phrases{
			sentiment.NewInflectedPhrases(cfg.Mild...),
			sentiment.NewInflectedPhrases(cfg.Medium...),
			sentiment.NewInflectedPhrases(cfg.Severe...),
		},
		attack:  sentiment.NewInflectedPhrases(cfg.AttackWords...),
		playful: sentiment.NewPhrases(cfg.PlayfulWords...),
	}
}

// Config returns the classifier's configuration.
func (c *Classifier) Config() Config { return c.cfg }

// IsBanter reports whether a mildly negative message from a high-trust user
// reads as playful teasing.
func (c *Classifier) IsBanter(trust float64, raw int, text string) bool {
	if trust <= c.cfg.BanterTrust {
		return false
	}
	if raw < c.cfg.BanterMinScore || raw > c.cfg.BanterMaxScore {
		return false
	}
	return c.playful.In(sentiment.NewText(text))
}

// Severity sums the tier weights (mild 1, medium 2, severe 3) of every tier
// with at least one match in text, and returns the matched keywords.
func (c *Classifier) Severity(text string) (int, []string) {
	t := sentiment.NewText(text)
	severity := 0
	var found []string
	for i, tier := range c.tiers {
		m := tier.Matches(t)
		if len(m) > 0 {
			severity += i + 1
			found = append(found, m...)
		}
	}
	found = append(found, c.attack.Matches(t)...)
	return severity, found
}

// Classify evaluates a message from the user owning p. trust and p's
// interaction count are taken before this message is applied. Every attack, defended or not, is
// appended to p's attack window.
func (c *Classifier) Classify(p *emotion.Profile, trust float64, raw int, text string) Decision {
	d := Decision{Banter: c.IsBanter(trust, raw, text)}
	d.Severity, d.Keywords = c.Severity(text)
	d.Attack = len(d.Keywords) > 0
	if d.Attack {
		p.RecordAttack(text, c.cfg.AttackWindow)
	}

	// Counted before this message, so a new user's first three messages are
	// covered.
	interactions := p.InteractionCount

	vulnerable := trust < c.cfg.LowTrust || interactions < c.cfg.NewUserInteractions
	d.Defend = vulnerable &&
		raw <= c.cfg.HostilityThreshold &&
		d.Attack &&
		d.Severity >= c.cfg.MinSeverity &&
		!d.Banter
	if !d.Defend {
		return d
	}

	d.Level = c.level(len(p.AttackHistory), trust, interactions, d.Severity)
	return d
}

func (c *Classifier) level(attacks int, trust float64, interactions, severity int) Level {
	switch {
	case attacks >= c.cfg.RepeatOffender:
		return Dominant
	case trust < c.cfg.VeryLowTrust || interactions == 1:
		return HumorousDismissal
	case severity >= 3:
		return Aggressive
	default:
		return SkillRoast
	}
}
