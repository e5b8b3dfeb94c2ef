// Package sentiment scores free-form chat text on a bounded scale using
// weighted slang, emoji, and lexicon hits with negation and sarcasm handling.
package sentiment

import (
	"math"
	"unicode/utf8"
)

// Category is the coarse label derived from a score.
type Category string

const (
	Positive Category = "positive"
	Negative Category = "negative"
	Neutral  Category = "neutral"
)

// Reading is the result of analyzing one message.
type Reading struct {
	Category Category `json:"category"`
	Score    int      `json:"raw_score"`
	GenAlpha bool     `json:"gen_alpha_detected"`
	Sarcasm  bool     `json:"sarcasm"`
}

// Lexicon holds the keyword and emoji vocabularies.
type Lexicon struct {
	PositiveSlang []string
	NegativeSlang []string
	PositiveWords []string
	NegativeWords []string
	Negations     []string
	Sarcasm       []string
	PositiveEmoji string
	NegativeEmoji string
}

// Config holds the analyzer weights and thresholds.
type Config struct {
	Lexicon Lexicon

	SlangWeight float64
	EmojiWeight float64
	WordWeight  float64

	// NegationFactor multiplies a lexicon hit preceded by a negation token.
	NegationFactor float64
	// SarcasmFactor multiplies the accumulated score when a sarcasm marker is present.
	SarcasmFactor float64
	// IntensityDivisor scales emoji hits by 1 + len(text)/IntensityDivisor.
	IntensityDivisor float64

	Clamp             int
	PositiveThreshold int
	NegativeThreshold int
}

// DefaultConfig returns the production lexicon and weights.
func DefaultConfig() Config {
	return Config{
		Lexicon: Lexicon{
			PositiveSlang: []string{
				"w", "based", "fire", "goated", "slay", "king", "queen", "valid",
				"no cap", "fr", "real", "absolute win", "banger", "hits different",
				"peak", "vibe", "cooking", "clean", "chill", "sigma", "alpha",
			},
			NegativeSlang: []string{
				"mid", "trash", "garbage", "terrible", "awful", "bad", "horrible",
				"boring", "dumb", "stupid", "useless", "worthless", "lame", "cringe",
				"skill issue", "l bot", "ratio", "touch grass", "copium", "delulu",
				"malding", "cry about it", "down bad",
			},
			PositiveWords: []string{
				"love", "like", "good", "great", "awesome", "amazing", "wonderful",
				"fantastic", "excellent", "perfect", "happy", "joy", "pleased", "best",
				"favorite", "beautiful", "brilliant", "outstanding", "fun", "cool",
				"sweet", "cute",
			},
			NegativeWords: []string{
				"hate", "dislike", "bad", "terrible", "awful", "horrible", "worst",
				"angry", "sad", "upset", "disappointed", "frustrated", "annoying",
				"stupid", "dumb", "useless", "boring", "disgusting", "gross",
			},
			Negations: []string{
				"not", "don't", "didn't", "never", "no", "hardly", "rarely", "can't",
			},
			Sarcasm: []string{
				"yeah right", "sure jan", "as if", "totally", "uh huh", "whatever",
				"ok buddy", "lmao sure",
			},
			PositiveEmoji: "❤😂😍🥰👍✨😎🤩🥳😊🙌💖💪",
			NegativeEmoji: "😡😢💀👎🤬😞😔😠😭🤮☠😤😩",
		},
		SlangWeight:       8,
		EmojiWeight:       5,
		WordWeight:        4,
		NegationFactor:    -1.2,
		SarcasmFactor:     -0.5,
		IntensityDivisor:  120,
		Clamp:             40,
		PositiveThreshold: 12,
		NegativeThreshold: -12,
	}
}

// Analyzer is a pure function of its configuration and input. It holds no
// per-call state and is safe for concurrent use.
type Analyzer struct {
	cfg Config

	posSlang Phrases
	negSlang Phrases
	sarcasm  Phrases
	posWords map[string]bool
	negWords map[string]bool
	negation map[string]bool
	emoji    map[rune]float64
}

// New compiles cfg into an Analyzer.
func New(cfg Config) *Analyzer {
	a := &Analyzer{
		cfg:      cfg,
		posSlang: NewPhrases(cfg.Lexicon.PositiveSlang...),
		negSlang: NewPhrases(cfg.Lexicon.NegativeSlang...),
		sarcasm:  NewPhrases(cfg.Lexicon.Sarcasm...),
		posWords: wordSet(cfg.Lexicon.PositiveWords),
		negWords: wordSet(cfg.Lexicon.NegativeWords),
		negation: wordSet(cfg.Lexicon.Negations),
		emoji:    make(map[rune]float64),
	}
	for _, r := range cfg.Lexicon.PositiveEmoji {
		a.emoji[r] = 1
	}
	for _, r := range cfg.Lexicon.NegativeEmoji {
		a.emoji[r] = -1
	}
	// Variation selectors ride along with some emoji and carry no sentiment.
	delete(a.emoji, '\uFE0F')
	return a
}

func wordSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		for _, tok := range tokenize(w) {
			set[tok] = true
		}
	}
	return set
}

// Config returns the analyzer's configuration.
func (a *Analyzer) Config() Config { return a.cfg }

// Analyze scores text. Empty or whitespace-only text is neutral with score 0.
func (a *Analyzer) Analyze(text string) Reading {
	t := NewText(text)
	var score float64

	posSlang := a.posSlang.Matches(t)
	negSlang := a.negSlang.Matches(t)
	score += float64(len(posSlang)) * a.cfg.SlangWeight
	score -= float64(len(negSlang)) * a.cfg.SlangWeight

	intensity := 1.0
	if a.cfg.IntensityDivisor > 0 {
		intensity += float64(utf8.RuneCountInString(text)) / a.cfg.IntensityDivisor
	}
	for _, r := range text {
		if sign, ok := a.emoji[r]; ok {
			score += sign * a.cfg.EmojiWeight * intensity
		}
	}

	for i, tok := range t.Tokens {
		var hit float64
		switch {
		case a.posWords[tok]:
			hit = a.cfg.WordWeight
		case a.negWords[tok]:
			hit = -a.cfg.WordWeight
		default:
			continue
		}
		if i > 0 && a.negation[t.Tokens[i-1]] {
			hit *= a.cfg.NegationFactor
		}
		score += hit
	}

	sarcastic := a.sarcasm.In(t)
	if sarcastic {
		score *= a.cfg.SarcasmFactor
	}

	final := clamp(int(math.RoundToEven(score)), -a.cfg.Clamp, a.cfg.Clamp)
	return Reading{
		Category: a.Categorize(final),
		Score:    final,
		GenAlpha: len(posSlang)+len(negSlang) > 0,
		Sarcasm:  sarcastic,
	}
}

// Categorize maps a score to its category using the configured thresholds.
func (a *Analyzer) Categorize(score int) Category {
	switch {
	case score >= a.cfg.PositiveThreshold:
		return Positive
	case score <= a.cfg.NegativeThreshold:
		return Negative
	default:
		return Neutral
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
