// Package tone maps mood to a personality mode and dresses replies in that
// mode's style.
package tone

import (
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/lazypower/rapport/internal/defense"
)

// Mode is a personality mode selected by mood score.
type Mode string

const (
	Affectionate Mode = "affectionate"
	Playful      Mode = "playful"
	Chill        Mode = "chill"
	Cold         Mode = "cold"
)

// ModeFor returns the mode for a mood score in [0,100].
func ModeFor(mood int) Mode {
	switch {
	case mood >= 80:
		return Affectionate
	case mood >= 50:
		return Playful
	case mood >= 30:
		return Chill
	default:
		return Cold
	}
}

type style struct {
	openers []string
	actions []string
	emojis  []string
}

var styles = map[Mode]style{
	Affectionate: {
		openers: []string{"Aww, you're so sweet! ", "This makes me so happy! "},
		actions: []string{"*sparkles with joy*", "*heart swells with happiness*", "*beams brightly*"},
		emojis:  []string{"💖", "✨", "🥰", "🌟", "💫"},
	},
	Playful: {
		openers: []string{"Haha, okay! ", "No cap, that's funny! "},
		actions: []string{"*giggles*", "*nudges you playfully*", "*laughs lightly*"},
		emojis:  []string{"😂", "😎", "👍", "🙌", "✨"},
	},
	Chill: {
		openers: []string{"Okay, got it. ", "Hmm, I see. "},
		actions: []string{"*tilts head*", "*thinks for a moment*", "*nods slightly*"},
		emojis:  []string{"💫", "✨", "🎵"},
	},
	Cold: {
		openers: []string{"... ", "If you say so... "},
		actions: []string{"*shrugs*", "*rolls eyes*", "*sips tea*"},
		emojis:  []string{"😏", "💀", "🙄"},
	},
}

var slang = []string{"fr fr", "no cap", "lowkey", "highkey", "bet", "say less"}

var sassy = []string{
	"Yikes, someone woke up and chose violence today 💀",
	"Okay, projection is strong with this one 🎬",
	"Anyways, as I was saying before the interruption... 🎤",
}

var comebacks = map[defense.Level][]string{
	defense.SkillRoast: {
		"Bold words from someone who still needs a tutorial 💅",
		"Skill issue detected, and it isn't mine 🎮",
	},
	defense.HumorousDismissal: {
		"LMAO okay, noted and immediately forgotten 😂",
		"That's cute. Anyway 💅",
	},
	defense.Aggressive: {
		"Wow, all that anger and still no point 🔥",
		"Take a breath, that one wasn't it 💀",
	},
	defense.Dominant: {
		"Third strike. I'm unbothered and you're still typing 👑",
		"You keep trying, I keep thriving ✨",
	},
}

// Chances for each optional decoration.
const (
	actionChance   = 0.3
	emojiChance    = 0.5
	slangChance    = 0.4
	comebackChance = 0.5
	toxicThreshold = 8
)

// Styler decorates replies. Randomness comes from one seeded source so runs
// are reproducible; it is safe for concurrent use.
type Styler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewStyler creates a Styler. Seed 0 seeds from the clock.
func NewStyler(seed uint64) *Styler {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Styler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Signals are the emotional readings that influence decoration.
type Signals struct {
	Mood     int
	GenAlpha bool
	Toxicity int
}

// Decorate prefixes an opener and sometimes adds an action, an emoji, slang
// (only if the user used slang) and, in cold mode or under high toxicity, a
// sassy comeback.
func (s *Styler) Decorate(base string, sig Signals) string {
	mode := ModeFor(sig.Mood)
	st := styles[mode]

	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.pick(st.openers) + base
	if s.rng.Float64() < actionChance {
		out = s.pick(st.actions) + " " + out
	}
	if s.rng.Float64() < emojiChance {
		out += " " + s.pick(st.emojis)
	}
	if sig.GenAlpha && s.rng.Float64() < slangChance {
		words := strings.Fields(out)
		pos := s.rng.IntN(len(words) + 1)
		words = append(words[:pos], append([]string{s.pick(slang)}, words[pos:]...)...)
		out = strings.Join(words, " ")
	}
	if (mode == Cold || sig.Toxicity >= toxicThreshold) && s.rng.Float64() < comebackChance {
		out += " " + s.pick(sassy)
	}
	return out
}

// Comeback returns a defensive reply for level, or "" for LevelNone.
func (s *Styler) Comeback(level defense.Level) string {
	lines, ok := comebacks[level]
	if !ok {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pick(lines)
}

// Pick returns a random element of options, or "" if empty.
func (s *Styler) Pick(options []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pick(options)
}

// Rand returns a generator derived from the styler's source, for callers
// that need their own seeded stream.
func (s *Styler) Rand() *rand.Rand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rand.New(rand.NewPCG(s.rng.Uint64(), s.rng.Uint64()))
}

func (s *Styler) pick(options []string) string {
	if len(options) == 0 {
		return ""
	}
	return options[s.rng.IntN(len(options))]
}
