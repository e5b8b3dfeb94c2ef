package tone

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/lazypower/rapport/internal/defense"
)

func TestModeFor(t *testing.T) {
	tests := []struct {
		mood int
		want Mode
	}{
		{100, Affectionate},
		{80, Affectionate},
		{79, Playful},
		{50, Playful},
		{49, Chill},
		{30, Chill},
		{29, Cold},
		{0, Cold},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ModeFor(tt.mood), "mood %d", tt.mood)
	}
}

func TestDecorateStartsWithModeStyle(t *testing.T) {
	s := NewStyler(7)
	for i := 0; i < 50; i++ {
		out := s.Decorate("Got it!", Signals{Mood: 90})
		assert.Contains(t, out, "Got it!")

		hasOpener := false
		for _, o := range styles[Affectionate].openers {
			if strings.Contains(out, strings.TrimSpace(o)) {
				hasOpener = true
			}
		}
		assert.True(t, hasOpener, out)
	}
}

func TestDecorateIsReproducible(t *testing.T) {
	a, b := NewStyler(42), NewStyler(42)
	sig := Signals{Mood: 10, GenAlpha: true, Toxicity: 12}
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Decorate("ok", sig), b.Decorate("ok", sig))
	}
}

func TestComebacksOnlyWhenColdOrToxic(t *testing.T) {
	s := NewStyler(3)
	for i := 0; i < 100; i++ {
		out := s.Decorate("hi", Signals{Mood: 60})
		for _, c := range sassy {
			assert.NotContains(t, out, c)
		}
	}

	seen := false
	for i := 0; i < 100 && !seen; i++ {
		out := s.Decorate("hi", Signals{Mood: 60, Toxicity: 9})
		for _, c := range sassy {
			if strings.Contains(out, c) {
				seen = true
			}
		}
	}
	assert.True(t, seen, "expected a comeback within 100 toxic draws")
}

func TestSlangOnlyForGenAlpha(t *testing.T) {
	s := NewStyler(11)
	for i := 0; i < 100; i++ {
		out := s.Decorate("hello there", Signals{Mood: 40})
		for _, w := range []string{"fr fr", "no cap", "lowkey", "highkey", "say less"} {
			assert.NotContains(t, out, w)
		}
	}
}

func TestComeback(t *testing.T) {
	s := NewStyler(1)
	assert.Equal(t, "", s.Comeback(defense.LevelNone))
	for _, lvl := range []defense.Level{defense.SkillRoast, defense.HumorousDismissal, defense.Aggressive, defense.Dominant} {
		assert.Contains(t, comebacks[lvl], s.Comeback(lvl))
	}
}

func TestDecorateNeverDropsBase(t *testing.T) {
	s := NewStyler(99)
	rapid.Check(t, func(t *rapid.T) {
		sig := Signals{
			Mood:     rapid.IntRange(0, 100).Draw(t, "mood"),
			GenAlpha: rapid.Bool().Draw(t, "gen_alpha"),
			Toxicity: rapid.IntRange(0, 40).Draw(t, "toxicity"),
		}
		out := s.Decorate("Got it!", sig)
		if !strings.Contains(out, "Got") || !strings.Contains(out, "it!") {
			t.Fatalf("base text lost: %q", out)
		}
	})
}
