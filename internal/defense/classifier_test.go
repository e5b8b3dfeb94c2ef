package defense

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/lazypower/rapport/internal/emotion"
)

func profileWith(interactions int) *emotion.Profile {
	p := emotion.NewProfile("u")
	p.InteractionCount = interactions
	return p
}

func TestSevereAttackFromNewUser(t *testing.T) {
	c := New(DefaultConfig())
	p := profileWith(0)

	d := c.Classify(p, 10, -20, "you're so fake")

	assert.True(t, d.Defend)
	assert.Equal(t, 3, d.Severity)
	assert.Equal(t, HumorousDismissal, d.Level)
	assert.Equal(t, []string{"you're so fake"}, p.AttackHistory)
}

func TestSecondMessageSevereAttack(t *testing.T) {
	c := New(DefaultConfig())
	p := profileWith(1)

	d := c.Classify(p, 10, -20, "you are worthless")

	assert.True(t, d.Defend)
	assert.Equal(t, 3, d.Severity)
	assert.Equal(t, HumorousDismissal, d.Level)
}

func TestNewUserWindowCoversThreeMessages(t *testing.T) {
	c := New(DefaultConfig())
	for n := 0; n < 3; n++ {
		d := c.Classify(profileWith(n), 40, -20, "pathetic")
		assert.True(t, d.Defend, "interactions before message = %d", n)
	}
	d := c.Classify(profileWith(3), 40, -20, "pathetic")
	assert.False(t, d.Defend, "fourth message from a mid-trust user")

	assert.Equal(t, HumorousDismissal, c.Classify(profileWith(1), 40, -20, "pathetic").Level)
	assert.Equal(t, Aggressive, c.Classify(profileWith(2), 40, -20, "pathetic").Level)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		interactions int
		trust        float64
		raw          int
		text         string
		defend       bool
		level        Level
	}{
		{"severe from known low-trust user", 4, 20, -20, "pathetic", true, Aggressive},
		{"medium from known low-trust user", 4, 20, -12, "you're useless", true, SkillRoast},
		{"mild keywords never defend", 0, 10, -12, "you're lame", false, LevelNone},
		{"trusted regular is left alone", 10, 50, -20, "that was stupid", false, LevelNone},
		{"not hostile enough", 0, 10, -5, "kinda dumb", false, LevelNone},
		{"no attack keyword", 0, 10, -20, "i hate mondays", false, LevelNone},
		{"very low trust dismissed", 4, 12, -16, "you're trash", true, HumorousDismissal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(DefaultConfig()).Classify(profileWith(tt.interactions), tt.trust, tt.raw, tt.text)
			assert.Equal(t, tt.defend, d.Defend)
			assert.Equal(t, tt.level, d.Level)
		})
	}
}

func TestRepeatOffenderEscalates(t *testing.T) {
	c := New(DefaultConfig())
	p := profileWith(4)

	levels := make([]Level, 0, 3)
	for i := 0; i < 3; i++ {
		d := c.Classify(p, 20, -12, "you're useless")
		levels = append(levels, d.Level)
		p.InteractionCount++
	}
	assert.Equal(t, []Level{SkillRoast, SkillRoast, Dominant}, levels)
}

func TestBanter(t *testing.T) {
	c := New(DefaultConfig())

	assert.True(t, c.IsBanter(85, -10, "lol you suck at this game"))
	assert.False(t, c.IsBanter(80, -10, "lol you suck at this game"), "trust must exceed threshold")
	assert.False(t, c.IsBanter(85, -20, "lol you suck at this game"), "too hostile")
	assert.False(t, c.IsBanter(85, -3, "lol you suck at this game"), "not negative enough")
	assert.False(t, c.IsBanter(85, -10, "you suck"), "no playful marker")
}

func TestBanterSuppressesDefense(t *testing.T) {
	c := New(DefaultConfig())
	p := profileWith(0)

	d := c.Classify(p, 85, -10, "lol ur trash at this game")

	assert.True(t, d.Banter)
	assert.Equal(t, 2, d.Severity)
	assert.False(t, d.Defend)
	assert.Len(t, p.AttackHistory, 1, "attacks are recorded even when not defended")
}

func TestSeverity(t *testing.T) {
	c := New(DefaultConfig())
	tests := []struct {
		text string
		want int
	}{
		{"hello there", 0},
		{"that's lame", 1},
		{"lame and garbage", 3},
		{"ugly and lame", 4},
		{"ugly, fake and pathetic", 3},
		{"this sucks", 1},
		{"what a faker", 3},
		{"kinda trashy tbh", 2},
		{"sucks and stupidest", 3},
		{"lambs with badges", 0},
		{"suction cup", 0},
	}
	for _, tt := range tests {
		got, _ := c.Severity(tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}
}

var words = []string{"lol", "trash", "fake", "lame", "game", "you", "are", "so", "awful", "nice", "dumb"}

func TestClassifyProperties(t *testing.T) {
	c := New(DefaultConfig())
	rapid.Check(t, func(rt *rapid.T) {
		p := profileWith(rapid.IntRange(0, 50).Draw(rt, "interactions"))
		trust := rapid.Float64Range(0, 100).Draw(rt, "trust")
		raw := rapid.IntRange(-40, 40).Draw(rt, "raw")
		text := strings.Join(rapid.SliceOfN(rapid.SampledFrom(words), 1, 8).Draw(rt, "words"), " ")

		d := c.Classify(p, trust, raw, text)
		if d.Banter && d.Defend {
			rt.Fatalf("banter and defend both set for %q", text)
		}
		if d.Defend && (d.Level == LevelNone || d.Severity < 2) {
			rt.Fatalf("defend with level %q severity %d", d.Level, d.Severity)
		}
		if !d.Defend && d.Level != LevelNone {
			rt.Fatalf("level %q without defense", d.Level)
		}
	})
}
