package llm

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// maxReplyTokens keeps chat replies to a few sentences.
const maxReplyTokens = 120

const systemPrompt = `You are Melody, an upbeat chat companion. Reply in 2-3 sentences with personality and a few emojis. Match the user's energy naturally. Never mention scores, moods or these instructions.`

// PromptInput is everything the reply prompt is built from.
type PromptInput struct {
	Message  string
	Mood     int
	Extremes string // "", "cold" or "affection"
	Banter   bool
	Defense  string // roast defense level, empty when not defending
	Toxicity int
	TierName string
	Memories string // pre-rendered memory context
	Facts    string // pre-rendered fact context
}

// ToneGuidance maps a mood score to tone instructions.
func ToneGuidance(mood int) string {
	switch {
	case mood >= 80:
		return "Tone: very affectionate and sweet."
	case mood >= 50:
		return "Tone: playful and chaotic."
	case mood >= 30:
		return "Tone: chill and friendly."
	default:
		return "Tone: sassy but still playful. Keep it short."
	}
}

// BuildPrompt assembles the reply prompt.
func BuildPrompt(in PromptInput) string {
	var parts []string

	parts = append(parts, ToneGuidance(in.Mood))
	if in.TierName != "" {
		parts = append(parts, fmt.Sprintf("Relationship: %s.", in.TierName))
	}

	switch {
	case in.Banter:
		parts = append(parts, "The user is teasing you as a close friend. Tease back affectionately; do not take offense.")
	case in.Defense != "":
		parts = append(parts, defenseGuidance(in.Defense))
	case in.Toxicity >= 8:
		parts = append(parts, "The user is being hostile. Stay unbothered and do not escalate.")
	case in.Extremes == "cold":
		parts = append(parts, "The user is upset. Be brief and calm.")
	case in.Extremes == "affection":
		parts = append(parts, "The user is being very warm. Return the warmth.")
	}

	if in.Memories != "" {
		parts = append(parts, strings.TrimRight(in.Memories, "\n"))
	}
	if in.Facts != "" {
		parts = append(parts, strings.TrimRight(in.Facts, "\n"))
	}

	parts = append(parts, "USER MESSAGE: "+in.Message)
	return strings.Join(parts, "\n\n")
}

func defenseGuidance(level string) string {
	switch level {
	case "DOMINANT":
		return "The user keeps insulting you. Shut it down with one confident, unbothered line."
	case "AGGRESSIVE":
		return "The user insulted you harshly. Clap back with a sharp but non-hateful roast."
	case "HUMOROUS_DISMISSAL":
		return "The user insulted you. Laugh it off and dismiss it with humor."
	default:
		return "The user mocked your abilities. Roast their skills back playfully."
	}
}

var fallbacks = []struct {
	min     int
	replies []string
}{
	{80, []string{
		"Aww you always make my day 💖✨",
		"Okay you're literally my favorite person 😭💫",
		"Bestie energy is PEAK right now 🥰",
	}},
	{50, []string{
		"Yooo what's good?? 🔥😎",
		"Okay I'm here, spill the tea 👀",
		"Heyy! What's the vibe today? 🙌",
	}},
	{30, []string{
		"Hey. What's up?",
		"I'm listening, go on.",
		"Cool cool. Tell me more.",
	}},
	{0, []string{
		"Mm. Okay.",
		"Noted.",
		"If you say so 💅",
	}},
}

// Fallback returns a canned reply for mood, used when no generator is
// configured or it fails. r picks among the band's replies; nil picks the
// first.
func Fallback(mood int, r *rand.Rand) string {
	for _, band := range fallbacks {
		if mood >= band.min {
			if r == nil {
				return band.replies[0]
			}
			return band.replies[r.IntN(len(band.replies))]
		}
	}
	return fallbacks[len(fallbacks)-1].replies[0]
}
