package relationship

// Tier is a named relationship bracket.
type Tier struct {
	Name         string `json:"name"`
	MinPoints    int    `json:"min_points"`
	Emoji        string `json:"emoji"`
	Color        uint32 `json:"color"`
	Message      string `json:"message"`
	BusyResponse string `json:"busy_response"`
}

// Tiers is ordered by descending MinPoints. The last tier starts at 0 so
// every non-negative point total resolves to exactly one tier. BusyResponse
// is what a throttled user hears.
var Tiers = []Tier{
	{"Soulmate", 5000, "💫", 0xFF66CC,
		"You complete me... our souls are connected forever 💫",
		"I'm so sorry my baby 😔 I'm a little overwhelmed right now 💝 See you soon!"},
	{"Twin Flame", 3500, "🔥", 0xFF3366,
		"We just GET each other on another level! 🔥",
		"Aww my flame 🔥 I'm busy right now but I'll be back for you soon!"},
	{"Kindred Spirit", 2500, "🌟", 0xFF9966,
		"We have such amazing chemistry! 💫",
		"Hey bestie! 🌟 I'm swamped right now, catch you later?"},
	{"Bestie", 1500, "💖", 0xFFD166,
		"You're my favorite person to talk with! 💕",
		"Hey! I'm a bit busy right now, talk later? 💕"},
	{"Close Friend", 800, "😊", 0x66CCFF,
		"I really enjoy our conversations! 😊",
		"Give me a sec! I'll be back soon 😊"},
	{"Acquaintance", 300, "👋", 0xB0BEC5,
		"Nice talking with you! 👋",
		"Busy right now, maybe later? 👋"},
	{"Stranger", 100, "😒", 0x9E9E9E,
		"Hello there.",
		"Can't you see I'm busy right now? 😒"},
	{"Rival", 0, "⚔️", 0xE53935,
		"We clearly don't see eye to eye... 😠",
		"WTF do you want? Can't you see I'm busy RN? ⚔️"},
}

// TierInfo locates points in the tier ladder.
type TierInfo struct {
	Current  Tier  `json:"current"`
	Next     *Tier `json:"next,omitempty"`
	Progress int   `json:"progress_percent"`
}

// TierFor returns the first tier whose MinPoints <= points, the tier above it
// (nil at the top), and the percent progress toward that next tier. Points
// below zero resolve to the bottom tier.
func TierFor(points int) TierInfo {
	idx := len(Tiers) - 1
	for i, t := range Tiers {
		if points >= t.MinPoints {
			idx = i
			break
		}
	}

	info := TierInfo{Current: Tiers[idx], Progress: 100}
	if idx == 0 {
		return info
	}

	next := Tiers[idx-1]
	info.Next = &next
	span := next.MinPoints - info.Current.MinPoints
	info.Progress = clamp((points-info.Current.MinPoints)*100/span, 0, 100)
	return info
}

// BusyResponse returns the tier-appropriate reply used when the agent is
// rate-limited or otherwise unavailable.
func BusyResponse(points int) string {
	return TierFor(points).Current.BusyResponse
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
