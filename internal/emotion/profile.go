// Package emotion tracks per-user mood: a smoothed 0–100 mood score, a trust
// score derived from mood history, extremes detection, and whiplash.
package emotion

import (
	"time"

	"github.com/lazypower/rapport/internal/sentiment"
)

// Reading is one analyzed message retained for whiplash detection.
type Reading struct {
	Category sentiment.Category `json:"category"`
	Score    int                `json:"score"`
	At       time.Time          `json:"at"`
}

// Profile is the persisted emotional state of one user. History holds final
// mood scores, oldest first.
type Profile struct {
	UserID           string    `json:"user_id"`
	History          []int     `json:"sentiment_history"`
	Recent           []Reading `json:"recent"`
	AttackHistory    []string  `json:"attack_history"`
	InteractionCount int       `json:"interaction_count"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewProfile returns the default profile for a user seen for the first time.
func NewProfile(userID string) *Profile {
	return &Profile{UserID: userID}
}

// LastMood returns the most recent mood score, or def when there is none.
func (p *Profile) LastMood(def int) int {
	if len(p.History) == 0 {
		return def
	}
	return p.History[len(p.History)-1]
}

// RecordAttack appends text to the attack window, keeping at most limit entries.
func (p *Profile) RecordAttack(text string, limit int) {
	p.AttackHistory = appendCapped(p.AttackHistory, text, limit)
}

func appendCapped[T any](s []T, v T, limit int) []T {
	s = append(s, v)
	if limit > 0 && len(s) > limit {
		s = append(s[:0:0], s[len(s)-limit:]...)
	}
	return s
}
