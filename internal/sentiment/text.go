package sentiment

import (
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_']+`)

// Text is a lowercased, tokenized message. Phrase lookups match on token
// boundaries, so "w" matches the token "w" and never the w inside "wow".
type Text struct {
	Tokens []string
	padded string
}

// NewText tokenizes s.
func NewText(s string) Text {
	tokens := tokenize(s)
	return Text{
		Tokens: tokens,
		padded: pad(tokens),
	}
}

func tokenize(s string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(s), -1)
	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		tok = strings.Trim(tok, "'")
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

func pad(tokens []string) string {
	return " " + strings.Join(tokens, " ") + " "
}

// Phrases is a compiled keyword list. Multi-word entries match as a
// contiguous run of tokens.
type Phrases struct {
	words   []string
	padded  []string
	inflect bool
}

// NewPhrases compiles words. Entries that tokenize to nothing are dropped.
func NewPhrases(words ...string) Phrases {
	p := Phrases{}
	for _, w := range words {
		toks := tokenize(w)
		if len(toks) == 0 {
			continue
		}
		p.words = append(p.words, strings.Join(toks, " "))
		p.padded = append(p.padded, pad(toks))
	}
	return p
}

// NewInflectedPhrases is like NewPhrases, but single-word entries also match
// common English inflections: "suck" matches "sucks" and "sucker", "fake"
// matches "faker", "trash" matches "trashy".
func NewInflectedPhrases(words ...string) Phrases {
	p := NewPhrases(words...)
	p.inflect = true
	return p
}

// Len returns the number of entries.
func (p Phrases) Len() int { return len(p.words) }

func (p Phrases) match(i int, t Text) bool {
	if strings.Contains(t.padded, p.padded[i]) {
		return true
	}
	if !p.inflect || strings.Contains(p.words[i], " ") {
		return false
	}
	for _, tok := range t.Tokens {
		if inflectionOf(tok, p.words[i]) {
			return true
		}
	}
	return false
}

// Matches returns the entries found in t, in list order.
func (p Phrases) Matches(t Text) []string {
	var out []string
	for i := range p.words {
		if p.match(i, t) {
			out = append(out, p.words[i])
		}
	}
	return out
}

// In reports whether any entry occurs in t.
func (p Phrases) In(t Text) bool {
	for i := range p.words {
		if p.match(i, t) {
			return true
		}
	}
	return false
}

var suffixes = map[string]bool{
	"s": true, "es": true, "ed": true, "er": true, "ers": true, "est": true,
	"y": true, "ey": true, "ier": true, "iest": true, "ing": true, "ity": true,
}

// inflectionOf reports whether tok is word plus one of suffixes. A word
// ending in e drops it before a vowel suffix (fake, faker).
func inflectionOf(tok, word string) bool {
	stem := word
	if strings.HasSuffix(word, "e") {
		stem = word[:len(word)-1]
	}
	rest, ok := strings.CutPrefix(tok, stem)
	if !ok || rest == "" {
		return false
	}
	if stem != word && !strings.ContainsRune("eiy", rune(rest[0])) {
		return false
	}
	return suffixes[rest]
}
