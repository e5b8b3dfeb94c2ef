// Package transcript reads JSONL chat logs and pairs them into exchanges
// for memory backfill.
package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// line is one JSONL record. Two shapes are accepted: a flat
// {"role","content"} message, and an envelope {"type","message":{...}}.
type line struct {
	Type    string          `json:"type"`
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	Message json.RawMessage `json:"message"`
}

type message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"` // string or []contentItem
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Entry is one parsed chat message.
type Entry struct {
	Role string
	Text string
}

// ParseFile reads a JSONL chat log.
func ParseFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads JSONL from r. Malformed lines and lines without a user or
// assistant role are skipped.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024) // 1MB line buffer

	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		entry, ok := parseLine(raw)
		if ok {
			entries = append(entries, entry)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}
	return entries, nil
}

// ParseLines parses transcript content from a string.
func ParseLines(content string) ([]Entry, error) {
	return Parse(strings.NewReader(content))
}

func parseLine(raw []byte) (Entry, bool) {
	var l line
	if err := json.Unmarshal(raw, &l); err != nil {
		return Entry{}, false
	}

	role, content := l.Role, l.Content
	if l.Message != nil {
		var msg message
		if err := json.Unmarshal(l.Message, &msg); err != nil {
			return Entry{}, false
		}
		role, content = msg.Role, msg.Content
	}
	if role == "" {
		role = l.Type
	}

	role = normalizeRole(role)
	if role == "" {
		return Entry{}, false
	}

	text := strings.TrimSpace(extractText(content))
	if text == "" {
		return Entry{}, false
	}
	return Entry{Role: role, Text: text}, true
}

func normalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "user", "human":
		return RoleUser
	case "assistant", "bot", "agent":
		return RoleAssistant
	default:
		return ""
	}
}

// extractText handles the polymorphic content field.
// It may be a plain string or an array of content items.
func extractText(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var items []contentItem
	if err := json.Unmarshal(raw, &items); err == nil {
		var texts []string
		for _, item := range items {
			if item.Type == "text" && item.Text != "" {
				texts = append(texts, item.Text)
			}
		}
		return strings.Join(texts, "\n")
	}

	return ""
}

// Exchange is one user turn and the reply that followed it.
type Exchange struct {
	UserMessage   string
	AgentResponse string
}

// Pair groups entries into exchanges. Consecutive messages from the same
// role are joined with newlines. Assistant messages before the first user
// message and a trailing user message with no reply are dropped.
func Pair(entries []Entry) []Exchange {
	var out []Exchange
	var user, reply []string

	flush := func() {
		if len(user) > 0 && len(reply) > 0 {
			out = append(out, Exchange{
				UserMessage:   strings.Join(user, "\n"),
				AgentResponse: strings.Join(reply, "\n"),
			})
		}
		user, reply = nil, nil
	}

	for _, e := range entries {
		switch e.Role {
		case RoleUser:
			if len(reply) > 0 {
				flush()
			}
			user = append(user, e.Text)
		case RoleAssistant:
			if len(user) == 0 {
				continue
			}
			reply = append(reply, e.Text)
		}
	}
	flush()
	return out
}

// CountUserMessages returns the number of user messages in the entries.
func CountUserMessages(entries []Entry) int {
	count := 0
	for _, e := range entries {
		if e.Role == RoleUser {
			count++
		}
	}
	return count
}
