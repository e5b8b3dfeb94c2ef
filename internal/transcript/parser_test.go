package transcript

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseLinesFlat(t *testing.T) {
	lines := `{"role":"user","content":"hey melody, my dog is named Biscuit"}
{"role":"assistant","content":"aww Biscuit is adorable"}
{"role":"user","content":"hi"}
{"role":"assistant","content":"hiii"}`

	entries, err := ParseLines(lines)
	if err != nil {
		t.Fatalf("ParseLines: %v", err)
	}

	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	if entries[0].Role != RoleUser {
		t.Errorf("entry[0].Role = %q, want user", entries[0].Role)
	}
	if entries[0].Text != "hey melody, my dog is named Biscuit" {
		t.Errorf("entry[0].Text = %q", entries[0].Text)
	}
	if entries[2].Text != "hi" {
		t.Errorf("short messages should be kept, got %q", entries[2].Text)
	}
}

func TestParseLinesEnvelope(t *testing.T) {
	lines := `{"type":"user","message":{"role":"user","content":"Hello there"}}
{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"Hi!"},{"type":"tool_use","id":"tu_1"}]}}`

	entries, err := ParseLines(lines)
	if err != nil {
		t.Fatalf("ParseLines: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].Role != RoleAssistant || entries[1].Text != "Hi!" {
		t.Errorf("entry[1] = %+v", entries[1])
	}
}

func TestParseLinesRoleAliases(t *testing.T) {
	lines := `{"role":"Human","content":"question here"}
{"role":"bot","content":"answer here"}
{"type":"user","content":"typed only"}
{"role":"system","content":"you are a bot"}`

	entries, err := ParseLines(lines)
	if err != nil {
		t.Fatalf("ParseLines: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries (system dropped), got %d", len(entries))
	}
	want := []string{RoleUser, RoleAssistant, RoleUser}
	for i, e := range entries {
		if e.Role != want[i] {
			t.Errorf("entry[%d].Role = %q, want %q", i, e.Role, want[i])
		}
	}
}

func TestParseLinesMalformed(t *testing.T) {
	lines := `not json at all
{"role":"user","content":"Valid message here"}
{broken json
{"role":"user","content":"   "}
{"role":"user","content":42}`

	entries, err := ParseLines(lines)
	if err != nil {
		t.Fatalf("ParseLines: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 valid entry, got %d", len(entries))
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.jsonl")
	data := "{\"role\":\"user\",\"content\":\"one\"}\n\n{\"role\":\"assistant\",\"content\":\"two\"}\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPair(t *testing.T) {
	entries := []Entry{
		{Role: RoleAssistant, Text: "welcome!"},
		{Role: RoleUser, Text: "hello"},
		{Role: RoleUser, Text: "are you there"},
		{Role: RoleAssistant, Text: "yes"},
		{Role: RoleAssistant, Text: "what's up"},
		{Role: RoleUser, Text: "my name is Sam"},
		{Role: RoleAssistant, Text: "hi Sam"},
		{Role: RoleUser, Text: "dangling"},
	}

	got := Pair(entries)
	if len(got) != 2 {
		t.Fatalf("expected 2 exchanges, got %d: %+v", len(got), got)
	}
	if got[0].UserMessage != "hello\nare you there" {
		t.Errorf("exchange[0].UserMessage = %q", got[0].UserMessage)
	}
	if got[0].AgentResponse != "yes\nwhat's up" {
		t.Errorf("exchange[0].AgentResponse = %q", got[0].AgentResponse)
	}
	if got[1].UserMessage != "my name is Sam" || got[1].AgentResponse != "hi Sam" {
		t.Errorf("exchange[1] = %+v", got[1])
	}
}

func TestPairEmpty(t *testing.T) {
	if got := Pair(nil); len(got) != 0 {
		t.Errorf("expected no exchanges, got %+v", got)
	}
}

func TestCountUserMessages(t *testing.T) {
	entries := []Entry{
		{Role: RoleUser, Text: "hello"},
		{Role: RoleAssistant, Text: "hi"},
		{Role: RoleUser, Text: "world"},
	}

	if count := CountUserMessages(entries); count != 2 {
		t.Errorf("CountUserMessages = %d, want 2", count)
	}
}
