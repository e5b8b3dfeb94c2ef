package engine

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNormalizeUserID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"alice", "alice", false},
		{"  123456789012345678 ", "123456789012345678", false},
		{"discord:42", "discord:42", false},
		{"sam@example.com", "sam@example.com", false},
		{"", "", true},
		{"   ", "", true},
		{"has space", "", true},
		{"../etc/passwd", "", true},
		{strings.Repeat("a", maxUserIDLen+1), "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeUserID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeUserID(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeUserID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeMessage(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello  ", "hello"},
		{"line one\nline two", "line one\nline two"},
		{"bell\x07 gone", "bell gone"},
		{"bad \xff byte", "bad  byte"},
		{"", ""},
		{"i love you 💖", "i love you 💖"},
	}
	for _, tt := range tests {
		if got := normalizeMessage(tt.in); got != tt.want {
			t.Errorf("normalizeMessage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeMessageTruncates(t *testing.T) {
	got := normalizeMessage(strings.Repeat("é", maxMessageLen+50))
	if n := utf8.RuneCountInString(got); n != maxMessageLen {
		t.Errorf("rune count = %d, want %d", n, maxMessageLen)
	}
}
