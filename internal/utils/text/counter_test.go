package text_test

import (
	"testing"

	"github.com/capcat/capcat/internal/utils/text"
)

func TestCountRunes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"ASCII text", "hello", 5},
		{"ASCII with spaces", "hello world", 11},
		{"Japanese hiragana", "こんにちは", 5},
		{"Japanese kanji", "日本語", 3},
		{"mixed English and Japanese", "hello世界", 7},
		{"accented Latin", "café", 4},
		{"empty string", "", 0},
		{"only whitespace", "   ", 3},
		{"newlines and tabs", "a\nb\tc", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := text.CountRunes(tt.input); got != tt.expected {
				t.Errorf("CountRunes(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

// A title cap computed in runes must not over-count multi-byte
// characters the way a byte-based length would.
func TestCountRunes_BytesVsRunes(t *testing.T) {
	input := "日本語のタイトル"
	if len(input) == text.CountRunes(input) {
		t.Fatal("expected byte length to differ from rune count for multi-byte input")
	}
	if got := text.CountRunes(input); got != 8 {
		t.Errorf("CountRunes(%q) = %d, want 8", input, got)
	}
}
