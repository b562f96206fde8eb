package lyrics

import (
	"strings"
	"testing"
)

func TestCleanup(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain lyrics untouched",
			raw:  "line one\nline two",
			want: "line one\nline two",
		},
		{
			name: "recommendation marker removed",
			raw:  "line one\nYou might also like\nline two",
			want: "line one\nline two",
		},
		{
			name: "embed footer removed",
			raw:  "line one\nline two42Embed",
			want: "line one\nline two",
		},
		{
			name: "embed footer without count",
			raw:  "line one\nline twoEmbed",
			want: "line one\nline two",
		},
		{
			name: "embed mid-text kept",
			raw:  "the Embed word stays\nlast line",
			want: "the Embed word stays\nlast line",
		},
		{
			name: "blank runs collapsed",
			raw:  "line one\n\n\n\nline two",
			want: "line one\n\nline two",
		},
		{
			name: "everything at once",
			raw:  "  [Verse 1]\nline one\nYou might also like\n\n\nline two7Embed  ",
			want: "[Verse 1]\nline one\n\nline two",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cleanup(tt.raw); got != tt.want {
				t.Fatalf("Cleanup(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSplitChunks(t *testing.T) {
	t.Run("short text is one chunk", func(t *testing.T) {
		got := SplitChunks("hello\nworld", 100)
		if len(got) != 1 || got[0] != "hello\nworld" {
			t.Fatalf("chunks = %q", got)
		}
	})

	t.Run("empty text yields nothing", func(t *testing.T) {
		if got := SplitChunks("", 100); got != nil {
			t.Fatalf("chunks = %q", got)
		}
	})

	t.Run("splits on line boundaries", func(t *testing.T) {
		text := strings.Repeat("0123456789\n", 10)
		got := SplitChunks(strings.TrimSuffix(text, "\n"), 25)
		for i, chunk := range got {
			if len(chunk) > 25 {
				t.Fatalf("chunk %d is %d chars: %q", i, len(chunk), chunk)
			}
			if strings.HasPrefix(chunk, "\n") || strings.HasSuffix(chunk, "\n") {
				t.Fatalf("chunk %d has dangling newline: %q", i, chunk)
			}
		}
		joined := strings.Join(got, "\n")
		if joined != strings.TrimSuffix(text, "\n") {
			t.Fatalf("chunks lost content:\n%q", joined)
		}
	})

	t.Run("hard-splits oversized lines", func(t *testing.T) {
		got := SplitChunks(strings.Repeat("a", 55), 20)
		if len(got) != 3 {
			t.Fatalf("chunks = %d, want 3", len(got))
		}
		for _, chunk := range got {
			if len(chunk) > 20 {
				t.Fatalf("oversized chunk %q", chunk)
			}
		}
	})
}
