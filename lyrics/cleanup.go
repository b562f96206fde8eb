package lyrics

import (
	"strings"
	"unicode"
)

// Cleanup strips the page artifacts Genius embeds in scraped lyric text:
// the "You might also like" recommendation marker and the trailing
// "<count>Embed" footer.
func Cleanup(raw string) string {
	text := strings.ReplaceAll(raw, "You might also like", "")

	text = strings.TrimSpace(text)
	if end := strings.TrimSuffix(text, "Embed"); end != text {
		text = strings.TrimRightFunc(end, unicode.IsDigit)
	}

	// Collapse the blank-line runs left behind by removed markup.
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blanks := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blanks++
			if blanks > 1 {
				continue
			}
		} else {
			blanks = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// SplitChunks breaks lyrics into message-sized pieces on line boundaries.
// A single line longer than max is hard-split.
func SplitChunks(text string, max int) []string {
	if max <= 0 || len(text) <= max {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	for _, line := range strings.Split(text, "\n") {
		for len(line) > max {
			if cur.Len() > 0 {
				chunks = append(chunks, cur.String())
				cur.Reset()
			}
			chunks = append(chunks, line[:max])
			line = line[max:]
		}
		need := len(line)
		if cur.Len() > 0 {
			need++
		}
		if cur.Len()+need > max {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n")
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}
