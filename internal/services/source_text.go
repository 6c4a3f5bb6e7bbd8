package services

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxSourceBytes caps the combined learner text handed to unit
	// generation. Callers may override it (tests use tiny budgets).
	DefaultMaxSourceBytes = 200_000

	// MaxExtractedTextBytes caps a single resource's extracted text at
	// creation time.
	MaxExtractedTextBytes = 100_000

	// minTruncateBytes is the smallest content slice worth keeping when an
	// item overflows the budget; anything smaller and the item is dropped.
	minTruncateBytes = 100
)

// SourceItem is one labeled block of source text. The caller supplies the
// label; an item must not reach the combiner with an empty one.
type SourceItem struct {
	Label   string
	Content string
}

func sourceHeader(label string) string {
	return "\n\n## Source: " + label + "\n\n"
}

// CombineSources concatenates items in order under a total byte budget. Each
// item contributes a header line plus its content. The first item that would
// overflow the budget is truncated to the remaining space when more than
// minTruncateBytes remain, otherwise dropped; either way no later item is
// emitted. Budgets are measured in UTF-8 bytes and truncation never splits a
// multi-byte sequence. Pure and deterministic.
func CombineSources(items []SourceItem, maxBytes int) string {
	var b strings.Builder
	running := 0
	for _, item := range items {
		header := sourceHeader(item.Label)
		headerBytes := len(header)
		contentBytes := len(item.Content)

		if running+headerBytes+contentBytes > maxBytes {
			remaining := maxBytes - running - headerBytes
			if remaining > minTruncateBytes {
				b.WriteString(header)
				b.WriteString(TruncateUTF8(item.Content, remaining))
			}
			break
		}

		b.WriteString(header)
		b.WriteString(item.Content)
		running += headerBytes + contentBytes
	}
	return b.String()
}

// TruncateUTF8 cuts s to at most n bytes without emitting a malformed
// trailing partial multi-byte sequence.
func TruncateUTF8(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	// If the byte after the cut is a continuation byte, the cut splits a
	// rune; back off to the rune start so the partial tail is dropped.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// MergeSourceMaterial joins learner and supplemental text in fixed order.
// Both section headers are always present, even when learnerText is empty,
// so downstream consumers can rely on the section markers.
func MergeSourceMaterial(learnerText, supplementalText string) string {
	return "## Learner-Provided Materials\n\n" + learnerText +
		"\n\n## Supplemental Generated Content\n\n" + supplementalText
}
