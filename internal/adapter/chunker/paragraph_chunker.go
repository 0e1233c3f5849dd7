package chunker

import (
	"strings"

	"raglite/internal/port"
)

const (
	// DefaultMaxChars is the default chunk window size in characters.
	DefaultMaxChars = 500
	// DefaultOverlap is the default window overlap in characters.
	DefaultOverlap = 50
)

// ParagraphChunker splits a document on blank lines and windows long
// paragraphs by characters with overlap. Output chunks are ordered and
// never empty.
type ParagraphChunker struct {
	maxChars int
	overlap  int
}

var _ port.Splitter = (*ParagraphChunker)(nil)

// NewParagraphChunker creates a chunker; non-positive arguments fall back
// to the defaults. Overlap is clamped below maxChars so windows always
// advance.
func NewParagraphChunker(maxChars, overlap int) *ParagraphChunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= maxChars {
		overlap = maxChars - 1
	}
	return &ParagraphChunker{maxChars: maxChars, overlap: overlap}
}

// Split chunks one document.
func (c *ParagraphChunker) Split(text string) []string {
	text = strings.ReplaceAll(text, "\r", "")

	var chunks []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		runes := []rune(para)
		if len(runes) <= c.maxChars {
			chunks = append(chunks, para)
			continue
		}

		start := 0
		for start < len(runes) {
			end := start + c.maxChars
			if end > len(runes) {
				end = len(runes)
			}
			chunks = append(chunks, string(runes[start:end]))
			if end == len(runes) {
				break
			}
			start = end - c.overlap
		}
	}
	return chunks
}
