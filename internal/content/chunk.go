package content

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ContinuationNote is appended to every chunk after the first.
const ContinuationNote = "\n\nNote: This is part of a larger content. Please focus on extracting and analyzing the information from this part."

const (
	DefaultChunkTokens   = 2000
	DefaultCharsPerToken = 4
)

// Chunker splits text into pieces of at most MaxTokens*CharsPerToken runes,
// preferring paragraph, then sentence, then word boundaries.
type Chunker struct {
	MaxTokens     int
	CharsPerToken int
}

func NewChunker(maxTokens, charsPerToken int) Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultChunkTokens
	}
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	return Chunker{MaxTokens: maxTokens, CharsPerToken: charsPerToken}
}

// MaxChars is the per-chunk rune budget.
func (c Chunker) MaxChars() int {
	d := NewChunker(c.MaxTokens, c.CharsPerToken)
	return d.MaxTokens * d.CharsPerToken
}

// Split returns a single-element slice when text already fits.
func (c Chunker) Split(text string) []string {
	maxChars := c.MaxChars()
	if utf8.RuneCountInString(text) <= maxChars {
		return []string{text}
	}

	b := &chunkBuilder{max: maxChars}
	for _, paragraph := range strings.Split(text, "\n\n") {
		if utf8.RuneCountInString(paragraph) <= maxChars {
			b.add(paragraph, "\n\n")
			continue
		}
		for _, sentence := range splitSentences(paragraph) {
			if utf8.RuneCountInString(sentence) <= maxChars {
				b.add(sentence, " ")
				continue
			}
			for _, word := range strings.Fields(sentence) {
				for _, piece := range splitRunes(word, maxChars) {
					b.add(piece, " ")
				}
			}
		}
	}
	return b.finish()
}

// AnnotateChunks appends the continuation note to every chunk but the first.
func AnnotateChunks(chunks []string) []string {
	out := make([]string, len(chunks))
	for i, chunk := range chunks {
		if i == 0 {
			out[i] = chunk
			continue
		}
		out[i] = chunk + ContinuationNote
	}
	return out
}

type chunkBuilder struct {
	max     int
	current strings.Builder
	size    int
	chunks  []string
}

func (b *chunkBuilder) add(unit, sep string) {
	if strings.TrimSpace(unit) == "" {
		return
	}
	n := utf8.RuneCountInString(unit)
	if b.size > 0 && b.size+utf8.RuneCountInString(sep)+n > b.max {
		b.flush()
	}
	if b.size > 0 {
		b.current.WriteString(sep)
		b.size += utf8.RuneCountInString(sep)
	}
	b.current.WriteString(unit)
	b.size += n
}

func (b *chunkBuilder) flush() {
	if b.size == 0 {
		return
	}
	b.chunks = append(b.chunks, b.current.String())
	b.current.Reset()
	b.size = 0
}

func (b *chunkBuilder) finish() []string {
	b.flush()
	return b.chunks
}

// splitSentences cuts after '.', '!' or '?' when followed by whitespace.
// The whitespace between sentences is dropped.
func splitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		out = append(out, string(runes[start:i+1]))
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

func splitRunes(word string, max int) []string {
	runes := []rune(word)
	if len(runes) <= max {
		return []string{word}
	}
	var out []string
	for len(runes) > max {
		out = append(out, string(runes[:max]))
		runes = runes[max:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}
