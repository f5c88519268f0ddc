package extract

import (
	"regexp"
	"unicode"
	"unicode/utf8"
)

// Chunk is a slice of the document sent to the model in one request
type Chunk struct {
	Index  int
	Offset int // Byte offset of Text in the document
	Text   string
}

// End returns the byte offset just past the chunk
func (c Chunk) End() int {
	return c.Offset + len(c.Text)
}

var paragraphBreak = regexp.MustCompile(`\r?\n[ \t]*\r?\n`)

type span struct{ start, end int }

// SplitChunks packs blank-line separated paragraphs into chunks of at most
// maxChars bytes. Chunk text is a verbatim slice of the document, so offsets
// stay valid. A paragraph longer than maxChars is split at the last sentence
// end before the limit, or cut hard when it has none.
func SplitChunks(text string, maxChars int) []Chunk {
	if maxChars <= 0 {
		maxChars = 10000
	}

	var chunks []Chunk
	emit := func(s span) {
		chunks = append(chunks, Chunk{Index: len(chunks), Offset: s.start, Text: text[s.start:s.end]})
	}

	cur := span{start: -1}
	for _, p := range paragraphs(text) {
		if p.end-p.start > maxChars {
			if cur.start >= 0 {
				emit(cur)
				cur.start = -1
			}
			for _, piece := range splitOversize(text, p, maxChars) {
				emit(piece)
			}
			continue
		}

		if cur.start >= 0 && p.end-cur.start > maxChars {
			emit(cur)
			cur.start = -1
		}
		if cur.start < 0 {
			cur.start = p.start
		}
		cur.end = p.end
	}
	if cur.start >= 0 {
		emit(cur)
	}

	return chunks
}

// paragraphs returns the non-blank paragraphs of text with surrounding whitespace excluded
func paragraphs(text string) []span {
	var out []span
	prev := 0
	add := func(start, end int) {
		start, end = trimSpan(text, start, end)
		if start < end {
			out = append(out, span{start, end})
		}
	}

	for _, m := range paragraphBreak.FindAllStringIndex(text, -1) {
		add(prev, m[0])
		prev = m[1]
	}
	add(prev, len(text))

	return out
}

func trimSpan(text string, start, end int) (int, int) {
	for start < end {
		r, size := utf8.DecodeRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		start += size
	}
	for end > start {
		r, size := utf8.DecodeLastRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		end -= size
	}
	return start, end
}

func splitOversize(text string, p span, maxChars int) []span {
	var pieces []span

	start := p.start
	for start < p.end {
		if p.end-start <= maxChars {
			pieces = append(pieces, span{start, p.end})
			break
		}

		limit := start + maxChars
		cut := lastSentenceEnd(text[start:limit])
		if cut <= 0 {
			cut = limit
			for cut > start && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == start {
				cut = limit
			}
		} else {
			cut += start
		}

		s, e := trimSpan(text, start, cut)
		if s < e {
			pieces = append(pieces, span{s, e})
		}
		start, _ = trimSpan(text, cut, p.end)
	}

	return pieces
}

// lastSentenceEnd returns the index just past the last ".", "!" or "?" that
// is followed by whitespace, or -1
func lastSentenceEnd(s string) int {
	for i := len(s) - 2; i > 0; i-- {
		switch s[i] {
		case '.', '!', '?':
			if s[i+1] == ' ' || s[i+1] == '\n' || s[i+1] == '\t' || s[i+1] == '\r' {
				return i + 1
			}
		}
	}
	return -1
}
