// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package chunker splits rendered documents into size-bounded pieces.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultChunkOverlap is the default overlap between chunks in characters.
const DefaultChunkOverlap = 200

var blankLines = regexp.MustCompile(`\n[ \t]*\n`)

// Split breaks text into chunks of at most maxChars runes. Paragraphs (blank
// line separated) are packed together while they fit; a paragraph that is too
// long is packed line by line, and a single line that is still too long is cut
// at rune boundaries. Joining separators are dropped at chunk edges.
func Split(text string, maxChars int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if maxChars <= 0 || runeLen(text) <= maxChars {
		return []string{text}
	}

	var p packer
	p.max = maxChars
	for _, para := range blankLines.Split(text, -1) {
		if strings.TrimSpace(para) == "" {
			continue
		}
		if runeLen(para) <= maxChars {
			p.add(para, "\n\n")
			continue
		}
		for _, line := range strings.Split(para, "\n") {
			if runeLen(line) <= maxChars {
				p.add(line, "\n")
				continue
			}
			for _, piece := range hardSplit(line, maxChars) {
				p.add(piece, "")
			}
		}
	}
	return p.done()
}

type packer struct {
	max    int
	cur    strings.Builder
	curLen int
	chunks []string
}

func (p *packer) add(s, sep string) {
	n := runeLen(s)
	if p.curLen > 0 && p.curLen+runeLen(sep)+n <= p.max {
		p.cur.WriteString(sep)
		p.cur.WriteString(s)
		p.curLen += runeLen(sep) + n
		return
	}
	p.flush()
	p.cur.WriteString(s)
	p.curLen = n
}

func (p *packer) flush() {
	if p.curLen > 0 {
		p.chunks = append(p.chunks, p.cur.String())
	}
	p.cur.Reset()
	p.curLen = 0
}

func (p *packer) done() []string {
	p.flush()
	return p.chunks
}

func hardSplit(s string, size int) []string {
	r := []rune(s)
	var out []string
	for start := 0; start < len(r); start += size {
		end := min(start+size, len(r))
		out = append(out, string(r[start:end]))
	}
	return out
}

// Fixed splits text into fixed-size rune windows with the given overlap. If
// overlap < 0 or >= size, DefaultChunkOverlap is used (clamped to < size).
func Fixed(text string, size, overlap int) []string {
	if size <= 0 || text == "" {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 4
		}
	}

	r := []rune(text)
	step := size - overlap
	if step <= 0 {
		step = 1
	}

	var chunks []string
	for start := 0; start < len(r); start += step {
		end := min(start+size, len(r))
		chunks = append(chunks, string(r[start:end]))
		if end == len(r) {
			break
		}
	}
	return chunks
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
