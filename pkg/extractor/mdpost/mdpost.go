// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package mdpost cleans up Markdown produced by HTML conversion. Every step
// is a pure string function; Pipeline runs them in order.
package mdpost

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Step is one post-processing pass.
type Step func(md string) string

// Steps is the pipeline order.
var Steps = []Step{
	CleanSpecialCharacters,
	RelevelHeaders,
	ConvertTOC,
	MergeCodeBlocks,
	ConvertTextTables,
	NormalizeLists,
	NormalizeLinks,
	CleanEscapes,
}

// Pipeline runs every step and trims the result.
func Pipeline(md string) string {
	for _, step := range Steps {
		md = step(md)
	}
	return strings.TrimSpace(md)
}

var fenceLine = regexp.MustCompile("^\\s*(```|~~~)")

// mapLines applies fn to every line outside fenced code blocks.
func mapLines(md string, fn func(line string) string) string {
	lines := strings.Split(md, "\n")
	inFence := false
	for i, line := range lines {
		if fenceLine.MatchString(line) {
			inFence = !inFence
			continue
		}
		if !inFence {
			lines[i] = fn(line)
		}
	}
	return strings.Join(lines, "\n")
}

// fenced marks which lines belong to fenced code blocks, fences included.
func fenced(lines []string) []bool {
	out := make([]bool, len(lines))
	inFence := false
	for i, line := range lines {
		if fenceLine.MatchString(line) {
			out[i] = true
			inFence = !inFence
			continue
		}
		out[i] = inFence
	}
	return out
}

var (
	blankRuns    = regexp.MustCompile(`\n[ \t]*\n([ \t]*\n)+`)
	charReplacer = strings.NewReplacer(
		"\u200b", "", "\u200c", "", "\u200d", "", "\u2060", "", "\ufeff", "",
		"\u00a0", " ", "\u202f", " ",
		"\u201c", `"`, "\u201d", `"`, "\u201e", `"`,
		"\u2018", "'", "\u2019", "'", "\u201a", "'",
		"\r\n", "\n", "\r", "\n",
	)
)

// CleanSpecialCharacters normalizes to NFC, drops zero-width and control
// characters, turns non-breaking spaces and smart quotes into ASCII and
// collapses three or more blank lines into one.
func CleanSpecialCharacters(md string) string {
	md = charReplacer.Replace(norm.NFC.String(md))
	md = strings.Map(func(r rune) rune {
		if r != '\n' && r != '\t' && unicode.IsControl(r) {
			return -1
		}
		return r
	}, md)
	return blankRuns.ReplaceAllString(md, "\n\n")
}

var headingLine = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)

// RelevelHeaders shifts headings so the shallowest becomes level one and no
// heading is more than one level deeper than the one before it.
func RelevelHeaders(md string) string {
	lines := strings.Split(md, "\n")
	inFence := fenced(lines)

	shallowest := 7
	for i, line := range lines {
		if m := headingLine.FindStringSubmatch(line); m != nil && !inFence[i] {
			shallowest = min(shallowest, len(m[1]))
		}
	}
	if shallowest == 7 {
		return md
	}

	prev := 0
	for i, line := range lines {
		m := headingLine.FindStringSubmatch(line)
		if m == nil || inFence[i] {
			continue
		}
		level := min(len(m[1])-shallowest+1, prev+1)
		lines[i] = strings.Repeat("#", level) + " " + m[2]
		prev = level
	}
	return strings.Join(lines, "\n")
}

var (
	tocLink   = regexp.MustCompile(`^\s*(?:[-*+]\s+)?(\[[^\]]+\]\(#[^)]*\))\s*$`)
	tocDotted = regexp.MustCompile(`^\s*(.+?)\s*(?:\.{3,}|…+)\s*\d+\s*$`)
	tocNumber = regexp.MustCompile(`^\s*(\d+(?:\.\d+)*\.?\s+\S.*?)\s+\d+\s*$`)
	numbering = regexp.MustCompile(`^(\d+(?:\.\d+)*)\.?\s`)
)

const minTOCEntries = 3

// tocEntry returns the title of a table-of-contents line.
func tocEntry(line string) (string, bool) {
	for _, re := range []*regexp.Regexp{tocLink, tocDotted, tocNumber} {
		if m := re.FindStringSubmatch(line); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}

// ConvertTOC replaces runs of at least three table-of-contents lines with a
// "Table of Contents" list indented by section numbering depth.
func ConvertTOC(md string) string {
	lines := strings.Split(md, "\n")
	inFence := fenced(lines)

	var out []string
	for i := 0; i < len(lines); {
		j := i
		var entries []string
		for j < len(lines) && !inFence[j] {
			title, ok := tocEntry(lines[j])
			if !ok {
				break
			}
			entries = append(entries, title)
			j++
		}
		if len(entries) < minTOCEntries {
			out = append(out, lines[i])
			i++
			continue
		}

		out = append(out, "## Table of Contents", "")
		for _, title := range entries {
			depth := 0
			if m := numbering.FindStringSubmatch(title + " "); m != nil {
				depth = strings.Count(m[1], ".")
			}
			out = append(out, strings.Repeat("  ", depth)+"- "+title)
		}
		out = append(out, "")
		i = j
	}
	return strings.Join(out, "\n")
}

var openFence = regexp.MustCompile("^```\\s*([\\w+-]*)\\s*$")

// MergeCodeBlocks joins fenced blocks of the same language separated only by
// up to two blank lines.
func MergeCodeBlocks(md string) string {
	lines := strings.Split(md, "\n")
	var out []string
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		m := openFence.FindStringSubmatch(line)
		if m == nil {
			out = append(out, line)
			continue
		}
		lang := m[1]
		out = append(out, line)

		for {
			// copy the block body
			i++
			for i < len(lines) && strings.TrimSpace(lines[i]) != "```" {
				out = append(out, lines[i])
				i++
			}
			if i >= len(lines) {
				return strings.Join(out, "\n")
			}

			// look past the closing fence for a sibling block
			k, blanks := i+1, 0
			for k < len(lines) && strings.TrimSpace(lines[k]) == "" && blanks <= 2 {
				k++
				blanks++
			}
			if blanks <= 2 && k < len(lines) {
				if next := openFence.FindStringSubmatch(lines[k]); next != nil && next[1] == lang {
					i = k
					continue
				}
			}
			out = append(out, lines[i])
			break
		}
	}
	return strings.Join(out, "\n")
}

var (
	columnSplit = regexp.MustCompile(`\t+|\s{2,}`)
	listMarker  = regexp.MustCompile(`^([-*+•]|\d+[.)])\s`)
)

// textColumns splits a line aligned with tabs or runs of spaces.
func textColumns(line string) []string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "|") || strings.HasPrefix(trimmed, "#") ||
		strings.HasPrefix(line, "    ") || strings.HasPrefix(trimmed, ">") || listMarker.MatchString(trimmed) {
		return nil
	}
	cols := columnSplit.Split(trimmed, -1)
	if len(cols) < 2 {
		return nil
	}
	return cols
}

// ConvertTextTables turns runs of two or more lines with the same number of
// aligned columns into Markdown tables.
func ConvertTextTables(md string) string {
	lines := strings.Split(md, "\n")
	inFence := fenced(lines)

	var out []string
	for i := 0; i < len(lines); {
		cols := textColumns(lines[i])
		if inFence[i] || cols == nil {
			out = append(out, lines[i])
			i++
			continue
		}
		rows := [][]string{cols}
		j := i + 1
		for j < len(lines) && !inFence[j] {
			next := textColumns(lines[j])
			if len(next) != len(cols) {
				break
			}
			rows = append(rows, next)
			j++
		}
		if len(rows) < 2 {
			out = append(out, lines[i])
			i++
			continue
		}

		sep := make([]string, len(cols))
		for k := range sep {
			sep[k] = "---"
		}
		out = append(out, tableLine(rows[0]), tableLine(sep))
		for _, r := range rows[1:] {
			out = append(out, tableLine(r))
		}
		i = j
	}
	return strings.Join(out, "\n")
}

func tableLine(cells []string) string {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = strings.ReplaceAll(c, "|", `\|`)
	}
	return "| " + strings.Join(escaped, " | ") + " |"
}

var (
	bulletItem  = regexp.MustCompile(`^(\s*)[*+•]\s+`)
	parenNumber = regexp.MustCompile(`^(\s*)(\d+)\)\s+`)
	ruleLine    = regexp.MustCompile(`^\s*([*_-])(\s*([*_-]))+\s*$`)
)

// NormalizeLists uses "-" for every bullet and "1." for every numbered item.
func NormalizeLists(md string) string {
	return mapLines(md, func(line string) string {
		if ruleLine.MatchString(line) {
			return line
		}
		line = bulletItem.ReplaceAllString(line, "${1}- ")
		return parenNumber.ReplaceAllString(line, "${1}${2}. ")
	})
}

var bareURL = regexp.MustCompile(`https?://[^\s<>()\[\]]+`)

// NormalizeLinks wraps bare URLs in angle brackets. Autolinks and Markdown
// links are left alone.
func NormalizeLinks(md string) string {
	return mapLines(md, func(line string) string {
		matches := bareURL.FindAllStringIndex(line, -1)
		if matches == nil {
			return line
		}
		var b strings.Builder
		last := 0
		for _, m := range matches {
			start, end := m[0], m[1]
			for end > start && strings.ContainsRune(".,;:!?'\"", rune(line[end-1])) {
				end--
			}
			if start > 0 && strings.ContainsRune("(<[`", rune(line[start-1])) {
				continue
			}
			b.WriteString(line[last:start])
			b.WriteString("<" + line[start:end] + ">")
			last = end
		}
		b.WriteString(line[last:])
		return b.String()
	})
}

var (
	escapeInWord   = regexp.MustCompile(`([\p{L}\p{N}])\\([._()\-])([\p{L}\p{N}])`)
	escapeLeading  = regexp.MustCompile(`^(\s*)\\([()])`)
	escapeDash     = regexp.MustCompile(`^(\s*)\\-(\S)`)
	escapeOrdinals = regexp.MustCompile(`^(\s*\d+)\\\.(\S)`)
)

// CleanEscapes removes backslash escapes that Markdown does not need. Pipe
// escapes are kept so tables stay intact.
func CleanEscapes(md string) string {
	return mapLines(md, func(line string) string {
		for {
			next := escapeInWord.ReplaceAllString(line, "$1$2$3")
			if next == line {
				break
			}
			line = next
		}
		line = escapeLeading.ReplaceAllString(line, "$1$2")
		line = escapeDash.ReplaceAllString(line, "$1-$2")
		return escapeOrdinals.ReplaceAllString(line, "$1.$2")
	})
}
