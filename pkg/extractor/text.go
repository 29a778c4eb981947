// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package extractor

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/leseb/filereader/pkg/core/options"
)

// Text renders plain text files, detecting headings and lists in AI mode.
type Text struct {
	base
}

// NewText is the Factory for txt files and the default handler.
func NewText(opts options.Options, logger *slog.Logger) Handler {
	return &Text{base: newBase(opts, logger)}
}

// Text structure classes.
const (
	StructureStructured     = "structured"
	StructureSemiStructured = "semi_structured"
	StructureUnstructured   = "unstructured"
)

// TextAnalysis describes the layout of a plain text document.
type TextAnalysis struct {
	TotalLines        int
	NonEmptyLines     int
	TotalWords        int
	TotalChars        int
	Paragraphs        []string
	PotentialHeadings []string
	Lists             [][]string
	StructureType     string
}

var (
	numberedLine  = regexp.MustCompile(`^\d+\.?\s+`)
	capitalNoStop = regexp.MustCompile(`^[A-Z][^.!?]*$`)
	listPatterns  = []*regexp.Regexp{
		regexp.MustCompile(`^\s*[-*•]\s+`),
		regexp.MustCompile(`^\s*\d+\.?\s+`),
		regexp.MustCompile(`^\s*[a-zA-Z]\.?\s+`),
	}
)

// Read implements Handler.
func (h *Text) Read(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	content := string(raw)

	var out string
	switch {
	case h.opts.IsAI():
		out = formatAIText(content, AnalyzeText(content), path)
	case h.opts.OutputFormat == options.FormatMarkdown:
		out = fence("text", content)
	default:
		out = content
	}
	return h.finish(out, path, DocText)
}

// IsUpper reports whether s has at least one cased letter and no lower-case
// letters.
func IsUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}

// IsTitle reports whether every word of s starts with an upper-case letter
// followed only by lower-case letters.
func IsTitle(s string) bool {
	cased, prevCased := false, false
	for _, r := range s {
		switch {
		case unicode.IsUpper(r) || unicode.IsTitle(r):
			if prevCased {
				return false
			}
			prevCased, cased = true, true
		case unicode.IsLower(r):
			if !prevCased {
				return false
			}
			prevCased, cased = true, true
		default:
			prevCased = false
		}
	}
	return cased
}

// IsTextHeading applies the plain-text heading heuristic to a trimmed line.
func IsTextHeading(line string) bool {
	if line == "" || utf8.RuneCountInString(line) >= 100 {
		return false
	}
	return IsUpper(line) ||
		strings.HasSuffix(line, ":") ||
		numberedLine.MatchString(line) ||
		capitalNoStop.MatchString(line)
}

func isListLine(line string) bool {
	for _, re := range listPatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// AnalyzeText segments content into paragraphs, headings and lists.
func AnalyzeText(content string) TextAnalysis {
	lines := strings.Split(content, "\n")
	a := TextAnalysis{
		TotalLines:    len(lines),
		TotalWords:    len(strings.Fields(content)),
		TotalChars:    utf8.RuneCountInString(content),
		StructureType: StructureUnstructured,
	}

	var para []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			a.NonEmptyLines++
			para = append(para, line)
			if IsTextHeading(line) {
				a.PotentialHeadings = append(a.PotentialHeadings, line)
			}
			continue
		}
		if len(para) > 0 {
			a.Paragraphs = append(a.Paragraphs, strings.Join(para, " "))
			para = nil
		}
	}
	if len(para) > 0 {
		a.Paragraphs = append(a.Paragraphs, strings.Join(para, " "))
	}

	var list []string
	for _, line := range lines {
		if isListLine(line) {
			list = append(list, strings.TrimSpace(line))
			continue
		}
		if len(list) >= 2 {
			a.Lists = append(a.Lists, list)
		}
		list = nil
	}
	if len(list) >= 2 {
		a.Lists = append(a.Lists, list)
	}

	switch {
	case len(a.PotentialHeadings) > 0:
		a.StructureType = StructureStructured
	case len(a.Lists) > 0:
		a.StructureType = StructureSemiStructured
	}
	return a
}

func formatAIText(content string, a TextAnalysis, path string) string {
	var b strings.Builder
	b.WriteString("## 📄 Text Document Analysis\n")
	fmt.Fprintf(&b, "- **File:** %s\n", fileName(path))
	fmt.Fprintf(&b, "- **Structure Type:** %s\n", titleCaser.String(strings.ReplaceAll(a.StructureType, "_", " ")))
	fmt.Fprintf(&b, "- **Lines:** %d total, %d with content\n", a.TotalLines, a.NonEmptyLines)
	fmt.Fprintf(&b, "- **Words:** %s\n", humanize.Comma(int64(a.TotalWords)))
	fmt.Fprintf(&b, "- **Characters:** %s\n", humanize.Comma(int64(a.TotalChars)))
	fmt.Fprintf(&b, "- **Paragraphs:** %d\n\n", len(a.Paragraphs))

	if n := len(a.PotentialHeadings); n > 0 {
		b.WriteString("### 🗂️ Detected Structure\n")
		for _, heading := range a.PotentialHeadings[:min(n, 10)] {
			fmt.Fprintf(&b, "- %s\n", heading)
		}
		if n > 10 {
			fmt.Fprintf(&b, "- ... and %d more sections\n", n-10)
		}
		b.WriteString("\n")
	}

	if len(a.Lists) > 0 {
		b.WriteString("### 📋 Detected Lists\n")
		fmt.Fprintf(&b, "Found %d structured lists in the document.\n\n", len(a.Lists))
	}

	b.WriteString("### 📖 Document Content\n\n")
	if a.StructureType == StructureStructured {
		b.WriteString(structuredText(content, a))
	} else {
		b.WriteString(unstructuredText(content, a))
	}
	return b.String()
}

// structuredText turns detected headings into Markdown headings: all caps
// become ##, colon-terminated ###, numbered ####, anything else ###.
func structuredText(content string, a TextAnalysis) string {
	headings := make(map[string]bool, len(a.PotentialHeadings))
	for _, h := range a.PotentialHeadings {
		headings[h] = true
	}

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		s := strings.TrimSpace(line)
		if !headings[s] {
			continue
		}
		switch {
		case IsUpper(s):
			lines[i] = "## " + s
		case strings.HasSuffix(s, ":"):
			lines[i] = "### " + s
		case numberedLine.MatchString(s):
			lines[i] = "#### " + s
		default:
			lines[i] = "### " + s
		}
	}
	return strings.Join(lines, "\n")
}

// unstructuredText numbers paragraphs longer than 50 characters when the
// document has more than one paragraph.
func unstructuredText(content string, a TextAnalysis) string {
	if len(a.Paragraphs) <= 1 {
		return content
	}
	var parts []string
	for i, p := range a.Paragraphs {
		if utf8.RuneCountInString(p) > 50 {
			parts = append(parts, fmt.Sprintf("**Paragraph %d:**\n%s", i+1, p))
		}
	}
	return strings.Join(parts, "\n\n")
}
