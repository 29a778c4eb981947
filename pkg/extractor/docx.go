// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package extractor

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/leseb/filereader/pkg/core/options"
)

// Word document limits.
const (
	DocxMaxParagraphs  = 5000
	DocxMaxTables      = 50
	DocxMaxTableRows   = 100
	DocxMaxTableCols   = 10
	DocxMaxCellLength  = 50
	docxMaxBlockChars  = 10000
	docxMaxRenderRows  = 20
	docxMaxRenderCell  = 100
	docxMaxTablesShown = 10
)

// Docx renders Word documents from their paragraph and table structure.
type Docx struct {
	base
	tuning docxTuning
}

// NewDocx is the Factory for the structural Word strategy.
func NewDocx(opts options.Options, logger *slog.Logger) Handler {
	return &Docx{base: newBase(opts, logger), tuning: docxTuningFromEnv()}
}

// DocxParagraph is an analyzed Word paragraph. Consolidated code blocks
// carry the joined text of every merged paragraph.
type DocxParagraph struct {
	Text        string
	Style       string
	IsHeading   bool
	Level       int
	ContentType ContentType
}

// DocxStructure is the extracted content of a Word document.
type DocxStructure struct {
	Paragraphs []DocxParagraph
	Headings   []DocxParagraph
	Tables     [][][]string
	TotalWords int
	Truncated  bool
}

// Read implements Handler.
func (h *Docx) Read(path string) (string, error) {
	pkg, err := openDocx(path)
	if err != nil {
		if IsFileAccessError(err) {
			return "", err
		}
		h.logger.Error("invalid Word document", "file", fileName(path), "error", err)
		return fallbackDocument("Processing Error", path, err), nil
	}
	defer pkg.Close()

	if pkg.complex() {
		h.logger.Warn("very complex Word document, DOCX_SAFE_MODE=true is recommended", "file", fileName(path))
	}
	if !hasDocxSuffix(path) {
		return unsupportedWordFormat(path), nil
	}

	blocks, err := pkg.body()
	if err != nil {
		h.logger.Error("failed to read Word document", "file", fileName(path), "error", err)
		return fallbackDocument("Processing Error", path, err), nil
	}
	doc := buildDocxStructure(blocks, pkg.styles(), h.tuning)

	var out string
	switch h.opts.OutputFormat {
	case options.FormatMarkdownAI:
		out = formatDocxAI(doc, path)
	case options.FormatMarkdown:
		out = formatDocxMarkdown(doc)
	default:
		out = formatDocxPlain(doc)
	}
	if h.opts.ProcessingImages {
		out += "\n\n" + mediaInventory(pkg.media())
	}
	return h.finish(out, path, DocDOCX)
}

func hasDocxSuffix(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".docx") || strings.HasSuffix(lower, ".docm")
}

func unsupportedWordFormat(path string) string {
	return fmt.Sprintf("## ❌ Unsupported Format\n\n**File:** %s\n\nOnly .docx and .docm files are supported. Please convert your document and try again.\n",
		fileName(path))
}

func mediaInventory(media []docxMedia) string {
	var b strings.Builder
	b.WriteString("### 🖼️ Embedded Images\n")
	if len(media) == 0 {
		b.WriteString("No embedded images found.")
		return b.String()
	}
	lines := make([]string, 0, len(media))
	for _, m := range media {
		lines = append(lines, fmt.Sprintf("- %s (%s)", m.Name, humanize.Bytes(m.Size)))
	}
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}

// buildDocxStructure analyzes body paragraphs, merges adjacent code-like
// paragraphs and collects distinct tables.
func buildDocxStructure(blocks []docxBlock, styles map[string]string, tuning docxTuning) DocxStructure {
	var (
		doc     DocxStructure
		current *DocxParagraph
		paraIdx int
		tblIdx  int
		seen    = make(map[uint64]bool)
	)
	flush := func() {
		if current != nil {
			doc.Paragraphs = append(doc.Paragraphs, *current)
			current = nil
		}
	}

	for _, b := range blocks {
		if b.Table != nil || b.Paragraph == nil {
			if tblIdx >= DocxMaxTables {
				continue
			}
			tblIdx++
			fp, ok := tableFingerprint(b.Table)
			if ok && seen[fp] {
				continue
			}
			if t := normalizeDocxTable(b.Table); t != nil {
				doc.Tables = append(doc.Tables, t)
				if ok {
					seen[fp] = true
				}
			}
			continue
		}

		if paraIdx >= DocxMaxParagraphs {
			doc.Truncated = true
			continue
		}
		paraIdx++

		text := strings.TrimSpace(b.Paragraph.Text())
		if text == "" {
			continue
		}
		p := analyzeDocxParagraph(text, styleName(styles, b.Paragraph.StyleID), tuning)
		words := len(strings.Fields(text))

		if tuning.consolidate() && p.ContentType.isBlock() {
			if current != nil && current.ContentType == p.ContentType &&
				utf8.RuneCountInString(current.Text)+utf8.RuneCountInString(text) < docxMaxBlockChars {
				current.Text += "\n" + text
				doc.TotalWords += words
				continue
			}
			flush()
			current = &p
			doc.TotalWords += words
			continue
		}

		flush()
		if p.IsHeading {
			doc.Headings = append(doc.Headings, p)
		}
		doc.Paragraphs = append(doc.Paragraphs, p)
		doc.TotalWords += words
	}
	flush()
	return doc
}

func styleName(styles map[string]string, id string) string {
	if name, ok := styles[id]; ok {
		return name
	}
	if id != "" {
		return id
	}
	return styles[""]
}

func analyzeDocxParagraph(text, style string, tuning docxTuning) DocxParagraph {
	level := HeadingLevel(style, text)
	return DocxParagraph{
		Text:        text,
		Style:       style,
		IsHeading:   level > 0,
		Level:       level,
		ContentType: tuning.detect(text),
	}
}

// tableFingerprint hashes the non-empty text of the first two cells of the
// first two rows. ok is false when there is nothing to hash.
func tableFingerprint(rows [][]string) (uint64, bool) {
	var sample []string
	for _, row := range rows[:min(len(rows), 2)] {
		for _, cell := range row[:min(len(row), 2)] {
			if c := truncateRunes(strings.TrimSpace(cell), 20); c != "" {
				sample = append(sample, c)
			}
		}
		if len(sample) >= 3 {
			break
		}
	}
	if len(sample) == 0 {
		return 0, false
	}
	h := fnv.New64a()
	h.Write([]byte(strings.Join(sample, "|")))
	return h.Sum64(), true
}

var cellCleaner = strings.NewReplacer("\x00", "", "\r", " ", "\n", " ")

// normalizeDocxTable applies the row, column and cell limits, drops empty
// rows and pads every row to the widest one. Nil means nothing usable.
func normalizeDocxTable(rows [][]string) [][]string {
	var table [][]string
	for i, row := range rows {
		if i >= DocxMaxTableRows {
			break
		}
		cells := make([]string, 0, min(len(row), DocxMaxTableCols))
		hasContent := false
		for _, cell := range row[:min(len(row), DocxMaxTableCols)] {
			c := truncateRunes(cellCleaner.Replace(strings.TrimSpace(cell)), DocxMaxCellLength)
			if strings.TrimSpace(c) != "" {
				hasContent = true
			}
			cells = append(cells, c)
		}
		if !hasContent {
			continue
		}
		if len(table) > 0 && len(cells) < len(table[0]) {
			cells = append(cells, make([]string, len(table[0])-len(cells))...)
		}
		table = append(table, cells)
	}
	if len(table) == 0 || len(table[0]) == 0 {
		return nil
	}

	width := 0
	for _, row := range table {
		width = max(width, len(row))
	}
	width = min(width, DocxMaxTableCols)
	for i, row := range table {
		padded := make([]string, width)
		copy(padded, row)
		table[i] = padded
	}
	return table
}

func formatDocxPlain(doc DocxStructure) string {
	texts := make([]string, 0, len(doc.Paragraphs))
	for _, p := range doc.Paragraphs {
		texts = append(texts, p.Text)
	}
	return strings.Join(texts, "\n")
}

func formatDocxAI(doc DocxStructure, path string) string {
	lines := []string{
		"## 📝 Word Document Analysis",
		"- **File:** " + fileName(path),
		fmt.Sprintf("- **Content:** %d paragraphs, %s words, %d tables",
			len(doc.Paragraphs), humanize.Comma(int64(doc.TotalWords)), len(doc.Tables)),
	}
	if doc.Truncated {
		lines = append(lines, "- **Note:** Document truncated due to size limits")
	}
	lines = append(lines, "\n### 📖 Document Content\n")
	return strings.Join(lines, "\n") + formatDocxMarkdown(doc)
}

// formatDocxMarkdown renders headings, fenced runs of code-like paragraphs,
// links, list items and, when there are at most ten, the tables.
func formatDocxMarkdown(doc DocxStructure) string {
	var (
		parts  []string
		inCode bool
		code   ContentType
	)
	closeCode := func() {
		if inCode {
			parts = append(parts, "```\n")
			inCode, code = false, ""
		}
	}

	for _, p := range doc.Paragraphs {
		switch {
		case p.IsHeading:
			closeCode()
			parts = append(parts, strings.Repeat("#", p.Level)+" "+p.Text+"\n")
		case p.ContentType.isBlock():
			if !inCode || code != p.ContentType {
				closeCode()
				parts = append(parts, "```"+p.ContentType.fenceLang())
				inCode, code = true, p.ContentType
			}
			parts = append(parts, p.Text)
		default:
			closeCode()
			switch p.ContentType {
			case ContentURL:
				parts = append(parts, fmt.Sprintf("[%s](%s)\n", p.Text, p.Text))
			case ContentListItem:
				parts = append(parts, "- "+strings.TrimSpace(strings.TrimLeft(p.Text, "- *•")))
			default:
				parts = append(parts, p.Text+"\n")
			}
		}
	}
	if inCode {
		parts = append(parts, "```")
	}

	if n := len(doc.Tables); n > 0 && n <= docxMaxTablesShown {
		parts = append(parts, "\n## Tables\n")
		for i, t := range doc.Tables {
			parts = append(parts, fmt.Sprintf("### Table %d\n", i+1))
			if md := docxTableMarkdown(t); strings.TrimSpace(md) != "" {
				parts = append(parts, md)
			} else {
				parts = append(parts, "*Table could not be processed*\n")
			}
		}
	}
	return strings.Join(parts, "\n")
}

var docxCellEscaper = strings.NewReplacer("|", `\|`, "\n", " ", "\r", " ")

// docxTableMarkdown renders up to twenty rows; the first row is the header.
func docxTableMarkdown(table [][]string) string {
	if len(table) == 0 || len(table[0]) == 0 {
		return ""
	}
	width := min(len(table[0]), DocxMaxTableCols)

	rows := make([][]string, 0, min(len(table), docxMaxRenderRows))
	for _, row := range table[:min(len(table), docxMaxRenderRows)] {
		clean := make([]string, width)
		for j, cell := range row[:min(len(row), width)] {
			c := strings.TrimSpace(docxCellEscaper.Replace(cell))
			if utf8.RuneCountInString(c) > docxMaxRenderCell {
				c = string([]rune(c)[:docxMaxRenderCell-3]) + "..."
			}
			clean[j] = c
		}
		rows = append(rows, clean)
	}

	md := markdownTable(rows[0], rows[1:]) + "\n"
	if len(rows) == 1 {
		md += "\n"
	}
	if strings.Count(md, "|") < 6 {
		return ""
	}
	return md
}
