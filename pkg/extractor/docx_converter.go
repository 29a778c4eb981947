// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package extractor

import (
	"bytes"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	mdbase "github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/dustin/go-humanize"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/leseb/filereader/pkg/core/options"
	"github.com/leseb/filereader/pkg/extractor/mdpost"
)

// DocxConverter renders Word documents by converting them to HTML and the
// HTML to Markdown, then cleaning the Markdown up.
type DocxConverter struct {
	base
	tuning    docxTuning
	policy    *bluemonday.Policy
	converter *converter.Converter
}

// NewDocxConverter is the Factory for the converter Word strategy.
func NewDocxConverter(opts options.Options, logger *slog.Logger) Handler {
	return &DocxConverter{
		base:   newBase(opts, logger),
		tuning: docxTuningFromEnv(),
		policy: converterPolicy(),
		converter: converter.NewConverter(
			converter.WithPlugins(
				mdbase.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

var codeLanguageClass = regexp.MustCompile(`^language-[a-z]+$`)

// converterPolicy is the UGC policy plus the fence language class on <code>.
func converterPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(codeLanguageClass).OnElements("code")
	return p
}

// Read implements Handler.
func (h *DocxConverter) Read(path string) (string, error) {
	pkg, err := openDocx(path)
	if err != nil {
		if IsFileAccessError(err) {
			return "", err
		}
		h.logger.Error("invalid Word document", "file", fileName(path), "error", err)
		return fallbackDocument("Processing Error", path, err), nil
	}
	defer pkg.Close()

	if !hasDocxSuffix(path) {
		return unsupportedWordFormat(path), nil
	}

	blocks, err := pkg.body()
	if err != nil {
		h.logger.Error("failed to read Word document", "file", fileName(path), "error", err)
		return fallbackDocument("Processing Error", path, err), nil
	}
	styles := pkg.styles()

	var out string
	switch h.opts.OutputFormat {
	case options.FormatMarkdown, options.FormatMarkdownAI:
		md, err := h.toMarkdown(blocks, styles, pkg.hyperlinks())
		if err != nil {
			h.logger.Error("Word conversion failed", "file", fileName(path), "error", err)
			return fallbackDocument("Conversion Error", path, err), nil
		}
		out = md
		if h.opts.IsAI() {
			out = converterAIHeader(buildDocxStructure(blocks, styles, h.tuning), path) + md
		}
	default:
		out = formatDocxPlain(buildDocxStructure(blocks, styles, h.tuning))
	}
	if h.opts.ProcessingImages {
		out += "\n\n" + mediaInventory(pkg.media())
	}
	return h.finish(out, path, DocDOCX)
}

func (h *DocxConverter) toMarkdown(blocks []docxBlock, styles map[string]string, links map[string]string) (string, error) {
	raw, err := docxHTML(blocks, styles, links, h.tuning)
	if err != nil {
		return "", fmt.Errorf("render HTML: %w", err)
	}
	md, err := h.converter.ConvertString(h.policy.Sanitize(raw))
	if err != nil {
		return "", fmt.Errorf("convert HTML to Markdown: %w", err)
	}
	return mdpost.Pipeline(md), nil
}

func converterAIHeader(doc DocxStructure, path string) string {
	lines := []string{
		"## 📝 Word Document Analysis",
		"- **File:** " + fileName(path),
		fmt.Sprintf("- **Content:** %d paragraphs, %s words, %d tables",
			len(doc.Paragraphs), humanize.Comma(int64(doc.TotalWords)), len(doc.Tables)),
	}
	if doc.Truncated {
		lines = append(lines, "- **Note:** Document truncated due to size limits")
	}
	return strings.Join(lines, "\n") + "\n\n### 📖 Document Content\n\n"
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

var headingAtoms = [...]atom.Atom{atom.H1, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6}

// docxHTML builds an HTML fragment for the document body.
func docxHTML(blocks []docxBlock, styles, links map[string]string, tuning docxTuning) (string, error) {
	root := element(atom.Div)
	var (
		list    *html.Node
		paraIdx int
		tblIdx  int
		seen    = make(map[uint64]bool)
	)

	for _, b := range blocks {
		if b.Paragraph == nil {
			list = nil
			if tblIdx >= DocxMaxTables {
				continue
			}
			tblIdx++
			fp, ok := tableFingerprint(b.Table)
			if ok && seen[fp] {
				continue
			}
			if t := normalizeDocxTable(b.Table); t != nil {
				root.AppendChild(tableNode(t))
				if ok {
					seen[fp] = true
				}
			}
			continue
		}

		if paraIdx >= DocxMaxParagraphs {
			continue
		}
		paraIdx++

		text := strings.TrimSpace(b.Paragraph.Text())
		if text == "" {
			continue
		}
		kind := tuning.detect(text)
		level := HeadingLevel(styleName(styles, b.Paragraph.StyleID), text)

		switch {
		case level > 0:
			list = nil
			h := element(headingAtoms[level])
			appendRuns(h, b.Paragraph.Runs, links)
			root.AppendChild(h)
		case kind == ContentListItem:
			if list == nil {
				list = element(atom.Ul)
				root.AppendChild(list)
			}
			li := element(atom.Li)
			li.AppendChild(textNode(strings.TrimSpace(strings.TrimLeft(text, "-*•"))))
			list.AppendChild(li)
		case kind.isBlock():
			list = nil
			pre := element(atom.Pre)
			var code *html.Node
			if lang := kind.fenceLang(); lang != "" {
				code = element(atom.Code, html.Attribute{Key: "class", Val: "language-" + lang})
			} else {
				code = element(atom.Code)
			}
			code.AppendChild(textNode(text))
			pre.AppendChild(code)
			root.AppendChild(pre)
		default:
			list = nil
			p := element(atom.P)
			appendRuns(p, b.Paragraph.Runs, links)
			root.AppendChild(p)
		}
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// appendRuns adds the formatted runs of a paragraph to parent. Line breaks
// inside a run become <br> elements.
func appendRuns(parent *html.Node, runs []docxRun, links map[string]string) {
	for _, r := range runs {
		if r.Text == "" {
			continue
		}
		target := parent
		if href := runLink(r, links); href != "" {
			a := element(atom.A, html.Attribute{Key: "href", Val: href})
			parent.AppendChild(a)
			target = a
		}
		if r.Bold {
			strong := element(atom.Strong)
			target.AppendChild(strong)
			target = strong
		}
		if r.Italic {
			em := element(atom.Em)
			target.AppendChild(em)
			target = em
		}
		for i, line := range strings.Split(r.Text, "\n") {
			if i > 0 {
				target.AppendChild(element(atom.Br))
			}
			if line != "" {
				target.AppendChild(textNode(line))
			}
		}
	}
}

func runLink(r docxRun, links map[string]string) string {
	if r.LinkID != "" {
		return links[r.LinkID]
	}
	if r.Anchor != "" {
		return "#" + r.Anchor
	}
	return ""
}

func tableNode(rows [][]string) *html.Node {
	tbl := element(atom.Table)
	thead := element(atom.Thead)
	tbody := element(atom.Tbody)
	tbl.AppendChild(thead)
	tbl.AppendChild(tbody)

	for i, row := range rows {
		tr := element(atom.Tr)
		cellAtom := atom.Td
		if i == 0 {
			cellAtom = atom.Th
			thead.AppendChild(tr)
		} else {
			tbody.AppendChild(tr)
		}
		for _, cell := range row {
			c := element(cellAtom)
			c.AppendChild(textNode(cell))
			tr.AppendChild(c)
		}
	}
	return tbl
}
