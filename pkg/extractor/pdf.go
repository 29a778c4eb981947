// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package extractor

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/leseb/filereader/pkg/core/options"
)

// PDF renders the text layer of PDF documents page by page.
type PDF struct {
	base
}

// NewPDF is the Factory for pdf files.
func NewPDF(opts options.Options, logger *slog.Logger) Handler {
	return &PDF{base: newBase(opts, logger)}
}

// PDFPage is one page with extractable text.
type PDFPage struct {
	Number    int
	Text      string
	WordCount int
}

// PDFInfo holds the document information dictionary and page count.
type PDFInfo struct {
	Pages   int
	Title   string
	Author  string
	Subject string
	Creator string
}

// Read implements Handler.
func (h *PDF) Read(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return "", err
	}

	info, pages, raw, err := extractPDFPages(f, st.Size())
	if err != nil {
		h.logger.Warn("failed to read PDF", "file", fileName(path), "error", err)
		return h.finish(fallbackDocument("PDF Processing Error", path, err), path, DocPDF)
	}

	var out string
	if h.opts.IsAI() {
		out = formatAIPDF(pages, info, path)
	} else {
		out = strings.TrimSpace(raw)
		if h.opts.OutputFormat == options.FormatMarkdown {
			out = fence("pdf", out)
		}
	}

	if h.opts.ProcessingImages {
		if inv := h.imageInventory(f); inv != "" {
			out += "\n\n" + inv
		}
	}
	return h.finish(out, path, DocPDF)
}

// extractPDFPages reads every page. Pages without text are skipped; raw holds
// the concatenated text of all pages.
func extractPDFPages(r io.ReaderAt, size int64) (info PDFInfo, pages []PDFPage, raw string, err error) {
	// ledongthuc/pdf panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed PDF: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return PDFInfo{}, nil, "", fmt.Errorf("open PDF: %w", err)
	}

	info = readPDFInfo(reader)
	info.Pages = reader.NumPage()

	var sb strings.Builder
	for i := 1; i <= info.Pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, PDFPage{
			Number:    i,
			Text:      strings.TrimSpace(text),
			WordCount: len(strings.Fields(text)),
		})
	}
	return info, pages, sb.String(), nil
}

func readPDFInfo(r *pdf.Reader) PDFInfo {
	dict := r.Trailer().Key("Info")
	get := func(key, def string) string {
		if v := strings.TrimSpace(dict.Key(key).Text()); v != "" {
			return v
		}
		return def
	}
	return PDFInfo{
		Title:   get("Title", "Unknown"),
		Author:  get("Author", "Unknown"),
		Subject: get("Subject", ""),
		Creator: get("Creator", ""),
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func formatAIPDF(pages []PDFPage, info PDFInfo, path string) string {
	totalWords := 0
	for _, p := range pages {
		totalWords += p.WordCount
	}
	avg := 0
	if len(pages) > 0 {
		avg = totalWords / len(pages)
	}

	var b strings.Builder
	b.WriteString("## 📄 PDF Document Analysis\n")
	fmt.Fprintf(&b, "- **File:** %s\n", fileName(path))
	fmt.Fprintf(&b, "- **Title:** %s\n", info.Title)
	fmt.Fprintf(&b, "- **Author:** %s\n", info.Author)
	fmt.Fprintf(&b, "- **Pages:** %d\n", len(pages))
	fmt.Fprintf(&b, "- **Total Words:** %s\n", humanize.Comma(int64(totalWords)))
	fmt.Fprintf(&b, "- **Average Words/Page:** %d\n\n", avg)

	if len(pages) > 5 {
		var first []string
		for _, p := range pages[:3] {
			first = append(first, truncateRunes(p.Text, 200))
		}
		b.WriteString("### 🎯 Executive Summary (First 3 Pages)\n")
		b.WriteString(strings.Join(first, " ") + "...\n\n")
		b.WriteString("### 📊 Document Structure\n")
		for _, p := range pages {
			preview := strings.ReplaceAll(truncateRunes(p.Text, 100), "\n", " ")
			fmt.Fprintf(&b, "- **Page %d** (%d words): %s...\n", p.Number, p.WordCount, preview)
		}
		b.WriteString("\n### 📖 Full Content\n")
	}

	sections := make([]string, 0, len(pages))
	for _, p := range pages {
		sections = append(sections, fmt.Sprintf("#### 📄 Page %d (%d words)\n%s", p.Number, p.WordCount, p.Text))
	}
	b.WriteString(strings.Join(sections, "\n\n"))
	return b.String()
}

// imageInventory counts image XObjects per page. Errors only drop the
// inventory; the text rendering is kept.
func (h *PDF) imageInventory(rs io.ReadSeeker) (inv string) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Debug("image inventory failed", "error", rec)
			inv = ""
		}
	}()

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return ""
	}
	ctx, err := api.ReadValidateAndOptimize(rs, model.NewDefaultConfiguration())
	if err != nil {
		h.logger.Debug("image inventory failed", "error", err)
		return ""
	}

	var b strings.Builder
	total := 0
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		n := len(pdfcpu.ImageObjNrs(ctx, pageNr))
		if n == 0 {
			continue
		}
		total += n
		fmt.Fprintf(&b, "- Page %d: %d image(s)\n", pageNr, n)
	}
	if total == 0 {
		return "### 🖼️ Images\nNo embedded images found."
	}
	return fmt.Sprintf("### 🖼️ Images\n- **Total:** %d\n%s", total, strings.TrimSuffix(b.String(), "\n"))
}
