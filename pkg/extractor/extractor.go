// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package extractor renders supported document formats as Markdown, AI
// Markdown, plain text or structured JSON.
//
// Each format has one Handler. Handlers are created per call by a Factory
// resolved from the format registry, which RegisterAll populates explicitly.
package extractor

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/leseb/filereader/pkg/core/options"
	"github.com/leseb/filereader/pkg/intelligence"
	"github.com/leseb/filereader/pkg/observability/logging"
	"github.com/leseb/filereader/pkg/provider"
)

// Handler reads one file and returns its rendering.
type Handler interface {
	Read(path string) (string, error)
}

// Factory creates a Handler bound to a copy of the options.
type Factory func(opts options.Options, logger *slog.Logger) Handler

// Registry maps file extensions to handler factories.
type Registry = provider.Registry[Factory]

// Document type tokens reported in metadata.
const (
	DocCSV   = "csv_dataset"
	DocDOCX  = "docx_document"
	DocExcel = "excel_workbook"
	DocJSON  = "json_data"
	DocXML   = "xml_document"
	DocYAML  = "yaml_config"
	DocText  = "text_document"
	DocPDF   = "pdf_document"
)

// NewRegistry returns a registry populated with every built-in handler.
func NewRegistry(opts options.Options) *Registry {
	reg := provider.NewRegistry[Factory]("format")
	RegisterAll(reg, opts)
	return reg
}

// RegisterAll registers every built-in handler. The Word handler is chosen by
// opts.DocxStrategy; exactly one strategy is registered per extension.
func RegisterAll(reg *Registry, opts options.Options) {
	reg.Register("csv", NewCSV)
	reg.Register("json", NewJSON)
	reg.Register("xml", NewXML)
	reg.Register("yaml", NewYAML)
	reg.Register("yml", NewYAML)
	reg.Register("txt", NewText)
	reg.Register("default", NewText)
	reg.Register("pdf", NewPDF)
	reg.Register("xlsx", NewSpreadsheet)
	reg.Register("xlsm", NewSpreadsheet)
	reg.Register("xls", NewSpreadsheet)

	docx := docxFactory(opts.DocxStrategy)
	reg.Register("docx", docx)
	reg.Register("docm", docx)
}

// UseDocxStrategy swaps the registered Word handler.
func UseDocxStrategy(reg *Registry, strategy options.DocxStrategy) {
	f := docxFactory(strategy)
	reg.Replace("docx", f)
	reg.Replace("docm", f)
}

func docxFactory(strategy options.DocxStrategy) Factory {
	if strategy == options.DocxConverter {
		return NewDocxConverter
	}
	return NewDocx
}

// base carries what every handler shares.
type base struct {
	opts   options.Options
	logger *slog.Logger
	post   intelligence.Postprocessor
}

func newBase(opts options.Options, logger *slog.Logger) base {
	return base{
		opts:   opts,
		logger: logging.OrDiscard(logger),
		post:   intelligence.NewPostprocessor(opts),
	}
}

// finish runs the shared AI formatting and JSON wrapping steps.
func (b base) finish(content, path, docType string) (string, error) {
	return b.post.Finish(content, path, docType)
}

// IsFileAccessError reports whether err means the file itself could not be
// read. Such errors are never turned into fallback documents.
func IsFileAccessError(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission)
}

func fileName(path string) string {
	return intelligence.SourceName(path)
}

func fence(lang, body string) string {
	return "```" + lang + "\n" + body + "\n```"
}

// tableRow renders cells as a Markdown table row.
func tableRow(cells []string) string {
	return "| " + strings.Join(cells, " | ") + " |"
}

func separatorRow(n int) string {
	cells := make([]string, n)
	for i := range cells {
		cells[i] = "---"
	}
	return tableRow(cells)
}

// markdownTable renders header and rows without a trailing newline. Cells are
// written as given.
func markdownTable(header []string, rows [][]string) string {
	lines := make([]string, 0, len(rows)+2)
	lines = append(lines, tableRow(header), separatorRow(len(header)))
	for _, r := range rows {
		lines = append(lines, tableRow(fitRow(r, len(header))))
	}
	return strings.Join(lines, "\n")
}

// fitRow pads or truncates r to n cells.
func fitRow(r []string, n int) []string {
	if len(r) == n {
		return r
	}
	out := make([]string, n)
	copy(out, r)
	return out
}

// fallbackDocument describes a file that could not be processed.
func fallbackDocument(title, path string, err error) string {
	return fmt.Sprintf("## ❌ %s\n\n**File:** %s\n**Error:** %v\n\nUnable to process document. Please check file format and try again.\n",
		title, fileName(path), err)
}

// parseErrorDocument keeps the raw content of a file whose format could not be
// parsed, under a banner naming the error.
func parseErrorDocument(format, lang, path string, err error, raw string) string {
	return fmt.Sprintf("## ❌ %s Parse Error\n\n**File:** %s\n**Error:** %v\n\n%s",
		format, fileName(path), err, fence(lang, raw))
}
