// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package options holds the per-request rendering options shared by the
// dispatcher and every format handler.
//
// Options is a plain value: handlers receive a copy, so nothing downstream can
// change the configuration the caller built.
package options

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// OutputFormat selects the rendering produced by the handlers.
type OutputFormat string

const (
	FormatMarkdown       OutputFormat = "markdown"
	FormatMarkdownAI     OutputFormat = "markdown_ai"
	FormatPlain          OutputFormat = "plain"
	FormatStructuredJSON OutputFormat = "structured_json"
)

// OutputFormats lists every recognized output format.
var OutputFormats = []OutputFormat{FormatMarkdown, FormatMarkdownAI, FormatPlain, FormatStructuredJSON}

// DocxStrategy selects which Word handler is registered for docx/docm.
type DocxStrategy string

const (
	// DocxStructural walks the document XML and renders Markdown directly.
	DocxStructural DocxStrategy = "structural"
	// DocxConverter renders HTML, converts it to Markdown and runs the
	// Markdown post-processing pipeline.
	DocxConverter DocxStrategy = "converter"
)

// DefaultMaxChunkSize is the chunk size used when none is configured.
const DefaultMaxChunkSize = 4000

var (
	// ErrInvalidOutputFormat is returned for unknown output formats.
	ErrInvalidOutputFormat = errors.New("invalid output format")
	// ErrInvalidOption is returned for out-of-range option values.
	ErrInvalidOption = errors.New("invalid option")
)

// Options controls how a document is rendered.
type Options struct {
	OutputFormat       OutputFormat `json:"output_format" yaml:"output_format"`
	AIOptimized        bool         `json:"ai_optimized" yaml:"ai_optimized"`
	IncludeMetadata    bool         `json:"include_metadata" yaml:"include_metadata"`
	MaxChunkSize       int          `json:"max_chunk_size" yaml:"max_chunk_size"`
	// ExtractKeySections is reported back to callers but has no effect on
	// rendering: markdown_ai always extracts key sections, other formats never do.
	ExtractKeySections bool         `json:"extract_key_sections" yaml:"extract_key_sections"`
	ProcessingImages   bool         `json:"processing_images" yaml:"processing_images"`
	DocxStrategy       DocxStrategy `json:"docx_strategy" yaml:"docx_strategy"`
}

// ParseOutputFormat parses s case-insensitively.
func ParseOutputFormat(s string) (OutputFormat, error) {
	f := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range OutputFormats {
		if f == known {
			return f, nil
		}
	}
	valid := make([]string, len(OutputFormats))
	for i, known := range OutputFormats {
		valid[i] = string(known)
	}
	return "", fmt.Errorf("%w: %q (valid: %s)", ErrInvalidOutputFormat, s, strings.Join(valid, ", "))
}

// ParseDocxStrategy parses s case-insensitively.
func ParseDocxStrategy(s string) (DocxStrategy, error) {
	switch st := DocxStrategy(strings.ToLower(strings.TrimSpace(s))); st {
	case DocxStructural, DocxConverter:
		return st, nil
	}
	return "", fmt.Errorf("%w: docx strategy %q (valid: structural, converter)", ErrInvalidOption, s)
}

// New validates o, fills zero-valued fields with defaults and applies the
// markdown_ai override. The override only ever turns flags on, and it is
// evaluated here once; later copies keep whatever New produced.
func New(o Options) (Options, error) {
	o, err := WithDefaults(o)
	if err != nil {
		return Options{}, err
	}
	if o.OutputFormat == FormatMarkdownAI {
		o.AIOptimized = true
		o.IncludeMetadata = true
		o.ExtractKeySections = true
	}
	return o, nil
}

// WithDefaults validates o and fills zero-valued fields like New, without the
// markdown_ai override. Use it for defaults that requests may still change.
func WithDefaults(o Options) (Options, error) {
	if o.OutputFormat == "" {
		o.OutputFormat = FormatMarkdown
	}
	f, err := ParseOutputFormat(string(o.OutputFormat))
	if err != nil {
		return Options{}, err
	}
	o.OutputFormat = f

	if o.DocxStrategy == "" {
		o.DocxStrategy = DocxStructural
	}
	st, err := ParseDocxStrategy(string(o.DocxStrategy))
	if err != nil {
		return Options{}, err
	}
	o.DocxStrategy = st

	if o.MaxChunkSize == 0 {
		o.MaxChunkSize = DefaultMaxChunkSize
	}
	if o.MaxChunkSize < 0 {
		return Options{}, fmt.Errorf("%w: max_chunk_size must be > 0, got %d", ErrInvalidOption, o.MaxChunkSize)
	}
	return o, nil
}

// MustNew is like New but panics on error. For tests and static defaults.
func MustNew(o Options) Options {
	out, err := New(o)
	if err != nil {
		panic(err)
	}
	return out
}

// Default returns the default options (standard Markdown).
func Default() Options {
	return MustNew(Options{})
}

// FromEnv builds options from OUTPUT_FORMAT, AI_OPTIMIZED, INCLUDE_METADATA,
// MAX_CHUNK_SIZE, EXTRACT_KEY_SECTIONS, PROCESSING_IMAGES and DOCX_STRATEGY.
// An unknown OUTPUT_FORMAT falls back to markdown.
func FromEnv() (Options, error) {
	o := Options{
		AIOptimized:        envBool("AI_OPTIMIZED"),
		IncludeMetadata:    envBool("INCLUDE_METADATA"),
		ExtractKeySections: envBool("EXTRACT_KEY_SECTIONS"),
		ProcessingImages:   envBool("PROCESSING_IMAGES"),
		DocxStrategy:       DocxStrategy(os.Getenv("DOCX_STRATEGY")),
	}
	if f, err := ParseOutputFormat(os.Getenv("OUTPUT_FORMAT")); err == nil {
		o.OutputFormat = f
	}
	if v := os.Getenv("MAX_CHUNK_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Options{}, fmt.Errorf("%w: MAX_CHUNK_SIZE=%q: %v", ErrInvalidOption, v, err)
		}
		o.MaxChunkSize = n
	}
	return New(o)
}

func envBool(name string) bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv(name)), "true")
}

// IsAI reports whether the AI Markdown variant was requested.
func (o Options) IsAI() bool {
	return o.OutputFormat == FormatMarkdownAI
}

// WantsJSON reports whether the result must be wrapped as structured JSON.
func (o Options) WantsJSON() bool {
	return o.OutputFormat == FormatStructuredJSON
}

// WantsMetadataHeader reports whether only the metadata front matter should be
// prepended (AI optimized without the full AI document).
func (o Options) WantsMetadataHeader() bool {
	return !o.IsAI() && o.AIOptimized && o.IncludeMetadata
}
