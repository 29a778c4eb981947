// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package intelligence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/leseb/filereader/pkg/core/options"
)

const aiFooter = "\n\n---\n*Document processed and optimized for AI analysis*"

// FormatForAI assembles the AI document: front matter, summary, up to ten key
// metrics, the detected sections, then the full content and a footer.
func FormatForAI(path, content, docType string) string {
	return formatForAI(path, content, docType, time.Now())
}

func formatForAI(path, content, docType string, now time.Time) string {
	meta := generateMetadata(path, content, docType, now)
	sections := ExtractKeySections(content)
	metrics := ExtractMetrics(content)
	summary := Summarize(content, DefaultSummaryLength)

	var b strings.Builder
	b.WriteString(meta.FrontMatter())
	fmt.Fprintf(&b, "## 🎯 AI Summary\n%s\n\n", summary)

	if len(metrics) > 0 {
		b.WriteString("## 📊 Key Metrics\n")
		for i, m := range metrics {
			if i == 10 {
				break
			}
			fmt.Fprintf(&b, "- %s\n", m)
		}
		b.WriteString("\n")
	}

	if sections.Summary != "" {
		fmt.Fprintf(&b, "## 📋 Executive Summary\n%s\n\n", sections.Summary)
	}
	if sections.Metrics != "" {
		fmt.Fprintf(&b, "## 📈 Performance Metrics\n%s\n\n", sections.Metrics)
	}
	if sections.Recommendations != "" {
		fmt.Fprintf(&b, "## 💡 Recommendations\n%s\n\n", sections.Recommendations)
	}

	b.WriteString("## 📖 Full Document Content\n")
	b.WriteString(content)
	b.WriteString(aiFooter)
	return b.String()
}

// StructuredMetadata is the metadata object of the structured JSON rendering.
type StructuredMetadata struct {
	SourceFile   string `json:"source_file"`
	DocumentType string `json:"document_type"`
	WordCount    int    `json:"word_count"`
	CharCount    int    `json:"char_count"`
}

// Structured is the structured JSON rendering of a document.
type Structured struct {
	Metadata    StructuredMetadata `json:"metadata"`
	Summary     string             `json:"summary"`
	KeyMetrics  []string           `json:"key_metrics"`
	Sections    Sections           `json:"sections"`
	FullContent string             `json:"full_content"`
}

// Structure analyzes content into a Structured document.
func Structure(path, content, docType string) Structured {
	metrics := ExtractMetrics(content)
	if metrics == nil {
		metrics = []string{}
	}
	return Structured{
		Metadata: StructuredMetadata{
			SourceFile:   SourceName(path),
			DocumentType: docType,
			WordCount:    len(strings.Fields(content)),
			CharCount:    utf8.RuneCountInString(content),
		},
		Summary:     Summarize(content, DefaultSummaryLength),
		KeyMetrics:  metrics,
		Sections:    ExtractKeySections(content),
		FullContent: content,
	}
}

// JSON serializes s with two-space indentation. Non-ASCII text and HTML
// characters are written as-is.
func (s Structured) JSON() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return "", fmt.Errorf("failed to encode structured document: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Postprocessor applies the rendering steps every handler shares once its
// format-specific output is ready.
type Postprocessor struct {
	Options options.Options
	Clock   Clock
}

// NewPostprocessor returns a Postprocessor using the wall clock.
func NewPostprocessor(opts options.Options) Postprocessor {
	return Postprocessor{Options: opts}
}

// ApplyAIFormatting wraps content as a full AI document for markdown_ai, or
// prepends the metadata front matter when AI optimization and metadata are
// both requested. Otherwise content is returned unchanged.
func (p Postprocessor) ApplyAIFormatting(content, path, docType string) string {
	switch {
	case p.Options.IsAI():
		return formatForAI(path, content, docType, p.Clock.Now())
	case p.Options.WantsMetadataHeader():
		return generateMetadata(path, content, docType, p.Clock.Now()).FrontMatter() + content
	default:
		return content
	}
}

// FormatAsJSON wraps content as structured JSON when that output format was
// requested.
func (p Postprocessor) FormatAsJSON(content, path, docType string) (string, error) {
	if !p.Options.WantsJSON() {
		return content, nil
	}
	return Structure(path, content, docType).JSON()
}

// Finish runs ApplyAIFormatting then FormatAsJSON.
func (p Postprocessor) Finish(content, path, docType string) (string, error) {
	return p.FormatAsJSON(p.ApplyAIFormatting(content, path, docType), path, docType)
}
