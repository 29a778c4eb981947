// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package intelligence derives metadata, key sections, metrics and summaries
// from extracted document text, and assembles the AI-oriented and structured
// JSON renderings shared by every format handler.
//
// All functions are pure apart from the timestamp, which comes from a Clock
// so tests can pin it.
package intelligence

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// Clock returns the current time. A nil Clock uses time.Now.
type Clock func() time.Time

// Now returns the clock's current time.
func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// Metadata describes a processed document.
type Metadata struct {
	DocumentType string
	SourceFile   string
	ProcessedAt  time.Time
	WordCount    int
	CharCount    int
	Language     string
}

// spanishIndicators are matched as substrings of the lower-cased content.
var spanishIndicators = []string{"el ", "la ", "de ", "que ", "y ", "a ", "en ", "un ", "es ", "se "}

// DetectLanguage returns "es" when more than five of the Spanish indicator
// substrings occur in content, "en" otherwise. It is a coarse heuristic, not a
// language detector: most English prose also contains "a " and "de ".
func DetectLanguage(content string) string {
	lower := strings.ToLower(content)
	n := 0
	for _, ind := range spanishIndicators {
		if strings.Contains(lower, ind) {
			n++
		}
	}
	if n > 5 {
		return "es"
	}
	return "en"
}

// SourceName returns the final path element of path.
func SourceName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}

// GenerateMetadata computes document metadata stamped with the current time.
func GenerateMetadata(path, content, docType string) Metadata {
	return generateMetadata(path, content, docType, time.Now())
}

func generateMetadata(path, content, docType string, now time.Time) Metadata {
	return Metadata{
		DocumentType: docType,
		SourceFile:   SourceName(path),
		ProcessedAt:  now,
		WordCount:    len(strings.Fields(content)),
		CharCount:    utf8.RuneCountInString(content),
		Language:     DetectLanguage(content),
	}
}

// FrontMatter renders m as a YAML front matter block followed by a blank line.
func (m Metadata) FrontMatter() string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "document_type: %s\n", m.DocumentType)
	fmt.Fprintf(&b, "source_file: %s\n", m.SourceFile)
	fmt.Fprintf(&b, "processed_at: %s\n", m.ProcessedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "word_count: %d\n", m.WordCount)
	fmt.Fprintf(&b, "char_count: %d\n", m.CharCount)
	fmt.Fprintf(&b, "language: %s\n", m.Language)
	b.WriteString("ai_ready: true\n")
	b.WriteString("---\n\n")
	return b.String()
}
