// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package extractor

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ContentType classifies a Word paragraph.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentJSON     ContentType = "json"
	ContentHTTP     ContentType = "http"
	ContentURL      ContentType = "url"
	ContentListItem ContentType = "list_item"
	ContentCode     ContentType = "code"
)

// isBlock reports whether paragraphs of this type render as fenced code.
func (c ContentType) isBlock() bool {
	return c == ContentJSON || c == ContentHTTP || c == ContentCode
}

// fenceLang is the code fence language hint for block content.
func (c ContentType) fenceLang() string {
	switch c {
	case ContentJSON:
		return "json"
	case ContentHTTP:
		return "http"
	default:
		return ""
	}
}

// QualityMode selects how much analysis the structural Word handler does.
type QualityMode string

const (
	QualityFast     QualityMode = "fast"
	QualityBalanced QualityMode = "balanced"
)

// docxTuning is read from DOCX_QUALITY_MODE and DOCX_SAFE_MODE.
type docxTuning struct {
	Mode QualityMode
	Safe bool
}

func docxTuningFromEnv() docxTuning {
	t := docxTuning{Mode: QualityBalanced}
	if strings.EqualFold(os.Getenv("DOCX_QUALITY_MODE"), string(QualityFast)) {
		t.Mode = QualityFast
	}
	t.Safe, _ = strconv.ParseBool(os.Getenv("DOCX_SAFE_MODE"))
	return t
}

// consolidate reports whether adjacent code-like paragraphs are merged.
func (t docxTuning) consolidate() bool {
	return t.Mode != QualityFast && !t.Safe
}

func (t docxTuning) detect(text string) ContentType {
	if t.Mode == QualityFast {
		return DetectContentTypeFast(text)
	}
	return DetectContentType(text)
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// DetectContentTypeFast classifies a paragraph from its leading characters.
func DetectContentTypeFast(text string) ContentType {
	if text == "" {
		return ContentText
	}
	switch {
	case hasAnyPrefix(text, "{", "["):
		return ContentJSON
	case hasAnyPrefix(text, "-", "*", "•"):
		return ContentListItem
	case hasAnyPrefix(text, "POST", "GET", "PUT", "DELETE", "HTTP/", "X-"):
		return ContentHTTP
	case hasAnyPrefix(text, "http://", "https://"):
		return ContentURL
	}
	return ContentText
}

// DetectContentType classifies a paragraph as JSON, HTTP, URL, list item,
// code or plain text.
func DetectContentType(text string) ContentType {
	s := strings.TrimSpace(text)
	if s == "" {
		return ContentText
	}
	switch {
	case hasAnyPrefix(s, "{", "["):
		return ContentJSON
	case hasAnyPrefix(s, "-", "*", "•"):
		return ContentListItem
	case hasAnyPrefix(s, "POST ", "GET ", "PUT ", "DELETE ", "HTTP/"):
		return ContentHTTP
	case hasAnyPrefix(s, "http://", "https://"):
		return ContentURL
	}

	if strings.HasPrefix(s, `"`) && (strings.Contains(s, ":") || strings.HasSuffix(s, `",`)) {
		return ContentJSON
	}
	if strings.HasSuffix(s, "},") || strings.HasSuffix(s, "],") {
		return ContentJSON
	}
	if hasAnyPrefix(s, "Accept-", "Content-", "X-", "User-Agent:", "Host:", "Server:") {
		return ContentHTTP
	}
	if strings.Count(s, ":") > 3 || (strings.Contains(s, "{") && strings.Contains(s, "}")) {
		return ContentCode
	}
	return ContentText
}

var firstNumber = regexp.MustCompile(`\d+`)

// HeadingLevel returns the heading level of a paragraph from its style name,
// or from the text itself when the style says nothing. Zero means body text.
func HeadingLevel(styleName, text string) int {
	lower := strings.ToLower(styleName)
	switch {
	case strings.Contains(lower, "heading"):
		level := 1
		if m := firstNumber.FindString(styleName); m != "" {
			level, _ = strconv.Atoi(m)
		}
		return min(max(level, 1), 6)
	case lower == "title":
		return 1
	case lower == "subtitle":
		return 2
	}
	if !looksLikeHeading(text) {
		return 0
	}
	if IsUpper(text) && len(strings.Fields(text)) <= 3 {
		return 1
	}
	return 2
}

// looksLikeHeading: short, few words, no colon before the last character,
// not JSON or an HTTP header, and upper-case, title-case or colon-terminated.
func looksLikeHeading(text string) bool {
	n := utf8.RuneCountInString(text)
	if n == 0 || n >= 100 || len(strings.Fields(text)) > 8 {
		return false
	}
	if n > 1 {
		r := []rune(text)
		if strings.ContainsRune(string(r[:n-1]), ':') {
			return false
		}
	}
	if hasAnyPrefix(text, `"`, "{", "}", "[", "]") ||
		hasAnyPrefix(text, "X-", "Content-", "Accept-", "User-Agent") {
		return false
	}
	return IsUpper(text) || IsTitle(text) || strings.HasSuffix(text, ":")
}
