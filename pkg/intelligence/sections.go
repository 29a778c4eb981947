// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package intelligence

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Sections holds the keyword-delimited sections of a document. KeyPoints is
// part of the wire shape but never populated.
type Sections struct {
	Summary         string `json:"summary"`
	KeyPoints       string `json:"key_points"`
	Metrics         string `json:"metrics"`
	Recommendations string `json:"recommendations"`
}

type sectionKind int

const (
	sectionNone sectionKind = iota
	sectionSummary
	sectionRecommendations
	sectionMetrics
)

// Keyword groups are checked in this order; the first match classifies a line.
var sectionKeywords = []struct {
	kind     sectionKind
	keywords []string
}{
	{sectionSummary, []string{"resumen", "summary", "executive"}},
	{sectionRecommendations, []string{"conclusión", "conclusion", "recomendación", "recommendation"}},
	{sectionMetrics, []string{"métrica", "metric", "kpi", "resultado", "result"}},
}

func classifyLine(line string) sectionKind {
	lower := strings.ToLower(strings.TrimSpace(line))
	for _, group := range sectionKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.kind
			}
		}
	}
	return sectionNone
}

// ExtractKeySections scans content line by line. A keyword line closes the
// section being collected and opens a new one that starts with the keyword line
// itself; later non-empty lines are appended until the next keyword line. A
// later section of the same kind replaces an earlier one.
func ExtractKeySections(content string) Sections {
	var (
		s       Sections
		current = sectionNone
		buf     []string
	)
	flush := func() {
		if current == sectionNone || len(buf) == 0 {
			return
		}
		text := strings.Join(buf, "\n")
		switch current {
		case sectionSummary:
			s.Summary = text
		case sectionRecommendations:
			s.Recommendations = text
		case sectionMetrics:
			s.Metrics = text
		}
	}

	for _, line := range strings.Split(content, "\n") {
		if kind := classifyLine(line); kind != sectionNone {
			flush()
			current = kind
			buf = []string{line}
			continue
		}
		if current != sectionNone && strings.TrimSpace(line) != "" {
			buf = append(buf, line)
		}
	}
	flush()
	return s
}

var metricPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\d+(?:\.\d+)?%`),
	regexp.MustCompile(`(?i)\$\d+(?:,\d{3})*(?:\.\d{2})?`),
	regexp.MustCompile(`(?i)\d+(?:,\d{3})*\s*(?:millones?|millions?|mil|thousand)`),
	regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s*(?:años?|years?|meses?|months?)`),
}

// ExtractMetrics returns percentages, currency amounts, large numbers and
// durations found in content. Each distinct match appears once, ordered by the
// position of its first occurrence.
func ExtractMetrics(content string) []string {
	type hit struct {
		text string
		pos  int
	}
	first := make(map[string]int)
	var hits []hit
	for _, re := range metricPatterns {
		for _, loc := range re.FindAllStringIndex(content, -1) {
			m := content[loc[0]:loc[1]]
			if i, seen := first[m]; seen {
				if loc[0] < hits[i].pos {
					hits[i].pos = loc[0]
				}
				continue
			}
			first[m] = len(hits)
			hits = append(hits, hit{text: m, pos: loc[0]})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.text
	}
	return out
}

// DefaultSummaryLength is the rune budget used by Summarize callers that have
// no preference.
const DefaultSummaryLength = 500

// Summarize joins the first five meaningful lines of content: trimmed,
// longer than 10 characters and not starting with "---", a code fence or "#".
// The result is cut to maxLen runes with a "..." suffix.
func Summarize(content string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultSummaryLength
	}
	var picked []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) <= 10 {
			continue
		}
		if strings.HasPrefix(line, "---") || strings.HasPrefix(line, "```") || strings.HasPrefix(line, "#") {
			continue
		}
		picked = append(picked, line)
		if len(picked) == 5 {
			break
		}
	}
	summary := strings.Join(picked, " ")
	if utf8.RuneCountInString(summary) > maxLen {
		summary = string([]rune(summary)[:maxLen]) + "..."
	}
	return summary
}
