// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package intelligence

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/leseb/filereader/pkg/core/options"
)

var pinned = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"spanish", "El informe de la empresa que se presenta es un resumen y a la vez en detalle", "es"},
		{"english", "The quarterly report shows strong growth across all regions.", "en"},
		{"empty", "", "en"},
		// Exactly five indicators is not enough.
		{"five indicators", "el de que un se ", "en"},
		{"six indicators", "el de que un se en ", "es"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectLanguage(tt.content); got != tt.want {
				t.Errorf("DetectLanguage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFrontMatter(t *testing.T) {
	m := generateMetadata("/tmp/in/report.csv", "uno dos tres", "csv_dataset", pinned)
	want := "---\n" +
		"document_type: csv_dataset\n" +
		"source_file: report.csv\n" +
		"processed_at: 2025-03-14T09:26:53Z\n" +
		"word_count: 3\n" +
		"char_count: 12\n" +
		"language: en\n" +
		"ai_ready: true\n" +
		"---\n\n"
	if got := m.FrontMatter(); got != want {
		t.Errorf("FrontMatter() =\n%s\nwant\n%s", got, want)
	}
}

func TestCharCountIsRunes(t *testing.T) {
	m := GenerateMetadata("a.txt", "año", "text_document")
	if m.CharCount != 3 {
		t.Errorf("CharCount = %d, want 3", m.CharCount)
	}
}

func TestExtractKeySections(t *testing.T) {
	content := strings.Join([]string{
		"Intro line that belongs nowhere",
		"Executive Summary",
		"Sales went up.",
		"",
		"Costs went down.",
		"Recommendations",
		"Hire more staff.",
	}, "\n")

	s := ExtractKeySections(content)
	if want := "Executive Summary\nSales went up.\nCosts went down."; s.Summary != want {
		t.Errorf("Summary = %q, want %q", s.Summary, want)
	}
	if want := "Recommendations\nHire more staff."; s.Recommendations != want {
		t.Errorf("Recommendations = %q, want %q", s.Recommendations, want)
	}
	if s.Metrics != "" || s.KeyPoints != "" {
		t.Errorf("expected empty metrics and key points, got %+v", s)
	}
}

func TestExtractKeySections_KeywordPriority(t *testing.T) {
	// "summary" is checked before "result", so this line opens a summary.
	s := ExtractKeySections("Summary of results\nline")
	if s.Summary == "" || s.Metrics != "" {
		t.Errorf("unexpected classification: %+v", s)
	}

	s = ExtractKeySections("KPI dashboard\nuptime 99%\nConclusión\nseguir así")
	if s.Metrics != "KPI dashboard\nuptime 99%" {
		t.Errorf("Metrics = %q", s.Metrics)
	}
	if s.Recommendations != "Conclusión\nseguir así" {
		t.Errorf("Recommendations = %q", s.Recommendations)
	}
}

func TestExtractMetrics(t *testing.T) {
	got := ExtractMetrics("Revenue grew 15% to $2,000,000 over 3 years")
	for _, want := range []string{"15%", "$2,000,000", "3 years"} {
		if !contains(got, want) {
			t.Errorf("ExtractMetrics() = %v, missing %q", got, want)
		}
	}
}

func TestExtractMetrics_OrderAndDedup(t *testing.T) {
	got := ExtractMetrics("In 2 months margin hit 12% then 12% again, worth $500 and 3 million users")
	want := []string{"2 months", "12%", "$500", "3 million"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("ExtractMetrics() = %v, want %v", got, want)
	}
	if got := ExtractMetrics("nothing numeric here"); len(got) != 0 {
		t.Errorf("expected no metrics, got %v", got)
	}
}

func TestSummarize(t *testing.T) {
	content := strings.Join([]string{
		"# Title heading that is long",
		"---",
		"short",
		"```go",
		"First meaningful line.",
		"  Second meaningful line.  ",
		"Third meaningful line.",
		"Fourth meaningful line.",
		"Fifth meaningful line.",
		"Sixth meaningful line.",
	}, "\n")
	want := "First meaningful line. Second meaningful line. Third meaningful line. Fourth meaningful line. Fifth meaningful line."
	if got := Summarize(content, 500); got != want {
		t.Errorf("Summarize() = %q, want %q", got, want)
	}
	if got := Summarize(content, 10); got != "First mean..." {
		t.Errorf("truncated Summarize() = %q", got)
	}
}

func TestFormatForAI(t *testing.T) {
	content := "Executive summary\nProfit rose 20% this year.\nRecommendation\nKeep going."
	out := formatForAI("doc.txt", content, "text_document", pinned)

	order := []string{
		"---\ndocument_type: text_document",
		"## 🎯 AI Summary\n",
		"## 📊 Key Metrics\n- 20%\n",
		"## 📋 Executive Summary\nExecutive summary\nProfit rose 20% this year.",
		"## 💡 Recommendations\nRecommendation\nKeep going.",
		"## 📖 Full Document Content\n" + content,
		"\n\n---\n*Document processed and optimized for AI analysis*",
	}
	last := -1
	for _, part := range order {
		i := strings.Index(out, part)
		if i < 0 {
			t.Fatalf("missing %q in:\n%s", part, out)
		}
		if i < last {
			t.Errorf("%q out of order", part)
		}
		last = i
	}
	if strings.Contains(out, "Performance Metrics") {
		t.Error("empty metrics section should be omitted")
	}
}

func TestFormatForAI_NoMetrics(t *testing.T) {
	out := FormatForAI("doc.txt", "plain words only", "text_document")
	if strings.Contains(out, "Key Metrics") {
		t.Error("Key Metrics heading should be omitted when nothing matched")
	}
}

func TestStructuredJSON(t *testing.T) {
	out, err := Structure("/data/notes.txt", "Hola <mundo> & más", "text_document").JSON()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "<mundo> & más") {
		t.Errorf("expected unescaped HTML and UTF-8 content, got %s", out)
	}
	if !strings.Contains(out, "\n  \"metadata\": {") {
		t.Errorf("expected 2-space indentation, got %s", out)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, key := range []string{"metadata", "summary", "key_metrics", "sections", "full_content"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
	if metrics, ok := doc["key_metrics"].([]any); !ok || len(metrics) != 0 {
		t.Errorf("key_metrics = %#v, want empty array", doc["key_metrics"])
	}
	sections := doc["sections"].(map[string]any)
	for _, key := range []string{"summary", "key_points", "metrics", "recommendations"} {
		if _, ok := sections[key]; !ok {
			t.Errorf("missing section key %q", key)
		}
	}
	meta := doc["metadata"].(map[string]any)
	if meta["source_file"] != "notes.txt" || meta["document_type"] != "text_document" {
		t.Errorf("metadata = %v", meta)
	}
}

func TestPostprocessor(t *testing.T) {
	const content = "body text"
	tests := []struct {
		name   string
		opts   options.Options
		check  func(string) bool
		expect string
	}{
		{
			name:   "passthrough",
			opts:   options.MustNew(options.Options{OutputFormat: options.FormatMarkdown}),
			check:  func(s string) bool { return s == content },
			expect: "unchanged content",
		},
		{
			name: "metadata header only",
			opts: options.MustNew(options.Options{OutputFormat: options.FormatMarkdown, AIOptimized: true, IncludeMetadata: true}),
			check: func(s string) bool {
				return strings.HasPrefix(s, "---\n") && strings.HasSuffix(s, "---\n\n"+content)
			},
			expect: "front matter + content",
		},
		{
			name:   "ai document",
			opts:   options.MustNew(options.Options{OutputFormat: options.FormatMarkdownAI}),
			check:  func(s string) bool { return strings.Contains(s, "## 📖 Full Document Content\n"+content) },
			expect: "full AI document",
		},
		{
			name:   "structured json",
			opts:   options.MustNew(options.Options{OutputFormat: options.FormatStructuredJSON}),
			check:  func(s string) bool { return strings.HasPrefix(s, "{") && strings.Contains(s, `"full_content": "body text"`) },
			expect: "JSON document",
		},
		{
			name: "json wraps the metadata header",
			opts: options.MustNew(options.Options{OutputFormat: options.FormatStructuredJSON, AIOptimized: true, IncludeMetadata: true}),
			check: func(s string) bool {
				return strings.HasPrefix(s, "{") && strings.Contains(s, `"full_content": "---\ndocument_type`)
			},
			expect: "JSON around front matter",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Postprocessor{Options: tt.opts, Clock: FixedClock(pinned)}
			got, err := p.Finish(content, "in.txt", "text_document")
			if err != nil {
				t.Fatal(err)
			}
			if !tt.check(got) {
				t.Errorf("Finish() = %q, want %s", got, tt.expect)
			}
		})
	}
}

func TestPostprocessor_Idempotent(t *testing.T) {
	p := Postprocessor{Options: options.MustNew(options.Options{OutputFormat: options.FormatMarkdownAI}), Clock: FixedClock(pinned)}
	a, _ := p.Finish("Revenue grew 15%", "x.txt", "text_document")
	b, _ := p.Finish("Revenue grew 15%", "x.txt", "text_document")
	if a != b {
		t.Error("output differs between identical runs with a pinned clock")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
