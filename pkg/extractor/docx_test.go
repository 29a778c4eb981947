// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package extractor

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/leseb/filereader/pkg/core/options"
)

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
	`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`

func wordCell(text string) string {
	return `<w:tc><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:tc>`
}

var scoreTable = `<w:tbl><w:tr>` + wordCell("Name") + wordCell("Score") + `</w:tr>` +
	`<w:tr>` + wordCell("Ann") + wordCell("9") + `</w:tr></w:tbl>`

var sampleBody = `<w:p><w:pPr><w:pStyle w:val="Heading1"/><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr><w:r><w:t>Quarterly report</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t xml:space="preserve">Revenue grew </w:t></w:r><w:r><w:rPr><w:b/></w:rPr><w:t>strongly</w:t></w:r><w:r><w:t xml:space="preserve"> this quarter.</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>- first point</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>{"status": "ok",</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>"count": 2}</w:t></w:r></w:p>` +
	`<w:p><w:hyperlink r:id="rId5"><w:r><w:t>the docs</w:t></w:r></w:hyperlink></w:p>` +
	scoreTable + scoreTable

// buildDocx assembles a minimal Word archive around body.
func buildDocx(t *testing.T, body string, extra map[string][]byte) []byte {
	t.Helper()
	parts := map[string][]byte{
		"[Content_Types].xml": []byte(`<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`),
		"word/document.xml":   []byte(`<?xml version="1.0" encoding="UTF-8"?><w:document ` + wordNS + `><w:body>` + body + `</w:body></w:document>`),
		"word/styles.xml": []byte(`<w:styles ` + wordNS + `>` +
			`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>` +
			`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/></w:style>` +
			`</w:styles>`),
		"word/_rels/document.xml.rels": []byte(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId5" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target="https://example.com/docs" TargetMode="External"/>` +
			`</Relationships>`),
	}
	for name, data := range extra {
		parts[name] = data
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range parts {
		if data == nil {
			continue
		}
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
	return buf.Bytes()
}

func balancedTuning(t *testing.T) {
	t.Helper()
	t.Setenv("DOCX_QUALITY_MODE", "")
	t.Setenv("DOCX_SAFE_MODE", "")
}

func TestDocxStructural(t *testing.T) {
	balancedTuning(t)
	path := writeFixture(t, "report.docx", buildDocx(t, sampleBody, nil))

	t.Run("markdown", func(t *testing.T) {
		got := readAs(t, options.FormatMarkdown, path)
		want := "# Quarterly report\n\n" +
			"Revenue grew strongly this quarter.\n\n" +
			"- first point\n" +
			"```json\n{\"status\": \"ok\",\n\"count\": 2}\n```\n\n" +
			"the docs\n\n" +
			"\n## Tables\n\n" +
			"### Table 1\n\n" +
			"| Name | Score |\n| --- | --- |\n| Ann | 9 |\n"
		if got != want {
			t.Errorf("markdown mismatch\ngot:\n%q\nwant:\n%q", got, want)
		}
	})

	t.Run("plain", func(t *testing.T) {
		got := readAs(t, options.FormatPlain, path)
		want := "Quarterly report\nRevenue grew strongly this quarter.\n- first point\n{\"status\": \"ok\",\n\"count\": 2}\nthe docs"
		if got != want {
			t.Errorf("plain mismatch\ngot:\n%q\nwant:\n%q", got, want)
		}
	})

	t.Run("ai", func(t *testing.T) {
		got := readAs(t, options.FormatMarkdownAI, path)
		for _, want := range []string{
			"## 📝 Word Document Analysis",
			"- **File:** report.docx",
			"- **Content:** 5 paragraphs, 16 words, 1 tables",
			"### 📖 Document Content",
			"## 📖 Full Document Content",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("AI output missing %q", want)
			}
		}
	})
}

func TestDocxSafeModeKeepsParagraphs(t *testing.T) {
	t.Setenv("DOCX_QUALITY_MODE", "")
	t.Setenv("DOCX_SAFE_MODE", "true")
	path := writeFixture(t, "report.docx", buildDocx(t, sampleBody, nil))

	got := readAs(t, options.FormatMarkdown, path)
	if !strings.Contains(got, "```json\n{\"status\": \"ok\",\n\"count\": 2}\n```") {
		t.Errorf("adjacent JSON paragraphs should share one fence:\n%s", got)
	}
	blocks := []docxBlock{
		{Paragraph: &docxParagraph{Runs: []docxRun{{Text: `{"a": 1,`}}}},
		{Paragraph: &docxParagraph{Runs: []docxRun{{Text: `"b": 2}`}}}},
	}
	safe := buildDocxStructure(blocks, map[string]string{"": "Normal"}, docxTuning{Mode: QualityBalanced, Safe: true})
	if len(safe.Paragraphs) != 2 {
		t.Errorf("safe mode merged paragraphs: %+v", safe.Paragraphs)
	}
	merged := buildDocxStructure(blocks, map[string]string{"": "Normal"}, docxTuning{Mode: QualityBalanced})
	if len(merged.Paragraphs) != 1 || merged.Paragraphs[0].Text != "{\"a\": 1,\n\"b\": 2}" {
		t.Errorf("balanced mode should merge JSON paragraphs: %+v", merged.Paragraphs)
	}
}

func TestDocxConverter(t *testing.T) {
	balancedTuning(t)
	path := writeFixture(t, "report.docx", buildDocx(t, sampleBody, nil))
	opts := options.MustNew(options.Options{DocxStrategy: options.DocxConverter})

	out, err := NewDocxConverter(opts, nil).Read(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"# Quarterly report",
		"**strongly**",
		"- first point",
		"```json",
		"[the docs](https://example.com/docs)",
		"Name",
		"Ann",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("converter output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<p>") || strings.Contains(out, "<table") {
		t.Errorf("converter output still has markup:\n%s", out)
	}
	if n := strings.Count(out, "Ann"); n != 1 {
		t.Errorf("repeated table rendered %d times, want once:\n%s", n, out)
	}
}

func TestDocxConverterTruncated(t *testing.T) {
	balancedTuning(t)
	var body strings.Builder
	for i := 0; i <= DocxMaxParagraphs; i++ {
		fmt.Fprintf(&body, "<w:p><w:r><w:t>line %d</w:t></w:r></w:p>", i)
	}
	path := writeFixture(t, "long.docx", buildDocx(t, body.String(), nil))
	opts := options.MustNew(options.Options{OutputFormat: options.FormatMarkdownAI, DocxStrategy: options.DocxConverter})

	out, err := NewDocxConverter(opts, nil).Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "- **Note:** Document truncated due to size limits") {
		t.Errorf("missing truncation note:\n%s", out[:min(len(out), 500)])
	}
	if strings.Contains(out, fmt.Sprintf("line %d", DocxMaxParagraphs)) {
		t.Error("paragraphs past the limit should be dropped")
	}
}

func TestDocxHTMLTables(t *testing.T) {
	tuning := docxTuning{Mode: QualityBalanced}
	table := [][]string{{"Name", "Score"}, {"Ann", "9"}}

	got, err := docxHTML([]docxBlock{{Table: table}, {Table: table}}, nil, nil, tuning)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(got, "<table>"); n != 1 {
		t.Errorf("duplicate tables: got %d, want 1", n)
	}

	var blocks []docxBlock
	for i := range DocxMaxTables + 5 {
		blocks = append(blocks, docxBlock{Table: [][]string{{fmt.Sprintf("T%d", i)}, {"v"}}})
	}
	got, err = docxHTML(blocks, nil, nil, tuning)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(got, "<table>"); n != DocxMaxTables {
		t.Errorf("got %d tables, want %d", n, DocxMaxTables)
	}
}

func TestConverterPolicy(t *testing.T) {
	p := converterPolicy()
	tests := []struct {
		in, want string
	}{
		{`<pre><code class="language-json">{}</code></pre>`, `<pre><code class="language-json">{}</code></pre>`},
		{`<pre><code class="evil">x</code></pre>`, `<pre><code>x</code></pre>`},
		{`<p class="language-json">x</p>`, `<p>x</p>`},
	}
	for _, tt := range tests {
		if got := p.Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReadTableSpanLimit(t *testing.T) {
	body := `<w:tbl><w:tr><w:tc><w:tcPr><w:gridSpan w:val="20000000"/></w:tcPr><w:p><w:r><w:t>wide</w:t></w:r></w:p></w:tc>` +
		wordCell("next") + `</w:tr></w:tbl>`
	path := writeFixture(t, "span.docx", buildDocx(t, body, nil))

	pkg, err := openDocx(path)
	if err != nil {
		t.Fatal(err)
	}
	defer pkg.Close()

	blocks, err := pkg.body()
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 1 || len(blocks[0].Table) != 1 {
		t.Fatalf("blocks = %+v", blocks)
	}
	if row := blocks[0].Table[0]; len(row) != DocxMaxTableCols || row[0] != "wide" {
		t.Errorf("row has %d cells, want %d", len(row), DocxMaxTableCols)
	}
}

func TestDocxHTML(t *testing.T) {
	blocks := []docxBlock{
		{Paragraph: &docxParagraph{StyleID: "Heading1", Runs: []docxRun{{Text: "Intro"}}}},
		{Paragraph: &docxParagraph{Runs: []docxRun{{Text: "see "}, {Text: "here", Italic: true, Anchor: "sec2"}}}},
		{Paragraph: &docxParagraph{Runs: []docxRun{{Text: "- a"}}}},
		{Paragraph: &docxParagraph{Runs: []docxRun{{Text: "- b"}}}},
		{Table: [][]string{{"H"}, {"v"}}},
	}
	styles := map[string]string{"": "Normal", "Heading1": "heading 1"}

	got, err := docxHTML(blocks, styles, nil, docxTuning{Mode: QualityBalanced})
	if err != nil {
		t.Fatal(err)
	}
	want := `<div><h1>Intro</h1><p>see <a href="#sec2"><em>here</em></a></p><ul><li>a</li><li>b</li></ul>` +
		`<table><thead><tr><th>H</th></tr></thead><tbody><tr><td>v</td></tr></tbody></table></div>`
	if got != want {
		t.Errorf("docxHTML() =\n%s\nwant\n%s", got, want)
	}
}

func TestDocxFallbacks(t *testing.T) {
	balancedTuning(t)
	valid := buildDocx(t, sampleBody, nil)

	tests := []struct {
		name     string
		filename string
		content  []byte
		contains []string
	}{
		{
			name:     "not a zip archive",
			filename: "bad.docx",
			content:  []byte("definitely not a zip"),
			contains: []string{"## ❌ Processing Error", "**File:** bad.docx", "corrupt or invalid DOCX file", "Unable to process document."},
		},
		{
			name:     "empty file",
			filename: "empty.docx",
			content:  nil,
			contains: []string{"## ❌ Processing Error", "empty file"},
		},
		{
			name:     "missing document part",
			filename: "hollow.docx",
			content:  buildDocx(t, "", map[string][]byte{"word/document.xml": nil}),
			contains: []string{"invalid DOCX structure: missing word/document.xml"},
		},
		{
			name:     "wrong extension",
			filename: "report.zip",
			content:  valid,
			contains: []string{"## ❌ Unsupported Format", "Only .docx and .docm files are supported."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFixture(t, tt.filename, tt.content)
			for _, factory := range []Factory{NewDocx, NewDocxConverter} {
				out, err := factory(options.Default(), nil).Read(path)
				if err != nil {
					t.Fatalf("Read() error: %v", err)
				}
				for _, c := range tt.contains {
					if !strings.Contains(out, c) {
						t.Errorf("output missing %q:\n%s", c, out)
					}
				}
			}
		})
	}
}

func TestDocxMediaInventory(t *testing.T) {
	balancedTuning(t)
	data := buildDocx(t, `<w:p><w:r><w:t>Body text.</w:t></w:r></w:p>`, map[string][]byte{
		"word/media/image2.jpeg": bytes.Repeat([]byte{1}, 2048),
		"word/media/image1.png":  {1, 2, 3, 4},
	})
	path := writeFixture(t, "pics.docx", data)
	opts := options.MustNew(options.Options{ProcessingImages: true})

	out, err := NewDocx(opts, nil).Read(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "### 🖼️ Embedded Images\n- image1.png (4 B)\n- image2.jpeg (2.0 kB)"
	if !strings.HasSuffix(out, want) {
		t.Errorf("inventory mismatch:\n%s", out)
	}

	if got := mediaInventory(nil); got != "### 🖼️ Embedded Images\nNo embedded images found." {
		t.Errorf("empty inventory = %q", got)
	}
}

func TestReadParagraph(t *testing.T) {
	body := `<w:p><w:pPr><w:pStyle w:val="Quote"/><w:tabs><w:tab w:val="left"/></w:tabs></w:pPr>` +
		`<w:r><w:rPr><w:b w:val="0"/><w:i/></w:rPr><w:t>a</w:t><w:tab/><w:t>b</w:t><w:br/><w:t>c</w:t></w:r></w:p>` +
		`<w:tbl><w:tr><w:tc><w:tcPr><w:gridSpan w:val="2"/></w:tcPr><w:p><w:r><w:t>wide</w:t></w:r></w:p></w:tc></w:tr></w:tbl>`
	path := writeFixture(t, "runs.docx", buildDocx(t, body, nil))

	pkg, err := openDocx(path)
	if err != nil {
		t.Fatal(err)
	}
	defer pkg.Close()

	blocks, err := pkg.body()
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}

	p := blocks[0].Paragraph
	if p == nil || p.StyleID != "Quote" {
		t.Fatalf("paragraph = %+v", p)
	}
	if got := p.Text(); got != "a\tb\nc" {
		t.Errorf("Text() = %q, want %q", got, "a\tb\nc")
	}
	if r := p.Runs[0]; r.Bold || !r.Italic {
		t.Errorf("run formatting = bold %v italic %v", r.Bold, r.Italic)
	}

	if got := blocks[1].Table; len(got) != 1 || len(got[0]) != 2 || got[0][1] != "wide" {
		t.Errorf("gridSpan table = %q", got)
	}
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		text string
		want ContentType
	}{
		{`{"a": 1}`, ContentJSON},
		{`[1, 2]`, ContentJSON},
		{`  {"padded": true}`, ContentJSON},
		{`"name": "value",`, ContentJSON},
		{`},`, ContentJSON},
		{"- item", ContentListItem},
		{"• item", ContentListItem},
		{"GET /api/v1/users", ContentHTTP},
		{"HTTP/1.1 200 OK", ContentHTTP},
		{"Content-Type: application/json", ContentHTTP},
		{"https://example.com", ContentURL},
		{"a:b:c:d:e", ContentCode},
		{"if x { y }", ContentCode},
		{"GETTER methods", ContentText},
		{"Plain sentence.", ContentText},
		{"", ContentText},
	}
	for _, tt := range tests {
		if got := DetectContentType(tt.text); got != tt.want {
			t.Errorf("DetectContentType(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}

	fast := []struct {
		text string
		want ContentType
	}{
		{"GETTER methods", ContentHTTP},
		{"X-Request-Id: 1", ContentHTTP},
		{`  {"padded": true}`, ContentText},
		{"a:b:c:d:e", ContentText},
	}
	for _, tt := range fast {
		if got := DetectContentTypeFast(tt.text); got != tt.want {
			t.Errorf("DetectContentTypeFast(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestHeadingLevel(t *testing.T) {
	tests := []struct {
		style, text string
		want        int
	}{
		{"Heading 2", "x", 2},
		{"heading 9", "x", 6},
		{"Heading", "x", 1},
		{"Title", "x", 1},
		{"Subtitle", "x", 2},
		{"Normal", "INTRO", 1},
		{"Normal", "ALL CAPS HEADING WITH MANY WORDS", 2},
		{"Normal", "Project Overview", 2},
		{"Normal", "Results:", 2},
		{"Normal", "Key: value", 0},
		{"Normal", "This is a normal sentence with lowercase words.", 0},
		{"Normal", "X-Header", 0},
		{"Normal", "{JSON}", 0},
		{"Normal", "", 0},
	}
	for _, tt := range tests {
		if got := HeadingLevel(tt.style, tt.text); got != tt.want {
			t.Errorf("HeadingLevel(%q, %q) = %d, want %d", tt.style, tt.text, got, tt.want)
		}
	}
}

func TestDocxTables(t *testing.T) {
	t.Run("fingerprint", func(t *testing.T) {
		a, okA := tableFingerprint([][]string{{"Name", "Score", "x"}, {"Ann", "9"}})
		b, okB := tableFingerprint([][]string{{"Name", "Score", "y"}, {"Ann", "9"}, {"Bob", "7"}})
		if !okA || !okB || a != b {
			t.Error("tables sharing their top-left cells should share a fingerprint")
		}
		c, _ := tableFingerprint([][]string{{"Name", "Score"}, {"Bob", "7"}})
		if a == c {
			t.Error("different tables should not collide")
		}
		if _, ok := tableFingerprint([][]string{{"", " "}, {""}}); ok {
			t.Error("blank tables have no fingerprint")
		}
	})

	t.Run("tables without a sample are never deduplicated", func(t *testing.T) {
		blank := [][]string{{"", ""}, {"", ""}, {"x"}}
		doc := buildDocxStructure([]docxBlock{{Table: blank}, {Table: blank}}, nil, docxTuning{Mode: QualityBalanced})
		if len(doc.Tables) != 2 {
			t.Errorf("got %d tables, want 2", len(doc.Tables))
		}
	})

	t.Run("duplicates are dropped", func(t *testing.T) {
		table := [][]string{{"Name", "Score"}, {"Ann", "9"}}
		doc := buildDocxStructure([]docxBlock{{Table: table}, {Table: table}}, nil, docxTuning{Mode: QualityBalanced})
		if len(doc.Tables) != 1 {
			t.Errorf("got %d tables, want 1", len(doc.Tables))
		}
	})

	t.Run("normalize", func(t *testing.T) {
		got := normalizeDocxTable([][]string{{"a", "b"}, {"", " "}, {"c"}})
		if len(got) != 2 || got[1][0] != "c" || got[1][1] != "" {
			t.Errorf("normalizeDocxTable() = %q", got)
		}
		if normalizeDocxTable([][]string{{"", ""}}) != nil {
			t.Error("all-blank table should normalize to nil")
		}

		wide := make([]string, 15)
		for i := range wide {
			wide[i] = strings.Repeat("w", 60)
		}
		got = normalizeDocxTable([][]string{wide})
		if len(got[0]) != DocxMaxTableCols || len([]rune(got[0][0])) != DocxMaxCellLength {
			t.Errorf("limits not applied: %d cols, %d chars", len(got[0]), len(got[0][0]))
		}
	})

	t.Run("markdown", func(t *testing.T) {
		if got := docxTableMarkdown([][]string{{"A", "B"}}); got != "| A | B |\n| --- | --- |\n\n" {
			t.Errorf("header-only table = %q", got)
		}
		if got := docxTableMarkdown([][]string{{"A"}}); got != "" {
			t.Errorf("single cell table = %q, want empty", got)
		}
		if got := docxTableMarkdown([][]string{{"a|b", "c"}, {"d", "e"}}); !strings.HasPrefix(got, `| a\|b | c |`) {
			t.Errorf("pipes not escaped: %q", got)
		}
	})
}
