// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package extractor

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/leseb/filereader/pkg/core/options"
)

// buildWorkbook writes a one-sheet workbook with a formula row.
func buildWorkbook(t *testing.T, name string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "Sales"); err != nil {
		t.Fatal(err)
	}
	cells := map[string]any{
		"A1": "Region", "B1": "Revenue",
		"A2": "North", "B2": 1200,
		"A3": "South", "B3": 950,
		"A4": "Total",
	}
	for axis, v := range cells {
		if err := f.SetCellValue("Sales", axis, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SetCellFormula("Sales", "B4", "SUM(B2:B3)"); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), name)
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

func TestSpreadsheetRead(t *testing.T) {
	path := buildWorkbook(t, "sales.xlsx")

	t.Run("markdown", func(t *testing.T) {
		got := readAs(t, options.FormatMarkdown, path)
		want := "## Sales\n" +
			"| Region | Revenue |\n| --- | --- |\n" +
			"| North | 1200 |\n| South | 950 |\n| Total | - |\n"
		if got != want {
			t.Errorf("markdown mismatch\ngot:\n%q\nwant:\n%q", got, want)
		}
	})

	t.Run("plain", func(t *testing.T) {
		got := readAs(t, options.FormatPlain, path)
		if !strings.HasPrefix(got, "=== Sales ===\nRegion\tRevenue\nNorth\t1200\nSouth\t950\nTotal") {
			t.Errorf("plain output = %q", got)
		}
	})

	t.Run("ai", func(t *testing.T) {
		got := readAs(t, options.FormatMarkdownAI, path)
		for _, want := range []string{
			"## 📊 Excel Workbook Analysis",
			"- **File:** sales.xlsx",
			"- **Reading strategy:** excelize",
			"- **Sheets:** 1",
			"### 📋 Sheet Structure",
			"- **Sales**: 4 x 2 (4 rows processed) (Types: text, number)",
			"### 📄 Sheet: Sales",
			"**Formulas found:** 1",
			"- B4: `=SUM(B2:B3)`",
			"| Region | Revenue |",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("AI output missing %q:\n%s", want, got)
			}
		}
	})

	t.Run("xlsm uses the same reader", func(t *testing.T) {
		got := readAs(t, options.FormatMarkdown, buildWorkbook(t, "macro.xlsm"))
		if !strings.HasPrefix(got, "## Sales\n") {
			t.Errorf("xlsm output = %q", got)
		}
	})
}

func TestSpreadsheetErrorDocument(t *testing.T) {
	for _, name := range []string{"broken.xlsx", "broken.xls"} {
		t.Run(name, func(t *testing.T) {
			path := writeFixture(t, name, []byte("this is not a workbook"))
			got := readAs(t, options.FormatMarkdown, path)
			for _, want := range []string{
				"## ❌ Error processing Excel file",
				"**File:** " + name,
				"all reading strategies failed",
				"- **Detected extension:** " + filepath.Ext(name),
				"- **Reading method:** excelize + xls",
			} {
				if !strings.Contains(got, want) {
					t.Errorf("error document missing %q:\n%s", want, got)
				}
			}
		})
	}
}

func TestSelectStrategy(t *testing.T) {
	tests := map[string]string{
		"a.xlsx": StrategyExcelize,
		"a.XLSM": StrategyExcelize,
		"a.xls":  StrategyXLS,
		"a.XLS":  StrategyXLS,
	}
	for path, want := range tests {
		if got := SelectStrategy(path); got != want {
			t.Errorf("SelectStrategy(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestEscapeTableCell(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"a|b", 10, `a\|b`},
		{"line\nbreak", 20, "line break"},
		{`say "hi"`, 20, `say \"hi\"`},
		{"  many   spaces  ", 20, "many spaces"},
		{"short", 3, "sho"},
		{strings.Repeat("x", 30), 10, "xxxxxxx..."},
		{"-", 1, "-"},
	}
	for _, tt := range tests {
		if got := EscapeTableCell(tt.in, tt.max); got != tt.want {
			t.Errorf("EscapeTableCell(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}

	if got := EscapeMarkdown("a_b*c#[d]"); got != `a\_b\*c\#\[d\]` {
		t.Errorf("EscapeMarkdown() = %q", got)
	}
}

func TestHeaders(t *testing.T) {
	row := []Cell{
		{Text: "Region", Kind: CellText},
		{Text: "", Kind: CellEmpty},
		{Text: "42", Kind: CellNumber},
		{Text: "ID", Kind: CellText},
		{Text: "Total sales", Kind: CellText},
	}
	got := SmartHeaders(row, 4)
	want := []string{"Region", "Col2", "Col3", "Col4"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("SmartHeaders() = %v, want %v", got, want)
	}

	tests := []struct {
		name string
		row  []Cell
		want bool
	}{
		{"all text", []Cell{{Text: "Name", Kind: CellText}, {Text: "City", Kind: CellText}}, true},
		{"mostly numbers", []Cell{{Text: "Name", Kind: CellText}, {Text: "1", Kind: CellNumber}, {Text: "2", Kind: CellNumber}}, false},
		{"three of five", []Cell{
			{Text: "a1", Kind: CellText}, {Text: "b1", Kind: CellText}, {Text: "c1", Kind: CellText},
			{Text: "4", Kind: CellNumber}, {Text: "-", Kind: CellText},
		}, true},
		{"empty", []Cell{{Kind: CellEmpty}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LooksLikeHeaders(tt.row); got != tt.want {
				t.Errorf("LooksLikeHeaders() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnalyzeSheetTypes(t *testing.T) {
	rows := [][]Cell{
		{{Text: "Date", Kind: CellText}, {Text: "Paid", Kind: CellText}},
		{{Text: "2024-01-05", Kind: CellText}, {Text: "TRUE", Kind: CellBoolean}},
		{{Text: "3.5", Kind: CellNumber}, {Text: "", Kind: CellEmpty}},
	}
	got := AnalyzeSheetTypes(rows)
	want := TypeCounts{Text: 2, Number: 1, Date: 1, Boolean: 1, Empty: 1}
	if got != want {
		t.Errorf("AnalyzeSheetTypes() = %+v, want %+v", got, want)
	}
	if main := strings.Join(got.Main(), ", "); main != "text, number, date, boolean" {
		t.Errorf("Main() = %q", main)
	}

	var wide [][]Cell
	for range 30 {
		row := make([]Cell, 12)
		for i := range row {
			row[i] = Cell{Text: "v", Kind: CellText}
		}
		wide = append(wide, row)
	}
	if got := AnalyzeSheetTypes(wide); got.Text != 100 {
		t.Errorf("sample should stop at 100 cells, counted %d", got.Text)
	}
}

func TestLooksLikeDate(t *testing.T) {
	tests := map[string]bool{
		"2024-01-05": true,
		"05/01/2024": true,
		"12:30:00":   true,
		"2019 plan":  true,
		"1-2":        false,
		"banana":     false,
	}
	for in, want := range tests {
		if got := LooksLikeDate(in); got != want {
			t.Errorf("LooksLikeDate(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInferKind(t *testing.T) {
	tests := map[string]CellKind{
		"":      CellEmpty,
		"  ":    CellEmpty,
		"12.5":  CellNumber,
		"-3":    CellNumber,
		"TRUE":  CellBoolean,
		"false": CellBoolean,
		"abc":   CellText,
	}
	for in, want := range tests {
		if got := inferKind(in); got != want {
			t.Errorf("inferKind(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestAIWorkbookWithoutHeaders(t *testing.T) {
	wb := &Workbook{
		Strategy: StrategyXLS,
		Metadata: WorkbookMetadata{FileName: "legacy.xls", FileSizeMB: 0.5, Creator: "Unknown"},
		Sheets: []Sheet{{
			Name:          "Data_1",
			Dimensions:    "2 x 2",
			ProcessedRows: 2,
			Rows: [][]Cell{
				{{Text: "1", Kind: CellNumber}, {Text: "2", Kind: CellNumber}},
				{{Text: "3", Kind: CellNumber}, {Text: "4", Kind: CellNumber}},
			},
		}},
	}
	got := formatAIWorkbook(wb)
	for _, want := range []string{
		"- **Size:** 0.50 MB",
		"- **Created:** Unknown",
		`### 📄 Sheet: Data\_1`,
		"| Col1 | Col2 |\n| --- | --- |\n| 1 | 2 |\n| 3 | 4 |",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	if inv := pictureInventory(wb); inv != "### 🖼️ Embedded Images\nNo embedded images found." {
		t.Errorf("pictureInventory() = %q", inv)
	}
}
