// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package extractor

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/leseb/filereader/pkg/core/options"
)

// Spreadsheet reading strategies.
const (
	StrategyExcelize       = "excelize"
	StrategyXLS            = "xls"
	StrategyFallbackFailed = "fallback_failed"
)

// Spreadsheet limits.
const (
	SheetMaxRows        = 1000
	formulaScanRows     = 100
	formulaScanCols     = 50
	maxFormulas         = 10
	typeSampleRows      = 20
	typeSampleCols      = 10
	typeSampleCells     = 100
	markdownMaxCols     = 12
	markdownCellLength  = 120
	headerCellLength    = 150
	plainMaxRows        = 50
	markdownPreviewRows = 7
	aiPreviewRows       = 15
)

// CellKind is the data type of a spreadsheet cell.
type CellKind int

const (
	CellText CellKind = iota
	CellNumber
	CellDate
	CellBoolean
	CellEmpty
)

// Cell is one spreadsheet value with its formatted text.
type Cell struct {
	Text string
	Kind CellKind
}

// Formula is a formula found in a sheet.
type Formula struct {
	Cell    string
	Formula string
}

// TypeCounts tallies cell kinds over a sample of a sheet.
type TypeCounts struct {
	Text, Number, Date, Boolean, Empty int
}

// Main lists the non-empty kinds present, in fixed order.
func (c TypeCounts) Main() []string {
	var out []string
	for _, k := range []struct {
		name string
		n    int
	}{{"text", c.Text}, {"number", c.Number}, {"date", c.Date}, {"boolean", c.Boolean}} {
		if k.n > 0 {
			out = append(out, k.name)
		}
	}
	return out
}

// Sheet is the extracted content of one worksheet.
type Sheet struct {
	Name           string
	Rows           [][]Cell // non-empty rows only
	Dimensions     string
	ProcessedRows  int
	HasMergedCells bool
	Formulas       []Formula
	Types          TypeCounts
	Note           string
	Pictures       []string
}

// WorkbookMetadata describes the workbook file and its document properties.
type WorkbookMetadata struct {
	FileName     string
	FileType     string
	FileSizeMB   float64
	Title        string
	Creator      string
	Created      string
	Modified     string
	Subject      string
	Description  string
	SheetNames   []string
	DefinedNames []string
	HasVBA       bool
	Error        string
}

// Workbook is the result of one reading strategy.
type Workbook struct {
	Strategy string
	Metadata WorkbookMetadata
	Sheets   []Sheet
}

// Spreadsheet renders xlsx, xlsm and xls workbooks.
type Spreadsheet struct {
	base
}

// NewSpreadsheet is the Factory for spreadsheet files.
func NewSpreadsheet(opts options.Options, logger *slog.Logger) Handler {
	return &Spreadsheet{base: newBase(opts, logger)}
}

// Read implements Handler.
func (h *Spreadsheet) Read(path string) (string, error) {
	st, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	wb, err := h.readWorkbook(path, st.Size())
	if err != nil {
		h.logger.Error("failed to process Excel file", "file", fileName(path), "error", err)
		return spreadsheetErrorDocument(path, st.Size(), err), nil
	}

	var out string
	switch h.opts.OutputFormat {
	case options.FormatMarkdownAI:
		out = formatAIWorkbook(wb)
	case options.FormatPlain:
		out = formatPlainWorkbook(wb)
	default:
		out = formatMarkdownWorkbook(wb)
	}
	if h.opts.ProcessingImages {
		out += "\n\n" + pictureInventory(wb)
	}
	return h.finish(out, path, DocExcel)
}

// SelectStrategy picks the primary reader for a file extension.
func SelectStrategy(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".xls") {
		return StrategyXLS
	}
	return StrategyExcelize
}

// readWorkbook tries the primary strategy, then the other one. When both
// fail the error joins every failure.
func (h *Spreadsheet) readWorkbook(path string, size int64) (*Workbook, error) {
	order := []string{StrategyExcelize, StrategyXLS}
	if SelectStrategy(path) == StrategyXLS {
		order = []string{StrategyXLS, StrategyExcelize}
	}

	var errs []error
	for _, strategy := range order {
		h.logger.Debug("reading workbook", "file", fileName(path), "strategy", strategy)
		var (
			wb  *Workbook
			err error
		)
		if strategy == StrategyXLS {
			wb, err = readWithXLS(path, size)
		} else {
			wb, err = readWithExcelize(path, size, h.opts.ProcessingImages)
		}
		if err == nil {
			return wb, nil
		}
		if IsFileAccessError(err) {
			return nil, err
		}
		h.logger.Warn("workbook strategy failed", "file", fileName(path), "strategy", strategy, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", strategy, err))
	}
	return nil, fmt.Errorf("%s: all reading strategies failed: %w", StrategyFallbackFailed, errors.Join(errs...))
}

func sizeMB(size int64) float64 {
	return float64(size) / (1 << 20)
}

func readWithExcelize(path string, size int64, pictures bool) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	wb := &Workbook{
		Strategy: StrategyExcelize,
		Metadata: excelizeMetadata(f, path, size),
	}

	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		maxCols := 0
		for _, r := range rows {
			maxCols = max(maxCols, len(r))
		}

		sheet := Sheet{
			Name:       name,
			Dimensions: fmt.Sprintf("%d x %d", len(rows), maxCols),
		}
		for i, r := range rows[:min(len(rows), SheetMaxRows)] {
			if !rowHasContent(r) {
				continue
			}
			typed := len(sheet.Rows) < typeSampleRows
			cells := make([]Cell, len(r))
			for j, v := range r {
				cells[j] = Cell{Text: v, Kind: inferKind(v)}
				if typed && j < typeSampleCols && v != "" {
					axis, _ := excelize.CoordinatesToCellName(j+1, i+1)
					if t, err := f.GetCellType(name, axis); err == nil {
						cells[j].Kind = excelizeKind(t, v)
					}
				}
			}
			sheet.Rows = append(sheet.Rows, cells)
		}
		if len(sheet.Rows) == 0 {
			continue
		}

		sheet.ProcessedRows = len(sheet.Rows)
		if merged, err := f.GetMergeCells(name); err == nil {
			sheet.HasMergedCells = len(merged) > 0
		}
		sheet.Formulas = excelizeFormulas(f, name, len(rows), maxCols)
		sheet.Types = AnalyzeSheetTypes(sheet.Rows)
		if len(rows) > SheetMaxRows {
			sheet.Note = fmt.Sprintf("Showing first %d rows of %d total", SheetMaxRows, len(rows))
		}
		if pictures {
			if cells, err := f.GetPictureCells(name); err == nil {
				sheet.Pictures = cells
			}
		}
		wb.Sheets = append(wb.Sheets, sheet)
	}
	return wb, nil
}

func excelizeMetadata(f *excelize.File, path string, size int64) WorkbookMetadata {
	md := WorkbookMetadata{
		FileName:   filepath.Base(path),
		FileType:   "Excel Workbook",
		FileSizeMB: sizeMB(size),
		Title:      "Untitled",
		Creator:    "Unknown",
		SheetNames: f.GetSheetList(),
	}
	if props, err := f.GetDocProps(); err == nil && props != nil {
		md.Title = cmpOr(props.Title, md.Title)
		md.Creator = cmpOr(props.Creator, md.Creator)
		md.Created = props.Created
		md.Modified = props.Modified
		md.Subject = props.Subject
		md.Description = props.Description
	}
	for _, dn := range f.GetDefinedName() {
		md.DefinedNames = append(md.DefinedNames, dn.Name)
	}
	_, md.HasVBA = f.Pkg.Load("xl/vbaProject.bin")
	return md
}

func cmpOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func excelizeKind(t excelize.CellType, v string) CellKind {
	switch t {
	case excelize.CellTypeBool:
		return CellBoolean
	case excelize.CellTypeDate:
		return CellDate
	case excelize.CellTypeNumber:
		return CellNumber
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		return CellText
	default:
		return inferKind(v)
	}
}

// inferKind types a formatted value: numbers and booleans are recognised,
// anything else is text.
func inferKind(v string) CellKind {
	s := strings.TrimSpace(v)
	if s == "" {
		return CellEmpty
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return CellNumber
	}
	if strings.EqualFold(s, "true") || strings.EqualFold(s, "false") {
		return CellBoolean
	}
	return CellText
}

func excelizeFormulas(f *excelize.File, sheet string, rows, cols int) []Formula {
	var out []Formula
	for r := 1; r <= min(rows, formulaScanRows); r++ {
		for c := 1; c <= min(cols, formulaScanCols); c++ {
			axis, err := excelize.CoordinatesToCellName(c, r)
			if err != nil {
				continue
			}
			formula, err := f.GetCellFormula(sheet, axis)
			if err != nil || formula == "" {
				continue
			}
			if !strings.HasPrefix(formula, "=") {
				formula = "=" + formula
			}
			out = append(out, Formula{Cell: axis, Formula: formula})
			if len(out) >= maxFormulas {
				return out
			}
		}
	}
	return out
}

// readWithXLS reads legacy BIFF workbooks.
func readWithXLS(path string, size int64) (wb *Workbook, err error) {
	// extrame/xls panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			wb, err = nil, fmt.Errorf("malformed XLS file: %v", rec)
		}
	}()

	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	book, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, err
	}

	wb = &Workbook{
		Strategy: StrategyXLS,
		Metadata: WorkbookMetadata{
			FileName:   filepath.Base(path),
			FileType:   "Legacy Excel (.xls)",
			FileSizeMB: sizeMB(size),
			Title:      "Untitled",
			Creator:    "Unknown",
		},
	}

	for i := 0; i < book.NumSheets(); i++ {
		ws := book.GetSheet(i)
		if ws == nil {
			continue
		}
		wb.Metadata.SheetNames = append(wb.Metadata.SheetNames, ws.Name)

		totalRows := 0
		if ws.MaxRow > 0 || ws.Row(0) != nil {
			totalRows = int(ws.MaxRow) + 1
		}
		sheet := Sheet{Name: ws.Name}
		maxCols := 0
		for r := 0; r < totalRows; r++ {
			row := ws.Row(r)
			if row == nil {
				continue
			}
			maxCols = max(maxCols, row.LastCol())
			if r >= SheetMaxRows {
				continue
			}
			cells := make([]Cell, row.LastCol())
			texts := make([]string, row.LastCol())
			for c := 0; c < row.LastCol(); c++ {
				v := row.Col(c)
				texts[c] = v
				cells[c] = Cell{Text: v, Kind: inferKind(v)}
			}
			if rowHasContent(texts) {
				sheet.Rows = append(sheet.Rows, cells)
			}
		}
		sheet.Dimensions = fmt.Sprintf("%d x %d", totalRows, maxCols)
		sheet.ProcessedRows = len(sheet.Rows)
		sheet.Types = AnalyzeSheetTypes(sheet.Rows)
		if totalRows > SheetMaxRows {
			sheet.Note = fmt.Sprintf("Showing first %d rows of %d total", SheetMaxRows, totalRows)
		}
		wb.Sheets = append(wb.Sheets, sheet)
	}
	return wb, nil
}

func rowHasContent(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// LooksLikeDate reports whether a text value resembles a date or time.
func LooksLikeDate(s string) bool {
	if utf8.RuneCountInString(s) < 6 {
		return false
	}
	for _, ind := range []string{"-", "/", ":", "T", "202", "201", "199"} {
		if strings.Contains(s, ind) {
			return true
		}
	}
	return false
}

// AnalyzeSheetTypes counts cell kinds over the first 20 rows and 10 columns,
// stopping after 100 cells.
func AnalyzeSheetTypes(rows [][]Cell) TypeCounts {
	var c TypeCounts
	analyzed := 0
	for _, row := range rows[:min(len(rows), typeSampleRows)] {
		for _, cell := range row[:min(len(row), typeSampleCols)] {
			analyzed++
			switch {
			case cell.Text == "" || cell.Kind == CellEmpty:
				c.Empty++
			case cell.Kind == CellBoolean:
				c.Boolean++
			case cell.Kind == CellNumber:
				c.Number++
			case cell.Kind == CellDate || LooksLikeDate(strings.TrimSpace(cell.Text)):
				c.Date++
			default:
				c.Text++
			}
			if analyzed >= typeSampleCells {
				return c
			}
		}
	}
	return c
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "|", `\|`, "*", `\*`, "_", `\_`, "#", `\#`,
	"`", "\\`", "[", `\[`, "]", `\]`, "~", `\~`,
)

// EscapeMarkdown escapes characters with Markdown meaning.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

var (
	cellEscaper = strings.NewReplacer("|", `\|`, "\n", " ", "\r", " ", `"`, `\"`)
	spaceRuns   = regexp.MustCompile(`\s+`)
)

// EscapeTableCell makes s safe for a Markdown table cell and limits it to
// maxLen characters. Values longer than 20 characters end with "...".
func EscapeTableCell(s string, maxLen int) string {
	s = cellEscaper.Replace(s)
	s = spaceRuns.ReplaceAllString(strings.TrimSpace(s), " ")
	n := utf8.RuneCountInString(s)
	if n <= maxLen {
		return s
	}
	r := []rune(s)
	if s != "-" && n > 20 && maxLen > 3 {
		return string(r[:maxLen-3]) + "..."
	}
	return string(r[:maxLen])
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// SmartHeaders uses descriptive first-row values as column names and ColN
// for empty, short or numeric ones.
func SmartHeaders(row []Cell, maxCols int) []string {
	headers := make([]string, 0, min(len(row), maxCols))
	for i, cell := range row[:min(len(row), maxCols)] {
		s := strings.TrimSpace(cell.Text)
		if utf8.RuneCountInString(s) > 2 && !isDigits(s) {
			headers = append(headers, s)
		} else {
			headers = append(headers, fmt.Sprintf("Col%d", i+1))
		}
	}
	return headers
}

// LooksLikeHeaders reports whether at least 60% of the non-empty cells of row
// are meaningful text.
func LooksLikeHeaders(row []Cell) bool {
	meaningful, text := 0, 0
	for _, cell := range row {
		s := strings.TrimSpace(cell.Text)
		if s == "" {
			continue
		}
		meaningful++
		if cell.Kind == CellText && utf8.RuneCountInString(s) > 1 && !isDigits(s) && s != "-" {
			text++
		}
	}
	return meaningful > 0 && float64(text) >= float64(meaningful)*0.6
}

// sheetTable renders headers and rows as an escaped Markdown table. Empty
// cells become "-". No rows means no table.
func sheetTable(headers []string, rows [][]Cell, maxCell int) string {
	if len(headers) == 0 || len(rows) == 0 {
		return ""
	}
	escHeaders := make([]string, len(headers))
	for i, h := range headers {
		escHeaders[i] = EscapeTableCell(h, headerCellLength)
	}
	body := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, len(headers))
		for i := range cells {
			if i < len(row) && row[i].Text != "" {
				cells[i] = EscapeTableCell(row[i].Text, maxCell)
			} else {
				cells[i] = "-"
			}
		}
		body = append(body, cells)
	}
	return markdownTable(escHeaders, body)
}

func formatPlainWorkbook(wb *Workbook) string {
	var lines []string
	for _, s := range wb.Sheets {
		lines = append(lines, "=== "+s.Name+" ===")
		for _, row := range s.Rows[:min(len(s.Rows), plainMaxRows)] {
			texts := make([]string, len(row))
			for i, c := range row {
				texts[i] = c.Text
			}
			lines = append(lines, strings.Join(texts, "\t"))
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func formatMarkdownWorkbook(wb *Workbook) string {
	var lines []string
	for _, s := range wb.Sheets {
		if len(s.Rows) == 0 {
			continue
		}
		lines = append(lines, "## "+EscapeMarkdown(s.Name))
		headers := SmartHeaders(s.Rows[0], markdownMaxCols)
		rows := s.Rows[1:min(len(s.Rows), 1+markdownPreviewRows)]
		lines = append(lines, sheetTable(headers, rows, markdownCellLength), "")
	}
	return strings.Join(lines, "\n")
}

func formatAIWorkbook(wb *Workbook) string {
	md := wb.Metadata
	created := md.Created
	if created == "" {
		created = "Unknown"
	}

	var b strings.Builder
	b.WriteString(strings.Join([]string{
		"## 📊 Excel Workbook Analysis",
		"- **File:** " + EscapeMarkdown(md.FileName),
		"- **Reading strategy:** " + EscapeMarkdown(wb.Strategy),
		fmt.Sprintf("- **Size:** %.2f MB", md.FileSizeMB),
		fmt.Sprintf("- **Sheets:** %d", len(wb.Sheets)),
		"- **Created by:** " + EscapeMarkdown(md.Creator),
		"- **Created:** " + created,
		"",
		"",
	}, "\n"))

	if len(wb.Sheets) > 0 {
		b.WriteString("### 📋 Sheet Structure\n")
		for _, s := range wb.Sheets {
			fmt.Fprintf(&b, "- **%s**: %s (%d rows processed)", EscapeMarkdown(s.Name), s.Dimensions, s.ProcessedRows)
			if types := s.Types.Main(); len(types) > 0 {
				fmt.Fprintf(&b, " (Types: %s)", EscapeMarkdown(strings.Join(types, ", ")))
			}
			if s.HasMergedCells {
				b.WriteString(" (merged cells)")
			}
			if s.Note != "" {
				b.WriteString(" - " + EscapeMarkdown(s.Note))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	var sections []string
	for _, s := range wb.Sheets {
		if len(s.Rows) == 0 {
			continue
		}
		var sec strings.Builder
		sec.WriteString("### 📄 Sheet: " + EscapeMarkdown(s.Name) + "\n")
		if len(s.Formulas) > 0 {
			fmt.Fprintf(&sec, "**Formulas found:** %d\n", len(s.Formulas))
			for _, f := range s.Formulas[:min(len(s.Formulas), 3)] {
				fmt.Fprintf(&sec, "- %s: `%s`\n", EscapeMarkdown(f.Cell), EscapeMarkdown(f.Formula))
			}
			sec.WriteString("\n")
		}

		preview := s.Rows[:min(len(s.Rows), aiPreviewRows+1)]
		var (
			headers []string
			rows    [][]Cell
		)
		if LooksLikeHeaders(preview[0]) {
			headers = SmartHeaders(preview[0], markdownMaxCols)
			rows = preview[1:min(len(preview), aiPreviewRows)]
		} else {
			width := 0
			for _, r := range preview {
				width = max(width, len(r))
			}
			headers = SmartHeaders(preview[0], min(width, markdownMaxCols))
			rows = preview[:min(len(preview), aiPreviewRows)]
		}

		if len(headers) > 0 && len(rows) > 0 {
			sec.WriteString(sheetTable(headers, rows, markdownCellLength) + "\n")
			if len(s.Rows) > aiPreviewRows {
				fmt.Fprintf(&sec, "\n*Showing first %d rows of %d total*\n", aiPreviewRows, len(s.Rows))
			}
		} else {
			sec.WriteString("*No data to display*\n")
		}
		sections = append(sections, sec.String())
	}
	b.WriteString(strings.Join(sections, "\n"))
	return b.String()
}

func pictureInventory(wb *Workbook) string {
	var lines []string
	for _, s := range wb.Sheets {
		if len(s.Pictures) > 0 {
			lines = append(lines, fmt.Sprintf("- **%s:** %s", EscapeMarkdown(s.Name), strings.Join(s.Pictures, ", ")))
		}
	}
	if len(lines) == 0 {
		return "### 🖼️ Embedded Images\nNo embedded images found."
	}
	return "### 🖼️ Embedded Images\n" + strings.Join(lines, "\n")
}

func spreadsheetErrorDocument(path string, size int64, err error) string {
	return strings.Join([]string{
		"## ❌ Error processing Excel file",
		"",
		"**File:** " + EscapeMarkdown(fileName(path)),
		"**Error:** " + EscapeMarkdown(err.Error()),
		"",
		"### 💡 Possible solutions:",
		"- Check that the file is not corrupted",
		"- Make sure the file is not password protected",
		"- Check that it is a valid Excel file (.xlsx, .xls, .xlsm)",
		"- Try opening the file in Excel to verify its integrity",
		"",
		"### 📋 Technical information:",
		"- **Detected extension:** " + EscapeMarkdown(filepath.Ext(path)),
		fmt.Sprintf("- **File size:** %.2f MB", sizeMB(size)),
		"- **Reading method:** " + StrategyExcelize + " + " + StrategyXLS,
	}, "\n")
}
