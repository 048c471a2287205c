package table

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/net/html"
)

// XLSXContentType is the media type of Export's output.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const maxColumnWidth = 50

var lineBreak = regexp.MustCompile(`(?i)<\s*br\s*/?\s*>`)

// CleanCell turns a rendered HTML cell into a spreadsheet value: line breaks
// become newlines, tags are dropped, entities unescaped, doubled newlines
// collapsed and whitespace trimmed. Strings of digits become integers.
func CleanCell(s string) any {
	s = lineBreak.ReplaceAllString(s, "\n")
	s = html.UnescapeString(stripTags(s))
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n\n", "\n"))
	if isDigits(s) {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return s
}

// stripTags keeps the raw text between tags; entities stay escaped.
func stripTags(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Raw())
		}
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Export writes rows as an XLSX workbook with one sheet: a bold header,
// wrapped text, column widths fitted to content and, with filters, an
// auto-filter on the header row. Pagination does not apply here.
func Export(w io.Writer, title string, cols []Column, rows []Row, filters bool) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(title)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{WrapText: true},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	bodyStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return fmt.Errorf("body style: %w", err)
	}

	widths := make([]int, len(cols))
	set := func(col, row int, v any) error {
		cell, err := excelize.CoordinatesToCellName(col+1, row+1)
		if err != nil {
			return err
		}
		if n := utf8.RuneCountInString(fmt.Sprint(v)); n > widths[col] {
			widths[col] = n
		}
		return f.SetCellValue(sheet, cell, v)
	}

	for i, col := range cols {
		if err := set(i, 0, CleanCell(col.Header)); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for r, row := range rows {
		for i := range cols {
			if err := set(i, r+1, row.Cells[i].Text()); err != nil {
				return fmt.Errorf("write row %d: %w", r+1, err)
			}
		}
	}

	if len(cols) == 0 {
		return f.Write(w)
	}
	lastCol, err := excelize.ColumnNumberToName(len(cols))
	if err != nil {
		return err
	}
	lastCell, err := excelize.CoordinatesToCellName(len(cols), len(rows)+1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}
	if len(rows) > 0 {
		if err := f.SetCellStyle(sheet, "A2", lastCell, bodyStyle); err != nil {
			return err
		}
	}
	for i, n := range widths {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		width := min(float64(n+3)*1.2, maxColumnWidth)
		if err := f.SetColWidth(sheet, name, name, width); err != nil {
			return err
		}
	}
	if filters {
		if err := f.AutoFilter(sheet, "A1:"+lastCol+"1", nil); err != nil {
			return fmt.Errorf("auto filter: %w", err)
		}
	}

	return f.Write(w)
}

// sheetName makes title acceptable as a worksheet name.
func sheetName(title string) string {
	title = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '-'
		}
		return r
	}, strings.TrimSpace(title))
	if title == "" {
		return "Sheet1"
	}
	if utf8.RuneCountInString(title) > 31 {
		title = string([]rune(title)[:31])
	}
	return title
}
