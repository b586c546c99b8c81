// Package parser sums a named numeric column out of CSV, spreadsheet and PDF
// documents. Every entry point returns (total, true) when the column was
// found and (0, false) when the document is unreadable or lacks the column.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/JakeFAU/quizchain/internal/quiz"
)

// DefaultColumn is the column summed when none is configured.
const DefaultColumn = "value"

// DefaultPDFPage is the 1-indexed page inspected first in PDFs.
const DefaultPDFPage = 2

// Config binds the column and PDF page used by Summer.
type Config struct {
	Column  string
	PDFPage int
}

// Summer implements quiz.ColumnSummer.
type Summer struct {
	cfg Config
}

// New builds a Summer, applying defaults for empty fields.
func New(cfg Config) *Summer {
	if strings.TrimSpace(cfg.Column) == "" {
		cfg.Column = DefaultColumn
	}
	if cfg.PDFPage <= 0 {
		cfg.PDFPage = DefaultPDFPage
	}
	return &Summer{cfg: cfg}
}

// Sum dispatches to the parser for kind.
func (s *Summer) Sum(kind quiz.FileKind, data []byte) (float64, bool) {
	switch kind {
	case quiz.FileKindPDF:
		return SumPDF(data, s.cfg.Column, s.cfg.PDFPage)
	case quiz.FileKindCSV:
		return SumCSV(data, s.cfg.Column)
	case quiz.FileKindSpreadsheet:
		return SumSpreadsheet(data, s.cfg.Column)
	default:
		return 0, false
	}
}

// KindForLink picks a parser from the link. PDF and spreadsheets are matched
// on the suffix; CSV anywhere in the link so query strings are tolerated.
func KindForLink(link string) quiz.FileKind {
	low := strings.ToLower(link)
	switch {
	case strings.HasSuffix(low, ".pdf"):
		return quiz.FileKindPDF
	case strings.Contains(low, ".csv"):
		return quiz.FileKindCSV
	case strings.HasSuffix(low, ".xlsx"), strings.HasSuffix(low, ".xls"):
		return quiz.FileKindSpreadsheet
	default:
		return quiz.FileKindUnknown
	}
}

var nonNumeric = regexp.MustCompile(`[^0-9.\-]`)

// coerce strips everything but digits, dots and minus signs before parsing.
func coerce(cell string) (float64, bool) {
	cleaned := nonNumeric.ReplaceAllString(cell, "")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// columnIndex finds column in header, ignoring case and surrounding space.
func columnIndex(header []string, column string) int {
	want := strings.ToLower(strings.TrimSpace(column))
	for i, h := range header {
		if strings.ToLower(strings.TrimSpace(h)) == want {
			return i
		}
	}
	return -1
}

// sumRows adds up column idx across rows, skipping short rows and
// non-numeric cells.
func sumRows(rows [][]string, idx int) float64 {
	var total float64
	for _, row := range rows {
		if idx >= len(row) {
			continue
		}
		if v, ok := coerce(row[idx]); ok {
			total += v
		}
	}
	return total
}

// sumTable treats the first row as the header.
func sumTable(table [][]string, column string) (float64, bool) {
	if len(table) == 0 {
		return 0, false
	}
	idx := columnIndex(table[0], column)
	if idx < 0 {
		return 0, false
	}
	return sumRows(table[1:], idx), true
}
