package parser

import (
	"bytes"

	"github.com/xuri/excelize/v2"
)

// SumSpreadsheet sums column on the first sheet of an XLSX workbook. Legacy
// binary .xls files are not readable by excelize and report absence.
func SumSpreadsheet(data []byte, column string) (float64, bool) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return 0, false
	}
	defer f.Close() //nolint:errcheck // read-only workbook

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return 0, false
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return 0, false
	}
	return sumTable(rows, column)
}
