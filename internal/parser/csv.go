package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
)

// SumCSV sums column in a CSV document whose first record is the header.
func SumCSV(data []byte, column string) (float64, bool) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var table [][]string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, false
		}
		table = append(table, record)
	}
	return sumTable(table, column)
}
