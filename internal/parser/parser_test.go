package parser

import (
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JakeFAU/quizchain/internal/quiz"
)

func TestSumCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		data   string
		column string
		want   float64
		found  bool
	}{
		{name: "simple", data: "value\n10\n20\n", column: "value", want: 30, found: true},
		{name: "case insensitive header", data: "id, Value \n1,1.5\n2,2.5\n", column: "value", want: 4, found: true},
		{name: "coerces currency", data: "item,value\na,\"$1,000\"\nb,25 USD\n", column: "VALUE", want: 1025, found: true},
		{name: "skips junk cells", data: "value\n5\nn/a\n\n7\n", column: "value", want: 12, found: true},
		{name: "short rows", data: "a,value\n1\n2,3\n", column: "value", want: 3, found: true},
		{name: "missing column", data: "a,b\n1,2\n", column: "value", found: false},
		{name: "empty", data: "", column: "value", found: false},
		{name: "bom header", data: "\xef\xbb\xbfvalue\n4\n", column: "value", want: 4, found: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := SumCSV([]byte(tt.data), tt.column)
			require.Equal(t, tt.found, ok)
			require.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestSumSpreadsheet(t *testing.T) {
	t.Parallel()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheet, "A1", "name"))
	require.NoError(t, f.SetCellValue(sheet, "B1", "Value"))
	require.NoError(t, f.SetCellValue(sheet, "A2", "x"))
	require.NoError(t, f.SetCellValue(sheet, "B2", 12))
	require.NoError(t, f.SetCellValue(sheet, "A3", "y"))
	require.NoError(t, f.SetCellValue(sheet, "B3", "8.5"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, ok := SumSpreadsheet(buf.Bytes(), "value")
	require.True(t, ok)
	require.InDelta(t, 20.5, got, 1e-9)

	_, ok = SumSpreadsheet(buf.Bytes(), "missing")
	require.False(t, ok)

	_, ok = SumSpreadsheet([]byte("not a workbook"), "value")
	require.False(t, ok)
}

func TestSumPDFRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, ok := SumPDF([]byte("%PDF-1.4 truncated"), "value", 2)
	require.False(t, ok)
}

func TestSumPDFLines(t *testing.T) {
	t.Parallel()

	row := func(texts ...pdf.Text) []pdfCell { return splitCells(texts) }
	glyph := func(s string, x float64) pdf.Text { return pdf.Text{S: s, X: x, W: 5, FontSize: 10} }

	lines := [][]pdfCell{
		row(glyph("Report", 10)),
		row(glyph("id", 10), glyph("Value", 100)),
		row(glyph("1", 10), glyph("1", 100), glyph("0", 105)),
		row(glyph("2", 10), glyph("3", 100), glyph("2", 105)),
		row(glyph("3", 10)),
	}
	got, ok := sumPDFLines(lines, "value")
	require.True(t, ok)
	require.InDelta(t, 42.0, got, 1e-9)

	_, ok = sumPDFLines(lines, "price")
	require.False(t, ok)
}

func TestSplitCells(t *testing.T) {
	t.Parallel()

	cells := splitCells(pdf.TextHorizontal{
		{S: "b", X: 6, W: 5, FontSize: 10},
		{S: "a", X: 0, W: 5, FontSize: 10},
		{S: "4", X: 60, W: 5, FontSize: 10},
		{S: "2", X: 65, W: 5, FontSize: 10},
	})
	require.Len(t, cells, 2)
	require.Equal(t, "ab", cells[0].text)
	require.Equal(t, "42", cells[1].text)
}

func TestKindForLink(t *testing.T) {
	t.Parallel()

	tests := map[string]quiz.FileKind{
		"https://x/data.pdf":          quiz.FileKindPDF,
		"https://x/DATA.CSV":          quiz.FileKindCSV,
		"https://x/export.csv?sig=ab": quiz.FileKindCSV,
		"https://x/book.xlsx":         quiz.FileKindSpreadsheet,
		"https://x/book.xls":          quiz.FileKindSpreadsheet,
		"https://x/report.pdf?v=2":    quiz.FileKindUnknown,
		"https://x/page.html":         quiz.FileKindUnknown,
	}
	for link, want := range tests {
		require.Equal(t, want, KindForLink(link), link)
	}
}

func TestSummerDispatch(t *testing.T) {
	t.Parallel()

	s := New(Config{})
	got, ok := s.Sum(quiz.FileKindCSV, []byte("value\n10\n20\n"))
	require.True(t, ok)
	require.InDelta(t, 30.0, got, 1e-9)

	_, ok = s.Sum(quiz.FileKindUnknown, []byte("value\n1\n"))
	require.False(t, ok)
}
