package parser

import (
	"bytes"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// cellGapEm is the horizontal gap, in font-size units, that separates two
// table cells on the same text row.
const cellGapEm = 1.0

type pdfCell struct {
	text   string
	x0, x1 float64
}

func (c pdfCell) center() float64 { return (c.x0 + c.x1) / 2 }

// SumPDF sums column across the tables of a PDF. The 1-indexed page is
// inspected when it exists; otherwise every page is.
func SumPDF(data []byte, column string, page int) (total float64, found bool) {
	defer func() {
		// The pdf reader panics on some malformed streams.
		if recover() != nil {
			total, found = 0, false
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, false
	}

	pages := make([]int, 0, r.NumPage())
	if page >= 1 && r.NumPage() >= page {
		pages = append(pages, page)
	} else {
		for i := 1; i <= r.NumPage(); i++ {
			pages = append(pages, i)
		}
	}

	for _, num := range pages {
		p := r.Page(num)
		if p.V.IsNull() {
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			continue
		}
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Position > rows[j].Position })

		lines := make([][]pdfCell, 0, len(rows))
		for _, row := range rows {
			lines = append(lines, splitCells(row.Content))
		}
		if sum, ok := sumPDFLines(lines, column); ok {
			total += sum
			found = true
		}
	}
	return total, found
}

// sumPDFLines walks text rows top to bottom. A row containing the column
// header starts a table; later rows contribute the cell aligned with it.
func sumPDFLines(lines [][]pdfCell, column string) (float64, bool) {
	want := strings.ToLower(strings.TrimSpace(column))
	var (
		header *pdfCell
		total  float64
		found  bool
	)
	for _, cells := range lines {
		if h, ok := findHeader(cells, want); ok {
			header = &h
			found = true
			continue
		}
		if header == nil {
			continue
		}
		if cell, ok := alignedCell(cells, *header); ok {
			if v, ok := coerce(cell.text); ok {
				total += v
			}
		}
	}
	return total, found
}

func findHeader(cells []pdfCell, want string) (pdfCell, bool) {
	for _, c := range cells {
		if strings.ToLower(strings.TrimSpace(c.text)) == want {
			return c, true
		}
	}
	return pdfCell{}, false
}

// alignedCell returns the cell horizontally closest to header, provided it
// overlaps the header's column band.
func alignedCell(cells []pdfCell, header pdfCell) (pdfCell, bool) {
	best, bestDist := pdfCell{}, math.MaxFloat64
	width := header.x1 - header.x0
	for _, c := range cells {
		dist := math.Abs(c.center() - header.center())
		if dist < bestDist {
			best, bestDist = c, dist
		}
	}
	tolerance := math.Max(width, 10)
	if bestDist > tolerance && (best.x1 < header.x0 || best.x0 > header.x1) {
		return pdfCell{}, false
	}
	return best, bestDist != math.MaxFloat64
}

// splitCells groups the glyph runs of one text row into cells separated by
// wide horizontal gaps.
func splitCells(texts pdf.TextHorizontal) []pdfCell {
	sorted := append(pdf.TextHorizontal(nil), texts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	var (
		cells []pdfCell
		cur   *pdfCell
		b     strings.Builder
		lastX float64
	)
	flush := func() {
		if cur == nil {
			return
		}
		cur.text = strings.TrimSpace(b.String())
		if cur.text != "" {
			cells = append(cells, *cur)
		}
		cur = nil
		b.Reset()
	}
	for _, t := range sorted {
		size := t.FontSize
		if size <= 0 {
			size = 10
		}
		if cur != nil && t.X-lastX > size*cellGapEm {
			flush()
		}
		if cur == nil {
			cur = &pdfCell{x0: t.X}
		}
		b.WriteString(t.S)
		end := t.X + t.W
		if end < t.X {
			end = t.X
		}
		cur.x1 = end
		lastX = end
	}
	flush()
	return cells
}
