package schedule

// headerScanRows bounds how deep the header search looks; schedule tables put
// the day row at or very near the top.
const headerScanRows = 6

// headerScore is the minimum count of fuzzy day matches for a row to be
// accepted as the header.
const headerScore = 3

// HeaderMapping maps a canonical day name to its column index in the matrix.
// At most one column per day; first occurrence wins.
type HeaderMapping map[string]int

// Header describes the resolved header row of a CellMatrix.
type Header struct {
	RowIndex int
	Mapping  HeaderMapping
	// HasDayCells is true when the header row was confidently identified by
	// day-name matches. When false the grid path degrades to positional
	// column titles.
	HasDayCells bool
}

// ResolveHeader scans the top rows of the matrix for the one most likely to
// be the day header. If no row reaches the score threshold, row 0 is used as
// a weak default and HasDayCells reflects whether it contains any day cell.
func ResolveHeader(m CellMatrix, days DayConfig) Header {
	hdr := Header{RowIndex: 0, Mapping: HeaderMapping{}}
	if m.Rows() == 0 {
		return hdr
	}
	limit := m.Rows()
	if limit > headerScanRows {
		limit = headerScanRows
	}
	for r := 0; r < limit; r++ {
		score := 0
		for _, cell := range m[r] {
			if _, ok := days.Match(cell); ok {
				score++
			}
		}
		if score >= headerScore {
			hdr.RowIndex = r
			break
		}
	}
	cells := m[hdr.RowIndex]
	for c, cell := range cells {
		d, ok := days.Match(cell)
		if !ok {
			continue
		}
		hdr.HasDayCells = true
		if _, dup := hdr.Mapping[d]; !dup {
			hdr.Mapping[d] = c
		}
	}
	return hdr
}
