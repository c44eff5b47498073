package schedule

import (
	"strconv"
	"strings"
)

// RowKind tags the two shapes a reconstructed row can take, so consumers
// switch on the kind instead of probing map keys.
type RowKind int

const (
	// RowKindDayTable rows carry a Location plus one cell per canonical day.
	RowKindDayTable RowKind = iota
	// RowKindGeneric rows carry arbitrary header-titled columns, used when
	// no confident day header was found.
	RowKindGeneric
)

// Column is one named cell of a generic row, in original column order.
type Column struct {
	Name  string
	Value string
}

// Row is one reconstructed table row.
type Row struct {
	Kind     RowKind
	Location string
	// Days maps canonical day name to cell content; empty string when the
	// day was not present as a column in this image.
	Days map[string]string
	// Columns holds the generic shape; nil for day-table rows.
	Columns []Column
}

// minLocationLen drops noise rows whose location/time descriptor is too
// short to be meaningful.
const minLocationLen = 3

// Reconstruct assembles structured rows from the recognized matrix and the
// resolved header. Day-table rows whose trimmed Location is shorter than
// three characters are discarded as noise; generic rows survive if any cell
// is non-empty.
func Reconstruct(m CellMatrix, hdr Header, days DayConfig) []Row {
	var out []Row
	if m.Rows() == 0 {
		return out
	}
	headerCells := m[hdr.RowIndex]
	firstDayCol := -1
	for _, idx := range hdr.Mapping {
		if firstDayCol == -1 || idx < firstDayCol {
			firstDayCol = idx
		}
	}
	for r := 0; r < m.Rows(); r++ {
		if r == hdr.RowIndex {
			continue
		}
		cells := m[r]
		empty := true
		for _, c := range cells {
			if c != "" {
				empty = false
				break
			}
		}
		if empty {
			continue
		}
		if hdr.HasDayCells {
			var locParts []string
			for c := 0; c < firstDayCol && c < len(cells); c++ {
				if cells[c] != "" {
					locParts = append(locParts, cells[c])
				}
			}
			loc := strings.TrimSpace(strings.Join(locParts, " "))
			if len(loc) < minLocationLen {
				continue
			}
			row := Row{Kind: RowKindDayTable, Location: loc, Days: map[string]string{}}
			for _, d := range days.Canonical {
				idx, ok := hdr.Mapping[d]
				if ok && idx < len(cells) {
					row.Days[d] = cells[idx]
				} else {
					row.Days[d] = ""
				}
			}
			out = append(out, row)
			continue
		}
		row := Row{Kind: RowKindGeneric}
		for i, cell := range cells {
			name := ""
			if i < len(headerCells) {
				name = headerCells[i]
			}
			if name == "" {
				name = genericColName(i)
			}
			row.Columns = append(row.Columns, Column{Name: name, Value: cell})
		}
		out = append(out, row)
	}
	return out
}

func genericColName(i int) string {
	return "Col" + strconv.Itoa(i+1)
}
