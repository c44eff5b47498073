package schedule

import (
	"image"
	"log"
)

// CellBox is one detected table cell in pixel coordinates.
type CellBox struct {
	Row, Col int
	X, Y     int
	W, H     int
}

// Grid holds the detected rule-line coordinates and the cell boxes they
// enclose. Rows/Cols report the logical matrix dimensions including cells
// skipped as too thin.
type Grid struct {
	RowLines []int
	ColLines []int
	Cells    []CellBox
}

func (g *Grid) Rows() int { return len(g.RowLines) - 1 }
func (g *Grid) Cols() int { return len(g.ColLines) - 1 }

// GridConfig bundles the plausibility thresholds for table detection.
type GridConfig struct {
	// MinRowLines/MinColLines are the minimum rule-line counts for a
	// plausible schedule table (header + data rows, location + day columns).
	MinRowLines int
	MinColLines int
	// MaxCells rejects dense noise misdetected as a grid.
	MaxCells int
	// MinCellPx skips cells thinner than this in either dimension.
	MinCellPx int
	// LineCoverage is the fraction of the opposite extent an ink profile
	// must cover to qualify as a rule line.
	LineCoverage float64
	// GapCollapse merges qualifying coordinates closer than this many px
	// into one logical line.
	GapCollapse int
}

func DefaultGridConfig() GridConfig {
	return GridConfig{
		MinRowLines:  3,
		MinColLines:  5,
		MaxCells:     1200,
		MinCellPx:    12,
		LineCoverage: 0.5,
		GapCollapse:  4,
	}
}

// DetectGrid looks for a ruled table in src. A nil result means "no grid" and
// is the designed trigger for the line-based fallback, not an error.
func DetectGrid(ops ImageOps, src image.Image, cfg GridConfig) *Grid {
	gray := ops.Grayscale(src)
	w := gray.Bounds().Dx()
	h := gray.Bounds().Dy()
	if w < 2 || h < 2 {
		return nil
	}

	// Otsu pass decides polarity only: a mostly-dark result means the table
	// is rendered light-on-dark and the grayscale must be inverted before
	// line extraction.
	if _, whiteRatio := ops.OtsuBinarize(gray); whiteRatio < 0.5 {
		gray = invertNRGBA(gray)
	}

	work := ops.AdaptiveThreshold(gray, 21, 10)

	hSize := w / 30
	if hSize < 10 {
		hSize = 10
	}
	vSize := h / 25
	if vSize < 8 {
		vSize = 8
	}
	horiz := ops.OpenHorizontal(work, hSize)
	vert := ops.OpenVertical(work, vSize)

	hThresh := int(float64(w) * cfg.LineCoverage)
	var rowLines []int
	for y := 0; y < h; y++ {
		cnt := 0
		for x := 0; x < w; x++ {
			if horiz.NRGBAAt(x, y).R == 0 {
				cnt++
			}
		}
		if cnt > hThresh {
			rowLines = append(rowLines, y)
		}
	}

	vThresh := int(float64(h) * cfg.LineCoverage)
	var colLines []int
	for x := 0; x < w; x++ {
		cnt := 0
		for y := 0; y < h; y++ {
			if vert.NRGBAAt(x, y).R == 0 {
				cnt++
			}
		}
		if cnt > vThresh {
			colLines = append(colLines, x)
		}
	}

	rowLines = collapseLines(rowLines, cfg.GapCollapse)
	colLines = collapseLines(colLines, cfg.GapCollapse)

	// Outer boundaries count as implicit grid lines so the outermost cells
	// are bounded even when the table has no drawn border.
	if len(rowLines) == 0 || rowLines[0] != 0 {
		rowLines = append([]int{0}, rowLines...)
	}
	if rowLines[len(rowLines)-1] != h-1 {
		rowLines = append(rowLines, h-1)
	}
	if len(colLines) == 0 || colLines[0] != 0 {
		colLines = append([]int{0}, colLines...)
	}
	if colLines[len(colLines)-1] != w-1 {
		colLines = append(colLines, w-1)
	}

	if len(rowLines) < cfg.MinRowLines || len(colLines) < cfg.MinColLines {
		log.Printf("grid: implausible line counts rows=%d cols=%d", len(rowLines), len(colLines))
		return nil
	}
	if len(rowLines)*len(colLines) >= cfg.MaxCells {
		log.Printf("grid: rejecting dense detection rows=%d cols=%d", len(rowLines), len(colLines))
		return nil
	}

	g := &Grid{RowLines: rowLines, ColLines: colLines}
	for r := 0; r < len(rowLines)-1; r++ {
		y0, y1 := rowLines[r], rowLines[r+1]
		if y1-y0 < cfg.MinCellPx {
			continue
		}
		for c := 0; c < len(colLines)-1; c++ {
			x0, x1 := colLines[c], colLines[c+1]
			if x1-x0 < cfg.MinCellPx {
				continue
			}
			g.Cells = append(g.Cells, CellBox{Row: r, Col: c, X: x0, Y: y0, W: x1 - x0, H: y1 - y0})
		}
	}
	log.Printf("grid: detected rows=%d cols=%d cells=%d", g.Rows(), g.Cols(), len(g.Cells))
	return g
}

// collapseLines merges runs of adjacent qualifying coordinates (gap below
// maxGap) into their midpoint, so a thick drawn stroke becomes one line.
func collapseLines(lines []int, maxGap int) []int {
	if len(lines) == 0 {
		return nil
	}
	var out []int
	i := 0
	for i < len(lines) {
		j := i
		for j+1 < len(lines) && lines[j+1]-lines[j] < maxGap {
			j++
		}
		out = append(out, (lines[i]+lines[j]+1)/2)
		i = j + 1
	}
	return out
}

func invertNRGBA(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			p := img.NRGBAAt(x, y)
			p.R = 255 - p.R
			p.G = 255 - p.G
			p.B = 255 - p.B
			out.SetNRGBA(x, y, p)
		}
	}
	return out
}
