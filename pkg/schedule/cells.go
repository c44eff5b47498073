package schedule

import (
	"context"
	"image"
	"log"

	"github.com/disintegration/imaging"
)

// CellMatrix is the rectangular array of recognized cell text, indexed by
// [row][column]. Unrecognized or skipped cells hold the empty string.
type CellMatrix [][]string

func (m CellMatrix) Rows() int { return len(m) }

func (m CellMatrix) Cols() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// ReadCells crops each detected cell and recognizes it in single-line mode.
// A recognition failure in one cell becomes an empty string for that cell and
// never aborts the batch. The context is checked between cells; on
// cancellation the partial matrix is returned together with ctx.Err().
// progress, if non-nil, receives the monotonically increasing fraction of
// cells completed.
func ReadCells(ctx context.Context, rec Recognizer, src image.Image, g *Grid, progress func(float64)) (CellMatrix, error) {
	m := make(CellMatrix, g.Rows())
	for i := range m {
		m[i] = make([]string, g.Cols())
	}
	for i, box := range g.Cells {
		if err := ctx.Err(); err != nil {
			return m, err
		}
		crop := imaging.Crop(src, image.Rect(box.X, box.Y, box.X+box.W, box.Y+box.H))
		text, err := rec.Recognize(ctx, crop, RecognizeOptions{SingleLine: true})
		if err != nil {
			if ctx.Err() != nil {
				return m, ctx.Err()
			}
			log.Printf("cell ocr failed r=%d c=%d: %v", box.Row, box.Col, err)
			text = ""
		}
		m[box.Row][box.Col] = normalizeText(text)
		if progress != nil {
			progress(float64(i+1) / float64(len(g.Cells)))
		}
	}
	return m, nil
}
