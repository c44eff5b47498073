package schedule

import (
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
)

// drawTable paints a white canvas with full-length black rule lines at the
// given y and x coordinates.
func drawTable(w, h int, rowYs, colXs []int) *image.NRGBA {
	img := imaging.New(w, h, color.NRGBA{255, 255, 255, 255})
	black := color.NRGBA{0, 0, 0, 255}
	for _, y := range rowYs {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, black)
		}
	}
	for _, x := range colXs {
		for y := 0; y < h; y++ {
			img.SetNRGBA(x, y, black)
		}
	}
	return img
}

func TestDetectGridSyntheticTable(t *testing.T) {
	img := drawTable(600, 400, []int{50, 150, 250, 350}, []int{40, 140, 240, 340, 440, 540})
	g := DetectGrid(RasterOps{}, img, DefaultGridConfig())
	if g == nil {
		t.Fatalf("expected grid on ruled table image")
	}
	if g.Rows() != 5 || g.Cols() != 7 {
		t.Fatalf("expected 5x7 grid got %dx%d (rowLines=%v colLines=%v)", g.Rows(), g.Cols(), g.RowLines, g.ColLines)
	}
	if len(g.Cells) != 35 {
		t.Fatalf("expected 35 cells got %d", len(g.Cells))
	}
}

func TestDetectGridRejectsBlank(t *testing.T) {
	img := imaging.New(300, 200, color.NRGBA{255, 255, 255, 255})
	if g := DetectGrid(RasterOps{}, img, DefaultGridConfig()); g != nil {
		t.Fatalf("blank image must not produce a grid, got %dx%d", g.Rows(), g.Cols())
	}
}

func TestDetectGridTooFewColumns(t *testing.T) {
	// plenty of horizontal rules but only one vertical: not a schedule table
	img := drawTable(600, 400, []int{50, 150, 250, 350}, []int{300})
	if g := DetectGrid(RasterOps{}, img, DefaultGridConfig()); g != nil {
		t.Fatalf("expected rejection with too few column lines")
	}
}

func TestDetectGridInvertedPolarity(t *testing.T) {
	// white rules on black background must be detected after inversion
	img := imaging.New(600, 400, color.NRGBA{0, 0, 0, 255})
	white := color.NRGBA{255, 255, 255, 255}
	for _, y := range []int{50, 150, 250, 350} {
		for x := 0; x < 600; x++ {
			img.SetNRGBA(x, y, white)
		}
	}
	for _, x := range []int{40, 140, 240, 340, 440, 540} {
		for y := 0; y < 400; y++ {
			img.SetNRGBA(x, y, white)
		}
	}
	g := DetectGrid(RasterOps{}, img, DefaultGridConfig())
	if g == nil {
		t.Fatalf("expected grid on inverted table image")
	}
	if g.Rows() != 5 || g.Cols() != 7 {
		t.Fatalf("expected 5x7 grid got %dx%d", g.Rows(), g.Cols())
	}
}

func TestCollapseLines(t *testing.T) {
	got := collapseLines([]int{10, 11, 12, 100, 101, 300}, 4)
	want := []int{11, 101, 300}
	if len(got) != len(want) {
		t.Fatalf("collapse got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("collapse got %v want %v", got, want)
		}
	}
}

func TestOpenHorizontalFiltersShortRuns(t *testing.T) {
	img := imaging.New(100, 3, color.NRGBA{255, 255, 255, 255})
	black := color.NRGBA{0, 0, 0, 255}
	// short run (text-like) on row 0, long run (rule-like) on row 1
	for x := 10; x < 15; x++ {
		img.SetNRGBA(x, 0, black)
	}
	for x := 5; x < 95; x++ {
		img.SetNRGBA(x, 1, black)
	}
	out := RasterOps{}.OpenHorizontal(img, 20)
	if out.NRGBAAt(12, 0).R == 0 {
		t.Fatalf("short run should be erased")
	}
	if out.NRGBAAt(50, 1).R != 0 {
		t.Fatalf("long run should survive")
	}
}
