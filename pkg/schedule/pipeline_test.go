package schedule

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
)

// fakeRecognizer replays canned responses in call order. Grid cells are read
// in row-major order, so a queue is enough to script a whole table.
type fakeRecognizer struct {
	queue []string
	calls int
	err   error
}

func (f *fakeRecognizer) Recognize(ctx context.Context, img image.Image, opts RecognizeOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.err != nil {
		return "", f.err
	}
	if f.calls >= len(f.queue) {
		return "", nil
	}
	out := f.queue[f.calls]
	f.calls++
	return out, nil
}

func scheduleTableImage() *image.NRGBA {
	return drawTable(600, 400, []int{50, 150, 250, 350}, []int{40, 140, 240, 340, 440, 540})
}

// scheduleCellQueue scripts a 5x7 matrix: day header, two data rows, two
// empty rows.
func scheduleCellQueue() []string {
	q := []string{
		"Location", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday",
		"Food Trucks 11-2pm", "Taco Truck", "", "Burger Bus", "", "Pizza Wagon", "",
		"Night Service", "La Noche", "", "", "", "", "",
	}
	for len(q) < 35 {
		q = append(q, "")
	}
	return q
}

func TestExtractGridPath(t *testing.T) {
	rec := &fakeRecognizer{queue: scheduleCellQueue()}
	p := NewPipeline(rec)
	res, err := p.Extract(context.Background(), scheduleTableImage(), "2025-08-25")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if res.Path != PathGrid {
		t.Fatalf("expected grid path got %q", res.Path)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 table rows got %d", len(res.Rows))
	}
	if len(res.Entries) != 4 {
		t.Fatalf("expected 4 entries got %d: %+v", len(res.Entries), res.Entries)
	}
	byDayTruck := map[string]Entry{}
	for _, e := range res.Entries {
		byDayTruck[e.Day+"/"+e.Truck] = e
	}
	taco, ok := byDayTruck["mon/Taco Truck"]
	if !ok || taco.Start != "11:00" || taco.End != "14:00" {
		t.Fatalf("taco entry wrong: %+v (all %v)", taco, res.Entries)
	}
	night, ok := byDayTruck["mon/La Noche"]
	if !ok || night.Start != NightService {
		t.Fatalf("night service entry wrong: %+v", night)
	}
	for _, e := range res.Entries {
		if e.WeekStart != "2025-08-25" {
			t.Fatalf("week start not propagated: %+v", e)
		}
	}
}

func TestExtractFallbackPath(t *testing.T) {
	rec := &fakeRecognizer{queue: []string{
		"Location  Monday  Tuesday  Wednesday  Thursday  Friday\n" +
			"Quad 11-2pm  Tacos  Burgers  Pizza  Sushi  Gyros\n",
	}}
	p := NewPipeline(rec)
	blank := imaging.New(300, 200, color.NRGBA{255, 255, 255, 255})
	res, err := p.Extract(context.Background(), blank, "2025-08-25")
	if res == nil || res.Path != PathLines {
		t.Fatalf("expected lines path, res=%+v err=%v", res, err)
	}
	if res.Strategy != "spaces" {
		t.Fatalf("expected spaces strategy got %q", res.Strategy)
	}
	if len(res.Rows) != 1 || res.Rows[0].Kind != RowKindDayTable {
		t.Fatalf("unexpected fallback rows %+v", res.Rows)
	}
}

func TestExtractNoScheduleAnywhere(t *testing.T) {
	rec := &fakeRecognizer{queue: []string{"just some noise"}}
	p := NewPipeline(rec)
	blank := imaging.New(300, 200, color.NRGBA{255, 255, 255, 255})
	res, err := p.Extract(context.Background(), blank, "2025-08-25")
	if !errors.Is(err, ErrNoSchedule) {
		t.Fatalf("expected ErrNoSchedule got %v", err)
	}
	if res == nil || len(res.Entries) != 0 {
		t.Fatalf("no-schedule result must be empty, got %+v", res)
	}
}

func TestExtractGenericRowsStillNoSchedule(t *testing.T) {
	// table-like text without day names: rows come back but no entries
	rec := &fakeRecognizer{queue: []string{"Apples  2.50  10\nOranges  3.00  4\n"}}
	p := NewPipeline(rec)
	blank := imaging.New(300, 200, color.NRGBA{255, 255, 255, 255})
	res, err := p.Extract(context.Background(), blank, "2025-08-25")
	if !errors.Is(err, ErrNoSchedule) {
		t.Fatalf("expected ErrNoSchedule got %v", err)
	}
	if len(res.Rows) == 0 {
		t.Fatalf("generic rows should still be reported for diagnostics")
	}
}

func TestExtractCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &fakeRecognizer{queue: scheduleCellQueue()}
	p := NewPipeline(rec)
	_, err := p.Extract(ctx, scheduleTableImage(), "2025-08-25")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled got %v", err)
	}
}

func TestExtractProgressMonotonic(t *testing.T) {
	rec := &fakeRecognizer{queue: scheduleCellQueue()}
	p := NewPipeline(rec)
	last := -1.0
	p.Progress = func(ev ProgressEvent) {
		if ev.Fraction < last {
			t.Fatalf("progress went backwards: %f after %f (%s)", ev.Fraction, last, ev.Stage)
		}
		last = ev.Fraction
	}
	if _, err := p.Extract(context.Background(), scheduleTableImage(), "2025-08-25"); err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if last != 1 {
		t.Fatalf("expected final progress 1 got %f", last)
	}
}

func TestExtractProgressMonotonicWeakGrid(t *testing.T) {
	// A grid is detected but every cell reads blank, so cell progress runs
	// to 0.85 before the pipeline falls back to whole-image recognition.
	// The fallback stage must not rewind the reported fraction.
	queue := make([]string, 35)
	queue = append(queue,
		"Location  Monday  Tuesday  Wednesday  Thursday  Friday\n"+
			"Quad 11-2pm  Tacos  Burgers  Pizza  Sushi  Gyros\n")
	rec := &fakeRecognizer{queue: queue}
	p := NewPipeline(rec)
	last := -1.0
	p.Progress = func(ev ProgressEvent) {
		if ev.Fraction < last {
			t.Fatalf("progress went backwards: %f after %f (%s)", ev.Fraction, last, ev.Stage)
		}
		last = ev.Fraction
	}
	res, err := p.Extract(context.Background(), scheduleTableImage(), "2025-08-25")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if res.Path != PathLines {
		t.Fatalf("expected fallback to lines path, got %q", res.Path)
	}
	if last != 1 {
		t.Fatalf("expected final progress 1 got %f", last)
	}
}

func TestReadCellsPartialOnCancel(t *testing.T) {
	img := scheduleTableImage()
	g := DetectGrid(RasterOps{}, img, DefaultGridConfig())
	if g == nil {
		t.Fatalf("no grid")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m, err := ReadCells(ctx, &fakeRecognizer{}, img, g, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error got %v", err)
	}
	if m.Rows() != g.Rows() || m.Cols() != g.Cols() {
		t.Fatalf("partial matrix must keep grid shape, got %dx%d", m.Rows(), m.Cols())
	}
}
