package schedule

import (
	"context"
	"image"
	"log"
)

// Stage identifies the pipeline phase a progress event belongs to.
type Stage string

const (
	StageGrid      Stage = "grid"
	StageCells     Stage = "cells"
	StageFallback  Stage = "fallback"
	StageParse     Stage = "parse"
	StageNormalize Stage = "normalize"
	StageDone      Stage = "done"
)

// ProgressEvent reports extraction progress for UI feedback. It is an
// observability aid only; dropping events never changes results.
type ProgressEvent struct {
	Stage    Stage   `json:"stage"`
	Fraction float64 `json:"fraction"`
	Message  string  `json:"message"`
}

type ProgressFunc func(ProgressEvent)

// PathGrid/PathLines name which extraction path produced a result.
const (
	PathGrid  = "grid"
	PathLines = "lines"
)

// Result is the outcome of one extraction run. Rows carries the table shape
// (grid or fallback), Entries the normalized schedule. Both may be empty.
type Result struct {
	Rows     []Row   `json:"-"`
	Entries  []Entry `json:"entries"`
	Path     string  `json:"path"`
	Strategy string  `json:"strategy,omitempty"`
	RawText  string  `json:"-"`
}

// Pipeline bundles the collaborators of one extraction run. Zero-value
// fields are filled with defaults by NewPipeline.
type Pipeline struct {
	Ops      ImageOps
	Rec      Recognizer
	Days     DayConfig
	Grid     GridConfig
	Progress ProgressFunc
}

func NewPipeline(rec Recognizer) *Pipeline {
	return &Pipeline{
		Ops:  RasterOps{},
		Rec:  rec,
		Days: DefaultDayConfig(),
		Grid: DefaultGridConfig(),
	}
}

// progressEmitter returns a per-run emit func that never lets the reported
// fraction decrease. The fallback path nominally restarts at 0.5 after the
// grid path has already reported cell progress; clamping to the running
// maximum keeps the completion fraction monotonic for callers.
func (p *Pipeline) progressEmitter() func(Stage, float64, string) {
	last := 0.0
	return func(stage Stage, fraction float64, msg string) {
		if fraction < last {
			fraction = last
		} else {
			last = fraction
		}
		if p.Progress != nil {
			p.Progress(ProgressEvent{Stage: stage, Fraction: fraction, Message: msg})
		}
	}
}

// Extract runs the full schedule extraction over a decoded image. It never
// panics past this boundary: unexpected failures in any stage degrade to an
// empty result with ErrNoSchedule. Context cancellation is honored between
// per-cell OCR calls and returns ctx.Err().
func (p *Pipeline) Extract(ctx context.Context, img image.Image, weekStart string) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("schedule extract panic recovered: %v", r)
			res = &Result{}
			err = ErrNoSchedule
		}
	}()

	emit := p.progressEmitter()
	emit(StageGrid, 0.25, "Detecting grid...")
	if g := DetectGrid(p.Ops, img, p.Grid); g != nil {
		emit(StageCells, 0.35, "Reading cells...")
		matrix, cellErr := ReadCells(ctx, p.Rec, img, g, func(f float64) {
			emit(StageCells, 0.35+f*0.45, "Reading cells...")
		})
		if cellErr != nil {
			return &Result{}, cellErr
		}
		emit(StageParse, 0.85, "Parsing table...")
		hdr := ResolveHeader(matrix, p.Days)
		rows := Reconstruct(matrix, hdr, p.Days)
		// A plausible schedule needs a confident day header and at least
		// two data rows; anything weaker falls through to line parsing.
		if hdr.HasDayCells && len(rows) >= 2 {
			return p.finish(emit, rows, weekStart, PathGrid, "", "")
		}
		log.Printf("grid path weak (dayHeader=%v rows=%d), falling back", hdr.HasDayCells, len(rows))
	}

	emit(StageFallback, 0.5, "Running text recognition...")
	text, recErr := p.Rec.Recognize(ctx, img, RecognizeOptions{})
	if recErr != nil {
		if ctx.Err() != nil {
			return &Result{}, ctx.Err()
		}
		log.Printf("fallback ocr failed: %v", recErr)
		return &Result{}, ErrNoSchedule
	}
	emit(StageParse, 0.85, "Parsing lines...")
	fb := ParseFallback(text, p.Days)
	if fb == nil {
		log.Printf("fallback found no table-like lines; text=%q", snippet(text, 140))
		return &Result{RawText: text}, ErrNoSchedule
	}
	return p.finish(emit, fb.Rows, weekStart, PathLines, fb.Strategy, text)
}

func (p *Pipeline) finish(emit func(Stage, float64, string), rows []Row, weekStart, path, strategy, raw string) (*Result, error) {
	emit(StageNormalize, 0.95, "Normalizing entries...")
	entries := NormalizeRows(rows, weekStart, p.Days)
	res := &Result{Rows: rows, Entries: entries, Path: path, Strategy: strategy, RawText: raw}
	emit(StageDone, 1, "Done")
	if len(entries) == 0 && !hasDayRows(rows) {
		return res, ErrNoSchedule
	}
	return res, nil
}

func hasDayRows(rows []Row) bool {
	for _, r := range rows {
		if r.Kind == RowKindDayTable {
			return true
		}
	}
	return false
}
