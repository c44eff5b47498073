package schedule

import (
	"strings"
	"testing"
)

func TestParseFallbackSpacesStrategy(t *testing.T) {
	text := "Location  Monday  Tuesday  Wednesday  Thursday  Friday\n" +
		"Kolligian Quad 11-2  Taco Truck  Burger Bus  Pizza Wagon  Sushi Stop  Gyro Guys\n"
	fb := ParseFallback(text, DefaultDayConfig())
	if fb == nil {
		t.Fatalf("expected a fallback result")
	}
	if fb.Strategy != "spaces" {
		t.Fatalf("expected spaces strategy got %q", fb.Strategy)
	}
	if !fb.HasDayCells || fb.HeaderIndex != 0 {
		t.Fatalf("expected day header at line 0, got hasDay=%v idx=%d", fb.HasDayCells, fb.HeaderIndex)
	}
	if len(fb.Rows) != 1 {
		t.Fatalf("expected 1 row got %d", len(fb.Rows))
	}
	r := fb.Rows[0]
	if r.Kind != RowKindDayTable {
		t.Fatalf("expected day-table row")
	}
	if r.Location != "Kolligian Quad 11-2 Taco Truck Burger Bus Pizza Wagon Sushi Stop Gyro Guys" {
		// no day token inside the body line: it collapses into Location
		t.Fatalf("unexpected location %q", r.Location)
	}
}

func TestParseFallbackPipeStrategy(t *testing.T) {
	// pipes carry the day header; double-space splitting sees one long token
	text := "[Location|Monday|Tuesday|Wednesday|Thursday|Friday]\n" +
		"[Quad 11-2|Tacos|Burgers|Pizza|Sushi|Gyros]\n"
	fb := ParseFallback(text, DefaultDayConfig())
	if fb == nil {
		t.Fatalf("expected a fallback result")
	}
	if fb.Strategy != "pipe" {
		t.Fatalf("expected pipe strategy got %q", fb.Strategy)
	}
	if !fb.HasDayCells {
		t.Fatalf("expected forced day header")
	}
}

func TestParseFallbackEmptyText(t *testing.T) {
	if fb := ParseFallback("   \n\n  ", DefaultDayConfig()); fb != nil {
		t.Fatalf("whitespace-only text should yield nil, got %+v", fb)
	}
}

func TestParseFallbackNoHeaderGeneric(t *testing.T) {
	text := "Apples  2.50  10\nOranges  3.00  4\n"
	fb := ParseFallback(text, DefaultDayConfig())
	if fb == nil {
		t.Fatalf("expected generic rows")
	}
	if fb.HasDayCells {
		t.Fatalf("no day header expected")
	}
	for _, r := range fb.Rows {
		if r.Kind != RowKindGeneric {
			t.Fatalf("expected generic rows, got %+v", r)
		}
	}
}

func TestCleanHeaderForcesCanonical(t *testing.T) {
	days := DefaultDayConfig()
	headers, hasDay := cleanHeader([]string{"[Location", "MondayTuesday", "Wednseday]", "I", "x"}, days)
	if !hasDay {
		t.Fatalf("expected day detection")
	}
	want := append([]string{"Location"}, days.Canonical...)
	if len(headers) != len(want) {
		t.Fatalf("forced header mismatch: %v", headers)
	}
	for i := range want {
		if headers[i] != want[i] {
			t.Fatalf("forced header mismatch at %d: %v", i, headers)
		}
	}
}

func TestSplitCamel(t *testing.T) {
	got := splitCamel("MondayTuesday")
	if len(got) != 2 || got[0] != "Monday" || got[1] != "Tuesday" {
		t.Fatalf("splitCamel got %v", got)
	}
	got = splitCamel("Taco")
	if len(got) != 1 || got[0] != "Taco" {
		t.Fatalf("plain token should pass through, got %v", got)
	}
}

func TestFallbackFieldParityWithGridPath(t *testing.T) {
	// the same logical table through both paths yields the same field set
	days := DefaultDayConfig()
	m := CellMatrix{
		{"Location", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
		{"Quad 11-2pm", "Tacos", "", "Pizza", "", "Gyros"},
	}
	hdr := ResolveHeader(m, days)
	gridRows := Reconstruct(m, hdr, days)

	text := "[Location|Monday|Tuesday|Wednesday|Thursday|Friday]\n" +
		"[Quad 11-2pm|Tacos||Pizza||Gyros]\n"
	fb := ParseFallback(text, days)
	if fb == nil || len(fb.Rows) != len(gridRows) {
		t.Fatalf("row count mismatch: grid=%d fallback=%v", len(gridRows), fb)
	}
	g, f := gridRows[0], fb.Rows[0]
	if g.Kind != f.Kind {
		t.Fatalf("kind mismatch")
	}
	if len(g.Days) != len(f.Days) {
		t.Fatalf("day key set mismatch: %d vs %d", len(g.Days), len(f.Days))
	}
	for d := range g.Days {
		if _, ok := f.Days[d]; !ok {
			t.Fatalf("fallback row missing day key %s", d)
		}
	}
	if !strings.HasPrefix(f.Location, "Quad") {
		t.Fatalf("unexpected fallback location %q", f.Location)
	}
}
