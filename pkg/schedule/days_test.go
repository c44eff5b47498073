package schedule

import "testing"

func TestMatchExactAndNoisy(t *testing.T) {
	days := DefaultDayConfig()
	cases := map[string]string{
		"Monday":    "Monday",
		"monday":    "Monday",
		"Mon]day":   "Monday",
		"Tuesdav":   "Tuesday",
		"Wednseday": "Wednesday",
		"THURSDAY":  "Thursday",
		"Frlday":    "Friday",
		"Saturdey":  "Saturday",
		"Sun.":      "Sunday",
	}
	for tok, want := range cases {
		got, ok := days.Match(tok)
		if !ok || got != want {
			t.Fatalf("Match(%q) = %q,%v want %q", tok, got, ok, want)
		}
	}
}

func TestMatchRejectsNonDays(t *testing.T) {
	days := DefaultDayConfig()
	for _, tok := range []string{"", "11-2pm", "Taco Truck", "Location", "!!!"} {
		if got, ok := days.Match(tok); ok {
			t.Fatalf("Match(%q) unexpectedly matched %q", tok, got)
		}
	}
}

func TestMatchClosestWins(t *testing.T) {
	days := DefaultDayConfig()
	// "sunda" is distance 1 from sunday, distance 3 from monday
	got, ok := days.Match("sunda")
	if !ok || got != "Sunday" {
		t.Fatalf("expected Sunday got %q ok=%v", got, ok)
	}
}

func TestMatchTighterTolerance(t *testing.T) {
	days := DefaultDayConfig()
	days.MaxDistance = 1
	if got, ok := days.Match("Frlday"); !ok || got != "Friday" {
		t.Fatalf("single substitution should still match, got %q ok=%v", got, ok)
	}
	if _, ok := days.Match("Wednseday"); ok {
		t.Fatalf("transposition costs two edits, should miss at tolerance 1")
	}
	if _, ok := days.Match("Mon"); ok {
		t.Fatalf("Mon should be out of range at tolerance 1")
	}
}

func TestAbbrev(t *testing.T) {
	if Abbrev("Wednesday") != "wed" {
		t.Fatalf("Abbrev(Wednesday) = %q", Abbrev("Wednesday"))
	}
	if Abbrev("So") != "so" {
		t.Fatalf("short input should just lowercase")
	}
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "abc", 3},
		{"abc", "abc", 0},
		{"monday", "sunday", 2},
		{"tuesday", "thursday", 2},
	}
	for _, c := range cases {
		if got := levenshtein(c.a, c.b); got != c.want {
			t.Fatalf("levenshtein(%q,%q) = %d want %d", c.a, c.b, got, c.want)
		}
	}
}
