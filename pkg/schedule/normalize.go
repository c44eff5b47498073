package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Entry is one truck's serving window on one day of one week, the pipeline's
// final output unit. Start/End are 24-hour HH:MM strings except for the
// Night Service sentinel, which keeps Start = NightService and an empty End.
type Entry struct {
	WeekStart string `json:"week_start"`
	Truck     string `json:"truck"`
	Day       string `json:"day"` // 3-letter lowercase
	Start     string `json:"start"`
	End       string `json:"end"`
	Cuisine   string `json:"cuisine,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// NightService is the sentinel label for trucks serving through the evening;
// it is deliberately not decomposed into numeric start/end times.
const NightService = "Night Service"

// NoteOCRTable marks entries derived from a live OCR table run, as opposed
// to cache-served rows. Consumers use it for display styling only.
const NoteOCRTable = "ocr-table"

const (
	defaultStart = "10:00"
	defaultEnd   = "18:00"
	// lateEnd extends the default window for trucks known to run night
	// hours when the schedule prints no explicit range.
	lateEnd = "23:00"
)

var (
	hoursRE        = regexp.MustCompile(`(?i)(\d{1,2})(?::(\d{2}))?\s?(am|pm)?\s?[-–]\s?(\d{1,2})(?::(\d{2}))?\s?(am|pm)?`)
	closedRE       = regexp.MustCompile(`(?i)^(closed|holiday)$`)
	nightServiceRE = regexp.MustCompile(`(?i)night service`)
	truckCharsRE   = regexp.MustCompile(`[^A-Za-z0-9&'()\-\s]`)
	elTacoRE       = regexp.MustCompile(`(?i)el\s*taco`)
)

// noiseTrucks are header fragments the OCR occasionally leaves in data cells.
var noiseTrucks = map[string]struct{}{
	"Co":          {},
	"UCM Week of": {},
}

// ParseHours extracts an hour range from a free-text descriptor like
// "11-2pm" or "11:30 AM - 2:30 PM". A missing AM/PM marker on one side
// inherits the other side's marker, except when inheriting would put the
// start after the end: then the unmarked side flips, so "11-2pm" reads as
// 11:00-14:00 and "10am-2" as 10:00-14:00.
func ParseHours(src string) (start, end string, ok bool) {
	m := hoursRE.FindStringSubmatch(src)
	if m == nil {
		return "", "", false
	}
	sh, _ := strconv.Atoi(m[1])
	eh, _ := strconv.Atoi(m[4])
	sap := strings.ToLower(m[3])
	eap := strings.ToLower(m[6])
	switch {
	case sap == "" && eap != "":
		sap = eap
		if eap == "pm" && sh > eh && sh != 12 {
			sap = "am"
		}
	case eap == "" && sap != "":
		eap = sap
		if sap == "am" && eh < sh && eh != 12 {
			eap = "pm"
		}
	case sap == "" && eap == "":
		// no markers at all: a descending bare range like "10-6" is a
		// morning-to-evening window
		if eh < sh && eh != 12 {
			eap = "pm"
		}
	}
	return to24(sh, m[2], sap), to24(eh, m[5], eap), true
}

func to24(h int, mm, ap string) string {
	if ap == "pm" && h != 12 {
		h += 12
	}
	if ap == "am" && h == 12 {
		h = 0
	}
	if mm == "" {
		mm = "00"
	}
	return fmt.Sprintf("%02d:%s", h, mm)
}

// NormalizeRows converts reconstructed rows into final schedule entries.
// The Location field doubles as the hours descriptor; cells that are empty
// or read "Closed"/"Holiday" produce nothing; truck names are stripped to a
// safe character set. Generic rows carry no day columns and yield no entries.
func NormalizeRows(rows []Row, weekStart string, days DayConfig) []Entry {
	var out []Entry
	for _, row := range rows {
		if row.Kind != RowKindDayTable {
			continue
		}
		var start, end string
		parsed := false
		if nightServiceRE.MatchString(row.Location) {
			start, end = NightService, ""
			parsed = true
		} else if s, e, ok := ParseHours(row.Location); ok {
			start, end = s, e
			parsed = true
		} else {
			start, end = defaultStart, defaultEnd
		}
		for _, day := range days.Canonical {
			cell := strings.TrimSpace(row.Days[day])
			if cell == "" || closedRE.MatchString(cell) {
				continue
			}
			truck := strings.TrimSpace(truckCharsRE.ReplaceAllString(cell, ""))
			if truck == "" {
				continue
			}
			if _, noise := noiseTrucks[truck]; noise {
				continue
			}
			s, e := start, end
			if !parsed && elTacoRE.MatchString(truck) {
				e = lateEnd
			}
			out = append(out, Entry{
				WeekStart: weekStart,
				Truck:     truck,
				Day:       Abbrev(day),
				Start:     s,
				End:       e,
				Notes:     NoteOCRTable,
			})
		}
	}
	return out
}
