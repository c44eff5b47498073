package schedule

import (
	"regexp"
	"strings"
)

// FallbackResult carries the rows recovered from unstructured OCR text plus
// the diagnostics the server reports back to callers.
type FallbackResult struct {
	Rows []Row
	// Strategy is "spaces" or "pipe" depending on which tokenization won.
	Strategy    string
	HeaderIndex int
	HasDayCells bool
}

var (
	multiSpaceRE  = regexp.MustCompile(`\s{2,}`)
	lineSplitRE   = regexp.MustCompile(`\n+`)
	edgeLettersRE = regexp.MustCompile(`^[^A-Za-z]+|[^A-Za-z]+$`)
	daySuffixRE   = regexp.MustCompile(`(?i)day$`)
)

// ParseFallback reconstructs a table from whole-image OCR text when no grid
// was detected. Two tokenizations are tried per line: splitting on runs of
// two or more spaces, and splitting on pipes after stripping brackets. The
// one whose best row looks most like a day header wins; ties keep the
// space strategy.
func ParseFallback(text string, days DayConfig) *FallbackResult {
	var lines []string
	for _, l := range lineSplitRE.Split(text, -1) {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return nil
	}

	strategyA := make([][]string, len(lines))
	strategyB := make([][]string, len(lines))
	for i, l := range lines {
		strategyA[i] = splitNonEmpty(multiSpaceRE.Split(l, -1))
		stripped := strings.NewReplacer("[", " ", "]", " ").Replace(l)
		strategyB[i] = splitNonEmpty(strings.Split(stripped, "|"))
	}

	scoreA, idxA := scoreHeaderSet(strategyA, days)
	scoreB, idxB := scoreHeaderSet(strategyB, days)

	table := strategyA
	headerIndex := idxA
	strategy := "spaces"
	if scoreB > scoreA {
		table = strategyB
		headerIndex = idxB
		strategy = "pipe"
	}

	headers, hasDay := cleanHeader(table[headerIndex], days)

	var rows []Row
	for i, tokens := range table {
		if i == headerIndex {
			continue
		}
		row, ok := buildFallbackRow(tokens, headers, hasDay, days)
		if ok {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	return &FallbackResult{Rows: rows, Strategy: strategy, HeaderIndex: headerIndex, HasDayCells: hasDay}
}

func splitNonEmpty(parts []string) []string {
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// scoreHeaderSet rates the first few candidate rows: +3 per fuzzy day match,
// +1 when a token literally ends in "day".
func scoreHeaderSet(table [][]string, days DayConfig) (best, index int) {
	limit := len(table)
	if limit > headerScanRows {
		limit = headerScanRows
	}
	for i := 0; i < limit; i++ {
		s := 0
		for _, tok := range table[i] {
			if _, ok := days.Match(tok); ok {
				s += 3
			}
			if daySuffixRE.MatchString(tok) {
				s++
			}
		}
		if s > best {
			best = s
			index = i
		}
	}
	return best, index
}

// cleanHeader normalizes raw header tokens: strips non-letter edges, splits
// tokens the OCR merged at camel-case boundaries, fuzzy-maps to canonical
// day names, and drops pipe-artifact noise (length <= 1 or a lone "I"). If
// any day name survives, the header is forced to [Location, Monday..Sunday]
// so downstream processing is uniform regardless of stray tokens.
func cleanHeader(raw []string, days DayConfig) ([]string, bool) {
	var tokens []string
	for _, t := range raw {
		t = edgeLettersRE.ReplaceAllString(t, "")
		if t == "" {
			continue
		}
		tokens = append(tokens, splitCamel(t)...)
	}
	hasDay := false
	var cleaned []string
	for _, t := range tokens {
		if d, ok := days.Match(t); ok {
			t = d
			hasDay = true
		}
		if len(t) <= 1 || t == "I" {
			continue
		}
		cleaned = append(cleaned, t)
	}
	if hasDay {
		return append([]string{"Location"}, days.Canonical...), true
	}
	return cleaned, false
}

// splitCamel breaks tokens like "MondayTuesday" that OCR merged: a split is
// inserted before every uppercase letter followed by a lowercase one, except
// at the start.
func splitCamel(t string) []string {
	if !camelRE.MatchString(t) {
		return []string{t}
	}
	var out []string
	start := 0
	for i := 1; i < len(t)-1; i++ {
		if t[i] >= 'A' && t[i] <= 'Z' && t[i+1] >= 'a' && t[i+1] <= 'z' {
			out = append(out, t[start:i])
			start = i
		}
	}
	out = append(out, t[start:])
	return out
}

var camelRE = regexp.MustCompile(`[A-Z][a-z]+[A-Z]`)

// buildFallbackRow aligns one tokenized line against the cleaned header.
// With a Location-led day header, everything before the first day-matching
// token joins into Location and the rest maps positionally onto the day
// columns; a line with no day token becomes pure Location.
func buildFallbackRow(tokens []string, headers []string, hasDay bool, days DayConfig) (Row, bool) {
	tokens = splitNonEmpty(tokens)
	if len(tokens) == 0 {
		return Row{}, false
	}
	if hasDay {
		firstDayPos := -1
		for i, tok := range tokens {
			if _, ok := days.Match(tok); ok {
				firstDayPos = i
				break
			}
		}
		var loc string
		var dayTokens []string
		if firstDayPos >= 0 {
			loc = strings.Join(tokens[:firstDayPos], " ")
			dayTokens = tokens[firstDayPos:]
		} else {
			loc = strings.Join(tokens, " ")
		}
		loc = normalizeText(loc)
		row := Row{Kind: RowKindDayTable, Location: loc, Days: map[string]string{}}
		any := loc != ""
		for i, d := range days.Canonical {
			v := ""
			if i < len(dayTokens) {
				v = dayTokens[i]
				if v != "" {
					any = true
				}
			}
			row.Days[d] = v
		}
		if !any {
			return Row{}, false
		}
		return row, true
	}
	row := Row{Kind: RowKindGeneric}
	any := false
	for i, h := range headers {
		v := ""
		if i < len(tokens) {
			v = tokens[i]
		}
		if v != "" {
			any = true
		}
		row.Columns = append(row.Columns, Column{Name: h, Value: v})
	}
	if !any {
		return Row{}, false
	}
	return row, true
}
