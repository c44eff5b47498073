package schedule

import "strings"

// DayConfig carries the canonical weekday vocabulary and the fuzzy-match
// tolerance used to absorb OCR noise. It is passed explicitly to every
// resolver so matching stays pure and testable with alternate vocabularies.
type DayConfig struct {
	// Canonical day names in week order (Monday first).
	Canonical []string
	// MaxDistance is the largest Levenshtein edit distance still accepted
	// when mapping a noisy token to a canonical day. Tuned against the
	// dining site's typical OCR noise.
	MaxDistance int
}

// DefaultDayConfig returns the seven-day vocabulary with tolerance 3.
func DefaultDayConfig() DayConfig {
	return DayConfig{
		Canonical:   []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"},
		MaxDistance: 3,
	}
}

// Match maps a noisy token to a canonical day name. The token is lowercased
// and stripped of non-letters before comparison; the closest canonical day
// within MaxDistance wins, earlier days winning distance ties.
func (c DayConfig) Match(tok string) (string, bool) {
	norm := normalizeLetters(tok)
	if norm == "" {
		return "", false
	}
	best := ""
	bestDist := c.MaxDistance + 1
	for _, d := range c.Canonical {
		dist := levenshtein(norm, normalizeLetters(d))
		if dist <= c.MaxDistance && dist < bestDist {
			best = d
			bestDist = dist
		}
	}
	return best, best != ""
}

// Abbrev shortens a canonical day name to its 3-letter lowercase form.
func Abbrev(day string) string {
	if len(day) < 3 {
		return strings.ToLower(day)
	}
	return strings.ToLower(day[:3])
}

// normalizeLetters lowercases and strips everything that is not a letter.
func normalizeLetters(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' {
			return r
		}
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return -1
	}, s)
}

// levenshtein computes the classic edit distance between two strings.
func levenshtein(a, b string) int {
	m, n := len(a), len(b)
	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}
	prev := make([]int, n+1)
	cur := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}
	for i := 1; i <= m; i++ {
		cur[0] = i
		for j := 1; j <= n; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[n]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
