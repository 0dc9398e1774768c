package detect

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Filed documents carry dates in a handful of layouts. Extraction accepts the
// documented variants (day-month-year preferred, month-day-year tolerated)
// but comparison never tolerates date drift: a parsed date either equals the
// canonical one or it is a mismatch.

var (
	// DD/MM/YYYY or DD-MM-YYYY
	numericDatePattern = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{4})\b`)
	// DD Month YYYY
	dayMonthYearPattern = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(January|February|March|April|May|June|July|August|September|October|November|December)\s+(\d{4})\b`)
	// Month DD, YYYY
	monthDayYearPattern = regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December)\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
	// ISO YYYY-MM-DD
	isoDatePattern = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
)

var monthsByName = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// extractDates pulls every recognizable date out of free text, deduplicated
// and sorted. Ambiguous numeric dates are read day-first (registry filings
// are UK-format); when day-first is impossible the month-first reading is
// used instead.
func extractDates(text string) []time.Time {
	seen := make(map[time.Time]bool)
	var dates []time.Time
	add := func(t time.Time, ok bool) {
		if ok && !seen[t] {
			seen[t] = true
			dates = append(dates, t)
		}
	}

	for _, m := range numericDatePattern.FindAllStringSubmatch(text, -1) {
		add(makeNumericDate(m[1], m[2], m[3]))
	}
	for _, m := range dayMonthYearPattern.FindAllStringSubmatch(text, -1) {
		day, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[3])
		add(makeDate(year, monthsByName[strings.ToLower(m[2])], day))
	}
	for _, m := range monthDayYearPattern.FindAllStringSubmatch(text, -1) {
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		add(makeDate(year, monthsByName[strings.ToLower(m[1])], day))
	}
	for _, m := range isoDatePattern.FindAllStringSubmatch(text, -1) {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		add(makeDate(year, time.Month(month), day))
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// makeNumericDate reads a/b/year, preferring the day-first interpretation.
func makeNumericDate(a, b, year string) (time.Time, bool) {
	first, _ := strconv.Atoi(a)
	second, _ := strconv.Atoi(b)
	y, _ := strconv.Atoi(year)

	if t, ok := makeDate(y, time.Month(second), first); ok {
		return t, true
	}
	// Day-first impossible (e.g. 03/25/2020): fall back to month-first.
	return makeDate(y, time.Month(first), second)
}

func makeDate(year int, month time.Month, day int) (time.Time, bool) {
	if year < 1800 || year > 2100 || month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	// Reject overflow normalization such as 31 February -> 2/3 March.
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

// sameDate compares calendar days, ignoring time-of-day and zone.
func sameDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
