package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExtractDates_NumericDayFirst(t *testing.T) {
	got := extractDates("incorporated on 09/03/2015")
	require.Len(t, got, 1)
	assert.Equal(t, day(2015, time.March, 9), got[0], "ambiguous numeric dates read day-first")
}

func TestExtractDates_NumericMonthFirstFallback(t *testing.T) {
	// 25 cannot be a month, so day-first is impossible.
	got := extractDates("signed 03/25/2020")
	require.Len(t, got, 1)
	assert.Equal(t, day(2020, time.March, 25), got[0])
}

func TestExtractDates_Written(t *testing.T) {
	cases := map[string]time.Time{
		"given on the 9th March 2015": day(2015, time.March, 9),
		"on 21 June 1999":             day(1999, time.June, 21),
		"dated March 9, 2015":         day(2015, time.March, 9),
		"dated  september 1st, 2001":  day(2001, time.September, 1),
		"incorporated on 2015-03-09 ": day(2015, time.March, 9),
	}
	for text, want := range cases {
		got := extractDates(text)
		require.Len(t, got, 1, "text: %q", text)
		assert.Equal(t, want, got[0], "text: %q", text)
	}
}

func TestExtractDates_MultipleSortedDeduped(t *testing.T) {
	got := extractDates("filed 01/02/2020, effective 2020-02-01, signed 15 January 2019")
	require.Len(t, got, 2)
	assert.Equal(t, day(2019, time.January, 15), got[0])
	assert.Equal(t, day(2020, time.February, 1), got[1])
}

func TestExtractDates_RejectsImpossible(t *testing.T) {
	assert.Empty(t, extractDates("ref 31/02/2020"))
	assert.Empty(t, extractDates("serial 99/99/2020"))
	assert.Empty(t, extractDates("year out of range 01/01/1500"))
	assert.Empty(t, extractDates("no dates here"))
}

func TestExtractDates_IgnoresLongNumbers(t *testing.T) {
	// Company numbers and amounts must not parse as dates.
	assert.Empty(t, extractDates("company 00123456 paid 1234567"))
}

func TestMakeDate_OverflowRejected(t *testing.T) {
	_, ok := makeDate(2020, time.February, 31)
	assert.False(t, ok)

	got, ok := makeDate(2020, time.February, 29)
	require.True(t, ok)
	assert.Equal(t, day(2020, time.February, 29), got)
}

func TestSameDate(t *testing.T) {
	loc := time.FixedZone("X", -3600)
	a := time.Date(2015, 3, 9, 0, 0, 0, 0, time.UTC)
	b := time.Date(2015, 3, 9, 23, 0, 0, 0, loc)

	assert.True(t, sameDate(a, a))
	assert.False(t, sameDate(a, b), "comparison is on the UTC calendar day")
	assert.False(t, sameDate(a, day(2015, time.March, 10)))
}
