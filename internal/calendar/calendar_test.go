package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestWorkingDays(t *testing.T) {
	tests := map[string]struct {
		start, end string
		want       int
	}{
		"single monday":          {"2024-01-01", "2024-01-01", 1},
		"single saturday":        {"2024-01-06", "2024-01-06", 0},
		"monday to friday":       {"2024-01-01", "2024-01-05", 5},
		"full week":              {"2024-01-01", "2024-01-07", 5},
		"two weeks":              {"2024-01-01", "2024-01-12", 10},
		"weekend straddle":       {"2024-01-05", "2024-01-08", 2},
		"end before start":       {"2024-01-10", "2024-01-01", 0},
		"saturday to sunday":     {"2024-01-06", "2024-01-07", 0},
		"wednesday to tuesday":   {"2024-01-03", "2024-01-09", 5},
		"month crossing":         {"2024-01-29", "2024-02-09", 10},
		"leap day week":          {"2024-02-26", "2024-03-01", 5},
		"four weeks from friday": {"2024-01-05", "2024-02-01", 20},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, WorkingDays(date(tc.start), date(tc.end)))
		})
	}
}

func TestWorkingDaysIgnoresTimeOfDay(t *testing.T) {
	start := time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC)
	end := time.Date(2024, 1, 5, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, 5, WorkingDays(start, end))
}

func TestWeekStart(t *testing.T) {
	monday := date("2024-01-08")
	for i := 0; i < 7; i++ {
		d := monday.AddDate(0, 0, i)
		assert.Equal(t, monday, WeekStart(d), "day %s", Format(d))
	}
	assert.Equal(t, date("2024-01-01"), WeekStart(date("2024-01-07")))
}

func TestWeekOverlap(t *testing.T) {
	week := date("2024-01-08")
	assert.Equal(t, 5, WeekOverlap(date("2024-01-01"), date("2024-01-31"), week))
	assert.Equal(t, 3, WeekOverlap(date("2024-01-10"), date("2024-01-31"), week))
	assert.Equal(t, 2, WeekOverlap(date("2024-01-01"), date("2024-01-09"), week))
	assert.Equal(t, 0, WeekOverlap(date("2024-01-13"), date("2024-01-14"), week))
	assert.Equal(t, 0, WeekOverlap(date("2024-01-15"), date("2024-01-20"), week))
	assert.Equal(t, 0, WeekOverlap(date("2024-01-12"), date("2024-01-10"), week))
}

func TestWeeks(t *testing.T) {
	weeks := Weeks(date("2024-01-03"), date("2024-01-22"))
	require.Len(t, weeks, 4)
	assert.Equal(t, date("2024-01-01"), weeks[0])
	assert.Equal(t, date("2024-01-22"), weeks[3])
	assert.Nil(t, Weeks(date("2024-01-22"), date("2024-01-03")))
}

func TestParseDate(t *testing.T) {
	_, err := ParseDate("01/02/2024")
	assert.Error(t, err)
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", Format(d))
}
