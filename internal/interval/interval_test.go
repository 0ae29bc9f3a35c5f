package interval

import (
	"testing"
	"time"

	apperrors "zivara/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, checkIn, checkOut string) Interval {
	t.Helper()
	iv, err := Parse(checkIn, checkOut)
	require.NoError(t, err)
	return iv
}

func TestNew_RejectsEmptyAndInvertedStays(t *testing.T) {
	d := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err := New(d, d)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInterval))

	_, err = New(d, d.AddDate(0, 0, -1))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInterval))
}

func TestNew_NormalizesToCalendarDates(t *testing.T) {
	iv, err := New(
		time.Date(2024, 6, 1, 15, 30, 0, 0, time.UTC),
		time.Date(2024, 6, 3, 11, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), iv.Start)
	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), iv.End)
}

func TestParse_InvalidFormat(t *testing.T) {
	_, err := Parse("06/01/2024", "2024-06-04")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInterval))

	_, err = Parse("2024-06-01", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInterval))
}

func TestNights(t *testing.T) {
	iv := mustParse(t, "2024-06-01", "2024-06-04")
	n, err := iv.Nights()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = Interval{}.Nights()
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInterval))
}

func TestNights_AcrossMonthBoundary(t *testing.T) {
	iv := mustParse(t, "2024-02-27", "2024-03-02")
	n, err := iv.Nights()
	require.NoError(t, err)
	assert.Equal(t, 4, n) // leap year
}

func TestNights_CountsCalendarDaysBeyondDurationRange(t *testing.T) {
	// 2026-11-01 to 9999-12-31 is longer than a time.Duration can hold.
	iv := mustParse(t, "2026-11-01", "9999-12-31")
	n, err := iv.Nights()
	require.NoError(t, err)

	start := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC), start.AddDate(0, 0, n))
	assert.Greater(t, n, 2_900_000)
}

func TestWithin(t *testing.T) {
	month := mustParse(t, "2024-07-01", "2024-07-31")

	assert.NoError(t, month.Within(30))
	assert.NoError(t, month.Within(0), "non-positive limit disables the check")

	err := month.Within(29)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInterval))

	err = mustParse(t, "2026-11-01", "9999-12-31").Within(30)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInterval))
}

func TestOverlaps(t *testing.T) {
	base := mustParse(t, "2024-07-10", "2024-07-12")

	tests := []struct {
		name     string
		other    Interval
		expected bool
	}{
		{"identical", mustParse(t, "2024-07-10", "2024-07-12"), true},
		{"contained", mustParse(t, "2024-07-10", "2024-07-11"), true},
		{"straddles start", mustParse(t, "2024-07-09", "2024-07-11"), true},
		{"straddles end", mustParse(t, "2024-07-11", "2024-07-15"), true},
		{"back to back after", mustParse(t, "2024-07-12", "2024-07-14"), false},
		{"back to back before", mustParse(t, "2024-07-08", "2024-07-10"), false},
		{"disjoint", mustParse(t, "2024-08-01", "2024-08-03"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Overlaps(base, tt.other))
			assert.Equal(t, tt.expected, Overlaps(tt.other, base), "overlap must be symmetric")
		})
	}
}

func TestContainsAndDates(t *testing.T) {
	iv := mustParse(t, "2024-07-10", "2024-07-12")

	assert.True(t, iv.Contains(time.Date(2024, 7, 10, 9, 0, 0, 0, time.UTC)))
	assert.True(t, iv.Contains(time.Date(2024, 7, 11, 23, 59, 0, 0, time.UTC)))
	assert.False(t, iv.Contains(time.Date(2024, 7, 12, 0, 0, 0, 0, time.UTC)))

	dates := iv.Dates()
	require.Len(t, dates, 2)
	assert.Equal(t, "2024-07-10", dates[0].Format(DateLayout))
	assert.Equal(t, "2024-07-11", dates[1].Format(DateLayout))
	assert.Equal(t, "[2024-07-10, 2024-07-12)", iv.String())
}
