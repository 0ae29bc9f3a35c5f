// Package interval models a stay as a half-open range of civil dates.
package interval

import (
	"fmt"
	"time"

	apperrors "zivara/pkg/errors"
)

const DateLayout = "2006-01-02"

const secondsPerDay = 24 * 60 * 60

// Interval is the stay [Start, End). Both bounds are UTC midnights.
type Interval struct {
	Start time.Time `json:"check_in"`
	End   time.Time `json:"check_out"`
}

// New normalizes start and end to their calendar dates and rejects empty or inverted stays.
func New(start, end time.Time) (Interval, error) {
	iv := Interval{Start: Date(start), End: Date(end)}
	if !iv.End.After(iv.Start) {
		return Interval{}, apperrors.InvalidInterval("check-out must be after check-in").
			WithDetails(map[string]any{
				"check_in":  iv.Start.Format(DateLayout),
				"check_out": iv.End.Format(DateLayout),
			})
	}
	return iv, nil
}

// Parse builds an interval from YYYY-MM-DD strings.
func Parse(checkIn, checkOut string) (Interval, error) {
	start, err := time.Parse(DateLayout, checkIn)
	if err != nil {
		return Interval{}, apperrors.InvalidInterval(fmt.Sprintf("invalid check-in date %q, expected YYYY-MM-DD", checkIn))
	}
	end, err := time.Parse(DateLayout, checkOut)
	if err != nil {
		return Interval{}, apperrors.InvalidInterval(fmt.Sprintf("invalid check-out date %q, expected YYYY-MM-DD", checkOut))
	}
	return New(start, end)
}

// Date truncates t to midnight UTC of its own calendar day.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Overlaps reports whether a and b share at least one night.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Nights counts the nights in the stay. A zero value or inverted interval is rejected.
func (iv Interval) Nights() (int, error) {
	if !iv.End.After(iv.Start) {
		return 0, apperrors.InvalidInterval("check-out must be after check-in")
	}
	return int(dayNumber(iv.End) - dayNumber(iv.Start)), nil
}

// Within rejects stays longer than maxNights. A non-positive limit disables the check.
func (iv Interval) Within(maxNights int) error {
	nights, err := iv.Nights()
	if err != nil {
		return err
	}
	if maxNights > 0 && nights > maxNights {
		return apperrors.InvalidInterval(fmt.Sprintf("stay cannot exceed %d nights", maxNights)).
			WithDetails(map[string]any{"nights": nights, "max_nights": maxNights})
	}
	return nil
}

// Contains reports whether t falls on one of the stay's nights.
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Dates lists every night of the stay, check-in included and check-out excluded.
func (iv Interval) Dates() []time.Time {
	n, err := iv.Nights()
	if err != nil {
		return nil
	}
	nights := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		nights = append(nights, iv.Start.AddDate(0, 0, i))
	}
	return nights
}

// dayNumber counts calendar days since the Unix epoch. Bounds are UTC
// midnights, so the division is exact.
func dayNumber(t time.Time) int64 {
	return t.Unix() / secondsPerDay
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s)", iv.Start.Format(DateLayout), iv.End.Format(DateLayout))
}
