// Package pricing turns a stay, a nightly rate and a room count into a quote.
package pricing

import (
	"math"

	"zivara/internal/interval"
	apperrors "zivara/pkg/errors"
)

// Quote amounts are in minor currency units.
type Quote struct {
	Nights    int     `json:"nights"`
	RoomCount int     `json:"room_count"`
	Rate      int64   `json:"nightly_rate"`
	TaxRate   float64 `json:"tax_rate"`
	Subtotal  int64   `json:"subtotal"`
	Tax       int64   `json:"tax"`
	Total     int64   `json:"total"`
}

// Price computes subtotal = nights * rate * rooms and adds tax rounded to the
// nearest minor unit.
func Price(iv interval.Interval, nightlyRate int64, roomCount int, taxRate float64) (Quote, error) {
	nights, err := iv.Nights()
	if err != nil {
		return Quote{}, err
	}
	if roomCount < 1 {
		return Quote{}, apperrors.Validation("room count must be at least 1", map[string]any{"room_count": roomCount})
	}
	if nightlyRate < 0 {
		return Quote{}, apperrors.Validation("nightly rate cannot be negative", map[string]any{"nightly_rate": nightlyRate})
	}
	if taxRate < 0 {
		return Quote{}, apperrors.Validation("tax rate cannot be negative", map[string]any{"tax_rate": taxRate})
	}

	subtotal := int64(nights) * nightlyRate * int64(roomCount)
	tax := int64(math.Round(float64(subtotal) * taxRate))

	return Quote{
		Nights:    nights,
		RoomCount: roomCount,
		Rate:      nightlyRate,
		TaxRate:   taxRate,
		Subtotal:  subtotal,
		Tax:       tax,
		Total:     subtotal + tax,
	}, nil
}
