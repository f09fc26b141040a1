package session

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"hk_bids/models"
)

// DefaultStep is the bid increment offered by the form.
const DefaultStep = 5.00

// ParseAmount reads a bid amount from form text. Empty means no bid. The
// result is rounded to cents and must be a finite, non-negative multiple of
// step; a step of 0 accepts any cent value.
func ParseAmount(s string, step float64) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", models.ErrInvalidBid, s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("%w: %q", models.ErrInvalidBid, s)
	}

	v = RoundCents(v)
	if !OnStep(v, step) {
		return 0, fmt.Errorf("%w: %.2f is not a multiple of %.2f", models.ErrInvalidBid, v, step)
	}
	return v, nil
}

// RoundCents rounds half away from zero to two decimals.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// OnStep reports whether v lies on the step grid, compared in whole cents.
func OnStep(v, step float64) bool {
	if step <= 0 {
		return true
	}
	cents := int64(math.Round(v * 100))
	stepCents := int64(math.Round(step * 100))
	if stepCents == 0 {
		return true
	}
	return cents%stepCents == 0
}
