package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValidateEstimation checks that a submitted value is usable for scoring
func ValidateEstimation(value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidInput, value)
	}
	return nil
}

// ParseEstimation parses a textual estimation (as typed by a player).
// A comma is accepted as decimal separator.
func ParseEstimation(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidInput)
	}
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidInput, raw)
	}
	if err := ValidateEstimation(value); err != nil {
		return 0, err
	}
	return value, nil
}
