package metar

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Normalizer error kinds. Callers match with errors.Is; the wrapping error
// carries the offending input.
var (
	ErrEmptyValue         = errors.New("empty visibility value")
	ErrDivisionByZero     = errors.New("zero denominator in visibility fraction")
	ErrUnrecognizedFormat = errors.New("unrecognized visibility format")
	ErrInvalidRange       = errors.New("visibility out of range")
)

var (
	plusSMPattern     = regexp.MustCompile(`^P(\d+(?:\.\d+)?)SM$`)
	mixedFracPattern  = regexp.MustCompile(`^(\d+)\s+(\d+)/(\d+)$`)
	simpleFracPattern = regexp.MustCompile(`^(\d+)/(\d+)$`)
)

// NormalizeVisibility converts the raw visibility text of a METAR into a
// statute-mile value. The upstream API reports visibility in several shapes
// ("10", "10+", "P6SM", "1/2", "1 1/2") depending on station and schema
// variant; everything funnels through here so the classifier only ever sees
// numbers.
func NormalizeVisibility(raw string) (Visibility, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Visibility{}, ErrEmptyValue
	}

	// "10+" style: lower-bound value, strip the suffix.
	if strings.HasSuffix(s, "+") {
		miles, err := strconv.ParseFloat(strings.TrimSuffix(s, "+"), 64)
		if err != nil {
			return Visibility{}, fmt.Errorf("%w: %q", ErrUnrecognizedFormat, raw)
		}
		return boundedVisibility(miles, true, raw)
	}

	// "P6SM" style (Plus N Statute Miles).
	if m := plusSMPattern.FindStringSubmatch(s); m != nil {
		miles, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return Visibility{}, fmt.Errorf("%w: %q", ErrUnrecognizedFormat, raw)
		}
		return boundedVisibility(miles, true, raw)
	}

	// Mixed fraction "1 1/2".
	if m := mixedFracPattern.FindStringSubmatch(s); m != nil {
		whole, _ := strconv.ParseFloat(m[1], 64)
		num, _ := strconv.ParseFloat(m[2], 64)
		den, _ := strconv.ParseFloat(m[3], 64)
		if den == 0 {
			return Visibility{}, fmt.Errorf("%w: %q", ErrDivisionByZero, raw)
		}
		return derivedVisibility(whole+num/den, raw)
	}

	// Simple fraction "1/2".
	if m := simpleFracPattern.FindStringSubmatch(s); m != nil {
		num, _ := strconv.ParseFloat(m[1], 64)
		den, _ := strconv.ParseFloat(m[2], 64)
		if den == 0 {
			return Visibility{}, fmt.Errorf("%w: %q", ErrDivisionByZero, raw)
		}
		return derivedVisibility(num/den, raw)
	}

	// Plain decimal or integer.
	miles, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Visibility{}, fmt.Errorf("%w: %q", ErrUnrecognizedFormat, raw)
	}
	if miles < 0 {
		return Visibility{}, fmt.Errorf("%w: %q", ErrInvalidRange, raw)
	}
	return Visibility{StatuteMiles: miles}, nil
}

func boundedVisibility(miles float64, lowerBound bool, raw string) (Visibility, error) {
	if miles < 0 {
		return Visibility{}, fmt.Errorf("%w: %q", ErrInvalidRange, raw)
	}
	return Visibility{StatuteMiles: miles, LowerBound: lowerBound, Derived: true}, nil
}

func derivedVisibility(miles float64, raw string) (Visibility, error) {
	if miles < 0 {
		return Visibility{}, fmt.Errorf("%w: %q", ErrInvalidRange, raw)
	}
	return Visibility{StatuteMiles: miles, Derived: true}, nil
}
