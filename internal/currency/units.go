package currency

import (
	"math"
	"strings"
)

// USD is the only supported base currency.
const USD = "USD"

// defaultZeroDecimals lists ISO 4217 currencies without a minor unit.
var defaultZeroDecimals = []string{
	"BIF", "CLP", "DJF", "GNF", "JPY", "KMF", "KRW", "PYG",
	"RWF", "UGX", "VND", "VUV", "XAF", "XOF", "XPF",
}

// ZeroDecimalSet is a set of uppercase currency codes.
type ZeroDecimalSet map[string]struct{}

// Has reports whether code (any case) is in the set.
func (s ZeroDecimalSet) Has(code string) bool {
	_, ok := s[strings.ToUpper(code)]
	return ok
}

// DefaultZeroDecimals returns a fresh copy of the built-in set, so callers
// can never mutate the default.
func DefaultZeroDecimals() ZeroDecimalSet {
	s := make(ZeroDecimalSet, len(defaultZeroDecimals))
	for _, c := range defaultZeroDecimals {
		s[c] = struct{}{}
	}
	return s
}

// ParseZeroDecimals parses a comma-separated override. An empty or blank
// csv yields the default set.
func ParseZeroDecimals(csv string) ZeroDecimalSet {
	if strings.TrimSpace(csv) == "" {
		return DefaultZeroDecimals()
	}
	s := make(ZeroDecimalSet)
	for _, part := range strings.Split(csv, ",") {
		code := strings.ToUpper(strings.TrimSpace(part))
		if code == "" {
			continue
		}
		s[code] = struct{}{}
	}
	return s
}

// ToMajorUnits converts amount to whole-currency units. Only feeds flagged
// as minor-unit are divided, and never for zero-decimal currencies.
func ToMajorUnits(amount float64, code string, zero ZeroDecimalSet, sourceMinor bool) float64 {
	if !sourceMinor {
		return amount
	}
	if zero.Has(code) {
		return amount
	}
	return amount / 100
}

// epsilon is the gap between 1 and the next representable float64.
var epsilon = math.Nextafter(1, 2) - 1

// Round2 rounds x to two decimal places, nudging by epsilon first so that
// midpoints such as 19.005 round up instead of falling to binary
// representation error.
func Round2(x float64) float64 {
	return math.Round((x+epsilon)*100) / 100
}
