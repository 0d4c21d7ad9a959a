package currency

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// RevenueFields are the property names probed for the amount, in priority
// order. The first non-null value wins, even if it is not numeric.
var RevenueFields = []string{"revenue", "amount", "amount_total"}

// CurrencyFields are the property names probed for the ISO code, in
// priority order. Empty strings fall through to the next candidate.
var CurrencyFields = []string{"currency", "currency_code"}

// LookupRevenue returns the first non-null revenue candidate.
func LookupRevenue(props map[string]interface{}) (interface{}, bool) {
	for _, f := range RevenueFields {
		if v, ok := props[f]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// LookupCurrency returns the uppercased currency code, defaulting to USD.
func LookupCurrency(props map[string]interface{}) string {
	for _, f := range CurrencyFields {
		s, ok := props[f].(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return strings.ToUpper(s)
		}
	}
	return USD
}

// ParseAmount converts a JSON number or numeric string to float64. Blank
// strings, booleans and non-finite values are not amounts.
func ParseAmount(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return 0, false
		}
		f = d.InexactFloat64()
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return 0, false
		}
		f = d.InexactFloat64()
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
