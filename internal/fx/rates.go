package fx

import (
	"github.com/gyaneshwarpardhi/revnorm/internal/apperr"
	"github.com/gyaneshwarpardhi/revnorm/internal/currency"
)

// RateTable maps ISO codes to rates against the provider's pivot currency.
// The pivot is not necessarily USD.
type RateTable map[string]float64

// ToUSDRate returns the factor converting one unit of from into USD.
// Cross rates are derived through the pivot: pivot→USD / pivot→from.
func ToUSDRate(rates RateTable, from string) (float64, error) {
	if from == currency.USD {
		return 1, nil
	}
	pivotToUSD := rates[currency.USD]
	if pivotToUSD == 0 {
		return 0, apperr.Permanentf("fx.rate", "USD rate missing in FX response")
	}
	pivotToFrom := rates[from]
	if pivotToFrom == 0 {
		return 0, apperr.Permanentf("fx.rate", "FX rate missing for %s in response", from)
	}
	return pivotToUSD / pivotToFrom, nil
}
