package normalizer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gyaneshwarpardhi/revnorm/internal/apperr"
	"github.com/gyaneshwarpardhi/revnorm/internal/currency"
	"github.com/gyaneshwarpardhi/revnorm/internal/event"
	"github.com/gyaneshwarpardhi/revnorm/internal/fx"
)

// Enrichment property names.
const (
	FieldOriginalAmount   = "original_amount"
	FieldOriginalCurrency = "original_currency"
	FieldRevenueUSD       = "revenue_usd"
	FieldFXRate           = "fx_rate"
	FieldFXBase           = "fx_base"
	FieldFXAsOf           = "fx_as_of"
)

// asOfLayout matches the millisecond ISO-8601 form used by JavaScript clients.
const asOfLayout = "2006-01-02T15:04:05.000Z"

// Settings is the per-invocation configuration.
type Settings struct {
	APIKey       string
	SourceMinor  bool   // amounts arrive in minor units (cents)
	ZeroDecimals string // CSV override; empty = built-in list
	BaseCurrency string // empty defaults to USD; anything else is rejected
}

// Validate rejects settings the normalizer cannot honor.
func (s Settings) Validate() error {
	base := strings.ToUpper(strings.TrimSpace(s.BaseCurrency))
	if base != "" && base != currency.USD {
		return apperr.Validationf("normalizer", "baseCurrency %q is not supported, only USD", s.BaseCurrency)
	}
	return nil
}

// Outcome describes what Normalize did to an event.
type Outcome int

const (
	// Skipped: not monetary, or already enriched. Event untouched.
	Skipped Outcome = iota
	// USD: enriched with fx_rate 1, no rate fetch.
	USD
	// Converted: enriched using a fetched rate.
	Converted
)

func (o Outcome) String() string {
	switch o {
	case USD:
		return "usd"
	case Converted:
		return "converted"
	default:
		return "skipped"
	}
}

// Normalizer rewrites revenue amounts into USD. It keeps no state between
// calls; every conversion asks the provider for rates.
type Normalizer struct {
	rates fx.RateProvider
	now   func() time.Time
}

// New creates a Normalizer around a rate provider.
func New(rates fx.RateProvider) *Normalizer {
	return &Normalizer{rates: rates, now: time.Now}
}

// Normalize enriches ev.Properties in place. On Skipped or on error the
// event is left exactly as it was.
func (n *Normalizer) Normalize(ctx context.Context, ev *event.Event, s Settings) (Outcome, error) {
	if err := s.Validate(); err != nil {
		return Skipped, err
	}
	zero := currency.ParseZeroDecimals(s.ZeroDecimals)

	props := ev.Properties
	raw, ok := currency.LookupRevenue(props)
	if !ok {
		return Skipped, nil
	}
	amount, ok := currency.ParseAmount(raw)
	if !ok {
		slog.Debug("revenue is not numeric, skipping", "event", ev.Event, "value", raw)
		return Skipped, nil
	}
	if alreadyEnriched(props) {
		return Skipped, nil
	}

	code := currency.LookupCurrency(props)
	major := currency.ToMajorUnits(amount, code, zero, s.SourceMinor)

	outcome := USD
	rate := 1.0
	revenueUSD := major
	if code != currency.USD {
		if s.APIKey == "" {
			return Skipped, apperr.Validationf("normalizer", "apiKey is required to convert %s", code)
		}
		table, err := n.rates.FetchRates(ctx, s.APIKey)
		if err != nil {
			return Skipped, err
		}
		rate, err = fx.ToUSDRate(table, code)
		if err != nil {
			return Skipped, err
		}
		revenueUSD = currency.Round2(major * rate)
		outcome = Converted
	}

	enriched := make(map[string]interface{}, len(props)+6)
	for k, v := range props {
		enriched[k] = v
	}
	enriched[FieldOriginalAmount] = major
	enriched[FieldOriginalCurrency] = code
	enriched[FieldRevenueUSD] = revenueUSD
	enriched[FieldFXRate] = rate
	enriched[FieldFXBase] = currency.USD
	enriched[FieldFXAsOf] = n.now().UTC().Format(asOfLayout)
	ev.Properties = enriched

	return outcome, nil
}

func alreadyEnriched(props map[string]interface{}) bool {
	return props[FieldRevenueUSD] != nil && props[FieldFXRate] != nil
}
