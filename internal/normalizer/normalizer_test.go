package normalizer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/revnorm/internal/apperr"
	"github.com/gyaneshwarpardhi/revnorm/internal/event"
	"github.com/gyaneshwarpardhi/revnorm/internal/fx"
)

type stubRates struct {
	table fx.RateTable
	err   error
	calls int
}

func (s *stubRates) FetchRates(context.Context, string) (fx.RateTable, error) {
	s.calls++
	return s.table, s.err
}

var fixedNow = time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

func newTestNormalizer(rates fx.RateProvider) *Normalizer {
	n := New(rates)
	n.now = func() time.Time { return fixedNow }
	return n
}

func track(props map[string]interface{}) *event.Event {
	return &event.Event{Event: "Order Completed", UserID: "u1", Properties: props}
}

func TestNormalize_EndToEnd(t *testing.T) {
	rates := &stubRates{table: fx.RateTable{"USD": 1.1, "EUR": 1.0}}
	n := newTestNormalizer(rates)
	ev := track(map[string]interface{}{"amount_total": float64(2000), "currency": "eur", "order_id": "o-9"})

	out, err := n.Normalize(context.Background(), ev, Settings{APIKey: "k", SourceMinor: true})
	require.NoError(t, err)
	assert.Equal(t, Converted, out)
	assert.Equal(t, 1, rates.calls)

	p := ev.Properties
	assert.Equal(t, 20.0, p[FieldOriginalAmount])
	assert.Equal(t, "EUR", p[FieldOriginalCurrency])
	assert.Equal(t, 1.1, p[FieldFXRate])
	assert.Equal(t, 22.0, p[FieldRevenueUSD])
	assert.Equal(t, "USD", p[FieldFXBase])
	assert.Equal(t, "2026-03-01T12:30:00.000Z", p[FieldFXAsOf])
	assert.Equal(t, "o-9", p["order_id"])
	assert.Equal(t, "eur", p["currency"], "original properties are preserved")
}

func TestNormalize_USD(t *testing.T) {
	t.Run("Should use rate 1 and keep the amount exact", func(t *testing.T) {
		rates := &stubRates{}
		n := newTestNormalizer(rates)
		ev := track(map[string]interface{}{"revenue": 19.999})

		out, err := n.Normalize(context.Background(), ev, Settings{})
		require.NoError(t, err)
		assert.Equal(t, USD, out)
		assert.Equal(t, 0, rates.calls)
		assert.Equal(t, 1.0, ev.Properties[FieldFXRate])
		assert.Equal(t, ev.Properties[FieldOriginalAmount], ev.Properties[FieldRevenueUSD])
		assert.Equal(t, 19.999, ev.Properties[FieldRevenueUSD])
	})

	t.Run("Should divide cents and accept numeric strings", func(t *testing.T) {
		n := newTestNormalizer(&stubRates{})
		ev := track(map[string]interface{}{"amount": "1050", "currency_code": "usd"})

		_, err := n.Normalize(context.Background(), ev, Settings{SourceMinor: true})
		require.NoError(t, err)
		assert.Equal(t, 10.5, ev.Properties[FieldOriginalAmount])
		assert.Equal(t, 10.5, ev.Properties[FieldRevenueUSD])
	})
}

func TestNormalize_ZeroDecimal(t *testing.T) {
	rates := &stubRates{table: fx.RateTable{"USD": 1.1, "EUR": 1.0, "JPY": 150}}
	n := newTestNormalizer(rates)
	ev := track(map[string]interface{}{"revenue": float64(500), "currency": "JPY"})

	_, err := n.Normalize(context.Background(), ev, Settings{APIKey: "k", SourceMinor: true})
	require.NoError(t, err)
	assert.Equal(t, 500.0, ev.Properties[FieldOriginalAmount])
	assert.Equal(t, 3.67, ev.Properties[FieldRevenueUSD])
}

func TestNormalize_ZeroDecimalOverride(t *testing.T) {
	rates := &stubRates{table: fx.RateTable{"USD": 1.1, "EUR": 1.0, "HUF": 400}}
	n := newTestNormalizer(rates)
	ev := track(map[string]interface{}{"revenue": float64(4000), "currency": "HUF"})

	_, err := n.Normalize(context.Background(), ev, Settings{APIKey: "k", SourceMinor: true, ZeroDecimals: "HUF"})
	require.NoError(t, err)
	assert.Equal(t, 4000.0, ev.Properties[FieldOriginalAmount])
	assert.Equal(t, 11.0, ev.Properties[FieldRevenueUSD])
}

func TestNormalize_Skip(t *testing.T) {
	cases := map[string]map[string]interface{}{
		"no revenue field":    {},
		"non-numeric revenue": {"revenue": "free", "amount": 10.0, "currency": "EUR"},
		"null candidates":     {"revenue": nil, "amount": nil},
		"already enriched": {
			"revenue": 10.0, "currency": "EUR",
			FieldRevenueUSD: 11.0, FieldFXRate: 1.1,
		},
	}
	for name, props := range cases {
		t.Run(name, func(t *testing.T) {
			rates := &stubRates{err: apperr.Retryablef("fx.fetch", "must not be called")}
			n := newTestNormalizer(rates)
			ev := track(props)
			before := ev.Properties

			out, err := n.Normalize(context.Background(), ev, Settings{APIKey: "k"})
			require.NoError(t, err)
			assert.Equal(t, Skipped, out)
			assert.Equal(t, 0, rates.calls)
			assert.Equal(t, before, ev.Properties)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	rates := &stubRates{table: fx.RateTable{"USD": 1.1, "EUR": 1.0}}
	n := newTestNormalizer(rates)
	ev := track(map[string]interface{}{"revenue": 10.0, "currency": "EUR"})

	_, err := n.Normalize(context.Background(), ev, Settings{APIKey: "k"})
	require.NoError(t, err)
	first := ev.Properties

	n.now = func() time.Time { return fixedNow.Add(time.Hour) }
	out, err := n.Normalize(context.Background(), ev, Settings{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, Skipped, out)
	assert.Equal(t, 1, rates.calls)
	assert.Equal(t, first, ev.Properties)
}

func TestNormalize_Errors(t *testing.T) {
	t.Run("Should propagate a permanent error for an unknown currency", func(t *testing.T) {
		n := newTestNormalizer(&stubRates{table: fx.RateTable{"USD": 1.1, "EUR": 1.0}})
		props := map[string]interface{}{"revenue": 10.0, "currency": "XYZ"}
		ev := track(props)

		_, err := n.Normalize(context.Background(), ev, Settings{APIKey: "k"})
		require.Error(t, err)
		assert.True(t, apperr.IsPermanent(err))
		assert.Equal(t, map[string]interface{}{"revenue": 10.0, "currency": "XYZ"}, ev.Properties)
	})

	t.Run("Should propagate retryable fetch failures untouched", func(t *testing.T) {
		n := newTestNormalizer(&stubRates{err: apperr.Retryablef("fx.fetch", "FX fetch retryable status: 503")})
		ev := track(map[string]interface{}{"revenue": 10.0, "currency": "EUR"})

		_, err := n.Normalize(context.Background(), ev, Settings{APIKey: "k"})
		require.Error(t, err)
		assert.True(t, apperr.IsRetryable(err))
		assert.NotContains(t, ev.Properties, FieldRevenueUSD)
	})

	t.Run("Should reject a non-USD base currency", func(t *testing.T) {
		rates := &stubRates{}
		n := newTestNormalizer(rates)
		ev := track(map[string]interface{}{})

		_, err := n.Normalize(context.Background(), ev, Settings{BaseCurrency: "eur"})
		require.Error(t, err)
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("Should require an api key for conversions", func(t *testing.T) {
		rates := &stubRates{}
		n := newTestNormalizer(rates)
		ev := track(map[string]interface{}{"revenue": 10.0, "currency": "EUR"})

		_, err := n.Normalize(context.Background(), ev, Settings{})
		require.Error(t, err)
		assert.True(t, apperr.IsValidation(err))
		assert.Equal(t, 0, rates.calls)
	})
}
