package quoting

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomport/solver/internal/model"
)

func TestQuoteAppliesFeeSpread(t *testing.T) {
	q := New()
	route := &model.Route{FeeBps: 30}

	quote, err := q.Quote(route, decimal.RequireFromString("100"))
	require.NoError(t, err)

	assert.Equal(t, "99.7", quote.DestinationAmount.String())
	assert.Equal(t, "0.3", quote.FeeAmount.String())
}

func TestQuoteZeroFeeRoute(t *testing.T) {
	q := New()
	route := &model.Route{FeeBps: 0}

	quote, err := q.Quote(route, decimal.RequireFromString("1.5"))
	require.NoError(t, err)

	assert.True(t, quote.DestinationAmount.Equal(decimal.RequireFromString("1.5")))
	assert.True(t, quote.FeeAmount.IsZero())
}

func TestQuoteRejectsNonPositiveAmount(t *testing.T) {
	q := New()
	route := &model.Route{FeeBps: 30}

	_, err := q.Quote(route, decimal.Zero)
	assert.Error(t, err)

	_, err = q.Quote(route, decimal.RequireFromString("-1"))
	assert.Error(t, err)
}

func TestQuoteRejectsConfiscatoryFee(t *testing.T) {
	q := New()
	route := &model.Route{FeeBps: 10000}

	_, err := q.Quote(route, decimal.RequireFromString("100"))
	assert.Error(t, err)
}
