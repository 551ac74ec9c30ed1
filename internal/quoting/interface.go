package quoting

import (
	"github.com/shopspring/decimal"

	"github.com/atomport/solver/internal/model"
)

// Quote is what the saga needs before committing liquidity.
type Quote struct {
	DestinationAmount decimal.Decimal
	FeeAmount         decimal.Decimal
}

// IQuote derives the destination-leg amount for a swap. Price discovery is
// out of scope for the solver; this is the narrow interface it calls out
// through.
type IQuote interface {
	Quote(route *model.Route, sourceAmount decimal.Decimal) (*Quote, error)
}
