package quoting

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/atomport/solver/internal/model"
)

var basisPoints = decimal.NewFromInt(10000)

type Quoter struct {
}

func New() IQuote {
	return &Quoter{}
}

// Quote applies the route's fee spread: the user receives the source amount
// minus the solver's fee, one-to-one assets assumed per route definition.
func (q *Quoter) Quote(route *model.Route, sourceAmount decimal.Decimal) (*Quote, error) {
	if sourceAmount.Sign() <= 0 {
		return nil, errors.Errorf("non-positive source amount %s", sourceAmount)
	}

	fee := sourceAmount.Mul(decimal.NewFromInt(route.FeeBps)).Div(basisPoints)
	destination := sourceAmount.Sub(fee)
	if destination.Sign() <= 0 {
		return nil, errors.Errorf("fee %s consumes the whole amount %s", fee, sourceAmount)
	}

	return &Quote{
		DestinationAmount: destination,
		FeeAmount:         fee,
	}, nil
}
