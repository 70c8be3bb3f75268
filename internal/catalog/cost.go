package catalog

import "github.com/shopspring/decimal"

var thousand = decimal.NewFromInt(1000)

// Estimate is a token count priced against one model.
type Estimate struct {
	Tokens int
	Amount decimal.Decimal
}

// Cost returns tokens * PricePer1K / 1000. Negative counts cost nothing.
// The result is exact; round only when displaying it.
func (p Profile) Cost(tokens int) decimal.Decimal {
	if tokens <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(tokens)).Mul(p.PricePer1K).Div(thousand)
}

// EstimateCost prices a token count for the given model.
func EstimateCost(tokens int, p Profile) Estimate {
	if tokens < 0 {
		tokens = 0
	}
	return Estimate{Tokens: tokens, Amount: p.Cost(tokens)}
}

// AmountPlaces is the number of decimal places shown to the operator.
const AmountPlaces = 5

// FormatAmount renders an amount in dollars, e.g. "$0.00012".
func FormatAmount(d decimal.Decimal) string {
	return "$" + d.StringFixed(AmountPlaces)
}

// Fits reports whether a prompt of the given size is within the model's
// context window. Unknown windows always fit.
func (p Profile) Fits(tokens int) bool {
	return p.ContextWindow <= 0 || tokens <= p.ContextWindow
}
