package domain

import "github.com/shopspring/decimal"

func init() {
	// Price fields are documented as JSON numbers in the normalized record
	// format, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// PriceEntry is one price of an article. Amount applies to PriceQuantity
// units of the article, not to a single unit.
type PriceEntry struct {
	PriceType string          `json:"price_type,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency,omitempty"`
	Tax       decimal.Decimal `json:"tax,omitempty"`
}

// UnitAmount normalizes a price amount to a single unit.
// A priceQuantity of zero or less means the bundle size is unknown, so no
// unit price can be derived; defaulting to 1 would silently misread bundled
// pricing as per-unit. The bool result is false in that case.
func UnitAmount(amount decimal.Decimal, priceQuantity int) (decimal.Decimal, bool) {
	if priceQuantity <= 0 {
		return decimal.Decimal{}, false
	}
	return amount.Div(decimal.NewFromInt(int64(priceQuantity))), true
}

// UnitPrice derives the unit amount of the record's primary price, if any.
func (r *ProductRecord) UnitPrice() (decimal.Decimal, bool) {
	price := r.PrimaryPrice()
	if price == nil || r.PriceQuantity == nil {
		return decimal.Decimal{}, false
	}
	return UnitAmount(price.Amount, *r.PriceQuantity)
}
