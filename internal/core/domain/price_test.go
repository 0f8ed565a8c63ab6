package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestUnitAmount(t *testing.T) {
	testCases := []struct {
		name          string
		amount        string
		priceQuantity int
		want          string
		ok            bool
	}{
		{"bundle of 100", "360.48", 100, "3.6048", true},
		{"single unit", "19.99", 1, "19.99", true},
		{"bundle of 3", "10", 3, "3.3333333333333333", true},
		{"zero quantity", "360.48", 0, "", false},
		{"negative quantity", "360.48", -5, "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			amount := decimal.RequireFromString(tc.amount)
			got, ok := UnitAmount(amount, tc.priceQuantity)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v", tc.ok, ok)
			}
			if !ok {
				return
			}
			want := decimal.RequireFromString(tc.want)
			if !got.Equal(want) {
				t.Errorf("expected %s, got %s", want, got)
			}
		})
	}
}

func TestUnitAmount_Exact(t *testing.T) {
	// Currency-scale division must not drift the way float64 would.
	amount := decimal.RequireFromString("360.48")
	got, ok := UnitAmount(amount, 100)
	if !ok {
		t.Fatal("expected a defined unit amount")
	}
	if got.String() != "3.6048" {
		t.Errorf("expected exactly 3.6048, got %s", got.String())
	}
}

func TestProductRecord_UnitPrice(t *testing.T) {
	qty := 100
	rec := &ProductRecord{
		SupplierAID:   "A-1",
		PriceQuantity: &qty,
		Prices: []PriceEntry{
			{PriceType: "net_list", Amount: decimal.RequireFromString("360.48"), Currency: "EUR"},
			{PriceType: "gross_list", Amount: decimal.RequireFromString("400.00"), Currency: "EUR"},
		},
	}

	// Unit price derives from the primary (first) price only.
	unit, ok := rec.UnitPrice()
	if !ok {
		t.Fatal("expected a defined unit price")
	}
	if unit.String() != "3.6048" {
		t.Errorf("expected 3.6048, got %s", unit.String())
	}
}

func TestProductRecord_UnitPrice_Undefined(t *testing.T) {
	rec := &ProductRecord{SupplierAID: "A-1"}
	if _, ok := rec.UnitPrice(); ok {
		t.Error("expected no unit price without prices")
	}

	rec.Prices = []PriceEntry{{Amount: decimal.RequireFromString("9.99")}}
	if _, ok := rec.UnitPrice(); ok {
		t.Error("expected no unit price without price_quantity")
	}

	zero := 0
	rec.PriceQuantity = &zero
	if _, ok := rec.UnitPrice(); ok {
		t.Error("expected no unit price for price_quantity=0")
	}
}
