package domain

import (
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/shopspring/decimal"
)

func TestArticleMode_Valid(t *testing.T) {
	for _, m := range []ArticleMode{"", ModeNew, ModeUpdate, ModeDelete} {
		if !m.Valid() {
			t.Errorf("expected mode %q to be valid", m)
		}
	}
	if ArticleMode("upsert").Valid() {
		t.Error("expected unknown mode to be invalid")
	}
}

func TestProductRecord_Validate(t *testing.T) {
	rec := &ProductRecord{CatalogID: "c", SupplierAID: "A-1"}
	if err := rec.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	rec.SupplierAID = ""
	err := rec.Validate()
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for missing supplier_aid, got %v", err)
	}
}

func TestProductRecord_JSONShape(t *testing.T) {
	qty := 100
	rec := &ProductRecord{
		CatalogID:     "acme-2024",
		SupplierAID:   "A-100",
		PriceQuantity: &qty,
		Mode:          ModeUpdate,
		Prices: []PriceEntry{
			{PriceType: "net_list", Amount: decimal.RequireFromString("360.48"), Currency: "EUR", Tax: decimal.RequireFromString("0.19")},
		},
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	// One flat object per record; optional absent fields are omitted.
	if _, ok := raw["ean"]; ok {
		t.Error("expected absent ean to be omitted")
	}
	if raw["mode"] != "update" {
		t.Errorf("expected mode update, got %v", raw["mode"])
	}

	// Price amounts travel as JSON numbers, not strings.
	prices := raw["prices"].([]any)
	amount := prices[0].(map[string]any)["amount"]
	if _, ok := amount.(float64); !ok {
		t.Errorf("expected numeric amount, got %T", amount)
	}

	var back ProductRecord
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if !back.Prices[0].Amount.Equal(rec.Prices[0].Amount) {
		t.Errorf("amount drifted: %s vs %s", back.Prices[0].Amount, rec.Prices[0].Amount)
	}
}

func TestSliceSource(t *testing.T) {
	src := NewSliceSource([]*ProductRecord{
		{SupplierAID: "A-1"},
		{SupplierAID: "A-2"},
	})

	first, err := src.Next()
	if err != nil || first.SupplierAID != "A-1" {
		t.Fatalf("unexpected first record: %v, %v", first, err)
	}
	if _, err := src.Next(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := src.Next(); err != io.EOF {
		t.Errorf("expected io.EOF at end, got %v", err)
	}
}
