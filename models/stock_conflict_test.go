package models

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestFindStockShortfalls(t *testing.T) {
	items := []OrderItem{
		{VariantId: 1, Qty: dec(5)},
		{VariantId: 2, Qty: dec(3)},
		{VariantId: 3, Qty: dec(1)},
	}
	variants := map[int]*ProductVariant{
		1: {ID: 1, Name: "Blue Mug", StockQty: dec(2)},
		2: {ID: 2, Name: "Red Mug", StockQty: dec(3)},
		3: {ID: 3, Name: "Green Mug", StockQty: dec(10)},
	}

	shortfalls := findStockShortfalls(items, variants)
	if len(shortfalls) != 1 {
		t.Fatalf("expected 1 shortfall, got %d", len(shortfalls))
	}
	s := shortfalls[0]
	if s.VariantId != 1 || s.ProductName != "Blue Mug" {
		t.Errorf("unexpected shortfall target: %+v", s)
	}
	if !s.RequiredQty.Equal(dec(5)) || !s.AvailableQty.Equal(dec(2)) {
		t.Errorf("expected required=5 available=2, got required=%s available=%s",
			s.RequiredQty, s.AvailableQty)
	}
}

func TestFindStockShortfallsExactStockIsEnough(t *testing.T) {
	items := []OrderItem{{VariantId: 1, Qty: dec(3)}}
	variants := map[int]*ProductVariant{
		1: {ID: 1, StockQty: dec(3)},
	}
	if got := findStockShortfalls(items, variants); len(got) != 0 {
		t.Errorf("exact stock must satisfy the order, got %d shortfalls", len(got))
	}
}

func TestFindStockShortfallsZeroAvailable(t *testing.T) {
	items := []OrderItem{{VariantId: 1, Qty: decimal.NewFromInt(1)}}
	variants := map[int]*ProductVariant{
		1: {ID: 1, Name: "Blue Mug", StockQty: decimal.Zero},
	}
	shortfalls := findStockShortfalls(items, variants)
	if len(shortfalls) != 1 || !shortfalls[0].AvailableQty.IsZero() {
		t.Fatalf("expected one shortfall with zero available, got %+v", shortfalls)
	}
}

func TestStockConflictErrorMessage(t *testing.T) {
	err := &StockConflictError{
		OrderId: 7,
		Shortfalls: []StockShortfall{
			{VariantId: 1},
			{VariantId: 2},
		},
	}
	msg := err.Error()
	if !strings.Contains(msg, "2 item(s)") || !strings.Contains(msg, "order 7") {
		t.Errorf("unexpected message: %q", msg)
	}
}
