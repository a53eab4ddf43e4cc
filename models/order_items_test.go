package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeItemStockDelta(t *testing.T) {
	cases := []struct {
		name     string
		action   OrderItemAction
		current  int64
		qty      int64
		wantQty  int64
		wantDiff int64
	}{
		{"increase", OrderItemActionIncrease, 2, 3, 5, 3},
		{"decrease", OrderItemActionDecrease, 5, 2, 3, -2},
		{"set higher", OrderItemActionSet, 2, 6, 6, 4},
		{"set lower", OrderItemActionSet, 6, 2, 2, -4},
		{"set same", OrderItemActionSet, 4, 4, 4, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			newQty, delta, err := computeItemStockDelta(tc.action, dec(tc.current), dec(tc.qty))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !newQty.Equal(dec(tc.wantQty)) {
				t.Errorf("newQty: expected %d, got %s", tc.wantQty, newQty)
			}
			if !delta.Equal(dec(tc.wantDiff)) {
				t.Errorf("delta: expected %d, got %s", tc.wantDiff, delta)
			}
		})
	}
}

func TestComputeItemStockDeltaRejections(t *testing.T) {
	if _, _, err := computeItemStockDelta(OrderItemActionDecrease, dec(2), dec(2)); err == nil {
		t.Error("decrease to zero must be rejected")
	}
	if _, _, err := computeItemStockDelta(OrderItemActionDecrease, dec(2), dec(5)); err == nil {
		t.Error("decrease below zero must be rejected")
	}
	if _, _, err := computeItemStockDelta(OrderItemActionIncrease, dec(2), decimal.NewFromFloat(0.5)); err == nil {
		t.Error("fractional qty must be rejected")
	}
	if _, _, err := computeItemStockDelta(OrderItemActionIncrease, dec(2), dec(0)); err == nil {
		t.Error("zero qty must be rejected")
	}
	if _, _, err := computeItemStockDelta(OrderItemActionAdd, dec(2), dec(1)); err == nil {
		t.Error("add is not a quantity action")
	}
}

func TestFindOrderItem(t *testing.T) {
	order := &Order{Items: []OrderItem{
		{ID: 1, VariantId: 10},
		{ID: 2, VariantId: 20},
	}}
	idx, item := findOrderItem(order, 20)
	if idx != 1 || item == nil || item.ID != 2 {
		t.Errorf("expected item 2 at index 1, got idx=%d item=%+v", idx, item)
	}
	if idx, item := findOrderItem(order, 30); idx != -1 || item != nil {
		t.Error("expected no match for absent variant")
	}
}
