package models

import (
	"testing"

	"github.com/mapletrade/store_backend/utils"
	"github.com/shopspring/decimal"
)

func testVariant(stock, avgCost int64) *ProductVariant {
	return &ProductVariant{
		ID:              1,
		ProductId:       1,
		Name:            "Blue Mug",
		Sku:             "MUG-BLU",
		StockQty:        decimal.NewFromInt(stock),
		AverageUnitCost: decimal.NewFromInt(avgCost),
		SalesPrice:      decimal.NewFromInt(100),
	}
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestNextAverageCostFromZeroStock(t *testing.T) {
	got := NextAverageCost(decimal.Zero, decimal.Zero, dec(10), dec(5))
	if !got.Equal(dec(5)) {
		t.Fatalf("expected 5, got %s", got)
	}
}

func TestNextAverageCostWeighted(t *testing.T) {
	// 10 units at 5, then 10 more at 7: 20 units at 6.
	avg := NextAverageCost(decimal.Zero, decimal.Zero, dec(10), dec(5))
	avg = NextAverageCost(dec(10), avg, dec(10), dec(7))
	if !avg.Equal(dec(6)) {
		t.Fatalf("expected 6, got %s", avg)
	}
}

func TestPurchaseEntryMovesAverageCost(t *testing.T) {
	variant := testVariant(10, 5)
	cost := dec(7)
	movement, err := buildStockEntry(variant, dec(10), StockReasonPurchase, &cost)
	if err != nil {
		t.Fatalf("buildStockEntry: %v", err)
	}
	if !movement.NewStock.Equal(dec(20)) {
		t.Errorf("new stock: expected 20, got %s", movement.NewStock)
	}
	if !movement.NewAvgCost.Equal(dec(6)) {
		t.Errorf("new avg cost: expected 6, got %s", movement.NewAvgCost)
	}
	if !movement.TotalCost.Equal(dec(70)) {
		t.Errorf("total cost: expected 70, got %s", movement.TotalCost)
	}
	if !movement.PreviousStock.Equal(dec(10)) || !movement.PreviousAvgCost.Equal(dec(5)) {
		t.Errorf("snapshots: got prev stock %s, prev avg %s", movement.PreviousStock, movement.PreviousAvgCost)
	}
}

func TestPurchaseEntryRequiresUnitCost(t *testing.T) {
	variant := testVariant(10, 5)
	if _, err := buildStockEntry(variant, dec(10), StockReasonPurchase, nil); err == nil {
		t.Fatal("expected error for purchase without unit cost")
	}
	if _, err := buildStockEntry(variant, dec(10), StockReasonInitialStock, nil); err == nil {
		t.Fatal("expected error for initial stock without unit cost")
	}
}

func TestEntryUnitCostRequirementFollowsPolicy(t *testing.T) {
	variant := testVariant(10, 5)
	for reason, policy := range stockReasonPolicies {
		if !policy.AllowEntry {
			continue
		}
		_, err := buildStockEntry(variant, dec(1), reason, nil)
		if policy.RequiresUnitCost && err == nil {
			t.Errorf("%s entry without unit cost must fail", reason)
		}
		if !policy.RequiresUnitCost && err != nil {
			t.Errorf("%s entry without unit cost must succeed: %v", reason, err)
		}
	}
}

func TestReturnEntryKeepsAverageCost(t *testing.T) {
	variant := testVariant(10, 5)
	capturedCost := dec(9)
	movement, err := buildStockEntry(variant, dec(2), StockReasonReturn, &capturedCost)
	if err != nil {
		t.Fatalf("buildStockEntry: %v", err)
	}
	if !movement.NewAvgCost.Equal(dec(5)) {
		t.Errorf("return must not move the average: got %s", movement.NewAvgCost)
	}
	if !movement.UnitCost.Equal(dec(9)) {
		t.Errorf("return should record the supplied cost: got %s", movement.UnitCost)
	}
	if !movement.NewStock.Equal(dec(12)) {
		t.Errorf("new stock: expected 12, got %s", movement.NewStock)
	}
}

func TestAdjustmentEntryUsesCurrentAverage(t *testing.T) {
	variant := testVariant(10, 5)
	movement, err := buildStockEntry(variant, dec(3), StockReasonInventoryAdjustment, nil)
	if err != nil {
		t.Fatalf("buildStockEntry: %v", err)
	}
	if !movement.UnitCost.Equal(dec(5)) || !movement.NewAvgCost.Equal(dec(5)) {
		t.Errorf("adjustment entry should price at and keep the average: cost=%s avg=%s",
			movement.UnitCost, movement.NewAvgCost)
	}
}

func TestEntryRejectsExitOnlyReason(t *testing.T) {
	variant := testVariant(10, 5)
	for _, reason := range []StockMovementReason{StockReasonSale, StockReasonDamage, StockReasonTheft} {
		if _, err := buildStockEntry(variant, dec(1), reason, nil); err == nil {
			t.Errorf("expected error for %s entry", reason)
		}
	}
}

func TestExitRejectsEntryOnlyReason(t *testing.T) {
	variant := testVariant(10, 5)
	for _, reason := range []StockMovementReason{StockReasonPurchase, StockReasonReturn, StockReasonInitialStock} {
		if _, err := buildStockExit(variant, dec(1), reason); err == nil {
			t.Errorf("expected error for %s exit", reason)
		}
	}
}

func TestExitSignConventionAndAverage(t *testing.T) {
	variant := testVariant(20, 6)
	movement, err := buildStockExit(variant, dec(3), StockReasonSale)
	if err != nil {
		t.Fatalf("buildStockExit: %v", err)
	}
	if !movement.Qty.Equal(dec(-3)) {
		t.Errorf("exit qty must be negative: got %s", movement.Qty)
	}
	if !movement.TotalCost.Equal(dec(-18)) {
		t.Errorf("exit total cost must be negative: got %s", movement.TotalCost)
	}
	if !movement.NewAvgCost.Equal(dec(6)) {
		t.Errorf("exit must not move the average: got %s", movement.NewAvgCost)
	}
	if !movement.NewStock.Equal(dec(17)) {
		t.Errorf("new stock: expected 17, got %s", movement.NewStock)
	}
}

func TestExitInsufficientStock(t *testing.T) {
	variant := testVariant(2, 6)
	_, err := buildStockExit(variant, dec(3), StockReasonSale)
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}
	if utils.CodeOf(err) != utils.ErrorCodeInsufficientStock {
		t.Errorf("expected insufficient stock code, got %s", utils.CodeOf(err))
	}
}

func TestQtyMustBePositiveWhole(t *testing.T) {
	variant := testVariant(10, 5)
	cost := dec(5)
	invalid := []decimal.Decimal{
		decimal.Zero,
		dec(-2),
		decimal.NewFromFloat(1.5),
	}
	for _, qty := range invalid {
		if _, err := buildStockEntry(variant, qty, StockReasonPurchase, &cost); err == nil {
			t.Errorf("expected entry qty %s to be rejected", qty)
		}
		if _, err := buildStockExit(variant, qty, StockReasonSale); err == nil {
			t.Errorf("expected exit qty %s to be rejected", qty)
		}
	}
}

func TestReasonPolicyUnknownReason(t *testing.T) {
	if _, err := reasonPolicyFor(StockMovementReason("BREAKAGE")); err == nil {
		t.Fatal("expected error for unknown reason")
	}
}
