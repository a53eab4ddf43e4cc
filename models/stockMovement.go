package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mapletrade/store_backend/config"
	"github.com/mapletrade/store_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockMovement is one immutable ledger row. It carries before/after
// snapshots of the variant's stock and average cost, so the current state is
// derivable from the ledger alone while history reads stay cheap.
//
// Rows are created once and never updated or deleted.
type StockMovement struct {
	ID               int                 `gorm:"primary_key" json:"id"`
	ProductVariantId int                 `gorm:"index;not null" json:"product_variant_id"`
	Kind             StockMovementKind   `gorm:"type:enum('ENTRY','EXIT');not null" json:"kind"`
	Reason           StockMovementReason `gorm:"type:enum('PURCHASE','SALE','RETURN','DAMAGE','THEFT','INVENTORY_ADJUSTMENT','INITIAL_STOCK');index;not null" json:"reason"`
	Qty              decimal.Decimal     `gorm:"type:decimal(20,4);not null" json:"qty"`
	UnitCost         decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	TotalCost        decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"total_cost"`
	PreviousStock    decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"previous_stock"`
	NewStock         decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"new_stock"`
	PreviousAvgCost  decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"previous_avg_cost"`
	NewAvgCost       decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"new_avg_cost"`
	Reference        string              `gorm:"size:255" json:"reference"`
	Notes            string              `gorm:"type:text" json:"notes"`
	ActorId          int                 `gorm:"index" json:"actor_id"`
	CreatedAt        time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

type NewStockEntry struct {
	ProductVariantId int                 `json:"product_variant_id" binding:"required"`
	Qty              decimal.Decimal     `json:"qty" binding:"required"`
	Reason           StockMovementReason `json:"reason" binding:"required"`
	UnitCost         *decimal.Decimal    `json:"unit_cost"`
	Reference        string              `json:"reference"`
	Notes            string              `json:"notes"`
}

type NewStockExit struct {
	ProductVariantId int                 `json:"product_variant_id" binding:"required"`
	Qty              decimal.Decimal     `json:"qty" binding:"required"`
	Reason           StockMovementReason `json:"reason" binding:"required"`
	Reference        string              `json:"reference"`
	Notes            string              `json:"notes"`
}

// NextAverageCost applies the weighted-average-cost rule for a qualifying
// entry of qty units at unitCost.
func NextAverageCost(currentStock, currentAvgCost, qty, unitCost decimal.Decimal) decimal.Decimal {
	if currentStock.IsZero() {
		return unitCost
	}
	total := currentStock.Mul(currentAvgCost).Add(qty.Mul(unitCost))
	return total.Div(currentStock.Add(qty))
}

// buildStockEntry computes the ledger row for an entry against the variant's
// current state. Pure: the caller persists the movement and the new
// stock/cost it reports.
func buildStockEntry(variant *ProductVariant, qty decimal.Decimal, reason StockMovementReason, unitCost *decimal.Decimal) (*StockMovement, error) {
	policy, err := reasonPolicyFor(reason)
	if err != nil {
		return nil, err
	}
	if !policy.AllowEntry {
		return nil, utils.NewValidationError(fmt.Sprintf("reason %q is not valid for a stock entry", reason))
	}
	if !utils.IsPositiveWholeQty(qty) {
		return nil, utils.NewValidationError("qty must be a positive whole number")
	}

	if policy.RequiresUnitCost && (unitCost == nil || unitCost.IsNegative()) {
		return nil, utils.NewValidationError(fmt.Sprintf("unit cost is required for %s entries", reason))
	}

	cost := variant.AverageUnitCost
	newAvgCost := variant.AverageUnitCost
	if unitCost != nil && !unitCost.IsNegative() {
		// Returns may record the cost the stock originally left at. The
		// recorded cost never feeds back into the average.
		cost = *unitCost
	}
	if policy.AffectsAverageCost {
		newAvgCost = NextAverageCost(variant.StockQty, variant.AverageUnitCost, qty, cost)
	}

	return &StockMovement{
		ProductVariantId: variant.ID,
		Kind:             StockMovementKindEntry,
		Reason:           reason,
		Qty:              qty,
		UnitCost:         cost,
		TotalCost:        qty.Mul(cost),
		PreviousStock:    variant.StockQty,
		NewStock:         variant.StockQty.Add(qty),
		PreviousAvgCost:  variant.AverageUnitCost,
		NewAvgCost:       newAvgCost,
	}, nil
}

// buildStockExit computes the ledger row for an exit. Exits always price at
// the current average cost and never move it; qty and total are stored
// negative so summing the ledger yields net stock and cost directly.
func buildStockExit(variant *ProductVariant, qty decimal.Decimal, reason StockMovementReason) (*StockMovement, error) {
	policy, err := reasonPolicyFor(reason)
	if err != nil {
		return nil, err
	}
	if !policy.AllowExit {
		return nil, utils.NewValidationError(fmt.Sprintf("reason %q is not valid for a stock exit", reason))
	}
	if !utils.IsPositiveWholeQty(qty) {
		return nil, utils.NewValidationError("qty must be a positive whole number")
	}
	if qty.GreaterThan(variant.StockQty) {
		return nil, utils.NewInsufficientStockError(fmt.Sprintf(
			"insufficient stock for variant %d: requested %s, available %s",
			variant.ID, qty.String(), variant.StockQty.String()))
	}

	signedQty := qty.Neg()
	return &StockMovement{
		ProductVariantId: variant.ID,
		Kind:             StockMovementKindExit,
		Reason:           reason,
		Qty:              signedQty,
		UnitCost:         variant.AverageUnitCost,
		TotalCost:        signedQty.Mul(variant.AverageUnitCost),
		PreviousStock:    variant.StockQty,
		NewStock:         variant.StockQty.Add(signedQty),
		PreviousAvgCost:  variant.AverageUnitCost,
		NewAvgCost:       variant.AverageUnitCost,
	}, nil
}

// createStockEntryTx runs the entry against an open transaction, so order
// operations can compose ledger steps with their own writes.
func createStockEntryTx(tx *gorm.DB, input *NewStockEntry, actorId int) (*StockMovement, error) {
	variant, err := lockProductVariant(tx, input.ProductVariantId)
	if err != nil {
		return nil, err
	}

	movement, err := buildStockEntry(variant, input.Qty, input.Reason, input.UnitCost)
	if err != nil {
		return nil, err
	}
	movement.Reference = input.Reference
	movement.Notes = input.Notes
	movement.ActorId = actorId

	if err := tx.Create(movement).Error; err != nil {
		return nil, utils.NewInternalError("failed to record stock entry", err)
	}

	variant.StockQty = movement.NewStock
	variant.AverageUnitCost = movement.NewAvgCost
	if err := saveVariantStock(tx, variant); err != nil {
		return nil, err
	}
	return movement, nil
}

func createStockExitTx(tx *gorm.DB, input *NewStockExit, actorId int) (*StockMovement, error) {
	variant, err := lockProductVariant(tx, input.ProductVariantId)
	if err != nil {
		return nil, err
	}

	movement, err := buildStockExit(variant, input.Qty, input.Reason)
	if err != nil {
		return nil, err
	}
	movement.Reference = input.Reference
	movement.Notes = input.Notes
	movement.ActorId = actorId

	if err := tx.Create(movement).Error; err != nil {
		return nil, utils.NewInternalError("failed to record stock exit", err)
	}

	variant.StockQty = movement.NewStock
	if err := saveVariantStock(tx, variant); err != nil {
		return nil, err
	}

	// Loss exits feed the expense recorder. Best-effort: a failure here is
	// logged and must never roll back the stock movement.
	policy, _ := reasonPolicyFor(input.Reason)
	if policy.RecordsExpense && config.AutoLossExpenseEnabled() {
		recordLossExpenseBestEffort(tx, movement, variant, actorId)
	}

	return movement, nil
}

// CreateStockEntry records stock coming in. PURCHASE and INITIAL_STOCK
// require a unit cost and move the weighted average; RETURN and
// INVENTORY_ADJUSTMENT price at the current average and leave it unchanged.
func CreateStockEntry(ctx context.Context, input *NewStockEntry, actorId int) (*StockMovement, error) {
	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	movement, err := createStockEntryTx(tx, input, actorId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, utils.NewInternalError("failed to commit stock entry", err)
	}
	return movement, nil
}

// CreateStockExit records stock going out. DAMAGE and THEFT exits trigger
// automatic loss-expense recording.
func CreateStockExit(ctx context.Context, input *NewStockExit, actorId int) (*StockMovement, error) {
	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	movement, err := createStockExitTx(tx, input, actorId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, utils.NewInternalError("failed to commit stock exit", err)
	}
	return movement, nil
}

// GetStockMovementHistory returns one variant's movements, newest first,
// plus the total row count for pagination.
func GetStockMovementHistory(ctx context.Context, variantId int, limit int, offset int) ([]*StockMovement, int64, error) {
	if err := utils.ValidateResourceId[ProductVariant](ctx, variantId); err != nil {
		return nil, 0, utils.NewNotFoundError("product variant not found")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&StockMovement{}).Where("product_variant_id = ?", variantId)

	var total int64
	if err := dbCtx.Count(&total).Error; err != nil {
		return nil, 0, utils.NewInternalError("failed to count stock movements", err)
	}

	if limit <= 0 || limit > 100 {
		limit = config.SearchLimit
	}
	if offset < 0 {
		offset = 0
	}

	var movements []*StockMovement
	err := dbCtx.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&movements).Error
	if err != nil {
		return nil, 0, utils.NewInternalError("failed to load stock movements", err)
	}
	return movements, total, nil
}

// VariantStockSummary is the read projection for one variant's position.
type VariantStockSummary struct {
	ProductVariantId int             `json:"product_variant_id"`
	Name             string          `json:"name"`
	Sku              string          `json:"sku"`
	StockQty         decimal.Decimal `json:"stock_qty"`
	AverageUnitCost  decimal.Decimal `json:"average_unit_cost"`
	TotalValue       decimal.Decimal `json:"total_value"`
	LastMovementAt   *time.Time      `json:"last_movement_at"`
}

// GetProductStockSummary reports stock, average cost, inventory value and
// last movement per variant of a catalog product.
func GetProductStockSummary(ctx context.Context, productId int) ([]*VariantStockSummary, error) {
	if err := utils.ValidateResourceId[Product](ctx, productId); err != nil {
		return nil, utils.NewNotFoundError("product not found")
	}
	variants, err := GetProductVariants(ctx, productId)
	if err != nil {
		return nil, utils.NewInternalError("failed to load product variants", err)
	}
	if len(variants) == 0 {
		return []*VariantStockSummary{}, nil
	}

	ids := make([]int, 0, len(variants))
	for _, v := range variants {
		ids = append(ids, v.ID)
	}

	db := config.GetDB()
	type lastRow struct {
		ProductVariantId int
		LastAt           time.Time
	}
	var lastRows []lastRow
	err = db.WithContext(ctx).Model(&StockMovement{}).
		Select("product_variant_id, MAX(created_at) AS last_at").
		Where("product_variant_id IN ?", ids).
		Group("product_variant_id").
		Scan(&lastRows).Error
	if err != nil {
		return nil, utils.NewInternalError("failed to load movement times", err)
	}
	lastByVariant := make(map[int]time.Time, len(lastRows))
	for _, r := range lastRows {
		lastByVariant[r.ProductVariantId] = r.LastAt
	}

	summaries := make([]*VariantStockSummary, 0, len(variants))
	for _, v := range variants {
		s := &VariantStockSummary{
			ProductVariantId: v.ID,
			Name:             v.Name,
			Sku:              v.Sku,
			StockQty:         v.StockQty,
			AverageUnitCost:  v.AverageUnitCost,
			TotalValue:       v.StockQty.Mul(v.AverageUnitCost),
		}
		if t, ok := lastByVariant[v.ID]; ok {
			lt := t
			s.LastMovementAt = &lt
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}
