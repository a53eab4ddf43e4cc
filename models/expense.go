package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mapletrade/store_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Expense is a loss record written alongside DAMAGE and THEFT stock exits.
// Amounts are captured in USD plus the local equivalent at the rate in
// effect when the loss was recorded.
type Expense struct {
	ID              int                 `gorm:"primary_key" json:"id"`
	StockMovementId int                 `gorm:"index;not null" json:"stock_movement_id"`
	Reason          StockMovementReason `gorm:"size:40;not null" json:"reason"`
	Description     string              `gorm:"size:255" json:"description"`
	AmountUsd       decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"amount_usd"`
	ExchangeRate    decimal.Decimal     `gorm:"type:decimal(20,4);default:1" json:"exchange_rate"`
	AmountLocal     decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"amount_local"`
	ActorId         int                 `gorm:"index" json:"actor_id"`
	CreatedAt       time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

// RecordLossExpense writes the expense row inside the caller's transaction.
func RecordLossExpense(tx *gorm.DB, movementId int, reason StockMovementReason, amountUsd decimal.Decimal, description string, actorId int) (*Expense, error) {
	rate := FetchExchangeRate(tx.Statement.Context)

	expense := &Expense{
		StockMovementId: movementId,
		Reason:          reason,
		Description:     description,
		AmountUsd:       amountUsd,
		ExchangeRate:    rate,
		AmountLocal:     amountUsd.Mul(rate),
		ActorId:         actorId,
	}
	if err := tx.Create(expense).Error; err != nil {
		return nil, err
	}
	return expense, nil
}

// recordLossExpenseBestEffort records the expense for a loss exit. Failures
// are logged only; the stock movement that triggered it always stands.
func recordLossExpenseBestEffort(tx *gorm.DB, movement *StockMovement, variant *ProductVariant, actorId int) {
	logger := config.GetLogger()

	amount := movement.TotalCost.Abs()
	description := fmt.Sprintf("%s loss: %s x %s (%s)",
		movement.Reason, movement.Qty.Abs().String(), variant.Name, variant.Sku)

	_, err := RecordLossExpense(tx, movement.ID, movement.Reason, amount, description, actorId)
	if err != nil {
		config.LogError(logger, "expense", "recordLossExpenseBestEffort",
			"failed to record loss expense",
			map[string]interface{}{
				"stock_movement_id": movement.ID,
				"variant_id":        variant.ID,
				"reason":            movement.Reason,
				"amount_usd":        amount.String(),
			}, err)
	}
}

// GetExpenses returns loss expenses, newest first.
func GetExpenses(ctx context.Context, limit int, offset int) ([]*Expense, error) {
	db := config.GetDB()
	if limit <= 0 || limit > 100 {
		limit = config.SearchLimit
	}
	if offset < 0 {
		offset = 0
	}
	var expenses []*Expense
	err := db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&expenses).Error
	if err != nil {
		return nil, err
	}
	return expenses, nil
}
