package models

import (
	"context"
	"time"

	"github.com/mapletrade/store_backend/config"
	"github.com/mapletrade/store_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductVariant is the system of record for current stock and cost basis.
// StockQty and AverageUnitCost are mutated exclusively by the stock ledger;
// everything else belongs to the catalog service.
type ProductVariant struct {
	ID              int             `gorm:"primary_key" json:"id"`
	ProductId       int             `gorm:"index;not null" json:"product_id"`
	Name            string          `gorm:"size:255;not null" json:"name"`
	Sku             string          `gorm:"uniqueIndex;size:100;not null" json:"sku"`
	StockQty        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"stock_qty"`
	AverageUnitCost decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"average_unit_cost"`
	SalesPrice      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sales_price"`
	IsActive        *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetProductVariant(ctx context.Context, id int) (*ProductVariant, error) {
	return utils.FetchModel[ProductVariant](ctx, id)
}

func GetProductVariants(ctx context.Context, productId int) ([]*ProductVariant, error) {
	db := config.GetDB()
	var results []*ProductVariant
	err := db.WithContext(ctx).Where("product_id = ?", productId).Order("id").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// lockProductVariant reads the variant row FOR UPDATE so concurrent ledger
// operations against the same variant serialize inside the store.
func lockProductVariant(tx *gorm.DB, id int) (*ProductVariant, error) {
	var variant ProductVariant
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&variant, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.NewNotFoundError("product variant not found")
		}
		return nil, utils.NewInternalError("failed to load product variant", err)
	}
	return &variant, nil
}

// lockProductVariants bulk-locks the given variant ids in one statement,
// in ascending id order to keep lock acquisition deterministic.
func lockProductVariants(tx *gorm.DB, ids []int) (map[int]*ProductVariant, error) {
	if len(ids) == 0 {
		return map[int]*ProductVariant{}, nil
	}
	var rows []*ProductVariant
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, utils.NewInternalError("failed to load product variants", err)
	}
	byID := make(map[int]*ProductVariant, len(rows))
	for _, v := range rows {
		byID[v.ID] = v
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, utils.NewNotFoundError("product variant not found")
		}
	}
	return byID, nil
}

// saveVariantStock persists the ledger-computed stock/cost cache.
func saveVariantStock(tx *gorm.DB, variant *ProductVariant) error {
	err := tx.Model(&ProductVariant{ID: variant.ID}).Updates(map[string]interface{}{
		"stock_qty":         variant.StockQty,
		"average_unit_cost": variant.AverageUnitCost,
	}).Error
	if err != nil {
		return utils.NewInternalError("failed to update variant stock", err)
	}
	return nil
}
