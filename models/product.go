package models

import (
	"context"
	"time"

	"github.com/mapletrade/store_backend/config"
	"github.com/mapletrade/store_backend/utils"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int              `gorm:"primary_key" json:"id"`
	Name        string           `gorm:"size:255;not null" json:"name"`
	Description string           `gorm:"type:text" json:"description"`
	Category    string           `gorm:"size:100;index" json:"category"`
	IsActive    *bool            `gorm:"default:true" json:"is_active"`
	Variants    []ProductVariant `gorm:"foreignKey:ProductId" json:"variants"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type NewProductVariant struct {
	ProductId       int              `json:"product_id" binding:"required"`
	Name            string           `json:"name" binding:"required"`
	Sku             string           `json:"sku" binding:"required"`
	SalesPrice      decimal.Decimal  `json:"sales_price"`
	InitialStockQty *decimal.Decimal `json:"initial_stock_qty"`
	InitialUnitCost *decimal.Decimal `json:"initial_unit_cost"`
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	db := config.GetDB()
	product := &Product{
		Name:        input.Name,
		Description: input.Description,
		Category:    input.Category,
		IsActive:    utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Omit("Variants").Create(product).Error; err != nil {
		return nil, utils.NewInternalError("failed to create product", err)
	}
	return product, nil
}

// CreateProductVariant creates the variant and, when an opening position is
// supplied, seeds the ledger with an INITIAL_STOCK entry so the variant's
// stock and average cost are derivable from movements like everything else.
func CreateProductVariant(ctx context.Context, input *NewProductVariant, actorId int) (*ProductVariant, error) {
	if err := utils.ValidateResourceId[Product](ctx, input.ProductId); err != nil {
		return nil, utils.NewNotFoundError("product not found")
	}
	if err := utils.ValidateUnique[ProductVariant](ctx, "sku", input.Sku, 0); err != nil {
		return nil, utils.NewValidationError("sku is already in use")
	}
	if input.SalesPrice.IsNegative() {
		return nil, utils.NewValidationError("sales price cannot be negative")
	}
	if (input.InitialStockQty == nil) != (input.InitialUnitCost == nil) {
		return nil, utils.NewValidationError("initial stock qty and unit cost must be provided together")
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	variant := &ProductVariant{
		ProductId:  input.ProductId,
		Name:       input.Name,
		Sku:        input.Sku,
		SalesPrice: input.SalesPrice,
		IsActive:   utils.NewTrue(),
	}
	if err := tx.Create(variant).Error; err != nil {
		tx.Rollback()
		if isDuplicateKeyErr(err) {
			return nil, utils.NewValidationError("sku is already in use")
		}
		return nil, utils.NewInternalError("failed to create product variant", err)
	}

	if input.InitialStockQty != nil {
		movement, err := createStockEntryTx(tx, &NewStockEntry{
			ProductVariantId: variant.ID,
			Qty:              *input.InitialStockQty,
			Reason:           StockReasonInitialStock,
			UnitCost:         input.InitialUnitCost,
			Notes:            "opening stock",
		}, actorId)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		variant.StockQty = movement.NewStock
		variant.AverageUnitCost = movement.NewAvgCost
	}

	if err := tx.Commit().Error; err != nil {
		return nil, utils.NewInternalError("failed to commit product variant", err)
	}
	return variant, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	return utils.FetchModel[Product](ctx, id, "Variants")
}

func GetProducts(ctx context.Context, limit int, offset int) ([]*Product, error) {
	db := config.GetDB()
	if limit <= 0 || limit > 100 {
		limit = config.SearchLimit
	}
	if offset < 0 {
		offset = 0
	}
	var products []*Product
	err := db.WithContext(ctx).Preload("Variants").
		Order("id ASC").Limit(limit).Offset(offset).Find(&products).Error
	if err != nil {
		return nil, utils.NewInternalError("failed to load products", err)
	}
	return products, nil
}
