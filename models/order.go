package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mapletrade/store_backend/config"
	"github.com/mapletrade/store_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// bankTransferSurchargeRate is the processing fee added to the order total
// when the customer pays by bank transfer.
var bankTransferSurchargeRate = decimal.NewFromFloat(0.04)

// Order is a customer order. Stock for its items is held as SALE exits in
// the ledger while the order is in a reserving status; monetary totals are
// denormalized and recomputed after every mutation.
type Order struct {
	ID                int             `gorm:"primary_key" json:"id"`
	OrderNumber       string          `gorm:"size:40;uniqueIndex;not null" json:"order_number"`
	SequenceNo        int             `gorm:"index" json:"sequence_no"`
	UserId            int             `gorm:"index;not null" json:"user_id"`
	ShippingAddressId *int            `json:"shipping_address_id"`
	ShippingMethod    ShippingMethod  `gorm:"size:20;default:'Standard'" json:"shipping_method"`
	PaymentMethod     PaymentMethod   `gorm:"size:20;not null" json:"payment_method"`
	CurrentStatus     OrderStatus     `gorm:"size:20;index;default:'Processing'" json:"current_status"`
	OrderSubtotal     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"order_subtotal"`
	PaymentSurcharge  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"payment_surcharge"`
	OrderTotalAmount  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"order_total_amount"`
	TotalGain         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_gain"`
	ShowInvoice       *bool           `gorm:"default:true" json:"show_invoice"`
	Items             []OrderItem     `gorm:"foreignKey:OrderId" json:"items"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// OrderItem is one line of an order. UnitCost is the variant's average cost
// captured when the line's stock was reserved; cancellations return stock at
// this cost, not at whatever the average is later.
type OrderItem struct {
	ID        int             `gorm:"primary_key" json:"id"`
	OrderId   int             `gorm:"index;not null" json:"order_id"`
	VariantId int             `gorm:"index;not null" json:"variant_id"`
	Qty       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	UnitCost  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	Gain      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"gain"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) SequencePrefix() string { return "SO-" }

type NewOrderItem struct {
	VariantId int              `json:"variant_id" binding:"required"`
	Qty       decimal.Decimal  `json:"qty" binding:"required"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

type NewOrder struct {
	ShippingAddressId *int           `json:"shipping_address_id"`
	ShippingMethod    ShippingMethod `json:"shipping_method"`
	PaymentMethod     PaymentMethod  `json:"payment_method" binding:"required"`
	Items             []NewOrderItem `json:"items" binding:"required"`
}

// UpdateOrderInput carries the optional concerns of a single order update.
// Nil fields are untouched. Concerns are applied in a fixed order: header
// fields, then item mutations, then totals recomputation, then the status
// transition last so its stock side effects see the final item set.
type UpdateOrderInput struct {
	ShippingMethod    *ShippingMethod     `json:"shipping_method"`
	PaymentMethod     *PaymentMethod      `json:"payment_method"`
	ShippingAddressId *int                `json:"shipping_address_id"`
	ShowInvoice       *bool               `json:"show_invoice"`
	Items             []OrderItemMutation `json:"items"`
	NewStatus         *OrderStatus        `json:"new_status"`
}

// calculateOrderTotals sums the stored line amounts and applies the payment
// surcharge. Line subtotal and gain are maintained at mutation time, so
// running this twice in a row changes nothing.
func calculateOrderTotals(items []OrderItem, paymentMethod PaymentMethod) (subtotal, surcharge, total, gain decimal.Decimal) {
	for _, item := range items {
		subtotal = subtotal.Add(item.Subtotal)
		gain = gain.Add(item.Gain)
	}
	if paymentMethod == PaymentMethodBankTransfer {
		surcharge = subtotal.Mul(bankTransferSurchargeRate)
	}
	total = subtotal.Add(surcharge)
	return subtotal, surcharge, total, gain
}

func applyOrderTotals(order *Order) {
	subtotal, surcharge, total, gain := calculateOrderTotals(order.Items, order.PaymentMethod)
	order.OrderSubtotal = subtotal
	order.PaymentSurcharge = surcharge
	order.OrderTotalAmount = total
	order.TotalGain = gain
}

func saveOrderTotals(tx *gorm.DB, order *Order) error {
	applyOrderTotals(order)
	err := tx.Model(&Order{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
		"order_subtotal":     order.OrderSubtotal,
		"payment_surcharge":  order.PaymentSurcharge,
		"order_total_amount": order.OrderTotalAmount,
		"total_gain":         order.TotalGain,
	}).Error
	if err != nil {
		return utils.NewInternalError("failed to save order totals", err)
	}
	return nil
}

func validateNewOrder(input *NewOrder) error {
	if !input.PaymentMethod.Valid() {
		return utils.NewValidationError(fmt.Sprintf("unknown payment method %q", input.PaymentMethod))
	}
	if input.ShippingMethod != "" && !input.ShippingMethod.Valid() {
		return utils.NewValidationError(fmt.Sprintf("unknown shipping method %q", input.ShippingMethod))
	}
	if len(input.Items) == 0 {
		return utils.NewValidationError("order must have at least one item")
	}
	seen := make(map[int]bool, len(input.Items))
	for _, item := range input.Items {
		if seen[item.VariantId] {
			return utils.NewValidationError(fmt.Sprintf("variant %d appears more than once", item.VariantId))
		}
		seen[item.VariantId] = true
		if !utils.IsPositiveWholeQty(item.Qty) {
			return utils.NewValidationError("item qty must be a positive whole number")
		}
		if item.UnitPrice != nil && item.UnitPrice.IsNegative() {
			return utils.NewValidationError("item unit price cannot be negative")
		}
	}
	return nil
}

// createOrder reserves stock, captures per-line cost and price, and writes
// the order. allowPriceOverride gates the admin path: customer orders always
// price lines at the variant's current sales price.
func createOrder(ctx context.Context, input *NewOrder, userId int, actorId int, allowPriceOverride bool) (*Order, error) {
	if err := validateNewOrder(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[User](ctx, userId); err != nil {
		return nil, utils.NewNotFoundError("user not found")
	}
	if input.ShippingAddressId != nil {
		if err := utils.ValidateResourceId[ShippingAddress](ctx, *input.ShippingAddressId); err != nil {
			return nil, utils.NewNotFoundError("shipping address not found")
		}
	}

	seqNo, err := utils.GetSequence[Order](ctx)
	if err != nil {
		return nil, utils.NewInternalError("failed to allocate order number", err)
	}
	orderNumber := fmt.Sprintf("%s%06d", Order{}.SequencePrefix(), seqNo)

	shippingMethod := input.ShippingMethod
	if shippingMethod == "" {
		shippingMethod = ShippingMethodStandard
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	order := &Order{
		OrderNumber:       orderNumber,
		SequenceNo:        int(seqNo),
		UserId:            userId,
		ShippingAddressId: input.ShippingAddressId,
		ShippingMethod:    shippingMethod,
		PaymentMethod:     input.PaymentMethod,
		CurrentStatus:     OrderStatusProcessing,
		ShowInvoice:       utils.NewTrue(),
	}
	if err := tx.Omit("Items").Create(order).Error; err != nil {
		tx.Rollback()
		return nil, utils.NewInternalError("failed to create order", err)
	}

	for _, line := range input.Items {
		item, err := reserveOrderLineTx(tx, order, line, actorId, allowPriceOverride)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		order.Items = append(order.Items, *item)
	}

	if err := saveOrderTotals(tx, order); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, utils.NewInternalError("failed to commit order", err)
	}

	enqueueOrderNotification(ctx, order, "order.created")
	return order, nil
}

// reserveOrderLineTx records the SALE exit for one new line and persists the
// line with cost and price captured at reservation time.
func reserveOrderLineTx(tx *gorm.DB, order *Order, line NewOrderItem, actorId int, allowPriceOverride bool) (*OrderItem, error) {
	variant, err := lockProductVariant(tx, line.VariantId)
	if err != nil {
		return nil, err
	}

	unitPrice := variant.SalesPrice
	if allowPriceOverride && line.UnitPrice != nil {
		unitPrice = *line.UnitPrice
	}
	unitCost := variant.AverageUnitCost

	_, err = createStockExitTx(tx, &NewStockExit{
		ProductVariantId: line.VariantId,
		Qty:              line.Qty,
		Reason:           StockReasonSale,
		Reference:        order.OrderNumber,
	}, actorId)
	if err != nil {
		return nil, err
	}

	item := &OrderItem{
		OrderId:   order.ID,
		VariantId: line.VariantId,
		Qty:       line.Qty,
		UnitCost:  unitCost,
		UnitPrice: unitPrice,
		Subtotal:  unitPrice.Mul(line.Qty),
		Gain:      unitPrice.Sub(unitCost).Mul(line.Qty),
	}
	if err := tx.Create(item).Error; err != nil {
		return nil, utils.NewInternalError("failed to create order item", err)
	}
	return item, nil
}

// CreateOrder places an order for the calling customer. Lines are priced at
// the variant's current sales price.
func CreateOrder(ctx context.Context, input *NewOrder, userId int) (*Order, error) {
	return createOrder(ctx, input, userId, userId, false)
}

// CreateOrderAsAdmin places an order on behalf of a customer and may
// override line prices.
func CreateOrderAsAdmin(ctx context.Context, input *NewOrder, forUserId int, actorId int) (*Order, error) {
	return createOrder(ctx, input, forUserId, actorId, true)
}

// UpdateOrder applies any combination of header changes, item mutations and
// a status transition in one transaction. The status transition runs last so
// cancellation or reservation side effects act on the final item set.
func UpdateOrder(ctx context.Context, orderId int, input *UpdateOrderInput, actorId int) (*Order, error) {
	if input.ShippingMethod != nil && !input.ShippingMethod.Valid() {
		return nil, utils.NewValidationError(fmt.Sprintf("unknown shipping method %q", *input.ShippingMethod))
	}
	if input.PaymentMethod != nil && !input.PaymentMethod.Valid() {
		return nil, utils.NewValidationError(fmt.Sprintf("unknown payment method %q", *input.PaymentMethod))
	}
	if input.NewStatus != nil && !input.NewStatus.Valid() {
		return nil, utils.NewValidationError(fmt.Sprintf("unknown order status %q", *input.NewStatus))
	}
	if input.ShippingAddressId != nil {
		if err := utils.ValidateResourceId[ShippingAddress](ctx, *input.ShippingAddressId); err != nil {
			return nil, utils.NewNotFoundError("shipping address not found")
		}
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	order, err := lockOrderWithItems(tx, orderId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if order.CurrentStatus.Terminal() {
		tx.Rollback()
		return nil, utils.NewValidationError(fmt.Sprintf("order in status %s cannot be modified", order.CurrentStatus))
	}

	headerUpdates := map[string]interface{}{}
	if input.ShippingMethod != nil {
		order.ShippingMethod = *input.ShippingMethod
		headerUpdates["shipping_method"] = *input.ShippingMethod
	}
	if input.PaymentMethod != nil {
		order.PaymentMethod = *input.PaymentMethod
		headerUpdates["payment_method"] = *input.PaymentMethod
	}
	if input.ShippingAddressId != nil {
		order.ShippingAddressId = input.ShippingAddressId
		headerUpdates["shipping_address_id"] = *input.ShippingAddressId
	}
	if input.ShowInvoice != nil {
		order.ShowInvoice = input.ShowInvoice
		headerUpdates["show_invoice"] = *input.ShowInvoice
	}
	if len(headerUpdates) > 0 {
		if err := tx.Model(&Order{}).Where("id = ?", order.ID).Updates(headerUpdates).Error; err != nil {
			tx.Rollback()
			return nil, utils.NewInternalError("failed to update order", err)
		}
	}

	for _, mutation := range input.Items {
		if err := applyOrderItemMutationTx(tx, order, mutation, actorId); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := saveOrderTotals(tx, order); err != nil {
		tx.Rollback()
		return nil, err
	}

	if input.NewStatus != nil {
		if err := applyStatusTransitionTx(tx, order, *input.NewStatus, actorId); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, utils.NewInternalError("failed to commit order update", err)
	}

	enqueueOrderNotification(ctx, order, "order.updated")
	return order, nil
}

// lockOrderWithItems loads the order FOR UPDATE together with its items.
func lockOrderWithItems(tx *gorm.DB, orderId int) (*Order, error) {
	var order Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderId).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.NewNotFoundError("order not found")
		}
		return nil, utils.NewInternalError("failed to load order", err)
	}
	if err := tx.Where("order_id = ?", orderId).Order("id ASC").Find(&order.Items).Error; err != nil {
		return nil, utils.NewInternalError("failed to load order items", err)
	}
	return &order, nil
}

// GetOrder loads one order with its items.
func GetOrder(ctx context.Context, id int) (*Order, error) {
	return utils.FetchModel[Order](ctx, id, "Items")
}

// GetOrdersForUser lists a customer's orders, newest first.
func GetOrdersForUser(ctx context.Context, userId int, limit int, offset int) ([]*Order, error) {
	db := config.GetDB()
	if limit <= 0 || limit > 100 {
		limit = config.SearchLimit
	}
	if offset < 0 {
		offset = 0
	}
	var orders []*Order
	err := db.WithContext(ctx).Preload("Items").
		Where("user_id = ?", userId).
		Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&orders).Error
	if err != nil {
		return nil, utils.NewInternalError("failed to load orders", err)
	}
	return orders, nil
}
