package models

import (
	"context"
	"fmt"

	"github.com/mapletrade/store_backend/config"
	"github.com/mapletrade/store_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockShortfall reports one variant that cannot cover a requested
// reservation.
type StockShortfall struct {
	VariantId    int             `json:"variant_id"`
	ProductName  string          `json:"product_name"`
	RequiredQty  decimal.Decimal `json:"required_qty"`
	AvailableQty decimal.Decimal `json:"available_qty"`
}

// StockConflictError reports every shortfall at once, so the caller can fix
// the whole order instead of discovering problems one item at a time.
type StockConflictError struct {
	OrderId    int              `json:"order_id"`
	Shortfalls []StockShortfall `json:"shortfalls"`
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("insufficient stock for %d item(s) on order %d", len(e.Shortfalls), e.OrderId)
}

// findStockShortfalls checks every line of the wanted reservation against
// the variants' current stock. Pure over the supplied variant map.
func findStockShortfalls(items []OrderItem, variantsById map[int]*ProductVariant) []StockShortfall {
	var shortfalls []StockShortfall
	for _, item := range items {
		variant, ok := variantsById[item.VariantId]
		if !ok {
			continue
		}
		if item.Qty.GreaterThan(variant.StockQty) {
			shortfalls = append(shortfalls, StockShortfall{
				VariantId:    variant.ID,
				ProductName:  variant.Name,
				RequiredQty:  item.Qty,
				AvailableQty: variant.StockQty,
			})
		}
	}
	return shortfalls
}

// applyStatusTransitionTx moves a locked order to newStatus, running the
// stock side effects the edge requires. The caller owns the transaction.
func applyStatusTransitionTx(tx *gorm.DB, order *Order, newStatus OrderStatus, actorId int) error {
	if newStatus == order.CurrentStatus {
		return utils.NewValidationError(fmt.Sprintf("order is already %s", newStatus))
	}
	if !CanTransitionOrderStatus(order.CurrentStatus, newStatus) {
		return utils.NewValidationError(fmt.Sprintf(
			"cannot transition order from %s to %s", order.CurrentStatus, newStatus))
	}

	previousStatus := order.CurrentStatus

	switch newStatus {
	case OrderStatusCancelled:
		if err := cancelOrderTx(tx, order, actorId); err != nil {
			return err
		}
	case OrderStatusPendingPayment:
		if err := releaseOrderStockTx(tx, order, actorId); err != nil {
			return err
		}
	case OrderStatusOnHold:
		// Putting a parked order on hold takes its stock back. Every line is
		// checked first so the failure is one complete conflict report. No
		// other transition touches the ledger.
		if previousStatus == OrderStatusPendingPayment {
			if err := reserveOrderStockTx(tx, order, actorId); err != nil {
				return err
			}
		}
	}

	order.CurrentStatus = newStatus
	err := tx.Model(&Order{}).Where("id = ?", order.ID).
		Update("current_status", newStatus).Error
	if err != nil {
		return utils.NewInternalError("failed to update order status", err)
	}
	return nil
}

// cancelOrderTx returns every line's stock at its captured cost and zeroes
// the monetary totals. An order cancelled out of PendingPayment holds no
// stock, so nothing is returned for it.
func cancelOrderTx(tx *gorm.DB, order *Order, actorId int) error {
	if order.CurrentStatus != OrderStatusPendingPayment {
		for i := range order.Items {
			item := &order.Items[i]
			capturedCost := item.UnitCost
			_, err := createStockEntryTx(tx, &NewStockEntry{
				ProductVariantId: item.VariantId,
				Qty:              item.Qty,
				Reason:           StockReasonReturn,
				UnitCost:         &capturedCost,
				Reference:        order.OrderNumber,
				Notes:            "order cancelled",
			}, actorId)
			if err != nil {
				return err
			}
		}
	}

	zero := decimal.Zero
	for i := range order.Items {
		order.Items[i].Gain = zero
	}
	if len(order.Items) > 0 {
		err := tx.Model(&OrderItem{}).Where("order_id = ?", order.ID).
			Update("gain", zero).Error
		if err != nil {
			return utils.NewInternalError("failed to zero item gains", err)
		}
	}

	order.OrderSubtotal = zero
	order.PaymentSurcharge = zero
	order.OrderTotalAmount = zero
	order.TotalGain = zero
	err := tx.Model(&Order{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
		"order_subtotal":     zero,
		"payment_surcharge":  zero,
		"order_total_amount": zero,
		"total_gain":         zero,
	}).Error
	if err != nil {
		return utils.NewInternalError("failed to zero order totals", err)
	}
	return nil
}

// releaseOrderStockTx returns every line's stock at its captured cost when
// the order parks in PendingPayment.
func releaseOrderStockTx(tx *gorm.DB, order *Order, actorId int) error {
	for i := range order.Items {
		item := &order.Items[i]
		capturedCost := item.UnitCost
		_, err := createStockEntryTx(tx, &NewStockEntry{
			ProductVariantId: item.VariantId,
			Qty:              item.Qty,
			Reason:           StockReasonReturn,
			UnitCost:         &capturedCost,
			Reference:        order.OrderNumber,
			Notes:            "awaiting payment",
		}, actorId)
		if err != nil {
			return err
		}
	}
	return nil
}

// reserveOrderStockTx re-takes stock for every line. All variants are locked
// and checked before the first exit, so a failure reports every shortfall
// and writes nothing.
func reserveOrderStockTx(tx *gorm.DB, order *Order, actorId int) error {
	if len(order.Items) == 0 {
		return nil
	}
	ids := make([]int, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.VariantId)
	}
	variants, err := lockProductVariants(tx, ids)
	if err != nil {
		return err
	}

	if shortfalls := findStockShortfalls(order.Items, variants); len(shortfalls) > 0 {
		return &StockConflictError{OrderId: order.ID, Shortfalls: shortfalls}
	}

	for _, item := range order.Items {
		_, err := createStockExitTx(tx, &NewStockExit{
			ProductVariantId: item.VariantId,
			Qty:              item.Qty,
			Reason:           StockReasonSale,
			Reference:        order.OrderNumber,
		}, actorId)
		if err != nil {
			return err
		}
	}
	return nil
}

// CheckOrderStockAvailability previews whether an order parked in
// PendingPayment could re-reserve its stock right now. Read-only.
func CheckOrderStockAvailability(ctx context.Context, orderId int) ([]StockShortfall, error) {
	order, err := GetOrder(ctx, orderId)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	variantsById := make(map[int]*ProductVariant, len(order.Items))
	for _, item := range order.Items {
		var variant ProductVariant
		if err := db.WithContext(ctx).First(&variant, item.VariantId).Error; err != nil {
			return nil, utils.NewInternalError("failed to load variant", err)
		}
		v := variant
		variantsById[item.VariantId] = &v
	}
	return findStockShortfalls(order.Items, variantsById), nil
}

// UpdateOrderStatus transitions one order in its own transaction.
func UpdateOrderStatus(ctx context.Context, orderId int, newStatus OrderStatus, actorId int) (*Order, error) {
	if !newStatus.Valid() {
		return nil, utils.NewValidationError(fmt.Sprintf("unknown order status %q", newStatus))
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	order, err := lockOrderWithItems(tx, orderId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := applyStatusTransitionTx(tx, order, newStatus, actorId); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, utils.NewInternalError("failed to commit status change", err)
	}

	enqueueOrderNotification(ctx, order, "order.status_changed")
	return order, nil
}

// BulkStatusResult reports one order's outcome in a bulk transition.
type BulkStatusResult struct {
	OrderId int    `json:"order_id"`
	Ok      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

type BulkStatusReport struct {
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Results   []BulkStatusResult `json:"results"`
}

// BulkUpdateOrderStatus moves many orders to newStatus, one transaction per
// order. A failing order never blocks the rest.
func BulkUpdateOrderStatus(ctx context.Context, orderIds []int, newStatus OrderStatus, actorId int) *BulkStatusReport {
	report := &BulkStatusReport{
		Results: make([]BulkStatusResult, 0, len(orderIds)),
	}
	for _, id := range orderIds {
		_, err := UpdateOrderStatus(ctx, id, newStatus, actorId)
		result := BulkStatusResult{OrderId: id, Ok: err == nil}
		if err != nil {
			result.Error = err.Error()
			report.Failed++
		} else {
			report.Succeeded++
		}
		report.Results = append(report.Results, result)
	}
	return report
}
