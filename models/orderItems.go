package models

import (
	"fmt"

	"github.com/mapletrade/store_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderItemMutation is one requested change to an order's item list. Which
// fields are required depends on the action; unused fields are ignored.
type OrderItemMutation struct {
	Action    OrderItemAction  `json:"action" binding:"required"`
	VariantId int              `json:"variant_id" binding:"required"`
	Qty       *decimal.Decimal `json:"qty"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
	UnitCost  *decimal.Decimal `json:"unit_cost"`
	Subtotal  *decimal.Decimal `json:"subtotal"`
	Gain      *decimal.Decimal `json:"gain"`
}

// computeItemStockDelta resolves a quantity action against the current line
// quantity. delta is the extra stock to reserve (positive) or return
// (negative). Lines never reach zero through quantity actions; remove is the
// only way off the order.
func computeItemStockDelta(action OrderItemAction, currentQty, qty decimal.Decimal) (newQty, delta decimal.Decimal, err error) {
	if !utils.IsPositiveWholeQty(qty) {
		return decimal.Decimal{}, decimal.Decimal{}, utils.NewValidationError("qty must be a positive whole number")
	}
	switch action {
	case OrderItemActionIncrease:
		newQty = currentQty.Add(qty)
		delta = qty
	case OrderItemActionDecrease:
		newQty = currentQty.Sub(qty)
		if !newQty.IsPositive() {
			return decimal.Decimal{}, decimal.Decimal{}, utils.NewValidationError(
				"decrease would drop qty to zero or below; use remove instead")
		}
		delta = qty.Neg()
	case OrderItemActionSet:
		newQty = qty
		delta = qty.Sub(currentQty)
	default:
		return decimal.Decimal{}, decimal.Decimal{}, utils.NewValidationError(
			fmt.Sprintf("action %q does not change quantity", action))
	}
	return newQty, delta, nil
}

func findOrderItem(order *Order, variantId int) (int, *OrderItem) {
	for i := range order.Items {
		if order.Items[i].VariantId == variantId {
			return i, &order.Items[i]
		}
	}
	return -1, nil
}

// applyOrderItemMutationTx applies one mutation inside the caller's
// transaction and keeps order.Items in sync for the totals pass.
//
// While the order is PendingPayment its stock is already released, so ledger
// writes are skipped entirely; only the rows change. Re-entry to a reserving
// status reconciles the ledger against the final item set.
func applyOrderItemMutationTx(tx *gorm.DB, order *Order, mutation OrderItemMutation, actorId int) error {
	if !mutation.Action.Valid() {
		return utils.NewValidationError(fmt.Sprintf("unknown item action %q", mutation.Action))
	}
	skipLedger := order.CurrentStatus == OrderStatusPendingPayment
	idx, item := findOrderItem(order, mutation.VariantId)

	switch mutation.Action {
	case OrderItemActionAdd:
		if item != nil {
			return utils.NewValidationError(fmt.Sprintf(
				"variant %d is already on the order; use increase or set", mutation.VariantId))
		}
		if mutation.Qty == nil {
			return utils.NewValidationError("qty is required for add")
		}
		if !utils.IsPositiveWholeQty(*mutation.Qty) {
			return utils.NewValidationError("qty must be a positive whole number")
		}

		variant, err := lockProductVariant(tx, mutation.VariantId)
		if err != nil {
			return err
		}
		// New lines always capture the variant's current price and cost;
		// overriding them afterwards is what update_prices is for.
		unitPrice := variant.SalesPrice
		unitCost := variant.AverageUnitCost

		if !skipLedger {
			_, err := createStockExitTx(tx, &NewStockExit{
				ProductVariantId: mutation.VariantId,
				Qty:              *mutation.Qty,
				Reason:           StockReasonSale,
				Reference:        order.OrderNumber,
			}, actorId)
			if err != nil {
				return err
			}
		}

		newItem := OrderItem{
			OrderId:   order.ID,
			VariantId: mutation.VariantId,
			Qty:       *mutation.Qty,
			UnitCost:  unitCost,
			UnitPrice: unitPrice,
			Subtotal:  unitPrice.Mul(*mutation.Qty),
			Gain:      unitPrice.Sub(unitCost).Mul(*mutation.Qty),
		}
		if err := tx.Create(&newItem).Error; err != nil {
			return utils.NewInternalError("failed to add order item", err)
		}
		order.Items = append(order.Items, newItem)
		return nil

	case OrderItemActionRemove:
		if item == nil {
			return utils.NewValidationError(fmt.Sprintf("variant %d is not on the order", mutation.VariantId))
		}
		if !skipLedger {
			capturedCost := item.UnitCost
			_, err := createStockEntryTx(tx, &NewStockEntry{
				ProductVariantId: item.VariantId,
				Qty:              item.Qty,
				Reason:           StockReasonReturn,
				UnitCost:         &capturedCost,
				Reference:        order.OrderNumber,
			}, actorId)
			if err != nil {
				return err
			}
		}
		if err := tx.Delete(&OrderItem{}, item.ID).Error; err != nil {
			return utils.NewInternalError("failed to remove order item", err)
		}
		order.Items = append(order.Items[:idx], order.Items[idx+1:]...)
		return nil

	case OrderItemActionIncrease, OrderItemActionDecrease, OrderItemActionSet:
		if item == nil {
			return utils.NewValidationError(fmt.Sprintf("variant %d is not on the order", mutation.VariantId))
		}
		if mutation.Qty == nil {
			return utils.NewValidationError(fmt.Sprintf("qty is required for %s", mutation.Action))
		}
		newQty, delta, err := computeItemStockDelta(mutation.Action, item.Qty, *mutation.Qty)
		if err != nil {
			return err
		}
		if !skipLedger && !delta.IsZero() {
			if err := applyItemLedgerDeltaTx(tx, order, item, delta, actorId); err != nil {
				return err
			}
		}
		item.Qty = newQty
		item.Subtotal = item.UnitPrice.Mul(item.Qty)
		item.Gain = item.UnitPrice.Sub(item.UnitCost).Mul(item.Qty)
		return saveOrderItem(tx, item)

	case OrderItemActionUpdatePrices:
		if item == nil {
			return utils.NewValidationError(fmt.Sprintf("variant %d is not on the order", mutation.VariantId))
		}
		if mutation.UnitPrice == nil && mutation.UnitCost == nil {
			return utils.NewValidationError("update_prices requires unit_price or unit_cost")
		}
		if mutation.UnitPrice != nil {
			item.UnitPrice = *mutation.UnitPrice
		}
		if mutation.UnitCost != nil {
			item.UnitCost = *mutation.UnitCost
		}
		item.Subtotal = item.UnitPrice.Mul(item.Qty)
		item.Gain = item.UnitPrice.Sub(item.UnitCost).Mul(item.Qty)
		return saveOrderItem(tx, item)

	case OrderItemActionUpdateAll:
		if item == nil {
			return utils.NewValidationError(fmt.Sprintf("variant %d is not on the order", mutation.VariantId))
		}
		if mutation.Qty != nil {
			newQty, delta, err := computeItemStockDelta(OrderItemActionSet, item.Qty, *mutation.Qty)
			if err != nil {
				return err
			}
			if !skipLedger && !delta.IsZero() {
				if err := applyItemLedgerDeltaTx(tx, order, item, delta, actorId); err != nil {
					return err
				}
			}
			item.Qty = newQty
		}
		if mutation.UnitPrice != nil {
			item.UnitPrice = *mutation.UnitPrice
		}
		if mutation.UnitCost != nil {
			item.UnitCost = *mutation.UnitCost
		}
		item.Subtotal = item.UnitPrice.Mul(item.Qty)
		item.Gain = item.UnitPrice.Sub(item.UnitCost).Mul(item.Qty)
		// update_all may pin the derived amounts, for imports and manual
		// corrections.
		if mutation.Subtotal != nil {
			item.Subtotal = *mutation.Subtotal
		}
		if mutation.Gain != nil {
			item.Gain = *mutation.Gain
		}
		return saveOrderItem(tx, item)
	}

	return utils.NewValidationError(fmt.Sprintf("unknown item action %q", mutation.Action))
}

// applyItemLedgerDeltaTx reconciles the ledger with a quantity change:
// positive delta reserves more stock, negative delta returns it at the
// line's captured cost.
func applyItemLedgerDeltaTx(tx *gorm.DB, order *Order, item *OrderItem, delta decimal.Decimal, actorId int) error {
	if delta.IsPositive() {
		_, err := createStockExitTx(tx, &NewStockExit{
			ProductVariantId: item.VariantId,
			Qty:              delta,
			Reason:           StockReasonSale,
			Reference:        order.OrderNumber,
		}, actorId)
		return err
	}
	capturedCost := item.UnitCost
	_, err := createStockEntryTx(tx, &NewStockEntry{
		ProductVariantId: item.VariantId,
		Qty:              delta.Neg(),
		Reason:           StockReasonReturn,
		UnitCost:         &capturedCost,
		Reference:        order.OrderNumber,
	}, actorId)
	return err
}

func saveOrderItem(tx *gorm.DB, item *OrderItem) error {
	err := tx.Model(&OrderItem{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
		"qty":        item.Qty,
		"unit_cost":  item.UnitCost,
		"unit_price": item.UnitPrice,
		"subtotal":   item.Subtotal,
		"gain":       item.Gain,
	}).Error
	if err != nil {
		return utils.NewInternalError("failed to update order item", err)
	}
	return nil
}
