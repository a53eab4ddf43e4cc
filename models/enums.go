package models

import (
	"fmt"

	"github.com/mapletrade/store_backend/utils"
)

type StockMovementKind string

const (
	StockMovementKindEntry StockMovementKind = "ENTRY"
	StockMovementKindExit  StockMovementKind = "EXIT"
)

type StockMovementReason string

const (
	StockReasonPurchase            StockMovementReason = "PURCHASE"
	StockReasonSale                StockMovementReason = "SALE"
	StockReasonReturn              StockMovementReason = "RETURN"
	StockReasonDamage              StockMovementReason = "DAMAGE"
	StockReasonTheft               StockMovementReason = "THEFT"
	StockReasonInventoryAdjustment StockMovementReason = "INVENTORY_ADJUSTMENT"
	StockReasonInitialStock        StockMovementReason = "INITIAL_STOCK"
)

// stockReasonPolicy drives the ledger's behavior per reason code, so the
// create paths consult one table instead of branching per reason.
type stockReasonPolicy struct {
	AllowEntry         bool
	AllowExit          bool
	RequiresUnitCost   bool // entries only
	AffectsAverageCost bool // entries only
	RecordsExpense     bool // exits only
}

var stockReasonPolicies = map[StockMovementReason]stockReasonPolicy{
	StockReasonPurchase:            {AllowEntry: true, RequiresUnitCost: true, AffectsAverageCost: true},
	StockReasonInitialStock:        {AllowEntry: true, RequiresUnitCost: true, AffectsAverageCost: true},
	StockReasonReturn:              {AllowEntry: true},
	StockReasonInventoryAdjustment: {AllowEntry: true, AllowExit: true},
	StockReasonSale:                {AllowExit: true},
	StockReasonDamage:              {AllowExit: true, RecordsExpense: true},
	StockReasonTheft:               {AllowExit: true, RecordsExpense: true},
}

func reasonPolicyFor(reason StockMovementReason) (stockReasonPolicy, error) {
	policy, ok := stockReasonPolicies[reason]
	if !ok {
		return stockReasonPolicy{}, utils.NewValidationError(fmt.Sprintf("unknown stock movement reason %q", reason))
	}
	return policy, nil
}

type OrderStatus string

const (
	OrderStatusProcessing     OrderStatus = "Processing"
	OrderStatusPendingPayment OrderStatus = "PendingPayment"
	OrderStatusOnHold         OrderStatus = "OnHold"
	OrderStatusCompleted      OrderStatus = "Completed"
	OrderStatusCancelled      OrderStatus = "Cancelled"
	OrderStatusRefunded       OrderStatus = "Refunded"
)

// orderStatusTransitions is the full transition graph. Pairs outside this
// table are rejected, as is requesting the current status again.
var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusProcessing:     {OrderStatusPendingPayment, OrderStatusOnHold, OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusPendingPayment: {OrderStatusOnHold, OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusOnHold:         {OrderStatusPendingPayment, OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusCompleted:      {OrderStatusRefunded},
	OrderStatusCancelled:      {},
	OrderStatusRefunded:       {},
}

func (s OrderStatus) Valid() bool {
	_, ok := orderStatusTransitions[s]
	return ok
}

// Terminal reports whether no further transition leaves s.
func (s OrderStatus) Terminal() bool {
	return s.Valid() && len(orderStatusTransitions[s]) == 0
}

// CanTransitionOrderStatus reports whether from -> to is in the graph.
func CanTransitionOrderStatus(from, to OrderStatus) bool {
	for _, allowed := range orderStatusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCard           PaymentMethod = "Card"
	PaymentMethodBankTransfer   PaymentMethod = "BankTransfer"
	PaymentMethodCashOnDelivery PaymentMethod = "CashOnDelivery"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodBankTransfer, PaymentMethodCashOnDelivery:
		return true
	}
	return false
}

type ShippingMethod string

const (
	ShippingMethodStandard ShippingMethod = "Standard"
	ShippingMethodExpress  ShippingMethod = "Express"
	ShippingMethodPickup   ShippingMethod = "Pickup"
)

func (m ShippingMethod) Valid() bool {
	switch m {
	case ShippingMethodStandard, ShippingMethodExpress, ShippingMethodPickup:
		return true
	}
	return false
}

// OrderItemAction identifies one line mutation inside an order update.
type OrderItemAction string

const (
	OrderItemActionAdd          OrderItemAction = "add"
	OrderItemActionIncrease     OrderItemAction = "increase"
	OrderItemActionDecrease     OrderItemAction = "decrease"
	OrderItemActionSet          OrderItemAction = "set"
	OrderItemActionRemove       OrderItemAction = "remove"
	OrderItemActionUpdatePrices OrderItemAction = "update_prices"
	OrderItemActionUpdateAll    OrderItemAction = "update_all"
)

func (a OrderItemAction) Valid() bool {
	switch a {
	case OrderItemActionAdd, OrderItemActionIncrease, OrderItemActionDecrease,
		OrderItemActionSet, OrderItemActionRemove, OrderItemActionUpdatePrices,
		OrderItemActionUpdateAll:
		return true
	}
	return false
}
