package models

import "testing"

var allOrderStatuses = []OrderStatus{
	OrderStatusProcessing,
	OrderStatusPendingPayment,
	OrderStatusOnHold,
	OrderStatusCompleted,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

func TestOrderStatusTransitionTable(t *testing.T) {
	allowed := map[OrderStatus]map[OrderStatus]bool{
		OrderStatusProcessing: {
			OrderStatusPendingPayment: true,
			OrderStatusOnHold:         true,
			OrderStatusCompleted:      true,
			OrderStatusCancelled:      true,
		},
		OrderStatusPendingPayment: {
			OrderStatusOnHold:    true,
			OrderStatusCompleted: true,
			OrderStatusCancelled: true,
		},
		OrderStatusOnHold: {
			OrderStatusPendingPayment: true,
			OrderStatusCompleted:      true,
			OrderStatusCancelled:      true,
		},
		OrderStatusCompleted: {
			OrderStatusRefunded: true,
		},
		OrderStatusCancelled: {},
		OrderStatusRefunded:  {},
	}

	for _, from := range allOrderStatuses {
		for _, to := range allOrderStatuses {
			want := allowed[from][to]
			got := CanTransitionOrderStatus(from, to)
			if got != want {
				t.Errorf("%s -> %s: expected %v, got %v", from, to, want, got)
			}
		}
	}
}

func TestSameStatusIsNeverATransition(t *testing.T) {
	for _, s := range allOrderStatuses {
		if CanTransitionOrderStatus(s, s) {
			t.Errorf("%s -> %s must not be allowed", s, s)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range allOrderStatuses {
		want := s == OrderStatusCancelled || s == OrderStatusRefunded
		if s.Terminal() != want {
			t.Errorf("%s: Terminal() = %v, expected %v", s, s.Terminal(), want)
		}
	}
}

func TestUnknownStatusInvalid(t *testing.T) {
	if OrderStatus("Shipped").Valid() {
		t.Error("unknown status must not validate")
	}
	if CanTransitionOrderStatus(OrderStatus("Shipped"), OrderStatusCompleted) {
		t.Error("unknown status must not transition")
	}
}
