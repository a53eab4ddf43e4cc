package config

import (
	"os"
	"strings"
)

// AutoLossExpenseEnabled controls automatic expense recording for
// damage/theft stock exits. Defaults to on.
//
// Set via env:
// - AUTO_LOSS_EXPENSE=false
func AutoLossExpenseEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("AUTO_LOSS_EXPENSE")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// OrderNotificationsEnabled gates the post-commit Pub/Sub publish of order
// snapshots. Off when no topic is configured.
func OrderNotificationsEnabled() bool {
	return strings.TrimSpace(os.Getenv("ORDER_EVENTS_TOPIC")) != ""
}
