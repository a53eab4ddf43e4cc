package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mapletrade/store_backend/config"
	"github.com/mapletrade/store_backend/utils"
)

// enqueueOrderNotification publishes an order event after commit. Best
// effort: failures are logged and never surface to the API caller.
func enqueueOrderNotification(ctx context.Context, order *Order, action string) {
	if !config.OrderNotificationsEnabled() {
		return
	}
	logger := config.GetLogger()

	snapshot, err := json.Marshal(order)
	if err != nil {
		config.LogError(logger, "notification", "enqueueOrderNotification",
			"failed to marshal order snapshot",
			map[string]interface{}{"order_id": order.ID, "action": action}, err)
		snapshot = nil
	}

	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	msg := config.PubSubMessage{
		OrderId:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserId:        order.UserId,
		Action:        action,
		OccurredAt:    time.Now().UTC(),
		Snapshot:      snapshot,
		CorrelationId: correlationId,
	}

	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := config.PublishOrderEvent(pubCtx, msg); err != nil {
			config.LogError(logger, "notification", "enqueueOrderNotification",
				"failed to publish order event",
				map[string]interface{}{"order_id": order.ID, "action": action}, err)
		}
	}()
}
