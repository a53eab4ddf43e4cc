package models_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/mapletrade/store_backend/config"
	"github.com/mapletrade/store_backend/models"
	"github.com/mapletrade/store_backend/utils"
	"github.com/shopspring/decimal"
)

// setupIntegrationStore starts throwaway Redis and MySQL containers, wires
// the env, connects and migrates. Skips unless INTEGRATION_TESTS is set.
func setupIntegrationStore(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "mapletrade_test")
	t.Setenv("EXCHANGE_RATE_API_URL", "")
	t.Setenv("EXCHANGE_RATE_FALLBACK", "1")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	if err := models.MigrateTable(); err != nil {
		t.Fatalf("MigrateTable: %v", err)
	}
	return context.Background()
}

// Damage and theft exits write a loss expense alongside the movement; an
// expense write failure is swallowed and the movement still commits.
func TestLossExpenseRecording(t *testing.T) {
	ctx := setupIntegrationStore(t)
	db := config.GetDB()

	user, err := models.CreateUser(ctx, &models.NewUser{
		Name:     "Stock Clerk",
		Email:    "clerk@test.local",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	ctx = utils.SetUserIdInContext(ctx, user.ID)

	product, err := models.CreateProduct(ctx, &models.NewProduct{Name: "Glass"})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	openingQty := decimal.NewFromInt(10)
	openingCost := decimal.NewFromInt(4)
	variant, err := models.CreateProductVariant(ctx, &models.NewProductVariant{
		ProductId:       product.ID,
		Name:            "Wine Glass",
		Sku:             "GLS-WIN",
		SalesPrice:      decimal.NewFromInt(15),
		InitialStockQty: &openingQty,
		InitialUnitCost: &openingCost,
	}, user.ID)
	if err != nil {
		t.Fatalf("CreateProductVariant: %v", err)
	}

	// Damage 3 units at avg cost 4: expense of 12 USD at the fallback rate.
	damage, err := models.CreateStockExit(ctx, &models.NewStockExit{
		ProductVariantId: variant.ID,
		Qty:              decimal.NewFromInt(3),
		Reason:           models.StockReasonDamage,
		Notes:            "dropped crate",
	}, user.ID)
	if err != nil {
		t.Fatalf("CreateStockExit damage: %v", err)
	}

	var expense models.Expense
	if err := db.Where("stock_movement_id = ?", damage.ID).First(&expense).Error; err != nil {
		t.Fatalf("expected expense row for damage movement: %v", err)
	}
	if expense.Reason != models.StockReasonDamage {
		t.Errorf("expense reason: expected DAMAGE, got %s", expense.Reason)
	}
	if !expense.AmountUsd.Equal(decimal.NewFromInt(12)) {
		t.Errorf("expense amount: expected 12, got %s", expense.AmountUsd)
	}
	if !expense.ExchangeRate.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expense rate: expected fallback 1, got %s", expense.ExchangeRate)
	}
	if !expense.AmountLocal.Equal(decimal.NewFromInt(12)) {
		t.Errorf("expense local amount: expected 12, got %s", expense.AmountLocal)
	}
	if !strings.Contains(expense.Description, "DAMAGE loss") ||
		!strings.Contains(expense.Description, "Wine Glass") {
		t.Errorf("expense description: got %q", expense.Description)
	}

	// Break the expense table. The theft exit must still commit its movement.
	if err := db.Exec("RENAME TABLE expenses TO expenses_paused").Error; err != nil {
		t.Fatalf("rename expenses table: %v", err)
	}
	theft, err := models.CreateStockExit(ctx, &models.NewStockExit{
		ProductVariantId: variant.ID,
		Qty:              decimal.NewFromInt(2),
		Reason:           models.StockReasonTheft,
	}, user.ID)
	if err != nil {
		t.Fatalf("theft exit must survive a failed expense write: %v", err)
	}
	if err := db.Exec("RENAME TABLE expenses_paused TO expenses").Error; err != nil {
		t.Fatalf("restore expenses table: %v", err)
	}

	if got := mustGetVariant(t, ctx, variant.ID).StockQty; !got.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("stock after damage and theft: expected 5, got %s", got)
	}
	var count int64
	if err := db.Model(&models.Expense{}).Where("stock_movement_id = ?", theft.ID).Count(&count).Error; err != nil {
		t.Fatalf("count theft expenses: %v", err)
	}
	if count != 0 {
		t.Fatalf("no expense row may exist for the theft movement, found %d", count)
	}

	expenses, err := models.GetExpenses(ctx, 10, 0)
	if err != nil {
		t.Fatalf("GetExpenses: %v", err)
	}
	if len(expenses) != 1 {
		t.Fatalf("expected exactly the damage expense, got %d rows", len(expenses))
	}
}

// Bulk status changes run one transaction per order: a terminal order in the
// batch fails alone while the rest transition and restock.
func TestBulkStatusFailureIsolation(t *testing.T) {
	ctx := setupIntegrationStore(t)

	user, err := models.CreateUser(ctx, &models.NewUser{
		Name:     "Ops Admin",
		Email:    "ops@test.local",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	ctx = utils.SetUserIdInContext(ctx, user.ID)

	product, err := models.CreateProduct(ctx, &models.NewProduct{Name: "Lamp"})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	openingQty := decimal.NewFromInt(10)
	openingCost := decimal.NewFromInt(5)
	variant, err := models.CreateProductVariant(ctx, &models.NewProductVariant{
		ProductId:       product.ID,
		Name:            "Desk Lamp",
		Sku:             "LMP-DSK",
		SalesPrice:      decimal.NewFromInt(100),
		InitialStockQty: &openingQty,
		InitialUnitCost: &openingCost,
	}, user.ID)
	if err != nil {
		t.Fatalf("CreateProductVariant: %v", err)
	}

	newOrder := func() *models.Order {
		t.Helper()
		order, err := models.CreateOrder(ctx, &models.NewOrder{
			PaymentMethod: models.PaymentMethodCard,
			Items: []models.NewOrderItem{
				{VariantId: variant.ID, Qty: decimal.NewFromInt(1)},
			},
		}, user.ID)
		if err != nil {
			t.Fatalf("CreateOrder: %v", err)
		}
		return order
	}

	first := newOrder()
	second := newOrder()
	third := newOrder()
	if got := mustGetVariant(t, ctx, variant.ID).StockQty; !got.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("stock after three orders: expected 7, got %s", got)
	}

	// Drive the third order terminal. Completion and refund leave the ledger
	// alone.
	for _, status := range []models.OrderStatus{models.OrderStatusCompleted, models.OrderStatusRefunded} {
		if _, err := models.UpdateOrderStatus(ctx, third.ID, status, user.ID); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}
	if got := mustGetVariant(t, ctx, variant.ID).StockQty; !got.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("completion and refund must not touch stock: expected 7, got %s", got)
	}

	report := models.BulkUpdateOrderStatus(ctx,
		[]int{first.ID, second.ID, third.ID}, models.OrderStatusCancelled, user.ID)
	if report.Succeeded != 2 || report.Failed != 1 {
		t.Fatalf("expected 2 succeeded / 1 failed, got %d / %d", report.Succeeded, report.Failed)
	}
	if len(report.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(report.Results))
	}
	for _, result := range report.Results {
		if result.OrderId == third.ID {
			if result.Ok {
				t.Errorf("terminal order %d must fail", third.ID)
			}
			if !strings.Contains(result.Error, "cannot transition") {
				t.Errorf("terminal order error: got %q", result.Error)
			}
		} else if !result.Ok {
			t.Errorf("order %d must cancel despite the terminal order: %s", result.OrderId, result.Error)
		}
	}

	// The two cancellations return their units; the refunded order is
	// untouched.
	if got := mustGetVariant(t, ctx, variant.ID).StockQty; !got.Equal(decimal.NewFromInt(9)) {
		t.Fatalf("stock after bulk cancel: expected 9, got %s", got)
	}
	for _, id := range []int{first.ID, second.ID} {
		order, err := models.GetOrder(ctx, id)
		if err != nil {
			t.Fatalf("GetOrder: %v", err)
		}
		if order.CurrentStatus != models.OrderStatusCancelled {
			t.Errorf("order %d: expected Cancelled, got %s", id, order.CurrentStatus)
		}
	}
	untouched, err := models.GetOrder(ctx, third.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if untouched.CurrentStatus != models.OrderStatusRefunded {
		t.Fatalf("terminal order must stay Refunded, got %s", untouched.CurrentStatus)
	}

	// Completing a parked order does not re-reserve: its stock stays in the
	// pool once released.
	parked := newOrder()
	if got := mustGetVariant(t, ctx, variant.ID).StockQty; !got.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("stock after fourth order: expected 8, got %s", got)
	}
	if _, err := models.UpdateOrderStatus(ctx, parked.ID, models.OrderStatusPendingPayment, user.ID); err != nil {
		t.Fatalf("transition to PendingPayment: %v", err)
	}
	if _, err := models.UpdateOrderStatus(ctx, parked.ID, models.OrderStatusCompleted, user.ID); err != nil {
		t.Fatalf("transition to Completed: %v", err)
	}
	if got := mustGetVariant(t, ctx, variant.ID).StockQty; !got.Equal(decimal.NewFromInt(9)) {
		t.Fatalf("completing a parked order must not touch stock: expected 9, got %s", got)
	}
}

// Adding a line to an existing order always captures the variant's current
// price; a unit price in the payload is ignored.
func TestAddItemCapturesCurrentPrice(t *testing.T) {
	ctx := setupIntegrationStore(t)

	user, err := models.CreateUser(ctx, &models.NewUser{
		Name:     "Ops Admin",
		Email:    "ops2@test.local",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	ctx = utils.SetUserIdInContext(ctx, user.ID)

	product, err := models.CreateProduct(ctx, &models.NewProduct{Name: "Chair"})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	makeVariant := func(name, sku string, price int64) *models.ProductVariant {
		t.Helper()
		qty := decimal.NewFromInt(5)
		cost := decimal.NewFromInt(20)
		v, err := models.CreateProductVariant(ctx, &models.NewProductVariant{
			ProductId:       product.ID,
			Name:            name,
			Sku:             sku,
			SalesPrice:      decimal.NewFromInt(price),
			InitialStockQty: &qty,
			InitialUnitCost: &cost,
		}, user.ID)
		if err != nil {
			t.Fatalf("CreateProductVariant: %v", err)
		}
		return v
	}
	oak := makeVariant("Oak Chair", "CHR-OAK", 100)
	pine := makeVariant("Pine Chair", "CHR-PIN", 50)

	order, err := models.CreateOrder(ctx, &models.NewOrder{
		PaymentMethod: models.PaymentMethodCard,
		Items: []models.NewOrderItem{
			{VariantId: oak.ID, Qty: decimal.NewFromInt(1)},
		},
	}, user.ID)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	one := decimal.NewFromInt(1)
	inflated := decimal.NewFromInt(999)
	updated, err := models.UpdateOrder(ctx, order.ID, &models.UpdateOrderInput{
		Items: []models.OrderItemMutation{
			{Action: models.OrderItemActionAdd, VariantId: pine.ID, Qty: &one, UnitPrice: &inflated},
		},
	}, user.ID)
	if err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}

	var added *models.OrderItem
	for i := range updated.Items {
		if updated.Items[i].VariantId == pine.ID {
			added = &updated.Items[i]
		}
	}
	if added == nil {
		t.Fatalf("added line missing from order")
	}
	if !added.UnitPrice.Equal(decimal.NewFromInt(50)) {
		t.Errorf("added line must use the variant price 50, got %s", added.UnitPrice)
	}
	if !added.UnitCost.Equal(decimal.NewFromInt(20)) {
		t.Errorf("added line must capture the variant cost 20, got %s", added.UnitCost)
	}
	if !updated.OrderSubtotal.Equal(decimal.NewFromInt(150)) {
		t.Errorf("order subtotal: expected 150, got %s", updated.OrderSubtotal)
	}
}
