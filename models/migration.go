package models

import (
	"github.com/mapletrade/store_backend/config"
)

// MigrateTable creates or updates every table the service owns.
func MigrateTable() error {
	db := config.GetDB()
	return db.AutoMigrate(
		&User{},
		&ShippingAddress{},
		&Product{},
		&ProductVariant{},
		&StockMovement{},
		&Expense{},
		&CurrencyExchange{},
		&Order{},
		&OrderItem{},
	)
}
