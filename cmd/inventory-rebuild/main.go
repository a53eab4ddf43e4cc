package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mapletrade/store_backend/config"
	"github.com/mapletrade/store_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Replays the stock movement ledger and repairs the stock/average-cost
// cache on product variants when the two have drifted.
func main() {
	variantID := flag.Int("variant-id", 0, "Optional: rebuild a single variant")
	productID := flag.Int("product-id", 0, "Optional: rebuild every variant of a product")
	dryRun := flag.Bool("dry-run", false, "Report drift without writing")
	continueOnError := flag.Bool("continue-on-error", false, "Skip failing variants and continue")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := logrus.New()

	var variantIDs []int
	query := db.Model(&models.ProductVariant{}).Order("id ASC")
	if *variantID > 0 {
		query = query.Where("id = ?", *variantID)
	} else if *productID > 0 {
		query = query.Where("product_id = ?", *productID)
	}
	if err := query.Pluck("id", &variantIDs).Error; err != nil {
		fmt.Fprintf(os.Stderr, "discover variants: %v\n", err)
		os.Exit(1)
	}
	if len(variantIDs) == 0 {
		fmt.Fprintln(os.Stderr, "no variants matched")
		os.Exit(1)
	}

	repaired, clean, failed := 0, 0, 0
	for _, id := range variantIDs {
		changed, err := rebuildVariant(id, *dryRun, logger)
		if err != nil {
			failed++
			logger.WithFields(logrus.Fields{
				"variant_id": id,
			}).Error("rebuild failed: " + err.Error())
			if !*continueOnError {
				os.Exit(1)
			}
			continue
		}
		if changed {
			repaired++
		} else {
			clean++
		}
	}

	logger.WithFields(logrus.Fields{
		"repaired": repaired,
		"clean":    clean,
		"failed":   failed,
		"dry_run":  *dryRun,
	}).Info("inventory rebuild finished")
	if failed > 0 {
		os.Exit(1)
	}
}

// rebuildVariant replays every movement in ledger order and compares the
// result against the cached stock and average cost.
func rebuildVariant(variantID int, dryRun bool, logger *logrus.Logger) (bool, error) {
	db := config.GetDB()

	var movements []models.StockMovement
	err := db.Where("product_variant_id = ?", variantID).
		Order("created_at ASC, id ASC").Find(&movements).Error
	if err != nil {
		return false, err
	}

	stock := decimal.Zero
	avgCost := decimal.Zero
	for _, m := range movements {
		if m.Reason == models.StockReasonPurchase || m.Reason == models.StockReasonInitialStock {
			avgCost = models.NextAverageCost(stock, avgCost, m.Qty, m.UnitCost)
		}
		stock = stock.Add(m.Qty)
	}

	var variant models.ProductVariant
	if err := db.First(&variant, variantID).Error; err != nil {
		return false, err
	}

	if variant.StockQty.Equal(stock) && variant.AverageUnitCost.Equal(avgCost) {
		return false, nil
	}

	logger.WithFields(logrus.Fields{
		"variant_id":      variantID,
		"cached_stock":    variant.StockQty.String(),
		"ledger_stock":    stock.String(),
		"cached_avg_cost": variant.AverageUnitCost.String(),
		"ledger_avg_cost": avgCost.String(),
	}).Warn("cache drift detected")

	if dryRun {
		return true, nil
	}

	err = db.Model(&models.ProductVariant{}).Where("id = ?", variantID).
		Updates(map[string]interface{}{
			"stock_qty":         stock,
			"average_unit_cost": avgCost,
		}).Error
	if err != nil {
		return false, err
	}
	return true, nil
}
