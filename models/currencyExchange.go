package models

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mapletrade/store_backend/config"
	"github.com/shopspring/decimal"
)

// CurrencyExchange stores one observed USD to local-currency rate. The
// latest row doubles as an offline fallback when the rate API is down.
type CurrencyExchange struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Rate      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"rate"`
	Source    string          `gorm:"size:40" json:"source"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

const exchangeRateCacheKey = "currency:usd_rate"

var exchangeHTTPClient = &http.Client{Timeout: 10 * time.Second}

type exchangeRateResponse struct {
	Rate decimal.Decimal `json:"rate"`
}

// FetchExchangeRate resolves the USD to local-currency rate. Resolution
// order: redis cache, rate API, last persisted rate, EXCHANGE_RATE_FALLBACK
// env, 1. It never fails; expense recording must not depend on the rate
// service being up.
func FetchExchangeRate(ctx context.Context) decimal.Decimal {
	logger := config.GetLogger()

	if cached, found, err := config.GetRedisValue(exchangeRateCacheKey); err == nil && found {
		if rate, err := decimal.NewFromString(cached); err == nil && rate.IsPositive() {
			return rate
		}
	}

	if rate, ok := fetchRateFromAPI(ctx); ok {
		if err := config.SetRedisValue(exchangeRateCacheKey, rate.String(), time.Hour); err != nil {
			config.LogError(logger, "currencyExchange", "FetchExchangeRate",
				"failed to cache exchange rate", nil, err)
		}
		db := config.GetDB()
		row := &CurrencyExchange{Rate: rate, Source: "api"}
		if err := db.WithContext(ctx).Create(row).Error; err != nil {
			config.LogError(logger, "currencyExchange", "FetchExchangeRate",
				"failed to persist exchange rate", nil, err)
		}
		return rate
	}

	var last CurrencyExchange
	db := config.GetDB()
	if err := db.WithContext(ctx).Order("created_at DESC, id DESC").First(&last).Error; err == nil && last.Rate.IsPositive() {
		return last.Rate
	}

	if env := os.Getenv("EXCHANGE_RATE_FALLBACK"); env != "" {
		if rate, err := decimal.NewFromString(env); err == nil && rate.IsPositive() {
			return rate
		}
	}
	return decimal.NewFromInt(1)
}

func fetchRateFromAPI(ctx context.Context) (decimal.Decimal, bool) {
	url := os.Getenv("EXCHANGE_RATE_API_URL")
	if url == "" {
		return decimal.Decimal{}, false
	}
	logger := config.GetLogger()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Decimal{}, false
	}
	resp, err := exchangeHTTPClient.Do(req)
	if err != nil {
		config.LogError(logger, "currencyExchange", "fetchRateFromAPI",
			"exchange rate request failed", map[string]interface{}{"url": url}, err)
		return decimal.Decimal{}, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		config.LogError(logger, "currencyExchange", "fetchRateFromAPI",
			"exchange rate request returned non-200",
			map[string]interface{}{"url": url}, fmt.Errorf("status %d", resp.StatusCode))
		return decimal.Decimal{}, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return decimal.Decimal{}, false
	}
	var parsed exchangeRateResponse
	if err := json.Unmarshal(body, &parsed); err != nil || !parsed.Rate.IsPositive() {
		return decimal.Decimal{}, false
	}
	return parsed.Rate, true
}
