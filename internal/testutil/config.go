// Package testutil holds fixtures shared by service and handler tests.
package testutil

import (
	"time"

	"zivara/pkg/config"
	"zivara/pkg/logger"
)

// Today is the fixed "now" for tests that book stays in July 2024.
var Today = time.Date(2024, 7, 1, 9, 30, 0, 0, time.UTC)

// Now returns Today.
func Now() time.Time { return Today }

// Config returns a configuration with production defaults and a silent logger.
func Config() *config.Config {
	return &config.Config{
		Log:                 logger.Discard(),
		ReadTimeout:         5 * time.Second,
		WriteTimeout:        5 * time.Second,
		RequestTimeout:      10 * time.Second,
		IdempotencyTTL:      config.DefaultIdempotencyTTL,
		MaxRequestSize:      config.DefaultMaxRequestSize,
		RateLimitRequests:   config.DefaultRateLimitRequests,
		RateLimitWindow:     config.DefaultRateLimitWindow,
		Port:                config.DefaultPort,
		TaxRate:             config.DefaultTaxRate,
		Currency:            config.DefaultCurrency,
		MaxStayNights:       config.DefaultMaxStayNights,
		PendingBookingTTL:   config.DefaultPendingBookingTTL,
		ExpirySweepInterval: config.DefaultExpirySweepInterval,
		ExpiryBatchSize:     config.DefaultExpiryBatchSize,
	}
}
