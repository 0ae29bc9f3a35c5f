package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017/?replicaSet=rs0"
	DefaultMongoDatabaseName = "zivara"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort      = "8080"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// GST applied by the booking dialog. The cart page used 0.12; see TAX_RATE.
	DefaultTaxRate  = 0.18
	DefaultCurrency = "usd"

	DefaultMaxStayNights = 30

	DefaultPendingBookingTTL   = 15 * time.Minute
	DefaultExpirySweepInterval = 1 * time.Minute
	DefaultExpiryBatchSize     = 100

	DefaultKafkaEnabled      = false
	DefaultKafkaBookingTopic = "booking-events"
)
