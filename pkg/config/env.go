package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort      = "PORT"
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvTaxRate  = "TAX_RATE"
	EnvCurrency = "CURRENCY"

	EnvMaxStayNights = "MAX_STAY_NIGHTS"

	EnvPendingBookingTTL   = "PENDING_BOOKING_TTL"
	EnvExpirySweepInterval = "EXPIRY_SWEEP_INTERVAL"
	EnvExpiryBatchSize     = "EXPIRY_BATCH_SIZE"

	EnvStripeSecretKey     = "STRIPE_SECRET_KEY"
	EnvStripeWebhookSecret = "STRIPE_WEBHOOK_SECRET"

	EnvRedisURL = "REDIS_URL"

	EnvKafkaEnabled      = "KAFKA_ENABLED"
	EnvKafkaBookingTopic = "KAFKA_BOOKING_TOPIC"
	EnvKafkaBookingDLQ   = "KAFKA_BOOKING_DLQ_TOPIC"
)
