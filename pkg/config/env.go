package config

const (
	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvStore = "STORE"

	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvLockBackend       = "LOCK_BACKEND"
	EnvLockTTL           = "LOCK_TTL"
	EnvLockRetryInterval = "LOCK_RETRY_INTERVAL"
	EnvRedisAddr         = "REDIS_ADDR"
	EnvRedisPassword     = "REDIS_PASSWORD"
	EnvRedisDB           = "REDIS_DB"

	EnvKafkaBrokers            = "KAFKA_BROKERS"
	EnvKafkaReservationsTopic  = "KAFKA_RESERVATIONS_TOPIC"
	EnvKafkaReservationsDLQ    = "KAFKA_RESERVATIONS_DLQ_TOPIC"
	EnvKafkaProducerAttempts   = "KAFKA_PRODUCER_MAX_ATTEMPTS"
	EnvKafkaProducerBatch      = "KAFKA_PRODUCER_BATCH_TIMEOUT"
	EnvKafkaProducerAcks       = "KAFKA_PRODUCER_REQUIRE_ACKS"
	EnvKafkaProducerCompressor = "KAFKA_PRODUCER_COMPRESSION"

	EnvBookingTimeZone         = "BOOKING_TIMEZONE"
	EnvMinBookingMinutes       = "MIN_BOOKING_MINUTES"
	EnvPricePolicy             = "PRICE_POLICY"
	EnvPriceTolerance          = "PRICE_TOLERANCE"
	EnvDriverDailyRate         = "DRIVER_DAILY_RATE"
	EnvAvailabilityConcurrency = "AVAILABILITY_CONCURRENCY"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
