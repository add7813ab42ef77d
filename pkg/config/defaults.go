package config

import "time"

const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"

	LockLocal = "local"
	LockRedis = "redis"

	// PricePolicyTrust accepts the caller's amount as-is, PricePolicyWarn logs a mismatch
	// against the vehicle rate, PricePolicyStrict rejects it.
	PricePolicyTrust  = "trust"
	PricePolicyWarn   = "warn"
	PricePolicyStrict = "strict"
)

const (
	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultStore = StoreMemory

	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "carrental"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultLockBackend       = LockLocal
	DefaultLockTTL           = 10 * time.Second
	DefaultLockRetryInterval = 25 * time.Millisecond
	DefaultRedisAddr         = "localhost:6379"
	DefaultRedisDB           = 0

	DefaultKafkaReservationsTopic = "reservations.events"
	DefaultKafkaProducerAttempts  = 3
	DefaultKafkaProducerBatch     = 10 * time.Millisecond
	DefaultKafkaProducerAcks      = -1
	DefaultKafkaProducerCompress  = "snappy"

	DefaultBookingTimeZone         = "UTC"
	DefaultMinBookingMinutes       = 60
	DefaultPricePolicy             = PricePolicyWarn
	DefaultPriceTolerance          = 0.01
	DefaultDriverDailyRate         = 300.0
	DefaultAvailabilityConcurrency = 8

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100
)
