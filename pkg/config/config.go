package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"carrental/pkg/client"
	"carrental/pkg/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	Store string

	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	LockBackend       string
	LockTTL           time.Duration
	LockRetryInterval time.Duration
	RedisAddr         string
	RedisPassword     string
	RedisDB           int

	KafkaBrokers              []string
	KafkaReservationsTopic    string
	KafkaReservationsDLQTopic string
	KafkaProducerMaxAttempts  int
	KafkaProducerBatchTimeout time.Duration
	KafkaProducerRequireAcks  int
	KafkaProducerCompression  string

	BookingTimeZone         string
	BookingLocation         *time.Location
	MinBookingMinutes       int
	PricePolicy             string
	PriceTolerance          float64
	DriverDailyRate         float64
	AvailabilityConcurrency int

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Log    *logger.Logger
	Client *client.Client
}

// Load reads the process environment (and a .env file when present), validates it
// and exits the process on invalid configuration.
func Load(serviceName string) *Config {
	_ = godotenv.Load()

	cfg := FromEnv()
	cfg.Log = logger.New(logger.Config{
		Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
		Format:    logger.JSON,
		AddSource: true,
		Service:   serviceName,
	})
	cfg.Client = client.NewClient()

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// FromEnv builds a Config from environment variables without validating it.
func FromEnv() *Config {
	return &Config{
		Port: getEnvStr(EnvPort, DefaultPort),

		Store: strings.ToLower(getEnvStr(EnvStore, DefaultStore)),

		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		LockBackend:       strings.ToLower(getEnvStr(EnvLockBackend, DefaultLockBackend)),
		LockTTL:           getEnvDuration(EnvLockTTL, DefaultLockTTL),
		LockRetryInterval: getEnvDuration(EnvLockRetryInterval, DefaultLockRetryInterval),
		RedisAddr:         getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword:     getEnvStr(EnvRedisPassword, ""),
		RedisDB:           getEnvNum(EnvRedisDB, DefaultRedisDB),

		KafkaBrokers:              getEnvList(EnvKafkaBrokers),
		KafkaReservationsTopic:    getEnvStr(EnvKafkaReservationsTopic, DefaultKafkaReservationsTopic),
		KafkaReservationsDLQTopic: getEnvStr(EnvKafkaReservationsDLQ, ""),
		KafkaProducerMaxAttempts:  getEnvNum(EnvKafkaProducerAttempts, DefaultKafkaProducerAttempts),
		KafkaProducerBatchTimeout: getEnvDuration(EnvKafkaProducerBatch, DefaultKafkaProducerBatch),
		KafkaProducerRequireAcks:  getEnvNum(EnvKafkaProducerAcks, DefaultKafkaProducerAcks),
		KafkaProducerCompression:  getEnvStr(EnvKafkaProducerCompressor, DefaultKafkaProducerCompress),

		BookingTimeZone:         getEnvStr(EnvBookingTimeZone, DefaultBookingTimeZone),
		MinBookingMinutes:       getEnvNum(EnvMinBookingMinutes, DefaultMinBookingMinutes),
		PricePolicy:             strings.ToLower(getEnvStr(EnvPricePolicy, DefaultPricePolicy)),
		PriceTolerance:          getEnvFloat(EnvPriceTolerance, DefaultPriceTolerance),
		DriverDailyRate:         getEnvFloat(EnvDriverDailyRate, DefaultDriverDailyRate),
		AvailabilityConcurrency: getEnvNum(EnvAvailabilityConcurrency, DefaultAvailabilityConcurrency),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),
	}
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.MongoConnTimeout)
}

func (cfg *Config) KafkaEnabled() bool {
	return len(cfg.KafkaBrokers) > 0
}

// Validate checks every setting and resolves BookingLocation. All problems are
// reported together.
func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.Store {
	case StoreMemory:
	case StoreMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
	default:
		errors = append(errors, fmt.Sprintf("Store must be one of [%s, %s], got: %s", StoreMemory, StoreMongo, cfg.Store))
	}

	switch cfg.LockBackend {
	case LockLocal:
	case LockRedis:
		if cfg.RedisAddr == "" {
			errors = append(errors, "RedisAddr cannot be empty when LockBackend is redis")
		}
		if cfg.LockTTL <= 0 {
			errors = append(errors, fmt.Sprintf("LockTTL must be positive, got: %s", cfg.LockTTL))
		}
	default:
		errors = append(errors, fmt.Sprintf("LockBackend must be one of [%s, %s], got: %s", LockLocal, LockRedis, cfg.LockBackend))
	}
	if cfg.LockRetryInterval <= 0 {
		errors = append(errors, fmt.Sprintf("LockRetryInterval must be positive, got: %s", cfg.LockRetryInterval))
	}

	if cfg.KafkaEnabled() {
		if cfg.KafkaReservationsTopic == "" {
			errors = append(errors, "KafkaReservationsTopic cannot be empty when KafkaBrokers is set")
		}
		if cfg.KafkaProducerMaxAttempts <= 0 {
			errors = append(errors, fmt.Sprintf("KafkaProducerMaxAttempts must be positive, got: %d", cfg.KafkaProducerMaxAttempts))
		}
		if cfg.KafkaProducerRequireAcks < -1 || cfg.KafkaProducerRequireAcks > 1 {
			errors = append(errors, fmt.Sprintf("KafkaProducerRequireAcks must be -1, 0 or 1, got: %d", cfg.KafkaProducerRequireAcks))
		}
	}

	loc, err := time.LoadLocation(cfg.BookingTimeZone)
	if err != nil {
		errors = append(errors, fmt.Sprintf("BookingTimeZone must be a valid IANA zone, got: %s", cfg.BookingTimeZone))
	} else {
		cfg.BookingLocation = loc
	}

	if cfg.MinBookingMinutes < 0 {
		errors = append(errors, fmt.Sprintf("MinBookingMinutes cannot be negative, got: %d", cfg.MinBookingMinutes))
	}
	switch cfg.PricePolicy {
	case PricePolicyTrust, PricePolicyWarn, PricePolicyStrict:
	default:
		errors = append(errors, fmt.Sprintf("PricePolicy must be one of [%s, %s, %s], got: %s", PricePolicyTrust, PricePolicyWarn, PricePolicyStrict, cfg.PricePolicy))
	}
	if cfg.PriceTolerance < 0 {
		errors = append(errors, fmt.Sprintf("PriceTolerance cannot be negative, got: %v", cfg.PriceTolerance))
	}
	if cfg.DriverDailyRate < 0 {
		errors = append(errors, fmt.Sprintf("DriverDailyRate cannot be negative, got: %v", cfg.DriverDailyRate))
	}
	if cfg.AvailabilityConcurrency <= 0 {
		errors = append(errors, fmt.Sprintf("AvailabilityConcurrency must be positive, got: %d", cfg.AvailabilityConcurrency))
	}

	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"port", cfg.Port,
		"store", cfg.Store,
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"lock_backend", cfg.LockBackend,
		"lock_ttl", cfg.LockTTL,
		"lock_retry_interval", cfg.LockRetryInterval,
		"redis_addr", cfg.RedisAddr,
		"redis_password_set", cfg.RedisPassword != "",
		"kafka_brokers", cfg.KafkaBrokers,
		"kafka_reservations_topic", cfg.KafkaReservationsTopic,
		"booking_timezone", cfg.BookingTimeZone,
		"min_booking_minutes", cfg.MinBookingMinutes,
		"price_policy", cfg.PricePolicy,
		"price_tolerance", cfg.PriceTolerance,
		"driver_daily_rate", cfg.DriverDailyRate,
		"availability_concurrency", cfg.AvailabilityConcurrency,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown()
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
