package main

import (
	"carrental/internal/reservations/availability"
	"carrental/internal/reservations/events"
	"carrental/internal/reservations/handler"
	"carrental/internal/reservations/repository"
	"carrental/internal/reservations/service"
	"carrental/internal/reservations/validator"
	"carrental/pkg/app"
	"carrental/pkg/config"
	"carrental/pkg/db"
	"carrental/pkg/db/memory"
	mongotx "carrental/pkg/db/mongo"
	"carrental/pkg/kafka"
	kafkamiddleware "carrental/pkg/kafka/middleware"
	"carrental/pkg/lock"
)

const ServiceName = "reservations"

type stores struct {
	ledger    repository.ReservationRepository
	index     availability.Index
	vehicles  repository.VehicleRepository
	txManager db.TransactionManager
}

func main() {
	cfg := config.Load(ServiceName)
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Reservations service", "store", cfg.Store, "lock_backend", cfg.LockBackend)

	st := initStores(cfg)
	locker := initLocker(cfg)
	publisher := initPublisher(cfg)

	reservationValidator := validator.NewReservationValidator(cfg.Log, cfg.MinBookingMinutes)
	bookingService := service.NewBookingService(
		st.ledger,
		st.index,
		locker,
		st.txManager,
		service.NewPriceVerifier(st.vehicles, cfg),
		publisher,
		reservationValidator,
		cfg,
	)
	queryService := service.NewQueryService(st.ledger, st.index, st.vehicles, locker, reservationValidator, cfg)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		handler.NewHealthHandler(cfg.Client.Mongo, cfg.Client.Redis, cfg.Log),
		handler.NewReservationHandler(bookingService, queryService, cfg.BookingLocation, cfg.Log),
		publisher.Close,
	)
	serverApp.Run()
}

func initStores(cfg *config.Config) stores {
	if cfg.Store != config.StoreMongo {
		cfg.Log.Warn("Using in-memory store, reservations are lost on restart")
		return stores{
			ledger:    repository.NewMemoryReservationRepository(),
			index:     availability.NewMemoryIndex(),
			vehicles:  repository.NewMemoryVehicleRepository(),
			txManager: memory.NewTransactionManager(),
		}
	}

	cfg.SetMongo()
	database := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	cfg.Log.Info("Mongo stores initialized", "database", cfg.MongoDatabaseName)
	return stores{
		ledger:    repository.NewMongoReservationRepository(database, cfg.ReadTimeout, cfg.WriteTimeout),
		index:     availability.NewMongoIndex(database, cfg.ReadTimeout, cfg.WriteTimeout),
		vehicles:  repository.NewMongoVehicleRepository(database, cfg.ReadTimeout, cfg.WriteTimeout),
		txManager: mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func initLocker(cfg *config.Config) lock.Locker {
	if cfg.LockBackend == config.LockRedis {
		cfg.SetRedis()
		cfg.Log.Info("Distributed vehicle locks enabled", "redis_addr", cfg.RedisAddr, "ttl", cfg.LockTTL)
		return lock.NewRedisLocker(cfg.Client.Redis, cfg.LockTTL, cfg.LockRetryInterval)
	}
	return lock.NewKeyedMutex()
}

func initPublisher(cfg *config.Config) events.Publisher {
	if !cfg.KafkaEnabled() {
		cfg.Log.Info("Kafka brokers not configured, reservation events disabled")
		return events.NewNoopPublisher()
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaReservationsTopic,
		DLQTopic:     cfg.KafkaReservationsDLQTopic,
		MaxAttempts:  cfg.KafkaProducerMaxAttempts,
		BatchTimeout: cfg.KafkaProducerBatchTimeout,
		RequireAcks:  cfg.KafkaProducerRequireAcks,
		Compression:  cfg.KafkaProducerCompression,
	}, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafkamiddleware.LoggingProducerMiddleware(cfg.Log))

	cfg.Log.Info("Reservation events enabled", "topic", cfg.KafkaReservationsTopic)
	return events.NewKafkaPublisher(producer, ServiceName)
}
