package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	reservationserrors "carrental/internal/reservations/errors"
	mongotx "carrental/pkg/db/mongo"
	"carrental/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	VehicleCollectionName = "Vehicles"
)

// VehicleRepository reads hourly rates from the vehicle catalog. Upsert exists so
// operators can seed rates; the booking path only reads.
type VehicleRepository interface {
	FindByID(ctx context.Context, id string) (*model.Vehicle, error)
	Upsert(ctx context.Context, vehicle *model.Vehicle) error
}

type mongoVehicleRepository struct {
	collection   *mongo.Collection
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func NewMongoVehicleRepository(db *mongo.Database, readTimeout, writeTimeout time.Duration) VehicleRepository {
	return &mongoVehicleRepository{
		collection:   db.Collection(VehicleCollectionName),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

func (r *mongoVehicleRepository) FindByID(ctx context.Context, id string) (*model.Vehicle, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	var vehicle model.Vehicle
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&vehicle)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrVehicleNotFound
		}
		return nil, fmt.Errorf("failed to find vehicle: %w", err)
	}
	return &vehicle, nil
}

func (r *mongoVehicleRepository) Upsert(ctx context.Context, vehicle *model.Vehicle) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	vehicle.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	update := bson.M{"$set": bson.M{
		"hourly_rate": vehicle.HourlyRate,
		"updated_at":  vehicle.UpdatedAt,
	}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": vehicle.ID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert vehicle: %w", err)
	}
	return nil
}

type memoryVehicleRepository struct {
	mu       sync.RWMutex
	vehicles map[string]model.Vehicle
}

func NewMemoryVehicleRepository() VehicleRepository {
	return &memoryVehicleRepository{vehicles: make(map[string]model.Vehicle)}
}

func (r *memoryVehicleRepository) FindByID(ctx context.Context, id string) (*model.Vehicle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	vehicle, ok := r.vehicles[id]
	if !ok {
		return nil, reservationserrors.ErrVehicleNotFound
	}
	return &vehicle, nil
}

func (r *memoryVehicleRepository) Upsert(ctx context.Context, vehicle *model.Vehicle) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	vehicle.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	r.vehicles[vehicle.ID] = *vehicle
	return nil
}
