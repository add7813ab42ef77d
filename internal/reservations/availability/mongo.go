package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	mongotx "carrental/pkg/db/mongo"
	"carrental/pkg/interval"
	"carrental/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Vehicle_slots"

	maxCASAttempts = 5
)

var ErrConcurrentModification = errors.New("vehicle slots modified concurrently")

type vehicleSlotsDocument struct {
	VehicleID string       `bson:"_id"`
	Slots     []model.Slot `bson:"slots"`
	Version   int64        `bson:"version"`
	UpdatedAt time.Time    `bson:"updated_at"`
}

// MongoIndex stores one document per vehicle. Every write is a compare-and-swap on
// the document version, so two instances can never both reserve overlapping slots.
type MongoIndex struct {
	collection   *mongo.Collection
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func NewMongoIndex(db *mongo.Database, readTimeout, writeTimeout time.Duration) *MongoIndex {
	return &MongoIndex{
		collection:   db.Collection(CollectionName),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

func (m *MongoIndex) load(ctx context.Context, vehicleID string) (*vehicleSlotsDocument, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, m.readTimeout)
	defer cancel()

	var doc vehicleSlotsDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": vehicleID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &vehicleSlotsDocument{VehicleID: vehicleID, Slots: []model.Slot{}}, nil
		}
		return nil, fmt.Errorf("failed to load vehicle slots: %w", err)
	}
	return &doc, nil
}

// CheckAndReserve re-reads and re-checks after a lost compare-and-swap, up to
// maxCASAttempts times. Version 0 means no document yet; the upsert then fails
// with a duplicate key if another writer created it first.
//
// Inside a session transaction a re-read returns the same snapshot and concurrent
// writers surface as a WriteConflict that WithTransaction retries as a whole, so
// a lost swap is reported once as ErrConcurrentModification.
func (m *MongoIndex) CheckAndReserve(ctx context.Context, vehicleID string, iv interval.Interval, reservationID string) error {
	if err := iv.Validate(); err != nil {
		return err
	}
	slot := model.Slot{Interval: iv, ReservationID: reservationID}

	attempts := casAttempts(ctx)
	for attempt := 0; attempt < attempts; attempt++ {
		doc, err := m.load(ctx, vehicleID)
		if err != nil {
			return err
		}
		if existing, found := findConflict(doc.Slots, iv); found {
			return conflictError(vehicleID, iv, existing)
		}

		swapped, err := m.push(ctx, vehicleID, doc.Version, slot)
		if err != nil {
			return err
		}
		if swapped {
			return nil
		}
	}

	return fmt.Errorf("%w: vehicle %s after %d attempts", ErrConcurrentModification, vehicleID, attempts)
}

func casAttempts(ctx context.Context) int {
	if mongotx.InTransaction(ctx) {
		return 1
	}
	return maxCASAttempts
}

func (m *MongoIndex) push(ctx context.Context, vehicleID string, version int64, slot model.Slot) (bool, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, m.writeTimeout)
	defer cancel()

	filter := bson.M{"_id": vehicleID, "version": version}
	update := bson.M{
		"$push": bson.M{
			"slots": bson.M{
				"$each": []model.Slot{slot},
				"$sort": bson.D{{Key: "interval.start", Value: 1}},
			},
		},
		"$inc": bson.M{"version": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(version == 0))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to reserve vehicle slot: %w", err)
	}

	return result.MatchedCount > 0 || result.UpsertedCount > 0, nil
}

func (m *MongoIndex) ListBusy(ctx context.Context, vehicleID string, from, to time.Time) ([]model.Slot, error) {
	doc, err := m.load(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	sortSlots(doc.Slots)
	return busyWithin(doc.Slots, from, to), nil
}

func (m *MongoIndex) Release(ctx context.Context, vehicleID, reservationID string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, m.writeTimeout)
	defer cancel()

	update := bson.M{
		"$pull": bson.M{"slots": bson.M{"reservation_id": reservationID}},
		"$inc":  bson.M{"version": 1},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	if _, err := m.collection.UpdateOne(ctx, bson.M{"_id": vehicleID}, update); err != nil {
		return fmt.Errorf("failed to release vehicle slot: %w", err)
	}
	return nil
}

func (m *MongoIndex) Rebuild(ctx context.Context, vehicleID string, slots []model.Slot) error {
	normalized, err := normalizeSlots(vehicleID, slots)
	if err != nil {
		return err
	}

	ctx, cancel := mongotx.WithTimeout(ctx, m.writeTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{"slots": normalized, "updated_at": time.Now().UTC()},
		"$inc": bson.M{"version": 1},
	}
	_, err = m.collection.UpdateOne(ctx, bson.M{"_id": vehicleID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to rebuild vehicle slots: %w", err)
	}
	return nil
}
