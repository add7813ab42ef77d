package mongo

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollections_CoverEveryStore(t *testing.T) {
	defs := Collections()

	require.Len(t, defs, 3)
	for _, name := range []string{"Reservations", "Vehicle_slots", "Vehicles"} {
		def, ok := defs[name]
		require.True(t, ok, name)
		assert.NotEmpty(t, def.Indexes, name)
		assert.Contains(t, def.Validator, "$jsonSchema", name)
	}
}

func TestReservationsIndexes_LeadWithVehicleAndStart(t *testing.T) {
	keys, ok := ReservationsIndexes[0].Keys.(bson.D)
	require.True(t, ok)
	assert.Equal(t, bson.D{{Key: "vehicle_id", Value: 1}, {Key: "start_time", Value: 1}}, keys)
}
