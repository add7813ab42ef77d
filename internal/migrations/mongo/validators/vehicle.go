package validators

import "go.mongodb.org/mongo-driver/bson"

var VehicleSlotsValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "slots", "version"},
		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 128,
			},
			"version": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},
			"slots": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"interval", "reservation_id"},
					"properties": bson.M{
						"reservation_id": bson.M{"bsonType": "string"},
						"interval": bson.M{
							"bsonType": "object",
							"required": []string{"start", "end"},
							"properties": bson.M{
								"start": bson.M{"bsonType": "date"},
								"end":   bson.M{"bsonType": "date"},
							},
						},
					},
				},
			},
			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var VehicleValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "hourly_rate"},
		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 128,
			},
			"hourly_rate": bson.M{
				"bsonType": numeric,
				"minimum":  0,
			},
			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
