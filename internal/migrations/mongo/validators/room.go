package validators

import "go.mongodb.org/mongo-driver/bson"

var RoomCategoryValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"name", "nightly_rate", "max_occupancy", "created_at"},
		"additionalProperties": true,

		"properties": bson.M{
			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},
			"description": bson.M{
				"bsonType":  "string",
				"maxLength": 2000,
			},
			"nightly_rate": bson.M{
				"bsonType":         integer,
				"exclusiveMinimum": true,
				"minimum":          0,
			},
			"max_occupancy": bson.M{
				"bsonType": integer,
				"minimum":  1,
				"maximum":  20,
			},
			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var RoomValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"category_id", "number", "status", "created_at"},
		"additionalProperties": true,

		"properties": bson.M{
			"category_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},
			"number": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 20,
			},
			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"available", "occupied", "maintenance"},
			},
			"created_at": bson.M{
				"bsonType": "date",
			},
			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
