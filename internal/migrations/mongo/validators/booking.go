package validators

import "go.mongodb.org/mongo-driver/bson"

var integer = bson.A{"int", "long"}

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"guest_id",
			"contact",
			"category_id",
			"check_in",
			"check_out",
			"nights",
			"room_count",
			"total_price",
			"currency",
			"status",
			"payment_status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"guest_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 128,
			},

			"contact": bson.M{
				"bsonType": "object",
				"required": []string{"full_name", "email", "phone"},
				"properties": bson.M{
					"full_name": bson.M{"bsonType": "string", "minLength": 2, "maxLength": 100},
					"email":     bson.M{"bsonType": "string", "maxLength": 254},
					"phone":     bson.M{"bsonType": "string", "pattern": "^[0-9]{10}$"},
				},
			},

			"category_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"check_in": bson.M{
				"bsonType": "date",
			},

			"check_out": bson.M{
				"bsonType": "date",
			},

			"nights": bson.M{
				"bsonType": integer,
				"minimum":  1,
			},

			"room_count": bson.M{
				"bsonType": integer,
				"minimum":  1,
			},

			"subtotal":    bson.M{"bsonType": integer, "minimum": 0},
			"tax":         bson.M{"bsonType": integer, "minimum": 0},
			"total_price": bson.M{"bsonType": integer, "minimum": 0},

			"currency": bson.M{
				"bsonType": "string",
				"pattern":  "^[a-z]{3}$",
			},

			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"pending", "confirmed", "cancelled"},
			},

			"payment_status": bson.M{
				"bsonType": "string",
				"enum":     []string{"unpaid", "paid"},
			},

			"payment_reference": bson.M{
				"bsonType":  "string",
				"maxLength": 255,
			},

			"cancel_reason": bson.M{
				"bsonType":  "string",
				"maxLength": 200,
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

var BookingRoomValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"booking_id", "room_id", "created_at"},
		"properties": bson.M{
			"booking_id": bson.M{"bsonType": "string", "minLength": 24, "maxLength": 24},
			"room_id":    bson.M{"bsonType": "string", "minLength": 24, "maxLength": 24},
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}

// RoomNightValidator: _id is "<room_id>:<yyyy-mm-dd>", which is what makes a
// double claim fail on the primary key.
var RoomNightValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "room_id", "booking_id", "night"},
		"properties": bson.M{
			"_id":        bson.M{"bsonType": "string"},
			"room_id":    bson.M{"bsonType": "string"},
			"booking_id": bson.M{"bsonType": "string"},
			"night":      bson.M{"bsonType": "date"},
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}
