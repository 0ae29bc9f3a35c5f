package model

import (
	"fmt"
	"time"
)

const NightLayout = "2006-01-02"

// RoomNight claims one room for one night on behalf of an active booking.
// The ID is unique per (room, night), so the store itself rejects a second
// claim on the same night.
type RoomNight struct {
	ID        string    `bson:"_id" json:"id"`
	RoomID    string    `bson:"room_id" json:"room_id"`
	BookingID string    `bson:"booking_id" json:"booking_id"`
	Night     time.Time `bson:"night" json:"night"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

func RoomNightID(roomID string, night time.Time) string {
	return fmt.Sprintf("%s:%s", roomID, night.UTC().Format(NightLayout))
}
