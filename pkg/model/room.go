package model

import (
	"sort"
	"strconv"
	"time"
)

type RoomStatus string

const (
	RoomAvailable   RoomStatus = "available"
	RoomOccupied    RoomStatus = "occupied"
	RoomMaintenance RoomStatus = "maintenance"
)

type RoomCategory struct {
	ID           string    `json:"id,omitempty" bson:"_id,omitempty"`
	Name         string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Description  string    `json:"description,omitempty" bson:"description,omitempty" validate:"max=2000"`
	NightlyRate  int64     `json:"nightly_rate" bson:"nightly_rate" validate:"gt=0"`
	MaxOccupancy int       `json:"max_occupancy" bson:"max_occupancy" validate:"gte=1,lte=20"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

type Room struct {
	ID         string     `json:"id,omitempty" bson:"_id,omitempty"`
	CategoryID string     `json:"category_id" bson:"category_id" validate:"required"`
	Number     string     `json:"number" bson:"number" validate:"required,max=20"`
	Status     RoomStatus `json:"status" bson:"status" validate:"required,oneof=available occupied maintenance"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" bson:"updated_at"`
}

// Bookable reports whether the room may be offered to guests at all.
// Occupancy is a projection of confirmed stays and does not block other dates.
func (r *Room) Bookable() bool {
	return r.Status != RoomMaintenance
}

// SortRooms orders rooms by number. Integer numbers compare numerically, so
// "9" comes before "10", and sort ahead of alphanumeric ones like "PH1".
func SortRooms(rooms []*Room) {
	sort.SliceStable(rooms, func(i, j int) bool {
		return roomNumberLess(rooms[i].Number, rooms[j].Number)
	})
}

func roomNumberLess(a, b string) bool {
	x, errA := strconv.Atoi(a)
	y, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil && x != y:
		return x < y
	case errA == nil && errB != nil:
		return true
	case errA != nil && errB == nil:
		return false
	}
	return a < b
}
