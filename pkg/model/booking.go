package model

import "time"

type BookingStatus string

type PaymentStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"

	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// ActiveBookingStatuses hold inventory: their rooms are unavailable for overlapping stays.
var ActiveBookingStatuses = []BookingStatus{BookingPending, BookingConfirmed}

type Booking struct {
	ID               string        `json:"id,omitempty" bson:"_id,omitempty"`
	GuestID          string        `json:"guest_id" bson:"guest_id"`
	Contact          GuestContact  `json:"contact" bson:"contact"`
	CategoryID       string        `json:"category_id" bson:"category_id"`
	CheckIn          time.Time     `json:"check_in" bson:"check_in"`
	CheckOut         time.Time     `json:"check_out" bson:"check_out"`
	Nights           int           `json:"nights" bson:"nights"`
	RoomCount        int           `json:"room_count" bson:"room_count"`
	Subtotal         int64         `json:"subtotal" bson:"subtotal"`
	Tax              int64         `json:"tax" bson:"tax"`
	TotalPrice       int64         `json:"total_price" bson:"total_price"`
	Currency         string        `json:"currency" bson:"currency"`
	Status           BookingStatus `json:"status" bson:"status"`
	PaymentStatus    PaymentStatus `json:"payment_status" bson:"payment_status"`
	PaymentReference string        `json:"payment_reference,omitempty" bson:"payment_reference,omitempty"`
	CancelReason     string        `json:"cancel_reason,omitempty" bson:"cancel_reason,omitempty"`
	RoomIDs          []string      `json:"room_ids,omitempty" bson:"-"`
	CreatedAt        time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" bson:"updated_at"`
}

// GuestContact is collected at checkout so the hotel can reach the guest.
type GuestContact struct {
	FullName string `json:"full_name" bson:"full_name" validate:"required,min=2,max=100"`
	Email    string `json:"email" bson:"email" validate:"required,email,max=254"`
	Phone    string `json:"phone" bson:"phone" validate:"required,len=10,numeric"`
}

// BookingState is the (status, payment status) pair that transitions compare and swap.
type BookingState struct {
	Status        BookingStatus
	PaymentStatus PaymentStatus
}

var (
	StatePending   = BookingState{Status: BookingPending, PaymentStatus: PaymentUnpaid}
	StateConfirmed = BookingState{Status: BookingConfirmed, PaymentStatus: PaymentPaid}
	StateCancelled = BookingState{Status: BookingCancelled, PaymentStatus: PaymentUnpaid}
)

func (b *Booking) State() BookingState {
	return BookingState{Status: b.Status, PaymentStatus: b.PaymentStatus}
}

func (b *Booking) IsActive() bool {
	return b.Status == BookingPending || b.Status == BookingConfirmed
}

// StateChange is applied atomically when a booking moves between states.
type StateChange struct {
	From             BookingState
	To               BookingState
	PaymentReference string
	CancelReason     string
	At               time.Time
}

// BookingRoom links one physical room to one booking. Rows are never mutated.
type BookingRoom struct {
	BookingID string    `json:"booking_id" bson:"booking_id"`
	RoomID    string    `json:"room_id" bson:"room_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
