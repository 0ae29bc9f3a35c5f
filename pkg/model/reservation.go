package model

// Reservation is a guest's reviewed selection, ready to be committed.
// ExpectedTotal is the total the guest saw; a mismatch with the current
// price aborts the commit.
type Reservation struct {
	GuestID       string       `json:"-" validate:"required,max=128"`
	CategoryID    string       `json:"category_id" validate:"required"`
	CheckIn       string       `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut      string       `json:"check_out" validate:"required,datetime=2006-01-02"`
	RoomIDs       []string     `json:"room_ids" validate:"max=20,unique,dive,required"`
	ExpectedTotal int64        `json:"expected_total" validate:"gt=0"`
	Contact       GuestContact `json:"contact"`
}

type QuoteRequest struct {
	CategoryID string `json:"category_id" validate:"required"`
	CheckIn    string `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut   string `json:"check_out" validate:"required,datetime=2006-01-02"`
	RoomCount  int    `json:"room_count" validate:"min=1,max=20"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=200"`
}
