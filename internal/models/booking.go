package models

import "time"

// Booking is one persisted reservation: a user holds a room on a date,
// identified to the client by a short random code.
type Booking struct {
	ID        int64     `json:"id"`
	User      string    `json:"user"`
	Date      string    `json:"date"`     // dd/mm, fixed calendar year
	DateKey   string    `json:"date_key"` // yyyymmdd, sortable form of Date
	Room      int       `json:"room"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}
