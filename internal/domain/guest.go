package domain

import "time"

// GuestFlag is a business's private note and block state for one guest.
type GuestFlag struct {
	BusinessID string    `json:"businessId"`
	GuestID    string    `json:"guestId"`
	Blocked    bool      `json:"blocked"`
	Note       string    `json:"note,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type GuestHistory struct {
	GuestID       string    `json:"guestId"`
	BusinessID    string    `json:"businessId"`
	Flag          GuestFlag `json:"flag"`
	Bookings      []Booking `json:"bookings"`
	Stays         int       `json:"stays"`
	Cancellations int       `json:"cancellations"`
	NoShows       int       `json:"noShows"`
	LifetimeSpend int64     `json:"lifetimeSpend"`
}
