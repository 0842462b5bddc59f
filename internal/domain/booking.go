package domain

import (
	"fmt"
	"strings"
	"time"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "PENDING"
	StatusConfirmed BookingStatus = "CONFIRMED"
	StatusCheckedIn BookingStatus = "CHECKED_IN"
	StatusCompleted BookingStatus = "COMPLETED"
	StatusCancelled BookingStatus = "CANCELLED"
	StatusNoShow    BookingStatus = "NO_SHOW"
)

func ParseBookingStatus(s string) (BookingStatus, error) {
	switch st := BookingStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPending, StatusConfirmed, StatusCheckedIn, StatusCompleted, StatusCancelled, StatusNoShow:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown booking status %q", ErrValidation, s)
	}
}

// Terminal statuses accept no further command.
func (s BookingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// Active bookings hold their unit for the stay dates.
func (s BookingStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusCheckedIn
}

type BookingSource string

const (
	SourceOnline BookingSource = "online"
	SourceWalkIn BookingSource = "walk_in"
)

type Booking struct {
	ID              string        `json:"id"`
	BusinessID      string        `json:"businessId"`
	UnitID          string        `json:"unitId"`
	GuestID         string        `json:"guestId"`
	GuestName       string        `json:"guestName,omitempty"`
	CheckIn         Date          `json:"checkIn"`
	CheckOut        Date          `json:"checkOut"`
	TotalPrice      int64         `json:"totalPrice"`
	Status          BookingStatus `json:"status"`
	VerifiedPayment bool          `json:"verifiedPayment"`
	PaymentEvidence string        `json:"paymentEvidence,omitempty"`
	PromotionID     string        `json:"promotionId,omitempty"`
	Notes           string        `json:"notes,omitempty"`
	Source          BookingSource `json:"source"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// NewBooking validates construction invariants. A booking that fails them is
// never created.
func NewBooking(b Booking) (Booking, error) {
	switch {
	case b.ID == "":
		return Booking{}, fmt.Errorf("%w: booking id is required", ErrValidation)
	case b.BusinessID == "" || b.UnitID == "" || b.GuestID == "":
		return Booking{}, fmt.Errorf("%w: business, unit and guest are required", ErrValidation)
	case b.TotalPrice < 0:
		return Booking{}, fmt.Errorf("%w: total price must not be negative", ErrValidation)
	}
	if err := ValidateStay(b.CheckIn, b.CheckOut); err != nil {
		return Booking{}, err
	}
	if b.Status == "" {
		b.Status = StatusPending
	}
	st, err := ParseBookingStatus(string(b.Status))
	if err != nil {
		return Booking{}, err
	}
	b.Status = st
	if b.Source == "" {
		b.Source = SourceOnline
	}
	return b, nil
}

func ValidateStay(in, out Date) error {
	if in.IsZero() || out.IsZero() {
		return fmt.Errorf("%w: check-in and check-out dates are required", ErrValidation)
	}
	if !out.After(in) {
		return fmt.Errorf("%w: check-out %s must be after check-in %s", ErrValidation, out, in)
	}
	return nil
}

func (b Booking) Nights() int { return b.CheckIn.DaysUntil(b.CheckOut) }

// Overlaps reports whether the stay [in, out) intersects b's stay.
func (b Booking) Overlaps(in, out Date) bool {
	return in.Before(b.CheckOut) && b.CheckIn.Before(out)
}

type Command string

const (
	CmdCreateBooking     Command = "create_booking"
	CmdCreateWalkIn      Command = "create_walk_in"
	CmdConfirmBooking    Command = "confirm_booking"
	CmdCancelBooking     Command = "cancel_booking"
	CmdCheckIn           Command = "check_in"
	CmdCheckOut          Command = "check_out"
	CmdMarkNoShow        Command = "mark_no_show"
	CmdModifyDates       Command = "modify_dates"
	CmdVerifyPayment     Command = "verify_payment"
	CmdRejectPayment     Command = "reject_payment"
	CmdSetUnitStatus     Command = "set_unit_status"
	CmdSetGuestBlacklist Command = "set_guest_blacklist"
	CmdCreatePromotion   Command = "create_promotion"
	CmdApplyPromotion    Command = "apply_promotion"
	CmdViewAudit         Command = "view_audit"
	CmdViewGuestHistory  Command = "view_guest_history"
	CmdListBookings      Command = "list_bookings"
	CmdListUnits         Command = "list_units"
)

var transitions = map[BookingStatus]map[Command]BookingStatus{
	StatusPending: {
		CmdConfirmBooking: StatusConfirmed,
		CmdCancelBooking:  StatusCancelled,
	},
	StatusConfirmed: {
		CmdCheckIn:       StatusCheckedIn,
		CmdCancelBooking: StatusCancelled,
		CmdMarkNoShow:    StatusNoShow,
	},
	StatusCheckedIn: {
		CmdCheckOut: StatusCompleted,
	},
}

// Next returns the status cmd moves b to, or ErrInvalidTransition. It only
// consults the state table; preconditions such as dates and payment are the
// lifecycle manager's job.
func (b Booking) Next(cmd Command) (BookingStatus, error) {
	if to, ok := transitions[b.Status][cmd]; ok {
		return to, nil
	}
	return "", fmt.Errorf("%w: %s not allowed from %s", ErrInvalidTransition, cmd, b.Status)
}
