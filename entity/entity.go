package entity

import "time"

const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCompleted = "completed"
	BookingStatusCancelled = "cancelled"
	BookingStatusRefunded  = "refunded"

	PaymentStatusUnpaid   = "unpaid"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"

	SeatStatusAvailable = "available"
	SeatStatusHeld      = "held"
	SeatStatusBooked    = "booked"
	SeatStatusBlocked   = "blocked"

	ProductFlightSeat  = "flight_seat"
	ProductPackageSlot = "package_slot"
)

type Booking struct {
	ID            string     `json:"booking_id" db:"booking_id"`
	Reference     string     `json:"reference" db:"reference"`
	CustomerID    string     `json:"customer_id" db:"customer_id"`
	FlightID      string     `json:"flight_id" db:"flight_id"`
	Product       string     `json:"product" db:"product"`
	Amount        Money      `json:"amount"`
	Status        string     `json:"status" db:"status"`
	PaymentStatus string     `json:"payment_status" db:"payment_status"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty" db:"confirmed_at"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancelReason  string     `json:"cancel_reason,omitempty" db:"cancel_reason"`
	CancelActor   string     `json:"cancel_actor,omitempty" db:"cancel_actor"`
}

// Terminal reports whether no further status transition is allowed.
// Audit fields may still change on refund.
func (b Booking) Terminal() bool {
	switch b.Status {
	case BookingStatusCompleted, BookingStatusCancelled, BookingStatusRefunded:
		return true
	}
	return false
}

type Money struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type Seat struct {
	ID            string     `json:"seat_id" db:"seat_id"`
	FlightID      string     `json:"flight_id" db:"flight_id"`
	Number        string     `json:"seat_number" db:"seat_number"`
	Class         string     `json:"class" db:"class"`
	Price         Money      `json:"price"`
	Status        string     `json:"status" db:"status"`
	HeldBy        *string    `json:"held_by,omitempty" db:"held_by"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty" db:"hold_expires_at"`
}

type Payment struct {
	ID           string     `json:"payment_id" db:"payment_id"`
	BookingID    string     `json:"booking_id" db:"booking_id"`
	Gateway      string     `json:"gateway" db:"gateway"`
	Amount       Money      `json:"amount"`
	Status       string     `json:"status" db:"status"`
	ExternalRef  string     `json:"external_ref" db:"external_ref"`
	ExternalID   string     `json:"external_id,omitempty" db:"external_id"`
	RawResponse  []byte     `json:"-" db:"raw_response"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty" db:"processed_at"`
	RefundAmount string     `json:"refund_amount,omitempty" db:"refund_amount"`
	RefundReason string     `json:"refund_reason,omitempty" db:"refund_reason"`
	RefundedAt   *time.Time `json:"refunded_at,omitempty" db:"refunded_at"`
}

const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentFailed   = "failed"
	PaymentRefunded = "refunded"
)

type Flight struct {
	ID            string    `json:"flight_id" db:"flight_id"`
	Number        string    `json:"flight_number" db:"flight_number"`
	Origin        string    `json:"origin" db:"origin"`
	Destination   string    `json:"destination" db:"destination"`
	DepartureTime time.Time `json:"departure_time" db:"departure_time"`
}
