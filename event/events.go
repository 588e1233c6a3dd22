package event

import (
	"time"

	"booker/entity"

	"github.com/ThreeDotsLabs/watermill"
)

type header struct {
	ID             string    `json:"id"`
	PublishedAt    time.Time `json:"published_at"`
	IdempotencyKey string    `json:"idempotency_key"`
}

func newHeader(idempotencyKey string) header {
	return header{
		ID:             watermill.NewUUID(),
		PublishedAt:    time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
	}
}

type BookingConfirmed struct {
	Header      header       `json:"header"`
	BookingID   string       `json:"booking_id"`
	Reference   string       `json:"reference"`
	CustomerID  string       `json:"customer_id"`
	Amount      entity.Money `json:"amount"`
	ConfirmedAt time.Time    `json:"confirmed_at"`
}

func NewBookingConfirmed(b entity.Booking, confirmedAt time.Time) BookingConfirmed {
	return BookingConfirmed{
		Header:      newHeader("booking-confirmed-" + b.ID),
		BookingID:   b.ID,
		Reference:   b.Reference,
		CustomerID:  b.CustomerID,
		Amount:      b.Amount,
		ConfirmedAt: confirmedAt,
	}
}

type BookingCancelled struct {
	Header      header       `json:"header"`
	BookingID   string       `json:"booking_id"`
	Reference   string       `json:"reference"`
	CustomerID  string       `json:"customer_id"`
	Amount      entity.Money `json:"amount"`
	Reason      string       `json:"reason"`
	CancelledAt time.Time    `json:"cancelled_at"`
}

func NewBookingCancelled(b entity.Booking, reason string, cancelledAt time.Time) BookingCancelled {
	return BookingCancelled{
		Header:      newHeader("booking-cancelled-" + b.ID),
		BookingID:   b.ID,
		Reference:   b.Reference,
		CustomerID:  b.CustomerID,
		Amount:      b.Amount,
		Reason:      reason,
		CancelledAt: cancelledAt,
	}
}

type PaymentRefunded struct {
	Header     header       `json:"header"`
	PaymentID  string       `json:"payment_id"`
	BookingID  string       `json:"booking_id"`
	CustomerID string       `json:"customer_id"`
	Amount     entity.Money `json:"amount"`
	Reason     string       `json:"reason"`
	RefundedAt time.Time    `json:"refunded_at"`
}

func NewPaymentRefunded(p entity.Payment, customerID, reason string, refundedAt time.Time) PaymentRefunded {
	return PaymentRefunded{
		Header:     newHeader("payment-refunded-" + p.ID),
		PaymentID:  p.ID,
		BookingID:  p.BookingID,
		CustomerID: customerID,
		Amount:     p.Amount,
		Reason:     reason,
		RefundedAt: refundedAt,
	}
}
