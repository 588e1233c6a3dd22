package command

import (
	"time"

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

type RefundPayment struct {
	Header    header `json:"header"`
	PaymentID string `json:"payment_id"`
	Amount    string `json:"amount"`
	Reason    string `json:"reason"`
}

func NewRefundPayment(paymentID, amount, reason string) RefundPayment {
	return RefundPayment{
		Header:    newHeader("refund-payment-" + paymentID),
		PaymentID: paymentID,
		Amount:    amount,
		Reason:    reason,
	}
}
