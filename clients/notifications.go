package clients

import (
	"context"
	"fmt"

	"booker/entity"
)

type NotificationsClient struct {
	client *Client
}

func NewNotificationsClient(client *Client) NotificationsClient {
	return NotificationsClient{
		client: client,
	}
}

func (c NotificationsClient) SendBookingConfirmed(ctx context.Context, idempotencyKey, customerID, reference string) error {
	body := map[string]string{
		"customer_id": customerID,
		"reference":   reference,
	}

	if err := c.client.postJSON(ctx, "/notifications/booking-confirmed", idempotencyKey, body); err != nil {
		return fmt.Errorf("booking confirmed notification request: %w", err)
	}

	return nil
}

func (c NotificationsClient) SendBookingCancelled(ctx context.Context, idempotencyKey, customerID, reference, reason string) error {
	body := map[string]string{
		"customer_id": customerID,
		"reference":   reference,
		"reason":      reason,
	}

	if err := c.client.postJSON(ctx, "/notifications/booking-cancelled", idempotencyKey, body); err != nil {
		return fmt.Errorf("booking cancelled notification request: %w", err)
	}

	return nil
}

func (c NotificationsClient) SendPaymentRefunded(ctx context.Context, idempotencyKey, customerID, bookingID string, amount entity.Money) error {
	body := map[string]string{
		"customer_id": customerID,
		"booking_id":  bookingID,
		"amount":      amount.Amount,
		"currency":    amount.Currency,
	}

	if err := c.client.postJSON(ctx, "/notifications/payment-refunded", idempotencyKey, body); err != nil {
		return fmt.Errorf("payment refunded notification request: %w", err)
	}

	return nil
}
