package message

import (
	"context"
	"fmt"

	"booker/command"
	"booker/entity"
	"booker/event"
)

type LoyaltyService interface {
	CreditPoints(ctx context.Context, idempotencyKey, customerID string, amount entity.Money) error
	RevokePoints(ctx context.Context, idempotencyKey, customerID string, amount entity.Money) error
}

type NotificationSender interface {
	SendBookingConfirmed(ctx context.Context, idempotencyKey, customerID, reference string) error
	SendBookingCancelled(ctx context.Context, idempotencyKey, customerID, reference, reason string) error
	SendPaymentRefunded(ctx context.Context, idempotencyKey, customerID, bookingID string, amount entity.Money) error
}

type PaymentRefunder interface {
	Refund(ctx context.Context, paymentID, amount, reason string) error
}

func handleCreditLoyaltyPoints(loyalty LoyaltyService) func(ctx context.Context, e *event.BookingConfirmed) error {
	return func(ctx context.Context, e *event.BookingConfirmed) error {
		if err := loyalty.CreditPoints(ctx, e.Header.IdempotencyKey, e.CustomerID, e.Amount); err != nil {
			return fmt.Errorf("crediting loyalty points: %w", err)
		}

		return nil
	}
}

func handleNotifyBookingConfirmed(notifier NotificationSender) func(ctx context.Context, e *event.BookingConfirmed) error {
	return func(ctx context.Context, e *event.BookingConfirmed) error {
		if err := notifier.SendBookingConfirmed(ctx, e.Header.IdempotencyKey, e.CustomerID, e.Reference); err != nil {
			return fmt.Errorf("sending booking confirmed notification: %w", err)
		}

		return nil
	}
}

func handleNotifyBookingCancelled(notifier NotificationSender) func(ctx context.Context, e *event.BookingCancelled) error {
	return func(ctx context.Context, e *event.BookingCancelled) error {
		if err := notifier.SendBookingCancelled(ctx, e.Header.IdempotencyKey, e.CustomerID, e.Reference, e.Reason); err != nil {
			return fmt.Errorf("sending booking cancelled notification: %w", err)
		}

		return nil
	}
}

func handleRevokeLoyaltyPoints(loyalty LoyaltyService) func(ctx context.Context, e *event.PaymentRefunded) error {
	return func(ctx context.Context, e *event.PaymentRefunded) error {
		if err := loyalty.RevokePoints(ctx, e.Header.IdempotencyKey, e.CustomerID, e.Amount); err != nil {
			return fmt.Errorf("revoking loyalty points: %w", err)
		}

		return nil
	}
}

func handleNotifyPaymentRefunded(notifier NotificationSender) func(ctx context.Context, e *event.PaymentRefunded) error {
	return func(ctx context.Context, e *event.PaymentRefunded) error {
		if err := notifier.SendPaymentRefunded(ctx, e.Header.IdempotencyKey, e.CustomerID, e.BookingID, e.Amount); err != nil {
			return fmt.Errorf("sending payment refunded notification: %w", err)
		}

		return nil
	}
}

func handleRefundPayment(refunder PaymentRefunder) func(ctx context.Context, cmd *command.RefundPayment) error {
	return func(ctx context.Context, cmd *command.RefundPayment) error {
		if err := refunder.Refund(ctx, cmd.PaymentID, cmd.Amount, cmd.Reason); err != nil {
			return fmt.Errorf("refunding payment: %w", err)
		}

		return nil
	}
}
