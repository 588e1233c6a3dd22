package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"booker/clock"
	"booker/entity"
	"booker/gateway"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/google/uuid"
)

type PaymentStore interface {
	Create(ctx context.Context, p entity.Payment) error
	Get(ctx context.Context, paymentID string) (entity.Payment, error)
	GetByExternalRef(ctx context.Context, externalRef string) (entity.Payment, error)
	LatestPending(ctx context.Context, bookingID string) (entity.Payment, error)
	MarkPaid(ctx context.Context, paymentID, externalID string, raw []byte, now time.Time) (bool, error)
	MarkFailed(ctx context.Context, paymentID string, raw []byte, now time.Time) (bool, error)
	MarkRefunded(ctx context.Context, paymentID, amount, reason string, now time.Time) error
}

type BookingStore interface {
	Get(ctx context.Context, bookingID string) (entity.Booking, error)
}

// Reconciler owns the payment side of the booking lifecycle: it starts
// payment attempts against a gateway and applies verified outcomes back to
// the stores. Outcomes arrive twice for the same attempt (webhook plus
// verify poll) and in any order, so every apply is idempotent.
type Reconciler struct {
	payments PaymentStore
	bookings BookingStore
	gateways *gateway.Registry
	clock    clock.Clock
}

func NewReconciler(payments PaymentStore, bookings BookingStore, gateways *gateway.Registry, clk clock.Clock) Reconciler {
	return Reconciler{
		payments: payments,
		bookings: bookings,
		gateways: gateways,
		clock:    clk,
	}
}

type StartResult struct {
	PaymentID   string
	Gateway     string
	ExternalRef string
	// ClientSecret is handed to the customer to complete the payment with
	// the provider.
	ClientSecret string
}

// Start opens a payment attempt for a pending booking: it initiates the
// charge with the chosen gateway and records a pending payment row keyed by
// the provider's reference.
func (r Reconciler) Start(ctx context.Context, bookingID, gatewayName string) (StartResult, error) {
	gw, err := r.gateways.Get(gatewayName)
	if err != nil {
		return StartResult{}, err
	}

	b, err := r.bookings.Get(ctx, bookingID)
	if err != nil {
		return StartResult{}, err
	}
	if b.Status != entity.BookingStatusPending {
		return StartResult{}, entity.ErrInvalidTransition
	}

	paymentID := uuid.NewString()

	res, err := gw.Initiate(ctx, gateway.InitiateRequest{
		PaymentID:        paymentID,
		BookingReference: b.Reference,
		Amount:           b.Amount,
	})
	if err != nil {
		return StartResult{}, fmt.Errorf("initiating payment with %s: %w", gatewayName, err)
	}

	p := entity.Payment{
		ID:          paymentID,
		BookingID:   b.ID,
		Gateway:     gatewayName,
		Amount:      b.Amount,
		Status:      entity.PaymentPending,
		ExternalRef: res.ExternalRef,
		RawResponse: res.Raw,
		CreatedAt:   r.clock.Now(),
	}
	if err := r.payments.Create(ctx, p); err != nil {
		return StartResult{}, fmt.Errorf("creating payment: %w", err)
	}

	log.FromContext(ctx).
		WithField("booking_id", b.ID).
		WithField("payment_id", paymentID).
		WithField("gateway", gatewayName).
		Info("Payment started")

	return StartResult{
		PaymentID:    paymentID,
		Gateway:      gatewayName,
		ExternalRef:  res.ExternalRef,
		ClientSecret: res.ClientSecret,
	}, nil
}

// ApplyOutcome reconciles a verified gateway outcome with the stored payment
// attempt. Unknown references, gateway mismatches and repeats of an already
// applied outcome are dropped without error; only transport-level failures
// propagate so the caller can retry the delivery.
func (r Reconciler) ApplyOutcome(ctx context.Context, gatewayName string, o gateway.Outcome) error {
	logger := log.FromContext(ctx).
		WithField("gateway", gatewayName).
		WithField("external_ref", o.ExternalRef)

	if o.Pending {
		logger.Debug("Payment outcome still pending, nothing to apply")
		return nil
	}

	p, err := r.payments.GetByExternalRef(ctx, o.ExternalRef)
	if err != nil {
		if errors.Is(err, entity.ErrPaymentNotFound) {
			logger.Warn("Dropping outcome for unknown payment reference")
			return nil
		}
		return err
	}
	logger = logger.WithField("payment_id", p.ID)

	if p.Gateway != gatewayName {
		logger.Warn("Dropping outcome delivered through the wrong gateway")
		return nil
	}

	if p.Status != entity.PaymentPending {
		if (o.Paid && p.Status == entity.PaymentPaid) || (!o.Paid && p.Status == entity.PaymentFailed) {
			logger.Debug("Duplicate payment outcome, already applied")
		} else {
			logger.WithField("status", p.Status).Warn("Dropping outcome conflicting with terminal payment")
		}
		return nil
	}

	if o.Amount.Amount != "" && !o.Amount.Equal(p.Amount) {
		logger.WithField("amount", o.Amount.Amount).Warn("Dropping outcome with mismatched amount")
		return nil
	}

	now := r.clock.Now()

	if !o.Paid {
		applied, err := r.payments.MarkFailed(ctx, p.ID, o.Raw, now)
		if err != nil {
			return err
		}
		if applied {
			logger.Info("Payment failed")
		}
		return nil
	}

	applied, err := r.payments.MarkPaid(ctx, p.ID, o.ExternalID, o.Raw, now)
	if err != nil {
		if errors.Is(err, entity.ErrHoldExpired) || errors.Is(err, entity.ErrHoldMismatch) {
			// Money was captured but the hold is gone; the booking must not
			// be resurrected. Flag the attempt for a manual refund.
			logger.WithError(err).Error("Payment captured after hold expiry, refund required")
			return fmt.Errorf("applying paid outcome: %w", err)
		}
		return err
	}
	if applied {
		logger.Info("Payment applied, booking confirmed")
	} else {
		logger.Debug("Paid outcome not applied, booking no longer pending")
	}

	return nil
}

// VerifyBooking is the polling counterpart of the webhook path: it asks the
// gateway for the current state of the booking's latest payment attempt and
// applies the result. Used by the customer-facing confirm endpoint.
func (r Reconciler) VerifyBooking(ctx context.Context, bookingID string) error {
	b, err := r.bookings.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	switch b.Status {
	case entity.BookingStatusConfirmed, entity.BookingStatusCompleted:
		return nil
	case entity.BookingStatusPending:
	default:
		return entity.ErrInvalidTransition
	}

	p, err := r.payments.LatestPending(ctx, bookingID)
	if err != nil {
		if errors.Is(err, entity.ErrPaymentNotFound) {
			return entity.ErrPaymentNotVerified
		}
		return err
	}

	gw, err := r.gateways.Get(p.Gateway)
	if err != nil {
		return err
	}

	o, err := gw.Verify(ctx, p.ExternalRef)
	if err != nil {
		return fmt.Errorf("verifying payment with %s: %w", p.Gateway, err)
	}

	if err := r.ApplyOutcome(ctx, p.Gateway, o); err != nil {
		return err
	}
	if !o.Paid {
		return entity.ErrPaymentNotVerified
	}

	return nil
}

// Refund reverses a captured payment, fully by default or partially when an
// amount is given. Refunding an already refunded payment is a no-op.
func (r Reconciler) Refund(ctx context.Context, paymentID, amount, reason string) error {
	p, err := r.payments.Get(ctx, paymentID)
	if err != nil {
		return err
	}

	switch p.Status {
	case entity.PaymentRefunded:
		log.FromContext(ctx).WithField("payment_id", paymentID).Debug("Payment already refunded, skipping")
		return nil
	case entity.PaymentPaid:
	default:
		return entity.ErrPaymentNotPaid
	}

	if amount == "" {
		amount = p.Amount.Amount
	}
	refund := entity.Money{Amount: amount, Currency: p.Amount.Currency}

	refundCents, err := refund.Cents()
	if err != nil {
		return fmt.Errorf("parsing refund amount: %w", err)
	}
	paidCents, err := p.Amount.Cents()
	if err != nil {
		return fmt.Errorf("parsing paid amount: %w", err)
	}
	if refundCents <= 0 || refundCents > paidCents {
		return fmt.Errorf("refund amount %s out of range: %w", amount, entity.ErrPaymentNotPaid)
	}

	gw, err := r.gateways.Get(p.Gateway)
	if err != nil {
		return err
	}

	res, err := gw.Refund(ctx, p.ExternalRef, refund, reason)
	if err != nil {
		return fmt.Errorf("refunding payment with %s: %w", p.Gateway, err)
	}

	if err := r.payments.MarkRefunded(ctx, p.ID, amount, reason, r.clock.Now()); err != nil {
		return err
	}

	log.FromContext(ctx).
		WithField("payment_id", p.ID).
		WithField("refund_ref", res.RefundRef).
		WithField("amount", amount).
		Info("Payment refunded")

	return nil
}
