package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"booker/clock"
	"booker/db"
	"booker/entity"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v3"
)

type BookingStore interface {
	Create(ctx context.Context, b entity.Booking) error
	Get(ctx context.Context, bookingID string) (entity.Booking, error)
	Confirm(ctx context.Context, bookingID string, now time.Time) error
	Cancel(ctx context.Context, bookingID, reason, actor string, now time.Time) (bool, error)
	Complete(ctx context.Context, bookingID string) error
}

type Inventory interface {
	Acquire(ctx context.Context, sel db.SeatSelector, holderID string) (entity.Seat, error)
	Release(ctx context.Context, seatID string) error
	HoldTTL() time.Duration
}

// Service drives the booking lifecycle: pending on create, confirmed once
// payment is verified, cancelled by the customer or the expiry sweeper.
type Service struct {
	bookings  BookingStore
	inventory Inventory
	clock     clock.Clock
}

func NewService(bookings BookingStore, inv Inventory, clk clock.Clock) Service {
	return Service{
		bookings:  bookings,
		inventory: inv,
		clock:     clk,
	}
}

type CreateInput struct {
	CustomerID string
	FlightID   string
	SeatNumber string
	Class      string
	Quote      entity.Money
}

// Create acquires a hold on matching inventory and persists a pending
// booking that expires with the hold. The quote must still match the seat
// price; a stale quote releases the hold and fails.
func (s Service) Create(ctx context.Context, in CreateInput) (entity.Booking, error) {
	bookingID := uuid.NewString()

	seat, err := s.inventory.Acquire(ctx, db.SeatSelector{
		FlightID: in.FlightID,
		Number:   in.SeatNumber,
		Class:    in.Class,
	}, bookingID)
	if err != nil {
		return entity.Booking{}, err
	}

	if !seat.Price.Equal(in.Quote) {
		return entity.Booking{}, errors.Join(entity.ErrInvalidQuote, s.inventory.Release(ctx, seat.ID))
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.inventory.HoldTTL())

	b := entity.Booking{
		ID:            bookingID,
		Reference:     "BK-" + shortuuid.New(),
		CustomerID:    in.CustomerID,
		FlightID:      in.FlightID,
		Product:       entity.ProductFlightSeat,
		Amount:        seat.Price,
		Status:        entity.BookingStatusPending,
		PaymentStatus: entity.PaymentStatusUnpaid,
		CreatedAt:     now,
		ExpiresAt:     &expiresAt,
	}

	if err := s.bookings.Create(ctx, b); err != nil {
		return entity.Booking{}, errors.Join(fmt.Errorf("creating booking: %w", err), s.inventory.Release(ctx, seat.ID))
	}

	log.FromContext(ctx).
		WithField("booking_id", b.ID).
		WithField("seat", seat.Number).
		Info("Booking created")

	return b, nil
}

func (s Service) Get(ctx context.Context, bookingID string) (entity.Booking, error) {
	return s.bookings.Get(ctx, bookingID)
}

// Confirm transitions a pending, paid booking to confirmed and books its
// held seats. Only the payment reconciler calls this; an unpaid or already
// terminal booking is a contract violation, while a repeated confirm of a
// confirmed booking is absorbed as a no-op.
func (s Service) Confirm(ctx context.Context, bookingID string) error {
	if err := s.bookings.Confirm(ctx, bookingID, s.clock.Now()); err != nil {
		return err
	}

	log.FromContext(ctx).WithField("booking_id", bookingID).Info("Booking confirmed")
	return nil
}

// Cancel terminates a pending or confirmed booking and releases its
// inventory. A repeated cancel is a no-op so duplicate webhook deliveries
// and overlapping sweeper runs are harmless.
func (s Service) Cancel(ctx context.Context, bookingID, reason, actor string) error {
	cancelled, err := s.bookings.Cancel(ctx, bookingID, reason, actor, s.clock.Now())
	if err != nil {
		return err
	}

	logger := log.FromContext(ctx).WithField("booking_id", bookingID)
	if !cancelled {
		logger.Debug("Booking already cancelled, skipping")
		return nil
	}

	logger.WithField("reason", reason).Info("Booking cancelled")
	return nil
}

// Complete marks a confirmed booking as consumed, once the flight has flown.
func (s Service) Complete(ctx context.Context, bookingID string) error {
	return s.bookings.Complete(ctx, bookingID)
}
