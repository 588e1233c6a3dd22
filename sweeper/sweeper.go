package sweeper

import (
	"context"
	"time"

	"booker/clock"

	"github.com/sirupsen/logrus"
)

const batchSize = 100

type BookingLister interface {
	ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error)
}

type Canceller interface {
	Cancel(ctx context.Context, bookingID, reason, actor string) error
}

// Sweeper cancels pending bookings whose hold has lapsed. It is a safety
// net: expired holds are already treated as free by the acquire path, the
// sweeper just makes the cancellation visible and releases the rows.
type Sweeper struct {
	bookings   BookingLister
	bookingSvc Canceller
	clock      clock.Clock
	interval   time.Duration
	logger     logrus.FieldLogger
}

func New(bookings BookingLister, svc Canceller, clk clock.Clock, interval time.Duration, logger logrus.FieldLogger) Sweeper {
	return Sweeper{
		bookings:   bookings,
		bookingSvc: svc,
		clock:      clk,
		interval:   interval,
		logger:     logger,
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.WithError(err).Error("Sweep failed")
			}
		}
	}
}

// Sweep cancels expired bookings in batches until none remain. A booking
// cancelled concurrently by another actor is absorbed by the idempotent
// cancel, so overlapping sweeps are harmless.
func (s Sweeper) Sweep(ctx context.Context) error {
	now := s.clock.Now()

	for {
		ids, err := s.bookings.ListExpired(ctx, now, batchSize)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		for _, id := range ids {
			if err := s.bookingSvc.Cancel(ctx, id, "expired", "sweeper"); err != nil {
				s.logger.WithError(err).
					WithField("booking_id", id).
					Error("Failed to cancel expired booking")
			}
		}

		if len(ids) < batchSize {
			return nil
		}
	}
}
