package inventory

import (
	"context"
	"fmt"
	"time"

	"booker/clock"
	"booker/db"
	"booker/entity"
)

type SeatStore interface {
	Acquire(ctx context.Context, sel db.SeatSelector, holderID string, expiresAt, now time.Time) (entity.Seat, error)
	Release(ctx context.Context, seatID string) error
	ListByFlight(ctx context.Context, flightID string) ([]entity.Seat, error)
}

// Manager is the only writer of seat state. Holds are time-bounded and
// exclusive; every transition is a single conditional update in the store.
type Manager struct {
	seats   SeatStore
	clock   clock.Clock
	holdTTL time.Duration
}

func NewManager(seats SeatStore, clk clock.Clock, holdTTL time.Duration) Manager {
	return Manager{
		seats:   seats,
		clock:   clk,
		holdTTL: holdTTL,
	}
}

func (m Manager) HoldTTL() time.Duration {
	return m.holdTTL
}

// Acquire claims one seat matching the selector for the holder, stamping the
// hold expiry. At most one caller wins a given seat.
func (m Manager) Acquire(ctx context.Context, sel db.SeatSelector, holderID string) (entity.Seat, error) {
	now := m.clock.Now()
	seat, err := m.seats.Acquire(ctx, sel, holderID, now.Add(m.holdTTL), now)
	if err != nil {
		return entity.Seat{}, err
	}
	return seat, nil
}

// Release is idempotent; freeing a seat that is already available is a no-op.
func (m Manager) Release(ctx context.Context, seatID string) error {
	if err := m.seats.Release(ctx, seatID); err != nil {
		return fmt.Errorf("releasing seat %s: %w", seatID, err)
	}
	return nil
}

func (m Manager) ListForFlight(ctx context.Context, flightID string) ([]entity.Seat, error) {
	return m.seats.ListByFlight(ctx, flightID)
}
