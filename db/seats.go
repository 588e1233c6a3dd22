package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"booker/entity"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type SeatRepo struct {
	db *sqlx.DB
}

func NewSeatRepo(db *sqlx.DB) SeatRepo {
	return SeatRepo{
		db: db,
	}
}

// SeatSelector narrows which seats of a flight qualify for a hold. An empty
// Number or Class matches any.
type SeatSelector struct {
	FlightID string
	Number   string
	Class    string
}

const acquireQuery = `UPDATE seats
	SET status = $1, held_by = $2, hold_expires_at = $3
	WHERE seat_id = (
		SELECT seat_id FROM seats
		WHERE flight_id = $4
			AND ($5 = '' OR seat_number = $5)
			AND ($6 = '' OR class = $6)
			AND (status = $7 OR (status = $1 AND hold_expires_at <= $8))
		ORDER BY seat_number
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	)
	AND (status = $7 OR (status = $1 AND hold_expires_at <= $8))
	RETURNING seat_id, seat_number, class, price_amount, price_currency`

// Acquire transitions one matching seat to held in a single conditional
// update. Selection is deterministic, lowest seat number first, so repeated
// attempts do not thrash across the cabin. Expired holds count as available;
// the TTL check here is the same comparison the sweeper and finalize use.
func (r SeatRepo) Acquire(ctx context.Context, sel SeatSelector, holderID string, expiresAt, now time.Time) (entity.Seat, error) {
	// A competing transaction can invalidate the chosen row between the
	// subquery and the outer check; retry picks the next candidate.
	for attempt := 0; attempt < 3; attempt++ {
		row := r.db.QueryRowxContext(ctx, acquireQuery,
			entity.SeatStatusHeld, holderID, expiresAt,
			sel.FlightID, sel.Number, sel.Class,
			entity.SeatStatusAvailable, now)

		var seat entity.Seat
		err := row.Scan(&seat.ID, &seat.Number, &seat.Class, &seat.Price.Amount, &seat.Price.Currency)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return entity.Seat{}, fmt.Errorf("acquiring seat: %w", err)
		}

		seat.FlightID = sel.FlightID
		seat.Status = entity.SeatStatusHeld
		seat.HeldBy = &holderID
		seat.HoldExpiresAt = &expiresAt
		return seat, nil
	}

	return entity.Seat{}, entity.ErrNoSeatsAvailable
}

// Release returns a seat to the pool. Releasing an already-available seat is
// a no-op, not an error.
func (r SeatRepo) Release(ctx context.Context, seatID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE seats
		SET status = $1, held_by = NULL, hold_expires_at = NULL
		WHERE seat_id = $2 AND status IN ($3, $4)`,
		entity.SeatStatusAvailable, seatID, entity.SeatStatusHeld, entity.SeatStatusBooked)
	if err != nil {
		return fmt.Errorf("releasing seat: %w", err)
	}
	return nil
}

func (r SeatRepo) ListByFlight(ctx context.Context, flightID string) ([]entity.Seat, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT seat_id, flight_id, seat_number, class,
		price_amount, price_currency, status, held_by, hold_expires_at
		FROM seats WHERE flight_id = $1 ORDER BY seat_number`, flightID)
	if err != nil {
		return nil, fmt.Errorf("querying seats: %w", err)
	}
	defer rows.Close()

	var seats []entity.Seat
	for rows.Next() {
		var s entity.Seat
		if err := rows.Scan(&s.ID, &s.FlightID, &s.Number, &s.Class,
			&s.Price.Amount, &s.Price.Currency, &s.Status, &s.HeldBy, &s.HoldExpiresAt); err != nil {
			return nil, fmt.Errorf("scanning seat: %w", err)
		}
		seats = append(seats, s)
	}

	return seats, rows.Err()
}

func (r SeatRepo) Get(ctx context.Context, seatID string) (entity.Seat, error) {
	row := r.db.QueryRowxContext(ctx, `SELECT seat_id, flight_id, seat_number, class,
		price_amount, price_currency, status, held_by, hold_expires_at
		FROM seats WHERE seat_id = $1`, seatID)

	var s entity.Seat
	err := row.Scan(&s.ID, &s.FlightID, &s.Number, &s.Class,
		&s.Price.Amount, &s.Price.Currency, &s.Status, &s.HeldBy, &s.HoldExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Seat{}, entity.ErrNoSeatsAvailable
	}
	if err != nil {
		return entity.Seat{}, fmt.Errorf("scanning seat: %w", err)
	}

	return s, nil
}

// finalizeSeatsTx flips a booking's held seats to booked. It succeeds only
// while the hold is alive and owned; otherwise the caller must roll back and
// restart the booking flow.
func finalizeSeatsTx(ctx context.Context, tx *sql.Tx, bookingID string, now time.Time) error {
	res, err := tx.ExecContext(ctx, `UPDATE seats
		SET status = $1, hold_expires_at = NULL
		WHERE held_by = $2 AND status = $3 AND hold_expires_at > $4`,
		entity.SeatStatusBooked, bookingID, entity.SeatStatusHeld, now)
	if err != nil {
		return fmt.Errorf("finalizing seats: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var held int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM seats WHERE held_by = $1`, bookingID).Scan(&held); err != nil {
		return fmt.Errorf("counting held seats: %w", err)
	}
	if held == 0 {
		return entity.ErrHoldMismatch
	}
	return entity.ErrHoldExpired
}

// releaseSeatsTx frees every seat a booking holds, whether held or booked.
func releaseSeatsTx(ctx context.Context, tx *sql.Tx, bookingID string) error {
	_, err := tx.ExecContext(ctx, `UPDATE seats
		SET status = $1, held_by = NULL, hold_expires_at = NULL
		WHERE held_by = $2 AND status IN ($3, $4)`,
		entity.SeatStatusAvailable, bookingID, entity.SeatStatusHeld, entity.SeatStatusBooked)
	if err != nil {
		return fmt.Errorf("releasing seats: %w", err)
	}
	return nil
}
