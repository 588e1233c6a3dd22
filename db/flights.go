package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"booker/entity"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type FlightRepo struct {
	db *sqlx.DB
}

func NewFlightRepo(db *sqlx.DB) FlightRepo {
	return FlightRepo{
		db: db,
	}
}

// Create inserts the flight and bulk-generates its seats in one transaction.
func (r FlightRepo) Create(ctx context.Context, flight entity.Flight, seats []entity.Seat) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := createFlight(ctx, tx, flight, seats); err != nil {
		return errors.Join(err, tx.Rollback())
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func createFlight(ctx context.Context, tx *sql.Tx, flight entity.Flight, seats []entity.Seat) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO flights
		(flight_id, flight_number, origin, destination, departure_time)
		VALUES ($1, $2, $3, $4, $5);`,
		flight.ID, flight.Number, flight.Origin, flight.Destination, flight.DepartureTime)
	if err != nil {
		return fmt.Errorf("inserting flight: %w", err)
	}

	for _, seat := range seats {
		_, err := tx.ExecContext(ctx, `INSERT INTO seats
			(seat_id, flight_id, seat_number, class, price_amount, price_currency, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7);`,
			seat.ID, flight.ID, seat.Number, seat.Class, seat.Price.Amount, seat.Price.Currency, entity.SeatStatusAvailable)
		if err != nil {
			return fmt.Errorf("inserting seat %s: %w", seat.Number, err)
		}
	}

	return nil
}

func (r FlightRepo) Get(ctx context.Context, flightID string) (entity.Flight, error) {
	row := r.db.QueryRowxContext(ctx, `SELECT flight_id, flight_number, origin, destination, departure_time
		FROM flights WHERE flight_id = $1`, flightID)

	var f entity.Flight
	if err := row.Scan(&f.ID, &f.Number, &f.Origin, &f.Destination, &f.DepartureTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Flight{}, entity.ErrFlightNotFound
		}
		return entity.Flight{}, fmt.Errorf("scanning flight: %w", err)
	}

	return f, nil
}
