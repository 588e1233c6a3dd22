package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func InitialiseDB(ctx context.Context, db *sqlx.DB) error {
	if err := createFlightsTable(ctx, db); err != nil {
		return fmt.Errorf("creating flights table: %w", err)
	}

	if err := createSeatsTable(ctx, db); err != nil {
		return fmt.Errorf("creating seats table: %w", err)
	}

	if err := createBookingsTable(ctx, db); err != nil {
		return fmt.Errorf("creating bookings table: %w", err)
	}

	if err := createPaymentsTable(ctx, db); err != nil {
		return fmt.Errorf("creating payments table: %w", err)
	}

	return nil
}

func createFlightsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS flights (
		flight_id UUID PRIMARY KEY,
		flight_number VARCHAR(16) NOT NULL,
		origin VARCHAR(8) NOT NULL,
		destination VARCHAR(8) NOT NULL,
		departure_time TIMESTAMP WITH TIME ZONE NOT NULL
	);`)
	return err
}

func createSeatsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS seats (
		seat_id UUID PRIMARY KEY,
		flight_id UUID NOT NULL REFERENCES flights (flight_id),
		seat_number VARCHAR(8) NOT NULL,
		class VARCHAR(16) NOT NULL,
		price_amount NUMERIC(10, 2) NOT NULL,
		price_currency CHAR(3) NOT NULL,
		status VARCHAR(16) NOT NULL,
		held_by UUID,
		hold_expires_at TIMESTAMP WITH TIME ZONE,
		UNIQUE (flight_id, seat_number)
	);`)
	return err
}

func createBookingsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS bookings (
		booking_id UUID PRIMARY KEY,
		reference VARCHAR(32) NOT NULL UNIQUE,
		customer_id VARCHAR(64) NOT NULL,
		flight_id UUID NOT NULL REFERENCES flights (flight_id),
		product VARCHAR(32) NOT NULL,
		amount NUMERIC(10, 2) NOT NULL,
		currency CHAR(3) NOT NULL,
		status VARCHAR(16) NOT NULL,
		payment_status VARCHAR(16) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		expires_at TIMESTAMP WITH TIME ZONE,
		confirmed_at TIMESTAMP WITH TIME ZONE,
		cancelled_at TIMESTAMP WITH TIME ZONE,
		cancel_reason VARCHAR(255) NOT NULL DEFAULT '',
		cancel_actor VARCHAR(64) NOT NULL DEFAULT ''
	);`)
	return err
}

func createPaymentsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS payments (
		payment_id UUID PRIMARY KEY,
		booking_id UUID NOT NULL REFERENCES bookings (booking_id),
		gateway VARCHAR(32) NOT NULL,
		amount NUMERIC(10, 2) NOT NULL,
		currency CHAR(3) NOT NULL,
		status VARCHAR(16) NOT NULL,
		external_ref VARCHAR(255) NOT NULL DEFAULT '',
		external_id VARCHAR(255) NOT NULL DEFAULT '',
		raw_response JSONB,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		processed_at TIMESTAMP WITH TIME ZONE,
		refund_amount NUMERIC(10, 2),
		refund_reason VARCHAR(255) NOT NULL DEFAULT '',
		refunded_at TIMESTAMP WITH TIME ZONE
	);`)
	return err
}
