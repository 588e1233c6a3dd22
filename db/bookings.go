package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"booker/entity"
	"booker/event"
	"booker/message"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const bookingColumns = `booking_id, reference, customer_id, flight_id, product,
	amount, currency, status, payment_status, created_at, expires_at,
	confirmed_at, cancelled_at, cancel_reason, cancel_actor`

type BookingRepo struct {
	db     *sqlx.DB
	logger watermill.LoggerAdapter
}

func NewBookingRepo(db *sqlx.DB, logger watermill.LoggerAdapter) BookingRepo {
	return BookingRepo{
		db:     db,
		logger: logger,
	}
}

func (r BookingRepo) Create(ctx context.Context, b entity.Booking) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO bookings
		(booking_id, reference, customer_id, flight_id, product, amount, currency,
		status, payment_status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);`,
		b.ID, b.Reference, b.CustomerID, b.FlightID, b.Product,
		b.Amount.Amount, b.Amount.Currency, b.Status, b.PaymentStatus, b.CreatedAt, b.ExpiresAt)
	if err != nil {
		return fmt.Errorf("inserting booking: %w", err)
	}
	return nil
}

func (r BookingRepo) Get(ctx context.Context, bookingID string) (entity.Booking, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE booking_id = $1`, bookingID)
	return scanBooking(row)
}

func (r BookingRepo) GetByReference(ctx context.Context, reference string) (entity.Booking, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE reference = $1`, reference)
	return scanBooking(row)
}

// ListExpired pages through pending bookings whose hold TTL has elapsed.
func (r BookingRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT booking_id FROM bookings
		WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at
		LIMIT $3`, entity.BookingStatusPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("querying expired bookings: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning booking id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Confirm moves a pending, paid booking to confirmed, books its seats and
// stages a BookingConfirmed event, all in one transaction. Confirming an
// already confirmed booking is a no-op so duplicate deliveries are absorbed.
func (r BookingRepo) Confirm(ctx context.Context, bookingID string, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := r.confirm(ctx, tx, bookingID, now); err != nil {
		return errors.Join(err, tx.Rollback())
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (r BookingRepo) confirm(ctx context.Context, tx *sql.Tx, bookingID string, now time.Time) error {
	b, err := getBookingForUpdate(ctx, tx, bookingID)
	if err != nil {
		return err
	}

	switch {
	case b.Status == entity.BookingStatusConfirmed:
		return nil
	case b.Status != entity.BookingStatusPending:
		return entity.ErrInvalidTransition
	case b.PaymentStatus != entity.PaymentStatusPaid:
		return entity.ErrPaymentNotVerified
	}

	return confirmBookingTx(ctx, tx, b, now, r.logger)
}

// confirmBookingTx assumes the booking row is locked, pending and paid.
func confirmBookingTx(ctx context.Context, tx *sql.Tx, b entity.Booking, now time.Time, logger watermill.LoggerAdapter) error {
	_, err := tx.ExecContext(ctx, `UPDATE bookings
		SET status = $1, expires_at = NULL, confirmed_at = $2
		WHERE booking_id = $3`,
		entity.BookingStatusConfirmed, now, b.ID)
	if err != nil {
		return fmt.Errorf("confirming booking: %w", err)
	}

	if err := finalizeSeatsTx(ctx, tx, b.ID, now); err != nil {
		return err
	}

	e := event.NewBookingConfirmed(b, now)
	if err := message.PublishInTx(ctx, e, tx, logger); err != nil {
		return fmt.Errorf("publishing event in transaction: %w", err)
	}

	return nil
}

// Cancel terminates a pending or confirmed booking and frees its seats.
// The returned bool is false when the booking was already cancelled, which
// callers treat as a duplicate delivery rather than an error. Cancelling a
// completed booking fails with ErrAlreadyTerminal.
func (r BookingRepo) Cancel(ctx context.Context, bookingID, reason, actor string, now time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}

	cancelled, err := r.cancel(ctx, tx, bookingID, reason, actor, now)
	if err != nil {
		return false, errors.Join(err, tx.Rollback())
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing transaction: %w", err)
	}

	return cancelled, nil
}

func (r BookingRepo) cancel(ctx context.Context, tx *sql.Tx, bookingID, reason, actor string, now time.Time) (bool, error) {
	b, err := getBookingForUpdate(ctx, tx, bookingID)
	if err != nil {
		return false, err
	}

	switch b.Status {
	case entity.BookingStatusCancelled, entity.BookingStatusRefunded:
		return false, nil
	case entity.BookingStatusCompleted:
		return false, entity.ErrAlreadyTerminal
	}

	_, err = tx.ExecContext(ctx, `UPDATE bookings
		SET status = $1, expires_at = NULL, cancelled_at = $2, cancel_reason = $3, cancel_actor = $4
		WHERE booking_id = $5`,
		entity.BookingStatusCancelled, now, reason, actor, bookingID)
	if err != nil {
		return false, fmt.Errorf("cancelling booking: %w", err)
	}

	if err := releaseSeatsTx(ctx, tx, bookingID); err != nil {
		return false, err
	}

	e := event.NewBookingCancelled(b, reason, now)
	if err := message.PublishInTx(ctx, e, tx, r.logger); err != nil {
		return false, fmt.Errorf("publishing event in transaction: %w", err)
	}

	return true, nil
}

// Complete marks a confirmed booking as consumed. No inventory effect.
func (r BookingRepo) Complete(ctx context.Context, bookingID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE bookings SET status = $1
		WHERE booking_id = $2 AND status = $3`,
		entity.BookingStatusCompleted, bookingID, entity.BookingStatusConfirmed)
	if err != nil {
		return fmt.Errorf("completing booking: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	b, err := r.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.Status == entity.BookingStatusCompleted {
		return nil
	}
	return entity.ErrInvalidTransition
}

func getBookingForUpdate(ctx context.Context, tx *sql.Tx, bookingID string) (entity.Booking, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE booking_id = $1 FOR UPDATE`, bookingID)
	return scanBooking(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (entity.Booking, error) {
	var b entity.Booking
	err := row.Scan(&b.ID, &b.Reference, &b.CustomerID, &b.FlightID, &b.Product,
		&b.Amount.Amount, &b.Amount.Currency, &b.Status, &b.PaymentStatus,
		&b.CreatedAt, &b.ExpiresAt, &b.ConfirmedAt, &b.CancelledAt,
		&b.CancelReason, &b.CancelActor)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Booking{}, entity.ErrBookingNotFound
	}
	if err != nil {
		return entity.Booking{}, fmt.Errorf("scanning booking: %w", err)
	}
	return b, nil
}
