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

const paymentColumns = `payment_id, booking_id, gateway, amount, currency, status,
	external_ref, external_id, raw_response, created_at, processed_at,
	refund_amount, refund_reason, refunded_at`

type PaymentRepo struct {
	db     *sqlx.DB
	logger watermill.LoggerAdapter
}

func NewPaymentRepo(db *sqlx.DB, logger watermill.LoggerAdapter) PaymentRepo {
	return PaymentRepo{
		db:     db,
		logger: logger,
	}
}

func (r PaymentRepo) Create(ctx context.Context, p entity.Payment) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO payments
		(payment_id, booking_id, gateway, amount, currency, status, external_ref, raw_response, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`,
		p.ID, p.BookingID, p.Gateway, p.Amount.Amount, p.Amount.Currency,
		p.Status, p.ExternalRef, nullableJSON(p.RawResponse), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting payment: %w", err)
	}
	return nil
}

func (r PaymentRepo) Get(ctx context.Context, paymentID string) (entity.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE payment_id = $1`, paymentID)
	return scanPayment(row)
}

func (r PaymentRepo) GetByExternalRef(ctx context.Context, externalRef string) (entity.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE external_ref = $1`, externalRef)
	return scanPayment(row)
}

// LatestPending returns the most recent pending payment attempt for a
// booking, for the polling-based capture path.
func (r PaymentRepo) LatestPending(ctx context.Context, bookingID string) (entity.Payment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments
		WHERE booking_id = $1 AND status = $2
		ORDER BY created_at DESC LIMIT 1`, bookingID, entity.PaymentPending)
	return scanPayment(row)
}

// MarkPaid applies a successful capture exactly once: the payment flips
// pending to paid, the booking flips to paid and confirmed, its seats are
// booked and a BookingConfirmed event is staged, all in one transaction.
// The returned bool is false when nothing was applied, either because the
// payment was already terminal (duplicate delivery) or because the booking
// left the pending state in the meantime.
func (r PaymentRepo) MarkPaid(ctx context.Context, paymentID, externalID string, raw []byte, now time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}

	applied, err := r.markPaid(ctx, tx, paymentID, externalID, raw, now)
	if err != nil {
		return false, errors.Join(err, tx.Rollback())
	}
	if !applied {
		return false, tx.Rollback()
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing transaction: %w", err)
	}

	return true, nil
}

func (r PaymentRepo) markPaid(ctx context.Context, tx *sql.Tx, paymentID, externalID string, raw []byte, now time.Time) (bool, error) {
	var bookingID string
	err := tx.QueryRowContext(ctx, `UPDATE payments
		SET status = $1, external_id = $2, raw_response = $3, processed_at = $4
		WHERE payment_id = $5 AND status = $6
		RETURNING booking_id`,
		entity.PaymentPaid, externalID, nullableJSON(raw), now, paymentID, entity.PaymentPending).Scan(&bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		// Concurrent duplicate delivery lost the race; nothing to do.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("marking payment paid: %w", err)
	}

	b, err := getBookingForUpdate(ctx, tx, bookingID)
	if err != nil {
		return false, err
	}
	if b.Status != entity.BookingStatusPending {
		// The hold was already released; the outcome must not resurrect
		// the booking.
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `UPDATE bookings SET payment_status = $1 WHERE booking_id = $2`,
		entity.PaymentStatusPaid, bookingID)
	if err != nil {
		return false, fmt.Errorf("marking booking paid: %w", err)
	}
	b.PaymentStatus = entity.PaymentStatusPaid

	if err := confirmBookingTx(ctx, tx, b, now, r.logger); err != nil {
		return false, err
	}

	return true, nil
}

// MarkFailed records a failed capture. The booking stays pending so the
// customer can retry with a fresh payment attempt.
func (r PaymentRepo) MarkFailed(ctx context.Context, paymentID string, raw []byte, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE payments
		SET status = $1, raw_response = $2, processed_at = $3
		WHERE payment_id = $4 AND status = $5`,
		entity.PaymentFailed, nullableJSON(raw), now, paymentID, entity.PaymentPending)
	if err != nil {
		return false, fmt.Errorf("marking payment failed: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	return n == 1, nil
}

// MarkRefunded finalises a refund: payment paid to refunded, the confirmed
// booking to refunded, seats released, PaymentRefunded event staged.
func (r PaymentRepo) MarkRefunded(ctx context.Context, paymentID, amount, reason string, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := r.markRefunded(ctx, tx, paymentID, amount, reason, now); err != nil {
		return errors.Join(err, tx.Rollback())
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (r PaymentRepo) markRefunded(ctx context.Context, tx *sql.Tx, paymentID, amount, reason string, now time.Time) error {
	row := tx.QueryRowContext(ctx, `UPDATE payments
		SET status = $1, refund_amount = $2, refund_reason = $3, refunded_at = $4
		WHERE payment_id = $5 AND status = $6
		RETURNING booking_id, amount, currency`,
		entity.PaymentRefunded, amount, reason, now, paymentID, entity.PaymentPaid)

	var p entity.Payment
	p.ID = paymentID
	err := row.Scan(&p.BookingID, &p.Amount.Amount, &p.Amount.Currency)
	if errors.Is(err, sql.ErrNoRows) {
		current, err := r.Get(ctx, paymentID)
		if err != nil {
			return err
		}
		if current.Status == entity.PaymentRefunded {
			return nil
		}
		return entity.ErrPaymentNotPaid
	}
	if err != nil {
		return fmt.Errorf("marking payment refunded: %w", err)
	}

	b, err := getBookingForUpdate(ctx, tx, p.BookingID)
	if err != nil {
		return err
	}

	if b.Status == entity.BookingStatusConfirmed || b.Status == entity.BookingStatusCompleted {
		_, err = tx.ExecContext(ctx, `UPDATE bookings
			SET status = $1, payment_status = $2, cancelled_at = $3, cancel_reason = $4, cancel_actor = $5
			WHERE booking_id = $6`,
			entity.BookingStatusRefunded, entity.PaymentStatusRefunded, now, reason, "refund", b.ID)
		if err != nil {
			return fmt.Errorf("marking booking refunded: %w", err)
		}

		if err := releaseSeatsTx(ctx, tx, b.ID); err != nil {
			return err
		}
	}

	e := event.NewPaymentRefunded(p, b.CustomerID, reason, now)
	if err := message.PublishInTx(ctx, e, tx, r.logger); err != nil {
		return fmt.Errorf("publishing event in transaction: %w", err)
	}

	return nil
}

func scanPayment(row rowScanner) (entity.Payment, error) {
	var (
		p            entity.Payment
		raw          sql.NullString
		refundAmount sql.NullString
	)
	err := row.Scan(&p.ID, &p.BookingID, &p.Gateway, &p.Amount.Amount, &p.Amount.Currency,
		&p.Status, &p.ExternalRef, &p.ExternalID, &raw, &p.CreatedAt, &p.ProcessedAt,
		&refundAmount, &p.RefundReason, &p.RefundedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Payment{}, entity.ErrPaymentNotFound
	}
	if err != nil {
		return entity.Payment{}, fmt.Errorf("scanning payment: %w", err)
	}

	if raw.Valid {
		p.RawResponse = []byte(raw.String)
	}
	p.RefundAmount = refundAmount.String

	return p, nil
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
