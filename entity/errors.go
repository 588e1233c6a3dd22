package entity

import "errors"

// Contract violations. These indicate a caller bug and are never retried.
var (
	ErrInvalidTransition  = errors.New("invalid booking status transition")
	ErrPaymentNotVerified = errors.New("payment not verified")
)

// Resource contention. Expected under concurrency; the caller retries with
// different input.
var (
	ErrNoSeatsAvailable = errors.New("no seats available")
	ErrHoldExpired      = errors.New("seat hold expired")
	ErrHoldMismatch     = errors.New("seat held by another booking")
	ErrAlreadyTerminal  = errors.New("booking already in a terminal state")
	ErrInvalidQuote     = errors.New("price quote no longer valid")
)

// External integration failures.
var (
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrUnknownGateway   = errors.New("unknown payment gateway")
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrFlightNotFound  = errors.New("flight not found")
	ErrPaymentNotPaid  = errors.New("payment is not in paid status")
)
