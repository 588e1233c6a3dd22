package payment_test

import (
	"context"
	"testing"
	"time"

	"booker/clock"
	"booker/entity"
	"booker/gateway"
	"booker/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	name          string
	initiate      gateway.InitiateResult
	verifyOutcome gateway.Outcome
	verifyCalls   int
	refunds       []string
}

func (g *fakeGateway) Name() string            { return g.name }
func (g *fakeGateway) SignatureHeader() string { return "X-Signature" }

func (g *fakeGateway) Initiate(_ context.Context, _ gateway.InitiateRequest) (gateway.InitiateResult, error) {
	return g.initiate, nil
}

func (g *fakeGateway) Verify(_ context.Context, _ string) (gateway.Outcome, error) {
	g.verifyCalls++
	return g.verifyOutcome, nil
}

func (g *fakeGateway) Refund(_ context.Context, externalRef string, _ entity.Money, _ string) (gateway.RefundResult, error) {
	g.refunds = append(g.refunds, externalRef)
	return gateway.RefundResult{RefundRef: "re_1"}, nil
}

func (g *fakeGateway) ParseWebhook(_ string, _ []byte) (gateway.Outcome, error) {
	return gateway.Outcome{}, gateway.ErrEventIgnored
}

type stubPaymentStore struct {
	payments map[string]*entity.Payment

	markedPaid     []string
	markedFailed   []string
	markedRefunded []string

	bookingPending bool
}

func newStubPaymentStore() *stubPaymentStore {
	return &stubPaymentStore{
		payments:       map[string]*entity.Payment{},
		bookingPending: true,
	}
}

func (s *stubPaymentStore) add(p entity.Payment) {
	s.payments[p.ID] = &p
}

func (s *stubPaymentStore) Create(_ context.Context, p entity.Payment) error {
	s.add(p)
	return nil
}

func (s *stubPaymentStore) Get(_ context.Context, paymentID string) (entity.Payment, error) {
	p, ok := s.payments[paymentID]
	if !ok {
		return entity.Payment{}, entity.ErrPaymentNotFound
	}
	return *p, nil
}

func (s *stubPaymentStore) GetByExternalRef(_ context.Context, externalRef string) (entity.Payment, error) {
	for _, p := range s.payments {
		if p.ExternalRef == externalRef {
			return *p, nil
		}
	}
	return entity.Payment{}, entity.ErrPaymentNotFound
}

func (s *stubPaymentStore) LatestPending(_ context.Context, bookingID string) (entity.Payment, error) {
	for _, p := range s.payments {
		if p.BookingID == bookingID && p.Status == entity.PaymentPending {
			return *p, nil
		}
	}
	return entity.Payment{}, entity.ErrPaymentNotFound
}

func (s *stubPaymentStore) MarkPaid(_ context.Context, paymentID, externalID string, _ []byte, _ time.Time) (bool, error) {
	p := s.payments[paymentID]
	if p.Status != entity.PaymentPending || !s.bookingPending {
		return false, nil
	}
	p.Status = entity.PaymentPaid
	p.ExternalID = externalID
	s.markedPaid = append(s.markedPaid, paymentID)
	return true, nil
}

func (s *stubPaymentStore) MarkFailed(_ context.Context, paymentID string, _ []byte, _ time.Time) (bool, error) {
	p := s.payments[paymentID]
	if p.Status != entity.PaymentPending {
		return false, nil
	}
	p.Status = entity.PaymentFailed
	s.markedFailed = append(s.markedFailed, paymentID)
	return true, nil
}

func (s *stubPaymentStore) MarkRefunded(_ context.Context, paymentID, _, _ string, _ time.Time) error {
	p := s.payments[paymentID]
	if p.Status != entity.PaymentPaid {
		return entity.ErrPaymentNotPaid
	}
	p.Status = entity.PaymentRefunded
	s.markedRefunded = append(s.markedRefunded, paymentID)
	return nil
}

type stubBookingStore struct {
	bookings map[string]entity.Booking
}

func (s *stubBookingStore) Get(_ context.Context, bookingID string) (entity.Booking, error) {
	b, ok := s.bookings[bookingID]
	if !ok {
		return entity.Booking{}, entity.ErrBookingNotFound
	}
	return b, nil
}

func newReconciler(t *testing.T, gw *fakeGateway, payments *stubPaymentStore, bookings *stubBookingStore) payment.Reconciler {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return payment.NewReconciler(payments, bookings, gateway.NewRegistry(gw), clock.NewFixed(now))
}

func pendingPayment(id, bookingID, gatewayName, externalRef string) entity.Payment {
	return entity.Payment{
		ID:          id,
		BookingID:   bookingID,
		Gateway:     gatewayName,
		Amount:      entity.Money{Amount: "42.00", Currency: "GBP"},
		Status:      entity.PaymentPending,
		ExternalRef: externalRef,
	}
}

func TestReconciler_Start(t *testing.T) {
	gw := &fakeGateway{
		name: "card",
		initiate: gateway.InitiateResult{
			ExternalRef:  "pi_1",
			ClientSecret: "pi_1_secret",
		},
	}
	payments := newStubPaymentStore()
	bookings := &stubBookingStore{bookings: map[string]entity.Booking{
		"booking-1": {
			ID:        "booking-1",
			Reference: "BK-1",
			Status:    entity.BookingStatusPending,
			Amount:    entity.Money{Amount: "42.00", Currency: "GBP"},
		},
	}}
	r := newReconciler(t, gw, payments, bookings)

	res, err := r.Start(context.Background(), "booking-1", "card")
	require.NoError(t, err)

	assert.Equal(t, "card", res.Gateway)
	assert.Equal(t, "pi_1", res.ExternalRef)
	assert.Equal(t, "pi_1_secret", res.ClientSecret)

	p, err := payments.Get(context.Background(), res.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentPending, p.Status)
	assert.Equal(t, "booking-1", p.BookingID)
}

func TestReconciler_Start_BookingNotPending(t *testing.T) {
	gw := &fakeGateway{name: "card"}
	bookings := &stubBookingStore{bookings: map[string]entity.Booking{
		"booking-1": {ID: "booking-1", Status: entity.BookingStatusCancelled},
	}}
	r := newReconciler(t, gw, newStubPaymentStore(), bookings)

	_, err := r.Start(context.Background(), "booking-1", "card")
	require.ErrorIs(t, err, entity.ErrInvalidTransition)
}

func TestReconciler_Start_UnknownGateway(t *testing.T) {
	r := newReconciler(t, &fakeGateway{name: "card"}, newStubPaymentStore(), &stubBookingStore{})

	_, err := r.Start(context.Background(), "booking-1", "carrier-pigeon")
	require.ErrorIs(t, err, entity.ErrUnknownGateway)
}

func TestReconciler_ApplyOutcome_Paid(t *testing.T) {
	gw := &fakeGateway{name: "card"}
	payments := newStubPaymentStore()
	payments.add(pendingPayment("payment-1", "booking-1", "card", "pi_1"))
	r := newReconciler(t, gw, payments, &stubBookingStore{})

	outcome := gateway.Outcome{
		ExternalRef: "pi_1",
		ExternalID:  "ch_1",
		Paid:        true,
		Amount:      entity.Money{Amount: "42.00", Currency: "GBP"},
	}
	require.NoError(t, r.ApplyOutcome(context.Background(), "card", outcome))
	assert.Equal(t, []string{"payment-1"}, payments.markedPaid)

	// Redelivery of the same outcome must not apply twice.
	require.NoError(t, r.ApplyOutcome(context.Background(), "card", outcome))
	assert.Equal(t, []string{"payment-1"}, payments.markedPaid)
}

func TestReconciler_ApplyOutcome_Failed(t *testing.T) {
	gw := &fakeGateway{name: "card"}
	payments := newStubPaymentStore()
	payments.add(pendingPayment("payment-1", "booking-1", "card", "pi_1"))
	r := newReconciler(t, gw, payments, &stubBookingStore{})

	outcome := gateway.Outcome{ExternalRef: "pi_1"}
	require.NoError(t, r.ApplyOutcome(context.Background(), "card", outcome))
	assert.Equal(t, []string{"payment-1"}, payments.markedFailed)
}

func TestReconciler_ApplyOutcome_Pending(t *testing.T) {
	gw := &fakeGateway{name: "card"}
	payments := newStubPaymentStore()
	payments.add(pendingPayment("payment-1", "booking-1", "card", "pi_1"))
	r := newReconciler(t, gw, payments, &stubBookingStore{})

	outcome := gateway.Outcome{ExternalRef: "pi_1", Pending: true}
	require.NoError(t, r.ApplyOutcome(context.Background(), "card", outcome))
	assert.Empty(t, payments.markedPaid)
	assert.Empty(t, payments.markedFailed)
}

func TestReconciler_ApplyOutcome_UnknownReference(t *testing.T) {
	r := newReconciler(t, &fakeGateway{name: "card"}, newStubPaymentStore(), &stubBookingStore{})

	outcome := gateway.Outcome{ExternalRef: "pi_unknown", Paid: true}
	require.NoError(t, r.ApplyOutcome(context.Background(), "card", outcome))
}

func TestReconciler_ApplyOutcome_GatewayMismatch(t *testing.T) {
	gw := &fakeGateway{name: "card"}
	payments := newStubPaymentStore()
	payments.add(pendingPayment("payment-1", "booking-1", "bank_transfer", "bt_1"))
	r := newReconciler(t, gw, payments, &stubBookingStore{})

	outcome := gateway.Outcome{ExternalRef: "bt_1", Paid: true}
	require.NoError(t, r.ApplyOutcome(context.Background(), "card", outcome))
	assert.Empty(t, payments.markedPaid)
}

func TestReconciler_ApplyOutcome_AmountMismatch(t *testing.T) {
	gw := &fakeGateway{name: "card"}
	payments := newStubPaymentStore()
	payments.add(pendingPayment("payment-1", "booking-1", "card", "pi_1"))
	r := newReconciler(t, gw, payments, &stubBookingStore{})

	outcome := gateway.Outcome{
		ExternalRef: "pi_1",
		Paid:        true,
		Amount:      entity.Money{Amount: "1.00", Currency: "GBP"},
	}
	require.NoError(t, r.ApplyOutcome(context.Background(), "card", outcome))
	assert.Empty(t, payments.markedPaid)
}

func TestReconciler_ApplyOutcome_BookingNoLongerPending(t *testing.T) {
	gw := &fakeGateway{name: "card"}
	payments := newStubPaymentStore()
	payments.bookingPending = false
	payments.add(pendingPayment("payment-1", "booking-1", "card", "pi_1"))
	r := newReconciler(t, gw, payments, &stubBookingStore{})

	outcome := gateway.Outcome{ExternalRef: "pi_1", Paid: true}
	require.NoError(t, r.ApplyOutcome(context.Background(), "card", outcome))
	assert.Empty(t, payments.markedPaid)
}

func TestReconciler_VerifyBooking(t *testing.T) {
	gw := &fakeGateway{
		name:          "card",
		verifyOutcome: gateway.Outcome{ExternalRef: "pi_1", Paid: true},
	}
	payments := newStubPaymentStore()
	payments.add(pendingPayment("payment-1", "booking-1", "card", "pi_1"))
	bookings := &stubBookingStore{bookings: map[string]entity.Booking{
		"booking-1": {ID: "booking-1", Status: entity.BookingStatusPending},
	}}
	r := newReconciler(t, gw, payments, bookings)

	require.NoError(t, r.VerifyBooking(context.Background(), "booking-1"))
	assert.Equal(t, 1, gw.verifyCalls)
	assert.Equal(t, []string{"payment-1"}, payments.markedPaid)
}

func TestReconciler_VerifyBooking_AlreadyConfirmed(t *testing.T) {
	gw := &fakeGateway{name: "card"}
	bookings := &stubBookingStore{bookings: map[string]entity.Booking{
		"booking-1": {ID: "booking-1", Status: entity.BookingStatusConfirmed},
	}}
	r := newReconciler(t, gw, newStubPaymentStore(), bookings)

	require.NoError(t, r.VerifyBooking(context.Background(), "booking-1"))
	assert.Zero(t, gw.verifyCalls)
}

func TestReconciler_VerifyBooking_StillPending(t *testing.T) {
	gw := &fakeGateway{
		name:          "card",
		verifyOutcome: gateway.Outcome{ExternalRef: "pi_1", Pending: true},
	}
	payments := newStubPaymentStore()
	payments.add(pendingPayment("payment-1", "booking-1", "card", "pi_1"))
	bookings := &stubBookingStore{bookings: map[string]entity.Booking{
		"booking-1": {ID: "booking-1", Status: entity.BookingStatusPending},
	}}
	r := newReconciler(t, gw, payments, bookings)

	err := r.VerifyBooking(context.Background(), "booking-1")
	require.ErrorIs(t, err, entity.ErrPaymentNotVerified)
}

func TestReconciler_VerifyBooking_NoPaymentAttempt(t *testing.T) {
	bookings := &stubBookingStore{bookings: map[string]entity.Booking{
		"booking-1": {ID: "booking-1", Status: entity.BookingStatusPending},
	}}
	r := newReconciler(t, &fakeGateway{name: "card"}, newStubPaymentStore(), bookings)

	err := r.VerifyBooking(context.Background(), "booking-1")
	require.ErrorIs(t, err, entity.ErrPaymentNotVerified)
}

func TestReconciler_Refund(t *testing.T) {
	gw := &fakeGateway{name: "card"}
	payments := newStubPaymentStore()
	p := pendingPayment("payment-1", "booking-1", "card", "pi_1")
	p.Status = entity.PaymentPaid
	payments.add(p)
	r := newReconciler(t, gw, payments, &stubBookingStore{})

	require.NoError(t, r.Refund(context.Background(), "payment-1", "", "schedule change"))
	assert.Equal(t, []string{"pi_1"}, gw.refunds)
	assert.Equal(t, []string{"payment-1"}, payments.markedRefunded)

	// Redelivered refund command is a no-op.
	require.NoError(t, r.Refund(context.Background(), "payment-1", "", "schedule change"))
	assert.Equal(t, []string{"pi_1"}, gw.refunds)
}

func TestReconciler_Refund_NotPaid(t *testing.T) {
	payments := newStubPaymentStore()
	payments.add(pendingPayment("payment-1", "booking-1", "card", "pi_1"))
	r := newReconciler(t, &fakeGateway{name: "card"}, payments, &stubBookingStore{})

	err := r.Refund(context.Background(), "payment-1", "", "schedule change")
	require.ErrorIs(t, err, entity.ErrPaymentNotPaid)
}

func TestReconciler_Refund_AmountTooLarge(t *testing.T) {
	gw := &fakeGateway{name: "card"}
	payments := newStubPaymentStore()
	p := pendingPayment("payment-1", "booking-1", "card", "pi_1")
	p.Status = entity.PaymentPaid
	payments.add(p)
	r := newReconciler(t, gw, payments, &stubBookingStore{})

	err := r.Refund(context.Background(), "payment-1", "100.00", "schedule change")
	require.Error(t, err)
	assert.Empty(t, gw.refunds)
}
