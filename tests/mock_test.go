package tests_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"booker/entity"
	"booker/gateway"

	"github.com/google/uuid"
)

type MockLoyaltyService struct {
	lock     sync.Mutex
	Credited []PointsRequest
	Revoked  []PointsRequest
}

type PointsRequest struct {
	customerID string
	amount     entity.Money
}

func (m *MockLoyaltyService) CreditPoints(_ context.Context, _, customerID string, amount entity.Money) error {
	m.lock.Lock()
	m.Credited = append(m.Credited, PointsRequest{customerID: customerID, amount: amount})
	m.lock.Unlock()

	return nil
}

func (m *MockLoyaltyService) RevokePoints(_ context.Context, _, customerID string, amount entity.Money) error {
	m.lock.Lock()
	m.Revoked = append(m.Revoked, PointsRequest{customerID: customerID, amount: amount})
	m.lock.Unlock()

	return nil
}

func (m *MockLoyaltyService) CreditedFor(customerID string) int {
	m.lock.Lock()
	defer m.lock.Unlock()

	var n int
	for _, req := range m.Credited {
		if req.customerID == customerID {
			n++
		}
	}
	return n
}

type MockNotificationSender struct {
	lock      sync.Mutex
	Confirmed []NotificationRequest
	Cancelled []NotificationRequest
	Refunded  []NotificationRequest
}

type NotificationRequest struct {
	customerID string
	reference  string
}

func (m *MockNotificationSender) SendBookingConfirmed(_ context.Context, _, customerID, reference string) error {
	m.lock.Lock()
	m.Confirmed = append(m.Confirmed, NotificationRequest{customerID: customerID, reference: reference})
	m.lock.Unlock()

	return nil
}

func (m *MockNotificationSender) SendBookingCancelled(_ context.Context, _, customerID, reference, _ string) error {
	m.lock.Lock()
	m.Cancelled = append(m.Cancelled, NotificationRequest{customerID: customerID, reference: reference})
	m.lock.Unlock()

	return nil
}

func (m *MockNotificationSender) SendPaymentRefunded(_ context.Context, _, customerID, bookingID string, _ entity.Money) error {
	m.lock.Lock()
	m.Refunded = append(m.Refunded, NotificationRequest{customerID: customerID, reference: bookingID})
	m.lock.Unlock()

	return nil
}

func (m *MockNotificationSender) count(list *[]NotificationRequest, reference string) int {
	m.lock.Lock()
	defer m.lock.Unlock()

	var n int
	for _, req := range *list {
		if req.reference == reference {
			n++
		}
	}
	return n
}

func (m *MockNotificationSender) ConfirmedFor(reference string) int {
	return m.count(&m.Confirmed, reference)
}

func (m *MockNotificationSender) CancelledFor(reference string) int {
	return m.count(&m.Cancelled, reference)
}

func (m *MockNotificationSender) RefundedFor(bookingID string) int {
	return m.count(&m.Refunded, bookingID)
}

const fakeGatewaySignature = "valid-signature"

// FakeGateway stands in for an external payment provider. Outcomes are
// delivered through the webhook endpoint exactly as a real provider would,
// signed with a shared test signature.
type FakeGateway struct {
	lock    sync.Mutex
	Refunds []string
}

type fakeWebhookPayload struct {
	ExternalRef string `json:"external_ref"`
	Status      string `json:"status"`
}

func (g *FakeGateway) Name() string            { return "fake" }
func (g *FakeGateway) SignatureHeader() string { return "X-Signature" }

func (g *FakeGateway) Initiate(_ context.Context, _ gateway.InitiateRequest) (gateway.InitiateResult, error) {
	ref := "fake_" + uuid.NewString()
	return gateway.InitiateResult{
		ExternalRef:  ref,
		ClientSecret: ref + "_secret",
	}, nil
}

func (g *FakeGateway) Verify(_ context.Context, externalRef string) (gateway.Outcome, error) {
	return gateway.Outcome{ExternalRef: externalRef, Pending: true}, nil
}

func (g *FakeGateway) Refund(_ context.Context, externalRef string, _ entity.Money, _ string) (gateway.RefundResult, error) {
	g.lock.Lock()
	g.Refunds = append(g.Refunds, externalRef)
	g.lock.Unlock()

	return gateway.RefundResult{RefundRef: "fake_re_" + uuid.NewString()}, nil
}

func (g *FakeGateway) RefundsFor(externalRef string) int {
	g.lock.Lock()
	defer g.lock.Unlock()

	var n int
	for _, ref := range g.Refunds {
		if ref == externalRef {
			n++
		}
	}
	return n
}

func (g *FakeGateway) ParseWebhook(signature string, payload []byte) (gateway.Outcome, error) {
	if signature != fakeGatewaySignature {
		return gateway.Outcome{}, entity.ErrInvalidSignature
	}

	var p fakeWebhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return gateway.Outcome{}, fmt.Errorf("unmarshalling payload: %w", err)
	}

	switch p.Status {
	case "paid":
		return gateway.Outcome{ExternalRef: p.ExternalRef, Paid: true}, nil
	case "failed":
		return gateway.Outcome{ExternalRef: p.ExternalRef}, nil
	default:
		return gateway.Outcome{}, gateway.ErrEventIgnored
	}
}
