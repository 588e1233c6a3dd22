package gateway

import (
	"context"
	"encoding/json"
	"errors"

	"booker/entity"
)

// ErrEventIgnored marks a verified webhook payload the adapter does not care
// about (unrelated event types). Not an error condition for the provider.
var ErrEventIgnored = errors.New("webhook event ignored")

type InitiateRequest struct {
	PaymentID        string
	BookingReference string
	Amount           entity.Money
}

type InitiateResult struct {
	ExternalRef string
	// ClientSecret is whatever the customer needs to complete payment out
	// of band: a client secret, a redirect URL or a transfer reference.
	ClientSecret string
	Raw          json.RawMessage
}

// Outcome is a provider-agnostic result of a payment attempt, produced only
// from verified sources: a parsed-and-signature-checked webhook or a direct
// API call to the provider.
type Outcome struct {
	ExternalRef string
	ExternalID  string
	Paid        bool
	// Pending means the provider has not settled yet; no state is applied.
	Pending bool
	Amount  entity.Money
	Raw     json.RawMessage
}

type RefundResult struct {
	RefundRef string
	Raw       json.RawMessage
}

// Gateway is the uniform contract every external payment processor
// implementation satisfies. The reconciler treats all providers through
// this interface; adding a provider touches nothing above it.
type Gateway interface {
	Name() string
	SignatureHeader() string
	Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error)
	Verify(ctx context.Context, externalRef string) (Outcome, error)
	Refund(ctx context.Context, externalRef string, amount entity.Money, reason string) (RefundResult, error)
	// ParseWebhook must reject payloads failing signature verification with
	// entity.ErrInvalidSignature and never partially trust an unverified
	// payload.
	ParseWebhook(signature string, payload []byte) (Outcome, error)
}

type Registry struct {
	gateways map[string]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{
		gateways: make(map[string]Gateway, len(gateways)),
	}
	for _, gw := range gateways {
		r.gateways[gw.Name()] = gw
	}
	return r
}

func (r *Registry) Get(name string) (Gateway, error) {
	gw, ok := r.gateways[name]
	if !ok {
		return nil, entity.ErrUnknownGateway
	}
	return gw, nil
}
