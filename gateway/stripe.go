package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"booker/entity"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Stripe charges cards through PaymentIntents. Capture is asynchronous: the
// customer completes the intent with the client secret and the outcome
// arrives on the signed webhook, or is fetched by the verify poll.
type Stripe struct {
	api           *client.API
	webhookSecret string
}

func NewStripe(apiKey, webhookSecret string) *Stripe {
	return &Stripe{
		api:           client.New(apiKey, nil),
		webhookSecret: webhookSecret,
	}
}

func (s *Stripe) Name() string {
	return "stripe"
}

func (s *Stripe) SignatureHeader() string {
	return "Stripe-Signature"
}

func (s *Stripe) Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error) {
	cents, err := req.Amount.Cents()
	if err != nil {
		return InitiateResult{}, fmt.Errorf("converting amount: %w", err)
	}

	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Amount:   stripe.Int64(cents),
		Currency: stripe.String(strings.ToLower(req.Amount.Currency)),
	}
	params.AddMetadata("payment_id", req.PaymentID)
	params.AddMetadata("booking_reference", req.BookingReference)

	intent, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return InitiateResult{}, fmt.Errorf("creating payment intent: %w", err)
	}

	return InitiateResult{
		ExternalRef:  intent.ID,
		ClientSecret: intent.ClientSecret,
		Raw:          rawResponse(intent.LastResponse),
	}, nil
}

func (s *Stripe) Verify(ctx context.Context, externalRef string) (Outcome, error) {
	intent, err := s.api.PaymentIntents.Get(externalRef, &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context: ctx,
		},
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("fetching payment intent: %w", err)
	}

	return outcomeFromIntent(intent, rawResponse(intent.LastResponse)), nil
}

func (s *Stripe) Refund(ctx context.Context, externalRef string, amount entity.Money, reason string) (RefundResult, error) {
	cents, err := amount.Cents()
	if err != nil {
		return RefundResult{}, fmt.Errorf("converting amount: %w", err)
	}

	params := &stripe.RefundParams{
		Params: stripe.Params{
			Context: ctx,
		},
		PaymentIntent: stripe.String(externalRef),
		Amount:        stripe.Int64(cents),
	}
	params.AddMetadata("reason", reason)

	refund, err := s.api.Refunds.New(params)
	if err != nil {
		return RefundResult{}, fmt.Errorf("creating refund: %w", err)
	}

	return RefundResult{
		RefundRef: refund.ID,
		Raw:       rawResponse(refund.LastResponse),
	}, nil
}

func (s *Stripe) ParseWebhook(signature string, payload []byte) (Outcome, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %s", entity.ErrInvalidSignature, err)
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
	default:
		return Outcome{}, ErrEventIgnored
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return Outcome{}, fmt.Errorf("unmarshalling payment intent: %w", err)
	}

	o := outcomeFromIntent(&intent, event.Data.Raw)
	if event.Type == "payment_intent.payment_failed" {
		// The intent reports requires_payment_method after a failed
		// charge; the event itself is the definitive failure signal.
		o.Paid = false
		o.Pending = false
	}

	return o, nil
}

func outcomeFromIntent(intent *stripe.PaymentIntent, raw json.RawMessage) Outcome {
	o := Outcome{
		ExternalRef: intent.ID,
		ExternalID:  intent.ID,
		Amount: entity.Money{
			Amount:   centsToAmount(intent.Amount),
			Currency: strings.ToUpper(string(intent.Currency)),
		},
		Raw: raw,
	}
	if intent.LatestCharge != nil {
		o.ExternalID = intent.LatestCharge.ID
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		o.Paid = true
	case stripe.PaymentIntentStatusCanceled:
	default:
		// Still in progress on the provider side.
		o.Pending = true
	}

	return o
}

func centsToAmount(cents int64) string {
	negative := cents < 0
	if negative {
		cents = -cents
	}
	amount := fmt.Sprintf("%d.%02d", cents/100, cents%100)
	if negative {
		amount = "-" + amount
	}
	return amount
}

func rawResponse(res *stripe.APIResponse) json.RawMessage {
	if res == nil {
		return nil
	}
	return json.RawMessage(res.RawJSON)
}
