package gateway_test

import (
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"booker/entity"
	"booker/gateway"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stripeWebhookSecret = "whsec_test"

func stripeEventPayload(eventType, intentStatus string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"api_version": %q,
		"type": %q,
		"data": {
			"object": {
				"id": "pi_1",
				"object": "payment_intent",
				"status": %q,
				"amount": 4200,
				"currency": "gbp"
			}
		}
	}`, stripe.APIVersion, eventType, intentStatus))
}

func signStripePayload(payload []byte) string {
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, stripeWebhookSecret)
	return fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig))
}

func TestStripe_ParseWebhook_Succeeded(t *testing.T) {
	gw := gateway.NewStripe("sk_test", stripeWebhookSecret)
	payload := stripeEventPayload("payment_intent.succeeded", "succeeded")

	outcome, err := gw.ParseWebhook(signStripePayload(payload), payload)
	require.NoError(t, err)

	assert.Equal(t, "pi_1", outcome.ExternalRef)
	assert.True(t, outcome.Paid)
	assert.False(t, outcome.Pending)
	assert.Equal(t, "42.00", outcome.Amount.Amount)
	assert.Equal(t, "GBP", outcome.Amount.Currency)
}

func TestStripe_ParseWebhook_Failed(t *testing.T) {
	gw := gateway.NewStripe("sk_test", stripeWebhookSecret)
	payload := stripeEventPayload("payment_intent.payment_failed", "requires_payment_method")

	outcome, err := gw.ParseWebhook(signStripePayload(payload), payload)
	require.NoError(t, err)

	assert.False(t, outcome.Paid)
	assert.False(t, outcome.Pending)
}

func TestStripe_ParseWebhook_InvalidSignature(t *testing.T) {
	gw := gateway.NewStripe("sk_test", stripeWebhookSecret)
	payload := stripeEventPayload("payment_intent.succeeded", "succeeded")

	_, err := gw.ParseWebhook("t=123,v1=deadbeef", payload)
	require.ErrorIs(t, err, entity.ErrInvalidSignature)
}

func TestStripe_ParseWebhook_IgnoredEventType(t *testing.T) {
	gw := gateway.NewStripe("sk_test", stripeWebhookSecret)
	payload := stripeEventPayload("payment_intent.created", "requires_payment_method")

	_, err := gw.ParseWebhook(signStripePayload(payload), payload)
	require.ErrorIs(t, err, gateway.ErrEventIgnored)
}
