package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"booker/entity"

	"github.com/google/uuid"
)

// BankTransfer models the manual-settlement flow: the customer wires the
// amount citing a transfer reference, and a back-office operator reports the
// settlement through an HMAC-signed callback. There is no synchronous
// capture; Verify always reports pending until the callback lands.
type BankTransfer struct {
	secret []byte
}

func NewBankTransfer(secret string) *BankTransfer {
	return &BankTransfer{
		secret: []byte(secret),
	}
}

func (b *BankTransfer) Name() string {
	return "bank_transfer"
}

func (b *BankTransfer) SignatureHeader() string {
	return "X-Signature"
}

func (b *BankTransfer) Initiate(_ context.Context, req InitiateRequest) (InitiateResult, error) {
	ref := "bt_" + uuid.NewString()

	instructions, err := json.Marshal(map[string]string{
		"transfer_reference": ref,
		"booking_reference":  req.BookingReference,
		"amount":             req.Amount.Amount,
		"currency":           req.Amount.Currency,
	})
	if err != nil {
		return InitiateResult{}, fmt.Errorf("marshalling instructions: %w", err)
	}

	return InitiateResult{
		ExternalRef:  ref,
		ClientSecret: ref,
		Raw:          instructions,
	}, nil
}

func (b *BankTransfer) Verify(_ context.Context, externalRef string) (Outcome, error) {
	return Outcome{
		ExternalRef: externalRef,
		Pending:     true,
	}, nil
}

// Refund records the refund intent; the actual wire is executed by the back
// office outside this system.
func (b *BankTransfer) Refund(_ context.Context, externalRef string, amount entity.Money, reason string) (RefundResult, error) {
	return RefundResult{
		RefundRef: "btr_" + uuid.NewString(),
	}, nil
}

type bankNotification struct {
	Reference     string `json:"reference"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
}

func (b *BankTransfer) ParseWebhook(signature string, payload []byte) (Outcome, error) {
	mac := hmac.New(sha256.New, b.secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return Outcome{}, entity.ErrInvalidSignature
	}

	var n bankNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return Outcome{}, fmt.Errorf("unmarshalling notification: %w", err)
	}

	o := Outcome{
		ExternalRef: n.Reference,
		ExternalID:  n.TransactionID,
		Amount: entity.Money{
			Amount:   n.Amount,
			Currency: n.Currency,
		},
		Raw: payload,
	}

	switch n.Status {
	case "completed":
		o.Paid = true
	case "failed":
	default:
		return Outcome{}, ErrEventIgnored
	}

	return o, nil
}
