package clients

import (
	"context"
	"fmt"

	"booker/entity"
)

type LoyaltyClient struct {
	client *Client
}

func NewLoyaltyClient(client *Client) LoyaltyClient {
	return LoyaltyClient{
		client: client,
	}
}

type pointsRequest struct {
	CustomerID string `json:"customer_id"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
}

func (c LoyaltyClient) CreditPoints(ctx context.Context, idempotencyKey, customerID string, amount entity.Money) error {
	body := pointsRequest{
		CustomerID: customerID,
		Amount:     amount.Amount,
		Currency:   amount.Currency,
	}

	if err := c.client.postJSON(ctx, "/points/credit", idempotencyKey, body); err != nil {
		return fmt.Errorf("credit points request: %w", err)
	}

	return nil
}

func (c LoyaltyClient) RevokePoints(ctx context.Context, idempotencyKey, customerID string, amount entity.Money) error {
	body := pointsRequest{
		CustomerID: customerID,
		Amount:     amount.Amount,
		Currency:   amount.Currency,
	}

	if err := c.client.postJSON(ctx, "/points/revoke", idempotencyKey, body); err != nil {
		return fmt.Errorf("revoke points request: %w", err)
	}

	return nil
}
