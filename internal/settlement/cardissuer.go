package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-petr/pet-ledger/internal/domain"
)

// CardIssuer collects wallet funding from a card.
type CardIssuer struct {
	client client
}

// NewCardIssuer returns a CardIssuer adapter for the API at baseURL.
func NewCardIssuer(baseURL, apiKey string, httpClient *http.Client) *CardIssuer {
	return &CardIssuer{client: newClient(baseURL, apiKey, httpClient)}
}

type cardChargeRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	CardToken      string `json:"card_token"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
}

type cardChargeResponse struct {
	Approved bool   `json:"approved"`
	ChargeID string `json:"charge_id"`
	Reason   string `json:"decline_reason"`
}

// Name implements Provider.
func (c *CardIssuer) Name() string { return "cardissuer" }

// RetrySafe implements Provider.
func (c *CardIssuer) RetrySafe() bool { return true }

// MoveFunds implements FundsMover. Only collections are supported.
func (c *CardIssuer) MoveFunds(ctx context.Context, arg domain.MoveFundsParams) (domain.SettlementResult, error) {
	if arg.Direction != domain.DirectionCollection {
		return domain.SettlementResult{}, fmt.Errorf("card issuer cannot handle %s", arg.Direction)
	}

	req := cardChargeRequest{
		IdempotencyKey: arg.IdempotencyKey,
		CardToken:      arg.Counterparty,
		Amount:         arg.Amount,
		Currency:       arg.Currency,
	}

	raw, code, err := c.client.post(ctx, "/charges", arg.IdempotencyKey, req)
	if err != nil {
		return domain.SettlementResult{}, err
	}

	var resp cardChargeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.SettlementResult{}, fmt.Errorf("failed to decode card charge response: %w", err)
	}

	result := domain.SettlementResult{
		Provider:          c.Name(),
		ProviderReference: resp.ChargeID,
		Status:            domain.SettlementRejected,
		RawResponse:       raw,
	}

	if isSuccess(code) && resp.Approved {
		result.Status = domain.SettlementAccepted
	}

	return result, nil
}
