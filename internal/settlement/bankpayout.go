package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-petr/pet-ledger/internal/domain"
)

// BankPayout moves funds over the bank payout rail.
//
// The rail deduplicates transfers by reference, so calls are retry safe.
type BankPayout struct {
	client client
}

// NewBankPayout returns a BankPayout adapter for the API at baseURL.
func NewBankPayout(baseURL, apiKey string, httpClient *http.Client) *BankPayout {
	return &BankPayout{client: newClient(baseURL, apiKey, httpClient)}
}

type bankPayoutRequest struct {
	Reference          string            `json:"reference"`
	Direction          string            `json:"direction"`
	DestinationAccount string            `json:"destination_account"`
	Amount             int64             `json:"amount"`
	Currency           string            `json:"currency"`
	Narration          string            `json:"narration,omitempty"`
	Meta               map[string]string `json:"meta,omitempty"`
}

type bankPayoutResponse struct {
	Status      string `json:"status"`
	TransferRef string `json:"transfer_reference"`
	Message     string `json:"message"`
}

// Name implements Provider.
func (b *BankPayout) Name() string { return "bankpayout" }

// RetrySafe implements Provider.
func (b *BankPayout) RetrySafe() bool { return true }

// MoveFunds implements FundsMover.
func (b *BankPayout) MoveFunds(ctx context.Context, arg domain.MoveFundsParams) (domain.SettlementResult, error) {
	req := bankPayoutRequest{
		Reference:          arg.IdempotencyKey,
		Direction:          arg.Direction,
		DestinationAccount: arg.Counterparty,
		Amount:             arg.Amount,
		Currency:           arg.Currency,
		Narration:          arg.Metadata["narration"],
		Meta:               arg.Metadata,
	}

	raw, code, err := b.client.post(ctx, "/transfers", arg.IdempotencyKey, req)
	if err != nil {
		return domain.SettlementResult{}, err
	}

	var resp bankPayoutResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.SettlementResult{}, fmt.Errorf("failed to decode bank payout response: %w", err)
	}

	result := domain.SettlementResult{
		Provider:          b.Name(),
		ProviderReference: resp.TransferRef,
		Status:            domain.SettlementRejected,
		RawResponse:       raw,
	}

	switch strings.ToUpper(resp.Status) {
	case "SUCCESSFUL", "SUCCESS":
		if isSuccess(code) {
			result.Status = domain.SettlementAccepted
		}
	case "FAILED":
	default:
		return domain.SettlementResult{}, fmt.Errorf("unknown bank payout status %q", resp.Status)
	}

	return result, nil
}
