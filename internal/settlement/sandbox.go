package settlement

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/go-petr/pet-ledger/internal/domain"
)

// Sandbox is an in-process provider accepting every request up to DeclineAbove.
//
// It serves every capability and is used when no provider URL is configured.
type Sandbox struct {
	// DeclineAbove rejects amounts above it; zero accepts everything.
	DeclineAbove int64
}

// Name implements Provider.
func (s *Sandbox) Name() string { return "sandbox" }

// RetrySafe implements Provider.
func (s *Sandbox) RetrySafe() bool { return true }

// MoveFunds implements FundsMover.
func (s *Sandbox) MoveFunds(ctx context.Context, arg domain.MoveFundsParams) (domain.SettlementResult, error) {
	return s.settle(ctx, arg.IdempotencyKey, arg.Amount)
}

// PayBill implements BillPayer.
func (s *Sandbox) PayBill(ctx context.Context, arg domain.PayBillParams) (domain.SettlementResult, error) {
	return s.settle(ctx, arg.IdempotencyKey, arg.Amount)
}

func (s *Sandbox) settle(ctx context.Context, key string, amount int64) (domain.SettlementResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.SettlementResult{}, err
	}

	result := domain.SettlementResult{
		Provider:          s.Name(),
		ProviderReference: "sbx-" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String(),
		Status:            domain.SettlementAccepted,
	}

	if s.DeclineAbove > 0 && amount > s.DeclineAbove {
		result.Status = domain.SettlementRejected
	}

	result.RawResponse, _ = json.Marshal(map[string]string{
		"reference": result.ProviderReference,
		"status":    string(result.Status),
	})

	return result, nil
}
