// Package settlement moves money through external providers.
//
// Every provider adapter translates its own wire format into a
// domain.SettlementResult. The Gateway adds timeouts, circuit breaking and
// bounded retries on top of the adapters.
package settlement

import (
	"context"

	"github.com/go-petr/pet-ledger/internal/domain"
)

// Provider identifies a settlement provider.
type Provider interface {
	Name() string
	// RetrySafe reports whether the provider deduplicates requests by
	// idempotency key, so a call with an unknown outcome may be repeated.
	RetrySafe() bool
}

// FundsMover moves funds between a wallet and an external account.
type FundsMover interface {
	Provider
	MoveFunds(ctx context.Context, arg domain.MoveFundsParams) (domain.SettlementResult, error)
}

// BillPayer pays bills through an aggregator.
type BillPayer interface {
	Provider
	PayBill(ctx context.Context, arg domain.PayBillParams) (domain.SettlementResult, error)
}
