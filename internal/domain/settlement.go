package domain

import (
	"encoding/json"
	"errors"
)

var (
	// ErrProviderRejected indicates that the settlement provider declined the request.
	ErrProviderRejected = errors.New("settlement provider rejected the request")
	// ErrProviderUnavailable indicates that the settlement provider could not be reached.
	ErrProviderUnavailable = errors.New("settlement provider unavailable")
)

// SettlementStatus is the normalized provider answer.
type SettlementStatus string

// Settlement statuses.
const (
	SettlementAccepted SettlementStatus = "accepted"
	SettlementRejected SettlementStatus = "rejected"
)

// Transfer directions of MoveFunds.
const (
	DirectionPayout     = "payout"
	DirectionCollection = "collection"
)

// MoveFundsParams is the input data to move money through an external rail.
type MoveFundsParams struct {
	IdempotencyKey string            `json:"idempotency_key"`
	Direction      string            `json:"direction"`
	AccountID      int64             `json:"account_id"`
	Counterparty   string            `json:"counterparty"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// PayBillParams is the input data to pay a bill through an aggregator.
type PayBillParams struct {
	IdempotencyKey string            `json:"idempotency_key"`
	Biller         string            `json:"biller"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// SettlementResult is the provider independent result of a settlement call.
type SettlementResult struct {
	Provider          string           `json:"provider"`
	ProviderReference string           `json:"provider_reference"`
	Status            SettlementStatus `json:"status"`
	RawResponse       json.RawMessage  `json:"raw_response,omitempty"`
}
