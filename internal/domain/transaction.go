package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrInvalidAmount indicates a non-positive amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrUnsupportedCurrency indicates that the currency is not supported.
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	// ErrCurrencyMismatch indicates that the account and the transaction currencies differ.
	ErrCurrencyMismatch = errors.New("currency mismatch")
	// ErrInvalidCounterparty indicates a missing or unusable counterparty reference.
	ErrInvalidCounterparty = errors.New("invalid counterparty")
	// ErrInvalidTransactionType indicates an unknown transaction type.
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	// ErrReferenceConflict indicates a reused reference with different parameters.
	ErrReferenceConflict = errors.New("reference already used with different parameters")
	// ErrDuplicateReference indicates that a transaction with the reference is already stored.
	ErrDuplicateReference = errors.New("duplicate reference")
	// ErrTransactionNotFound indicates that the transaction is not found.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrInvalidTransition indicates that the transaction is not in a state allowing the operation.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidProviderStatus indicates an unknown provider status in a callback.
	ErrInvalidProviderStatus = errors.New("invalid provider status")
)

// IsValidation reports whether err belongs to the validation family.
//
// Validation errors never mutate state.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidAmount,
		ErrUnsupportedCurrency,
		ErrAccountNotFound,
		ErrCurrencyMismatch,
		ErrInvalidCounterparty,
		ErrInvalidTransactionType,
		ErrReferenceConflict,
		ErrInvalidProviderStatus,
	} {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

// TransactionType is the kind of money movement.
type TransactionType string

// Supported transaction types.
const (
	TypeFunding     TransactionType = "funding"
	TypeWithdrawal  TransactionType = "withdrawal"
	TypeTransfer    TransactionType = "transfer"
	TypeBillPayment TransactionType = "bill_payment"
)

// TransactionTypes holds all the transaction types.
var TransactionTypes = []TransactionType{
	TypeFunding,
	TypeWithdrawal,
	TypeTransfer,
	TypeBillPayment,
}

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	for _, v := range TransactionTypes {
		if v == t {
			return true
		}
	}

	return false
}

// IsDebit reports whether the type takes money out of the initiating account.
func (t TransactionType) IsDebit() bool {
	return t == TypeWithdrawal || t == TypeTransfer || t == TypeBillPayment
}

// Status is a state of the transaction state machine.
type Status string

// Transaction statuses.
const (
	StatusPending              Status = "pending"
	StatusAwaitingVerification Status = "awaiting_verification"
	StatusProcessing           Status = "processing"
	StatusCompleted            Status = "completed"
	StatusFailed               Status = "failed"
	StatusExpired              Status = "expired"
)

// Statuses holds all the transaction statuses.
var Statuses = []Status{
	StatusPending,
	StatusAwaitingVerification,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusExpired,
}

var transitions = map[Status][]Status{
	StatusPending:              {StatusAwaitingVerification, StatusProcessing},
	StatusAwaitingVerification: {StatusProcessing, StatusFailed, StatusExpired},
	StatusProcessing:           {StatusCompleted, StatusFailed},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}

	return false
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusExpired
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, v := range transitions[s] {
		if v == next {
			return true
		}
	}

	return false
}

// Transaction holds one funding, withdrawal, transfer or bill payment attempt.
//
// Reference and Amount never change after creation.
type Transaction struct {
	Reference             string            `json:"reference"`
	AccountID             int64             `json:"account_id"`
	CounterpartyRef       string            `json:"counterparty_ref,omitempty"`
	Type                  TransactionType   `json:"type"`
	Amount                int64             `json:"amount"` // must be positive
	Currency              string            `json:"currency"`
	Status                Status            `json:"status"`
	VerificationID        string            `json:"verification_id,omitempty"`
	VerificationExpiresAt *time.Time        `json:"verification_expires_at,omitempty"`
	ProviderReference     string            `json:"provider_reference,omitempty"`
	FailureReason         string            `json:"failure_reason,omitempty"`
	Metadata              map[string]string `json:"metadata,omitempty"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
	CompletedAt           *time.Time        `json:"completed_at,omitempty"`
}

// PendingReconciliation reports whether the transaction stays in processing longer than sla.
func (t Transaction) PendingReconciliation(now time.Time, sla time.Duration) bool {
	return t.Status == StatusProcessing && now.Sub(t.UpdatedAt) > sla
}

// CreateTransactionParams is the input data to store a new pending transaction.
type CreateTransactionParams struct {
	Reference       string
	AccountID       int64
	CounterpartyRef string
	Type            TransactionType
	Amount          int64
	Currency        string
	Metadata        map[string]string
}

// TransitionParams is the input data to move a transaction between two statuses.
//
// The transition only happens if the stored status still equals From.
type TransitionParams struct {
	Reference             string
	From                  Status
	To                    Status
	VerificationID        string
	VerificationExpiresAt *time.Time
	FailureReason         string
}

// Delta is a signed balance change applied to an account at an expected version.
type Delta struct {
	AccountID       int64
	Amount          int64
	ExpectedVersion int64
}

// CommitParams is the input data to atomically apply deltas and complete a transaction.
type CommitParams struct {
	Reference string
	Deltas    []Delta
}

// CommitResult is the result of the commit transaction.
type CommitResult struct {
	Transaction Transaction `json:"transaction"`
	Accounts    []Account   `json:"accounts"`
	Entries     []Entry     `json:"entries"`
}

// AccountFor returns the committed account with the given id.
func (r CommitResult) AccountFor(id int64) (Account, bool) {
	for _, a := range r.Accounts {
		if a.ID == id {
			return a, true
		}
	}

	return Account{}, false
}

// CallbackParams is the provider answer delivered by a callback.
type CallbackParams struct {
	ProviderStatus    string
	ProviderReference string
}

// NormalizeProviderStatus maps a provider status onto accepted or rejected.
func NormalizeProviderStatus(status string) (SettlementStatus, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success", "successful", "completed", "accepted", "approved":
		return SettlementAccepted, nil
	case "failed", "failure", "rejected", "declined", "cancelled", "canceled", "reversed":
		return SettlementRejected, nil
	default:
		return "", ErrInvalidProviderStatus
	}
}
