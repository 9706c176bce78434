package domain

import "time"

// TransactionFilter narrows the transactions read by the history service.
type TransactionFilter struct {
	AccountIDs []int64
	Type       TransactionType
	Status     Status
	From       *time.Time
	To         *time.Time
	Limit      int32
	Offset     int32
}

// Totals aggregates the count and the amount of transactions.
type Totals struct {
	Count  int64 `json:"count"`
	Amount int64 `json:"amount"`
}

// Summary holds aggregate totals of the transactions initiated by accounts.
type Summary struct {
	TotalsByType   map[TransactionType]Totals `json:"totals_by_type"`
	TotalsByStatus map[Status]Totals          `json:"totals_by_status"`
}

// HistoryItem is a transaction as shown by the history service.
//
// PendingReconciliation is set for transactions processing past the reconciliation SLA.
type HistoryItem struct {
	Transaction
	PendingReconciliation bool `json:"pending_reconciliation,omitempty"`
}

// Pagination describes a page of a listing.
type Pagination struct {
	Total int64 `json:"total"`
	Page  int32 `json:"page"`
	Limit int32 `json:"limit"`
}

// HistoryPage is one page of the transaction history.
type HistoryPage struct {
	Items      []HistoryItem `json:"items"`
	Pagination Pagination    `json:"pagination"`
}
