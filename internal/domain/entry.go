package domain

import "time"

// Entry holds a committed balance change of an account.
type Entry struct {
	ID                   int64     `json:"id"`
	AccountID            int64     `json:"account_id"`
	TransactionReference string    `json:"transaction_reference"`
	Amount               int64     `json:"amount"` // can be negative or positive
	BalanceAfter         int64     `json:"balance_after"`
	CreatedAt            time.Time `json:"created_at"`
}

// CreateEntryParams is the input data to record a balance change.
type CreateEntryParams struct {
	AccountID            int64
	TransactionReference string
	Amount               int64
	BalanceAfter         int64
}
