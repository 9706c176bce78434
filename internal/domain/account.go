// Package domain provides definitions of all entities.
package domain

import (
	"errors"
	"time"
)

var (
	// ErrAccountNotFound indicates that the account is not found.
	ErrAccountNotFound = errors.New("account not found")
	// ErrCurrencyAlreadyExists indicates that the account with the given currency already exists.
	ErrCurrencyAlreadyExists = errors.New("account currency already exists")
	// ErrOwnerMismatch indicates that the account does not belong to the caller.
	ErrOwnerMismatch = errors.New("account owner mismatch")
	// ErrInsufficientFunds indicates that the debit would make the balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrVersionConflict indicates that another mutation changed the account first.
	ErrVersionConflict = errors.New("account version conflict")
)

// Account holds the balance of an owner for a specific currency.
//
// Balance is kept in minor currency units and is never negative.
// Version is incremented on every successful balance mutation.
type Account struct {
	ID        int64     `json:"id"`
	Owner     string    `json:"owner"`
	Balance   int64     `json:"balance"`
	Currency  string    `json:"currency"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
