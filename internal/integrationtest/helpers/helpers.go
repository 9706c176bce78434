// Package helpers seeds the database for integration tests.
package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/go-petr/pet-ledger/internal/accountrepo"
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/entryrepo"
	"github.com/go-petr/pet-ledger/internal/transactionrepo"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
	"github.com/go-petr/pet-ledger/pkg/randompkg"
)

// RandomAccount returns an unsaved account of the owner with random balance and currency.
func RandomAccount(owner string) domain.Account {
	now := time.Now().UTC().Truncate(time.Second)

	return domain.Account{
		ID:        randompkg.Int64Between(1, 1000),
		Owner:     owner,
		Balance:   randompkg.MinorAmountBetween(100, 1_000_000),
		Currency:  randompkg.Currency(),
		Version:   randompkg.Int64Between(1, 10),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SeedAccount creates an empty account of the owner in the given currency.
func SeedAccount(t *testing.T, db dbpkg.SQLInterface, owner, currency string) domain.Account {
	t.Helper()

	account, err := accountrepo.NewRepoPGS(db).Create(context.Background(), owner, currency)
	if err != nil {
		t.Fatalf("accountRepo.Create(ctx, %v, %v) returned error: %v", owner, currency, err)
	}

	return account
}

const fundQuery = `
UPDATE transactions
SET status = 'completed', completed_at = now(), updated_at = now()
WHERE reference = $1
`

// SeedFundedAccount creates an account holding balance backed by a completed funding entry.
func SeedFundedAccount(t *testing.T, db dbpkg.SQLInterface, owner, currency string, balance int64) domain.Account {
	t.Helper()

	ctx := context.Background()
	account := SeedAccount(t, db, owner, currency)

	if balance == 0 {
		return account
	}

	funding := SeedTransaction(t, db, domain.CreateTransactionParams{
		Reference: randompkg.Reference(),
		AccountID: account.ID,
		Type:      domain.TypeFunding,
		Amount:    balance,
		Currency:  currency,
	})

	account, err := accountrepo.NewRepoPGS(db).ApplyDelta(ctx, account.ID, balance, account.Version)
	if err != nil {
		t.Fatalf("accountRepo.ApplyDelta(ctx, %v, %v, %v) returned error: %v",
			account.ID, balance, account.Version, err)
	}

	_, err = entryrepo.NewRepoPGS(db).Create(ctx, domain.CreateEntryParams{
		AccountID:            account.ID,
		TransactionReference: funding.Reference,
		Amount:               balance,
		BalanceAfter:         account.Balance,
	})
	if err != nil {
		t.Fatalf("entryRepo.Create(ctx, ...) returned error: %v", err)
	}

	if _, err := db.ExecContext(ctx, fundQuery, funding.Reference); err != nil {
		t.Fatalf("completing seed funding %v returned error: %v", funding.Reference, err)
	}

	return account
}

// SeedTransaction stores a pending transaction.
func SeedTransaction(t *testing.T, db dbpkg.SQLInterface, arg domain.CreateTransactionParams) domain.Transaction {
	t.Helper()

	if arg.Reference == "" {
		arg.Reference = randompkg.Reference()
	}

	transaction, err := transactionrepo.NewTxRepoPGS(db).Create(context.Background(), arg)
	if err != nil {
		t.Fatalf("transactionRepo.Create(ctx, %+v) returned error: %v", arg, err)
	}

	return transaction
}

// SeedProcessingTransaction stores a transaction and moves it to processing.
func SeedProcessingTransaction(t *testing.T, db dbpkg.SQLInterface, arg domain.CreateTransactionParams) domain.Transaction {
	t.Helper()

	transaction := SeedTransaction(t, db, arg)

	transaction, err := transactionrepo.NewTxRepoPGS(db).Transition(context.Background(), domain.TransitionParams{
		Reference: transaction.Reference,
		From:      domain.StatusPending,
		To:        domain.StatusProcessing,
	})
	if err != nil {
		t.Fatalf("transactionRepo.Transition(ctx, %v) returned error: %v", transaction.Reference, err)
	}

	return transaction
}
