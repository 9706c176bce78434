// Package accountrepo manages repository layer of accounts.
package accountrepo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
)

// RepoPGS facilitates account repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns account RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

const accountColumns = `id, owner, balance, currency, version, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (domain.Account, error) {
	var a domain.Account

	err := row.Scan(
		&a.ID,
		&a.Owner,
		&a.Balance,
		&a.Currency,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

const createQuery = `
INSERT INTO
    accounts (owner, currency)
VALUES
    ($1, $2)
RETURNING ` + accountColumns

// Create creates the account with zero balance and then returns it.
func (r *RepoPGS) Create(ctx context.Context, owner, currency string) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAccount(r.db.QueryRowContext(ctx, createQuery, owner, currency))
	if err != nil {
		l.Error().Err(err).Send()

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Constraint == "accounts_owner_currency_key" {
			return a, domain.ErrCurrencyAlreadyExists
		}

		return a, errorspkg.ErrInternal
	}

	return a, nil
}

const getQuery = `
SELECT ` + accountColumns + `
FROM accounts
WHERE id = $1
`

// Get returns the account with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int64) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAccount(r.db.QueryRowContext(ctx, getQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, domain.ErrAccountNotFound
		}

		l.Error().Err(err).Send()

		return a, errorspkg.ErrInternal
	}

	return a, nil
}

const getByOwnerCurrencyQuery = `
SELECT ` + accountColumns + `
FROM accounts
WHERE owner = $1 AND currency = $2
`

// GetByOwnerCurrency returns the account of the owner in the given currency.
func (r *RepoPGS) GetByOwnerCurrency(ctx context.Context, owner, currency string) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAccount(r.db.QueryRowContext(ctx, getByOwnerCurrencyQuery, owner, currency))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, domain.ErrAccountNotFound
		}

		l.Error().Err(err).Send()

		return a, errorspkg.ErrInternal
	}

	return a, nil
}

const listQuery = `
SELECT ` + accountColumns + `
FROM accounts
WHERE owner = $1
ORDER BY id
LIMIT $2 OFFSET $3
`

// List returns the specified number of accounts for the given owner.
func (r *RepoPGS) List(ctx context.Context, owner string, limit, offset int32) ([]domain.Account, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listQuery, owner, limit, offset)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Account{}

	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, a)
	}

	if err := rows.Close(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}

const applyDeltaQuery = `
UPDATE accounts
SET balance = balance + $1, version = version + 1, updated_at = now()
WHERE id = $2 AND version = $3
RETURNING ` + accountColumns

// ApplyDelta adds the signed amount to the balance if the account is still at expectedVersion.
//
// A debit below zero is rejected by the accounts_balance_check constraint within
// the same statement, so no other writer can observe the intermediate balance.
func (r *RepoPGS) ApplyDelta(ctx context.Context, id, amount, expectedVersion int64) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAccount(r.db.QueryRowContext(ctx, applyDeltaQuery, amount, id, expectedVersion))
	if err == nil {
		return a, nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Constraint == "accounts_balance_check" {
		return a, domain.ErrInsufficientFunds
	}

	if !errors.Is(err, sql.ErrNoRows) {
		l.Error().Err(err).Send()
		return a, errorspkg.ErrInternal
	}

	// Nothing matched: either the row is gone or its version moved on.
	if _, err := r.Get(ctx, id); err != nil {
		return a, err
	}

	return a, domain.ErrVersionConflict
}
