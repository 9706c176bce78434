// Package entryrepo manages repository layer of entries.
package entryrepo

import (
	"context"
	"errors"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
)

// RepoPGS facilitates entry repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns entry RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{db: db}
}

const createQuery = `
INSERT INTO
    entries (account_id, transaction_reference, amount, balance_after)
VALUES
    ($1, $2, $3, $4)
RETURNING id, account_id, transaction_reference, amount, balance_after, created_at
`

// Create records the balance change and then returns it.
func (r *RepoPGS) Create(ctx context.Context, arg domain.CreateEntryParams) (domain.Entry, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, createQuery,
		arg.AccountID,
		arg.TransactionReference,
		arg.Amount,
		arg.BalanceAfter,
	)

	var e domain.Entry

	err := row.Scan(
		&e.ID,
		&e.AccountID,
		&e.TransactionReference,
		&e.Amount,
		&e.BalanceAfter,
		&e.CreatedAt,
	)

	if err != nil {
		l.Error().Err(err).Msgf("Create(ctx, %+v)", arg)

		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Constraint {
			case "entries_account_id_fkey":
				return e, domain.ErrAccountNotFound
			case "entries_transaction_reference_fkey":
				return e, domain.ErrTransactionNotFound
			}
		}

		return e, errorspkg.ErrInternal
	}

	return e, nil
}

const listQuery = `
SELECT id, account_id, transaction_reference, amount, balance_after, created_at
FROM entries
WHERE account_id = $1
ORDER BY id
LIMIT $2 OFFSET $3
`

// List returns the specified number of entries for the given accountID.
func (r *RepoPGS) List(ctx context.Context, accountID int64, limit, offset int32) ([]domain.Entry, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listQuery, accountID, limit, offset)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Entry{}

	for rows.Next() {
		var e domain.Entry
		if err := rows.Scan(
			&e.ID,
			&e.AccountID,
			&e.TransactionReference,
			&e.Amount,
			&e.BalanceAfter,
			&e.CreatedAt,
		); err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, e)
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

const sumQuery = `
SELECT COALESCE(SUM(amount), 0)::bigint FROM entries
WHERE account_id = $1
`

// Sum returns the sum of all entries of the account.
//
// It equals the account balance for every committed state.
func (r *RepoPGS) Sum(ctx context.Context, accountID int64) (int64, error) {
	l := zerolog.Ctx(ctx)

	var sum int64

	if err := r.db.QueryRowContext(ctx, sumQuery, accountID).Scan(&sum); err != nil {
		l.Error().Err(err).Send()
		return 0, errorspkg.ErrInternal
	}

	return sum, nil
}
