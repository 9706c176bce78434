// Package transactionrepo manages repository layer of ledger transactions.
package transactionrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/accountrepo"
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/entryrepo"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
)

// RepoPGS facilitates transaction repository layer logic.
type RepoPGS struct {
	db   dbpkg.SQLInterface
	conn *sql.DB
}

// NewTxRepoPGS returns transaction RepoPGS bound to an open db transaction.
//
// Commit is not available on such a repo.
func NewTxRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

// NewRepoPGS returns transaction RepoPGS with connection to start db transactions.
func NewRepoPGS(db *sql.DB) *RepoPGS {
	return &RepoPGS{
		db:   db,
		conn: db,
	}
}

const transactionColumns = `
	reference, account_id, counterparty_ref, type, amount, currency, status,
	verification_id, verification_expires_at, provider_reference, failure_reason,
	metadata, created_at, updated_at, completed_at`

func scanTransaction(row interface{ Scan(...any) error }) (domain.Transaction, error) {
	var (
		t           domain.Transaction
		expiresAt   sql.NullTime
		completedAt sql.NullTime
		metadata    []byte
	)

	err := row.Scan(
		&t.Reference,
		&t.AccountID,
		&t.CounterpartyRef,
		&t.Type,
		&t.Amount,
		&t.Currency,
		&t.Status,
		&t.VerificationID,
		&expiresAt,
		&t.ProviderReference,
		&t.FailureReason,
		&metadata,
		&t.CreatedAt,
		&t.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return t, err
	}

	if expiresAt.Valid {
		v := expiresAt.Time
		t.VerificationExpiresAt = &v
	}

	if completedAt.Valid {
		v := completedAt.Time
		t.CompletedAt = &v
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
			return t, err
		}
	}

	if len(t.Metadata) == 0 {
		t.Metadata = nil
	}

	return t, nil
}

const createQuery = `
INSERT INTO
    transactions (reference, account_id, counterparty_ref, type, amount, currency, metadata)
VALUES
    ($1, $2, $3, $4, $5, $6, $7)
RETURNING` + transactionColumns

// Create stores a new pending transaction and then returns it.
func (r *RepoPGS) Create(ctx context.Context, arg domain.CreateTransactionParams) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	metadata := "{}"

	if len(arg.Metadata) > 0 {
		b, err := json.Marshal(arg.Metadata)
		if err != nil {
			l.Error().Err(err).Send()
			return domain.Transaction{}, errorspkg.ErrInternal
		}

		metadata = string(b)
	}

	row := r.db.QueryRowContext(ctx, createQuery,
		arg.Reference,
		arg.AccountID,
		arg.CounterpartyRef,
		arg.Type,
		arg.Amount,
		arg.Currency,
		metadata,
	)

	t, err := scanTransaction(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Constraint {
			case "transactions_pkey":
				return t, domain.ErrDuplicateReference
			case "transactions_account_id_fkey":
				return t, domain.ErrAccountNotFound
			case "transactions_amount_check":
				return t, domain.ErrInvalidAmount
			case "transactions_type_check":
				return t, domain.ErrInvalidTransactionType
			}
		}

		l.Error().Err(err).Msgf("Create(ctx, %+v)", arg)

		return t, errorspkg.ErrInternal
	}

	return t, nil
}

const getQuery = `
SELECT` + transactionColumns + `
FROM transactions
WHERE reference = $1
`

// Get returns the transaction with the given reference.
func (r *RepoPGS) Get(ctx context.Context, reference string) (domain.Transaction, error) {
	return r.get(ctx, getQuery, reference)
}

const getForUpdateQuery = getQuery + `FOR UPDATE`

func (r *RepoPGS) get(ctx context.Context, query, reference string) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, reference))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, domain.ErrTransactionNotFound
		}

		l.Error().Err(err).Send()

		return t, errorspkg.ErrInternal
	}

	return t, nil
}

const transitionQuery = `
UPDATE transactions
SET
    status = $3,
    verification_id = COALESCE(NULLIF($4, ''), verification_id),
    verification_expires_at = COALESCE($5, verification_expires_at),
    failure_reason = COALESCE(NULLIF($6, ''), failure_reason),
    updated_at = now()
WHERE reference = $1 AND status = $2
RETURNING` + transactionColumns

// Transition moves the transaction from arg.From to arg.To.
//
// It is a compare-and-swap on the stored status: if another writer moved the
// transaction first, ErrInvalidTransition is returned and nothing changes.
func (r *RepoPGS) Transition(ctx context.Context, arg domain.TransitionParams) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	if !arg.From.CanTransitionTo(arg.To) {
		return domain.Transaction{}, domain.ErrInvalidTransition
	}

	var expiresAt sql.NullTime
	if arg.VerificationExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *arg.VerificationExpiresAt, Valid: true}
	}

	row := r.db.QueryRowContext(ctx, transitionQuery,
		arg.Reference,
		arg.From,
		arg.To,
		arg.VerificationID,
		expiresAt,
		arg.FailureReason,
	)

	t, err := scanTransaction(row)
	if err == nil {
		return t, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		l.Error().Err(err).Msgf("Transition(ctx, %+v)", arg)
		return t, errorspkg.ErrInternal
	}

	if _, err := r.Get(ctx, arg.Reference); err != nil {
		return t, err
	}

	return t, domain.ErrInvalidTransition
}

const setProviderReferenceQuery = `
UPDATE transactions
SET provider_reference = $2, updated_at = now()
WHERE reference = $1 AND status = 'processing'
RETURNING` + transactionColumns

// SetProviderReference stores the settlement provider reference of a processing transaction.
func (r *RepoPGS) SetProviderReference(ctx context.Context, reference, providerRef string) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	t, err := scanTransaction(r.db.QueryRowContext(ctx, setProviderReferenceQuery, reference, providerRef))
	if err == nil {
		return t, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		l.Error().Err(err).Send()
		return t, errorspkg.ErrInternal
	}

	if _, err := r.Get(ctx, reference); err != nil {
		return t, err
	}

	return t, domain.ErrInvalidTransition
}

const completeQuery = `
UPDATE transactions
SET status = 'completed', completed_at = now(), updated_at = now()
WHERE reference = $1 AND status = 'processing'
RETURNING` + transactionColumns

// Commit applies the balance deltas and completes the transaction in a single db transaction.
//
// The transaction row is locked first and must be processing, so a reference is
// committed at most once. Deltas are applied in ascending account id order to
// avoid deadlocks between opposite transfers. Any error rolls everything back.
func (r *RepoPGS) Commit(ctx context.Context, arg domain.CommitParams) (domain.CommitResult, error) {
	l := zerolog.Ctx(ctx)

	var result domain.CommitResult

	if r.conn == nil {
		l.Error().Msg("Commit called on a repo without connection")
		return result, errorspkg.ErrInternal
	}

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			l.Error().Err(err).Send()
		}
	}()

	txRepo := NewTxRepoPGS(tx)
	accountRepo := accountrepo.NewRepoPGS(tx)
	entryRepo := entryrepo.NewRepoPGS(tx)

	t, err := txRepo.get(ctx, getForUpdateQuery, arg.Reference)
	if err != nil {
		return result, err
	}

	if t.Status != domain.StatusProcessing {
		return result, domain.ErrInvalidTransition
	}

	deltas := make([]domain.Delta, len(arg.Deltas))
	copy(deltas, arg.Deltas)

	sort.Slice(deltas, func(i, j int) bool {
		return deltas[i].AccountID < deltas[j].AccountID
	})

	for _, d := range deltas {
		account, err := accountRepo.ApplyDelta(ctx, d.AccountID, d.Amount, d.ExpectedVersion)
		if err != nil {
			return domain.CommitResult{}, err
		}

		entry, err := entryRepo.Create(ctx, domain.CreateEntryParams{
			AccountID:            d.AccountID,
			TransactionReference: arg.Reference,
			Amount:               d.Amount,
			BalanceAfter:         account.Balance,
		})
		if err != nil {
			return domain.CommitResult{}, err
		}

		result.Accounts = append(result.Accounts, account)
		result.Entries = append(result.Entries, entry)
	}

	result.Transaction, err = scanTransaction(tx.QueryRowContext(ctx, completeQuery, arg.Reference))
	if err != nil {
		l.Error().Err(err).Send()
		return domain.CommitResult{}, errorspkg.ErrInternal
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Send()
		return domain.CommitResult{}, errorspkg.ErrInternal
	}

	return result, nil
}

const listExpiringQuery = `
SELECT` + transactionColumns + `
FROM transactions
WHERE status = 'awaiting_verification' AND verification_expires_at <= $1
ORDER BY verification_expires_at
LIMIT $2
`

// ListExpiring returns transactions awaiting verification whose challenge expired at now.
func (r *RepoPGS) ListExpiring(ctx context.Context, now time.Time, limit int32) ([]domain.Transaction, error) {
	return r.list(ctx, listExpiringQuery, now, limit)
}

const listStuckQuery = `
SELECT` + transactionColumns + `
FROM transactions
WHERE status = 'processing' AND updated_at < $1
ORDER BY updated_at
LIMIT $2
`

// ListStuck returns transactions processing since before the given time.
func (r *RepoPGS) ListStuck(ctx context.Context, before time.Time, limit int32) ([]domain.Transaction, error) {
	return r.list(ctx, listStuckQuery, before, limit)
}

// visibleFilter selects the transactions an account set may read: the ones it
// initiated and the completed transfers it received.
const visibleFilter = `
WHERE
    (account_id = ANY($1)
        OR (type = 'transfer' AND status = 'completed' AND counterparty_ref = ANY($2)))
    AND ($3 = '' OR type = $3)
    AND ($4 = '' OR status = $4)
    AND ($5::timestamptz IS NULL OR created_at >= $5)
    AND ($6::timestamptz IS NULL OR created_at < $6)
`

const listQuery = `
SELECT` + transactionColumns + `
FROM transactions` + visibleFilter + `
ORDER BY created_at DESC, reference
LIMIT $7 OFFSET $8
`

// List returns a page of the transactions visible to filter.AccountIDs, newest first.
func (r *RepoPGS) List(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	args := append(filterArgs(filter), filter.Limit, filter.Offset)
	return r.list(ctx, listQuery, args...)
}

const countQuery = `
SELECT count(*) FROM transactions` + visibleFilter

// Count returns the number of the transactions visible to filter.AccountIDs.
func (r *RepoPGS) Count(ctx context.Context, filter domain.TransactionFilter) (int64, error) {
	l := zerolog.Ctx(ctx)

	var total int64

	if err := r.db.QueryRowContext(ctx, countQuery, filterArgs(filter)...).Scan(&total); err != nil {
		l.Error().Err(err).Send()
		return 0, errorspkg.ErrInternal
	}

	return total, nil
}

func filterArgs(filter domain.TransactionFilter) []any {
	refs := make([]string, len(filter.AccountIDs))
	for i, id := range filter.AccountIDs {
		refs[i] = strconv.FormatInt(id, 10)
	}

	var from, to sql.NullTime
	if filter.From != nil {
		from = sql.NullTime{Time: *filter.From, Valid: true}
	}

	if filter.To != nil {
		to = sql.NullTime{Time: *filter.To, Valid: true}
	}

	return []any{
		pq.Array(filter.AccountIDs),
		pq.Array(refs),
		string(filter.Type),
		string(filter.Status),
		from,
		to,
	}
}

const summaryQuery = `
SELECT type, status, count(*), COALESCE(SUM(amount), 0)::bigint
FROM transactions
WHERE account_id = ANY($1)
GROUP BY type, status
`

// Summary returns totals of the transactions initiated by the accounts by type and by status.
func (r *RepoPGS) Summary(ctx context.Context, accountIDs []int64) (domain.Summary, error) {
	l := zerolog.Ctx(ctx)

	summary := domain.Summary{
		TotalsByType:   map[domain.TransactionType]domain.Totals{},
		TotalsByStatus: map[domain.Status]domain.Totals{},
	}

	rows, err := r.db.QueryContext(ctx, summaryQuery, pq.Array(accountIDs))
	if err != nil {
		l.Error().Err(err).Send()
		return summary, errorspkg.ErrInternal
	}
	defer rows.Close()

	for rows.Next() {
		var (
			txType domain.TransactionType
			status domain.Status
			totals domain.Totals
		)

		if err := rows.Scan(&txType, &status, &totals.Count, &totals.Amount); err != nil {
			l.Error().Err(err).Send()
			return summary, errorspkg.ErrInternal
		}

		byType := summary.TotalsByType[txType]
		byType.Count += totals.Count
		byType.Amount += totals.Amount
		summary.TotalsByType[txType] = byType

		byStatus := summary.TotalsByStatus[status]
		byStatus.Count += totals.Count
		byStatus.Amount += totals.Amount
		summary.TotalsByStatus[status] = byStatus
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return summary, errorspkg.ErrInternal
	}

	return summary, nil
}

func (r *RepoPGS) list(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Transaction{}

	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, t)
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
