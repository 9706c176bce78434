// Package historyservice serves read-only projections of the committed transactions.
package historyservice

import (
	"context"
	"strconv"
	"time"

	"github.com/go-petr/pet-ledger/internal/domain"
)

// Repo provides data access layer interface needed by history service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package historyservice
type Repo interface {
	Get(ctx context.Context, reference string) (domain.Transaction, error)
	List(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error)
	Count(ctx context.Context, filter domain.TransactionFilter) (int64, error)
	Summary(ctx context.Context, accountIDs []int64) (domain.Summary, error)
}

// Service facilitates history service layer logic.
type Service struct {
	repo              Repo
	reconciliationSLA time.Duration
	now               func() time.Time
}

// New returns history service struct to read the transaction history.
func New(repo Repo, reconciliationSLA time.Duration) *Service {
	return &Service{
		repo:              repo,
		reconciliationSLA: reconciliationSLA,
		now:               time.Now,
	}
}

// List returns a page of the transactions visible to the accounts.
//
// Completed transfers into the accounts are included. page starts at 1.
func (s *Service) List(ctx context.Context, filter domain.TransactionFilter, page, pageSize int32) (domain.HistoryPage, error) {
	if page < 1 {
		page = 1
	}

	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	result := domain.HistoryPage{
		Items:      []domain.HistoryItem{},
		Pagination: domain.Pagination{Page: page, Limit: pageSize},
	}

	if len(filter.AccountIDs) == 0 {
		return result, nil
	}

	transactions, err := s.repo.List(ctx, filter)
	if err != nil {
		return result, err
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return result, err
	}

	for _, t := range transactions {
		result.Items = append(result.Items, s.item(t))
	}

	result.Pagination.Total = total

	return result, nil
}

// GetByReference returns the transaction if one of the accounts initiated it
// or received it as a completed transfer. Others get ErrTransactionNotFound.
func (s *Service) GetByReference(ctx context.Context, reference string, accountIDs []int64) (domain.HistoryItem, error) {
	t, err := s.repo.Get(ctx, reference)
	if err != nil {
		return domain.HistoryItem{}, err
	}

	if !visible(t, accountIDs) {
		return domain.HistoryItem{}, domain.ErrTransactionNotFound
	}

	return s.item(t), nil
}

// Summary returns the totals of the transactions initiated by the accounts.
func (s *Service) Summary(ctx context.Context, accountIDs []int64) (domain.Summary, error) {
	if len(accountIDs) == 0 {
		return domain.Summary{
			TotalsByType:   map[domain.TransactionType]domain.Totals{},
			TotalsByStatus: map[domain.Status]domain.Totals{},
		}, nil
	}

	return s.repo.Summary(ctx, accountIDs)
}

func (s *Service) item(t domain.Transaction) domain.HistoryItem {
	return domain.HistoryItem{
		Transaction:           t,
		PendingReconciliation: t.PendingReconciliation(s.now(), s.reconciliationSLA),
	}
}

func visible(t domain.Transaction, accountIDs []int64) bool {
	for _, id := range accountIDs {
		if t.AccountID == id {
			return true
		}

		if t.Type == domain.TypeTransfer &&
			t.Status == domain.StatusCompleted &&
			t.CounterpartyRef == strconv.FormatInt(id, 10) {
			return true
		}
	}

	return false
}
