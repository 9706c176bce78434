// Package accountservice manages business logic layer of accounts.
package accountservice

import (
	"context"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/currencypkg"
)

// maxAccountsPerOwner bounds the accounts of an owner, one per supported currency.
const maxAccountsPerOwner = 100

// Repo provides data access layer interface needed by account service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package accountservice
type Repo interface {
	Create(ctx context.Context, owner, currency string) (domain.Account, error)
	Get(ctx context.Context, id int64) (domain.Account, error)
	GetByOwnerCurrency(ctx context.Context, owner, currency string) (domain.Account, error)
	List(ctx context.Context, owner string, limit, offset int32) ([]domain.Account, error)
}

// EntryRepo provides the entry reads needed by account service layer.
type EntryRepo interface {
	List(ctx context.Context, accountID int64, limit, offset int32) ([]domain.Entry, error)
}

// Service facilitates account service layer logic.
type Service struct {
	repo      Repo
	entryRepo EntryRepo
}

// New returns account service struct to manage account bussines logic.
func New(ar Repo, er EntryRepo) *Service {
	return &Service{repo: ar, entryRepo: er}
}

// Create creates an empty account for the given owner and currency.
func (s *Service) Create(ctx context.Context, owner, currency string) (domain.Account, error) {
	if !currencypkg.IsSupportedCurrency(currency) {
		return domain.Account{}, domain.ErrUnsupportedCurrency
	}

	return s.repo.Create(ctx, owner, currency)
}

// Get returns account for the given account ID.
func (s *Service) Get(ctx context.Context, id int64) (domain.Account, error) {
	return s.repo.Get(ctx, id)
}

// GetByOwnerCurrency returns the account of the owner in the given currency.
func (s *Service) GetByOwnerCurrency(ctx context.Context, owner, currency string) (domain.Account, error) {
	return s.repo.GetByOwnerCurrency(ctx, owner, currency)
}

// List returns accounts that are owned by the given user.
func (s *Service) List(ctx context.Context, owner string, pageSize, pageID int32) ([]domain.Account, error) {
	limit := pageSize
	offset := (pageID - 1) * pageSize

	return s.repo.List(ctx, owner, limit, offset)
}

// IDs returns the ids of all the accounts of the owner.
func (s *Service) IDs(ctx context.Context, owner string) ([]int64, error) {
	accounts, err := s.repo.List(ctx, owner, maxAccountsPerOwner, 0)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(accounts))
	for i, a := range accounts {
		ids[i] = a.ID
	}

	return ids, nil
}

// ListEntries returns the balance changes of the account of the owner, newest first.
func (s *Service) ListEntries(ctx context.Context, owner string, accountID int64, pageSize, pageID int32) ([]domain.Entry, error) {
	account, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if account.Owner != owner {
		return nil, domain.ErrOwnerMismatch
	}

	return s.entryRepo.List(ctx, accountID, pageSize, (pageID-1)*pageSize)
}
