package accountservice

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/currencypkg"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
)

func TestCreate(t *testing.T) {
	account := domain.Account{ID: 1, Owner: "alice", Currency: currencypkg.NGN}

	testCases := []struct {
		name       string
		currency   string
		buildStubs func(repo *MockRepo)
		want       domain.Account
		wantErr    error
	}{
		{
			name:     "OK",
			currency: currencypkg.NGN,
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().Create(gomock.Any(), "alice", currencypkg.NGN).Return(account, nil)
			},
			want: account,
		},
		{
			name:     "UnsupportedCurrency",
			currency: "XYZ",
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantErr: domain.ErrUnsupportedCurrency,
		},
		{
			name:     "CurrencyAlreadyExists",
			currency: currencypkg.NGN,
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().Create(gomock.Any(), "alice", currencypkg.NGN).
					Return(domain.Account{}, domain.ErrCurrencyAlreadyExists)
			},
			wantErr: domain.ErrCurrencyAlreadyExists,
		},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := NewMockRepo(ctrl)
			tc.buildStubs(repo)

			s := New(repo, NewMockEntryRepo(ctrl))

			got, err := s.Create(context.Background(), "alice", tc.currency)
			require.ErrorIs(t, err, tc.wantErr)

			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Create() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestList(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepo(ctrl)

	accounts := []domain.Account{
		{ID: 1, Owner: "alice", Currency: currencypkg.NGN},
		{ID: 2, Owner: "alice", Currency: currencypkg.USD},
	}

	repo.EXPECT().List(gomock.Any(), "alice", int32(5), int32(10)).Return(accounts, nil)

	s := New(repo, NewMockEntryRepo(ctrl))

	got, err := s.List(context.Background(), "alice", 5, 3)
	require.NoError(t, err)
	require.Equal(t, accounts, got)
}

func TestIDs(t *testing.T) {
	testCases := []struct {
		name       string
		buildStubs func(repo *MockRepo)
		want       []int64
		wantErr    error
	}{
		{
			name: "OK",
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().List(gomock.Any(), "alice", int32(maxAccountsPerOwner), int32(0)).
					Return([]domain.Account{{ID: 4}, {ID: 9}}, nil)
			},
			want: []int64{4, 9},
		},
		{
			name: "NoAccounts",
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().List(gomock.Any(), "alice", gomock.Any(), gomock.Any()).Return(nil, nil)
			},
			want: []int64{},
		},
		{
			name: "InternalError",
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().List(gomock.Any(), "alice", gomock.Any(), gomock.Any()).Return(nil, errorspkg.ErrInternal)
			},
			wantErr: errorspkg.ErrInternal,
		},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := NewMockRepo(ctrl)
			tc.buildStubs(repo)

			s := New(repo, NewMockEntryRepo(ctrl))

			got, err := s.IDs(context.Background(), "alice")
			require.ErrorIs(t, err, tc.wantErr)

			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("IDs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestListEntries(t *testing.T) {
	entries := []domain.Entry{
		{ID: 2, AccountID: 1, TransactionReference: "ref-2", Amount: -300, BalanceAfter: 700},
		{ID: 1, AccountID: 1, TransactionReference: "ref-1", Amount: 1000, BalanceAfter: 1000},
	}

	testCases := []struct {
		name       string
		owner      string
		buildStubs func(repo *MockRepo, entryRepo *MockEntryRepo)
		want       []domain.Entry
		wantErr    error
	}{
		{
			name:  "OK",
			owner: "alice",
			buildStubs: func(repo *MockRepo, entryRepo *MockEntryRepo) {
				repo.EXPECT().Get(gomock.Any(), int64(1)).Return(domain.Account{ID: 1, Owner: "alice"}, nil)
				entryRepo.EXPECT().List(gomock.Any(), int64(1), int32(5), int32(0)).Return(entries, nil)
			},
			want: entries,
		},
		{
			name:  "OwnerMismatch",
			owner: "mallory",
			buildStubs: func(repo *MockRepo, entryRepo *MockEntryRepo) {
				repo.EXPECT().Get(gomock.Any(), int64(1)).Return(domain.Account{ID: 1, Owner: "alice"}, nil)
				entryRepo.EXPECT().List(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantErr: domain.ErrOwnerMismatch,
		},
		{
			name:  "AccountNotFound",
			owner: "alice",
			buildStubs: func(repo *MockRepo, entryRepo *MockEntryRepo) {
				repo.EXPECT().Get(gomock.Any(), int64(1)).Return(domain.Account{}, domain.ErrAccountNotFound)
				entryRepo.EXPECT().List(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantErr: domain.ErrAccountNotFound,
		},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := NewMockRepo(ctrl)
			entryRepo := NewMockEntryRepo(ctrl)
			tc.buildStubs(repo, entryRepo)

			s := New(repo, entryRepo)

			got, err := s.ListEntries(context.Background(), tc.owner, 1, 5, 1)
			require.ErrorIs(t, err, tc.wantErr)

			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ListEntries() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
