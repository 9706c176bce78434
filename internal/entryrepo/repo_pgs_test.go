//go:build integration

package entryrepo_test

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/entryrepo"
	"github.com/go-petr/pet-ledger/internal/integrationtest"
	"github.com/go-petr/pet-ledger/internal/integrationtest/helpers"
	"github.com/go-petr/pet-ledger/pkg/configpkg"
	"github.com/go-petr/pet-ledger/pkg/currencypkg"
	"github.com/go-petr/pet-ledger/pkg/randompkg"
)

var (
	dbDriver string
	dbSource string
)

func TestMain(m *testing.M) {
	config, err := configpkg.Load("../../configs")
	if err != nil {
		log.Fatal("cannot load config:", err)
	}

	dbDriver = config.DBDriver
	dbSource = config.DBSource

	os.Exit(m.Run())
}

func TestCreate(t *testing.T) {
	testCases := []struct {
		name    string
		arg     func(t *testing.T, db *sql.Tx) domain.CreateEntryParams
		wantErr error
	}{
		{
			name: "OK",
			arg: func(t *testing.T, db *sql.Tx) domain.CreateEntryParams {
				account := helpers.SeedAccount(t, db, randompkg.Owner(), currencypkg.USD)
				transaction := helpers.SeedTransaction(t, db, domain.CreateTransactionParams{
					AccountID: account.ID,
					Type:      domain.TypeFunding,
					Amount:    100,
					Currency:  currencypkg.USD,
				})

				return domain.CreateEntryParams{
					AccountID:            account.ID,
					TransactionReference: transaction.Reference,
					Amount:               100,
					BalanceAfter:         100,
				}
			},
		},
		{
			name: "AccountNotFound",
			arg: func(t *testing.T, db *sql.Tx) domain.CreateEntryParams {
				account := helpers.SeedAccount(t, db, randompkg.Owner(), currencypkg.USD)
				transaction := helpers.SeedTransaction(t, db, domain.CreateTransactionParams{
					AccountID: account.ID,
					Type:      domain.TypeFunding,
					Amount:    100,
					Currency:  currencypkg.USD,
				})

				return domain.CreateEntryParams{AccountID: -1, TransactionReference: transaction.Reference, Amount: 1}
			},
			wantErr: domain.ErrAccountNotFound,
		},
		{
			name: "TransactionNotFound",
			arg: func(t *testing.T, db *sql.Tx) domain.CreateEntryParams {
				account := helpers.SeedAccount(t, db, randompkg.Owner(), currencypkg.USD)
				return domain.CreateEntryParams{AccountID: account.ID, TransactionReference: "missing", Amount: 1}
			},
			wantErr: domain.ErrTransactionNotFound,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tx := integrationtest.SetupTX(t, dbDriver, dbSource)
			arg := tc.arg(t, tx)

			got, err := entryrepo.NewRepoPGS(tx).Create(context.Background(), arg)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("entryRepo.Create(ctx, %+v) returned error: %v, want %v", arg, err, tc.wantErr)
			}

			if tc.wantErr != nil {
				return
			}

			want := domain.Entry{
				AccountID:            arg.AccountID,
				TransactionReference: arg.TransactionReference,
				Amount:               arg.Amount,
				BalanceAfter:         arg.BalanceAfter,
				CreatedAt:            time.Now(),
			}

			ignore := cmpopts.IgnoreFields(domain.Entry{}, "ID")
			approxTime := cmpopts.EquateApproxTime(time.Minute)

			if diff := cmp.Diff(want, got, ignore, approxTime); diff != "" {
				t.Errorf("entryRepo.Create(ctx, %+v) returned unexpected difference (-want +got):\n%s", arg, diff)
			}
		})
	}
}

func TestListAndSum(t *testing.T) {
	t.Parallel()

	tx := integrationtest.SetupTX(t, dbDriver, dbSource)
	entryRepo := entryrepo.NewRepoPGS(tx)

	account := helpers.SeedFundedAccount(t, tx, randompkg.Owner(), currencypkg.NGN, 2_500)

	got, err := entryRepo.List(context.Background(), account.ID, 10, 0)
	if err != nil {
		t.Fatalf("entryRepo.List(ctx, %v, 10, 0) returned error: %v", account.ID, err)
	}

	if len(got) != 1 || got[0].Amount != 2_500 || got[0].BalanceAfter != 2_500 {
		t.Errorf("entryRepo.List(ctx, %v, 10, 0) = %+v, want one entry of 2500", account.ID, got)
	}

	sum, err := entryRepo.Sum(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("entryRepo.Sum(ctx, %v) returned error: %v", account.ID, err)
	}

	if sum != account.Balance {
		t.Errorf("entryRepo.Sum(ctx, %v) = %v, want balance %v", account.ID, sum, account.Balance)
	}
}
