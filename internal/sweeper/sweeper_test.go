package sweeper

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/pet-ledger/internal/ledgerservice"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
)

func TestRunOnce(t *testing.T) {
	testCases := []struct {
		name       string
		buildStubs func(ledger *MockLedger, observer *MockObserver)
		want       Report
		wantErr    error
	}{
		{
			name: "OK",
			buildStubs: func(ledger *MockLedger, observer *MockObserver) {
				gomock.InOrder(
					ledger.EXPECT().ExpireStale(gomock.Any()).Return(2, nil),
					ledger.EXPECT().ReconcileStuck(gomock.Any()).
						Return(ledgerservice.ReconcileReport{Completed: 1, Failed: 1, Pending: 3}, nil),
				)
				observer.EXPECT().Sweep(ActionExpired).Times(2)
				observer.EXPECT().Sweep(ActionCompleted).Times(1)
				observer.EXPECT().Sweep(ActionFailed).Times(1)
				observer.EXPECT().Sweep(ActionStillStuck).Times(3)
			},
			want: Report{
				Expired:         2,
				ReconcileReport: ledgerservice.ReconcileReport{Completed: 1, Failed: 1, Pending: 3},
			},
		},
		{
			name: "NothingToDo",
			buildStubs: func(ledger *MockLedger, observer *MockObserver) {
				ledger.EXPECT().ExpireStale(gomock.Any()).Return(0, nil)
				ledger.EXPECT().ReconcileStuck(gomock.Any()).Return(ledgerservice.ReconcileReport{}, nil)
				observer.EXPECT().Sweep(gomock.Any()).Times(0)
			},
		},
		{
			name: "ExpiryErrorStillReconciles",
			buildStubs: func(ledger *MockLedger, observer *MockObserver) {
				ledger.EXPECT().ExpireStale(gomock.Any()).Return(0, errorspkg.ErrInternal)
				ledger.EXPECT().ReconcileStuck(gomock.Any()).
					Return(ledgerservice.ReconcileReport{Completed: 1}, nil)
				observer.EXPECT().Sweep(ActionCompleted).Times(1)
			},
			want:    Report{ReconcileReport: ledgerservice.ReconcileReport{Completed: 1}},
			wantErr: errorspkg.ErrInternal,
		},
		{
			name: "ReconcileError",
			buildStubs: func(ledger *MockLedger, observer *MockObserver) {
				ledger.EXPECT().ExpireStale(gomock.Any()).Return(1, nil)
				ledger.EXPECT().ReconcileStuck(gomock.Any()).
					Return(ledgerservice.ReconcileReport{}, errorspkg.ErrInternal)
				observer.EXPECT().Sweep(ActionExpired).Times(1)
			},
			want:    Report{Expired: 1},
			wantErr: errorspkg.ErrInternal,
		},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			ledger := NewMockLedger(ctrl)
			observer := NewMockObserver(ctrl)
			tc.buildStubs(ledger, observer)

			s := New(ledger, observer, time.Minute, zerolog.Nop())

			got, err := s.RunOnce(context.Background())
			require.ErrorIs(t, err, tc.wantErr)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := NewMockLedger(ctrl)
	observer := NewMockObserver(ctrl)

	var passes atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())

	ledger.EXPECT().ExpireStale(gomock.Any()).Return(0, nil).AnyTimes()
	ledger.EXPECT().ReconcileStuck(gomock.Any()).
		DoAndReturn(func(context.Context) (ledgerservice.ReconcileReport, error) {
			if passes.Add(1) == 2 {
				cancel()
			}

			return ledgerservice.ReconcileReport{}, nil
		}).
		AnyTimes()

	s := New(ledger, observer, 5*time.Millisecond, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	require.GreaterOrEqual(t, passes.Load(), int32(2))
}
