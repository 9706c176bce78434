package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestStatusCanTransitionTo(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPending:              {StatusAwaitingVerification, StatusProcessing},
		StatusAwaitingVerification: {StatusProcessing, StatusFailed, StatusExpired},
		StatusProcessing:           {StatusCompleted, StatusFailed},
	}

	for _, from := range Statuses {
		for _, to := range Statuses {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}

			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%v.CanTransitionTo(%v) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	for _, from := range Statuses {
		if !from.IsTerminal() {
			continue
		}

		for _, to := range Statuses {
			if from.CanTransitionTo(to) {
				t.Errorf("terminal %v.CanTransitionTo(%v) = true, want false", from, to)
			}
		}
	}
}

func TestTransactionTypeIsDebit(t *testing.T) {
	testCases := []struct {
		typ  TransactionType
		want bool
	}{
		{TypeFunding, false},
		{TypeWithdrawal, true},
		{TypeTransfer, true},
		{TypeBillPayment, true},
	}

	for _, tc := range testCases {
		if got := tc.typ.IsDebit(); got != tc.want {
			t.Errorf("%v.IsDebit() = %v, want %v", tc.typ, got, tc.want)
		}
	}

	if TransactionType("refund").Valid() {
		t.Error(`TransactionType("refund").Valid() = true, want false`)
	}
}

func TestPendingReconciliation(t *testing.T) {
	now := time.Now()
	sla := 15 * time.Minute

	testCases := []struct {
		name string
		tx   Transaction
		want bool
	}{
		{
			name: "ProcessingWithinSLA",
			tx:   Transaction{Status: StatusProcessing, UpdatedAt: now.Add(-time.Minute)},
		},
		{
			name: "ProcessingBeyondSLA",
			tx:   Transaction{Status: StatusProcessing, UpdatedAt: now.Add(-time.Hour)},
			want: true,
		},
		{
			name: "CompletedLongAgo",
			tx:   Transaction{Status: StatusCompleted, UpdatedAt: now.Add(-time.Hour)},
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := tc.tx.PendingReconciliation(now, sla); got != tc.want {
				t.Errorf("PendingReconciliation() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestVerificationPolicyModeFor(t *testing.T) {
	policy := VerificationPolicy{
		Modes: map[TransactionType]VerificationMode{
			TypeFunding:    VerificationOTP,
			TypeWithdrawal: VerificationNone,
		},
		CallbackFundingChannels: []string{"gateway"},
	}

	testCases := []struct {
		typ      TransactionType
		metadata map[string]string
		want     VerificationMode
	}{
		{TypeFunding, nil, VerificationOTP},
		{TypeFunding, map[string]string{MetadataChannel: "gateway"}, VerificationCallback},
		{TypeFunding, map[string]string{MetadataChannel: "card"}, VerificationOTP},
		{TypeWithdrawal, map[string]string{MetadataChannel: "gateway"}, VerificationNone},
		{TypeTransfer, nil, VerificationOTP},
	}

	for _, tc := range testCases {
		if got := policy.ModeFor(tc.typ, tc.metadata); got != tc.want {
			t.Errorf("ModeFor(%v, %v) = %v, want %v", tc.typ, tc.metadata, got, tc.want)
		}
	}
}

func TestIsValidation(t *testing.T) {
	if !IsValidation(fmt.Errorf("wrap: %w", ErrInvalidAmount)) {
		t.Error("IsValidation(wrapped ErrInvalidAmount) = false, want true")
	}

	if IsValidation(ErrInsufficientFunds) {
		t.Error("IsValidation(ErrInsufficientFunds) = true, want false")
	}
}

func TestNormalizeProviderStatus(t *testing.T) {
	testCases := []struct {
		in      string
		want    SettlementStatus
		wantErr error
	}{
		{in: "success", want: SettlementAccepted},
		{in: " SUCCESSFUL ", want: SettlementAccepted},
		{in: "completed", want: SettlementAccepted},
		{in: "declined", want: SettlementRejected},
		{in: "Cancelled", want: SettlementRejected},
		{in: "pending", wantErr: ErrInvalidProviderStatus},
		{in: "", wantErr: ErrInvalidProviderStatus},
	}

	for _, tc := range testCases {
		got, err := NormalizeProviderStatus(tc.in)
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("NormalizeProviderStatus(%q) error = %v, want %v", tc.in, err, tc.wantErr)
		}

		if got != tc.want {
			t.Errorf("NormalizeProviderStatus(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
