package configpkg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/pet-ledger/internal/domain"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	env := []byte("DB_DRIVER=postgres\n" +
		"SERVER_ADDRESS=0.0.0.0:9090\n" +
		"CHALLENGE_TTL=5m\n" +
		"WITHDRAWAL_VERIFICATION=callback\n" +
		"ECHO_VERIFICATION_CODE=true\n")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.env"), env, 0o600))

	config, err := Load(dir)
	require.NoError(t, err)

	require.Equal(t, "postgres", config.DBDriver)
	require.Equal(t, "0.0.0.0:9090", config.ServerAddress)
	require.Equal(t, 5*time.Minute, config.ChallengeTTL)
	require.Equal(t, "callback", config.WithdrawalVerification)
	require.True(t, config.EchoVerificationCode)

	// Missing keys fall back to the defaults.
	require.Equal(t, 3, config.ChallengeMaxAttempts)
	require.Equal(t, 15*time.Minute, config.ReconciliationSLA)
	require.Equal(t, 256, config.NotificationQueueSize)
	require.Equal(t, "paseto", config.TokenKind)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
}

func TestVerificationPolicy(t *testing.T) {
	config := Config{
		FundingVerification:     "otp",
		WithdrawalVerification:  "callback",
		TransferVerification:    "none",
		CallbackFundingChannels: " gateway, ussd ,",
	}

	got := config.VerificationPolicy()

	want := domain.VerificationPolicy{
		Modes: map[domain.TransactionType]domain.VerificationMode{
			domain.TypeFunding:     domain.VerificationOTP,
			domain.TypeWithdrawal:  domain.VerificationCallback,
			domain.TypeTransfer:    domain.VerificationNone,
			domain.TypeBillPayment: domain.VerificationOTP,
		},
		CallbackFundingChannels: []string{"gateway", "ussd"},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("VerificationPolicy() mismatch (-want +got):\n%s", diff)
	}
}
