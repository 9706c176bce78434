// Package configpkg provides parsing functionality for environment variables.
package configpkg

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/go-petr/pet-ledger/internal/domain"
)

// Config stores all configuration of the application.
//
// The values are read by viper from a config file or environment variables.
type Config struct {
	DBDriver            string        `mapstructure:"DB_DRIVER"`
	DBSource            string        `mapstructure:"DB_SOURCE"`
	MigrationURL        string        `mapstructure:"MIGRATION_URL"`
	ServerAddress       string        `mapstructure:"SERVER_ADDRESS"`
	RedisAddress        string        `mapstructure:"REDIS_ADDRESS"`
	RedisPassword       string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB             int           `mapstructure:"REDIS_DB"`
	TokenSymmetricKey   string        `mapstructure:"TOKEN_SYMMETRIC_KEY"`
	TokenKind           string        `mapstructure:"TOKEN_KIND"`
	AccessTokenDuration time.Duration `mapstructure:"ACCESS_TOKEN_DURATION"`
	Environment         string        `mapstructure:"GO_ENV"`

	ChallengeTTL         time.Duration `mapstructure:"CHALLENGE_TTL"`
	ChallengeMaxAttempts int           `mapstructure:"CHALLENGE_MAX_ATTEMPTS"`
	ChallengeCodeLength  int           `mapstructure:"CHALLENGE_CODE_LENGTH"`
	ChallengeRetention   time.Duration `mapstructure:"CHALLENGE_RETENTION"`
	EchoVerificationCode bool          `mapstructure:"ECHO_VERIFICATION_CODE"`

	FundingVerification     string `mapstructure:"FUNDING_VERIFICATION"`
	WithdrawalVerification  string `mapstructure:"WITHDRAWAL_VERIFICATION"`
	TransferVerification    string `mapstructure:"TRANSFER_VERIFICATION"`
	BillPaymentVerification string `mapstructure:"BILL_PAYMENT_VERIFICATION"`
	CallbackFundingChannels string `mapstructure:"CALLBACK_FUNDING_CHANNELS"`
	CallbackSecret          string `mapstructure:"CALLBACK_SECRET"`

	CommitMaxRetries     int           `mapstructure:"COMMIT_MAX_RETRIES"`
	SettlementTimeout    time.Duration `mapstructure:"SETTLEMENT_TIMEOUT"`
	SettlementMaxRetries int           `mapstructure:"SETTLEMENT_MAX_RETRIES"`
	SettlementRetryBase  time.Duration `mapstructure:"SETTLEMENT_RETRY_BASE"`
	ReconciliationSLA    time.Duration `mapstructure:"RECONCILIATION_SLA"`
	SweepInterval        time.Duration `mapstructure:"SWEEP_INTERVAL"`

	BankPayoutURL     string `mapstructure:"BANK_PAYOUT_URL"`
	BillAggregatorURL string `mapstructure:"BILL_AGGREGATOR_URL"`
	CardIssuerURL     string `mapstructure:"CARD_ISSUER_URL"`
	ProviderAPIKey    string `mapstructure:"PROVIDER_API_KEY"`

	NotificationWebhookURL    string `mapstructure:"NOTIFICATION_WEBHOOK_URL"`
	NotificationWebhookSecret string `mapstructure:"NOTIFICATION_WEBHOOK_SECRET"`
	NotificationWorkers       int    `mapstructure:"NOTIFICATION_WORKERS"`
	NotificationQueueSize     int    `mapstructure:"NOTIFICATION_QUEUE_SIZE"`
}

// Load read configuration from file or environment variables.
func Load(path string) (Config, error) {
	var c Config

	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")

	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		return c, err
	}

	err = viper.Unmarshal(&c)
	if err != nil {
		return c, err
	}

	return c.Defaults(), nil
}

// Defaults returns a copy of the config with zero values replaced by the defaults.
func (c Config) Defaults() Config {
	if c.AccessTokenDuration == 0 {
		c.AccessTokenDuration = 15 * time.Minute
	}

	if c.TokenKind == "" {
		c.TokenKind = "paseto"
	}

	if c.ChallengeTTL == 0 {
		c.ChallengeTTL = 10 * time.Minute
	}

	if c.ChallengeMaxAttempts == 0 {
		c.ChallengeMaxAttempts = 3
	}

	if c.ChallengeCodeLength == 0 {
		c.ChallengeCodeLength = 6
	}

	if c.ChallengeRetention == 0 {
		c.ChallengeRetention = 24 * time.Hour
	}

	if c.CallbackFundingChannels == "" {
		c.CallbackFundingChannels = "gateway"
	}

	if c.CommitMaxRetries == 0 {
		c.CommitMaxRetries = 3
	}

	if c.SettlementTimeout == 0 {
		c.SettlementTimeout = 15 * time.Second
	}

	if c.SettlementMaxRetries == 0 {
		c.SettlementMaxRetries = 3
	}

	if c.SettlementRetryBase == 0 {
		c.SettlementRetryBase = 200 * time.Millisecond
	}

	if c.ReconciliationSLA == 0 {
		c.ReconciliationSLA = 15 * time.Minute
	}

	if c.SweepInterval == 0 {
		c.SweepInterval = time.Minute
	}

	if c.NotificationWorkers == 0 {
		c.NotificationWorkers = 4
	}

	if c.NotificationQueueSize == 0 {
		c.NotificationQueueSize = 256
	}

	return c
}

// VerificationPolicy builds the per transaction type verification policy.
func (c Config) VerificationPolicy() domain.VerificationPolicy {
	modes := map[domain.TransactionType]domain.VerificationMode{
		domain.TypeFunding:     parseMode(c.FundingVerification),
		domain.TypeWithdrawal:  parseMode(c.WithdrawalVerification),
		domain.TypeTransfer:    parseMode(c.TransferVerification),
		domain.TypeBillPayment: parseMode(c.BillPaymentVerification),
	}

	var channels []string

	for _, ch := range strings.Split(c.CallbackFundingChannels, ",") {
		if ch = strings.TrimSpace(ch); ch != "" {
			channels = append(channels, ch)
		}
	}

	return domain.VerificationPolicy{
		Modes:                   modes,
		CallbackFundingChannels: channels,
	}
}

func parseMode(s string) domain.VerificationMode {
	switch m := domain.VerificationMode(strings.ToLower(strings.TrimSpace(s))); m {
	case domain.VerificationCallback, domain.VerificationNone:
		return m
	default:
		return domain.VerificationOTP
	}
}
