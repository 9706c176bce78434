// Package ledgerservice runs the transaction state machine of the ledger.
//
// Every money movement starts pending, is verified by a one-time code or a
// provider callback, and ends with one atomic commit of the balance deltas
// together with the completed status.
package ledgerservice

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/notification"
	"github.com/go-petr/pet-ledger/pkg/currencypkg"
)

// AccountRepo provides the account reads needed by the ledger.
//
//go:generate mockgen -source service.go -destination service_mock.go -package ledgerservice
type AccountRepo interface {
	Get(ctx context.Context, id int64) (domain.Account, error)
}

// TransactionRepo provides data access layer interface needed by ledger service layer.
type TransactionRepo interface {
	Create(ctx context.Context, arg domain.CreateTransactionParams) (domain.Transaction, error)
	Get(ctx context.Context, reference string) (domain.Transaction, error)
	Transition(ctx context.Context, arg domain.TransitionParams) (domain.Transaction, error)
	SetProviderReference(ctx context.Context, reference, providerRef string) (domain.Transaction, error)
	Commit(ctx context.Context, arg domain.CommitParams) (domain.CommitResult, error)
	ListExpiring(ctx context.Context, now time.Time, limit int32) ([]domain.Transaction, error)
	ListStuck(ctx context.Context, before time.Time, limit int32) ([]domain.Transaction, error)
}

// Challenges issues and checks verification challenges.
type Challenges interface {
	Issue(ctx context.Context, reference string, ttl time.Duration) (domain.IssuedChallenge, error)
	IssueCorrelation(ctx context.Context, reference string, ttl time.Duration) (domain.IssuedChallenge, error)
	Get(ctx context.Context, id string) (domain.Challenge, error)
	Validate(ctx context.Context, id, code string) (domain.ChallengeOutcome, error)
	Consume(ctx context.Context, id string) (domain.ChallengeOutcome, error)
}

// Settler moves money through the external providers.
type Settler interface {
	MoveFunds(ctx context.Context, arg domain.MoveFundsParams) (domain.SettlementResult, error)
	PayBill(ctx context.Context, arg domain.PayBillParams) (domain.SettlementResult, error)
	// RetrySafe reports whether the provider of type t deduplicates repeated calls.
	RetrySafe(t domain.TransactionType) bool
}

// Notifier receives the status transition events.
type Notifier interface {
	Dispatch(ctx context.Context, n domain.Notification)
}

// Metrics records ledger activity.
type Metrics interface {
	Transition(t domain.TransactionType, status domain.Status)
	CommitRetry()
	ChallengeOutcome(outcome domain.ChallengeOutcome)
}

// Config holds the ledger policies.
type Config struct {
	Policy            domain.VerificationPolicy
	ChallengeTTL      time.Duration
	CommitMaxRetries  int
	CommitRetryBase   time.Duration
	ReconciliationSLA time.Duration
	SweepBatchSize    int32
}

// Service facilitates ledger service layer logic.
type Service struct {
	accounts     AccountRepo
	transactions TransactionRepo
	challenges   Challenges
	settler      Settler
	notifier     Notifier
	metrics      Metrics
	config       Config
	now          func() time.Time
}

// New returns ledger service struct to manage the transaction state machine.
func New(
	ar AccountRepo,
	tr TransactionRepo,
	ch Challenges,
	st Settler,
	nt Notifier,
	m Metrics,
	config Config,
) *Service {
	if config.ChallengeTTL == 0 {
		config.ChallengeTTL = 10 * time.Minute
	}

	if config.CommitMaxRetries <= 0 {
		config.CommitMaxRetries = 3
	}

	if config.CommitRetryBase == 0 {
		config.CommitRetryBase = 10 * time.Millisecond
	}

	if config.ReconciliationSLA == 0 {
		config.ReconciliationSLA = 15 * time.Minute
	}

	if config.SweepBatchSize <= 0 {
		config.SweepBatchSize = 100
	}

	return &Service{
		accounts:     ar,
		transactions: tr,
		challenges:   ch,
		settler:      st,
		notifier:     nt,
		metrics:      m,
		config:       config,
		now:          time.Now,
	}
}

// InitiateParams is the input data of a new money movement.
type InitiateParams struct {
	Reference       string
	Type            domain.TransactionType
	AccountID       int64
	Amount          int64
	Currency        string
	CounterpartyRef string
	Metadata        map[string]string
}

// Initiate validates the request and stores a pending transaction.
//
// A reference that is already stored with identical parameters returns the
// stored transaction unchanged. The same reference with different parameters
// is ErrReferenceConflict.
func (s *Service) Initiate(ctx context.Context, arg InitiateParams) (domain.Transaction, error) {
	t, _, err := s.initiate(ctx, arg)
	return t, err
}

func (s *Service) initiate(ctx context.Context, arg InitiateParams) (domain.Transaction, bool, error) {
	l := zerolog.Ctx(ctx)

	if !arg.Type.Valid() {
		return domain.Transaction{}, false, domain.ErrInvalidTransactionType
	}

	if arg.Amount <= 0 {
		return domain.Transaction{}, false, domain.ErrInvalidAmount
	}

	if !currencypkg.IsSupportedCurrency(arg.Currency) {
		return domain.Transaction{}, false, domain.ErrUnsupportedCurrency
	}

	if arg.Reference != "" {
		t, err := s.transactions.Get(ctx, arg.Reference)

		switch {
		case err == nil:
			return s.replay(t, arg)
		case !errors.Is(err, domain.ErrTransactionNotFound):
			return domain.Transaction{}, false, err
		}
	} else {
		arg.Reference = uuid.NewString()
	}

	if err := s.validateAccounts(ctx, arg); err != nil {
		l.Info().Err(err).Str("reference", arg.Reference).Msg("transaction rejected")
		return domain.Transaction{}, false, err
	}

	t, err := s.transactions.Create(ctx, domain.CreateTransactionParams{
		Reference:       arg.Reference,
		AccountID:       arg.AccountID,
		CounterpartyRef: arg.CounterpartyRef,
		Type:            arg.Type,
		Amount:          arg.Amount,
		Currency:        arg.Currency,
		Metadata:        arg.Metadata,
	})
	if errors.Is(err, domain.ErrDuplicateReference) {
		// A concurrent request stored the reference first.
		t, err = s.transactions.Get(ctx, arg.Reference)
		if err != nil {
			return domain.Transaction{}, false, err
		}

		return s.replay(t, arg)
	}

	if err != nil {
		return domain.Transaction{}, false, err
	}

	s.metrics.Transition(t.Type, t.Status)

	return t, true, nil
}

func (s *Service) replay(t domain.Transaction, arg InitiateParams) (domain.Transaction, bool, error) {
	if t.Type != arg.Type ||
		t.AccountID != arg.AccountID ||
		t.Amount != arg.Amount ||
		t.Currency != arg.Currency ||
		t.CounterpartyRef != arg.CounterpartyRef ||
		!sameMetadata(t.Metadata, arg.Metadata) {
		return domain.Transaction{}, false, domain.ErrReferenceConflict
	}

	return t, false, nil
}

func sameMetadata(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}

	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}

	return true
}

func (s *Service) validateAccounts(ctx context.Context, arg InitiateParams) error {
	account, err := s.accounts.Get(ctx, arg.AccountID)
	if err != nil {
		return err
	}

	if account.Currency != arg.Currency {
		return domain.ErrCurrencyMismatch
	}

	switch arg.Type {
	case domain.TypeTransfer:
		recipientID, err := strconv.ParseInt(arg.CounterpartyRef, 10, 64)
		if err != nil || recipientID == arg.AccountID {
			return domain.ErrInvalidCounterparty
		}

		recipient, err := s.accounts.Get(ctx, recipientID)
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.ErrInvalidCounterparty
		}

		if err != nil {
			return err
		}

		if recipient.Currency != arg.Currency {
			return domain.ErrCurrencyMismatch
		}

	case domain.TypeWithdrawal, domain.TypeBillPayment:
		if arg.CounterpartyRef == "" {
			return domain.ErrInvalidCounterparty
		}
	}

	return nil
}

// RequireVerification issues the challenge of a pending transaction and moves it to awaiting_verification.
//
// Callback verified transactions get a correlation challenge, the others a code.
func (s *Service) RequireVerification(ctx context.Context, reference string) (domain.Transaction, domain.IssuedChallenge, error) {
	t, err := s.transactions.Get(ctx, reference)
	if err != nil {
		return domain.Transaction{}, domain.IssuedChallenge{}, err
	}

	if t.Status != domain.StatusPending {
		return t, domain.IssuedChallenge{}, domain.ErrInvalidTransition
	}

	var challenge domain.IssuedChallenge

	if s.config.Policy.ModeFor(t.Type, t.Metadata) == domain.VerificationCallback {
		challenge, err = s.challenges.IssueCorrelation(ctx, t.Reference, s.config.ChallengeTTL)
	} else {
		challenge, err = s.challenges.Issue(ctx, t.Reference, s.config.ChallengeTTL)
	}

	if err != nil {
		return t, domain.IssuedChallenge{}, err
	}

	expiresAt := challenge.ExpiresAt

	next, err := s.transactions.Transition(ctx, domain.TransitionParams{
		Reference:             t.Reference,
		From:                  domain.StatusPending,
		To:                    domain.StatusAwaitingVerification,
		VerificationID:        challenge.ID,
		VerificationExpiresAt: &expiresAt,
	})
	if err != nil {
		s.revoke(ctx, challenge)
		return s.current(ctx, t, err)
	}

	s.emit(ctx, next)

	if challenge.Kind == domain.ChallengeCode {
		s.notifier.Dispatch(ctx, notification.VerificationCode(next, challenge.Code))
	}

	return next, challenge, nil
}

// revoke consumes a challenge that lost the race to become the transaction's challenge.
func (s *Service) revoke(ctx context.Context, challenge domain.IssuedChallenge) {
	if _, err := s.challenges.Consume(ctx, challenge.ID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("verification_id", challenge.ID).Msg("cannot revoke orphaned challenge")
	}
}

// Submit initiates a transaction and drives it as far as it can go without the caller.
//
// Transactions requiring verification stop at awaiting_verification. The
// others are settled and committed right away. A replayed reference returns
// the stored transaction and never issues a second challenge.
func (s *Service) Submit(ctx context.Context, arg InitiateParams) (domain.Transaction, domain.IssuedChallenge, error) {
	t, created, err := s.initiate(ctx, arg)
	if err != nil {
		return t, domain.IssuedChallenge{}, err
	}

	if !created && t.Status != domain.StatusPending {
		return t, s.pendingChallenge(t), nil
	}

	if s.config.Policy.ModeFor(t.Type, t.Metadata) != domain.VerificationNone {
		next, challenge, err := s.RequireVerification(ctx, t.Reference)
		if errors.Is(err, domain.ErrInvalidTransition) && next.Status == domain.StatusAwaitingVerification {
			// A concurrent replay issued the challenge first.
			return next, s.pendingChallenge(next), nil
		}

		return next, challenge, err
	}

	t, err = s.transition(ctx, t, domain.StatusProcessing, "")
	if err != nil {
		return s.current(ctx, t, err)
	}

	t, err = s.finalize(ctx, t, false)

	return t, domain.IssuedChallenge{}, err
}

// pendingChallenge describes the open challenge of a replayed transaction without its code.
func (s *Service) pendingChallenge(t domain.Transaction) domain.IssuedChallenge {
	if t.Status != domain.StatusAwaitingVerification || t.VerificationID == "" {
		return domain.IssuedChallenge{}
	}

	c := domain.IssuedChallenge{
		ID:   t.VerificationID,
		Kind: domain.ChallengeCode,
	}

	if s.config.Policy.ModeFor(t.Type, t.Metadata) == domain.VerificationCallback {
		c.Kind = domain.ChallengeCorrelation
	}

	if t.VerificationExpiresAt != nil {
		c.ExpiresAt = *t.VerificationExpiresAt
	}

	return c
}

// Get returns the transaction with the given reference.
func (s *Service) Get(ctx context.Context, reference string) (domain.Transaction, error) {
	return s.transactions.Get(ctx, reference)
}
