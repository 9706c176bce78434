package ledgerservice

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
)

// Failure reasons stored on failed transactions.
const (
	ReasonAttemptsExhausted = "verification attempts exhausted"
	ReasonInsufficientFunds = "insufficient funds"
	ReasonProviderRejected  = "rejected by provider"
)

// Confirm checks the verification code of a transaction and completes it.
//
// A transaction that is already processing or terminal is returned as it is,
// so only one of concurrent confirmations mutates balances. A transaction that
// ended on its verification keeps failing with ErrChallengeExpired or
// ErrChallengeExhausted, whatever the code. A wrong code spends
// an attempt and returns ErrChallengeMismatch. Spending the last attempt fails
// the transaction with ErrChallengeExhausted. An expired challenge expires the
// transaction with ErrChallengeExpired.
func (s *Service) Confirm(ctx context.Context, reference, code string) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	t, err := s.transactions.Get(ctx, reference)
	if err != nil {
		return domain.Transaction{}, err
	}

	switch {
	case t.Status == domain.StatusExpired:
		return t, domain.ErrChallengeExpired
	case t.Status == domain.StatusFailed && t.FailureReason == ReasonAttemptsExhausted:
		return t, domain.ErrChallengeExhausted
	case t.Status == domain.StatusProcessing || t.Status.IsTerminal():
		return t, nil
	case t.Status != domain.StatusAwaitingVerification:
		return t, domain.ErrInvalidTransition
	}

	outcome, err := s.challenges.Validate(ctx, t.VerificationID, code)

	switch {
	case errors.Is(err, domain.ErrChallengeNotFound):
		// The challenge outlived its retention, so it expired long ago.
		outcome = domain.OutcomeExpired
	case err != nil:
		return t, err
	}

	s.metrics.ChallengeOutcome(outcome)

	switch outcome {
	case domain.OutcomeOK:
		t, err = s.transition(ctx, t, domain.StatusProcessing, "")
		if err != nil {
			return s.currentTx(ctx, t, err)
		}

		return s.finalize(ctx, t, false)

	case domain.OutcomeMismatch:
		l.Info().Str("reference", reference).Msg("verification code mismatch")
		return t, domain.ErrChallengeMismatch

	case domain.OutcomeExhausted:
		t, err = s.transition(ctx, t, domain.StatusFailed, ReasonAttemptsExhausted)
		if err != nil {
			return s.currentTx(ctx, t, err)
		}

		return t, domain.ErrChallengeExhausted

	case domain.OutcomeExpired:
		t, err = s.transition(ctx, t, domain.StatusExpired, "")
		if err != nil {
			return s.currentTx(ctx, t, err)
		}

		return t, domain.ErrChallengeExpired

	default:
		// Consumed by a concurrent confirmation.
		return s.transactions.Get(ctx, reference)
	}
}

// Callback applies a provider answer to a transaction.
//
// Only callback verified transactions awaiting verification and processing
// transactions accept a callback. A terminal transaction is returned unchanged,
// so repeated callbacks never credit twice.
func (s *Service) Callback(ctx context.Context, reference string, arg domain.CallbackParams) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	status, err := domain.NormalizeProviderStatus(arg.ProviderStatus)
	if err != nil {
		return domain.Transaction{}, err
	}

	t, err := s.transactions.Get(ctx, reference)
	if err != nil {
		return domain.Transaction{}, err
	}

	switch t.Status {
	case domain.StatusCompleted, domain.StatusFailed, domain.StatusExpired:
		l.Info().Str("reference", reference).Str("status", string(t.Status)).Msg("callback for terminal transaction ignored")
		return t, nil

	case domain.StatusAwaitingVerification:
		c, err := s.challenges.Get(ctx, t.VerificationID)

		switch {
		case errors.Is(err, domain.ErrChallengeNotFound):
			c = domain.Challenge{Kind: domain.ChallengeCorrelation}
		case err != nil:
			return t, err
		}

		if c.Kind != domain.ChallengeCorrelation {
			return t, domain.ErrInvalidTransition
		}

		outcome, err := s.challenges.Consume(ctx, t.VerificationID)

		switch {
		case errors.Is(err, domain.ErrChallengeNotFound):
			outcome = domain.OutcomeExpired
		case err != nil:
			return t, err
		}

		s.metrics.ChallengeOutcome(outcome)

		switch outcome {
		case domain.OutcomeOK:
		case domain.OutcomeExpired:
			t, err = s.transition(ctx, t, domain.StatusExpired, "")
			if err != nil {
				return s.currentTx(ctx, t, err)
			}

			return t, domain.ErrChallengeExpired
		default:
			return s.transactions.Get(ctx, reference)
		}

		if status == domain.SettlementRejected {
			t, err = s.transition(ctx, t, domain.StatusFailed, ReasonProviderRejected)
			if err != nil {
				return s.currentTx(ctx, t, err)
			}

			return t, nil
		}

		t, err = s.transition(ctx, t, domain.StatusProcessing, "")
		if err != nil {
			return s.currentTx(ctx, t, err)
		}

	case domain.StatusProcessing:
		if status == domain.SettlementRejected {
			t, err = s.transition(ctx, t, domain.StatusFailed, ReasonProviderRejected)
			if err != nil {
				return s.currentTx(ctx, t, err)
			}

			return t, nil
		}

	default:
		return t, domain.ErrInvalidTransition
	}

	if t.ProviderReference == "" && arg.ProviderReference != "" {
		t, err = s.transactions.SetProviderReference(ctx, t.Reference, arg.ProviderReference)
		if err != nil {
			return s.currentTx(ctx, t, err)
		}
	}

	return s.finalize(ctx, t, true)
}

// Reconcile drives a transaction left in processing to a terminal status.
//
// A stored provider reference means the money already moved, so only the
// commit is repeated. Otherwise a retry safe provider is called again with the
// same idempotency key. A provider that cannot deduplicate is never called
// twice: the transaction stays processing until its callback arrives and
// Reconcile returns ErrProviderUnavailable.
func (s *Service) Reconcile(ctx context.Context, reference string) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	t, err := s.transactions.Get(ctx, reference)
	if err != nil {
		return domain.Transaction{}, err
	}

	if t.Status.IsTerminal() {
		return t, nil
	}

	if t.Status != domain.StatusProcessing {
		return t, domain.ErrInvalidTransition
	}

	moved := t.ProviderReference != ""

	if !moved && needsSettlement(t) && !s.settler.RetrySafe(t.Type) {
		l.Warn().Str("reference", reference).Msg("provider outcome unknown and provider is not retry safe, awaiting callback")
		return t, domain.ErrProviderUnavailable
	}

	return s.finalize(ctx, t, moved)
}

// currentTx reloads the transaction after a lost transition race.
func (s *Service) currentTx(ctx context.Context, t domain.Transaction, err error) (domain.Transaction, error) {
	next, _, err := s.current(ctx, t, err)
	return next, err
}

// current reloads the transaction when err is a lost transition race and
// returns err unchanged otherwise.
func (s *Service) current(ctx context.Context, t domain.Transaction, err error) (domain.Transaction, domain.IssuedChallenge, error) {
	if !errors.Is(err, domain.ErrInvalidTransition) {
		return t, domain.IssuedChallenge{}, err
	}

	next, getErr := s.transactions.Get(ctx, t.Reference)
	if getErr != nil {
		return t, domain.IssuedChallenge{}, getErr
	}

	if next.Status == domain.StatusProcessing || next.Status.IsTerminal() {
		return next, domain.IssuedChallenge{}, nil
	}

	return next, domain.IssuedChallenge{}, err
}
