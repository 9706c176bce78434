package ledgerservice

import (
	"context"
	"errors"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/notification"
	"github.com/go-petr/pet-ledger/pkg/backoffpkg"
)

// finalize settles a processing transaction with its provider and commits it.
//
// moved reports whether the provider already moved the money, in which case
// no provider call is made and a failing commit leaves the transaction in
// processing for reconciliation instead of failing it.
func (s *Service) finalize(ctx context.Context, t domain.Transaction, moved bool) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx).With().Str("reference", t.Reference).Logger()
	ctx = l.WithContext(ctx)

	if !moved && needsSettlement(t) {
		if t.Type.IsDebit() {
			account, err := s.accounts.Get(ctx, t.AccountID)
			if err != nil {
				return t, err
			}

			if account.Balance < t.Amount {
				return s.fail(ctx, t, ReasonInsufficientFunds, domain.ErrInsufficientFunds)
			}
		}

		result, err := s.settle(ctx, t)

		switch {
		case errors.Is(err, domain.ErrProviderRejected):
			l.Info().Str("provider", result.Provider).Msg("settlement rejected")
			return s.fail(ctx, t, ReasonProviderRejected, domain.ErrProviderRejected)

		case err != nil:
			// The outcome is unknown, the transaction waits for a callback or the sweeper.
			l.Warn().Err(err).Msg("settlement unresolved, transaction left processing")
			return t, err
		}

		providerRef := result.ProviderReference
		if providerRef == "" {
			providerRef = result.Provider + ":" + t.Reference
		}

		t, err = s.transactions.SetProviderReference(ctx, t.Reference, providerRef)
		if err != nil {
			return s.currentTx(ctx, t, err)
		}

		moved = true
	}

	return s.commit(ctx, t, moved)
}

// needsSettlement reports whether money leaves or enters through a provider.
func needsSettlement(t domain.Transaction) bool {
	switch t.Type {
	case domain.TypeWithdrawal, domain.TypeBillPayment:
		return true
	case domain.TypeFunding:
		return t.Metadata[domain.MetadataChannel] == domain.ChannelCard
	default:
		return false
	}
}

func (s *Service) settle(ctx context.Context, t domain.Transaction) (domain.SettlementResult, error) {
	switch t.Type {
	case domain.TypeBillPayment:
		return s.settler.PayBill(ctx, domain.PayBillParams{
			IdempotencyKey: t.Reference,
			Biller:         t.CounterpartyRef,
			Amount:         t.Amount,
			Currency:       t.Currency,
			Metadata:       t.Metadata,
		})

	case domain.TypeFunding:
		return s.settler.MoveFunds(ctx, domain.MoveFundsParams{
			IdempotencyKey: t.Reference,
			Direction:      domain.DirectionCollection,
			AccountID:      t.AccountID,
			Counterparty:   t.CounterpartyRef,
			Amount:         t.Amount,
			Currency:       t.Currency,
			Metadata:       t.Metadata,
		})

	default:
		return s.settler.MoveFunds(ctx, domain.MoveFundsParams{
			IdempotencyKey: t.Reference,
			Direction:      domain.DirectionPayout,
			AccountID:      t.AccountID,
			Counterparty:   t.CounterpartyRef,
			Amount:         t.Amount,
			Currency:       t.Currency,
			Metadata:       t.Metadata,
		})
	}
}

// commit applies the deltas of t from fresh account reads.
//
// Version conflicts are retried with jittered backoff up to the configured
// bound and then surfaced with the transaction still processing.
func (s *Service) commit(ctx context.Context, t domain.Transaction, moved bool) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	for attempt := 0; attempt < s.config.CommitMaxRetries; attempt++ {
		if attempt > 0 {
			s.metrics.CommitRetry()

			delay := backoffpkg.ExponentialWithJitter(s.config.CommitRetryBase, attempt-1)
			if err := backoffpkg.SleepWithContext(ctx, delay); err != nil {
				return t, err
			}
		}

		deltas, err := s.deltas(ctx, t)
		if err != nil {
			return t, err
		}

		result, err := s.transactions.Commit(ctx, domain.CommitParams{
			Reference: t.Reference,
			Deltas:    deltas,
		})

		switch {
		case err == nil:
			s.emit(ctx, result.Transaction)
			return result.Transaction, nil

		case errors.Is(err, domain.ErrVersionConflict):
			l.Info().Int("attempt", attempt+1).Msg("commit version conflict")
			continue

		case errors.Is(err, domain.ErrInsufficientFunds) && moved:
			l.Error().Msg("provider moved funds but the balance cannot cover the debit, reconciliation required")
			return t, err

		case errors.Is(err, domain.ErrInsufficientFunds):
			return s.fail(ctx, t, ReasonInsufficientFunds, err)

		case errors.Is(err, domain.ErrInvalidTransition):
			// Committed or failed by a concurrent caller.
			return s.transactions.Get(ctx, t.Reference)

		default:
			return t, err
		}
	}

	l.Warn().Int("attempts", s.config.CommitMaxRetries).Msg("commit retries exhausted")

	return t, domain.ErrVersionConflict
}

// deltas reads the touched accounts and returns the balance changes of t.
func (s *Service) deltas(ctx context.Context, t domain.Transaction) ([]domain.Delta, error) {
	account, err := s.accounts.Get(ctx, t.AccountID)
	if err != nil {
		return nil, err
	}

	switch t.Type {
	case domain.TypeFunding:
		return []domain.Delta{{AccountID: account.ID, Amount: t.Amount, ExpectedVersion: account.Version}}, nil

	case domain.TypeTransfer:
		recipientID, err := strconv.ParseInt(t.CounterpartyRef, 10, 64)
		if err != nil {
			return nil, domain.ErrInvalidCounterparty
		}

		recipient, err := s.accounts.Get(ctx, recipientID)
		if err != nil {
			return nil, err
		}

		return []domain.Delta{
			{AccountID: account.ID, Amount: -t.Amount, ExpectedVersion: account.Version},
			{AccountID: recipient.ID, Amount: t.Amount, ExpectedVersion: recipient.Version},
		}, nil

	default:
		return []domain.Delta{{AccountID: account.ID, Amount: -t.Amount, ExpectedVersion: account.Version}}, nil
	}
}

// fail moves t to failed and returns cause.
func (s *Service) fail(ctx context.Context, t domain.Transaction, reason string, cause error) (domain.Transaction, error) {
	next, err := s.transition(ctx, t, domain.StatusFailed, reason)
	if err != nil {
		return s.currentTx(ctx, t, err)
	}

	return next, cause
}

// transition moves t from its current status to the given one and emits the event.
func (s *Service) transition(ctx context.Context, t domain.Transaction, to domain.Status, reason string) (domain.Transaction, error) {
	next, err := s.transactions.Transition(ctx, domain.TransitionParams{
		Reference:     t.Reference,
		From:          t.Status,
		To:            to,
		FailureReason: reason,
	})
	if err != nil {
		return t, err
	}

	s.emit(ctx, next)

	return next, nil
}

// emit records the status of t and notifies the account owners.
func (s *Service) emit(ctx context.Context, t domain.Transaction) {
	s.metrics.Transition(t.Type, t.Status)
	s.notifier.Dispatch(ctx, notification.ForTransaction(t))

	if t.Type == domain.TypeTransfer && t.Status == domain.StatusCompleted {
		if recipientID, err := strconv.ParseInt(t.CounterpartyRef, 10, 64); err == nil {
			s.notifier.Dispatch(ctx, notification.Credited(t, recipientID))
		}
	}
}
