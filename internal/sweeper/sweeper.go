// Package sweeper periodically expires stale transactions and reconciles stuck ones.
package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/ledgerservice"
)

// Sweep actions reported to the Observer.
const (
	ActionExpired    = "expired"
	ActionCompleted  = "reconciled_completed"
	ActionFailed     = "reconciled_failed"
	ActionStillStuck = "still_processing"
)

// Ledger provides the maintenance operations of the ledger.
//
//go:generate mockgen -source sweeper.go -destination sweeper_mock.go -package sweeper
type Ledger interface {
	ExpireStale(ctx context.Context) (int, error)
	ReconcileStuck(ctx context.Context) (ledgerservice.ReconcileReport, error)
}

// Observer counts the sweeper actions.
type Observer interface {
	Sweep(action string)
}

// Report counts the transactions handled by one pass.
type Report struct {
	Expired int
	ledgerservice.ReconcileReport
}

// Sweeper runs ledger maintenance passes.
type Sweeper struct {
	ledger   Ledger
	observer Observer
	interval time.Duration
	logger   zerolog.Logger
}

// New returns a Sweeper running a pass every interval.
func New(ledger Ledger, observer Observer, interval time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}

	return &Sweeper{
		ledger:   ledger,
		observer: observer,
		interval: interval,
		logger:   logger.With().Str("component", "sweeper").Logger(),
	}
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("sweeper started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

// RunOnce expires the stale transactions and then reconciles the stuck ones.
//
// A failing expiry pass does not prevent the reconciliation pass.
func (s *Sweeper) RunOnce(ctx context.Context) (Report, error) {
	ctx = s.logger.WithContext(ctx)

	var report Report

	expired, expireErr := s.ledger.ExpireStale(ctx)
	report.Expired = expired
	s.count(ActionExpired, expired)

	reconciled, err := s.ledger.ReconcileStuck(ctx)
	if err != nil {
		return report, err
	}

	report.ReconcileReport = reconciled
	s.count(ActionCompleted, reconciled.Completed)
	s.count(ActionFailed, reconciled.Failed)
	s.count(ActionStillStuck, reconciled.Pending)

	if report.Expired > 0 || reconciled != (ledgerservice.ReconcileReport{}) {
		s.logger.Info().
			Int("expired", report.Expired).
			Int("completed", reconciled.Completed).
			Int("failed", reconciled.Failed).
			Int("pending", reconciled.Pending).
			Msg("sweep finished")
	}

	return report, expireErr
}

func (s *Sweeper) count(action string, n int) {
	for i := 0; i < n; i++ {
		s.observer.Sweep(action)
	}
}
