package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/backoffpkg"
)

// Observer records settlement call outcomes.
type Observer interface {
	Settlement(provider, outcome string, d time.Duration)
}

// Call outcomes reported to the Observer.
const (
	OutcomeAccepted    = "accepted"
	OutcomeRejected    = "rejected"
	OutcomeTimeout     = "timeout"
	OutcomeError       = "error"
	OutcomeBreakerOpen = "breaker_open"
)

// GatewayConfig holds the call policy of the Gateway.
type GatewayConfig struct {
	Timeout    time.Duration
	MaxRetries int
	RetryBase  time.Duration
	// ConsecutiveFailures trips the breaker of a provider.
	ConsecutiveFailures uint32
	// OpenTimeout is how long a tripped breaker rejects calls.
	OpenTimeout time.Duration
}

// Gateway routes settlement requests to the configured providers.
type Gateway struct {
	payout     FundsMover
	collection FundsMover
	bills      BillPayer

	config   GatewayConfig
	breakers map[string]*gobreaker.CircuitBreaker
	observer Observer
	logger   zerolog.Logger
}

// NewGateway returns a Gateway with one circuit breaker per provider.
func NewGateway(
	payout FundsMover,
	collection FundsMover,
	bills BillPayer,
	config GatewayConfig,
	observer Observer,
	logger zerolog.Logger,
) *Gateway {
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}

	if config.ConsecutiveFailures == 0 {
		config.ConsecutiveFailures = 5
	}

	if config.OpenTimeout == 0 {
		config.OpenTimeout = 30 * time.Second
	}

	g := &Gateway{
		payout:     payout,
		collection: collection,
		bills:      bills,
		config:     config,
		breakers:   map[string]*gobreaker.CircuitBreaker{},
		observer:   observer,
		logger:     logger,
	}

	for _, p := range []Provider{payout, collection, bills} {
		if p == nil {
			continue
		}

		if _, ok := g.breakers[p.Name()]; ok {
			continue
		}

		g.breakers[p.Name()] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "settlement-" + p.Name(),
			Timeout: config.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= config.ConsecutiveFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).
					Msg("settlement circuit breaker state changed")
			},
		})
	}

	return g
}

// MoveFunds sends a payout or a collection to the provider serving the direction.
func (g *Gateway) MoveFunds(ctx context.Context, arg domain.MoveFundsParams) (domain.SettlementResult, error) {
	p := g.payout
	if arg.Direction == domain.DirectionCollection {
		p = g.collection
	}

	if p == nil {
		return domain.SettlementResult{}, fmt.Errorf("no %s provider: %w", arg.Direction, domain.ErrProviderUnavailable)
	}

	return g.call(ctx, p, func(ctx context.Context) (domain.SettlementResult, error) {
		return p.MoveFunds(ctx, arg)
	})
}

// PayBill pays a bill through the bill provider.
func (g *Gateway) PayBill(ctx context.Context, arg domain.PayBillParams) (domain.SettlementResult, error) {
	if g.bills == nil {
		return domain.SettlementResult{}, fmt.Errorf("no bill provider: %w", domain.ErrProviderUnavailable)
	}

	return g.call(ctx, g.bills, func(ctx context.Context) (domain.SettlementResult, error) {
		return g.bills.PayBill(ctx, arg)
	})
}

// RetrySafe reports whether the provider settling transactions of type t
// deduplicates repeated calls by idempotency key.
func (g *Gateway) RetrySafe(t domain.TransactionType) bool {
	var p Provider

	switch t {
	case domain.TypeBillPayment:
		if g.bills != nil {
			p = g.bills
		}
	case domain.TypeFunding:
		if g.collection != nil {
			p = g.collection
		}
	default:
		if g.payout != nil {
			p = g.payout
		}
	}

	return p != nil && p.RetrySafe()
}

// call runs fn under the provider breaker and the call policy.
//
// Rejections are returned with the result and ErrProviderRejected. A timeout of
// a provider that is not retry safe has an unknown outcome and is treated as a
// rejection. Everything else that fails after the retries, including an open
// breaker, is ErrProviderUnavailable.
func (g *Gateway) call(
	ctx context.Context,
	p Provider,
	fn func(ctx context.Context) (domain.SettlementResult, error),
) (domain.SettlementResult, error) {
	l := zerolog.Ctx(ctx)
	breaker := g.breakers[p.Name()]

	attempts := 1
	if p.RetrySafe() && g.config.MaxRetries > 1 {
		attempts = g.config.MaxRetries
	}

	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := backoffpkg.ExponentialWithJitter(g.config.RetryBase, attempt-1)
			if err := backoffpkg.SleepWithContext(ctx, delay); err != nil {
				return domain.SettlementResult{}, fmt.Errorf("%s: %v: %w", p.Name(), err, domain.ErrProviderUnavailable)
			}
		}

		start := time.Now()
		result, err := g.execute(ctx, breaker, fn)
		elapsed := time.Since(start)

		switch {
		case err == nil && result.Status == domain.SettlementAccepted:
			g.observe(p.Name(), OutcomeAccepted, elapsed)
			return result, nil

		case err == nil:
			g.observe(p.Name(), OutcomeRejected, elapsed)
			return result, domain.ErrProviderRejected

		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			g.observe(p.Name(), OutcomeBreakerOpen, elapsed)
			l.Warn().Err(err).Str("provider", p.Name()).Msg("settlement provider breaker open")

			return domain.SettlementResult{}, fmt.Errorf("%s: %v: %w", p.Name(), err, domain.ErrProviderUnavailable)

		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			g.observe(p.Name(), OutcomeTimeout, elapsed)

			if !p.RetrySafe() {
				l.Warn().Str("provider", p.Name()).Msg("settlement timed out, treating as rejected")
				return domain.SettlementResult{Provider: p.Name(), Status: domain.SettlementRejected}, domain.ErrProviderRejected
			}

			lastErr = err

		default:
			g.observe(p.Name(), OutcomeError, elapsed)
			l.Warn().Err(err).Str("provider", p.Name()).Int("attempt", attempt+1).Msg("settlement call failed")

			lastErr = err
		}

		if ctx.Err() != nil {
			break
		}
	}

	return domain.SettlementResult{}, fmt.Errorf("%s: %v: %w", p.Name(), lastErr, domain.ErrProviderUnavailable)
}

func (g *Gateway) execute(
	ctx context.Context,
	breaker *gobreaker.CircuitBreaker,
	fn func(ctx context.Context) (domain.SettlementResult, error),
) (domain.SettlementResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	out, err := breaker.Execute(func() (interface{}, error) {
		return fn(callCtx)
	})
	if err != nil {
		return domain.SettlementResult{}, err
	}

	return out.(domain.SettlementResult), nil
}

func (g *Gateway) observe(provider, outcome string, d time.Duration) {
	if g.observer != nil {
		g.observer.Settlement(provider, outcome, d)
	}
}
