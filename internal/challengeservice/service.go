// Package challengeservice issues and validates verification challenges.
package challengeservice

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/challengerepo"
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/go-petr/pet-ledger/pkg/secretpkg"
)

// Repo provides data access layer interface needed by challenge service layer.
type Repo interface {
	Create(ctx context.Context, c domain.Challenge) error
	Get(ctx context.Context, id string) (domain.Challenge, error)
	Update(ctx context.Context, id string, fn challengerepo.UpdateFunc) (domain.Challenge, error)
}

// Config holds the challenge parameters.
type Config struct {
	MaxAttempts int
	CodeLength  int
}

// Service facilitates challenge service layer logic.
type Service struct {
	repo   Repo
	config Config
	now    func() time.Time
}

// New returns challenge service struct to manage verification challenges.
func New(repo Repo, config Config) *Service {
	return &Service{
		repo:   repo,
		config: config,
		now:    time.Now,
	}
}

// Issue creates a code challenge for the transaction valid for ttl.
//
// The raw code is only returned to the caller, the store keeps its hash.
func (s *Service) Issue(ctx context.Context, reference string, ttl time.Duration) (domain.IssuedChallenge, error) {
	l := zerolog.Ctx(ctx)

	code, err := generateCode(s.config.CodeLength)
	if err != nil {
		l.Error().Err(err).Send()
		return domain.IssuedChallenge{}, errorspkg.ErrInternal
	}

	hash, err := secretpkg.Hash(code)
	if err != nil {
		l.Error().Err(err).Send()
		return domain.IssuedChallenge{}, errorspkg.ErrInternal
	}

	c, err := s.create(ctx, reference, domain.ChallengeCode, hash, ttl)
	if err != nil {
		return domain.IssuedChallenge{}, err
	}

	return domain.IssuedChallenge{
		ID:        c.ID,
		Kind:      c.Kind,
		ExpiresAt: c.ExpiresAt,
		Code:      code,
	}, nil
}

// IssueCorrelation creates a challenge satisfied by a provider callback.
func (s *Service) IssueCorrelation(ctx context.Context, reference string, ttl time.Duration) (domain.IssuedChallenge, error) {
	c, err := s.create(ctx, reference, domain.ChallengeCorrelation, "", ttl)
	if err != nil {
		return domain.IssuedChallenge{}, err
	}

	return domain.IssuedChallenge{
		ID:        c.ID,
		Kind:      c.Kind,
		ExpiresAt: c.ExpiresAt,
	}, nil
}

func (s *Service) create(
	ctx context.Context,
	reference string,
	kind domain.ChallengeKind,
	hash string,
	ttl time.Duration,
) (domain.Challenge, error) {
	now := s.now()

	c := domain.Challenge{
		ID:                   uuid.NewString(),
		TransactionReference: reference,
		Kind:                 kind,
		CodeHash:             hash,
		ExpiresAt:            now.Add(ttl),
		AttemptsRemaining:    s.config.MaxAttempts,
		CreatedAt:            now,
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return domain.Challenge{}, err
	}

	return c, nil
}

// Get returns the challenge with the given id.
func (s *Service) Get(ctx context.Context, id string) (domain.Challenge, error) {
	return s.repo.Get(ctx, id)
}

// Validate checks the code against the challenge and consumes it on success.
//
// Check and consumption are one atomic step, so of any number of concurrent
// validations with the right code exactly one gets OutcomeOK. A mismatch
// spends one attempt; spending the last one yields OutcomeExhausted.
func (s *Service) Validate(ctx context.Context, id, code string) (domain.ChallengeOutcome, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}

	if c.Kind != domain.ChallengeCode {
		return "", domain.ErrCallbackRequired
	}

	// The hash never changes, so the slow comparison stays outside the update.
	match := secretpkg.Check(strings.TrimSpace(code), c.CodeHash) == nil

	var outcome domain.ChallengeOutcome

	_, err = s.repo.Update(ctx, id, func(c *domain.Challenge) (bool, error) {
		if outcome = s.precheck(*c); outcome != "" {
			return false, nil
		}

		if !match {
			c.AttemptsRemaining--

			outcome = domain.OutcomeMismatch
			if c.AttemptsRemaining <= 0 {
				outcome = domain.OutcomeExhausted
			}

			return true, nil
		}

		c.Consumed = true
		outcome = domain.OutcomeOK

		return true, nil
	})
	if err != nil {
		return "", err
	}

	return outcome, nil
}

// Consume marks a correlation challenge as used by a provider callback.
func (s *Service) Consume(ctx context.Context, id string) (domain.ChallengeOutcome, error) {
	var outcome domain.ChallengeOutcome

	_, err := s.repo.Update(ctx, id, func(c *domain.Challenge) (bool, error) {
		if outcome = s.precheck(*c); outcome != "" {
			return false, nil
		}

		c.Consumed = true
		outcome = domain.OutcomeOK

		return true, nil
	})
	if err != nil {
		return "", err
	}

	return outcome, nil
}

func (s *Service) precheck(c domain.Challenge) domain.ChallengeOutcome {
	switch {
	case c.Consumed:
		return domain.OutcomeConsumed
	case c.Expired(s.now()):
		return domain.OutcomeExpired
	case c.AttemptsRemaining <= 0:
		return domain.OutcomeExhausted
	default:
		return ""
	}
}

func generateCode(length int) (string, error) {
	var b strings.Builder

	b.Grow(length)

	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}

		b.WriteByte(byte('0' + n.Int64()))
	}

	return b.String(), nil
}
