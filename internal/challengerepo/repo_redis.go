// Package challengerepo stores verification challenges in Redis.
package challengerepo

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
)

const (
	keyPrefix       = "challenge:"
	maxWatchRetries = 16
)

const (
	fieldReference = "transaction_reference"
	fieldKind      = "kind"
	fieldCodeHash  = "code_hash"
	fieldExpiresAt = "expires_at"
	fieldAttempts  = "attempts_remaining"
	fieldConsumed  = "consumed"
	fieldCreatedAt = "created_at"
)

// RepoRedis keeps one hash per challenge.
//
// The key TTL only garbage collects old challenges; expiry is decided by the
// stored absolute expires_at so a restart can never extend a challenge.
type RepoRedis struct {
	rdb       redis.UniversalClient
	retention time.Duration
}

// NewRepoRedis returns challenge RepoRedis.
func NewRepoRedis(rdb redis.UniversalClient, retention time.Duration) *RepoRedis {
	return &RepoRedis{
		rdb:       rdb,
		retention: retention,
	}
}

func key(id string) string {
	return keyPrefix + id
}

// Create stores the challenge.
func (r *RepoRedis) Create(ctx context.Context, c domain.Challenge) error {
	l := zerolog.Ctx(ctx)

	ttl := time.Until(c.ExpiresAt) + r.retention
	if ttl <= 0 {
		ttl = r.retention
	}

	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key(c.ID), encode(c))
		p.PExpire(ctx, key(c.ID), ttl)
		return nil
	})
	if err != nil {
		l.Error().Err(err).Str("challenge_id", c.ID).Send()
		return errorspkg.ErrInternal
	}

	return nil
}

// Get returns the challenge with the given id.
func (r *RepoRedis) Get(ctx context.Context, id string) (domain.Challenge, error) {
	l := zerolog.Ctx(ctx)

	vals, err := r.rdb.HGetAll(ctx, key(id)).Result()
	if err != nil {
		l.Error().Err(err).Str("challenge_id", id).Send()
		return domain.Challenge{}, errorspkg.ErrInternal
	}

	if len(vals) == 0 {
		return domain.Challenge{}, domain.ErrChallengeNotFound
	}

	c, err := decode(id, vals)
	if err != nil {
		l.Error().Err(err).Str("challenge_id", id).Send()
		return domain.Challenge{}, errorspkg.ErrInternal
	}

	return c, nil
}

// UpdateFunc mutates a challenge read inside an optimistic transaction.
// It reports whether the mutation has to be written back.
type UpdateFunc func(c *domain.Challenge) (bool, error)

// Update reads the challenge, applies fn and writes the mutable fields back
// only if the challenge did not change in between.
//
// Concurrent updates of the same challenge are serialized: the loser of a
// race re-reads the winner's state and applies fn again.
func (r *RepoRedis) Update(ctx context.Context, id string, fn UpdateFunc) (domain.Challenge, error) {
	l := zerolog.Ctx(ctx)

	var (
		result domain.Challenge
		fnErr  error
	)

	txf := func(tx *redis.Tx) error {
		vals, err := tx.HGetAll(ctx, key(id)).Result()
		if err != nil {
			return err
		}

		if len(vals) == 0 {
			return domain.ErrChallengeNotFound
		}

		c, err := decode(id, vals)
		if err != nil {
			return err
		}

		write, err := fn(&c)
		if err != nil {
			fnErr = err
			return err
		}

		result = c

		if !write {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, key(id),
				fieldAttempts, c.AttemptsRemaining,
				fieldConsumed, formatBool(c.Consumed),
			)
			return nil
		})

		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := r.rdb.Watch(ctx, txf, key(id))
		if err == nil {
			return result, nil
		}

		if fnErr != nil {
			return domain.Challenge{}, fnErr
		}

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		if errors.Is(err, domain.ErrChallengeNotFound) {
			return domain.Challenge{}, err
		}

		l.Error().Err(err).Str("challenge_id", id).Send()

		return domain.Challenge{}, errorspkg.ErrInternal
	}

	l.Error().Str("challenge_id", id).Msg("challenge update retries exhausted")

	return domain.Challenge{}, errorspkg.ErrInternal
}

func encode(c domain.Challenge) map[string]any {
	return map[string]any{
		fieldReference: c.TransactionReference,
		fieldKind:      string(c.Kind),
		fieldCodeHash:  c.CodeHash,
		fieldExpiresAt: c.ExpiresAt.UnixNano(),
		fieldAttempts:  c.AttemptsRemaining,
		fieldConsumed:  formatBool(c.Consumed),
		fieldCreatedAt: c.CreatedAt.UnixNano(),
	}
}

func decode(id string, vals map[string]string) (domain.Challenge, error) {
	expiresAt, err := strconv.ParseInt(vals[fieldExpiresAt], 10, 64)
	if err != nil {
		return domain.Challenge{}, err
	}

	createdAt, err := strconv.ParseInt(vals[fieldCreatedAt], 10, 64)
	if err != nil {
		return domain.Challenge{}, err
	}

	attempts, err := strconv.Atoi(vals[fieldAttempts])
	if err != nil {
		return domain.Challenge{}, err
	}

	return domain.Challenge{
		ID:                   id,
		TransactionReference: vals[fieldReference],
		Kind:                 domain.ChallengeKind(vals[fieldKind]),
		CodeHash:             vals[fieldCodeHash],
		ExpiresAt:            time.Unix(0, expiresAt),
		AttemptsRemaining:    attempts,
		Consumed:             vals[fieldConsumed] == "1",
		CreatedAt:            time.Unix(0, createdAt),
	}, nil
}

func formatBool(b bool) string {
	if b {
		return "1"
	}

	return "0"
}
