package domain

import (
	"errors"
	"time"
)

var (
	// ErrChallengeNotFound indicates that the challenge is not found.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrChallengeMismatch indicates a wrong verification code.
	ErrChallengeMismatch = errors.New("verification code mismatch")
	// ErrChallengeExpired indicates that the challenge expired before it succeeded.
	ErrChallengeExpired = errors.New("verification challenge expired")
	// ErrChallengeExhausted indicates that no verification attempts remain.
	ErrChallengeExhausted = errors.New("verification attempts exhausted")
	// ErrCallbackRequired indicates that the transaction is completed by a provider callback only.
	ErrCallbackRequired = errors.New("transaction is verified by provider callback")
)

// ChallengeKind tells how a challenge is satisfied.
type ChallengeKind string

// Challenge kinds.
const (
	ChallengeCode        ChallengeKind = "code"
	ChallengeCorrelation ChallengeKind = "correlation"
)

// Challenge gates the completion of a transaction.
//
// The raw code is never stored. A challenge is consumed at most once.
type Challenge struct {
	ID                   string        `json:"id"`
	TransactionReference string        `json:"transaction_reference"`
	Kind                 ChallengeKind `json:"kind"`
	CodeHash             string        `json:"-"`
	ExpiresAt            time.Time     `json:"expires_at"`
	AttemptsRemaining    int           `json:"attempts_remaining"`
	Consumed             bool          `json:"consumed"`
	CreatedAt            time.Time     `json:"created_at"`
}

// Expired reports whether the challenge can no longer succeed because of time.
func (c Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// IssuedChallenge is returned to the caller when a challenge is created.
//
// Code is only set for code challenges. It leaves the process in the owner's
// verification code notification and in sandbox echoes only.
type IssuedChallenge struct {
	ID        string        `json:"verification_id"`
	Kind      ChallengeKind `json:"kind"`
	ExpiresAt time.Time     `json:"expires_at"`
	Code      string        `json:"-"`
}

// ChallengeOutcome is the result of a challenge validation.
type ChallengeOutcome string

// Challenge validation outcomes.
const (
	OutcomeOK        ChallengeOutcome = "ok"
	OutcomeMismatch  ChallengeOutcome = "mismatch"
	OutcomeExpired   ChallengeOutcome = "expired"
	OutcomeExhausted ChallengeOutcome = "exhausted"
	OutcomeConsumed  ChallengeOutcome = "consumed"
)
