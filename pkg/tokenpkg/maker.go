// Package tokenpkg creates and verifies access tokens.
package tokenpkg

import (
	"errors"
	"fmt"
	"time"
)

// Maker is an interface for managing tokens.
type Maker interface {
	// CreateToken creates a new token for a specific username and duration.
	CreateToken(username string, duration time.Duration) (string, *Payload, error)
	// VerifyToken checks if the token is valid or not.
	VerifyToken(token string) (*Payload, error)
}

// Token kinds accepted by New.
const (
	KindPaseto = "paseto"
	KindJWT    = "jwt"
)

// ErrUnknownKind indicates a token kind other than paseto or jwt.
var ErrUnknownKind = errors.New("unknown token kind")

// New returns the Maker of the given kind. An empty kind selects paseto.
func New(kind, key string) (Maker, error) {
	switch kind {
	case "", KindPaseto:
		return NewPasetoMaker(key)
	case KindJWT:
		return NewJWTMaker(key)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
