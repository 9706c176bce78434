package transactiondelivery

import (
	"errors"
	"net/http"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
)

// statusCodes maps the ledger sentinels to their http status, first match wins.
var statusCodes = []struct {
	err    error
	status int
}{
	{domain.ErrAccountNotFound, http.StatusNotFound},
	{domain.ErrTransactionNotFound, http.StatusNotFound},
	{domain.ErrReferenceConflict, http.StatusConflict},
	{domain.ErrDuplicateReference, http.StatusConflict},
	{domain.ErrInvalidTransition, http.StatusConflict},
	{domain.ErrCallbackRequired, http.StatusConflict},
	{domain.ErrVersionConflict, http.StatusConflict},
	{domain.ErrInsufficientFunds, http.StatusUnprocessableEntity},
	{domain.ErrChallengeMismatch, http.StatusUnprocessableEntity},
	{domain.ErrChallengeExhausted, http.StatusUnprocessableEntity},
	{domain.ErrChallengeExpired, http.StatusUnprocessableEntity},
	{domain.ErrProviderRejected, http.StatusUnprocessableEntity},
	{domain.ErrProviderUnavailable, http.StatusAccepted},
}

func statusFor(err error) int {
	for _, sc := range statusCodes {
		if errors.Is(err, sc.err) {
			return sc.status
		}
	}

	if domain.IsValidation(err) {
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

// publicError hides everything that is not a ledger sentinel behind ErrInternal.
func publicError(err error) error {
	if statusFor(err) == http.StatusInternalServerError {
		return errorspkg.ErrInternal
	}

	return err
}
