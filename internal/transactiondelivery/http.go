// Package transactiondelivery manages delivery layer of the ledger transactions.
package transactiondelivery

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/ledgerservice"
	"github.com/go-petr/pet-ledger/internal/middleware"
	"github.com/go-petr/pet-ledger/pkg/tokenpkg"
	"github.com/go-petr/pet-ledger/pkg/web"
)

// Ledger provides the transaction state machine needed by transaction delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package transactiondelivery
type Ledger interface {
	Submit(ctx context.Context, arg ledgerservice.InitiateParams) (domain.Transaction, domain.IssuedChallenge, error)
	Confirm(ctx context.Context, reference, code string) (domain.Transaction, error)
	Callback(ctx context.Context, reference string, arg domain.CallbackParams) (domain.Transaction, error)
	Get(ctx context.Context, reference string) (domain.Transaction, error)
}

// History provides the read projections needed by transaction delivery layer.
type History interface {
	List(ctx context.Context, filter domain.TransactionFilter, page, pageSize int32) (domain.HistoryPage, error)
	GetByReference(ctx context.Context, reference string, accountIDs []int64) (domain.HistoryItem, error)
	Summary(ctx context.Context, accountIDs []int64) (domain.Summary, error)
}

// Accounts resolves the accounts of the authenticated owner.
type Accounts interface {
	Get(ctx context.Context, id int64) (domain.Account, error)
	GetByOwnerCurrency(ctx context.Context, owner, currency string) (domain.Account, error)
	IDs(ctx context.Context, owner string) ([]int64, error)
}

// Config holds the delivery options.
type Config struct {
	// EchoVerificationCode returns the raw code in the submit response. Sandbox only.
	EchoVerificationCode bool
	// CallbackSecret is the HMAC key of the provider callbacks.
	CallbackSecret string
}

// Handler facilitates transaction delivery layer logic.
type Handler struct {
	ledger   Ledger
	history  History
	accounts Accounts
	config   Config
}

// NewHandler returns transaction handler.
func NewHandler(l Ledger, h History, a Accounts, config Config) Handler {
	return Handler{
		ledger:   l,
		history:  h,
		accounts: a,
		config:   config,
	}
}

type submitRequest struct {
	Reference       string            `json:"reference" binding:"omitempty,max=64"`
	Amount          int64             `json:"amount" binding:"required,gt=0"`
	Currency        string            `json:"currency" binding:"required,currency"`
	CounterpartyRef string            `json:"counterparty_ref" binding:"max=128"`
	Metadata        map[string]string `json:"metadata"`
}

type submitResponse struct {
	Reference      string        `json:"reference"`
	Status         domain.Status `json:"status"`
	VerificationID string        `json:"verification_id,omitempty"`
	ExpiresAt      *time.Time    `json:"expires_at,omitempty"`
	Code           string        `json:"code,omitempty"`
}

// Fund handles http request to fund the wallet of the caller.
func (h *Handler) Fund(gctx *gin.Context) {
	h.submit(gctx, domain.TypeFunding)
}

// Withdraw handles http request to withdraw to an external bank account.
func (h *Handler) Withdraw(gctx *gin.Context) {
	h.submit(gctx, domain.TypeWithdrawal)
}

// Transfer handles http request to transfer to another account of the ledger.
func (h *Handler) Transfer(gctx *gin.Context) {
	h.submit(gctx, domain.TypeTransfer)
}

// PayBill handles http request to pay a bill through the aggregator.
func (h *Handler) PayBill(gctx *gin.Context) {
	h.submit(gctx, domain.TypeBillPayment)
}

func (h *Handler) submit(gctx *gin.Context, txType domain.TransactionType) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req submitRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Response{Error: web.BindErrorMsg(err)})

		return
	}

	authPayload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)

	account, err := h.accounts.GetByOwnerCurrency(ctx, authPayload.Username, req.Currency)
	if err != nil {
		gctx.JSON(statusFor(err), web.Error(publicError(err)))
		return
	}

	t, challenge, err := h.ledger.Submit(ctx, ledgerservice.InitiateParams{
		Reference:       req.Reference,
		Type:            txType,
		AccountID:       account.ID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		CounterpartyRef: req.CounterpartyRef,
		Metadata:        req.Metadata,
	})
	if err != nil && t.Reference == "" {
		gctx.JSON(statusFor(err), web.Error(publicError(err)))
		return
	}

	res := submitResponse{
		Reference:      t.Reference,
		Status:         t.Status,
		VerificationID: challenge.ID,
	}

	if !challenge.ExpiresAt.IsZero() {
		expiresAt := challenge.ExpiresAt
		res.ExpiresAt = &expiresAt
	}

	if h.config.EchoVerificationCode {
		res.Code = challenge.Code
	}

	if err != nil {
		l.Info().Err(err).Str("reference", t.Reference).Msg("transaction not completed")
		gctx.JSON(statusFor(err), web.Response{Data: res, Error: publicError(err).Error()})

		return
	}

	status := http.StatusCreated
	if t.Status == domain.StatusProcessing {
		status = http.StatusAccepted
	}

	gctx.JSON(status, web.Response{Data: res})
}

type referenceURI struct {
	Reference string `uri:"reference" binding:"required,max=64"`
}

type confirmRequest struct {
	Code string `json:"code" binding:"required,numeric"`
}

type confirmResponse struct {
	Reference string        `json:"reference"`
	Status    domain.Status `json:"status"`
	Balance   *int64        `json:"balance,omitempty"`
}

// Confirm handles http request to verify a transaction with its one-time code.
func (h *Handler) Confirm(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var uri referenceURI
	if err := gctx.ShouldBindUri(&uri); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Response{Error: web.BindErrorMsg(err)})

		return
	}

	var req confirmRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Response{Error: web.BindErrorMsg(err)})

		return
	}

	authPayload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)

	t, err := h.ledger.Get(ctx, uri.Reference)
	if err != nil {
		gctx.JSON(statusFor(err), web.Error(publicError(err)))
		return
	}

	ids, err := h.accounts.IDs(ctx, authPayload.Username)
	if err != nil {
		gctx.JSON(statusFor(err), web.Error(publicError(err)))
		return
	}

	if !contains(ids, t.AccountID) {
		l.Warn().Str("reference", t.Reference).Str("username", authPayload.Username).Msg("confirm by non initiator")
		gctx.JSON(http.StatusNotFound, web.Error(domain.ErrTransactionNotFound))

		return
	}

	t, err = h.ledger.Confirm(ctx, uri.Reference, req.Code)

	res := confirmResponse{
		Reference: t.Reference,
		Status:    t.Status,
	}

	if t.Status == domain.StatusCompleted {
		if account, accErr := h.accounts.Get(ctx, t.AccountID); accErr == nil {
			res.Balance = &account.Balance
		}
	}

	if err != nil {
		if errors.Is(err, domain.ErrChallengeMismatch) || res.Reference == "" {
			gctx.JSON(statusFor(err), web.Error(publicError(err)))
			return
		}

		gctx.JSON(statusFor(err), web.Response{Data: res, Error: publicError(err).Error()})

		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: res})
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}

	return false
}
