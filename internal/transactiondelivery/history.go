package transactiondelivery

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/middleware"
	"github.com/go-petr/pet-ledger/pkg/tokenpkg"
	"github.com/go-petr/pet-ledger/pkg/web"
)

const defaultPageSize = 20

type listRequest struct {
	Type   string    `form:"type" binding:"omitempty,txtype"`
	Status string    `form:"status" binding:"omitempty,txstatus"`
	From   time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To     time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page   int32     `form:"page" binding:"omitempty,min=1"`
	Limit  int32     `form:"limit" binding:"omitempty,min=1,max=100"`
}

// List handles http request to list the transactions of the caller, newest first.
func (h *Handler) List(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req listRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Response{Error: web.BindErrorMsg(err)})

		return
	}

	if req.Limit == 0 {
		req.Limit = defaultPageSize
	}

	authPayload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)

	ids, err := h.accounts.IDs(ctx, authPayload.Username)
	if err != nil {
		gctx.JSON(statusFor(err), web.Error(publicError(err)))
		return
	}

	filter := domain.TransactionFilter{
		AccountIDs: ids,
		Type:       domain.TransactionType(req.Type),
		Status:     domain.Status(req.Status),
	}

	if !req.From.IsZero() {
		filter.From = &req.From
	}

	if !req.To.IsZero() {
		filter.To = &req.To
	}

	page, err := h.history.List(ctx, filter, req.Page, req.Limit)
	if err != nil {
		gctx.JSON(statusFor(err), web.Error(publicError(err)))
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: page})
}

// Get handles http request to get a transaction by its reference.
func (h *Handler) Get(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var uri referenceURI
	if err := gctx.ShouldBindUri(&uri); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Response{Error: web.BindErrorMsg(err)})

		return
	}

	authPayload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)

	ids, err := h.accounts.IDs(ctx, authPayload.Username)
	if err != nil {
		gctx.JSON(statusFor(err), web.Error(publicError(err)))
		return
	}

	item, err := h.history.GetByReference(ctx, uri.Reference, ids)
	if err != nil {
		gctx.JSON(statusFor(err), web.Error(publicError(err)))
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: item})
}

// Summary handles http request to aggregate the transactions of the caller.
func (h *Handler) Summary(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	authPayload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)

	ids, err := h.accounts.IDs(ctx, authPayload.Username)
	if err != nil {
		gctx.JSON(statusFor(err), web.Error(publicError(err)))
		return
	}

	summary, err := h.history.Summary(ctx, ids)
	if err != nil {
		gctx.JSON(statusFor(err), web.Error(publicError(err)))
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: summary})
}
