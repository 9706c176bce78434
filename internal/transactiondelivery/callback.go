package transactiondelivery

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/signpkg"
	"github.com/go-petr/pet-ledger/pkg/web"
)

// ErrInvalidSignature indicates a callback whose body does not match its signature.
var ErrInvalidSignature = errors.New("invalid callback signature")

type callbackRequest struct {
	Status            string `json:"status" binding:"required"`
	ProviderReference string `json:"provider_reference" binding:"max=128"`
}

type callbackResponse struct {
	Reference string        `json:"reference"`
	Status    domain.Status `json:"status"`
}

// Callback handles the asynchronous result of a provider.
//
// The body must be signed with the shared callback secret. Repeated callbacks
// for a finished transaction return its current state.
func (h *Handler) Callback(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var uri referenceURI
	if err := gctx.ShouldBindUri(&uri); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Response{Error: web.BindErrorMsg(err)})

		return
	}

	body, err := gctx.GetRawData()
	if err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Error(err))

		return
	}

	signature := gctx.GetHeader(signpkg.Header)
	if h.config.CallbackSecret == "" || !signpkg.Verify(h.config.CallbackSecret, body, signature) {
		l.Warn().Str("reference", uri.Reference).Msg("callback signature rejected")
		gctx.JSON(http.StatusUnauthorized, web.Error(ErrInvalidSignature))

		return
	}

	var req callbackRequest
	if err := binding.JSON.BindBody(body, &req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Response{Error: web.BindErrorMsg(err)})

		return
	}

	t, err := h.ledger.Callback(ctx, uri.Reference, domain.CallbackParams{
		ProviderStatus:    req.Status,
		ProviderReference: req.ProviderReference,
	})
	if err != nil && t.Reference == "" {
		gctx.JSON(statusFor(err), web.Error(publicError(err)))
		return
	}

	res := callbackResponse{Reference: t.Reference, Status: t.Status}

	if err != nil {
		l.Info().Err(err).Str("reference", t.Reference).Msg("callback not completed")
		gctx.JSON(statusFor(err), web.Response{Data: res, Error: publicError(err).Error()})

		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: res})
}
