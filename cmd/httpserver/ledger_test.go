//go:build integration

package httpserver_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-petr/pet-ledger/cmd/httpserver"
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/integrationtest"
	"github.com/go-petr/pet-ledger/internal/integrationtest/helpers"
	"github.com/go-petr/pet-ledger/internal/ledgerservice"
	"github.com/go-petr/pet-ledger/internal/middleware"
	"github.com/go-petr/pet-ledger/pkg/configpkg"
	"github.com/go-petr/pet-ledger/pkg/currencypkg"
	"github.com/go-petr/pet-ledger/pkg/randompkg"
	"github.com/go-petr/pet-ledger/pkg/signpkg"
	"github.com/go-petr/pet-ledger/pkg/tokenpkg"
	"github.com/go-petr/pet-ledger/pkg/web"
)

type submitData struct {
	Reference      string        `json:"reference"`
	Status         domain.Status `json:"status"`
	VerificationID string        `json:"verification_id"`
	Code           string        `json:"code"`
}

type confirmData struct {
	Reference string        `json:"reference"`
	Status    domain.Status `json:"status"`
	Balance   *int64        `json:"balance"`
}

type client struct {
	t          *testing.T
	server     *httpserver.Server
	tokenMaker tokenpkg.Maker
}

func newClient(t *testing.T, server *httpserver.Server) client {
	t.Helper()

	tokenMaker, err := tokenpkg.New(server.Config.TokenKind, server.Config.TokenSymmetricKey)
	require.NoError(t, err)

	return client{t: t, server: server, tokenMaker: tokenMaker}
}

// do sends body as owner, unauthenticated when owner is empty, and decodes data into out.
func (c client) do(method, path, owner string, body any, header http.Header, out any) (int, web.Response) {
	c.t.Helper()

	var raw []byte

	switch b := body.(type) {
	case nil:
	case []byte:
		raw = b
	default:
		var err error
		raw, err = json.Marshal(b)
		require.NoError(c.t, err)
	}

	req, err := http.NewRequest(method, path, bytes.NewReader(raw))
	require.NoError(c.t, err)

	for k, v := range header {
		req.Header[k] = v
	}

	if owner != "" {
		err = middleware.AddAuthorization(req, c.tokenMaker, middleware.AuthTypeBearer, owner, c.server.Config.AccessTokenDuration)
		require.NoError(c.t, err)
	}

	recorder := httptest.NewRecorder()
	c.server.ServeHTTP(recorder, req)

	res := web.Response{Data: out}
	require.NoError(c.t, json.NewDecoder(recorder.Body).Decode(&res))

	return recorder.Code, res
}

func (c client) balance(accountID int64, owner string) int64 {
	c.t.Helper()

	var data struct {
		Account domain.Account `json:"account"`
	}

	status, res := c.do(http.MethodGet, fmt.Sprintf("/accounts/%d", accountID), owner, nil, nil, &data)
	require.Equal(c.t, http.StatusOK, status, res.Error)

	return data.Account.Balance
}

func (c client) transaction(reference, owner string) domain.HistoryItem {
	c.t.Helper()

	var item domain.HistoryItem

	status, res := c.do(http.MethodGet, "/transactions/"+reference, owner, nil, nil, &item)
	require.Equal(c.t, http.StatusOK, status, res.Error)

	return item
}

func TestScenarioFunding(t *testing.T) {
	server := integrationtest.SetupServer(t)
	c := newClient(t, server)

	owner := randompkg.Owner()
	account := helpers.SeedAccount(t, server.DB, owner, currencypkg.NGN)

	var submitted submitData

	status, res := c.do(http.MethodPost, "/fund", owner, map[string]any{
		"amount":   50000,
		"currency": currencypkg.NGN,
	}, nil, &submitted)
	require.Equal(t, http.StatusCreated, status, res.Error)
	require.Equal(t, domain.StatusAwaitingVerification, submitted.Status)
	require.NotEmpty(t, submitted.Code)

	var confirmed confirmData

	status, res = c.do(http.MethodPost, "/confirm/"+submitted.Reference, owner, map[string]string{
		"code": submitted.Code,
	}, nil, &confirmed)
	require.Equal(t, http.StatusOK, status, res.Error)
	require.Equal(t, domain.StatusCompleted, confirmed.Status)
	require.NotNil(t, confirmed.Balance)
	require.Equal(t, int64(50000), *confirmed.Balance)

	require.Equal(t, int64(50000), c.balance(account.ID, owner))

	// Confirming again returns the stored result and moves no money.
	status, _ = c.do(http.MethodPost, "/confirm/"+submitted.Reference, owner, map[string]string{
		"code": submitted.Code,
	}, nil, &confirmed)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, int64(50000), c.balance(account.ID, owner))
}

func TestScenarioWithdrawalInsufficientFunds(t *testing.T) {
	server := integrationtest.SetupServer(t)
	c := newClient(t, server)

	owner := randompkg.Owner()
	account := helpers.SeedFundedAccount(t, server.DB, owner, currencypkg.NGN, 1000)

	var submitted submitData

	status, res := c.do(http.MethodPost, "/withdraw", owner, map[string]any{
		"amount":           5000,
		"currency":         currencypkg.NGN,
		"counterparty_ref": "0123456789",
	}, nil, &submitted)
	require.Equal(t, http.StatusCreated, status, res.Error)

	var confirmed confirmData

	status, res = c.do(http.MethodPost, "/confirm/"+submitted.Reference, owner, map[string]string{
		"code": submitted.Code,
	}, nil, &confirmed)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, domain.ErrInsufficientFunds.Error(), res.Error)
	require.Equal(t, domain.StatusFailed, confirmed.Status)

	require.Equal(t, int64(1000), c.balance(account.ID, owner))
	require.Equal(t, ledgerservice.ReasonInsufficientFunds, c.transaction(submitted.Reference, owner).FailureReason)
}

func TestScenarioTransfer(t *testing.T) {
	server := integrationtest.SetupServer(t)
	c := newClient(t, server)

	sender := randompkg.Owner()
	recipient := randompkg.Owner()
	accountA := helpers.SeedFundedAccount(t, server.DB, sender, currencypkg.USD, 1000)
	accountB := helpers.SeedAccount(t, server.DB, recipient, currencypkg.USD)

	reference := randompkg.Reference()
	body := map[string]any{
		"reference":        reference,
		"amount":           600,
		"currency":         currencypkg.USD,
		"counterparty_ref": fmt.Sprint(accountB.ID),
	}

	var submitted submitData

	status, res := c.do(http.MethodPost, "/transfer", sender, body, nil, &submitted)
	require.Equal(t, http.StatusCreated, status, res.Error)

	// Replaying the request returns the same transaction without a second challenge code.
	var replayed submitData

	status, res = c.do(http.MethodPost, "/transfer", sender, body, nil, &replayed)
	require.Equal(t, http.StatusCreated, status, res.Error)
	require.Equal(t, submitted.Reference, replayed.Reference)
	require.Equal(t, submitted.VerificationID, replayed.VerificationID)
	require.Empty(t, replayed.Code)

	var confirmed confirmData

	status, res = c.do(http.MethodPost, "/confirm/"+reference, sender, map[string]string{
		"code": submitted.Code,
	}, nil, &confirmed)
	require.Equal(t, http.StatusOK, status, res.Error)
	require.Equal(t, domain.StatusCompleted, confirmed.Status)

	require.Equal(t, int64(400), c.balance(accountA.ID, sender))
	require.Equal(t, int64(600), c.balance(accountB.ID, recipient))

	// The recipient sees the completed transfer, one record for both sides.
	require.Equal(t, domain.StatusCompleted, c.transaction(reference, recipient).Status)

	var page domain.HistoryPage

	status, res = c.do(http.MethodGet, "/transactions?type=transfer", sender, nil, nil, &page)
	require.Equal(t, http.StatusOK, status, res.Error)
	require.Equal(t, int64(1), page.Pagination.Total)
	require.Len(t, page.Items, 1)

	var entries struct {
		Entries []domain.Entry `json:"entries"`
	}

	status, res = c.do(http.MethodGet, fmt.Sprintf("/accounts/%d/entries?page_id=1&page_size=10", accountB.ID),
		recipient, nil, nil, &entries)
	require.Equal(t, http.StatusOK, status, res.Error)
	require.Len(t, entries.Entries, 1)
	require.Equal(t, int64(600), entries.Entries[0].Amount)
	require.Equal(t, reference, entries.Entries[0].TransactionReference)
}

func TestFundingByProviderCallback(t *testing.T) {
	server := integrationtest.SetupServer(t, func(config *configpkg.Config) {
		config.CallbackSecret = "integration-callback-secret"
	})
	c := newClient(t, server)

	owner := randompkg.Owner()
	account := helpers.SeedAccount(t, server.DB, owner, currencypkg.GBP)

	var submitted submitData

	status, res := c.do(http.MethodPost, "/fund", owner, map[string]any{
		"amount":   2500,
		"currency": currencypkg.GBP,
		"metadata": map[string]string{domain.MetadataChannel: domain.ChannelGateway},
	}, nil, &submitted)
	require.Equal(t, http.StatusCreated, status, res.Error)
	require.Equal(t, domain.StatusAwaitingVerification, submitted.Status)
	require.Empty(t, submitted.Code)

	body := []byte(`{"status":"successful","provider_reference":"psp-42"}`)

	unsigned := http.Header{}
	unsigned.Set(signpkg.Header, signpkg.Sign("wrong-secret", body))

	status, _ = c.do(http.MethodPost, "/callback/"+submitted.Reference, "", body, unsigned, nil)
	require.Equal(t, http.StatusUnauthorized, status)

	signed := http.Header{}
	signed.Set(signpkg.Header, signpkg.Sign(server.Config.CallbackSecret, body))

	for i := 0; i < 2; i++ {
		var data struct {
			Status domain.Status `json:"status"`
		}

		status, res = c.do(http.MethodPost, "/callback/"+submitted.Reference, "", body, signed, &data)
		require.Equal(t, http.StatusOK, status, res.Error)
		require.Equal(t, domain.StatusCompleted, data.Status)
	}

	require.Equal(t, int64(2500), c.balance(account.ID, owner))
	require.Equal(t, "psp-42", c.transaction(submitted.Reference, owner).ProviderReference)
}

func TestHealthz(t *testing.T) {
	server := integrationtest.SetupServer(t)
	c := newClient(t, server)

	status, res := c.do(http.MethodGet, "/healthz", "", nil, nil, nil)
	require.Equal(t, http.StatusOK, status, res.Error)
}
