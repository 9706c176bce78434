package accountdelivery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/integrationtest/helpers"
	"github.com/go-petr/pet-ledger/internal/middleware"
	"github.com/go-petr/pet-ledger/pkg/currencypkg"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/go-petr/pet-ledger/pkg/randompkg"
	"github.com/go-petr/pet-ledger/pkg/tokenpkg"
	"github.com/go-petr/pet-ledger/pkg/web"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := v.RegisterValidation("currency", currencypkg.ValidCurrency); err != nil {
			fmt.Fprintf(os.Stderr, "registering currency validation: %v\n", err)
			os.Exit(1)
		}
	}

	os.Exit(m.Run())
}

func newTokenMaker(t *testing.T) tokenpkg.Maker {
	t.Helper()

	tokenSymmetricKey := randompkg.String(32)

	tokenMaker, err := tokenpkg.NewPasetoMaker(tokenSymmetricKey)
	if err != nil {
		t.Fatalf("tokenpkg.NewPasetoMaker(%v) returned error: %v", tokenSymmetricKey, err)
	}

	return tokenMaker
}

func newServer(tokenMaker tokenpkg.Maker, h Handler) *gin.Engine {
	server := gin.New()
	authRoutes := server.Group("/").Use(middleware.AuthMiddleware(tokenMaker))
	authRoutes.POST("/accounts", h.Create)
	authRoutes.GET("/accounts", h.List)
	authRoutes.GET("/accounts/:id", h.Get)
	authRoutes.GET("/accounts/:id/entries", h.ListEntries)

	return server
}

func TestCreate(t *testing.T) {
	username := randompkg.Owner()
	account := helpers.RandomAccount(username)
	account.Balance = 0
	tokenMaker := newTokenMaker(t)

	authType := middleware.AuthTypeBearer
	duration := time.Minute

	type requestBody struct {
		Currency string `json:"currency"`
	}

	testCases := []struct {
		name           string
		requestBody    requestBody
		setupAuth      func(t *testing.T, r *http.Request) error
		buildStubs     func(accountService *MockService)
		wantStatusCode int
		wantError      string
	}{
		{
			name:        "OK",
			requestBody: requestBody{Currency: account.Currency},
			setupAuth: func(t *testing.T, r *http.Request) error {
				return middleware.AddAuthorization(r, tokenMaker, authType, username, duration)
			},
			buildStubs: func(accountService *MockService) {
				accountService.EXPECT().
					Create(gomock.Any(), gomock.Eq(account.Owner), gomock.Eq(account.Currency)).
					Times(1).
					Return(account, nil)
			},
			wantStatusCode: http.StatusCreated,
		},
		{
			name:        "NoAuthorization",
			requestBody: requestBody{Currency: account.Currency},
			setupAuth: func(t *testing.T, r *http.Request) error {
				return nil
			},
			buildStubs: func(accountService *MockService) {
				accountService.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusUnauthorized,
			wantError:      middleware.ErrAuthHeaderNotFound.Error(),
		},
		{
			name:        "InvalidCurrency",
			requestBody: requestBody{Currency: "RUB"},
			setupAuth: func(t *testing.T, r *http.Request) error {
				return middleware.AddAuthorization(r, tokenMaker, authType, username, duration)
			},
			buildStubs: func(accountService *MockService) {
				accountService.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "Currency is not supported",
		},
		{
			name:        "MissingCurrency",
			requestBody: requestBody{},
			setupAuth: func(t *testing.T, r *http.Request) error {
				return middleware.AddAuthorization(r, tokenMaker, authType, username, duration)
			},
			buildStubs: func(accountService *MockService) {
				accountService.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "Currency field is required",
		},
		{
			name:        "ErrCurrencyAlreadyExists",
			requestBody: requestBody{Currency: account.Currency},
			setupAuth: func(t *testing.T, r *http.Request) error {
				return middleware.AddAuthorization(r, tokenMaker, authType, username, duration)
			},
			buildStubs: func(accountService *MockService) {
				accountService.EXPECT().
					Create(gomock.Any(), gomock.Eq(account.Owner), gomock.Eq(account.Currency)).
					Times(1).
					Return(domain.Account{}, domain.ErrCurrencyAlreadyExists)
			},
			wantStatusCode: http.StatusConflict,
			wantError:      domain.ErrCurrencyAlreadyExists.Error(),
		},
		{
			name:        "InternalServerError",
			requestBody: requestBody{Currency: account.Currency},
			setupAuth: func(t *testing.T, r *http.Request) error {
				return middleware.AddAuthorization(r, tokenMaker, authType, username, duration)
			},
			buildStubs: func(accountService *MockService) {
				accountService.EXPECT().
					Create(gomock.Any(), gomock.Eq(account.Owner), gomock.Eq(account.Currency)).
					Times(1).
					Return(domain.Account{}, errorspkg.ErrInternal)
			},
			wantStatusCode: http.StatusInternalServerError,
			wantError:      errorspkg.ErrInternal.Error(),
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			accountService := NewMockService(ctrl)
			tc.buildStubs(accountService)

			server := newServer(tokenMaker, NewHandler(accountService))

			body, err := json.Marshal(tc.requestBody)
			if err != nil {
				t.Fatalf("Encoding request body error: %v", err)
			}

			req, err := http.NewRequest(http.MethodPost, "/accounts", bytes.NewReader(body))
			if err != nil {
				t.Fatalf("Creating request error: %v", err)
			}

			if err = tc.setupAuth(t, req); err != nil {
				t.Fatalf("tc.setupAuth(t, %+v) returned error: %v", req, err)
			}

			recorder := httptest.NewRecorder()
			server.ServeHTTP(recorder, req)

			if got := recorder.Code; got != tc.wantStatusCode {
				t.Errorf("Status code: got %v, want %v", got, tc.wantStatusCode)
			}

			got := &struct {
				Account domain.Account `json:"account"`
			}{}
			res := web.Response{Data: got}

			if err := json.NewDecoder(recorder.Body).Decode(&res); err != nil {
				t.Errorf("Decoding response body error: %v", err)
			}

			if tc.wantStatusCode != http.StatusCreated {
				if res.Error != tc.wantError {
					t.Errorf(`resp.Error=%q, want %q`, res.Error, tc.wantError)
				}

				return
			}

			compareCreatedAt := cmpopts.EquateApproxTime(time.Second)
			if diff := cmp.Diff(account, got.Account, compareCreatedAt); diff != "" {
				t.Errorf("res.Data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGet(t *testing.T) {
	username := randompkg.Owner()
	account := helpers.RandomAccount(username)
	tokenMaker := newTokenMaker(t)

	authType := middleware.AuthTypeBearer
	duration := time.Minute

	testCases := []struct {
		name           string
		accountID      int64
		setupAuth      func(t *testing.T, r *http.Request) error
		buildStubs     func(accountService *MockService)
		wantStatusCode int
		wantError      string
	}{
		{
			name:      "OK",
			accountID: account.ID,
			setupAuth: func(t *testing.T, r *http.Request) error {
				return middleware.AddAuthorization(r, tokenMaker, authType, username, duration)
			},
			buildStubs: func(accountService *MockService) {
				accountService.EXPECT().Get(gomock.Any(), gomock.Eq(account.ID)).Times(1).Return(account, nil)
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:      "OwnerMismatch",
			accountID: account.ID,
			setupAuth: func(t *testing.T, r *http.Request) error {
				return middleware.AddAuthorization(r, tokenMaker, authType, "intruder", duration)
			},
			buildStubs: func(accountService *MockService) {
				accountService.EXPECT().Get(gomock.Any(), gomock.Eq(account.ID)).Times(1).Return(account, nil)
			},
			wantStatusCode: http.StatusUnauthorized,
			wantError:      domain.ErrOwnerMismatch.Error(),
		},
		{
			name:      "NotFound",
			accountID: account.ID,
			setupAuth: func(t *testing.T, r *http.Request) error {
				return middleware.AddAuthorization(r, tokenMaker, authType, username, duration)
			},
			buildStubs: func(accountService *MockService) {
				accountService.EXPECT().
					Get(gomock.Any(), gomock.Eq(account.ID)).
					Times(1).
					Return(domain.Account{}, domain.ErrAccountNotFound)
			},
			wantStatusCode: http.StatusNotFound,
			wantError:      domain.ErrAccountNotFound.Error(),
		},
		{
			name:      "InvalidID",
			accountID: 0,
			setupAuth: func(t *testing.T, r *http.Request) error {
				return middleware.AddAuthorization(r, tokenMaker, authType, username, duration)
			},
			buildStubs: func(accountService *MockService) {
				accountService.EXPECT().Get(gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "ID field is required",
		},
		{
			name:      "InternalServerError",
			accountID: account.ID,
			setupAuth: func(t *testing.T, r *http.Request) error {
				return middleware.AddAuthorization(r, tokenMaker, authType, username, duration)
			},
			buildStubs: func(accountService *MockService) {
				accountService.EXPECT().
					Get(gomock.Any(), gomock.Eq(account.ID)).
					Times(1).
					Return(domain.Account{}, errorspkg.ErrInternal)
			},
			wantStatusCode: http.StatusInternalServerError,
			wantError:      errorspkg.ErrInternal.Error(),
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			accountService := NewMockService(ctrl)
			tc.buildStubs(accountService)

			server := newServer(tokenMaker, NewHandler(accountService))

			req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("/accounts/%d", tc.accountID), nil)
			if err != nil {
				t.Fatalf("Creating request error: %v", err)
			}

			if err = tc.setupAuth(t, req); err != nil {
				t.Fatalf("tc.setupAuth(t, %+v) returned error: %v", req, err)
			}

			recorder := httptest.NewRecorder()
			server.ServeHTTP(recorder, req)

			if got := recorder.Code; got != tc.wantStatusCode {
				t.Errorf("Status code: got %v, want %v", got, tc.wantStatusCode)
			}

			got := &struct {
				Account domain.Account `json:"account"`
			}{}
			res := web.Response{Data: got}

			if err := json.NewDecoder(recorder.Body).Decode(&res); err != nil {
				t.Errorf("Decoding response body error: %v", err)
			}

			if tc.wantStatusCode != http.StatusOK {
				if res.Error != tc.wantError {
					t.Errorf(`resp.Error=%q, want %q`, res.Error, tc.wantError)
				}

				return
			}

			if diff := cmp.Diff(account, got.Account, cmpopts.EquateApproxTime(time.Second)); diff != "" {
				t.Errorf("res.Data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestList(t *testing.T) {
	username := randompkg.Owner()
	accounts := []domain.Account{helpers.RandomAccount(username), helpers.RandomAccount(username)}
	tokenMaker := newTokenMaker(t)

	authType := middleware.AuthTypeBearer
	duration := time.Minute

	testCases := []struct {
		name           string
		query          string
		buildStubs     func(accountService *MockService)
		wantStatusCode int
		wantError      string
	}{
		{
			name:  "OK",
			query: "page_id=2&page_size=5",
			buildStubs: func(accountService *MockService) {
				accountService.EXPECT().
					List(gomock.Any(), gomock.Eq(username), gomock.Eq(int32(5)), gomock.Eq(int32(2))).
					Times(1).
					Return(accounts, nil)
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:  "MissingPageID",
			query: "page_size=5",
			buildStubs: func(accountService *MockService) {
				accountService.EXPECT().List(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "PageID field is required",
		},
		{
			name:  "PageSizeTooLarge",
			query: "page_id=1&page_size=1000",
			buildStubs: func(accountService *MockService) {
				accountService.EXPECT().List(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "PageSize must be at most 100",
		},
		{
			name:  "InternalServerError",
			query: "page_id=1&page_size=5",
			buildStubs: func(accountService *MockService) {
				accountService.EXPECT().
					List(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Times(1).
					Return(nil, errorspkg.ErrInternal)
			},
			wantStatusCode: http.StatusInternalServerError,
			wantError:      errorspkg.ErrInternal.Error(),
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			accountService := NewMockService(ctrl)
			tc.buildStubs(accountService)

			server := newServer(tokenMaker, NewHandler(accountService))

			req, err := http.NewRequest(http.MethodGet, "/accounts?"+tc.query, nil)
			if err != nil {
				t.Fatalf("Creating request error: %v", err)
			}

			if err := middleware.AddAuthorization(req, tokenMaker, authType, username, duration); err != nil {
				t.Fatalf("middleware.AddAuthorization returned error: %v", err)
			}

			recorder := httptest.NewRecorder()
			server.ServeHTTP(recorder, req)

			if got := recorder.Code; got != tc.wantStatusCode {
				t.Errorf("Status code: got %v, want %v", got, tc.wantStatusCode)
			}

			got := &struct {
				Accounts []domain.Account `json:"accounts"`
			}{}
			res := web.Response{Data: got}

			if err := json.NewDecoder(recorder.Body).Decode(&res); err != nil {
				t.Errorf("Decoding response body error: %v", err)
			}

			if tc.wantStatusCode != http.StatusOK {
				if res.Error != tc.wantError {
					t.Errorf(`resp.Error=%q, want %q`, res.Error, tc.wantError)
				}

				return
			}

			if diff := cmp.Diff(accounts, got.Accounts, cmpopts.EquateApproxTime(time.Second)); diff != "" {
				t.Errorf("res.Data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestListEntries(t *testing.T) {
	username := randompkg.Owner()
	account := helpers.RandomAccount(username)
	tokenMaker := newTokenMaker(t)

	entries := []domain.Entry{
		{ID: 2, AccountID: account.ID, TransactionReference: randompkg.Reference(), Amount: -250, BalanceAfter: 750},
		{ID: 1, AccountID: account.ID, TransactionReference: randompkg.Reference(), Amount: 1000, BalanceAfter: 1000},
	}

	testCases := []struct {
		name           string
		buildStubs     func(accountService *MockService)
		wantStatusCode int
		wantError      string
	}{
		{
			name: "OK",
			buildStubs: func(accountService *MockService) {
				accountService.EXPECT().
					ListEntries(gomock.Any(), gomock.Eq(username), gomock.Eq(account.ID), gomock.Eq(int32(10)), gomock.Eq(int32(1))).
					Times(1).
					Return(entries, nil)
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "OwnerMismatch",
			buildStubs: func(accountService *MockService) {
				accountService.EXPECT().
					ListEntries(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Times(1).
					Return(nil, domain.ErrOwnerMismatch)
			},
			wantStatusCode: http.StatusUnauthorized,
			wantError:      domain.ErrOwnerMismatch.Error(),
		},
		{
			name: "NotFound",
			buildStubs: func(accountService *MockService) {
				accountService.EXPECT().
					ListEntries(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Times(1).
					Return(nil, domain.ErrAccountNotFound)
			},
			wantStatusCode: http.StatusNotFound,
			wantError:      domain.ErrAccountNotFound.Error(),
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			accountService := NewMockService(ctrl)
			tc.buildStubs(accountService)

			server := newServer(tokenMaker, NewHandler(accountService))

			url := fmt.Sprintf("/accounts/%d/entries?page_id=1&page_size=10", account.ID)

			req, err := http.NewRequest(http.MethodGet, url, nil)
			if err != nil {
				t.Fatalf("Creating request error: %v", err)
			}

			if err := middleware.AddAuthorization(req, tokenMaker, middleware.AuthTypeBearer, username, time.Minute); err != nil {
				t.Fatalf("middleware.AddAuthorization returned error: %v", err)
			}

			recorder := httptest.NewRecorder()
			server.ServeHTTP(recorder, req)

			if got := recorder.Code; got != tc.wantStatusCode {
				t.Errorf("Status code: got %v, want %v", got, tc.wantStatusCode)
			}

			got := &struct {
				Entries []domain.Entry `json:"entries"`
			}{}
			res := web.Response{Data: got}

			if err := json.NewDecoder(recorder.Body).Decode(&res); err != nil {
				t.Errorf("Decoding response body error: %v", err)
			}

			if tc.wantStatusCode != http.StatusOK {
				if res.Error != tc.wantError {
					t.Errorf(`resp.Error=%q, want %q`, res.Error, tc.wantError)
				}

				return
			}

			if diff := cmp.Diff(entries, got.Entries); diff != "" {
				t.Errorf("res.Data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
