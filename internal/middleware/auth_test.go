package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/go-petr/pet-ledger/pkg/randompkg"
	"github.com/go-petr/pet-ledger/pkg/tokenpkg"
	"github.com/go-petr/pet-ledger/pkg/web"
)

func newMaker(t *testing.T, kind string) tokenpkg.Maker {
	t.Helper()

	maker, err := tokenpkg.New(kind, randompkg.String(32))
	if err != nil {
		t.Fatalf("tokenpkg.New(%q, key) returned error: %v", kind, err)
	}

	return maker
}

func TestAuthMiddleware(t *testing.T) {
	const owner = "ada"

	for _, kind := range []string{tokenpkg.KindPaseto, tokenpkg.KindJWT} {
		kind := kind
		tokenMaker := newMaker(t, kind)
		otherMaker := newMaker(t, kind)

		testCases := []struct {
			name           string
			setupAuth      func(r *http.Request) error
			wantStatusCode int
			wantError      string
			wantOwner      string
		}{
			{
				name:           "NoAuthorization",
				setupAuth:      func(r *http.Request) error { return nil },
				wantStatusCode: http.StatusUnauthorized,
				wantError:      ErrAuthHeaderNotFound.Error(),
			},
			{
				name: "MissingType",
				setupAuth: func(r *http.Request) error {
					return AddAuthorization(r, tokenMaker, "", owner, time.Minute)
				},
				wantStatusCode: http.StatusUnauthorized,
				wantError:      ErrBadAuthHeaderFormat.Error(),
			},
			{
				name: "BasicAuth",
				setupAuth: func(r *http.Request) error {
					return AddAuthorization(r, tokenMaker, "basic", owner, time.Minute)
				},
				wantStatusCode: http.StatusUnauthorized,
				wantError:      ErrUnsupportedAuthType.Error(),
			},
			{
				name: "ExpiredToken",
				setupAuth: func(r *http.Request) error {
					return AddAuthorization(r, tokenMaker, AuthTypeBearer, owner, -time.Minute)
				},
				wantStatusCode: http.StatusUnauthorized,
				wantError:      tokenpkg.ErrExpiredToken.Error(),
			},
			{
				name: "ForeignKey",
				setupAuth: func(r *http.Request) error {
					return AddAuthorization(r, otherMaker, AuthTypeBearer, owner, time.Minute)
				},
				wantStatusCode: http.StatusUnauthorized,
				wantError:      tokenpkg.ErrInvalidToken.Error(),
			},
			{
				name: "OK",
				setupAuth: func(r *http.Request) error {
					return AddAuthorization(r, tokenMaker, AuthTypeBearer, owner, time.Minute)
				},
				wantStatusCode: http.StatusOK,
				wantOwner:      owner,
			},
		}

		for i := range testCases {
			tc := testCases[i]

			t.Run(kind+"/"+tc.name, func(t *testing.T) {
				t.Parallel()

				gin.SetMode(gin.ReleaseMode)
				server := gin.New()

				// The handler echoes the owner resolved from the token.
				server.GET("/accounts", AuthMiddleware(tokenMaker), func(gctx *gin.Context) {
					payload := gctx.MustGet(AuthPayloadKey).(*tokenpkg.Payload)
					gctx.JSON(http.StatusOK, web.Response{Data: payload.Username})
				})

				request, err := http.NewRequest(http.MethodGet, "/accounts", nil)
				if err != nil {
					t.Fatalf("http.NewRequest returned error: %v", err)
				}

				if err = tc.setupAuth(request); err != nil {
					t.Fatalf("tc.setupAuth returned error: %v", err)
				}

				recorder := httptest.NewRecorder()
				server.ServeHTTP(recorder, request)

				if recorder.Code != tc.wantStatusCode {
					t.Errorf("recorder.Code = %v, want %v", recorder.Code, tc.wantStatusCode)
				}

				var got struct {
					Data  string `json:"data"`
					Error string `json:"error"`
				}
				if err := json.NewDecoder(recorder.Body).Decode(&got); err != nil {
					t.Fatalf("Decoding response body error: %v", err)
				}

				if got.Error != tc.wantError {
					t.Errorf("got.Error = %q, want %q", got.Error, tc.wantError)
				}

				if got.Data != tc.wantOwner {
					t.Errorf("got.Data = %q, want %q", got.Data, tc.wantOwner)
				}
			})
		}
	}
}
