package api

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/unifound/lostfound-chat/internal/testutil"
	"github.com/unifound/lostfound-chat/internal/types"
)

func TestErrorHandler_PanicRecovery(t *testing.T) {
	buf := &bytes.Buffer{}
	app := &ChatApp{
		log: testutil.TestLogger(t),
	}

	app.log.SetOutput(buf)

	// handler that panics
	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("test panic"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler := app.errorHandler(panicHandler)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, "close", rr.Header().Get("Connection"))
	assert.Contains(t, buf.String(), "panic: test panic")
}

func Test_errorHandler_NoPanic(t *testing.T) {
	app := &ChatApp{}

	called := false
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler := app.errorHandler(okHandler)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.True(t, called, "expected handler to be called")
}

func TestAuthMiddleware(t *testing.T) {
	app := &ChatApp{
		log:        testutil.TestLogger(t),
		signingKey: []byte("test-signing-key"),
	}

	token, err := app.createJwtForSession(types.User{Id: 42}, time.Hour)
	assert.NoError(t, err, "expected no error creating token")

	tcases := []struct {
		name         string
		configure    func(r *http.Request)
		expectedCode int
		expectedId   int
	}{
		{
			name: "valid cookie token",
			configure: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: token})
			},
			expectedCode: http.StatusOK,
			expectedId:   42,
		},
		{
			name: "valid query token",
			configure: func(r *http.Request) {
				q := r.URL.Query()
				q.Set(tokenCookieKey, token)
				r.URL.RawQuery = q.Encode()
			},
			expectedCode: http.StatusOK,
			expectedId:   42,
		},
		{
			name:         "missing token",
			configure:    func(r *http.Request) {},
			expectedCode: http.StatusUnauthorized,
		},
		{
			name: "garbage token",
			configure: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: "not-a-jwt"})
			},
			expectedCode: http.StatusUnauthorized,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			var gotId int
			handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
				gotId, _ = UserId(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.configure(req)

			handler(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code, "expected status code to match")
			if tc.expectedCode == http.StatusOK {
				assert.Equal(t, tc.expectedId, gotId, "expected user id in request context")
			}
		})
	}
}
