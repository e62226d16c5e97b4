package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenRoundTrip(t *testing.T) {
	auth := NewAuth("test-secret")

	token, err := auth.GenerateToken("doc-1")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := auth.ValidateToken(token)
	assert.NoError(t, err)
	assert.Equal(t, "doc-1", claims.UserID)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewAuth("secret-a").GenerateToken("doc-1")
	assert.NoError(t, err)

	_, err = NewAuth("secret-b").ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	_, err := NewAuth("test-secret").ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestMiddlewareSetsUserInContext(t *testing.T) {
	auth := NewAuth("test-secret")
	token, err := auth.GenerateToken("pat-9")
	assert.NoError(t, err)

	var gotUserID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = GetUserIDFromContext(r.Context())
	})

	handler := auth.Middleware(nil, next)
	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pat-9", gotUserID)
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	auth := NewAuth("test-secret")
	handler := auth.Middleware(nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddlewareUnprotectedPrefixes(t *testing.T) {
	auth := NewAuth("test-secret")

	reached := false
	handler := auth.Middleware([]string{"/health", "/attachments", "/ws"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	for _, path := range []string{"/health", "/attachments/abc123", "/ws", "/ws/chat/conv-1"} {
		reached = false
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.True(t, reached, "unprotected path %s must pass through", path)
	}

	// A protected path with a similar prefix still requires a token.
	req := httptest.NewRequest(http.MethodGet, "/attachments-admin", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
