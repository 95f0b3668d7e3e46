package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/forgo/gather/api/pkg/jwt"
)

func newTokenService(t *testing.T, expiration time.Duration) *jwt.Service {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return jwt.NewTestService(key, "gather.test", expiration)
}

func authedRequest(t *testing.T, tokens *jwt.Service, claims jwt.Claims) *http.Request {
	t.Helper()
	token, err := tokens.Sign(claims)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestAuth_ValidToken(t *testing.T) {
	tokens := newTokenService(t, time.Hour)

	var gotUserID, gotRole string
	handler := Auth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = GetUserID(r.Context())
		gotRole = GetUserRole(r.Context())
	}))

	req := authedRequest(t, tokens, jwt.Claims{UserID: "user:ada", Role: "organizer"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotUserID != "user:ada" {
		t.Errorf("expected user ID in context, got %q", gotUserID)
	}
	if gotRole != "organizer" {
		t.Errorf("expected role in context, got %q", gotRole)
	}
	if claims := GetClaims(req.Context()); claims != nil {
		// Claims live on the derived context passed to the handler, not
		// the original request.
		t.Error("claims leaked onto the original request context")
	}
}

func TestAuth_MissingHeader(t *testing.T) {
	tokens := newTokenService(t, time.Hour)
	handler := Auth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestAuth_MalformedHeader(t *testing.T) {
	tokens := newTokenService(t, time.Hour)
	handler := Auth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestAuth_ExpiredToken(t *testing.T) {
	tokens := newTokenService(t, -time.Minute)
	handler := Auth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := authedRequest(t, tokens, jwt.Claims{UserID: "user:ada"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestAuth_WrongKey(t *testing.T) {
	signer := newTokenService(t, time.Hour)
	verifier := newTokenService(t, time.Hour)

	handler := Auth(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := authedRequest(t, signer, jwt.Claims{UserID: "user:ada"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestRequireOrganizer(t *testing.T) {
	tokens := newTokenService(t, time.Hour)

	reached := false
	handler := Auth(tokens)(RequireOrganizer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	})))

	// Plain user is rejected
	req := authedRequest(t, tokens, jwt.Claims{UserID: "user:ada", Role: "user"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for user role, got %d", rec.Code)
	}
	if reached {
		t.Error("handler should not be reached by a plain user")
	}

	// Organizer passes
	req = authedRequest(t, tokens, jwt.Claims{UserID: "user:olive", Role: "organizer"})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for organizer, got %d", rec.Code)
	}
	if !reached {
		t.Error("handler should be reached by an organizer")
	}
}
