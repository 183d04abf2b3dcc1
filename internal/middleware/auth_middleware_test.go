package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"harmony-go/internal/auth"
	"harmony-go/internal/config"
)

// fakeBlacklist remembers revoked JTIs in memory.
type fakeBlacklist struct {
	revoked map[string]bool
}

func (f *fakeBlacklist) Add(ctx context.Context, jti string, expiry time.Time) error {
	if f.revoked == nil {
		f.revoked = map[string]bool{}
	}
	f.revoked[jti] = true
	return nil
}

func (f *fakeBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	return f.revoked[jti], nil
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{JWTSecretKey: "test-secret", JWTExpiry: time.Hour}
}

func protectedProbe(t *testing.T, wantUserID uint, called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		userID, ok := GetUserIDFromContext(r.Context())
		if !ok {
			t.Error("expected userID in request context")
		}
		if userID != wantUserID {
			t.Errorf("expected userID %d, got %d", wantUserID, userID)
		}
		if _, ok := GetClaimsFromContext(r.Context()); !ok {
			t.Error("expected claims in request context")
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddlewareValidToken(t *testing.T) {
	cfg := testAuthConfig()
	token, err := auth.GenerateToken(42, "user@example.com", cfg)
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}

	called := false
	handler := AuthMiddleware(cfg.JWTSecretKey, &fakeBlacklist{})(protectedProbe(t, 42, &called))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/friends", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !called {
		t.Fatal("expected the protected handler to run")
	}
}

func TestAuthMiddlewareMissingHeader(t *testing.T) {
	called := false
	handler := AuthMiddleware("test-secret", &fakeBlacklist{})(protectedProbe(t, 0, &called))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/friends", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if called {
		t.Fatal("protected handler must not run without a token")
	}
}

func TestAuthMiddlewareMalformedHeader(t *testing.T) {
	called := false
	handler := AuthMiddleware("test-secret", &fakeBlacklist{})(protectedProbe(t, 0, &called))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/friends", nil)
	req.Header.Set("Authorization", "Token abcdef")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if called {
		t.Fatal("protected handler must not run with a malformed header")
	}
}

func TestAuthMiddlewareWrongKey(t *testing.T) {
	token, err := auth.GenerateToken(42, "user@example.com", testAuthConfig())
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}

	called := false
	handler := AuthMiddleware("a-different-secret", &fakeBlacklist{})(protectedProbe(t, 0, &called))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/friends", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if called {
		t.Fatal("protected handler must not run with a badly signed token")
	}
}

func TestAuthMiddlewareRevokedToken(t *testing.T) {
	cfg := testAuthConfig()
	token, err := auth.GenerateToken(42, "user@example.com", cfg)
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}

	claims, err := auth.ValidateToken(context.Background(), token, cfg.JWTSecretKey, nil)
	if err != nil {
		t.Fatalf("validating fresh token: %v", err)
	}

	blacklist := &fakeBlacklist{}
	if err := blacklist.Add(context.Background(), claims.ID, claims.ExpiresAt.Time); err != nil {
		t.Fatalf("revoking token: %v", err)
	}

	called := false
	handler := AuthMiddleware(cfg.JWTSecretKey, blacklist)(protectedProbe(t, 0, &called))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/friends", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for a revoked token, got %d", rec.Code)
	}
	if called {
		t.Fatal("protected handler must not run with a revoked token")
	}
}
