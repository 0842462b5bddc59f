package httpserver_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	server "seulanga/internal/adapters/http_server"
	"seulanga/internal/domain"
)

// selfSigned builds an admin token signed with key, as an attacker would.
func selfSigned(t *testing.T, key []byte) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, server.Claims{
		Name: "mallory",
		Role: string(domain.RoleSuperAdmin),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "attacker",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestParse_EmptySecretRejected(t *testing.T) {
	auth := server.NewTokenAuth("")
	if a, err := auth.Parse(selfSigned(t, []byte{})); !errors.Is(err, server.ErrNoSecret) {
		t.Fatalf("want ErrNoSecret, got actor=%+v err=%v", a, err)
	}
	if _, err := auth.Issue(staff, time.Hour); !errors.Is(err, server.ErrNoSecret) {
		t.Fatalf("issue: want ErrNoSecret, got %v", err)
	}

	// the same token is useless against a configured secret
	if _, err := server.NewTokenAuth("test-secret").Parse(selfSigned(t, []byte{})); err == nil {
		t.Fatal("token signed with an empty key accepted")
	}
}

func TestAuthenticate_EmptySecretRejectsEveryToken(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := server.Authenticate(server.NewTokenAuth(""))(next)

	req := httptest.NewRequest(http.MethodGet, "/v1/audit", nil)
	req.Header.Set("Authorization", "Bearer "+selfSigned(t, []byte{}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", rr.Code)
	}
}
