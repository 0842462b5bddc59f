package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"seulanga/internal/domain"
)

// Claims carry the actor the engine authorizes against. sub is the actor id.
type Claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	Biz  string `json:"biz,omitempty"`
	jwt.RegisteredClaims
}

var ErrNoSecret = errors.New("token signing secret is empty")

// TokenAuth signs and verifies HS256 actor tokens. With an empty secret it
// issues nothing and accepts nothing.
type TokenAuth struct{ secret []byte }

func NewTokenAuth(secret string) *TokenAuth { return &TokenAuth{secret: []byte(secret)} }

func (t *TokenAuth) Issue(a domain.Actor, ttl time.Duration) (string, error) {
	if len(t.secret) == 0 {
		return "", ErrNoSecret
	}
	now := time.Now()
	claims := Claims{
		Name: a.Name,
		Role: string(a.Role),
		Biz:  a.BusinessID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *TokenAuth) Parse(tokenStr string) (domain.Actor, error) {
	if len(t.secret) == 0 {
		return domain.Actor{}, ErrNoSecret
	}
	tok, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Actor{}, err
	}
	c, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || c.Subject == "" {
		return domain.Actor{}, errors.New("invalid token")
	}
	role, err := domain.ParseRole(c.Role)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("invalid token: %w", err)
	}
	return domain.Actor{ID: c.Subject, Name: c.Name, Role: role, BusinessID: c.Biz}, nil
}

type actorKey struct{}

func actorFrom(ctx context.Context) domain.Actor {
	a, _ := ctx.Value(actorKey{}).(domain.Actor)
	return a
}

// Authenticate resolves the bearer token into an actor for the engine. Role
// checks happen in the engine, not here.
func Authenticate(auth *TokenAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
				return
			}
			a, err := auth.Parse(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, a)))
		})
	}
}
