package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"creditflow-backend/internal/domain/loan"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// RoleReviewer is the role claim the auth service gives bank staff.
const RoleReviewer = "Banker"

// Claims is the token payload issued by the auth service.
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type actorKey struct{}

func WithActor(ctx context.Context, a loan.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFrom(ctx context.Context) (loan.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(loan.Actor)
	return a, ok && a.UserID != ""
}

func parseToken(raw string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

func bearer(req *http.Request) string {
	h := req.Header.Get(echo.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	// EventSource cannot set headers
	if req.Method == http.MethodGet {
		return req.URL.Query().Get("access_token")
	}
	return ""
}

// Identity authenticates the caller from an HS256 bearer token and stores the
// resulting loan.Actor in the request context.
func Identity(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearer(c.Request())
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			}
			claims, err := parseToken(raw, secret)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			}
			actor := loan.Actor{
				UserID:     claims.Subject,
				IsReviewer: claims.Role == RoleReviewer,
				Email:      claims.Email,
				Name:       claims.Name,
			}
			c.SetRequest(c.Request().WithContext(WithActor(c.Request().Context(), actor)))
			c.Set("user_id", actor.UserID)
			return next(c)
		}
	}
}

// SignToken issues a token the way the auth service does. Used by local
// tooling and tests.
func SignToken(secret []byte, userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}
