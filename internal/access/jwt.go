package access

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/plantnet-orders/internal/orders"
	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Image string `json:"image,omitempty"`
	jwt.RegisteredClaims
}

// Verifier reads the session token from the cookie (or a Bearer header) and
// checks its HS256 signature. Token issuance lives outside this service.
type Verifier struct {
	Secret []byte
	Cookie string
}

func NewVerifier(secret, cookie string) *Verifier {
	if cookie == "" {
		cookie = "token"
	}
	return &Verifier{Secret: []byte(secret), Cookie: cookie}
}

// Identify returns the verified identity behind r, or orders.ErrUnauthorized.
func (v *Verifier) Identify(r *http.Request) (Identity, error) {
	raw := ""
	if c, err := r.Cookie(v.Cookie); err == nil {
		raw = c.Value
	}
	if raw == "" {
		raw = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	}
	if raw == "" {
		return Identity{}, fmt.Errorf("missing session: %w", orders.ErrUnauthorized)
	}

	claims, err := v.Parse(raw)
	if err != nil {
		return Identity{}, fmt.Errorf("%v: %w", err, orders.ErrUnauthorized)
	}
	return Identity{Email: claims.Email, Name: claims.Name, Image: claims.Image, Verified: true}, nil
}

func (v *Verifier) Parse(raw string) (*Claims, error) {
	if len(v.Secret) == 0 {
		return nil, errors.New("no token secret configured")
	}
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return v.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.Email != "" {
		return claims, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}

// Sign issues a token for email. Used by tooling and tests.
func (v *Verifier) Sign(email, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.Secret)
}
