package access

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ariefcatur/plantnet-orders/internal/orders"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roleMap map[string]Role

func (m roleMap) Role(_ context.Context, email string) (Role, error) {
	if r, ok := m[email]; ok {
		return r, nil
	}
	return "", orders.ErrNotFound
}

func TestAuthorize(t *testing.T) {
	g := NewGate(roleMap{"seller@example.com": RoleSeller, "admin@example.com": RoleAdmin})
	ctx := context.Background()
	verified := func(email string) Identity { return Identity{Email: email, Verified: true} }

	assert.ErrorIs(t, g.Authorize(ctx, Identity{Email: "x@example.com"}, ActionPlaceOrder), orders.ErrUnauthorized)
	assert.NoError(t, g.Authorize(ctx, verified("new@example.com"), ActionPlaceOrder))
	assert.NoError(t, g.Authorize(ctx, verified("new@example.com"), ActionCancelOrder))

	assert.ErrorIs(t, g.Authorize(ctx, verified("new@example.com"), ActionAdvanceStatus), orders.ErrForbidden)
	assert.NoError(t, g.Authorize(ctx, verified("seller@example.com"), ActionAdvanceStatus))

	assert.ErrorIs(t, g.Authorize(ctx, verified("seller@example.com"), ActionViewStats), orders.ErrForbidden)
	assert.NoError(t, g.Authorize(ctx, verified("admin@example.com"), ActionViewStats))

	assert.ErrorIs(t, g.Authorize(ctx, verified("admin@example.com"), Action("plants:burn")), orders.ErrForbidden)

	role, err := g.RoleOf(ctx, verified("new@example.com"))
	require.NoError(t, err)
	assert.Equal(t, RoleCustomer, role)
}

func TestIdentify(t *testing.T) {
	v := NewVerifier("s3cret", "")
	tok, err := v.Sign("fern@example.com", "Fern", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	id, err := v.Identify(req)
	require.NoError(t, err)
	assert.Equal(t, Identity{Email: "fern@example.com", Name: "Fern", Verified: true}, id)

	_, err = v.Identify(httptest.NewRequest("GET", "/", nil))
	assert.ErrorIs(t, err, orders.ErrUnauthorized)

	expired, err := v.Sign("fern@example.com", "Fern", -time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	_, err = v.Identify(req)
	assert.ErrorIs(t, err, orders.ErrUnauthorized)
}

func TestParseRejectsOtherAlgorithms(t *testing.T) {
	v := NewVerifier("s3cret", "token")
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Email: "fern@example.com"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.Parse(none)
	assert.Error(t, err)

	_, err = NewVerifier("", "token").Parse(none)
	assert.Error(t, err)
}
