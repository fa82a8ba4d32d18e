package identity

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"aiproctor/interview/internal/models"
	"aiproctor/interview/internal/repositories"
	"aiproctor/interview/internal/testhelpers"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T) *Provider {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	return NewProvider(&repositories.UserRepository{DB: db}, "secret", nil)
}

func TestLogin_UpsertsByEmail(t *testing.T) {
	p := newProvider(t)
	ctx := context.Background()

	first, err := p.Login(ctx, models.LoginRequest{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.UserID)
	assert.NotEmpty(t, first.Token)

	second, err := p.Login(ctx, models.LoginRequest{Name: "Ada L.", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, first.UserID, second.UserID)
	assert.Equal(t, "Ada", second.Name, "existing profile is returned unchanged")

	claims, err := p.VerifyToken(second.Token)
	require.NoError(t, err)
	assert.Equal(t, first.UserID, claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Email)
}

func TestVerifyToken_Rejects(t *testing.T) {
	p := newProvider(t)

	_, err := p.VerifyToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewProvider(nil, "other-secret", nil)
	token, err := other.IssueToken(&models.User{ID: "u1"})
	require.NoError(t, err)
	_, err = p.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewProvider(nil, "secret", nil)
	expired.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	token, err = expired.IssueToken(&models.User{ID: "u1"})
	require.NoError(t, err)
	_, err = p.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSub := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	signed, err := noSub.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = p.VerifyToken(signed)
	assert.ErrorIs(t, err, ErrInvalidClaims)
}

func TestVerifyToken_ParseFailure(t *testing.T) {
	orig := parseJWT
	defer func() { parseJWT = orig }()
	parseJWT = func(string, jwt.Keyfunc) (*jwt.Token, error) { return nil, errors.New("boom") }

	p := NewProvider(nil, "secret", nil)
	_, err := p.VerifyToken("anything")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/x", nil)
	r.Header.Set("Authorization", "Bearer abc")
	token, err := TokenFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	r = httptest.NewRequest("GET", "/x?token=def", nil)
	token, err = TokenFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "def", token)

	r = httptest.NewRequest("GET", "/x", nil)
	r.Header.Set("Authorization", "Basic zzz")
	_, err = TokenFromRequest(r)
	assert.ErrorIs(t, err, ErrMissingAuthHeader)

	r = httptest.NewRequest("GET", "/x", nil)
	_, err = TokenFromRequest(r)
	assert.ErrorIs(t, err, ErrMissingAuthHeader)
}
