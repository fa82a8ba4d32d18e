// Package identity signs candidates in by email and issues the bearer tokens
// the API expects.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"aiproctor/interview/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var parseJWT = func(tokenStr string, keyFunc jwt.Keyfunc) (*jwt.Token, error) {
	return jwt.Parse(tokenStr, keyFunc)
}

var (
	ErrMissingAuthHeader = errors.New("missing or malformed Authorization header")
	ErrInvalidToken      = errors.New("invalid token")
	ErrInvalidClaims     = errors.New("invalid token claims")
)

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

type Claims struct {
	UserID string
	Email  string
	Name   string
}

type Provider struct {
	users  UserStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func NewProvider(users UserStore, secret string, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		users:  users,
		secret: []byte(secret),
		ttl:    24 * time.Hour,
		now:    time.Now,
		logger: logger,
	}
}

// Login upserts the user by email and returns a fresh token.
func (p *Provider) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	user, err := p.users.GetByEmail(ctx, req.Email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = &models.User{ID: uuid.NewString(), Name: req.Name, Email: req.Email}
		if cerr := p.users.Create(ctx, user); cerr != nil {
			// lost a race with a concurrent first login
			existing, gerr := p.users.GetByEmail(ctx, req.Email)
			if gerr != nil {
				return nil, fmt.Errorf("create user: %w", cerr)
			}
			user = existing
		} else {
			p.logger.Info("User created", zap.String("user_id", user.ID))
		}
	} else if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	token, err := p.IssueToken(user)
	if err != nil {
		return nil, err
	}
	return &models.LoginResponse{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Token:  token,
	}, nil
}

func (p *Provider) IssueToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"name":  user.Name,
		"exp":   p.now().Add(p.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (p *Provider) VerifyToken(tokenStr string) (*Claims, error) {
	token, err := parseJWT(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidClaims
	}
	sub, _ := mc["sub"].(string)
	if sub == "" {
		return nil, ErrInvalidClaims
	}
	email, _ := mc["email"].(string)
	name, _ := mc["name"].(string)
	return &Claims{UserID: sub, Email: email, Name: name}, nil
}

// TokenFromRequest reads a bearer token, falling back to the token query
// parameter browsers must use for WebSocket upgrades.
func TokenFromRequest(r *http.Request) (string, error) {
	if authz := r.Header.Get("Authorization"); authz != "" {
		if !strings.HasPrefix(authz, "Bearer ") {
			return "", ErrMissingAuthHeader
		}
		return strings.TrimPrefix(authz, "Bearer "), nil
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", ErrMissingAuthHeader
}
