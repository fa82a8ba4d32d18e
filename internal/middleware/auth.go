package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"aiproctor/interview/internal/identity"
	"aiproctor/interview/internal/models"
	"aiproctor/interview/internal/utils"
)

const claimsKey contextKey = "identity_claims"

// TokenVerifier is satisfied by *identity.Provider.
type TokenVerifier interface {
	VerifyToken(token string) (*identity.Claims, error)
}

// RequireUser rejects requests without a valid user token and stores the
// claims for ClaimsFrom.
func RequireUser(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := identity.TokenFromRequest(r)
			if err != nil {
				utils.JSON(w, http.StatusUnauthorized, models.ErrorResponse{
					Code:    "unauthorized",
					Message: err.Error(),
				})
				return
			}
			claims, err := verifier.VerifyToken(token)
			if err != nil {
				utils.JSON(w, http.StatusUnauthorized, models.ErrorResponse{
					Code:    "unauthorized",
					Message: err.Error(),
				})
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFrom returns the claims stored by RequireUser, or nil.
func ClaimsFrom(ctx context.Context) *identity.Claims {
	claims, _ := ctx.Value(claimsKey).(*identity.Claims)
	return claims
}

// RequireServiceToken guards the AI function endpoints with the shared
// service bearer token.
func RequireServiceToken(token string) func(http.Handler) http.Handler {
	expected := []byte("Bearer " + token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := strings.TrimSpace(r.Header.Get("Authorization"))
			if token == "" || subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
				utils.JSONError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
