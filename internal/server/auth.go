package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/hyperjump/paaexplorer/internal/config"
	"github.com/hyperjump/paaexplorer/internal/models"
)

type identityKey struct{}

// Authenticator resolves bearer tokens to identities.
type Authenticator struct {
	tokens    map[string]models.Identity
	anonymous *models.Identity
}

// NewAuthenticator builds the token table from cfg. Unknown plan names are
// kept as given; quota and export checks treat them as the free tier.
func NewAuthenticator(cfg config.AuthConfig) *Authenticator {
	a := &Authenticator{tokens: make(map[string]models.Identity, len(cfg.Tokens))}
	for token, tc := range cfg.Tokens {
		plan := models.Plan(strings.ToLower(tc.Plan))
		if plan == "" {
			plan = models.PlanFree
		}
		a.tokens[token] = models.Identity{UserID: tc.UserID, Plan: plan}
	}
	if cfg.AnonymousAllowed() {
		a.anonymous = &models.Identity{UserID: cfg.AnonymousUser, Plan: models.PlanFree}
	}
	return a
}

// Resolve returns the identity for a bearer token.
func (a *Authenticator) Resolve(token string) (models.Identity, bool) {
	if token == "" {
		return models.Identity{}, false
	}
	if id, ok := a.tokens[token]; ok {
		return id, true
	}
	if a.anonymous != nil {
		return *a.anonymous, true
	}
	return models.Identity{}, false
}

// Middleware rejects requests without a valid bearer token and stores the
// caller's identity on the request context.
func (a *Authenticator) Middleware(fail func(http.ResponseWriter, int, string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				fail(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			id, ok := a.Resolve(token)
			if !ok {
				fail(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// IdentityFrom returns the identity stored by Middleware.
func IdentityFrom(ctx context.Context) models.Identity {
	id, _ := ctx.Value(identityKey{}).(models.Identity)
	return id
}
