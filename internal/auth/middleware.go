// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/alleyehq/alleye/internal/logging"
	"github.com/alleyehq/alleye/internal/models"
)

type contextKey string

const profileContextKey contextKey = "alleye.profile"

// ProfileLookup resolves a user id from validated claims to a profile.
type ProfileLookup func(ctx context.Context, userID string) (models.Profile, error)

// Middleware authenticates API requests and attaches the caller's
// profile to the request context.
type Middleware struct {
	jwt    *JWTManager
	lookup ProfileLookup
	// devMode skips token validation and trusts the X-User-ID header.
	// Only set when no JWT secret is configured together with the mock
	// store, for local development and screenshots.
	devMode bool
}

// NewMiddleware builds the authentication middleware. jwtManager may
// be nil only when devMode is set.
func NewMiddleware(jwtManager *JWTManager, lookup ProfileLookup, devMode bool) *Middleware {
	return &Middleware{jwt: jwtManager, lookup: lookup, devMode: devMode}
}

// Authenticate wraps a handler with bearer token validation.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := m.resolveUserID(w, r)
		if !ok {
			return
		}
		profile, err := m.lookup(r.Context(), userID)
		if err != nil {
			logging.Warn().Err(err).Str("user_id", userID).Msg("authenticated token for unknown profile")
			unauthorized(w, "unknown user")
			return
		}
		ctx := context.WithValue(r.Context(), profileContextKey, profile)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) resolveUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if m.devMode {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			unauthorized(w, "missing X-User-ID header")
			return "", false
		}
		return userID, true
	}

	token := bearerToken(r)
	if token == "" {
		unauthorized(w, "missing bearer token")
		return "", false
	}
	claims, err := m.jwt.ValidateToken(token)
	if err != nil {
		unauthorized(w, "invalid token")
		return "", false
	}
	return claims.UserID, true
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, found := strings.CutPrefix(header, "Bearer "); found {
		return after
	}
	// Browsers cannot set headers on websocket upgrades, so the token
	// may arrive as a query parameter on /ws.
	return r.URL.Query().Get("token")
}

// ProfileFromContext returns the authenticated profile, if any.
func ProfileFromContext(ctx context.Context) (models.Profile, bool) {
	profile, ok := ctx.Value(profileContextKey).(models.Profile)
	return profile, ok
}

// ContextWithProfile attaches a profile to the context. Exposed for
// handler tests.
func ContextWithProfile(ctx context.Context, profile models.Profile) context.Context {
	return context.WithValue(ctx, profileContextKey, profile)
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	//nolint:errcheck
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
