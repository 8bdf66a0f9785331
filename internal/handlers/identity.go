package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gregaplay/backend/internal/auth"
	"github.com/gregaplay/backend/internal/logging"
	"github.com/gregaplay/backend/internal/models"
)

// bearerToken extracts the access token from the Authorization header.
func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// resolveAccount returns the account behind the request's bearer token, or nil
// when the request is anonymous. Invalid and expired tokens also resolve to
// nil so public endpoints degrade to the anonymous view.
func resolveAccount(ctx context.Context, r *http.Request, sessions SessionManager, accounts AccountStore) *models.Account {
	token := bearerToken(r)
	if token == "" || sessions == nil || accounts == nil {
		return nil
	}

	accountID, err := sessions.Authenticate(ctx, token)
	if err != nil {
		if !errors.Is(err, auth.ErrSessionNotFound) && !errors.Is(err, auth.ErrAccessTokenExpired) {
			logging.FromContext(ctx).Warn("token lookup failed", "error", err)
		}
		return nil
	}

	account, err := accounts.FindByID(ctx, accountID)
	if err != nil {
		logging.FromContext(ctx).Warn("session account lookup failed", "accountId", accountID, "error", err)
		return nil
	}
	return &account
}

// requireAccount resolves the caller and writes a 401 when the request
// carries no valid token. The boolean reports whether the caller may proceed.
func requireAccount(ctx context.Context, w http.ResponseWriter, r *http.Request, sessions SessionManager, accounts AccountStore) (models.Account, bool) {
	account := resolveAccount(ctx, r, sessions, accounts)
	if account == nil {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return models.Account{}, false
	}
	return *account, true
}
