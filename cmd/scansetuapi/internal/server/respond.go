package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/db/models"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/middleware"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/services/identity"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/services/inventory"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/services/profile"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors onto the JSON error envelope. Anything
// unrecognised is logged and reported as a 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	if authErr, ok := identity.AsAuthError(err); ok {
		middleware.WriteError(w, authErr.Status, authErr.Code, authErr.Message)
		return
	}
	switch {
	case errors.Is(err, profile.ErrForbidden):
		middleware.WriteError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, inventory.ErrInvalidFilter):
		middleware.WriteError(w, http.StatusBadRequest, "invalid_filter", err.Error())
	default:
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		middleware.WriteError(w, http.StatusInternalServerError, "unexpected_failure", "Unexpected failure, please try again")
	}
}

// userJSON is the wire form of a user.
type userJSON struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at"`
	UserMetadata     map[string]any `json:"user_metadata"`
	CreatedAt        time.Time      `json:"created_at"`
	LastSignInAt     *time.Time     `json:"last_sign_in_at,omitempty"`
}

func toUserJSON(u *models.User) *userJSON {
	if u == nil {
		return nil
	}
	meta := map[string]any{}
	if u.FullName != "" {
		meta["full_name"] = u.FullName
	}
	return &userJSON{
		ID:               u.ID,
		Email:            u.Email,
		EmailConfirmedAt: u.EmailConfirmedAt,
		UserMetadata:     meta,
		CreatedAt:        u.CreatedAt,
		LastSignInAt:     u.LastSignInAt,
	}
}

// tokenJSON is the body returned by every sign-in grant.
type tokenJSON struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	RefreshToken string    `json:"refresh_token"`
	User         *userJSON `json:"user"`
}

func toTokenJSON(g *identity.Grant) *tokenJSON {
	if g == nil {
		return nil
	}
	return &tokenJSON{
		AccessToken:  g.AccessToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(g.ExpiresIn.Seconds()),
		ExpiresAt:    g.ExpiresAt.Unix(),
		RefreshToken: g.RefreshToken,
		User:         toUserJSON(g.User),
	}
}

type profileJSON struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role"`
}

func toProfileJSON(p *models.Profile) *profileJSON {
	if p == nil {
		return nil
	}
	return &profileJSON{ID: p.ID, Email: p.Email, FullName: p.FullName, Role: p.Role}
}

func clientFromRequest(r *http.Request) identity.Client {
	return identity.Client{UserAgent: r.UserAgent(), IPAddress: r.RemoteAddr}
}

// withErrorQuery appends the error parameters a redirect-based client reads.
func withErrorQuery(target string, authErr *identity.AuthError) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set("error", authErr.Code)
	q.Set("error_description", authErr.Message)
	u.RawQuery = q.Encode()
	return u.String()
}
