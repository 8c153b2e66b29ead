package server

import (
	"net/http"
	"strings"

	"github.com/zitadel/oidc/v3/pkg/oidc"
	"go.uber.org/zap"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/auth"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/db/models"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/middleware"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/repository"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/services/identity"
)

type passwordGrantRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshGrantRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type pkceGrantRequest struct {
	AuthCode     string `json:"auth_code" validate:"required"`
	CodeVerifier string `json:"code_verifier"`
	RedirectTo   string `json:"redirect_to"`
}

type signUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Data     struct {
		FullName string `json:"full_name" validate:"max=200"`
	} `json:"data"`
}

type otpRequest struct {
	Email      string `json:"email" validate:"required,email"`
	RedirectTo string `json:"redirect_to"`
}

type verifyRequest struct {
	Type  string `json:"type" validate:"required,oneof=signup magiclink"`
	Token string `json:"token" validate:"required,notblank"`
}

// HandleToken serves the password, refresh_token and pkce grants.
func (h *handlers) HandleToken(w http.ResponseWriter, r *http.Request) {
	var (
		grant *identity.Grant
		err   error
	)
	switch grantType := r.URL.Query().Get("grant_type"); grantType {
	case "password":
		var req passwordGrantRequest
		if err = h.validator.decode(r, &req); err == nil {
			grant, err = h.identity.SignInWithPassword(r.Context(), repository.NormalizeEmail(req.Email), req.Password, clientFromRequest(r))
		}
	case "refresh_token":
		var req refreshGrantRequest
		if err = h.validator.decode(r, &req); err == nil {
			grant, err = h.identity.Refresh(r.Context(), req.RefreshToken)
		}
	case "pkce":
		var req pkceGrantRequest
		if err = h.validator.decode(r, &req); err == nil {
			grant, err = h.identity.ExchangeCode(r.Context(), req.AuthCode, req.CodeVerifier, req.RedirectTo, clientFromRequest(r))
		}
	default:
		middleware.WriteError(w, http.StatusBadRequest, "unsupported_grant_type",
			"unsupported grant_type "+strings.TrimSpace(grantType))
		return
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTokenJSON(grant))
}

// HandleSignUp creates an email/password account. The session is null
// until the address is confirmed unless accounts are auto-confirmed.
func (h *handlers) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := h.validator.decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	user, grant, err := h.identity.SignUp(r.Context(), repository.NormalizeEmail(req.Email), req.Password,
		strings.TrimSpace(req.Data.FullName), clientFromRequest(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		User    *userJSON  `json:"user"`
		Session *tokenJSON `json:"session"`
	}{User: toUserJSON(user), Session: toTokenJSON(grant)})
}

// HandleOTP emails a magic link.
func (h *handlers) HandleOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := h.validator.decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.identity.SendMagicLink(r.Context(), repository.NormalizeEmail(req.Email), req.RedirectTo); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// HandleVerify redeems an emailed token programmatically.
func (h *handlers) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := h.validator.decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	grant, err := h.identity.Verify(r.Context(), req.Type, strings.TrimSpace(req.Token), clientFromRequest(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTokenJSON(grant))
}

// HandleVerifyLink is the target of emailed links. The browser is always
// redirected; failures travel in the error query parameters.
func (h *handlers) HandleVerifyLink(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target, err := h.identity.VerifyRedirect(r.Context(), q.Get("type"), q.Get("token"), q.Get("redirect_to"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// HandleAuthorize starts a Google sign-in. The client's return URL and PKCE
// challenge ride along in cookies while the browser visits the provider.
func (h *handlers) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if provider := q.Get("provider"); provider != models.ProviderGoogle || h.relyingParty == nil {
		middleware.WriteError(w, http.StatusBadRequest, "validation_failed", "Unsupported provider: provider is not enabled")
		return
	}
	redirectTo := q.Get("redirect_to")
	if !auth.AllowedRedirect(h.siteURL, redirectTo) {
		writeError(w, r, h.logger, identity.ErrRedirectNotAllowed)
		return
	}
	challenge := q.Get("code_challenge")
	if challenge != "" && q.Get("code_challenge_method") != string(oidc.CodeChallengeMethodS256) {
		middleware.WriteError(w, http.StatusBadRequest, "validation_failed", "Code challenge method must be S256")
		return
	}

	auth.SetFlowCookies(w, r, auth.FlowCookies{RedirectTo: redirectTo, CodeChallenge: challenge})
	h.authURL.ServeHTTP(w, r)
}

func (h *handlers) onGoogleTokens(w http.ResponseWriter, r *http.Request, claims *oidc.IDTokenClaims) {
	flow := auth.TakeFlowCookies(w, r)
	target, err := h.identity.CompleteOAuth(r.Context(), identity.OAuthIdentity{
		Provider:      models.ProviderGoogle,
		Subject:       claims.Subject,
		Email:         repository.NormalizeEmail(claims.Email),
		EmailVerified: bool(claims.EmailVerified),
		Name:          claims.Name,
	}, flow)
	if err == nil {
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	authErr, ok := identity.AsAuthError(err)
	if ok && auth.AllowedRedirect(h.siteURL, flow.RedirectTo) {
		h.logger.Info("google sign-in rejected", zap.String("code", authErr.Code))
		http.Redirect(w, r, withErrorQuery(flow.RedirectTo, authErr), http.StatusFound)
		return
	}
	writeError(w, r, h.logger, err)
}

// HandleUser returns the caller's user record.
func (h *handlers) HandleUser(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	user, err := h.identity.GetUser(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserJSON(user))
}

// HandleLogout revokes the caller's session, or every session of the user
// with scope=global.
func (h *handlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = identity.ScopeLocal
	}
	if scope != identity.ScopeLocal && scope != identity.ScopeGlobal {
		middleware.WriteError(w, http.StatusBadRequest, "validation_failed", "scope must be local or global")
		return
	}
	principal, _ := auth.PrincipalFromContext(r.Context())
	if err := h.identity.SignOut(r.Context(), principal, scope); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSettings advertises the enabled sign-in methods.
func (h *handlers) HandleSettings(w http.ResponseWriter, _ *http.Request) {
	var body struct {
		External struct {
			Email  bool `json:"email"`
			Google bool `json:"google"`
		} `json:"external"`
		MailerAutoconfirm bool `json:"mailer_autoconfirm"`
	}
	body.External.Email = true
	body.External.Google = h.relyingParty != nil
	body.MailerAutoconfirm = h.identity.Autoconfirm()
	writeJSON(w, http.StatusOK, body)
}
