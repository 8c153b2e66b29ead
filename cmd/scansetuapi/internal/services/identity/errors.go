package identity

import (
	"errors"
	"net/http"
)

// AuthError is a client-facing failure. Message is shown to users verbatim.
type AuthError struct {
	Status  int
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// AsAuthError extracts an AuthError from err.
func AsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

var (
	ErrInvalidCredentials = &AuthError{http.StatusBadRequest, "invalid_credentials", "Invalid login credentials"}
	ErrEmailNotConfirmed  = &AuthError{http.StatusBadRequest, "email_not_confirmed", "Email not confirmed"}
	ErrUserExists         = &AuthError{http.StatusUnprocessableEntity, "user_already_exists", "User already registered"}
	ErrWeakPassword       = &AuthError{http.StatusUnprocessableEntity, "weak_password", "Password should be at least 6 characters."}
	ErrUserBanned         = &AuthError{http.StatusBadRequest, "user_banned", "User is banned"}
	ErrLinkExpired        = &AuthError{http.StatusForbidden, "otp_expired", "Email link is invalid or has expired"}
	ErrFlowNotFound       = &AuthError{http.StatusNotFound, "flow_state_not_found", "Invalid flow state, no valid flow state found"}
	ErrBadCodeVerifier    = &AuthError{http.StatusBadRequest, "bad_code_verifier", "Code challenge does not match previously saved code verifier"}
	ErrFlowRedirect       = &AuthError{http.StatusBadRequest, "flow_redirect_mismatch", "Flow code was issued for a different redirect URL"}
	ErrRefreshNotFound    = &AuthError{http.StatusBadRequest, "refresh_token_not_found", "Invalid Refresh Token: Refresh Token Not Found"}
	ErrRefreshReused      = &AuthError{http.StatusBadRequest, "refresh_token_already_used", "Invalid Refresh Token: Already Used"}
	ErrSessionNotFound    = &AuthError{http.StatusUnauthorized, "session_not_found", "Session from session_id claim in JWT does not exist"}
	ErrBadJWT             = &AuthError{http.StatusUnauthorized, "bad_jwt", "invalid JWT: unable to parse or verify signature"}
	ErrRedirectNotAllowed = &AuthError{http.StatusBadRequest, "validation_failed", "Redirect URL is not allowed"}
	ErrEmailUnverified    = &AuthError{http.StatusForbidden, "provider_email_needs_verification", "Unverified email with the sign-in provider"}
	ErrUserNotFound       = &AuthError{http.StatusNotFound, "user_not_found", "User not found"}
)
