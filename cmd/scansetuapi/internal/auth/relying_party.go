package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zitadel/oidc/v3/pkg/client/rp"
	httphelper "github.com/zitadel/oidc/v3/pkg/http"
	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/config"
)

const (
	redirectCookieName  = "scansetu.redirect_to"
	challengeCookieName = "scansetu.code_challenge"
	flowCookieTTL       = 10 * time.Minute
)

// RelyingParty handles Google sign-in by wrapping the zitadel/oidc
// RelyingParty implementation.
type RelyingParty struct {
	rp rp.RelyingParty
}

// NewRelyingParty creates a RelyingParty for the Google provider.
func NewRelyingParty(ctx context.Context, cfg config.GoogleConfig, secure bool) (*RelyingParty, error) {
	// Cookie keys only need to outlive a sign-in round trip, so they are
	// generated per process.
	hashKey, err := generateRandomBytes(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate cookie hash key: %w", err)
	}
	cryptoKey, err := generateRandomBytes(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate cookie crypto key: %w", err)
	}

	var cookieOpts []httphelper.CookieHandlerOpt
	if !secure {
		cookieOpts = append(cookieOpts, httphelper.WithUnsecure())
	}
	cookieHandler := httphelper.NewCookieHandler(hashKey, cryptoKey, cookieOpts...)

	options := []rp.Option{
		rp.WithCookieHandler(cookieHandler),
		rp.WithVerifierOpts(rp.WithIssuedAtMaxAge(10 * time.Second)),
		rp.WithPKCE(cookieHandler),
	}

	relyingParty, err := rp.NewRelyingPartyOIDC(ctx, cfg.Issuer, cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI,
		cfg.Scopes, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC relying party: %w", err)
	}

	return &RelyingParty{rp: relyingParty}, nil
}

// RP exposes the wrapped relying party for the zitadel HTTP handlers.
func (r *RelyingParty) RP() rp.RelyingParty {
	return r.rp
}

// AuthURLHandler redirects to Google with a fresh state and PKCE pair.
func (r *RelyingParty) AuthURLHandler() http.HandlerFunc {
	return rp.AuthURLHandler(func() string {
		state, _ := GenerateNonce()
		return state
	}, r.rp)
}

// CallbackHandler validates state, exchanges the code and hands the verified
// claims to onTokens.
func (r *RelyingParty) CallbackHandler(onTokens func(http.ResponseWriter, *http.Request, *oidc.IDTokenClaims)) http.HandlerFunc {
	return rp.CodeExchangeHandler(func(w http.ResponseWriter, req *http.Request, tokens *oidc.Tokens[*oidc.IDTokenClaims], _ string, _ rp.RelyingParty) {
		onTokens(w, req, tokens.IDTokenClaims)
	}, r.rp)
}

func generateRandomBytes(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}

// GenerateNonce generates a random nonce string.
func GenerateNonce() (string, error) {
	b, err := generateRandomBytes(32)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// FlowCookies holds what the client asked for when it started an OAuth
// sign-in; it survives the trip through the provider in short-lived cookies.
type FlowCookies struct {
	RedirectTo    string
	CodeChallenge string
}

// SetFlowCookies stores the client's return URL and PKCE challenge.
func SetFlowCookies(w http.ResponseWriter, r *http.Request, flow FlowCookies) {
	setCookie(w, r, redirectCookieName, flow.RedirectTo, time.Now().Add(flowCookieTTL))
	setCookie(w, r, challengeCookieName, flow.CodeChallenge, time.Now().Add(flowCookieTTL))
}

// TakeFlowCookies reads and clears the flow cookies. RedirectTo is empty when
// the cookies expired or were never set.
func TakeFlowCookies(w http.ResponseWriter, r *http.Request) FlowCookies {
	var flow FlowCookies
	if c, err := r.Cookie(redirectCookieName); err == nil {
		flow.RedirectTo = c.Value
	}
	if c, err := r.Cookie(challengeCookieName); err == nil {
		flow.CodeChallenge = c.Value
	}
	setCookie(w, r, redirectCookieName, "", time.Unix(0, 0))
	setCookie(w, r, challengeCookieName, "", time.Unix(0, 0))
	return flow
}

func setCookie(w http.ResponseWriter, r *http.Request, name, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/auth/v1",
		Expires:  expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
