package sdk

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

type callbackResult struct {
	code    string
	errDesc string
}

// SignInWithOAuth implements authctx.SessionStore for the terminal: it
// listens on a loopback port, sends the browser to the server's authorize
// endpoint and exchanges the returned flow code. The return path is handed
// to the redirect handler once the session exists.
func (a *Auth) SignInWithOAuth(ctx context.Context, provider, returnPath string) error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("start loopback listener: %w", err)
	}

	verifier := oauth2.GenerateVerifier()
	callback := fmt.Sprintf("http://%s/callback", ln.Addr().String())
	authorizeURL := a.client.endpoint("/auth/v1/authorize", url.Values{
		"provider":              {provider},
		"redirect_to":           {callback},
		"code_challenge":        {oauth2.S256ChallengeFromVerifier(verifier)},
		"code_challenge_method": {"S256"},
	})

	results := make(chan callbackResult, 1)
	srv := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/callback" {
				http.NotFound(w, r)
				return
			}
			q := r.URL.Query()
			res := callbackResult{code: q.Get("code"), errDesc: q.Get("error_description")}
			if res.code == "" && res.errDesc == "" {
				res.errDesc = "missing authorization code"
			}
			select {
			case results <- res:
			default:
			}
			if res.errDesc != "" {
				http.Error(w, res.errDesc, http.StatusBadRequest)
				return
			}
			fmt.Fprintln(w, "Signed in to ScanSetu. You can close this window.")
		}),
	}
	go srv.Serve(ln)
	defer srv.Close()

	a.logger.Debug("opening browser for sign-in", zap.String("provider", provider))
	a.openBrowser(authorizeURL)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-results:
		if res.errDesc != "" {
			return &APIError{Status: http.StatusBadRequest, Code: "oauth_error", Description: res.errDesc}
		}
		if err := a.ExchangeCode(ctx, res.code, verifier, ""); err != nil {
			return err
		}
	}

	if a.onRedirect != nil {
		a.onRedirect(returnPath)
	}
	return nil
}
