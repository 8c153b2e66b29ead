package auth

import (
	"net"
	"net/url"
	"strings"

	"github.com/zitadel/oidc/v3/pkg/oidc"
)

// VerifyPKCE checks a code verifier against the challenge stored with a
// flow code. An empty challenge never verifies; codes from emailed links are
// checked with SameRedirect instead.
func VerifyPKCE(challenge, verifier string) bool {
	if challenge == "" || verifier == "" {
		return false
	}
	return oidc.VerifyCodeChallenge(&oidc.CodeChallenge{
		Challenge: challenge,
		Method:    oidc.CodeChallengeMethodS256,
	}, verifier)
}

// AllowedRedirect reports whether redirectTo may receive a flow code: a
// loopback callback (terminal clients) or a URL under the site.
func AllowedRedirect(siteURL, redirectTo string) bool {
	u, err := url.Parse(redirectTo)
	if err != nil || u.Scheme == "" {
		return false
	}
	if u.Scheme == "http" {
		if ip := net.ParseIP(u.Hostname()); ip != nil && ip.IsLoopback() {
			return true
		}
		if u.Hostname() == "localhost" {
			return true
		}
	}
	return redirectTo == siteURL || strings.HasPrefix(redirectTo, siteURL+"/")
}

// SameRedirect reports whether presented, the page that received a flow
// code, is the target the code was bound to. A code query parameter left on
// presented is ignored.
func SameRedirect(siteURL, bound, presented string) bool {
	if bound == "" || presented == "" {
		return false
	}
	u, err := url.Parse(ResolveRedirect(siteURL, presented))
	if err != nil {
		return false
	}
	q := u.Query()
	q.Del("code")
	u.RawQuery = q.Encode()
	return u.String() == bound
}

// ResolveRedirect turns a path like "/dashboard" into an absolute URL under
// the site; absolute URLs are returned unchanged.
func ResolveRedirect(siteURL, redirectTo string) string {
	if strings.HasPrefix(redirectTo, "/") {
		return siteURL + redirectTo
	}
	if redirectTo == "" {
		return siteURL + "/"
	}
	return redirectTo
}
