// Package identity implements the hosted Session Store: sign-up, the sign-in
// grants, emailed links, refresh rotation and sign-out.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/auth"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/db/models"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/events"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/mail"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/repository"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/telemetry"
)

const (
	tracerName  = "scansetuapi/services/identity"
	flowCodeTTL = 5 * time.Minute
)

// Dependencies are the collaborators of Service.
type Dependencies struct {
	Users    repository.UserRepository
	Sessions repository.SessionRepository
	Tokens   repository.OneTimeTokenRepository
	Issuer   *auth.TokenIssuer
	Mailer   mail.Sender
	Events   events.Publisher
	Metrics  *telemetry.AuthMetrics
	Logger   *zap.Logger
}

// Config holds the settings Service needs.
type Config struct {
	SiteURL     string
	RefreshTTL  time.Duration
	LinkTTL     time.Duration
	Autoconfirm bool
}

// Client describes the caller of a grant, stored on the session.
type Client struct {
	UserAgent string
	IPAddress string
}

// Grant is the result of a successful sign-in.
type Grant struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	ExpiresIn    time.Duration
	SessionID    string
	User         *models.User
}

// OAuthIdentity is what the provider asserted about the user.
type OAuthIdentity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// Service is the identity service.
type Service struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	tokens   repository.OneTimeTokenRepository
	issuer   *auth.TokenIssuer
	mailer   mail.Sender
	events   events.Publisher
	metrics  *telemetry.AuthMetrics
	logger   *zap.Logger
	cfg      Config
	now      func() time.Time
}

// NewService creates an identity service.
func NewService(deps Dependencies, cfg Config) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")
	return &Service{
		users:    deps.Users,
		sessions: deps.Sessions,
		tokens:   deps.Tokens,
		issuer:   deps.Issuer,
		mailer:   deps.Mailer,
		events:   deps.Events,
		metrics:  deps.Metrics,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Autoconfirm reports whether new accounts skip email confirmation.
func (s *Service) Autoconfirm() bool {
	return s.cfg.Autoconfirm
}

func (s *Service) record(ctx context.Context, method string, start time.Time, err error) {
	s.metrics.RecordAuth(ctx, method, err == nil, float64(time.Since(start).Milliseconds()))
}

// SignUp creates an email/password user. Unless accounts are confirmed
// automatically, a confirmation link is emailed and no grant is returned.
func (s *Service) SignUp(ctx context.Context, email, password, fullName string, client Client) (_ *models.User, _ *Grant, err error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "identity.SignUp")
	defer span.End()
	defer func() { telemetry.RecordError(span, err) }()

	if len(password) < auth.MinPasswordLength {
		return nil, nil, ErrWeakPassword
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, nil, ErrUserExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, nil, err
	}
	user := &models.User{
		Email:        email,
		PasswordHash: &hash,
		FullName:     strings.TrimSpace(fullName),
		Provider:     models.ProviderEmail,
	}
	if s.cfg.Autoconfirm {
		now := s.now()
		user.EmailConfirmedAt = &now
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, nil, ErrUserExists
		}
		return nil, nil, err
	}

	if s.cfg.Autoconfirm {
		grant, err := s.issueGrant(ctx, user, client)
		if err != nil {
			return nil, nil, err
		}
		return user, grant, nil
	}

	if err := s.sendLink(ctx, user, models.TokenKindSignup, "/"); err != nil {
		return nil, nil, err
	}
	return user, nil, nil
}

// SignInWithPassword is the password grant.
func (s *Service) SignInWithPassword(ctx context.Context, email, password string, client Client) (_ *Grant, err error) {
	start := time.Now()
	defer func() { s.record(ctx, "password", start, err) }()

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}
	if err := auth.CheckPassword(*user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Disabled() {
		return nil, ErrUserBanned
	}
	if !user.Confirmed() {
		return nil, ErrEmailNotConfirmed
	}
	return s.issueGrant(ctx, user, client)
}

// SendMagicLink emails a one-time sign-in link, creating the user on first
// use. redirectTo is where the browser lands after following the link.
func (s *Service) SendMagicLink(ctx context.Context, email, redirectTo string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "identity.SendMagicLink")
	defer span.End()
	defer func() { telemetry.RecordError(span, err) }()

	if redirectTo != "" && !strings.HasPrefix(redirectTo, "/") && !auth.AllowedRedirect(s.cfg.SiteURL, redirectTo) {
		return ErrRedirectNotAllowed
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		user = &models.User{Email: email, Provider: models.ProviderEmail}
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	if user.Disabled() {
		return ErrUserBanned
	}
	return s.sendLink(ctx, user, models.TokenKindMagicLink, redirectTo)
}

func (s *Service) sendLink(ctx context.Context, user *models.User, kind, redirectTo string) error {
	token, hash, err := auth.GenerateOpaqueToken()
	if err != nil {
		return err
	}
	ott := &models.OneTimeToken{
		UserID:     user.ID,
		Kind:       kind,
		TokenHash:  hash,
		RedirectTo: redirectTo,
		ExpiresAt:  s.now().Add(s.cfg.LinkTTL),
	}
	if err := s.tokens.Create(ctx, ott); err != nil {
		return err
	}

	q := url.Values{"token": {token}, "type": {kind}}
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	link := s.cfg.SiteURL + "/auth/v1/verify?" + q.Encode()

	msg := mail.MagicLinkMessage(user.Email, link, token)
	if kind == models.TokenKindSignup {
		msg = mail.ConfirmationMessage(user.Email, link, token)
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s email: %w", kind, err)
	}
	s.logger.Debug("link sent", zap.String("kind", kind), zap.String("user_id", user.ID))
	return nil
}

// Verify redeems an emailed token and signs the user in.
func (s *Service) Verify(ctx context.Context, kind, token string, client Client) (_ *Grant, err error) {
	start := time.Now()
	defer func() { s.record(ctx, kind, start, err) }()

	user, _, err := s.redeem(ctx, kind, token)
	if err != nil {
		return nil, err
	}
	return s.issueGrant(ctx, user, client)
}

// VerifyRedirect redeems an emailed token from a browser and returns the
// URL to send the browser to: the link's redirect target carrying a flow
// code, or carrying error_description when the link is unusable.
func (s *Service) VerifyRedirect(ctx context.Context, kind, token, redirectTo string) (string, error) {
	user, ott, err := s.redeem(ctx, kind, token)
	target := redirectTo
	if ott != nil && ott.RedirectTo != "" {
		target = ott.RedirectTo
	}
	target = auth.ResolveRedirect(s.cfg.SiteURL, target)
	if !auth.AllowedRedirect(s.cfg.SiteURL, target) {
		target = s.cfg.SiteURL + "/"
	}

	if err != nil {
		authErr, ok := AsAuthError(err)
		if !ok {
			return "", err
		}
		return withQuery(target, url.Values{"error": {authErr.Code}, "error_description": {authErr.Message}}), nil
	}

	code, err := s.flowCode(ctx, user.ID, "", target)
	if err != nil {
		return "", err
	}
	return withQuery(target, url.Values{"code": {code}}), nil
}

func (s *Service) redeem(ctx context.Context, kind, token string) (*models.User, *models.OneTimeToken, error) {
	if kind != models.TokenKindSignup && kind != models.TokenKindMagicLink {
		return nil, nil, ErrLinkExpired
	}
	now := s.now()
	ott, err := s.tokens.Consume(ctx, kind, auth.HashOpaqueToken(token), now)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, ErrLinkExpired
	}
	if err != nil {
		return nil, nil, err
	}
	user, err := s.users.GetByID(ctx, ott.UserID)
	if err != nil {
		return nil, ott, err
	}
	if user.Disabled() {
		return nil, ott, ErrUserBanned
	}
	if !user.Confirmed() {
		if err := s.users.MarkConfirmed(ctx, user.ID, now); err != nil {
			return nil, ott, err
		}
		user.EmailConfirmedAt = &now
	}
	return user, ott, nil
}

// ExchangeCode is the pkce grant: it trades a flow code for a grant. Codes
// from an OAuth return need the verifier matching their challenge. Codes from
// emailed links carry no challenge, so the caller must present the redirect
// URL the link delivered the code to.
func (s *Service) ExchangeCode(ctx context.Context, code, verifier, redirectTo string, client Client) (_ *Grant, err error) {
	start := time.Now()
	defer func() { s.record(ctx, "pkce", start, err) }()

	ott, err := s.tokens.Consume(ctx, models.TokenKindFlow, auth.HashOpaqueToken(code), s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrFlowNotFound
	}
	if err != nil {
		return nil, err
	}
	switch {
	case ott.CodeChallenge != "":
		if !auth.VerifyPKCE(ott.CodeChallenge, verifier) {
			return nil, ErrBadCodeVerifier
		}
	case !auth.SameRedirect(s.cfg.SiteURL, ott.RedirectTo, redirectTo):
		return nil, ErrFlowRedirect
	}
	user, err := s.users.GetByID(ctx, ott.UserID)
	if err != nil {
		return nil, err
	}
	if user.Disabled() {
		return nil, ErrUserBanned
	}
	return s.issueGrant(ctx, user, client)
}

// CompleteOAuth links or provisions the user the provider vouched for and
// returns the redirect carrying a flow code bound to the client's challenge.
func (s *Service) CompleteOAuth(ctx context.Context, id OAuthIdentity, flow auth.FlowCookies) (_ string, err error) {
	start := time.Now()
	defer func() { s.record(ctx, "oauth", start, err) }()

	if flow.RedirectTo == "" || !auth.AllowedRedirect(s.cfg.SiteURL, flow.RedirectTo) {
		return "", ErrRedirectNotAllowed
	}
	if !id.EmailVerified || id.Email == "" {
		return "", ErrEmailUnverified
	}

	user, err := s.oauthUser(ctx, id)
	if err != nil {
		return "", err
	}
	if user.Disabled() {
		return "", ErrUserBanned
	}
	code, err := s.flowCode(ctx, user.ID, flow.CodeChallenge, flow.RedirectTo)
	if err != nil {
		return "", err
	}
	return withQuery(flow.RedirectTo, url.Values{"code": {code}}), nil
}

func (s *Service) oauthUser(ctx context.Context, id OAuthIdentity) (*models.User, error) {
	user, err := s.users.GetBySubject(ctx, id.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	now := s.now()
	user, err = s.users.GetByEmail(ctx, id.Email)
	switch {
	case err == nil:
		// Same verified address signed up by email first: link the accounts.
		user.Subject = &id.Subject
		if user.FullName == "" {
			user.FullName = id.Name
		}
		if err := s.users.Update(ctx, user); err != nil {
			return nil, err
		}
		if !user.Confirmed() {
			if err := s.users.MarkConfirmed(ctx, user.ID, now); err != nil {
				return nil, err
			}
			user.EmailConfirmedAt = &now
		}
		return user, nil
	case errors.Is(err, repository.ErrNotFound):
		user = &models.User{
			Email:            id.Email,
			FullName:         id.Name,
			Provider:         id.Provider,
			Subject:          &id.Subject,
			EmailConfirmedAt: &now,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
		s.logger.Info("provisioned user", zap.String("provider", id.Provider), zap.String("user_id", user.ID))
		return user, nil
	default:
		return nil, err
	}
}

func (s *Service) flowCode(ctx context.Context, userID, challenge, redirectTo string) (string, error) {
	code, hash, err := auth.GenerateOpaqueToken()
	if err != nil {
		return "", err
	}
	err = s.tokens.Create(ctx, &models.OneTimeToken{
		UserID:        userID,
		Kind:          models.TokenKindFlow,
		TokenHash:     hash,
		RedirectTo:    redirectTo,
		CodeChallenge: challenge,
		ExpiresAt:     s.now().Add(flowCodeTTL),
	})
	if err != nil {
		return "", err
	}
	return code, nil
}

// Refresh is the refresh_token grant. The presented token is rotated; a
// token that was already rotated away is rejected.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (_ *Grant, err error) {
	start := time.Now()
	defer func() { s.record(ctx, "refresh_token", start, err) }()

	oldHash := auth.HashOpaqueToken(refreshToken)
	session, err := s.sessions.GetByRefreshTokenHash(ctx, oldHash)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRefreshNotFound
	}
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !session.Active(now) {
		return nil, ErrRefreshNotFound
	}
	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user.Disabled() {
		return nil, ErrUserBanned
	}

	next, nextHash, err := auth.GenerateOpaqueToken()
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Rotate(ctx, session.ID, oldHash, nextHash, now.Add(s.cfg.RefreshTTL)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRefreshReused
		}
		return nil, err
	}
	return s.grant(user, session.ID, next)
}

func (s *Service) issueGrant(ctx context.Context, user *models.User, client Client) (*Grant, error) {
	refresh, hash, err := auth.GenerateOpaqueToken()
	if err != nil {
		return nil, err
	}
	now := s.now()
	session := &models.Session{
		UserID:           user.ID,
		RefreshTokenHash: hash,
		ExpiresAt:        now.Add(s.cfg.RefreshTTL),
		UserAgent:        client.UserAgent,
		IPAddress:        client.IPAddress,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	if err := s.users.TouchSignIn(ctx, user.ID, now); err != nil {
		s.logger.Warn("record sign-in time failed", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		user.LastSignInAt = &now
	}
	return s.grant(user, session.ID, refresh)
}

func (s *Service) grant(user *models.User, sessionID, refresh string) (*Grant, error) {
	access, expiresAt, err := s.issuer.Issue(user.ID, user.Email, sessionID)
	if err != nil {
		return nil, err
	}
	return &Grant{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		ExpiresIn:    s.issuer.TTL(),
		SessionID:    sessionID,
		User:         user,
	}, nil
}

// Authenticate validates an access token and the session it names.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (auth.Principal, error) {
	claims, err := s.issuer.Verify(accessToken)
	if err != nil {
		return auth.Principal{}, ErrBadJWT
	}
	session, err := s.sessions.GetByID(ctx, claims.SessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return auth.Principal{}, ErrSessionNotFound
	}
	if err != nil {
		return auth.Principal{}, err
	}
	if session.UserID != claims.Subject || !session.Active(s.now()) {
		return auth.Principal{}, ErrSessionNotFound
	}
	return auth.Principal{
		UserID:    claims.Subject,
		Email:     claims.Email,
		SessionID: claims.SessionID,
	}, nil
}

// GetUser returns the user behind a principal.
func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// Sign-out scopes.
const (
	ScopeLocal  = "local"
	ScopeGlobal = "global"
)

// SignOut revokes the caller's session, or all of the user's sessions for
// the global scope, and tells connected clients.
func (s *Service) SignOut(ctx context.Context, p auth.Principal, scope string) error {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "identity.SignOut",
		attribute.String(telemetry.AttrUserID, p.UserID),
		attribute.String("signout.scope", scope),
	)
	defer span.End()

	ev := events.Event{Kind: events.KindSignedOut, UserID: p.UserID}
	if scope == ScopeGlobal {
		if _, err := s.sessions.RevokeByUserID(ctx, p.UserID); err != nil {
			telemetry.RecordError(span, err)
			return err
		}
	} else {
		if err := s.sessions.Revoke(ctx, p.SessionID); err != nil {
			telemetry.RecordError(span, err)
			return err
		}
		ev.SessionID = p.SessionID
	}
	s.publish(ctx, ev)
	return nil
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn("publish event failed", zap.String("event", string(ev.Kind)), zap.Error(err))
	}
}

func withQuery(target string, q url.Values) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	existing := u.Query()
	for k, v := range q {
		existing[k] = v
	}
	u.RawQuery = existing.Encode()
	return u.String()
}
