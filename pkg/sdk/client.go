package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Client talks to the ScanSetu API server. Unauthenticated calls (sign-in,
// sign-up, settings) go out as-is; everything else carries the bearer token
// held by the credential store.
type Client struct {
	baseURL string
	http    *http.Client
	authed  *http.Client
	store   CredentialStore
	logger  *zap.Logger
}

// ClientOptions configures SDK client construction.
type ClientOptions struct {
	HTTPClient *http.Client
	Store      CredentialStore
	Logger     *zap.Logger
}

// ClientOption mutates ClientOptions.
type ClientOption func(*ClientOptions)

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(opts *ClientOptions) {
		opts.HTTPClient = client
	}
}

// WithCredentialStore sets where session credentials are persisted.
func WithCredentialStore(store CredentialStore) ClientOption {
	return func(opts *ClientOptions) {
		opts.Store = store
	}
}

// WithLogger sets the logger for background work (refresh, event stream).
func WithLogger(logger *zap.Logger) ClientOption {
	return func(opts *ClientOptions) {
		opts.Logger = logger
	}
}

// NewClient creates a client for the API server at baseURL. Credentials
// default to an in-memory store.
func NewClient(baseURL string, optFns ...ClientOption) *Client {
	opts := ClientOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	authed := &http.Client{
		Timeout:       opts.HTTPClient.Timeout,
		CheckRedirect: opts.HTTPClient.CheckRedirect,
		Jar:           opts.HTTPClient.Jar,
		Transport: &oauth2.Transport{
			Source: &storeTokenSource{store: opts.Store},
			Base:   opts.HTTPClient.Transport,
		},
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    opts.HTTPClient,
		authed:  authed,
		store:   opts.Store,
		logger:  opts.Logger,
	}
}

// BaseURL returns the server URL the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// Store returns the credential store backing the client.
func (c *Client) Store() CredentialStore { return c.store }

// storeTokenSource reads the current access token on every request so that
// sign-in, refresh and sign-out take effect immediately.
type storeTokenSource struct {
	store CredentialStore
}

func (s *storeTokenSource) Token() (*oauth2.Token, error) {
	creds, err := s.store.LoadCredentials()
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: creds.AccessToken,
		TokenType:   "Bearer",
		Expiry:      creds.ExpiresAt,
	}, nil
}

// Health checks the server's liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, c.http, http.MethodGet, "/health", nil, nil, nil)
}

// Settings describes which sign-in methods the server accepts.
type Settings struct {
	External struct {
		Email  bool `json:"email"`
		Google bool `json:"google"`
	} `json:"external"`
	MailerAutoconfirm bool `json:"mailer_autoconfirm"`
}

// Settings fetches the server's sign-in configuration.
func (c *Client) Settings(ctx context.Context) (*Settings, error) {
	var out Settings
	if err := c.do(ctx, c.http, http.MethodGet, "/auth/v1/settings", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, query url.Values, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), rdr)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if len(data) > 0 {
		if err := json.Unmarshal(data, apiErr); err != nil {
			apiErr.Description = strings.TrimSpace(string(data))
		}
	}
	return apiErr
}
