// Package github talks to the external OAuth provider: it drives the
// authorization-code exchange and performs API calls on behalf of a
// provider token.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/hubgate/hubgate/pkg/observability"
)

// Authentication-flow failures. The flow must be restarted from the
// authorize step; neither call is retried automatically (authorization
// codes are single-use by provider contract).
var (
	ErrExchangeFailed      = errors.New("oauth code exchange failed")
	ErrIdentityFetchFailed = errors.New("oauth identity fetch failed")
)

const (
	defaultAuthURL  = "https://github.com/login/oauth/authorize"
	defaultTokenURL = "https://github.com/login/oauth/access_token"
	defaultAPIBase  = "https://api.github.com"

	requestTimeout = 15 * time.Second
)

// Config holds the OAuth application credentials and endpoints. The URL
// fields default to github.com and exist so tests can point the client at
// a local server.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	AuthURL  string
	TokenURL string
	APIBase  string
}

// Identity is the provider's view of an authenticated account.
type Identity struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// Client is the OAuth and API client for the provider.
type Client struct {
	oauth      *oauth2.Config
	apiBase    string
	httpClient *http.Client
	metrics    *observability.Metrics
}

// NewClient creates a provider client. metrics may be nil.
func NewClient(cfg Config, metrics *observability.Metrics) *Client {
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = defaultAuthURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"user:email", "repo"}
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
		},
		apiBase:    apiBase,
		httpClient: &http.Client{Timeout: requestTimeout},
		metrics:    metrics,
	}
}

// AuthorizeURL builds the provider authorization URL. state is an opaque
// anti-forgery token the caller must match on callback.
func (c *Client) AuthorizeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// ExchangeCode trades an authorization code for a provider access token.
// One network call; never retried.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("%w: missing authorization code", ErrExchangeFailed)
	}

	start := time.Now()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth.Exchange(ctx, code)
	c.observe("exchange_code", start)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("%w: provider returned empty token", ErrExchangeFailed)
	}
	return token.AccessToken, nil
}

// FetchIdentity returns the provider identity for an access token.
func (c *Client) FetchIdentity(ctx context.Context, token string) (Identity, error) {
	start := time.Now()
	defer c.observe("fetch_identity", start)

	var identity Identity
	if err := c.get(ctx, token, "/user", nil, &identity); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrIdentityFetchFailed, err)
	}
	if identity.Login == "" {
		return Identity{}, fmt.Errorf("%w: provider returned no login", ErrIdentityFetchFailed)
	}
	return identity, nil
}

// get performs one authenticated GET against the provider API.
func (c *Client) get(ctx context.Context, token, path string, query url.Values, dest interface{}) error {
	u := c.apiBase + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "hubgate")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a bounded amount so the connection can be reused. The body
		// is not included in the error; provider error pages may echo
		// request details.
		io.CopyN(io.Discard, resp.Body, 4096)
		return fmt.Errorf("request %s: status %d", path, resp.StatusCode)
	}

	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}

func (c *Client) observe(operation string, start time.Time) {
	if c.metrics != nil {
		c.metrics.ObserveOAuthCall(operation, time.Since(start))
	}
}
