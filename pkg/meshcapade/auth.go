package meshcapade

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// expirySkew is subtracted from the token lifetime so a token is never
// used right at its expiry boundary.
const expirySkew = 30 * time.Second

// TokenProvider supplies a bearer token for API requests.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenConfig describes the OpenID-Connect password-grant exchange.
type TokenConfig struct {
	AuthURL  string
	Realm    string
	ClientID string
	Username string
	Password string
}

// TokenSource exchanges credentials for a bearer token and caches it in
// memory until shortly before expiry. A single attempt is made per
// exchange; failures surface as *AuthError.
type TokenSource struct {
	cfg        TokenConfig
	httpClient *http.Client
	now        func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewTokenSource builds a TokenSource. httpClient may be nil, in which
// case http.DefaultClient is used.
func NewTokenSource(cfg TokenConfig, httpClient *http.Client) *TokenSource {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &TokenSource{cfg: cfg, httpClient: httpClient, now: time.Now}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token returns a cached access token, performing the password-grant
// exchange when no fresh token is held.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && ts.now().Before(ts.expiry) {
		return ts.token, nil
	}

	endpoint := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token",
		strings.TrimRight(ts.cfg.AuthURL, "/"), ts.cfg.Realm)

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", ts.cfg.ClientID)
	form.Set("username", ts.cfg.Username)
	form.Set("password", ts.cfg.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return "", &AuthError{Detail: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &AuthError{Status: resp.StatusCode, Detail: fmt.Sprintf("read token response: %v", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &AuthError{Status: resp.StatusCode, Detail: snippet(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", &AuthError{Status: resp.StatusCode, Detail: fmt.Sprintf("decode token response: %v", err)}
	}
	if tr.AccessToken == "" {
		return "", &AuthError{Status: resp.StatusCode, Detail: "token response missing access_token"}
	}

	ts.token = tr.AccessToken
	if tr.ExpiresIn > 0 {
		ts.expiry = ts.now().Add(time.Duration(tr.ExpiresIn)*time.Second - expirySkew)
	} else {
		// No lifetime reported; keep the token for the run.
		ts.expiry = ts.now().Add(time.Hour)
	}
	return ts.token, nil
}

// snippet truncates a response body for error messages.
func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 512 {
		s = s[:512] + "..."
	}
	if s == "" {
		return "(empty body)"
	}
	return s
}
