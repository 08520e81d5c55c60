package googleauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTokenURL is Google's OAuth2 token endpoint.
	DefaultTokenURL = "https://oauth2.googleapis.com/token"

	jwtBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// refreshLeeway is how long before expiry a cached token stops
	// being handed out.
	refreshLeeway = 60 * time.Second

	// defaultExpiresIn is assumed when the token response omits
	// expires_in.
	defaultExpiresIn = 3600

	maxTokenResponseBytes = 1 << 20
)

// AuthError is returned when the token endpoint rejects an exchange.
// It carries the response so the caller can decide what to do; this
// package never retries.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("googleauth: token exchange failed: status=%d body=%s", e.StatusCode, e.Body)
}

// TokenSource exchanges signed assertions for bearer access tokens and
// caches the current token until it is within refreshLeeway of expiry.
// Concurrent callers racing on a cold or expired cache are funneled
// through a single exchange.
type TokenSource struct {
	signer     *Signer
	tokenURL   string
	httpClient *http.Client
	now        func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// TokenSourceOption configures a TokenSource.
type TokenSourceOption func(*TokenSource)

// WithHTTPClient overrides the HTTP client used for token exchanges.
func WithHTTPClient(client *http.Client) TokenSourceOption {
	return func(ts *TokenSource) {
		ts.httpClient = client
	}
}

// WithTokenURL overrides the token endpoint, e.g. for tests.
func WithTokenURL(tokenURL string) TokenSourceOption {
	return func(ts *TokenSource) {
		ts.tokenURL = tokenURL
	}
}

// WithClock overrides the clock used for cache expiry checks.
func WithClock(now func() time.Time) TokenSourceOption {
	return func(ts *TokenSource) {
		ts.now = now
	}
}

// NewTokenSource returns a TokenSource backed by the given signer.
func NewTokenSource(signer *Signer, opts ...TokenSourceOption) *TokenSource {
	ts := &TokenSource{
		signer:     signer,
		tokenURL:   DefaultTokenURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(ts)
	}

	return ts
}

// Token returns a bearer access token, reusing the cached one while its
// expiry is more than refreshLeeway away.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	if ts.token != "" && ts.now().Add(refreshLeeway).Before(ts.expiresAt) {
		token := ts.token
		ts.mu.Unlock()
		return token, nil
	}
	ts.mu.Unlock()

	token, err, _ := ts.group.Do("token", func() (any, error) {
		token, expiresAt, err := ts.exchange(ctx)
		if err != nil {
			return "", err
		}

		ts.mu.Lock()
		ts.token = token
		ts.expiresAt = expiresAt
		ts.mu.Unlock()

		return token, nil
	})
	if err != nil {
		return "", err
	}

	return token.(string), nil
}

func (ts *TokenSource) exchange(ctx context.Context) (string, time.Time, error) {
	const op = "googleauth.TokenSource.exchange"

	assertion, err := ts.signer.Assertion()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	form := url.Values{}
	form.Set("grant_type", jwtBearerGrantType)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: failed to call token endpoint: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: failed to read response body: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, &AuthError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		})
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", time.Time{}, fmt.Errorf("%s: failed to decode token response: %w", op, err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return "", time.Time{}, fmt.Errorf("%s: token response missing access_token", op)
	}

	expiresIn := payload.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}

	return payload.AccessToken, ts.now().Add(time.Duration(expiresIn) * time.Second), nil
}
