// Package sheets is a thin client for the Google Sheets values API. It
// exposes the four range-oriented primitives the record store is built
// on: read, append, update and clear.
package sheets

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
)

// DefaultBaseURL is the spreadsheets endpoint of the Sheets API.
const DefaultBaseURL = "https://sheets.googleapis.com/v4/spreadsheets"

const maxResponseBytes = 10 << 20

// APIError is returned for any non-2xx response from the Sheets API.
// Callers must not retry on it: none of the mutating calls are
// guaranteed to be idempotent.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sheets: api error: status=%d body=%s", e.StatusCode, e.Body)
}

// TokenSource supplies bearer tokens for API calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client performs range operations against a single spreadsheet.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	spreadsheetID string
	tokens        TokenSource
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithBaseURL overrides the API endpoint, e.g. for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// New returns a Client bound to the given spreadsheet.
func New(spreadsheetID string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		baseURL:       DefaultBaseURL,
		spreadsheetID: spreadsheetID,
		tokens:        tokens,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type valuesBody struct {
	Range          string     `json:"range"`
	MajorDimension string     `json:"majorDimension"`
	Values         [][]string `json:"values"`
}

// GetValues reads a rectangular range. An unpopulated range yields an
// empty slice, not an error.
func (c *Client) GetValues(ctx context.Context, rng string) ([][]string, error) {
	const op = "sheets.Client.GetValues"

	body, err := c.do(ctx, http.MethodGet, c.valuesURL(rng, "?majorDimension=ROWS"), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var payload struct {
		Values [][]string `json:"values"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	if payload.Values == nil {
		return [][]string{}, nil
	}

	return payload.Values, nil
}

// AppendValues appends rows after the last populated row of the range.
func (c *Client) AppendValues(ctx context.Context, rng string, rows [][]string) error {
	const op = "sheets.Client.AppendValues"

	target := c.valuesURL(rng, ":append?valueInputOption=USER_ENTERED&insertDataOption=INSERT_ROWS")
	if _, err := c.do(ctx, http.MethodPost, target, &valuesBody{
		Range:          rng,
		MajorDimension: "ROWS",
		Values:         rows,
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UpdateValues overwrites exactly the addressed cells.
func (c *Client) UpdateValues(ctx context.Context, rng string, rows [][]string) error {
	const op = "sheets.Client.UpdateValues"

	if _, err := c.do(ctx, http.MethodPut, c.valuesURL(rng, "?valueInputOption=USER_ENTERED"), &valuesBody{
		Range:          rng,
		MajorDimension: "ROWS",
		Values:         rows,
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ClearValues blanks the cells of the range without removing rows.
func (c *Client) ClearValues(ctx context.Context, rng string) error {
	const op = "sheets.Client.ClearValues"

	if _, err := c.do(ctx, http.MethodPost, c.valuesURL(rng, ":clear"), struct{}{}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (c *Client) valuesURL(rng, suffix string) string {
	return c.baseURL + "/" + c.spreadsheetID + "/values/" + url.PathEscape(rng) + suffix
}

func (c *Client) do(ctx context.Context, method, target string, payload any) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call sheets api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	return body, nil
}
