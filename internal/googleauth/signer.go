// Package googleauth implements the OAuth2 JWT-bearer flow used to
// authenticate against the Google Sheets API as a service account: it
// mints RS256-signed JWT assertions and exchanges them for short-lived
// bearer access tokens.
package googleauth

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SpreadsheetsScope is the OAuth2 scope requested in every assertion.
const SpreadsheetsScope = "https://www.googleapis.com/auth/spreadsheets"

// assertionTTL is the lifetime claimed in the assertion. Google rejects
// anything above one hour.
const assertionTTL = time.Hour

// ErrInvalidPrivateKey is returned when the service account private key
// cannot be decoded or is not an RSA key.
var ErrInvalidPrivateKey = errors.New("invalid private key")

// Signer builds and signs JWT assertions for a single service account.
type Signer struct {
	email    string
	audience string
	key      *rsa.PrivateKey
	now      func() time.Time
}

// SignerOption configures a Signer.
type SignerOption func(*Signer)

// WithSignerClock overrides the clock used for the iat/exp claims.
func WithSignerClock(now func() time.Time) SignerOption {
	return func(s *Signer) {
		s.now = now
	}
}

// NewSigner parses the PEM-encoded private key and returns a Signer that
// issues assertions on behalf of email, addressed to the given audience
// (the OAuth2 token endpoint). Keys that carry literal `\n` escape
// sequences, as pasted from service account JSON files, are accepted.
func NewSigner(email, privateKeyPEM, audience string, opts ...SignerOption) (*Signer, error) {
	const op = "googleauth.NewSigner"

	key, err := parseRSAPrivateKey(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s := &Signer{
		email:    strings.TrimSpace(email),
		audience: strings.TrimSpace(audience),
		key:      key,
		now:      func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Assertion returns a compact RS256 JWT claiming the spreadsheets scope,
// issued now and expiring in one hour.
func (s *Signer) Assertion() (string, error) {
	const op = "googleauth.Signer.Assertion"

	now := s.now()
	claims := map[string]any{
		"iss":   s.email,
		"scope": SpreadsheetsScope,
		"aud":   s.audience,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionTTL).Unix(),
	}

	headerJSON, err := json.Marshal(map[string]string{"alg": "RS256", "typ": "JWT"})
	if err != nil {
		return "", fmt.Errorf("%s: failed to marshal header: %w", op, err)
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("%s: failed to marshal claims: %w", op, err)
	}

	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) +
		"." + base64.RawURLEncoding.EncodeToString(claimsJSON)

	hash := sha256.Sum256([]byte(signingInput))
	signature, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, hash[:])
	if err != nil {
		return "", fmt.Errorf("%s: failed to sign assertion: %w", op, err)
	}

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}

func parseRSAPrivateKey(raw string) (*rsa.PrivateKey, error) {
	raw = strings.TrimSpace(raw)
	// keys pasted through env vars commonly arrive with escaped newlines
	raw = strings.ReplaceAll(raw, `\n`, "\n")
	if raw == "" {
		return nil, fmt.Errorf("%w: key is empty", ErrInvalidPrivateKey)
	}

	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrInvalidPrivateKey)
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: key is not RSA", ErrInvalidPrivateKey)
		}
		return rsaKey, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	return nil, fmt.Errorf("%w: unsupported key format", ErrInvalidPrivateKey)
}
