// Package identity verifies third-party identity-provider tokens.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/freelancebill/freelancebill/pkg/logger"
)

// DefaultGoogleEndpoint is Google's public ID-token introspection endpoint.
const DefaultGoogleEndpoint = "https://oauth2.googleapis.com/tokeninfo"

// Claims are the identity assertions extracted from a verified token.
type Claims struct {
	Email string
	Name  string
}

// GoogleVerifier validates Google ID tokens against the tokeninfo endpoint,
// bound to this application's OAuth client ID.
type GoogleVerifier struct {
	httpClient *http.Client
	clientID   string
	endpoint   string
	log        *logger.Logger
}

// NewGoogleVerifier creates a verifier for the given client ID.
func NewGoogleVerifier(httpClient *http.Client, clientID string, log *logger.Logger) (*GoogleVerifier, error) {
	if clientID == "" {
		return nil, fmt.Errorf("google client id is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("identity")
	}
	return &GoogleVerifier{
		httpClient: httpClient,
		clientID:   clientID,
		endpoint:   DefaultGoogleEndpoint,
		log:        log,
	}, nil
}

// WithEndpoint overrides the verification endpoint. Used in tests.
func (v *GoogleVerifier) WithEndpoint(endpoint string) *GoogleVerifier {
	v.endpoint = endpoint
	return v
}

// Verify checks the ID token and returns its claims. The audience must match
// the configured client ID and the token must not be expired.
func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (Claims, error) {
	if idToken == "" {
		return Claims{}, fmt.Errorf("empty id token")
	}

	endpoint := v.endpoint + "?id_token=" + url.QueryEscape(idToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Claims{}, err
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return Claims{}, fmt.Errorf("token verification request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Claims{}, err
	}
	if resp.StatusCode != http.StatusOK {
		v.log.WithField("status", resp.StatusCode).Warn("identity token rejected")
		return Claims{}, fmt.Errorf("token rejected by provider (status %d)", resp.StatusCode)
	}

	var payload struct {
		Audience string `json:"aud"`
		Email    string `json:"email"`
		Name     string `json:"name"`
		Expiry   string `json:"exp"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Claims{}, fmt.Errorf("decode tokeninfo response: %w", err)
	}

	if payload.Audience != v.clientID {
		return Claims{}, fmt.Errorf("token audience mismatch")
	}
	if payload.Expiry != "" {
		exp, err := strconv.ParseInt(payload.Expiry, 10, 64)
		if err != nil || time.Now().Unix() >= exp {
			return Claims{}, fmt.Errorf("token expired")
		}
	}

	return Claims{Email: payload.Email, Name: payload.Name}, nil
}
