package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const defaultGraphBaseURL = "https://graph.facebook.com"

// FacebookConfig configures Facebook access-token verification.
type FacebookConfig struct {
	Timeout time.Duration

	// BaseURL overrides the Graph API endpoint, primarily for tests.
	BaseURL string
}

// FacebookVerifier resolves a user access token against the Graph API
// identity endpoint. Any transport or provider error counts as an invalid
// token.
type FacebookVerifier struct {
	baseURL string
	timeout time.Duration
}

// NewFacebookVerifier constructs a verifier with a bounded request timeout.
func NewFacebookVerifier(cfg FacebookConfig) *FacebookVerifier {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultGraphBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &FacebookVerifier{baseURL: baseURL, timeout: timeout}
}

// VerifyAccessToken asks the Graph API who the token belongs to. The token
// authorises the request itself, so a tampered token simply fails upstream.
func (v *FacebookVerifier) VerifyAccessToken(ctx context.Context, accessToken string) (*Profile, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, ErrInvalidToken
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))

	endpoint := fmt.Sprintf("%s/me?%s", v.baseURL, url.Values{
		"fields": {"id,name,email,picture"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("facebook verifier: build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, ErrInvalidToken
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrInvalidToken
	}

	var payload struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, ErrInvalidToken
	}

	if payload.Email == "" || payload.Name == "" {
		return nil, ErrInvalidToken
	}

	return &Profile{
		ProviderID: payload.ID,
		Email:      payload.Email,
		Name:       payload.Name,
		Picture:    payload.Picture.Data.URL,
	}, nil
}
