package social

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
)

const googleIssuer = "https://accounts.google.com"

// GoogleConfig configures Google ID-token verification.
type GoogleConfig struct {
	ClientID string
	Timeout  time.Duration
}

type idTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// GoogleVerifier checks Google-issued ID tokens against the provider's
// published keys. The audience must match this application's client id.
type GoogleVerifier struct {
	clientID string
	timeout  time.Duration

	mu       sync.Mutex
	verifier idTokenVerifier

	// newVerifier is swappable in tests.
	newVerifier func(ctx context.Context) (idTokenVerifier, error)
}

// NewGoogleVerifier constructs a verifier. Provider discovery happens lazily
// on the first verification so construction never requires the network.
func NewGoogleVerifier(cfg GoogleConfig) (*GoogleVerifier, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("google verifier: client id is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	v := &GoogleVerifier{
		clientID: cfg.ClientID,
		timeout:  timeout,
	}
	v.newVerifier = v.discover
	return v, nil
}

func (v *GoogleVerifier) discover(ctx context.Context) (idTokenVerifier, error) {
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("google verifier: discovery failed: %w", err)
	}
	return provider.Verifier(&oidc.Config{ClientID: v.clientID}), nil
}

func (v *GoogleVerifier) tokenVerifier(ctx context.Context) (idTokenVerifier, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.verifier != nil {
		return v.verifier, nil
	}

	verifier, err := v.newVerifier(ctx)
	if err != nil {
		return nil, err
	}

	v.verifier = verifier
	return verifier, nil
}

// VerifyIDToken validates the signed ID token and extracts the identity.
// Rejects tokens whose verified payload lacks an email or name.
func (v *GoogleVerifier) VerifyIDToken(ctx context.Context, rawIDToken string) (*Profile, error) {
	if strings.TrimSpace(rawIDToken) == "" {
		return nil, ErrInvalidToken
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	verifier, err := v.tokenVerifier(ctx)
	if err != nil {
		return nil, err
	}

	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	var payload struct {
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&payload); err != nil {
		return nil, ErrInvalidToken
	}

	if payload.Email == "" || payload.Name == "" {
		return nil, ErrInvalidToken
	}

	return &Profile{
		ProviderID: payload.Sub,
		Email:      payload.Email,
		Name:       payload.Name,
		Picture:    payload.Picture,
	}, nil
}
