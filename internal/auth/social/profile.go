package social

import "errors"

// Providers supported for federated login.
const (
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"
)

// ErrInvalidToken is returned for any provider token that fails verification,
// including transport errors and payloads missing required fields.
var ErrInvalidToken = errors.New("social: invalid provider token")

// Profile is the verified identity returned by a provider.
type Profile struct {
	ProviderID string
	Email      string
	Name       string
	Picture    string
}
