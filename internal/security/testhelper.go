package security

import "time"

// NewTestTokenProvider returns a TokenProvider with a fixed secret and short,
// deterministic parameters. For unit tests only.
func NewTestTokenProvider() *TokenProvider {
	return NewTokenProvider(TokenConfig{
		Secret:       "unit-test-signing-key-0123456789abcdef",
		Issuer:       "test-issuer",
		Audience:     "test-audience",
		AccessTTL:    15 * time.Minute,
		RefreshTTL:   24 * time.Hour,
		RotateWithin: 5 * time.Minute,
	})
}
