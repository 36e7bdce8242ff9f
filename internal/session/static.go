package session

import "context"

// Static returns a preconfigured cookie string without touching a browser.
// Used as the fallback when headless acquisition is disabled or fails.
type Static struct {
	token string
}

// NewStatic wraps a fixed cookie header string.
func NewStatic(token string) *Static {
	return &Static{token: token}
}

// Acquire returns the configured token.
func (s *Static) Acquire(_ context.Context, _ string) (string, error) {
	return s.token, nil
}
