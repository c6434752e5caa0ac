package digest

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenBytes of entropy back every feedback token.
const tokenBytes = 32

// NewFeedbackToken returns a URL-safe random token.
func NewFeedbackToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate feedback token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
