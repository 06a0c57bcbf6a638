// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const (
	// DownloadTokenBytes gives a 128-bit token.
	DownloadTokenBytes = 16
	refreshTokenBytes  = 32
	oauthStateBytes    = 24
)

// GenerateSecureToken returns length random bytes encoded as unpadded
// URL-safe base64.
func GenerateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

func GenerateDownloadToken() (string, error) {
	return GenerateSecureToken(DownloadTokenBytes)
}

func GenerateRefreshToken() (string, error) {
	return GenerateSecureToken(refreshTokenBytes)
}

func GenerateOAuthState() (string, error) {
	return GenerateSecureToken(oauthStateBytes)
}

func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
