// AngelaMos | 2026
// jwt.go

package auth

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/pitchfork-economy/internal/config"
	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/middleware"
)

const (
	claimName    = "name"
	claimAdmin   = "adm"
	claimVersion = "ver"
	claimType    = "typ"
	typeAccess   = "access"
	clockSkew    = 30 * time.Second
)

// JWTManager signs ES256 access tokens for the web store. The key id is
// the key's RFC 7638 thumbprint, so every api replica loading the same PEM
// publishes the same kid.
type JWTManager struct {
	privateKey jwk.Key
	publicKey  jwk.Key
	publicJWKS jwk.Set
	keyID      string
	config     config.JWTConfig
	clock      core.Clock
}

func NewJWTManager(cfg config.JWTConfig, clock core.Clock) (*JWTManager, error) {
	if clock == nil {
		clock = core.SystemClock{}
	}

	raw, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	privateKey, err := jwk.ParseKey(raw, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	thumb, err := privateKey.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("key thumbprint: %w", err)
	}
	keyID := base64.RawURLEncoding.EncodeToString(thumb)[:16]

	if err := privateKey.Set(jwk.AlgorithmKey, jwa.ES256()); err != nil {
		return nil, fmt.Errorf("set algorithm: %w", err)
	}
	if err := privateKey.Set(jwk.KeyIDKey, keyID); err != nil {
		return nil, fmt.Errorf("set key id: %w", err)
	}

	publicKey, err := privateKey.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}
	if err := publicKey.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, fmt.Errorf("set key usage: %w", err)
	}

	set := jwk.NewSet()
	if err := set.AddKey(publicKey); err != nil {
		return nil, fmt.Errorf("add key to set: %w", err)
	}

	return &JWTManager{
		privateKey: privateKey,
		publicKey:  publicKey,
		publicJWKS: set,
		keyID:      keyID,
		config:     cfg,
		clock:      clock,
	}, nil
}

// EnsureKeyPair writes a fresh P-256 key pair when the private key file is
// missing. It reports whether it generated one.
func EnsureKeyPair(privateKeyPath, publicKeyPath string) (bool, error) {
	if _, err := os.Stat(privateKeyPath); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat private key: %w", err)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return false, fmt.Errorf("generate key: %w", err)
	}

	private, err := jwk.Import(key)
	if err != nil {
		return false, fmt.Errorf("import private key: %w", err)
	}
	public, err := private.PublicKey()
	if err != nil {
		return false, fmt.Errorf("derive public key: %w", err)
	}

	privatePEM, err := jwk.Pem(private)
	if err != nil {
		return false, fmt.Errorf("encode private key: %w", err)
	}
	publicPEM, err := jwk.Pem(public)
	if err != nil {
		return false, fmt.Errorf("encode public key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(privateKeyPath), 0o700); err != nil {
		return false, fmt.Errorf("create key dir: %w", err)
	}
	if err := os.WriteFile(privateKeyPath, privatePEM, 0o600); err != nil {
		return false, fmt.Errorf("write private key: %w", err)
	}
	//nolint:gosec // G306: the public key is meant to be readable
	if err := os.WriteFile(publicKeyPath, publicPEM, 0o644); err != nil {
		return false, fmt.Errorf("write public key: %w", err)
	}

	return true, nil
}

// IssueAccessToken signs a short-lived token for a member. The admin flag
// rides along for the frontend only; admin routes re-check it live.
func (m *JWTManager) IssueAccessToken(u *UserInfo) (string, time.Time, error) {
	now := m.clock.Now()
	expires := now.Add(m.config.AccessTokenExpire)

	token, err := jwt.NewBuilder().
		JwtID(uuid.NewString()).
		Issuer(m.config.Issuer).
		Audience([]string{m.config.Audience}).
		Subject(u.ID).
		IssuedAt(now).
		NotBefore(now).
		Expiration(expires).
		Claim(claimName, u.Username).
		Claim(claimAdmin, u.IsAdmin).
		Claim(claimVersion, u.TokenVersion).
		Claim(claimType, typeAccess).
		Build()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256(), m.privateKey))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return string(signed), expires, nil
}

// ParseAccessToken checks signature, issuer, audience and lifetime. The
// token version is compared against the member row by the service.
func (m *JWTManager) ParseAccessToken(raw string) (*middleware.AccessTokenClaims, error) {
	token, err := jwt.Parse(
		[]byte(raw),
		jwt.WithKey(jwa.ES256(), m.publicKey),
		jwt.WithValidate(true),
		jwt.WithClock(m.clock),
		jwt.WithAcceptableSkew(clockSkew),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
	)
	if err != nil {
		if expired(err) {
			return nil, fmt.Errorf("parse access token: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("parse access token: %w", core.ErrTokenInvalid)
	}

	var typ string
	if err := token.Get(claimType, &typ); err != nil || typ != typeAccess {
		return nil, fmt.Errorf("parse access token: wrong type: %w", core.ErrTokenInvalid)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf("parse access token: no subject: %w", core.ErrTokenInvalid)
	}

	var version float64
	if err := token.Get(claimVersion, &version); err != nil {
		return nil, fmt.Errorf("parse access token: no version: %w", core.ErrTokenInvalid)
	}

	claims := &middleware.AccessTokenClaims{
		UserID:       subject,
		TokenVersion: int(version),
	}
	//nolint:errcheck // display hints, zero when absent
	_ = token.Get(claimName, &claims.Username)
	//nolint:errcheck // display hints, zero when absent
	_ = token.Get(claimAdmin, &claims.IsAdmin)

	return claims, nil
}

func expired(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "exp") && strings.Contains(msg, "not satisfied")
}

func (m *JWTManager) GetJWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/jwk-set+json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("ETag", `"`+m.keyID+`"`)

		if err := json.NewEncoder(w).Encode(m.publicJWKS); err != nil {
			core.InternalServerError(w, err)
		}
	}
}

func (m *JWTManager) KeyID() string {
	return m.keyID
}

func (m *JWTManager) AccessTokenTTL() time.Duration {
	return m.config.AccessTokenExpire
}

type RefreshTokenData struct {
	Token     string
	Hash      string
	ExpiresAt time.Time
	FamilyID  string
}

// NewRefreshToken mints an opaque refresh token. An empty familyID starts
// a new rotation family, which is what a fresh login does.
func (m *JWTManager) NewRefreshToken(familyID string) (*RefreshTokenData, error) {
	token, err := core.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	if familyID == "" {
		familyID = uuid.NewString()
	}

	return &RefreshTokenData{
		Token:     token,
		Hash:      core.HashToken(token),
		ExpiresAt: m.clock.Now().Add(m.config.RefreshTokenExpire),
		FamilyID:  familyID,
	}, nil
}
