package security

import (
	"crypto"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed or invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNoSigningKey is returned by Issue on a verify-only provider.
	ErrNoSigningKey = errors.New("token provider has no signing key")
)

// RoleOperator is the only role allowed to change ledger state.
const RoleOperator = "operator"

// OperatorClaims holds JWT claims for an operator token.
type OperatorClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// TokenProvider issues and validates operator JWTs using RS256 or ES256.
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	ttl        time.Duration
	now        func() time.Time
}

// NewTokenProvider returns a TokenProvider that signs with privateKey and verifies with publicKey.
// privateKey may be nil for a verify-only provider (the API server).
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, ttl time.Duration) *TokenProvider {
	if publicKey == nil && privateKey != nil {
		publicKey = privateKey.Public()
	}
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		ttl:        ttl,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Issue returns a signed operator token for subject and its expiry.
func (p *TokenProvider) Issue(subject string) (string, time.Time, error) {
	if p.privateKey == nil {
		return "", time.Time{}, ErrNoSigningKey
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, errors.New("token subject is required")
	}
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := p.now()
	expiresAt := now.Add(p.ttl)
	claims := OperatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subject,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role: RoleOperator,
	}
	method := signingMethod(p.privateKey.Public())
	if method == nil {
		return "", time.Time{}, ErrInvalidKey
	}
	token, err := jwt.NewWithClaims(method, claims).SignedString(p.privateKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Validate parses tokenString and checks signature, expiry, issuer, audience and role.
func (p *TokenProvider) Validate(tokenString string) (*OperatorClaims, error) {
	method := signingMethod(p.publicKey)
	if method == nil {
		return nil, ErrInvalidKey
	}
	claims := &OperatorClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return p.publicKey, nil },
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role != RoleOperator || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func signingMethod(pub crypto.PublicKey) jwt.SigningMethod {
	switch KeyAlg(pub) {
	case "RS256":
		return jwt.SigningMethodRS256
	case "ES256":
		return jwt.SigningMethodES256
	}
	return nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
