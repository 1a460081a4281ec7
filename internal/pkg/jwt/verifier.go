// internal/pkg/jwt/verifier.go
package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Config selects the key material used to verify access tokens.
// Secret enables HS256; PubPath enables RS256. Secret wins when both are set.
type Config struct {
	Secret   string
	PubPath  string
	Issuer   string
	Audience string
}

type Verifier struct {
	secret   []byte
	pub      *rsa.PublicKey
	issuer   string
	audience string
}

func NewHMACVerifier(secret []byte, issuer, audience string) *Verifier {
	return &Verifier{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
	}
}

func NewVerifier(pub *rsa.PublicKey, issuer, audience string) *Verifier {
	return &Verifier{
		pub:      pub,
		issuer:   issuer,
		audience: audience,
	}
}

// LoadVerifier builds a Verifier from configuration, reading the PEM key when needed.
func LoadVerifier(cfg Config) (*Verifier, error) {
	if cfg.Secret != "" {
		return NewHMACVerifier([]byte(cfg.Secret), cfg.Issuer, cfg.Audience), nil
	}
	if cfg.PubPath == "" {
		return nil, errors.New("jwt: no verification key configured")
	}

	pub, err := LoadRSAPublicKeyFromPEM(cfg.PubPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load public key from %s: %w", cfg.PubPath, err)
	}
	return NewVerifier(pub, cfg.Issuer, cfg.Audience), nil
}

// Verify validates a JWT token and returns the claims
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	if v.pub == nil && len(v.secret) == 0 {
		return nil, fmt.Errorf("jwt verifier has no key")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		switch token.Method.(type) {
		case *jwt.SigningMethodHMAC:
			if len(v.secret) > 0 {
				return v.secret, nil
			}
		case *jwt.SigningMethodRSA:
			if v.pub != nil {
				return v.pub, nil
			}
		}
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}, jwt.WithExpirationRequired())

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	// Verify issuer
	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, fmt.Errorf("invalid issuer: expected %s, got %s", v.issuer, claims.Issuer)
	}

	// Verify audience
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return nil, fmt.Errorf("invalid audience")
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	return claims, nil
}
