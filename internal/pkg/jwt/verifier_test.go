package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestVerifyHMACToken(t *testing.T) {
	gen := NewGenerator([]byte(testSecret), "https://auth.example.com", "authenticated", time.Hour)
	token, jti, err := gen.Generate("1b4e28ba-2fa1-11d2-883f-0016d3cca427", "ada@example.com", "Ada Lovelace")
	require.NoError(t, err)
	require.NotEmpty(t, jti)

	v := NewHMACVerifier([]byte(testSecret), "https://auth.example.com", "authenticated")
	claims, err := v.Verify(token)
	require.NoError(t, err)

	assert.Equal(t, "1b4e28ba-2fa1-11d2-883f-0016d3cca427", claims.Subject)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, "Ada Lovelace", claims.DisplayName())
}

func TestVerifyRejects(t *testing.T) {
	gen := NewGenerator([]byte(testSecret), "issuer-a", "authenticated", time.Hour)
	token, _, err := gen.Generate("user-1", "a@example.com", "")
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewHMACVerifier([]byte("other"), "issuer-a", "authenticated").Verify(token)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		_, err := NewHMACVerifier([]byte(testSecret), "issuer-b", "authenticated").Verify(token)
		assert.ErrorContains(t, err, "invalid issuer")
	})

	t.Run("wrong audience", func(t *testing.T) {
		_, err := NewHMACVerifier([]byte(testSecret), "issuer-a", "service_role").Verify(token)
		assert.ErrorContains(t, err, "invalid audience")
	})

	t.Run("expired", func(t *testing.T) {
		expired := NewGenerator([]byte(testSecret), "issuer-a", "authenticated", -time.Minute)
		tok, _, err := expired.Generate("user-1", "a@example.com", "")
		require.NoError(t, err)
		_, err = NewHMACVerifier([]byte(testSecret), "issuer-a", "authenticated").Verify(tok)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := NewHMACVerifier([]byte(testSecret), "", "").Verify("not-a-token")
		assert.Error(t, err)
	})
}

func TestVerifyRSAToken(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "jwt_public.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600))

	v, err := LoadVerifier(Config{PubPath: path, Audience: "authenticated"})
	require.NoError(t, err)

	claims := &Claims{
		Email: "grace@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-rsa",
			Audience:  []string{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(priv)
	require.NoError(t, err)

	got, err := v.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-rsa", got.Subject)

	// An HS256 token must not be accepted by an RSA-only verifier.
	hs, _, err := NewGenerator([]byte(testSecret), "", "authenticated", time.Hour).Generate("user-rsa", "", "")
	require.NoError(t, err)
	_, err = v.Verify(hs)
	assert.Error(t, err)
}

func TestLoadVerifierWithoutKey(t *testing.T) {
	_, err := LoadVerifier(Config{})
	assert.Error(t, err)
}
