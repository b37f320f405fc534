package github

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestKey(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	return key, pemBytes
}

func TestAppJWTClaims(t *testing.T) {
	key, pemBytes := generateTestKey(t)
	a := NewAppAuthenticator(12345, pemBytes)

	signed, err := a.appJWT()
	require.NoError(t, err)

	parsed, err := jwt.ParseWithClaims(signed, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	claims := parsed.Claims.(*jwt.RegisteredClaims)
	assert.Equal(t, "12345", claims.Issuer)

	now := time.Now()
	assert.True(t, claims.IssuedAt.Before(now.Add(-30*time.Second)), "issued-at is backdated for clock skew")
	assert.True(t, claims.ExpiresAt.After(now), "token is not yet expired")
	assert.True(t, claims.ExpiresAt.Before(now.Add(10*time.Minute)), "GitHub rejects App JWTs above ten minutes")
}

func TestAppJWTRejectsBadKey(t *testing.T) {
	a := NewAppAuthenticator(1, []byte("not a pem key"))
	_, err := a.appJWT()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse app private key")
}

func TestInstallationToken(t *testing.T) {
	_, pemBytes := generateTestKey(t)

	var authHeader string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v3/app/installations/7001/access_tokens", func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"token": "ghs_installation", "expires_at": "2030-01-01T00:00:00Z"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	a := NewAppAuthenticator(12345, pemBytes)
	a.SetBaseURL(server.URL)

	token, err := a.InstallationToken(context.Background(), 7001)
	require.NoError(t, err)
	assert.Equal(t, "ghs_installation", token)
	assert.True(t, strings.HasPrefix(authHeader, "Bearer ey"), "request carries the app JWT")
}

func TestInstallationTokenSurfacesAPIErrors(t *testing.T) {
	_, pemBytes := generateTestKey(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "Not Found"}`))
	}))
	defer server.Close()

	a := NewAppAuthenticator(12345, pemBytes)
	a.SetBaseURL(server.URL)

	_, err := a.InstallationToken(context.Background(), 9999)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create installation token for 9999")
}
