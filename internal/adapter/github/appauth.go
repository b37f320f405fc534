package github

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gh "github.com/google/go-github/v68/github"
)

// AppAuthenticator mints GitHub App JWTs and exchanges them for
// installation access tokens. Tokens are fetched per delivery; GitHub
// caps their lifetime at one hour so caching buys little here.
type AppAuthenticator struct {
	appID      int64
	privateKey []byte
	baseURL    string
	httpClient *http.Client
}

// NewAppAuthenticator constructs an authenticator from the App ID and
// its PEM-encoded RSA private key.
func NewAppAuthenticator(appID int64, privateKey []byte) *AppAuthenticator {
	return &AppAuthenticator{
		appID:      appID,
		privateKey: privateKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SetBaseURL points the authenticator at a custom API endpoint
// (used by tests and GitHub Enterprise).
func (a *AppAuthenticator) SetBaseURL(url string) {
	a.baseURL = url
}

// appJWT signs a short-lived RS256 JWT identifying the App. Issued-at
// is backdated 60s to absorb clock skew between us and GitHub.
func (a *AppAuthenticator) appJWT() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(a.privateKey)
	if err != nil {
		return "", fmt.Errorf("parse app private key: %w", err)
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-60 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(9 * time.Minute)),
		Issuer:    fmt.Sprintf("%d", a.appID),
	})
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign app token: %w", err)
	}
	return signed, nil
}

// InstallationToken exchanges the App JWT for an installation access
// token scoped to the given installation.
func (a *AppAuthenticator) InstallationToken(ctx context.Context, installationID int64) (string, error) {
	signed, err := a.appJWT()
	if err != nil {
		return "", err
	}

	client := gh.NewClient(a.httpClient).WithAuthToken(signed)
	if a.baseURL != "" {
		client, err = client.WithEnterpriseURLs(a.baseURL, a.baseURL)
		if err != nil {
			return "", fmt.Errorf("configure api endpoint: %w", err)
		}
	}

	token, _, err := client.Apps.CreateInstallationToken(ctx, installationID, nil)
	if err != nil {
		return "", fmt.Errorf("create installation token for %d: %w", installationID, err)
	}
	return token.GetToken(), nil
}
