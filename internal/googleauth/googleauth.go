// Package googleauth consumes OAuth tokens for the Google mail provider.
//
// The login/callback flow and token storage belong to an external auth
// service; this package only reads the cached token, refreshes it through the
// oauth2 token source, and hands authenticated HTTP clients to the mailbox
// layer.
package googleauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
)

// ErrAuthExpired indicates no valid credential is available. The caller must
// re-authenticate through the auth service; the core never does.
var ErrAuthExpired = errors.New("authentication expired")

// Scopes required by the assistant's mail operations.
var Scopes = []string{
	gmail.GmailReadonlyScope,
	gmail.GmailSendScope,
	gmail.GmailModifyScope,
}

// Provider supplies valid access tokens for mail provider calls.
type Provider interface {
	// GetValidAccessToken returns a currently valid access token,
	// refreshing if necessary. Fails with ErrAuthExpired when refresh is
	// impossible.
	GetValidAccessToken(ctx context.Context) (string, error)

	// IsAuthenticated reports whether a credential is available at all.
	IsAuthenticated() bool
}

// FileProvider reads tokens cached on disk by the auth service and refreshes
// them through the standard oauth2 flow.
type FileProvider struct {
	clientID     string
	clientSecret string
	tokenFile    string
}

// NewFileProvider creates a provider reading from the default cache location,
// $XDG_CACHE_HOME/jared/google.token or the OS equivalent.
func NewFileProvider(clientID, clientSecret string) *FileProvider {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = "."
	}
	return &FileProvider{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenFile:    filepath.Join(cacheDir, "jared", "google.token"),
	}
}

// WithTokenFile overrides the token cache path. Used in tests.
func (p *FileProvider) WithTokenFile(path string) *FileProvider {
	p.tokenFile = path
	return p
}

func (p *FileProvider) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       Scopes,
	}
}

// IsAuthenticated reports whether a cached credential exists.
func (p *FileProvider) IsAuthenticated() bool {
	_, err := os.ReadFile(p.tokenFile)
	return err == nil
}

// TokenSource returns a refreshing token source for the cached credential.
func (p *FileProvider) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	slurp, err := os.ReadFile(p.tokenFile)
	if err != nil {
		return nil, fmt.Errorf("%w: no cached Google credential", ErrAuthExpired)
	}

	f := strings.Fields(strings.TrimSpace(string(slurp)))
	if len(f) != 2 {
		return nil, fmt.Errorf("%w: malformed token cache", ErrAuthExpired)
	}

	// Expiry in the past forces a refresh on first use, validating the
	// refresh token early.
	return p.oauthConfig().TokenSource(ctx, &oauth2.Token{
		AccessToken:  f[0],
		TokenType:    "Bearer",
		RefreshToken: f[1],
		Expiry:       time.Unix(1, 0),
	}), nil
}

// GetValidAccessToken returns a fresh access token.
func (p *FileProvider) GetValidAccessToken(ctx context.Context) (string, error) {
	ts, err := p.TokenSource(ctx)
	if err != nil {
		return "", err
	}
	tok, err := ts.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthExpired, err)
	}
	return tok.AccessToken, nil
}

// HTTPClient returns an HTTP client that attaches and refreshes the
// credential on every request.
func (p *FileProvider) HTTPClient(ctx context.Context) (*http.Client, error) {
	ts, err := p.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(ctx, ts), nil
}
