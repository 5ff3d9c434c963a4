package googleauth

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAuthenticated(t *testing.T) {
	dir := t.TempDir()
	p := NewFileProvider("id", "secret").WithTokenFile(filepath.Join(dir, "google.token"))

	assert.False(t, p.IsAuthenticated())

	require.NoError(t, os.WriteFile(p.tokenFile, []byte("access refresh"), 0600))
	assert.True(t, p.IsAuthenticated())
}

func TestGetValidAccessTokenMissingCredential(t *testing.T) {
	p := NewFileProvider("id", "secret").WithTokenFile(filepath.Join(t.TempDir(), "none"))

	_, err := p.GetValidAccessToken(context.Background())
	assert.ErrorIs(t, err, ErrAuthExpired)
}

func TestTokenSourceMalformedCache(t *testing.T) {
	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "google.token")
	require.NoError(t, os.WriteFile(tokenFile, []byte("only-one-field"), 0600))

	p := NewFileProvider("id", "secret").WithTokenFile(tokenFile)
	_, err := p.TokenSource(context.Background())
	assert.ErrorIs(t, err, ErrAuthExpired)
}
