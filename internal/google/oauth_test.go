package google

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestGetOAuthConfig(t *testing.T) {
	cfg, err := GetOAuthConfig("123-abc.apps.googleusercontent.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "123-abc.apps.googleusercontent.com", cfg.ClientID)
	assert.Equal(t, Scopes, cfg.Scopes)

	_, err = GetOAuthConfig("not-a-client-id", "secret")
	assert.Error(t, err)
}

func TestTokenStore(t *testing.T) {
	dir := t.TempDir()
	store := NewTokenStore(dir)
	token := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	for _, account := range []string{"work", "personal"} {
		require.NoError(t, store.Save(account, token))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.json"), []byte("{}"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "token-dir.json"), 0o700))

	assert.Equal(t, filepath.Join(dir, "token-work.json"), store.Path("work"))
	info, err := os.Stat(store.Path("work"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := store.Load("work")
	require.NoError(t, err)
	assert.Equal(t, "refresh", got.RefreshToken)
	assert.True(t, token.Expiry.Equal(got.Expiry))

	accounts, err := store.Accounts()
	require.NoError(t, err)
	assert.Equal(t, []string{"personal", "work"}, accounts)

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestTokenStoreOverwrite(t *testing.T) {
	store := NewTokenStore(t.TempDir())
	require.NoError(t, store.Save("work", &oauth2.Token{AccessToken: "old-and-much-longer-value"}))
	require.NoError(t, store.Save("work", &oauth2.Token{AccessToken: "new"}))

	got, err := store.Load("work")
	require.NoError(t, err)
	assert.Equal(t, "new", got.AccessToken)
}

func TestTokenStoreErrors(t *testing.T) {
	dir := t.TempDir()
	store := NewTokenStore(dir)

	_, err := store.Load("missing")
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.WriteFile(store.Path("broken"), []byte("not json"), 0o600))
	_, err = store.Load("broken")
	assert.ErrorContains(t, err, "invalid token file for account broken")

	assert.Error(t, store.Save("", &oauth2.Token{}))
	assert.Error(t, store.Save("../escape", &oauth2.Token{}))

	_, err = NewTokenStore(filepath.Join(dir, "nope")).Accounts()
	assert.Error(t, err)
}
