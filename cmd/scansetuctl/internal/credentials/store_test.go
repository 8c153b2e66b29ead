package credentials

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scansetu/scansetu/pkg/sdk"
)

func TestFileStore_RoundTrip(t *testing.T) {
	store, err := NewFileStoreAt(t.TempDir())
	require.NoError(t, err)

	_, err = store.LoadCredentials()
	require.ErrorIs(t, err, sdk.ErrNoCredentials)

	creds := &sdk.Credentials{
		AccessToken:  "access",
		TokenType:    "bearer",
		ExpiresAt:    time.Date(2025, 9, 18, 13, 20, 0, 0, time.UTC),
		RefreshToken: "refresh",
		User:         sdk.User{ID: "u1", Email: "priya@example.com"},
	}
	require.NoError(t, store.SaveCredentials(creds))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := store.LoadCredentials()
	require.NoError(t, err)
	assert.Equal(t, "access", got.AccessToken)
	assert.Equal(t, "u1", got.User.ID)
	assert.True(t, creds.ExpiresAt.Equal(got.ExpiresAt))
}

func TestFileStore_Delete(t *testing.T) {
	store, err := NewFileStoreAt(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.DeleteCredentials(), "deleting nothing is fine")

	require.NoError(t, store.SaveCredentials(&sdk.Credentials{AccessToken: "a"}))
	require.NoError(t, store.DeleteCredentials())

	_, err = store.LoadCredentials()
	assert.ErrorIs(t, err, sdk.ErrNoCredentials)
}

func TestFileStore_Corrupt(t *testing.T) {
	store, err := NewFileStoreAt(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0o600))

	_, err = store.LoadCredentials()
	require.Error(t, err)
	assert.NotErrorIs(t, err, sdk.ErrNoCredentials)
}
