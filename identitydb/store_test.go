package identitydb

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/SpeechifyInc/analytics-go/analytics"
	pkgerrors "github.com/SpeechifyInc/analytics-go/pkg/errors"
	"github.com/SpeechifyInc/analytics-go/pkg/logger"
	"github.com/SpeechifyInc/analytics-go/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "identitydb-test", Output: io.Discard})
}

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := Open(path, "install-1", newTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ", "install-1", newTestLogger())
	require.Error(t, err)
	require.NotNil(t, pkgerrors.As(err))
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestLoadOnEmptyDatabase(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "identity.db"))

	_, found, err := store.Load()
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "identity.db"))

	snap := analytics.IdentitySnapshot{
		AnonymousID: "anon-1",
		UserID:      "user-7",
		Traits: value.Object(
			value.Field{Key: "plan", Value: value.String("pro")},
			value.Field{Key: "seats", Value: value.Number(3)},
		),
	}
	require.NoError(t, store.Save(snap))

	loaded, found, err := store.Load()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "anon-1", loaded.AnonymousID)
	assert.Equal(t, "user-7", loaded.UserID)
	assert.True(t, loaded.Traits.Equal(snap.Traits))
}

func TestSaveOverwritesRow(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "identity.db"))

	require.NoError(t, store.Save(analytics.IdentitySnapshot{AnonymousID: "anon-1", UserID: "user-1"}))
	require.NoError(t, store.Save(analytics.IdentitySnapshot{AnonymousID: "anon-1"}))

	loaded, found, err := store.Load()
	require.NoError(t, err)
	require.True(t, found)
	assert.Empty(t, loaded.UserID)
	assert.True(t, loaded.Traits.IsNull())
}

func TestSnapshotSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.db")

	store, err := Open(path, "install-1", newTestLogger())
	require.NoError(t, err)
	require.NoError(t, store.Save(analytics.IdentitySnapshot{AnonymousID: "anon-persist"}))
	require.NoError(t, store.Close())

	reopened := openTestStore(t, path)
	loaded, found, err := reopened.Load()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "anon-persist", loaded.AnonymousID)
}

func TestInstallKeysAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.db")

	first, err := Open(path, "install-a", newTestLogger())
	require.NoError(t, err)
	defer first.Close()
	second, err := Open(path, "install-b", newTestLogger())
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, first.Save(analytics.IdentitySnapshot{AnonymousID: "anon-a"}))

	_, found, err := second.Load()
	require.NoError(t, err)
	assert.False(t, found)
}
