package kiosk

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	t.Run("load of a missing file is empty, not an error", func(t *testing.T) {
		store := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
		state, err := store.Load()
		require.NoError(t, err)
		assert.Nil(t, state)
	})

	t.Run("round trips state", func(t *testing.T) {
		store := NewFileStore(filepath.Join(t.TempDir(), "state.json"))

		saved := &LocalState{
			DeviceID:       "d1",
			IsPaired:       true,
			OrganisationID: "org1",
			DeviceName:     "Foyer",
			Plan:           json.RawMessage(`{"id":"plan1"}`),
		}
		require.NoError(t, store.Save(saved))

		loaded, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, saved.DeviceID, loaded.DeviceID)
		assert.Equal(t, saved.IsPaired, loaded.IsPaired)
		assert.Equal(t, saved.OrganisationID, loaded.OrganisationID)
		assert.Equal(t, saved.DeviceName, loaded.DeviceName)
		// Indented output means the raw plan bytes differ; compare as JSON.
		assert.JSONEq(t, string(saved.Plan), string(loaded.Plan))
	})

	t.Run("creates missing parent directories", func(t *testing.T) {
		store := NewFileStore(filepath.Join(t.TempDir(), "nested", "dir", "state.json"))
		require.NoError(t, store.Save(&LocalState{DeviceID: "d1"}))

		loaded, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, "d1", loaded.DeviceID)
	})

	t.Run("clear removes the file and is idempotent", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		store := NewFileStore(path)
		require.NoError(t, store.Save(&LocalState{DeviceID: "d1"}))

		require.NoError(t, store.Clear())
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err))

		require.NoError(t, store.Clear())
	})

	t.Run("corrupt file surfaces a parse error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

		store := NewFileStore(path)
		_, err := store.Load()
		assert.Error(t, err)
	})
}
