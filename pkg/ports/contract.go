package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tapestrylab/weft/pkg/domain"
)

// RunSnapshotStoreContract verifies that a SnapshotStore implementation
// adheres to the interface contract. Adapter test suites call it against
// their concrete store.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	sessionID := "contract-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		spec := domain.NewSpec()
		spec.Root = "a"
		spec.Nodes["a"] = &domain.Node{Type: "text", Props: map[string]any{"content": "hi"}}
		snap := &domain.SessionSnapshot{
			Spec:      spec,
			State:     map[string]any{"user": map[string]any{"name": "Ada"}},
			UpdatedAt: time.Now().UTC(),
		}

		require.NoError(t, store.Save(ctx, sessionID, snap))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		require.NotNil(t, loaded.Spec)
		assert.Equal(t, "a", loaded.Spec.Root)
		assert.Equal(t, "text", loaded.Spec.Nodes["a"].Type)
		user, ok := loaded.State["user"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "Ada", user["name"])
	})

	t.Run("Load returns a copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.State["user"] = "clobbered"

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.IsType(t, map[string]any{}, again.State["user"], "mutating a loaded snapshot must not leak into the store")
	})

	t.Run("Load non-existent", func(t *testing.T) {
		_, err := store.Load(ctx, "missing-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sessionID, &domain.SessionSnapshot{UpdatedAt: time.Now()}))
		require.NoError(t, store.Delete(ctx, sessionID))

		_, err := store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, &domain.SessionSnapshot{UpdatedAt: time.Now()})
		_ = store.Save(ctx, id2, &domain.SessionSnapshot{UpdatedAt: time.Now()})
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
