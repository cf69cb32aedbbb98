package cli

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapestrylab/weft/internal/logging"
	"github.com/tapestrylab/weft/pkg/domain"
)

func TestNewSessionManager_ComposesPersistenceMiddleware(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.Backend.URL = "https://gen.example.com"
	cfg.Sessions.Encryption.Key = strings.Repeat("ab", 32)
	cfg.Sessions.PII.Mask = true
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	mgr := NewSessionManager(cfg, logging.NewNop())

	ctx := context.Background()
	snap := &domain.SessionSnapshot{
		Spec: domain.NewSpec(),
		State: map[string]any{
			"password": "hunter2",
			"name":     "Ada",
		},
	}
	require.NoError(t, mgr.Save(ctx, "s1", snap))

	got, err := mgr.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "***", got.State["password"])
	assert.Equal(t, "Ada", got.State["name"])
}

func TestNewSessionManager_PlainMemoryRoundTrip(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	mgr := NewSessionManager(cfg, logging.NewNop())

	ctx := context.Background()
	snap := &domain.SessionSnapshot{
		Spec:  domain.NewSpec(),
		State: map[string]any{"password": "kept"},
	}
	require.NoError(t, mgr.Save(ctx, "s1", snap))

	got, err := mgr.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "kept", got.State["password"])
}
