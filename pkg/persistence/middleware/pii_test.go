package middleware_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tapestrylab/weft/pkg/domain"
	"github.com/tapestrylab/weft/pkg/persistence/middleware"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := NewMockStore()
	secure := middleware.NewPIIMiddleware([]string{"password", "ssn"})(underlying)

	ctx := context.Background()
	snap := &domain.SessionSnapshot{
		State: map[string]any{
			"username":      "jdoe",
			"user_password": "secret123",
			"details": map[string]any{
				"address":    "123 St",
				"ssn_number": "999-99-9999",
			},
			"safe_data": "public",
		},
	}

	require.NoError(t, secure.Save(ctx, "s1", snap))

	// The snapshot the engine holds is untouched.
	assert.Equal(t, "secret123", snap.State["user_password"])

	stored, err := underlying.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "jdoe", stored.State["username"])
	assert.Equal(t, "***", stored.State["user_password"])
	details := stored.State["details"].(map[string]any)
	assert.Equal(t, "***", details["ssn_number"])
	assert.Equal(t, "123 St", details["address"])
}
