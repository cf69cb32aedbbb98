package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/tapestrylab/weft/pkg/domain"
)

type nopStore struct{}

func (nopStore) Save(ctx context.Context, sessionID string, snap *domain.SessionSnapshot) error {
	return nil
}
func (nopStore) Load(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error) {
	return nil, nil
}
func (nopStore) Delete(ctx context.Context, sessionID string) error { return nil }
func (nopStore) List(ctx context.Context) ([]string, error)         { return nil, nil }

// Lock entries are reference counted; after all operations complete the
// map must be empty or idle sessions leak memory.
func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(nopStore{})
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		sid := fmt.Sprintf("session-%d", i)
		_ = mgr.Save(ctx, sid, &domain.SessionSnapshot{})
		_ = mgr.Delete(ctx, sid)
	}

	if remaining := len(mgr.locks); remaining != 0 {
		t.Errorf("lock leak: %d entries remaining after delete", remaining)
	}
}
