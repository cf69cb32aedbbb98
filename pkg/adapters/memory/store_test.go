package memory_test

import (
	"testing"

	"github.com/tapestrylab/weft/pkg/adapters/memory"
	"github.com/tapestrylab/weft/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunSnapshotStoreContract(t, memory.NewStore())
}
