package ports

import (
	"context"

	"github.com/tapestrylab/weft/pkg/state"
)

// FormResult is what the validateForm built-in writes back to state.
type FormResult struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors,omitempty"`
}

// FormValidator aggregates the registered field predicates over the
// current form state. Implementations are injected by the host; the
// engine only routes the validateForm built-in to it.
type FormValidator func(ctx context.Context, st *state.Store) FormResult
