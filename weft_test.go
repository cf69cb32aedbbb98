package weft_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	weft "github.com/tapestrylab/weft"
	"github.com/tapestrylab/weft/pkg/ports"
	"github.com/tapestrylab/weft/pkg/registry"
)

func staticGenerator(stream string) ports.Generator {
	return ports.GeneratorFunc(func(context.Context, ports.GenerateRequest) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(stream)), nil
	})
}

const todoStream = `{"op":"replace","path":"/root","value":"screen"}
{"op":"add","path":"/nodes/screen","value":{"type":"column","children":["input","addBtn"]}}
{"op":"add","path":"/nodes/input","value":{"type":"textInput","props":{"value":{"$bindState":"/draft"}}}}
{"op":"add","path":"/nodes/addBtn","value":{"type":"button","props":{"label":"Add"},"on":{"press":{"action":"pushState","params":{"statePath":"/todos","value":{"id":"$id","label":{"$state":"/draft"}},"clearStatePath":"/draft"}}}}}
{"op":"add","path":"/state/draft","value":""}
`

func TestEngine_GenerateAndEmit(t *testing.T) {
	e := weft.New(staticGenerator(todoStream))
	defer e.Close()
	ctx := context.Background()

	res, err := e.Generate(ctx, "build a todo app", nil)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "screen", e.Spec().Root)

	e.State().Set("/draft", "buy milk")
	require.NoError(t, e.Emit(ctx, "addBtn", "press"))

	todos, ok := e.State().Get("/todos").([]any)
	require.True(t, ok)
	require.Len(t, todos, 1)
	entry := todos[0].(map[string]any)
	assert.Equal(t, "buy milk", entry["label"])
	assert.Equal(t, "", e.State().Get("/draft"))
}

func TestEngine_EmitUnknownNodeOrEventIsNoOp(t *testing.T) {
	e := weft.New(staticGenerator(todoStream))
	defer e.Close()
	ctx := context.Background()

	_, err := e.Generate(ctx, "p", nil)
	require.NoError(t, err)

	assert.NoError(t, e.Emit(ctx, "ghost", "press"))
	assert.NoError(t, e.Emit(ctx, "input", "press"))
}

func TestEngine_SeedStateDoesNotClobber(t *testing.T) {
	e := weft.New(staticGenerator(todoStream))
	defer e.Close()
	ctx := context.Background()

	// The user typed before generation finished; the model's seed for
	// /draft must not erase it.
	e.State().Set("/draft", "already typing")
	_, err := e.Generate(ctx, "p", nil)
	require.NoError(t, err)

	assert.Equal(t, "already typing", e.State().Get("/draft"))
}

func TestEngine_EmitItemScope(t *testing.T) {
	stream := `{"op":"replace","path":"/root","value":"list"}
{"op":"add","path":"/nodes/list","value":{"type":"column","repeat":{"statePath":"/todos"},"on":{"remove":{"action":"record","params":{"label":{"$item":"label"}}}}}}
`
	handlers := registry.NewHandlers()
	var got map[string]any
	handlers.Register("record", func(ctx context.Context, inv registry.Invocation) error {
		got = inv.Params
		return nil
	})
	e := weft.New(staticGenerator(stream), weft.WithHandlers(handlers))
	defer e.Close()
	ctx := context.Background()

	_, err := e.Generate(ctx, "p", nil)
	require.NoError(t, err)

	e.State().Set("/todos", []any{
		map[string]any{"label": "first"},
		map[string]any{"label": "second"},
	})

	require.NoError(t, e.EmitItem(ctx, "list", "remove", 1))
	require.NotNil(t, got)
	assert.Equal(t, "second", got["label"])
}

func TestEngine_WatchBindingsFire(t *testing.T) {
	stream := `{"op":"replace","path":"/root","value":"cart"}
{"op":"add","path":"/nodes/cart","value":{"type":"column","watch":{"/cart/items":{"action":"recount"}}}}
`
	handlers := registry.NewHandlers()
	fired := make(chan struct{}, 4)
	handlers.Register("recount", func(ctx context.Context, inv registry.Invocation) error {
		fired <- struct{}{}
		return nil
	})
	e := weft.New(staticGenerator(stream), weft.WithHandlers(handlers))
	defer e.Close()

	_, err := e.Generate(context.Background(), "p", nil)
	require.NoError(t, err)

	// A write below the watched path triggers the binding.
	e.State().Set("/cart/items/0", map[string]any{"sku": "a"})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("watch binding did not fire")
	}

	// An unrelated write does not.
	e.State().Set("/profile/name", "Ada")
	select {
	case <-fired:
		t.Fatal("watch binding fired for unrelated path")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEngine_ConfirmationRoundTrip(t *testing.T) {
	stream := `{"op":"replace","path":"/root","value":"btn"}
{"op":"add","path":"/nodes/btn","value":{"type":"button","on":{"press":{"action":"wipe","confirm":{"message":"Really?"}}}}}
`
	handlers := registry.NewHandlers()
	ran := make(chan struct{}, 1)
	handlers.Register("wipe", func(ctx context.Context, inv registry.Invocation) error {
		ran <- struct{}{}
		return nil
	})
	e := weft.New(staticGenerator(stream), weft.WithHandlers(handlers))
	defer e.Close()
	ctx := context.Background()

	_, err := e.Generate(ctx, "p", nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- e.Emit(ctx, "btn", "press") }()

	var pending []string
	require.Eventually(t, func() bool {
		pcs := e.PendingConfirmations()
		pending = pending[:0]
		for _, pc := range pcs {
			pending = append(pending, pc.ID)
		}
		return len(pending) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, e.Confirm(pending[0]))
	require.NoError(t, <-done)
	<-ran
}

func TestEngine_SnapshotRestore(t *testing.T) {
	e := weft.New(staticGenerator(todoStream))
	defer e.Close()
	ctx := context.Background()

	_, err := e.Generate(ctx, "p", nil)
	require.NoError(t, err)
	e.State().Set("/todos", []any{map[string]any{"label": "persisted"}})

	snap := e.Snapshot()

	restored := weft.New(nil)
	defer restored.Close()
	restored.Restore(snap)

	assert.Equal(t, "screen", restored.Spec().Root)
	todos := restored.State().Get("/todos").([]any)
	assert.Equal(t, "persisted", todos[0].(map[string]any)["label"])

	// A script-only engine cannot generate.
	_, err = restored.Generate(ctx, "p", nil)
	assert.Error(t, err)
}
