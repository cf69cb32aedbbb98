package expr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tapestrylab/weft/pkg/expr"
	"github.com/tapestrylab/weft/pkg/registry"
	"github.com/tapestrylab/weft/pkg/state"
)

func ctxWith(doc map[string]any) expr.Context {
	return expr.Context{State: expr.SnapshotReader(doc)}
}

func TestResolve_Literal(t *testing.T) {
	ctx := ctxWith(nil)
	assert.Equal(t, "hello", expr.Resolve("hello", ctx))
	assert.Equal(t, float64(42), expr.Resolve(float64(42), ctx))
	assert.Nil(t, expr.Resolve(nil, ctx))
}

func TestResolve_NestedLiteralContainers(t *testing.T) {
	ctx := ctxWith(map[string]any{"color": "red"})

	raw := map[string]any{
		"style": map[string]any{"color": map[string]any{"$state": "/color"}},
		"tags":  []any{"a", map[string]any{"$state": "/color"}},
	}
	got := expr.Resolve(raw, ctx).(map[string]any)

	assert.Equal(t, "red", got["style"].(map[string]any)["color"])
	assert.Equal(t, []any{"a", "red"}, got["tags"])
}

func TestResolve_StateRef(t *testing.T) {
	ctx := ctxWith(map[string]any{"user": map[string]any{"name": "Ada"}})

	assert.Equal(t, "Ada", expr.Resolve(map[string]any{"$state": "/user/name"}, ctx))
	assert.Nil(t, expr.Resolve(map[string]any{"$state": "/user/missing"}, ctx))
}

func TestResolve_ItemAndIndex(t *testing.T) {
	ctx := ctxWith(nil)
	ctx.Scope = &expr.Scope{
		Item:     map[string]any{"name": "first"},
		Index:    3,
		BasePath: "/items",
	}

	assert.Equal(t, "first", expr.Resolve(map[string]any{"$item": "name"}, ctx))
	assert.Equal(t, map[string]any{"name": "first"}, expr.Resolve(map[string]any{"$item": true}, ctx))
	assert.Equal(t, 3, expr.Resolve(map[string]any{"$index": true}, ctx))
}

func TestResolve_ItemOutsideScopeYieldsNil(t *testing.T) {
	ctx := ctxWith(nil)

	assert.Nil(t, expr.Resolve(map[string]any{"$item": "name"}, ctx))
	assert.Nil(t, expr.Resolve(map[string]any{"$index": true}, ctx))
}

func TestResolve_Computed(t *testing.T) {
	funcs := registry.NewComputed()
	funcs.Register("upper", func(args []any) any {
		s, _ := args[0].(string)
		out := ""
		for _, r := range s {
			if r >= 'a' && r <= 'z' {
				r -= 32
			}
			out += string(r)
		}
		return out
	})
	ctx := ctxWith(map[string]any{"name": "ada"})
	ctx.Functions = funcs

	raw := map[string]any{"$computed": "upper", "args": []any{map[string]any{"$state": "/name"}}}
	assert.Equal(t, "ADA", expr.Resolve(raw, ctx))
}

func TestResolve_MissingComputedYieldsNil(t *testing.T) {
	ctx := ctxWith(nil)
	ctx.Functions = registry.NewComputed()

	assert.Nil(t, expr.Resolve(map[string]any{"$computed": "nope"}, ctx))
}

func TestResolve_Cond(t *testing.T) {
	ctx := ctxWith(map[string]any{"n": float64(5)})

	raw := map[string]any{
		"$cond": map[string]any{"gt": []any{map[string]any{"$state": "/n"}, float64(3)}},
		"$then": "big",
		"$else": "small",
	}
	assert.Equal(t, "big", expr.Resolve(raw, ctx))

	ctx = ctxWith(map[string]any{"n": float64(1)})
	assert.Equal(t, "small", expr.Resolve(raw, ctx))
}

func TestResolve_Logic(t *testing.T) {
	ctx := ctxWith(map[string]any{"a": true, "b": false})

	and := map[string]any{"$and": []any{map[string]any{"$state": "/a"}, map[string]any{"$state": "/b"}}}
	or := map[string]any{"$or": []any{map[string]any{"$state": "/a"}, map[string]any{"$state": "/b"}}}
	not := map[string]any{"not": map[string]any{"$state": "/b"}}

	assert.Equal(t, false, expr.Resolve(and, ctx))
	assert.Equal(t, true, expr.Resolve(or, ctx))
	assert.Equal(t, true, expr.Resolve(not, ctx))
}

func TestEvalCondition_ImplicitAnd(t *testing.T) {
	ctx := ctxWith(map[string]any{"a": true, "b": true})

	cond := []any{map[string]any{"$state": "/a"}, map[string]any{"$state": "/b"}}
	assert.True(t, expr.EvalCondition(cond, ctx))

	ctx = ctxWith(map[string]any{"a": true, "b": false})
	assert.False(t, expr.EvalCondition(cond, ctx))
}

func TestResolve_CompareForms(t *testing.T) {
	ctx := ctxWith(map[string]any{"n": float64(2), "s": "abc"})

	cases := map[string]bool{
		"eq":  false,
		"neq": true,
		"gt":  false,
		"gte": false,
		"lt":  true,
		"lte": true,
	}
	for op, want := range cases {
		raw := map[string]any{op: []any{map[string]any{"$state": "/n"}, float64(3)}}
		assert.Equal(t, want, expr.Resolve(raw, ctx), "op %s", op)
	}

	// Mixed numeric representations compare by value.
	raw := map[string]any{"eq": []any{float64(2), 2}}
	assert.Equal(t, true, expr.Resolve(raw, ctx))

	// String equality falls back to deep equality.
	raw = map[string]any{"eq": []any{map[string]any{"$state": "/s"}, "abc"}}
	assert.Equal(t, true, expr.Resolve(raw, ctx))
}

func TestResolve_BindReadsThrough(t *testing.T) {
	st := state.New()
	st.Set("/form/email", "a@b.c")
	ctx := expr.Context{State: st}

	assert.Equal(t, "a@b.c", expr.Resolve(map[string]any{"$bindState": "/form/email"}, ctx))
}

func TestResolveBindings(t *testing.T) {
	ctx := ctxWith(nil)
	ctx.Scope = &expr.Scope{Index: 2, BasePath: "/todos"}

	props := map[string]any{
		"value":   map[string]any{"$bindState": "/form/email"},
		"done":    map[string]any{"$bindItem": "done"},
		"label":   "static",
		"ignored": map[string]any{"$state": "/x"},
	}
	got := expr.ResolveBindings(props, ctx)

	assert.Equal(t, map[string]string{
		"value": "/form/email",
		"done":  "/todos/2/done",
	}, got)
}

func TestResolveBindings_ItemOutsideScopeSkipped(t *testing.T) {
	got := expr.ResolveBindings(map[string]any{"v": map[string]any{"$bindItem": "x"}}, ctxWith(nil))
	assert.Empty(t, got)
}

func TestTruthy(t *testing.T) {
	assert.False(t, expr.Truthy(nil))
	assert.False(t, expr.Truthy(""))
	assert.False(t, expr.Truthy(float64(0)))
	assert.False(t, expr.Truthy([]any{}))
	assert.True(t, expr.Truthy("x"))
	assert.True(t, expr.Truthy(float64(1)))
	assert.True(t, expr.Truthy(map[string]any{"k": 1}))
}
