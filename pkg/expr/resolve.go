package expr

import (
	"encoding/json"
	"log/slog"
	"reflect"
	"strconv"

	"github.com/tapestrylab/weft/internal/jsondoc"
	"github.com/tapestrylab/weft/pkg/registry"
)

// StateReader is the read side of the state store. A nil value resolves
// every state reference to nil.
type StateReader interface {
	Get(path string) any
}

// Scope is the repeat scope established while rendering one iteration of
// a repeated node: the current item, its index, and the absolute state
// path of the repeated array.
type Scope struct {
	Item     any
	Index    int
	BasePath string
	Key      string
}

// ItemPath returns the absolute state path of the current item.
func (s *Scope) ItemPath() string {
	return s.BasePath + "/" + strconv.Itoa(s.Index)
}

// Context carries everything resolution depends on. Resolution must be
// re-run whenever State or Scope changes; results are never memoized
// across snapshots because generated expressions may reference any path.
type Context struct {
	State     StateReader
	Scope     *Scope
	Functions *registry.Computed
	Logger    *slog.Logger
}

func (c Context) warn(msg string, args ...any) {
	if c.Logger != nil {
		c.Logger.Warn(msg, args...)
	}
}

// snapshotReader adapts a plain document snapshot to StateReader.
type snapshotReader struct {
	doc map[string]any
}

func (r snapshotReader) Get(path string) any {
	v, ok := jsondoc.Get(r.doc, path)
	if !ok {
		return nil
	}
	return v
}

// SnapshotReader wraps an immutable document snapshot as a StateReader.
func SnapshotReader(doc map[string]any) StateReader {
	return snapshotReader{doc: doc}
}

// Resolve evaluates a raw expression value against the context.
// It is a pure recursive tree walk; unresolvable input yields nil.
func Resolve(raw any, ctx Context) any {
	return resolve(Parse(raw), ctx)
}

func resolve(e Expr, ctx Context) any {
	switch v := e.(type) {
	case Literal:
		return resolveLiteral(v.Value, ctx)
	case StateRef:
		if ctx.State == nil {
			return nil
		}
		return ctx.State.Get(v.Path)
	case ItemRef:
		// Outside a repeat scope this yields nil, not an error. Documented
		// behavior inherited from the wire contract; authors get a warning.
		if ctx.Scope == nil {
			ctx.warn("$item used outside repeat scope")
			return nil
		}
		if v.Field == "" {
			return ctx.Scope.Item
		}
		val, ok := jsondoc.Get(ctx.Scope.Item, "/"+v.Field)
		if !ok {
			return nil
		}
		return val
	case IndexRef:
		if ctx.Scope == nil {
			ctx.warn("$index used outside repeat scope")
			return nil
		}
		return ctx.Scope.Index
	case Computed:
		if ctx.Functions == nil {
			ctx.warn("$computed with no function registry", "name", v.Name)
			return nil
		}
		fn, ok := ctx.Functions.Lookup(v.Name)
		if !ok {
			ctx.warn("unknown computed function", "name", v.Name)
			return nil
		}
		args := make([]any, len(v.Args))
		for i, a := range v.Args {
			args[i] = resolve(a, ctx)
		}
		return fn(args)
	case Cond:
		if Truthy(resolve(v.If, ctx)) {
			return resolve(v.Then, ctx)
		}
		return resolve(v.Else, ctx)
	case And:
		for _, c := range v.Conds {
			if !Truthy(resolve(c, ctx)) {
				return false
			}
		}
		return true
	case Or:
		for _, c := range v.Conds {
			if Truthy(resolve(c, ctx)) {
				return true
			}
		}
		return false
	case Not:
		return !Truthy(resolve(v.Cond, ctx))
	case Compare:
		return compare(v.Op, resolve(v.Left, ctx), resolve(v.Right, ctx))
	case BindState:
		if ctx.State == nil {
			return nil
		}
		return ctx.State.Get(v.Path)
	case BindItem:
		return resolve(ItemRef{Field: v.Field}, ctx)
	}
	return nil
}

// resolveLiteral deep-resolves container literals, since nested elements
// may themselves be tagged expressions.
func resolveLiteral(v any, ctx Context) any {
	switch c := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(c))
		for k, el := range c {
			out[k] = Resolve(el, ctx)
		}
		return out
	case []any:
		out := make([]any, len(c))
		for i, el := range c {
			out[i] = Resolve(el, ctx)
		}
		return out
	default:
		return v
	}
}

// EvalCondition evaluates a raw value in condition position (arrays are
// implicit And) and reports its truthiness.
func EvalCondition(raw any, ctx Context) bool {
	return Truthy(resolve(ParseCondition(raw), ctx))
}

// Truthy applies the comparison-operator truthiness rules: nil and zero
// values are false, non-empty strings and containers are true.
func Truthy(v any) bool {
	switch c := v.(type) {
	case nil:
		return false
	case bool:
		return c
	case string:
		return c != ""
	case map[string]any:
		return len(c) > 0
	case []any:
		return len(c) > 0
	default:
		if f, ok := toFloat(v); ok {
			return f != 0
		}
		return true
	}
}

func compare(op CompareOp, left, right any) bool {
	lf, lok := toFloat(left)
	rf, rok := toFloat(right)
	if lok && rok {
		switch op {
		case OpEq:
			return lf == rf
		case OpNeq:
			return lf != rf
		case OpGt:
			return lf > rf
		case OpGte:
			return lf >= rf
		case OpLt:
			return lf < rf
		case OpLte:
			return lf <= rf
		}
	}
	switch op {
	case OpEq:
		return reflect.DeepEqual(left, right)
	case OpNeq:
		return !reflect.DeepEqual(left, right)
	}
	// Ordered comparison on non-numeric values: compare strings when both
	// sides are strings, otherwise false.
	ls, lsok := left.(string)
	rs, rsok := right.(string)
	if lsok && rsok {
		switch op {
		case OpGt:
			return ls > rs
		case OpGte:
			return ls >= rs
		case OpLt:
			return ls < rs
		case OpLte:
			return ls <= rs
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
