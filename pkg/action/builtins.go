package action

import (
	"context"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/tapestrylab/weft/pkg/ports"
)

// Built-in action names. Built-ins short-circuit before handler lookup
// and are never delegated to external handlers.
const (
	ActionSetState     = "setState"
	ActionPushState    = "pushState"
	ActionRemoveState  = "removeState"
	ActionPush         = "push"
	ActionPop          = "pop"
	ActionValidateForm = "validateForm"
)

// Navigation state lives at fixed paths in the state document. An empty
// string on the stack is the sentinel for "no screen was active".
const (
	pathNavStack      = "/navStack"
	pathCurrentScreen = "/currentScreen"
	pathFormDefault   = "/formValidation"
)

type setStateParams struct {
	StatePath string `mapstructure:"statePath"`
	Value     any    `mapstructure:"value"`
}

type pushStateParams struct {
	StatePath      string `mapstructure:"statePath"`
	Value          any    `mapstructure:"value"`
	ClearStatePath string `mapstructure:"clearStatePath"`
}

type removeStateParams struct {
	StatePath string `mapstructure:"statePath"`
	Index     int    `mapstructure:"index"`
}

type pushParams struct {
	Screen string `mapstructure:"screen"`
}

type validateFormParams struct {
	StatePath string `mapstructure:"statePath"`
}

func decodeParams(params map[string]any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(params)
}

// runBuiltin executes name if it is a built-in, reporting whether it was
// handled. Malformed built-in params are warned and dropped, never fatal.
func (d *Dispatcher) runBuiltin(ctx context.Context, name string, params map[string]any) bool {
	switch name {
	case ActionSetState:
		var p setStateParams
		if err := decodeParams(params, &p); err != nil || p.StatePath == "" {
			d.logger.Warn("setState with invalid params", "err", err)
			return true
		}
		d.state.Set(p.StatePath, p.Value)

	case ActionPushState:
		var p pushStateParams
		if err := decodeParams(params, &p); err != nil || p.StatePath == "" {
			d.logger.Warn("pushState with invalid params", "err", err)
			return true
		}
		arr, _ := d.state.Get(p.StatePath).([]any)
		arr = append(append([]any(nil), arr...), substituteIDs(p.Value))
		writes := map[string]any{p.StatePath: arr}
		if p.ClearStatePath != "" {
			writes[p.ClearStatePath] = ""
		}
		d.state.Update(writes)

	case ActionRemoveState:
		var p removeStateParams
		if err := decodeParams(params, &p); err != nil || p.StatePath == "" {
			d.logger.Warn("removeState with invalid params", "err", err)
			return true
		}
		arr, ok := d.state.Get(p.StatePath).([]any)
		if !ok || p.Index < 0 || p.Index >= len(arr) {
			d.logger.Warn("removeState index out of range", "path", p.StatePath, "index", p.Index)
			return true
		}
		next := append(append([]any(nil), arr[:p.Index]...), arr[p.Index+1:]...)
		d.state.Set(p.StatePath, next)

	case ActionPush:
		var p pushParams
		if err := decodeParams(params, &p); err != nil || p.Screen == "" {
			d.logger.Warn("push with invalid params", "err", err)
			return true
		}
		current, _ := d.state.Get(pathCurrentScreen).(string)
		stack, _ := d.state.Get(pathNavStack).([]any)
		stack = append(append([]any(nil), stack...), current)
		d.state.Update(map[string]any{
			pathNavStack:      stack,
			pathCurrentScreen: p.Screen,
		})

	case ActionPop:
		stack, _ := d.state.Get(pathNavStack).([]any)
		previous := ""
		if len(stack) > 0 {
			previous, _ = stack[len(stack)-1].(string)
			stack = append([]any(nil), stack[:len(stack)-1]...)
		}
		d.state.Update(map[string]any{
			pathNavStack:      stack,
			pathCurrentScreen: previous,
		})

	case ActionValidateForm:
		var p validateFormParams
		_ = decodeParams(params, &p)
		if p.StatePath == "" {
			p.StatePath = pathFormDefault
		}
		result := ports.FormResult{Valid: true}
		if d.forms != nil {
			result = d.forms(ctx, d.state)
		} else {
			d.logger.Warn("validateForm with no form validator injected")
		}
		errs := map[string]any{}
		for field, msg := range result.Errors {
			errs[field] = msg
		}
		d.state.Set(p.StatePath, map[string]any{
			"valid":  result.Valid,
			"errors": errs,
		})

	default:
		return false
	}
	return true
}

// substituteIDs replaces each occurrence of the literal token "$id" (or
// the object form {"$id": true}) with a freshly generated unique id.
// Two occurrences in the same value produce two distinct ids.
func substituteIDs(v any) any {
	switch c := v.(type) {
	case string:
		if c == "$id" {
			return uuid.NewString()
		}
		return c
	case map[string]any:
		if flag, ok := c["$id"].(bool); ok && flag && len(c) == 1 {
			return uuid.NewString()
		}
		out := make(map[string]any, len(c))
		for k, el := range c {
			out[k] = substituteIDs(el)
		}
		return out
	case []any:
		out := make([]any, len(c))
		for i, el := range c {
			out[i] = substituteIDs(el)
		}
		return out
	default:
		return v
	}
}
