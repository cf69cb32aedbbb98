// Package registry holds the two injection points the engine consults at
// runtime: named pure functions usable from $computed expressions, and
// external action handlers consulted by the dispatcher for non-built-in
// actions. Both are safe for concurrent use.
package registry

import (
	"context"
	"sync"

	"github.com/tapestrylab/weft/pkg/state"
)

// ComputedFunc is a named pure function callable from expressions.
// It must not mutate state; it receives already-resolved argument values.
type ComputedFunc func(args []any) any

// Computed manages the available expression functions.
type Computed struct {
	mu    sync.RWMutex
	funcs map[string]ComputedFunc
}

// NewComputed creates a new empty function registry.
func NewComputed() *Computed {
	return &Computed{funcs: make(map[string]ComputedFunc)}
}

// Register adds a function to the registry.
// If a function with the same name exists, it is overwritten.
func (c *Computed) Register(name string, fn ComputedFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.funcs[name] = fn
}

// Lookup returns the function for name, if registered.
func (c *Computed) Lookup(name string) (ComputedFunc, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.funcs[name]
	return fn, ok
}

// Invocation carries everything a handler needs to execute one action:
// its resolved parameters, the shared state store, and a re-entrant
// capability to trigger another action by name (chaining). A chained
// action may itself require confirmation.
type Invocation struct {
	Action  string
	Params  map[string]any
	State   *state.Store
	Execute func(ctx context.Context, action string) error
}

// HandlerFunc implements a named action.
type HandlerFunc func(ctx context.Context, inv Invocation) error

// Handlers manages the available external action implementations.
type Handlers struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewHandlers creates a new empty handler registry.
func NewHandlers() *Handlers {
	return &Handlers{handlers: make(map[string]HandlerFunc)}
}

// Register adds a handler to the registry.
// If a handler with the same name exists, it is overwritten.
func (h *Handlers) Register(name string, fn HandlerFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[name] = fn
}

// Lookup returns the handler for name, if registered.
func (h *Handlers) Lookup(name string) (HandlerFunc, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn, ok := h.handlers[name]
	return fn, ok
}
