// Package action resolves and executes the named operations a generated
// document binds to events. Built-ins mutate state directly; everything
// else routes to an injected handler registry. Per binding, execution is a
// small state machine:
//
//	Idle -> (ConfirmPending -> Confirmed|Cancelled) -> Executing -> Done|Error
//
// There are no retries at this layer; an action completes once or fails once.
package action

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tapestrylab/weft/internal/logging"
	"github.com/tapestrylab/weft/pkg/domain"
	"github.com/tapestrylab/weft/pkg/expr"
	"github.com/tapestrylab/weft/pkg/ports"
	"github.com/tapestrylab/weft/pkg/registry"
	"github.com/tapestrylab/weft/pkg/state"
)

// Dispatcher executes action bindings against a shared state store.
// Safe for concurrent use; relative ordering between two concurrently
// executed actions is only guaranteed when one is awaited before the
// other starts.
type Dispatcher struct {
	state    *state.Store
	funcs    *registry.Computed
	handlers *registry.Handlers
	forms    ports.FormValidator
	logger   *slog.Logger
	hooks    domain.LifecycleHooks

	mu      sync.Mutex
	pending map[string]*pendingConfirm
	loading map[string]int
}

type pendingConfirm struct {
	id      string
	action  string
	confirm *domain.ActionConfirm
	done    chan bool
}

// PendingConfirmation describes one action suspended awaiting the host.
type PendingConfirmation struct {
	ID      string                `json:"id"`
	Action  string                `json:"action"`
	Confirm *domain.ActionConfirm `json:"confirm,omitempty"`
}

// Option defines a functional option for configuring the Dispatcher.
type Option func(*Dispatcher)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithFunctions sets the computed-function registry used to resolve params.
func WithFunctions(funcs *registry.Computed) Option {
	return func(d *Dispatcher) { d.funcs = funcs }
}

// WithHandlers sets the external action handler registry.
func WithHandlers(handlers *registry.Handlers) Option {
	return func(d *Dispatcher) { d.handlers = handlers }
}

// WithFormValidator injects the aggregator behind the validateForm built-in.
func WithFormValidator(fv ports.FormValidator) Option {
	return func(d *Dispatcher) { d.forms = fv }
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(d *Dispatcher) { d.hooks = hooks }
}

// New creates a Dispatcher bound to a state store.
func New(st *state.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		state:    st,
		funcs:    registry.NewComputed(),
		handlers: registry.NewHandlers(),
		logger:   logging.NewNop(),
		pending:  make(map[string]*pendingConfirm),
		loading:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the store the dispatcher mutates.
func (d *Dispatcher) State() *state.Store {
	return d.state
}

// Execute runs one binding to completion. If the binding requires
// confirmation, it suspends until Confirm or Cancel is called for the
// posted pending record; cancellation returns domain.ErrActionCancelled.
func (d *Dispatcher) Execute(ctx context.Context, b domain.ActionBinding) error {
	return d.ExecuteInScope(ctx, b, nil)
}

// ExecuteAll runs bindings sequentially, stopping at the first error so a
// cancelled confirmation aborts the remaining steps of a chain.
func (d *Dispatcher) ExecuteAll(ctx context.Context, bindings domain.BindingList) error {
	for _, b := range bindings {
		if err := d.ExecuteInScope(ctx, b, nil); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteInScope runs a binding with an optional repeat scope, used when
// the triggering event fired from one iteration of a repeated node.
func (d *Dispatcher) ExecuteInScope(ctx context.Context, b domain.ActionBinding, scope *expr.Scope) error {
	if b.Confirm != nil {
		ok, err := d.awaitConfirmation(ctx, b)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrActionCancelled
		}
	}

	// Params resolve against a live snapshot captured now, not at
	// call-site time: prior steps in a chain may have mutated state.
	params := d.resolveParams(b.Params, scope)

	if d.runBuiltin(ctx, b.Action, params) {
		return nil
	}

	handler, ok := d.handlers.Lookup(b.Action)
	if !ok {
		// Generation output may request unimplemented actions; warn and
		// treat as completed.
		d.logger.Warn("no handler registered for action", "action", b.Action)
		return nil
	}

	d.trackLoading(b.Action, +1)
	d.emitAction(ctx, domain.EventActionStart, b.Action, false)
	var err error
	defer func() {
		d.trackLoading(b.Action, -1)
		d.emitAction(ctx, domain.EventActionEnd, b.Action, err != nil)
	}()

	inv := registry.Invocation{
		Action: b.Action,
		Params: params,
		State:  d.state,
		Execute: func(ctx context.Context, name string) error {
			return d.ExecuteInScope(ctx, domain.ActionBinding{Action: name}, scope)
		},
	}
	err = handler(ctx, inv)
	return err
}

func (d *Dispatcher) resolveParams(raw map[string]any, scope *expr.Scope) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	ectx := expr.Context{
		State:     d.state,
		Scope:     scope,
		Functions: d.funcs,
		Logger:    d.logger,
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = expr.Resolve(v, ectx)
	}
	return out
}

// awaitConfirmation posts a pending record and blocks until the host
// resolves it or ctx is cancelled.
func (d *Dispatcher) awaitConfirmation(ctx context.Context, b domain.ActionBinding) (bool, error) {
	p := &pendingConfirm{
		id:      uuid.NewString(),
		action:  b.Action,
		confirm: b.Confirm,
		done:    make(chan bool, 1),
	}
	d.mu.Lock()
	d.pending[p.id] = p
	d.mu.Unlock()

	if d.hooks.OnConfirmPosted != nil {
		d.hooks.OnConfirmPosted(ctx, &domain.ConfirmEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventConfirmPosted},
			ID:        p.id,
			Action:    b.Action,
			Confirm:   b.Confirm,
		})
	}
	d.logger.Debug("action suspended awaiting confirmation", "action", b.Action, "confirmation_id", p.id)

	select {
	case ok := <-p.done:
		return ok, nil
	case <-ctx.Done():
		d.mu.Lock()
		delete(d.pending, p.id)
		d.mu.Unlock()
		return false, ctx.Err()
	}
}

// Pending lists the confirmations currently awaiting resolution.
func (d *Dispatcher) Pending() []PendingConfirmation {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]PendingConfirmation, 0, len(d.pending))
	for _, p := range d.pending {
		out = append(out, PendingConfirmation{ID: p.id, Action: p.action, Confirm: p.confirm})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Confirm resumes the suspended action for id.
func (d *Dispatcher) Confirm(id string) error {
	return d.resolveConfirmation(id, true)
}

// Cancel rejects the suspended action for id; the waiting Execute call
// returns domain.ErrActionCancelled.
func (d *Dispatcher) Cancel(id string) error {
	return d.resolveConfirmation(id, false)
}

func (d *Dispatcher) resolveConfirmation(id string, ok bool) error {
	d.mu.Lock()
	p, found := d.pending[id]
	if found {
		delete(d.pending, id)
	}
	d.mu.Unlock()
	if !found {
		return domain.ErrConfirmationNotFound
	}
	p.done <- ok
	return nil
}

// Loading returns the names of non-built-in actions currently executing,
// used by consumers to disable UI affordances.
func (d *Dispatcher) Loading() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.loading))
	for name := range d.loading {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// IsLoading reports whether the named action is currently executing.
func (d *Dispatcher) IsLoading(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loading[name] > 0
}

func (d *Dispatcher) trackLoading(name string, delta int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loading[name] += delta
	if d.loading[name] <= 0 {
		delete(d.loading, name)
	}
}

func (d *Dispatcher) emitAction(ctx context.Context, et domain.EventType, name string, isErr bool) {
	var hook func(context.Context, *domain.ActionEvent)
	switch et {
	case domain.EventActionStart:
		hook = d.hooks.OnActionStart
	case domain.EventActionEnd:
		hook = d.hooks.OnActionEnd
	}
	if hook == nil {
		return
	}
	hook(ctx, &domain.ActionEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: et},
		Action:    name,
		IsError:   isErr,
	})
}
