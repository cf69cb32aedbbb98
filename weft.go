// Package weft is the high-level entry point for the Weft engine: it
// wires the stream ingester, the state store and the action dispatcher
// into a single embeddable object that turns prompts into live,
// scriptable UI documents.
package weft

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tapestrylab/weft/internal/logging"
	"github.com/tapestrylab/weft/pkg/action"
	"github.com/tapestrylab/weft/pkg/domain"
	"github.com/tapestrylab/weft/pkg/expr"
	"github.com/tapestrylab/weft/pkg/ingest"
	"github.com/tapestrylab/weft/pkg/observability"
	"github.com/tapestrylab/weft/pkg/ports"
	"github.com/tapestrylab/weft/pkg/registry"
	"github.com/tapestrylab/weft/pkg/state"
)

// Engine combines document generation, application state and action
// dispatch for one UI session. It is safe for concurrent use.
type Engine struct {
	gen        ports.Generator
	ingester   *ingest.Ingester
	state      *state.Store
	dispatcher *action.Dispatcher
	funcs      *registry.Computed
	handlers   *registry.Handlers
	forms      ports.FormValidator
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	metrics    *observability.Metrics
	maxRetries int
	hasRetries bool

	mu      sync.RWMutex
	spec    *domain.Spec
	unwatch func()
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets the structured logger shared by all components.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMaxRetries sets the generation repair budget.
func WithMaxRetries(n int) Option {
	return func(e *Engine) {
		e.maxRetries = n
		e.hasRetries = true
	}
}

// WithFunctions registers the computed functions available to expressions.
func WithFunctions(funcs *registry.Computed) Option {
	return func(e *Engine) { e.funcs = funcs }
}

// WithHandlers registers the external action handlers.
func WithHandlers(handlers *registry.Handlers) Option {
	return func(e *Engine) { e.handlers = handlers }
}

// WithFormValidator injects the aggregator behind the validateForm action.
func WithFormValidator(fv ports.FormValidator) Option {
	return func(e *Engine) { e.forms = fv }
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) { e.hooks = hooks }
}

// WithMetrics attaches Prometheus collectors to the ingester and the
// dispatcher.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine. gen may be nil for script-only engines that
// load documents through Restore instead of generating them.
func New(gen ports.Generator, opts ...Option) *Engine {
	e := &Engine{
		gen:      gen,
		spec:     domain.NewSpec(),
		funcs:    registry.NewComputed(),
		handlers: registry.NewHandlers(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.state = state.New(state.WithLogger(e.logger))

	dispatchHooks := e.hooks
	if e.metrics != nil {
		dispatchHooks = mergeActionHooks(dispatchHooks, e.metrics.ActionHooks())
	}
	e.dispatcher = action.New(e.state,
		action.WithLogger(e.logger),
		action.WithFunctions(e.funcs),
		action.WithHandlers(e.handlers),
		action.WithFormValidator(e.forms),
		action.WithLifecycleHooks(dispatchHooks),
	)

	if gen != nil {
		ingestOpts := []ingest.Option{
			ingest.WithLogger(e.logger),
			ingest.WithLifecycleHooks(e.hooks),
		}
		if e.hasRetries {
			ingestOpts = append(ingestOpts, ingest.WithMaxRetries(e.maxRetries))
		}
		if e.metrics != nil {
			ingestOpts = append(ingestOpts, ingest.WithMetrics(e.metrics))
		}
		e.ingester = ingest.New(gen, ingestOpts...)
	}

	e.unwatch = e.state.Subscribe(e.onStateChanged)
	return e
}

// Close releases the engine's state subscription.
func (e *Engine) Close() {
	if e.unwatch != nil {
		e.unwatch()
		e.unwatch = nil
	}
}

// State returns the engine's state store.
func (e *Engine) State() *state.Store {
	return e.state
}

// Spec returns the current document. The document is copy-on-write;
// callers must not mutate nodes in place.
func (e *Engine) Spec() *domain.Spec {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.spec
}

// Generate runs generation rounds for prompt against the current
// document and installs the result. The returned ingest.Result carries
// the document even when generation ends imperfectly.
func (e *Engine) Generate(ctx context.Context, prompt string, genContext map[string]any) (*ingest.Result, error) {
	if e.ingester == nil {
		return nil, fmt.Errorf("engine has no generator configured")
	}

	e.mu.RLock()
	current := e.spec
	e.mu.RUnlock()

	res, err := e.ingester.Run(ctx, ports.GenerateRequest{
		Prompt:      prompt,
		Context:     genContext,
		CurrentSpec: current,
	})
	if res != nil && res.Spec != nil {
		e.install(res.Spec)
	}
	return res, err
}

// install swaps in a new document and seeds state the model embedded.
func (e *Engine) install(spec *domain.Spec) {
	e.mu.Lock()
	e.spec = spec
	e.mu.Unlock()
	e.seedState(spec)
}

// seedState merges the document's embedded state into the store without
// clobbering keys the user has already touched.
func (e *Engine) seedState(spec *domain.Spec) {
	if len(spec.State) == 0 {
		return
	}
	writes := make(map[string]any)
	for key, value := range spec.State {
		path := "/" + key
		if e.state.Get(path) == nil {
			writes[path] = value
		}
	}
	if len(writes) > 0 {
		e.state.Update(writes)
	}
}

// Snapshot captures the session for persistence.
func (e *Engine) Snapshot() *domain.SessionSnapshot {
	e.mu.RLock()
	spec := e.spec
	e.mu.RUnlock()
	return &domain.SessionSnapshot{
		Spec:      spec,
		State:     e.state.Snapshot(),
		UpdatedAt: time.Now().UTC(),
	}
}

// Restore replaces the session with a persisted snapshot.
func (e *Engine) Restore(snap *domain.SessionSnapshot) {
	spec := snap.Spec
	if spec == nil {
		spec = domain.NewSpec()
	}
	e.mu.Lock()
	e.spec = spec
	e.mu.Unlock()
	e.state.Replace(snap.State)
}

// Execute runs one action binding.
func (e *Engine) Execute(ctx context.Context, b domain.ActionBinding) error {
	return e.dispatcher.Execute(ctx, b)
}

// Emit fires the named event on a node, running its bound actions in
// order. Unknown nodes or unbound events are no-ops.
func (e *Engine) Emit(ctx context.Context, nodeID, event string) error {
	return e.emit(ctx, nodeID, event, nil)
}

// EmitItem fires an event from one iteration of a repeated node, so item
// scoped expressions in the bindings resolve against that element.
func (e *Engine) EmitItem(ctx context.Context, nodeID, event string, index int) error {
	node := e.Spec().Node(nodeID)
	if node == nil || node.Repeat == nil {
		return e.emit(ctx, nodeID, event, nil)
	}
	scope := &expr.Scope{
		Index:    index,
		BasePath: node.Repeat.StatePath,
		Key:      node.Repeat.Key,
	}
	scope.Item = e.state.Get(scope.ItemPath())
	return e.emit(ctx, nodeID, event, scope)
}

func (e *Engine) emit(ctx context.Context, nodeID, event string, scope *expr.Scope) error {
	node := e.Spec().Node(nodeID)
	if node == nil {
		e.logger.Warn("event emitted on unknown node", "node", nodeID, "event", event)
		return nil
	}
	bindings, ok := node.On[event]
	if !ok || len(bindings) == 0 {
		return nil
	}
	for _, b := range bindings {
		if err := e.dispatcher.ExecuteInScope(ctx, b, scope); err != nil {
			return err
		}
	}
	return nil
}

// PendingConfirmations lists actions suspended awaiting the host.
func (e *Engine) PendingConfirmations() []action.PendingConfirmation {
	return e.dispatcher.Pending()
}

// Confirm resumes the suspended action for id.
func (e *Engine) Confirm(id string) error {
	return e.dispatcher.Confirm(id)
}

// Cancel rejects the suspended action for id.
func (e *Engine) Cancel(id string) error {
	return e.dispatcher.Cancel(id)
}

// Loading returns the names of actions currently executing.
func (e *Engine) Loading() []string {
	return e.dispatcher.Loading()
}

// onStateChanged fires watch bindings on nodes observing a changed path.
// Bindings run asynchronously; cycles between watches are not detected
// and are the document author's responsibility.
func (e *Engine) onStateChanged(changes []state.Change) {
	spec := e.Spec()
	for id, node := range spec.Nodes {
		for watchPath, bindings := range node.Watch {
			if !anyOverlap(changes, watchPath) {
				continue
			}
			nodeID := id
			toRun := bindings
			watchPath := watchPath
			go func() {
				if err := e.dispatcher.ExecuteAll(context.Background(), toRun); err != nil {
					e.logger.Warn("watch binding failed", "node", nodeID, "path", watchPath, "err", err)
				}
			}()
		}
	}
}

// anyOverlap reports whether any change touches the watched path: equal
// paths, a change under the watched subtree, or a write replacing one of
// its ancestors.
func anyOverlap(changes []state.Change, watchPath string) bool {
	for _, c := range changes {
		if pathsOverlap(c.Path, watchPath) {
			return true
		}
	}
	return false
}

func pathsOverlap(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	return len(b) > len(a) && b[:len(a)] == a && b[len(a)] == '/'
}

func mergeActionHooks(base, extra domain.LifecycleHooks) domain.LifecycleHooks {
	merged := base
	merged.OnActionStart = chainActionHook(base.OnActionStart, extra.OnActionStart)
	merged.OnActionEnd = chainActionHook(base.OnActionEnd, extra.OnActionEnd)
	return merged
}

func chainActionHook(a, b func(context.Context, *domain.ActionEvent)) func(context.Context, *domain.ActionEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, ev *domain.ActionEvent) {
		a(ctx, ev)
		b(ctx, ev)
	}
}
