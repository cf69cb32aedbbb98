// Package state implements the mutable, path-addressed application data
// document. It is the single source of truth consulted by the expression
// resolver and mutated by the action dispatcher; consumers observe it via
// explicit subscribe/notify rather than framework reactivity.
package state

import (
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"github.com/tapestrylab/weft/internal/jsondoc"
)

// Change records one write actually applied to the document.
type Change struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// Listener receives the list of changes applied by one Set or Update call.
type Listener func(changes []Change)

// Store owns a JSON-like document addressed by slash-delimited paths
// (e.g. /customers/0/name). All mutation goes through Set/Update, which
// notify subscribers with the changes that altered the document.
//
// Safe for concurrent use. Listeners are invoked outside the lock, in
// subscription order.
type Store struct {
	mu      sync.RWMutex
	doc     map[string]any
	subs    map[int]Listener
	nextSub int
	logger  *slog.Logger
}

// Option defines a functional option for configuring the Store.
type Option func(*Store)

// WithLogger configures a structured logger for write diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithInitial seeds the document. The map is deep-copied.
func WithInitial(doc map[string]any) Option {
	return func(s *Store) {
		if doc != nil {
			s.doc = jsondoc.DeepCopy(doc).(map[string]any)
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		doc:  make(map[string]any),
		subs: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the value at path, or nil if the path does not resolve.
func (s *Store) Get(path string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := jsondoc.Get(s.doc, path)
	if !ok {
		return nil
	}
	return v
}

// Set writes value at path, creating intermediate containers as needed.
// A write that leaves the existing value unchanged is elided and does not
// notify subscribers.
func (s *Store) Set(path string, value any) {
	s.apply(map[string]any{path: value})
}

// Update applies multiple path writes as one observable change. Writes are
// applied in path order so the batch is deterministic.
func (s *Store) Update(writes map[string]any) {
	s.apply(writes)
}

func (s *Store) apply(writes map[string]any) {
	if len(writes) == 0 {
		return
	}
	paths := make([]string, 0, len(writes))
	for p := range writes {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	s.mu.Lock()
	var changes []Change
	for _, p := range paths {
		v := writes[p]
		prev, had := jsondoc.Get(s.doc, p)
		if had && reflect.DeepEqual(prev, v) {
			continue
		}
		if jsondoc.Split(p) == nil {
			// A root write replaces the whole document. The root must stay
			// an object; anything else is dropped, not raised.
			m, ok := v.(map[string]any)
			if !ok {
				if s.logger != nil {
					s.logger.Warn("ignoring non-object write to document root", "path", p)
				}
				continue
			}
			s.doc = jsondoc.DeepCopy(m).(map[string]any)
			changes = append(changes, Change{Path: p, Value: v})
			continue
		}
		next := jsondoc.Set(s.doc, p, jsondoc.DeepCopy(v))
		s.doc = next.(map[string]any)
		changes = append(changes, Change{Path: p, Value: v})
	}
	listeners := make([]Listener, 0, len(s.subs))
	if len(changes) > 0 {
		ids := make([]int, 0, len(s.subs))
		for id := range s.subs {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			listeners = append(listeners, s.subs[id])
		}
	}
	s.mu.Unlock()

	if len(changes) == 0 {
		return
	}
	if s.logger != nil {
		s.logger.Debug("state updated", "changes", len(changes))
	}
	for _, l := range listeners {
		l(changes)
	}
}

// Delete removes the value at path. Missing paths are a no-op. Deleting
// the root clears the document.
func (s *Store) Delete(path string) {
	s.mu.Lock()
	if jsondoc.Split(path) == nil {
		if len(s.doc) == 0 {
			s.mu.Unlock()
			return
		}
		s.doc = map[string]any{}
	} else {
		if _, had := jsondoc.Get(s.doc, path); !had {
			s.mu.Unlock()
			return
		}
		s.doc = jsondoc.Delete(s.doc, path).(map[string]any)
	}
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	for _, l := range listeners {
		l([]Change{{Path: path, Value: nil}})
	}
}

func (s *Store) snapshotListeners() []Listener {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.subs[id])
	}
	return out
}

// Snapshot returns a deep copy of the whole document. Callers may read it
// freely without observing later writes.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return jsondoc.DeepCopy(s.doc).(map[string]any)
}

// Replace swaps the entire document, notifying subscribers with a single
// root change. Used when promoting an embedded spec state snapshot.
func (s *Store) Replace(doc map[string]any) {
	s.mu.Lock()
	if doc == nil {
		doc = map[string]any{}
	}
	s.doc = jsondoc.DeepCopy(doc).(map[string]any)
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	for _, l := range listeners {
		l([]Change{{Path: "/", Value: doc}})
	}
}

// Subscribe registers a listener and returns an unsubscribe function.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}
