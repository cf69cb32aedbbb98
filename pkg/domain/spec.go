package domain

// Spec is the generated UI document: a root node id, an arena of nodes
// keyed by id, and an optional embedded state snapshot seeded by the model.
//
// Parent/child relationships are forward-only (children ids); parents are
// resolved by traversal from Root when needed. Mid-stream the document may
// transiently reference children that do not exist yet; completeness is
// checked by the validate package once the stream finishes.
type Spec struct {
	Root  string           `json:"root,omitempty"`
	Nodes map[string]*Node `json:"nodes"`
	State map[string]any   `json:"state,omitempty"`
}

// NewSpec creates an empty document, ready to receive patches.
func NewSpec() *Spec {
	return &Spec{
		Nodes: make(map[string]*Node),
	}
}

// Node returns the node for the given id, or nil if absent.
func (s *Spec) Node(id string) *Node {
	if s == nil || s.Nodes == nil {
		return nil
	}
	return s.Nodes[id]
}

// Clone returns a copy of the document sharing node pointers.
// The node map and state map are copied, so adding or removing entries on
// the clone never affects the original. Individual nodes are shared and
// must be replaced, not mutated (see Node.Clone).
func (s *Spec) Clone() *Spec {
	if s == nil {
		return NewSpec()
	}
	next := &Spec{
		Root:  s.Root,
		Nodes: make(map[string]*Node, len(s.Nodes)),
	}
	for id, n := range s.Nodes {
		next.Nodes[id] = n
	}
	if s.State != nil {
		next.State = make(map[string]any, len(s.State))
		for k, v := range s.State {
			next.State[k] = v
		}
	}
	return next
}
