// Package patch applies structural edits to a Spec. Apply is pure: it
// returns a new document and never mutates its argument, so callers can
// detect change by pointer comparison. Copy-on-write happens at node
// granularity; an edit inside a node copies that node, mutates the copy,
// and places it back.
package patch

import (
	"fmt"
	"strconv"

	"github.com/tapestrylab/weft/internal/jsondoc"
	"github.com/tapestrylab/weft/pkg/domain"
)

type kind int

const (
	kindOther kind = iota
	kindRoot
	kindState
	kindNode
)

type target struct {
	kind   kind
	nodeID string
	rest   []string
}

func parseTarget(path string) target {
	segs := jsondoc.Split(path)
	if len(segs) == 0 {
		return target{kind: kindOther}
	}
	switch segs[0] {
	case "root":
		if len(segs) == 1 {
			return target{kind: kindRoot}
		}
	case "state":
		return target{kind: kindState, rest: segs[1:]}
	case "nodes":
		if len(segs) >= 2 {
			return target{kind: kindNode, nodeID: segs[1], rest: segs[2:]}
		}
	}
	return target{kind: kindOther}
}

// Apply executes one patch against the document and returns the result.
// Paths outside the /root, /state and /nodes partitions are out of scope
// and leave the document untouched; the returned spec is the input in that
// case, which callers can use to detect the no-op.
func Apply(s *domain.Spec, p domain.Patch) (*domain.Spec, error) {
	if s == nil {
		s = domain.NewSpec()
	}
	switch p.Op {
	case domain.OpAdd, domain.OpReplace:
		return writeAt(s, parseTarget(p.Path), p.Value)
	case domain.OpRemove:
		return removeAt(s, parseTarget(p.Path)), nil
	case domain.OpMove:
		v, ok := readAt(s, parseTarget(p.From))
		if !ok {
			return s, nil
		}
		next := removeAt(s, parseTarget(p.From))
		return writeAt(next, parseTarget(p.Path), v)
	case domain.OpCopy:
		v, ok := readAt(s, parseTarget(p.From))
		if !ok {
			return s, nil
		}
		return writeAt(s, parseTarget(p.Path), copyValue(v))
	case domain.OpTest:
		// Reserved for future validation use.
		return s, nil
	default:
		return s, fmt.Errorf("unknown op %q", p.Op)
	}
}

func copyValue(v any) any {
	switch c := v.(type) {
	case *domain.Node:
		return c.Clone()
	default:
		return jsondoc.DeepCopy(v)
	}
}

func writeAt(s *domain.Spec, t target, value any) (*domain.Spec, error) {
	switch t.kind {
	case kindRoot:
		id, ok := value.(string)
		if !ok {
			return s, fmt.Errorf("/root expects a node id string, got %T", value)
		}
		next := s.Clone()
		next.Root = id
		return next, nil

	case kindState:
		next := s.Clone()
		if len(t.rest) == 0 {
			m, ok := value.(map[string]any)
			if !ok {
				return s, fmt.Errorf("/state expects an object, got %T", value)
			}
			next.State = jsondoc.DeepCopy(m).(map[string]any)
			return next, nil
		}
		doc := map[string]any{}
		if next.State != nil {
			doc = jsondoc.DeepCopy(next.State).(map[string]any)
		}
		next.State = jsondoc.Set(doc, jsondoc.Join(t.rest...), jsondoc.DeepCopy(value)).(map[string]any)
		return next, nil

	case kindNode:
		if len(t.rest) == 0 {
			node, err := decodeNode(value)
			if err != nil {
				return s, fmt.Errorf("node %s: %w", t.nodeID, err)
			}
			next := s.Clone()
			next.Nodes[t.nodeID] = node
			return next, nil
		}
		node := s.Node(t.nodeID).Clone()
		if node == nil {
			// The model may set fields before the node itself arrives.
			node = &domain.Node{}
		}
		if err := writeNodeField(node, t.rest, value); err != nil {
			return s, fmt.Errorf("node %s: %w", t.nodeID, err)
		}
		next := s.Clone()
		next.Nodes[t.nodeID] = node
		return next, nil
	}
	// Out of scope: ignored, not an error.
	return s, nil
}

func writeNodeField(n *domain.Node, segs []string, value any) error {
	field, rest := segs[0], segs[1:]
	switch field {
	case "type":
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("type expects a string, got %T", value)
		}
		n.Type = str
	case "visible":
		n.Visible = value
	case "props":
		if len(rest) == 0 {
			m, ok := value.(map[string]any)
			if !ok {
				return fmt.Errorf("props expects an object, got %T", value)
			}
			n.Props = jsondoc.DeepCopy(m).(map[string]any)
			return nil
		}
		props := map[string]any{}
		if n.Props != nil {
			props = jsondoc.DeepCopy(n.Props).(map[string]any)
		}
		n.Props = jsondoc.Set(props, jsondoc.Join(rest...), jsondoc.DeepCopy(value)).(map[string]any)
	case "children":
		if len(rest) == 0 {
			kids, err := decodeChildren(value)
			if err != nil {
				return err
			}
			n.Children = kids
			return nil
		}
		idx, err := strconv.Atoi(rest[0])
		if err != nil || idx < 0 || len(rest) > 1 {
			return fmt.Errorf("invalid children path %v", rest)
		}
		id, ok := value.(string)
		if !ok {
			return fmt.Errorf("children entries must be node ids, got %T", value)
		}
		for len(n.Children) <= idx {
			n.Children = append(n.Children, "")
		}
		n.Children[idx] = id
	case "on", "watch":
		m := n.On
		if field == "watch" {
			m = n.Watch
		}
		if len(rest) == 0 {
			decoded, err := decodeBindingMap(value)
			if err != nil {
				return err
			}
			if field == "on" {
				n.On = decoded
			} else {
				n.Watch = decoded
			}
			return nil
		}
		bl, err := decodeBindingList(value)
		if err != nil {
			return err
		}
		if m == nil {
			m = make(map[string]domain.BindingList)
		}
		m[jsondoc.Join(rest...)[1:]] = bl
		if field == "on" {
			n.On = m
		} else {
			n.Watch = m
		}
	case "repeat":
		if len(rest) == 0 {
			r, err := decodeRepeat(value)
			if err != nil {
				return err
			}
			n.Repeat = r
			return nil
		}
		if n.Repeat == nil {
			n.Repeat = &domain.Repeat{}
		}
		str, _ := value.(string)
		switch rest[0] {
		case "statePath":
			n.Repeat.StatePath = str
		case "key":
			n.Repeat.Key = str
		default:
			return fmt.Errorf("unknown repeat field %q", rest[0])
		}
	default:
		return fmt.Errorf("unknown node field %q", field)
	}
	return nil
}

func removeAt(s *domain.Spec, t target) *domain.Spec {
	switch t.kind {
	case kindRoot:
		next := s.Clone()
		next.Root = ""
		return next

	case kindState:
		next := s.Clone()
		if len(t.rest) == 0 {
			next.State = nil
			return next
		}
		if next.State == nil {
			return s
		}
		doc := jsondoc.DeepCopy(next.State).(map[string]any)
		next.State = jsondoc.Delete(doc, jsondoc.Join(t.rest...)).(map[string]any)
		return next

	case kindNode:
		if s.Node(t.nodeID) == nil {
			return s
		}
		if len(t.rest) == 0 {
			next := s.Clone()
			delete(next.Nodes, t.nodeID)
			return next
		}
		node := s.Node(t.nodeID).Clone()
		removeNodeField(node, t.rest)
		next := s.Clone()
		next.Nodes[t.nodeID] = node
		return next
	}
	return s
}

func removeNodeField(n *domain.Node, segs []string) {
	field, rest := segs[0], segs[1:]
	switch field {
	case "type":
		n.Type = ""
	case "visible":
		n.Visible = nil
	case "repeat":
		n.Repeat = nil
	case "props":
		if len(rest) == 0 {
			n.Props = nil
			return
		}
		if n.Props == nil {
			return
		}
		doc := jsondoc.DeepCopy(n.Props).(map[string]any)
		n.Props = jsondoc.Delete(doc, jsondoc.Join(rest...)).(map[string]any)
	case "children":
		if len(rest) == 0 {
			n.Children = nil
			return
		}
		idx, err := strconv.Atoi(rest[0])
		if err != nil || idx < 0 || idx >= len(n.Children) {
			return
		}
		n.Children = append(n.Children[:idx], n.Children[idx+1:]...)
	case "on", "watch":
		m := n.On
		if field == "watch" {
			m = n.Watch
		}
		if len(rest) == 0 {
			m = nil
		} else if m != nil {
			delete(m, jsondoc.Join(rest...)[1:])
		}
		if field == "on" {
			n.On = m
		} else {
			n.Watch = m
		}
	}
}

func readAt(s *domain.Spec, t target) (any, bool) {
	switch t.kind {
	case kindRoot:
		if s.Root == "" {
			return nil, false
		}
		return s.Root, true

	case kindState:
		if len(t.rest) == 0 {
			if s.State == nil {
				return nil, false
			}
			return s.State, true
		}
		return jsondoc.Get(s.State, jsondoc.Join(t.rest...))

	case kindNode:
		node := s.Node(t.nodeID)
		if node == nil {
			return nil, false
		}
		if len(t.rest) == 0 {
			return node, true
		}
		return readNodeField(node, t.rest)
	}
	return nil, false
}

func readNodeField(n *domain.Node, segs []string) (any, bool) {
	field, rest := segs[0], segs[1:]
	switch field {
	case "type":
		return n.Type, n.Type != ""
	case "visible":
		return n.Visible, n.Visible != nil
	case "repeat":
		if n.Repeat == nil {
			return nil, false
		}
		if len(rest) == 0 {
			return n.Repeat, true
		}
		switch rest[0] {
		case "statePath":
			return n.Repeat.StatePath, true
		case "key":
			return n.Repeat.Key, true
		}
		return nil, false
	case "props":
		if n.Props == nil {
			return nil, false
		}
		if len(rest) == 0 {
			return n.Props, true
		}
		return jsondoc.Get(n.Props, jsondoc.Join(rest...))
	case "children":
		if len(rest) == 0 {
			if n.Children == nil {
				return nil, false
			}
			return n.Children, true
		}
		idx, err := strconv.Atoi(rest[0])
		if err != nil || idx < 0 || idx >= len(n.Children) {
			return nil, false
		}
		return n.Children[idx], true
	case "on", "watch":
		m := n.On
		if field == "watch" {
			m = n.Watch
		}
		if m == nil {
			return nil, false
		}
		if len(rest) == 0 {
			return m, true
		}
		bl, ok := m[jsondoc.Join(rest...)[1:]]
		return bl, ok
	}
	return nil, false
}
