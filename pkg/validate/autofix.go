package validate

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/tapestrylab/weft/pkg/domain"
)

// AutoFix applies deterministic corrections and returns the fixed document
// plus a description of each fix. It never consumes a repair retry and is
// idempotent: running it on its own output yields no further fixes.
//
// The input document is not mutated; fixed nodes are replaced copy-on-write.
func AutoFix(s *domain.Spec) (*domain.Spec, []string) {
	if s == nil {
		return domain.NewSpec(), nil
	}
	var fixes []string
	next := s

	for _, id := range sortedIDs(s) {
		node := s.Nodes[id]
		fixed := hoistPropMetadata(node, id, &fixes)
		if fixed != nil {
			if next == s {
				next = s.Clone()
			}
			next.Nodes[id] = fixed
		}
	}
	return next, fixes
}

// hoistPropMetadata moves visible/on/watch out of props onto the node.
// Returns nil when the node needs no fix.
func hoistPropMetadata(n *domain.Node, id string, fixes *[]string) *domain.Node {
	_, hasVisible := n.Props["visible"]
	_, hasOn := n.Props["on"]
	_, hasWatch := n.Props["watch"]
	if !hasVisible && !hasOn && !hasWatch {
		return nil
	}

	fixed := n.Clone()
	if hasVisible {
		if fixed.Visible == nil {
			fixed.Visible = fixed.Props["visible"]
		}
		delete(fixed.Props, "visible")
		*fixes = append(*fixes, fmt.Sprintf("hoisted visible out of props on node %q", id))
	}
	if hasOn {
		if m, err := decodeBindingMap(fixed.Props["on"]); err == nil && fixed.On == nil {
			fixed.On = m
		}
		delete(fixed.Props, "on")
		*fixes = append(*fixes, fmt.Sprintf("hoisted on out of props on node %q", id))
	}
	if hasWatch {
		if m, err := decodeBindingMap(fixed.Props["watch"]); err == nil && fixed.Watch == nil {
			fixed.Watch = m
		}
		delete(fixed.Props, "watch")
		*fixes = append(*fixes, fmt.Sprintf("hoisted watch out of props on node %q", id))
	}
	return fixed
}

func decodeBindingMap(value any) (map[string]domain.BindingList, error) {
	var out map[string]domain.BindingList
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result: &out,
		DecodeHook: func(_ reflect.Type, to reflect.Type, data any) (any, error) {
			if to == reflect.TypeOf(domain.BindingList(nil)) {
				if _, ok := data.(map[string]any); ok {
					return []any{data}, nil
				}
			}
			return data, nil
		},
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(value); err != nil {
		return nil, err
	}
	return out, nil
}
