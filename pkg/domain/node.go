package domain

import "encoding/json"

// Node is one element of the Spec. Type names map to widgets in an
// external catalog; the engine never interprets them.
//
// Props values are raw expression JSON (see the expr package). Visible is
// an expression evaluated as a condition. On maps event names to action
// bindings, Watch maps state paths to bindings fired when the path changes.
type Node struct {
	Type     string                 `json:"type" yaml:"type" mapstructure:"type"`
	Props    map[string]any         `json:"props,omitempty" yaml:"props,omitempty" mapstructure:"props"`
	Children []string               `json:"children,omitempty" yaml:"children,omitempty" mapstructure:"children"`
	Visible  any                    `json:"visible,omitempty" yaml:"visible,omitempty" mapstructure:"visible"`
	On       map[string]BindingList `json:"on,omitempty" yaml:"on,omitempty" mapstructure:"on"`
	Watch    map[string]BindingList `json:"watch,omitempty" yaml:"watch,omitempty" mapstructure:"watch"`
	Repeat   *Repeat                `json:"repeat,omitempty" yaml:"repeat,omitempty" mapstructure:"repeat"`
}

// Repeat configures list rendering: the node is instantiated once per
// element of the array at StatePath. Key optionally names the item field
// used as a stable identity.
type Repeat struct {
	StatePath string `json:"statePath" yaml:"statePath" mapstructure:"statePath"`
	Key       string `json:"key,omitempty" yaml:"key,omitempty" mapstructure:"key"`
}

// Clone returns a deep enough copy for copy-on-write edits: all maps and
// slices owned by the node are duplicated. Prop values themselves are
// shared (they are treated as immutable expression JSON).
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	next := &Node{
		Type:    n.Type,
		Visible: n.Visible,
	}
	if n.Props != nil {
		next.Props = make(map[string]any, len(n.Props))
		for k, v := range n.Props {
			next.Props[k] = v
		}
	}
	if n.Children != nil {
		next.Children = append([]string(nil), n.Children...)
	}
	if n.On != nil {
		next.On = make(map[string]BindingList, len(n.On))
		for k, v := range n.On {
			next.On[k] = append(BindingList(nil), v...)
		}
	}
	if n.Watch != nil {
		next.Watch = make(map[string]BindingList, len(n.Watch))
		for k, v := range n.Watch {
			next.Watch[k] = append(BindingList(nil), v...)
		}
	}
	if n.Repeat != nil {
		r := *n.Repeat
		next.Repeat = &r
	}
	return next
}

// BindingList normalizes the wire format "one binding or a list of
// bindings" into a slice.
type BindingList []ActionBinding

// UnmarshalJSON accepts either a single binding object or an array.
func (b *BindingList) UnmarshalJSON(data []byte) error {
	var many []ActionBinding
	if err := json.Unmarshal(data, &many); err == nil {
		*b = many
		return nil
	}
	var one ActionBinding
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*b = BindingList{one}
	return nil
}
