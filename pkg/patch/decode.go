package patch

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/tapestrylab/weft/pkg/domain"
)

// bindingListHook lets a single binding object stand in for a list, the
// same normalization BindingList.UnmarshalJSON performs on the wire.
func bindingListHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to == reflect.TypeOf(domain.BindingList(nil)) {
		if _, ok := data.(map[string]any); ok {
			return []any{data}, nil
		}
	}
	return data, nil
}

func decode(value any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     target,
		DecodeHook: bindingListHook,
	})
	if err != nil {
		return err
	}
	return dec.Decode(value)
}

// decodeNode coerces an untyped patch value into a Node.
func decodeNode(value any) (*domain.Node, error) {
	if n, ok := value.(*domain.Node); ok {
		return n.Clone(), nil
	}
	node := &domain.Node{}
	if err := decode(value, node); err != nil {
		return nil, fmt.Errorf("invalid node value: %w", err)
	}
	return node, nil
}

func decodeBindingList(value any) (domain.BindingList, error) {
	if bl, ok := value.(domain.BindingList); ok {
		return append(domain.BindingList(nil), bl...), nil
	}
	var bl domain.BindingList
	if err := decode(value, &bl); err != nil {
		return nil, fmt.Errorf("invalid binding value: %w", err)
	}
	return bl, nil
}

func decodeBindingMap(value any) (map[string]domain.BindingList, error) {
	if m, ok := value.(map[string]domain.BindingList); ok {
		out := make(map[string]domain.BindingList, len(m))
		for k, v := range m {
			out[k] = append(domain.BindingList(nil), v...)
		}
		return out, nil
	}
	var m map[string]domain.BindingList
	if err := decode(value, &m); err != nil {
		return nil, fmt.Errorf("invalid binding map: %w", err)
	}
	return m, nil
}

func decodeRepeat(value any) (*domain.Repeat, error) {
	if r, ok := value.(*domain.Repeat); ok {
		cp := *r
		return &cp, nil
	}
	r := &domain.Repeat{}
	if err := decode(value, r); err != nil {
		return nil, fmt.Errorf("invalid repeat value: %w", err)
	}
	return r, nil
}

func decodeChildren(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, el := range v {
			s, ok := el.(string)
			if !ok {
				return nil, fmt.Errorf("children must be node ids, got %T", el)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("children must be an array, got %T", value)
	}
}
