package expr

var compareOps = []CompareOp{OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte}

// Parse classifies a raw JSON value into an expression variant. Anything
// that is not a recognized tagged form is a Literal; container literals
// still get their elements resolved recursively at evaluation time.
func Parse(raw any) Expr {
	m, ok := raw.(map[string]any)
	if !ok {
		return Literal{Value: raw}
	}

	if v, ok := m["$state"]; ok {
		if path, ok := v.(string); ok {
			return StateRef{Path: path}
		}
	}
	if v, ok := m["$bindState"]; ok {
		if path, ok := v.(string); ok {
			return BindState{Path: path}
		}
	}
	if v, ok := m["$bindItem"]; ok {
		if field, ok := v.(string); ok {
			return BindItem{Field: field}
		}
	}
	if v, ok := m["$item"]; ok {
		switch f := v.(type) {
		case string:
			return ItemRef{Field: f}
		case bool:
			if f {
				return ItemRef{}
			}
		}
	}
	if _, ok := m["$index"]; ok {
		return IndexRef{}
	}
	if v, ok := m["$computed"]; ok {
		if name, ok := v.(string); ok {
			var args []Expr
			switch a := m["args"].(type) {
			case []any:
				for _, el := range a {
					args = append(args, Parse(el))
				}
			case nil:
			default:
				args = append(args, Parse(a))
			}
			return Computed{Name: name, Args: args}
		}
	}
	if v, ok := m["$cond"]; ok {
		return Cond{
			If:   ParseCondition(v),
			Then: Parse(m["$then"]),
			Else: Parse(m["$else"]),
		}
	}
	if v, ok := m["$and"]; ok {
		return And{Conds: parseConditionList(v)}
	}
	if v, ok := m["$or"]; ok {
		return Or{Conds: parseConditionList(v)}
	}
	if v, ok := m["not"]; ok {
		return Not{Cond: ParseCondition(v)}
	}
	for _, op := range compareOps {
		v, ok := m[string(op)]
		if !ok {
			continue
		}
		pair, ok := v.([]any)
		if !ok || len(pair) != 2 {
			continue
		}
		return Compare{Op: op, Left: Parse(pair[0]), Right: Parse(pair[1])}
	}

	return Literal{Value: m}
}

// ParseCondition parses a value in condition position, where a bare array
// means implicit And.
func ParseCondition(raw any) Expr {
	if list, ok := raw.([]any); ok {
		return And{Conds: parseConditionList(list)}
	}
	return Parse(raw)
}

func parseConditionList(raw any) []Expr {
	list, ok := raw.([]any)
	if !ok {
		return []Expr{ParseCondition(raw)}
	}
	out := make([]Expr, 0, len(list))
	for _, el := range list {
		out = append(out, ParseCondition(el))
	}
	return out
}
