package expr

// ResolveBindings extracts the two-way bindings from a node's props: a map
// from prop name to the absolute state path the consumer should write back
// to. Props that are not binding forms are omitted. $bindItem outside a
// repeat scope has no target and is skipped with a warning.
func ResolveBindings(props map[string]any, ctx Context) map[string]string {
	out := make(map[string]string)
	for name, raw := range props {
		switch b := Parse(raw).(type) {
		case BindState:
			out[name] = b.Path
		case BindItem:
			if ctx.Scope == nil {
				ctx.warn("$bindItem used outside repeat scope", "prop", name)
				continue
			}
			path := ctx.Scope.ItemPath()
			if b.Field != "" {
				path += "/" + b.Field
			}
			out[name] = path
		}
	}
	return out
}
