// Package tui renders generated documents for terminal preview. The
// document tree becomes markdown, resolved against the current state, and
// glamour styles it for the terminal.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/tapestrylab/weft/pkg/domain"
	"github.com/tapestrylab/weft/pkg/expr"
)

// NewRenderer returns a markdown terminal renderer using glamour with
// automatic light/dark detection.
func NewRenderer() func(string) (string, error) {
	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
	)
	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// SpecMarkdown sketches the document tree as markdown, one bullet per
// node, with props resolved against the state snapshot. Hidden nodes are
// skipped and repeated nodes are expanded per item, the way a host
// renderer would.
func SpecMarkdown(spec *domain.Spec, stateDoc map[string]any) string {
	var sb strings.Builder
	if spec.Root == "" {
		sb.WriteString("*(empty document)*\n")
		return sb.String()
	}
	ectx := expr.Context{State: expr.SnapshotReader(stateDoc)}
	writeNode(&sb, spec, spec.Root, 0, ectx, map[string]bool{})
	return sb.String()
}

func writeNode(sb *strings.Builder, spec *domain.Spec, id string, depth int, ectx expr.Context, seen map[string]bool) {
	indent := strings.Repeat("  ", depth)
	node := spec.Node(id)
	if node == nil {
		fmt.Fprintf(sb, "%s- **%s** *(missing)*\n", indent, id)
		return
	}
	if seen[id] {
		fmt.Fprintf(sb, "%s- **%s** *(cycle)*\n", indent, id)
		return
	}
	seen[id] = true
	defer delete(seen, id)

	if node.Visible != nil && !expr.EvalCondition(node.Visible, ectx) {
		return
	}

	if node.Repeat != nil && ectx.Scope == nil {
		items, _ := ectx.State.Get(node.Repeat.StatePath).([]any)
		if len(items) == 0 {
			fmt.Fprintf(sb, "%s- **%s** `%s` *(no items)*\n", indent, id, node.Type)
			return
		}
		for i, item := range items {
			itemCtx := ectx
			itemCtx.Scope = &expr.Scope{
				Item:     item,
				Index:    i,
				BasePath: node.Repeat.StatePath,
				Key:      node.Repeat.Key,
			}
			writeIteration(sb, spec, id, node, depth, itemCtx, seen)
		}
		return
	}

	writeIteration(sb, spec, id, node, depth, ectx, seen)
}

func writeIteration(sb *strings.Builder, spec *domain.Spec, id string, node *domain.Node, depth int, ectx expr.Context, seen map[string]bool) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(sb, "%s- **%s** `%s`%s\n", indent, id, node.Type, propsSummary(node, ectx))
	for _, child := range node.Children {
		writeNode(sb, spec, child, depth+1, ectx, seen)
	}
}

func propsSummary(node *domain.Node, ectx expr.Context) string {
	if len(node.Props) == 0 {
		return ""
	}
	keys := make([]string, 0, len(node.Props))
	for k := range node.Props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := expr.Resolve(node.Props[k], ectx)
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return ": " + strings.Join(parts, ", ")
}
