// Package graph renders generated documents as Mermaid flowcharts for
// inspection and debugging.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tapestrylab/weft/pkg/domain"
)

// GenerateMermaid produces a Mermaid flowchart of the document tree.
// Semantic styling:
//   - Root: ((circle))
//   - Repeated nodes: [[subroutine]]
//   - Default: [rectangle]
//
// Children referenced but never defined are drawn dashed and styled as
// errors, mirroring what the validator reports.
func GenerateMermaid(spec *domain.Spec) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	ids := make([]string, 0, len(spec.Nodes))
	for id := range spec.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	missing := map[string]bool{}

	for _, id := range ids {
		node := spec.Nodes[id]
		safeID := sanitizeMermaidID(id)

		opener, closer := "[", "]"
		switch {
		case id == spec.Root:
			opener, closer = "((", "))"
		case node.Repeat != nil:
			opener, closer = "[[", "]]"
		}

		label := id
		if node.Type != "" {
			label = fmt.Sprintf("%s <br/> %s", id, node.Type)
		}
		if node.Repeat != nil {
			label = fmt.Sprintf("%s <br/> ∀ %s", label, node.Repeat.StatePath)
		}
		if len(node.On) > 0 {
			events := make([]string, 0, len(node.On))
			for ev := range node.On {
				events = append(events, ev)
			}
			sort.Strings(events)
			label = fmt.Sprintf("%s <br/> ⚡ %s", label, strings.Join(events, ", "))
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))

		for _, child := range node.Children {
			safeChild := sanitizeMermaidID(child)
			arrow := "-->"
			if spec.Node(child) == nil {
				arrow = "-.->"
				missing[child] = true
			}
			sb.WriteString(fmt.Sprintf("    %s %s %s\n", safeID, arrow, safeChild))
		}
	}

	if len(missing) > 0 {
		sb.WriteString("\n    %% Dangling children\n")
		sb.WriteString("    classDef missing fill:#fee2e2,stroke:#b91c1c,stroke-dasharray: 5 5,color:#000;\n")
		missingIDs := make([]string, 0, len(missing))
		for id := range missing {
			missingIDs = append(missingIDs, id)
		}
		sort.Strings(missingIDs)
		for _, id := range missingIDs {
			safeID := sanitizeMermaidID(id)
			sb.WriteString(fmt.Sprintf("    %s[\"%s (missing)\"]\n", safeID, id))
			sb.WriteString(fmt.Sprintf("    class %s missing;\n", safeID))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
