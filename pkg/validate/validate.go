// Package validate walks a Spec for structural invariant violations once a
// generation stream completes. Findings split into two classes: terminal
// errors that require a model repair round (a child id with no node means
// the generation is incomplete), and deterministic auto-fixes applied
// locally at zero retry cost (expression metadata the model nested inside
// props instead of on the node).
package validate

import (
	"fmt"
	"sort"

	"github.com/tapestrylab/weft/pkg/domain"
)

// Result is the outcome of a validation pass.
type Result struct {
	Valid  bool
	Issues []domain.ValidationIssue
}

// Errors returns only the error-severity issues.
func (r Result) Errors() []domain.ValidationIssue {
	var out []domain.ValidationIssue
	for _, i := range r.Issues {
		if i.Severity == domain.SeverityError {
			out = append(out, i)
		}
	}
	return out
}

// Validate checks structural invariants on a complete document.
func Validate(s *domain.Spec) Result {
	var issues []domain.ValidationIssue

	if s == nil || len(s.Nodes) == 0 {
		issues = append(issues, domain.ValidationIssue{
			Severity: domain.SeverityError,
			Message:  "document has no nodes",
			Path:     "/nodes",
		})
		return Result{Valid: false, Issues: issues}
	}

	if s.Root == "" {
		issues = append(issues, domain.ValidationIssue{
			Severity: domain.SeverityError,
			Message:  "document has no root node id",
			Path:     "/root",
		})
	} else if s.Node(s.Root) == nil {
		issues = append(issues, domain.ValidationIssue{
			Severity: domain.SeverityError,
			Message:  fmt.Sprintf("root references missing node %q", s.Root),
			Path:     "/nodes/" + s.Root,
		})
	}

	for _, id := range sortedIDs(s) {
		node := s.Nodes[id]
		for _, child := range node.Children {
			if s.Node(child) == nil {
				// Not auto-fixable: a dangling child id signals an
				// incomplete generation, only the model can supply it.
				issues = append(issues, domain.ValidationIssue{
					Severity: domain.SeverityError,
					Message:  fmt.Sprintf("node %q references missing child %q", id, child),
					Path:     "/nodes/" + child,
				})
			}
		}
		if node.Type == "" {
			issues = append(issues, domain.ValidationIssue{
				Severity: domain.SeverityWarning,
				Message:  fmt.Sprintf("node %q has no type", id),
				Path:     "/nodes/" + id + "/type",
			})
		}
		if node.Repeat != nil && node.Repeat.StatePath == "" {
			issues = append(issues, domain.ValidationIssue{
				Severity: domain.SeverityWarning,
				Message:  fmt.Sprintf("node %q repeat has no statePath", id),
				Path:     "/nodes/" + id + "/repeat",
			})
		}
		for _, key := range []string{"visible", "on", "watch"} {
			if _, misplaced := node.Props[key]; misplaced {
				issues = append(issues, domain.ValidationIssue{
					Severity: domain.SeverityWarning,
					Message:  fmt.Sprintf("node %q has %q nested in props; it belongs on the node", id, key),
					Path:     "/nodes/" + id + "/props/" + key,
				})
			}
		}
	}

	valid := true
	for _, i := range issues {
		if i.Severity == domain.SeverityError {
			valid = false
			break
		}
	}
	return Result{Valid: valid, Issues: issues}
}

func sortedIDs(s *domain.Spec) []string {
	ids := make([]string, 0, len(s.Nodes))
	for id := range s.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
