package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tapestrylab/weft/pkg/domain"
)

// Repair prompts always embed the current partial document so the model
// continues patching it instead of regenerating from scratch.

func repairPromptMalformed(spec *domain.Spec, badLine string) string {
	var b strings.Builder
	b.WriteString("The previous edit stream contained an unparseable line and was stopped.\n")
	b.WriteString("Offending line:\n")
	b.WriteString(badLine)
	b.WriteString("\n\nCurrent document state:\n")
	b.WriteString(specJSON(spec))
	b.WriteString("\n\nContinue from this document. Emit only valid JSON patch lines.")
	return b.String()
}

func repairPromptValidation(spec *domain.Spec, issues []domain.ValidationIssue) string {
	var b strings.Builder
	b.WriteString("The generated document has structural errors that must be fixed:\n")
	for _, iss := range issues {
		fmt.Fprintf(&b, "- %s (at %s)\n", iss.Message, iss.Path)
	}
	b.WriteString("\nCurrent document state:\n")
	b.WriteString(specJSON(spec))
	b.WriteString("\n\nEmit JSON patch lines that repair these errors. Do not remove unrelated nodes.")
	return b.String()
}

func specJSON(spec *domain.Spec) string {
	raw, err := json.Marshal(spec)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
