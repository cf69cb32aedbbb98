package domain

// Severity classifies a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationIssue is a single structural finding reported by the validator.
// Path addresses the offending location using patch-path notation.
type ValidationIssue struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Path     string   `json:"path"`
}

func (i ValidationIssue) String() string {
	return string(i.Severity) + " at " + i.Path + ": " + i.Message
}
