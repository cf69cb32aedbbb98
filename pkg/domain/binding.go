package domain

// ActionBinding references a named action plus its parameter expressions.
// Params values are raw expression JSON resolved at dispatch time against a
// live state snapshot.
type ActionBinding struct {
	Action         string          `json:"action" yaml:"action" mapstructure:"action"`
	Params         map[string]any  `json:"params,omitempty" yaml:"params,omitempty" mapstructure:"params"`
	Confirm        *ActionConfirm  `json:"confirm,omitempty" yaml:"confirm,omitempty" mapstructure:"confirm"`
	PreventDefault bool            `json:"preventDefault,omitempty" yaml:"preventDefault,omitempty" mapstructure:"preventDefault"`
}

// ActionConfirm requests user confirmation before the action runs.
// Execution suspends until the host resolves the pending confirmation.
type ActionConfirm struct {
	Title        string `json:"title,omitempty" yaml:"title,omitempty" mapstructure:"title"`
	Message      string `json:"message,omitempty" yaml:"message,omitempty" mapstructure:"message"`
	ConfirmLabel string `json:"confirmLabel,omitempty" yaml:"confirmLabel,omitempty" mapstructure:"confirmLabel"`
	CancelLabel  string `json:"cancelLabel,omitempty" yaml:"cancelLabel,omitempty" mapstructure:"cancelLabel"`
}
