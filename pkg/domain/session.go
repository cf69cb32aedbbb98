package domain

import "time"

// SessionSnapshot is the persisted form of one generation session: the
// current document plus the application state document.
type SessionSnapshot struct {
	Spec      *Spec          `json:"spec,omitempty"`
	State     map[string]any `json:"state,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}
