package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventPatchApplied  EventType = "patch_applied"
	EventLineRecovered EventType = "line_recovered"
	EventRepairRound   EventType = "repair_round"
	EventActionStart   EventType = "action_start"
	EventActionEnd     EventType = "action_end"
	EventConfirmPosted EventType = "confirm_posted"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// PatchEvent records one edit applied to the document.
type PatchEvent struct {
	EventBase
	Patch Patch `json:"patch"`
}

// LineEvent records ingestion of one stream line that needed recovery.
type LineEvent struct {
	EventBase
	Line     string `json:"line"`
	Stripped int    `json:"stripped"`
}

// RepairEvent records the start of a repair round.
type RepairEvent struct {
	EventBase
	Round  int               `json:"round"`
	Issues []ValidationIssue `json:"issues,omitempty"`
	// Malformed is set when the round was triggered by an unparseable line
	// rather than by validation.
	Malformed string `json:"malformed,omitempty"`
}

// ActionEvent records dispatch of one action binding.
type ActionEvent struct {
	EventBase
	Action  string `json:"action"`
	IsError bool   `json:"is_error,omitempty"`
}

// ConfirmEvent records that an action is suspended awaiting confirmation.
type ConfirmEvent struct {
	EventBase
	ID      string         `json:"id"`
	Action  string         `json:"action"`
	Confirm *ActionConfirm `json:"confirm,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
// All hooks are optional and must not block.
type LifecycleHooks struct {
	OnPatchApplied  func(context.Context, *PatchEvent)
	OnLineRecovered func(context.Context, *LineEvent)
	OnRepairRound   func(context.Context, *RepairEvent)
	OnActionStart   func(context.Context, *ActionEvent)
	OnActionEnd     func(context.Context, *ActionEvent)
	OnConfirmPosted func(context.Context, *ConfirmEvent)
}
