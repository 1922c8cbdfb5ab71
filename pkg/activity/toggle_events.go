package activity

import (
	"strings"
	"time"
)

// Verbs emitted for toggle activity.
const (
	VerbToggleActivated = "toggle.activated"
	VerbOverrideSet     = "toggle.override.set"
	VerbOverrideRemoved = "toggle.override.removed"
)

// ToggleEventInput describes the common fields for toggle activity events.
type ToggleEventInput struct {
	ActorID        string
	UserID         string
	TenantID       string
	ToggleID       string
	Channel        string
	DefinitionCode string
	Metadata       map[string]any
	Attributes     map[string]any
	OldValue       any
	NewValue       any
	OccurredAt     time.Time
}

// BuildToggleActivatedEvent constructs an event for an engine activation.
func BuildToggleActivatedEvent(input ToggleEventInput) Event {
	return buildToggleEvent(VerbToggleActivated, "toggle", input)
}

// BuildOverrideSetEvent constructs an event for a forced override being set
// or replaced.
func BuildOverrideSetEvent(input ToggleEventInput) Event {
	return buildToggleEvent(VerbOverrideSet, "toggle.override", input)
}

// BuildOverrideRemovedEvent constructs an event for a forced override removal.
func BuildOverrideRemovedEvent(input ToggleEventInput) Event {
	return buildToggleEvent(VerbOverrideRemoved, "toggle.override", input)
}

func buildToggleEvent(verb, objectType string, input ToggleEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if len(input.Attributes) > 0 {
		metadata = ensureMetadata(metadata)
		metadata["attributes"] = cloneMap(input.Attributes)
	}
	if input.OldValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["old_value"] = input.OldValue
	}
	if input.NewValue != nil {
		metadata = ensureMetadata(metadata)
		if verb == VerbToggleActivated {
			metadata["variation"] = input.NewValue
		} else {
			metadata["new_value"] = input.NewValue
		}
	}

	objectID := strings.TrimSpace(input.ToggleID)
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:           verb,
		ActorID:        strings.TrimSpace(input.ActorID),
		UserID:         strings.TrimSpace(input.UserID),
		TenantID:       strings.TrimSpace(input.TenantID),
		ObjectType:     objectType,
		ObjectID:       objectID,
		Channel:        strings.TrimSpace(input.Channel),
		DefinitionCode: strings.TrimSpace(input.DefinitionCode),
		Metadata:       metadata,
		OccurredAt:     input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
