// Package usersink forwards toggle activity to a go-users ActivitySink.
package usersink

import (
	"context"
	"strings"

	"github.com/goliatone/go-opticks/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// DefaultNamespace derives record ids for user ids that are not UUIDs.
var DefaultNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/goliatone/go-opticks/users"))

// Hook adapts activity events to a go-users ActivitySink. Toggle user ids are
// opaque strings: UUIDs are used as-is, anything else is mapped to a
// name-based UUID under Namespace and kept verbatim in the record data.
type Hook struct {
	Sink      usertypes.ActivitySink
	Namespace uuid.UUID
}

// Notify maps the event into an ActivityRecord and forwards it to the sink.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	normalized := activity.NormalizeEvent(event)
	if !normalized.Valid() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	data := cloneMap(normalized.Metadata)
	record := usertypes.ActivityRecord{
		ActorID:    h.identify(normalized.ActorID, "actor_ref", &data),
		UserID:     h.identify(normalized.UserID, "user_ref", &data),
		TenantID:   h.identify(normalized.TenantID, "tenant_ref", &data),
		Verb:       normalized.Verb,
		ObjectType: normalized.ObjectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		OccurredAt: normalized.OccurredAt,
	}
	if normalized.DefinitionCode != "" {
		data = ensure(data)
		data["definition_code"] = normalized.DefinitionCode
	}
	record.Data = data

	return h.Sink.Log(ctx, record)
}

func (h Hook) identify(raw, refKey string, data *map[string]any) uuid.UUID {
	value := strings.TrimSpace(raw)
	if value == "" {
		return uuid.Nil
	}
	if id, err := uuid.Parse(value); err == nil {
		return id
	}
	*data = ensure(*data)
	(*data)[refKey] = value
	namespace := h.Namespace
	if namespace == uuid.Nil {
		namespace = DefaultNamespace
	}
	return uuid.NewSHA1(namespace, []byte(value))
}

func ensure(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
