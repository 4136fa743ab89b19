// Package session implements the per-session event log, its sidecar
// manifest, the advisory filesystem lock, and the healthy-session gate that
// wraps appends to the log — C7, C8, and C9.
package session

import "github.com/ormasoftchile/wfkernel/pkg/wfkernel/ids"

// Kind is the closed set of event kinds the log ever records.
type Kind string

const (
	KindSessionCreated     Kind = "session_created"
	KindRunStarted         Kind = "run_started"
	KindNodeCreated        Kind = "node_created"
	KindAdvanceRecorded    Kind = "advance_recorded"
	KindEdgeCreated        Kind = "edge_created"
	KindNodeOutputAppended Kind = "node_output_appended"
	KindPreferencesChanged Kind = "preferences_changed"
)

// Event is one record in a session's append-only log.
type Event struct {
	EventIndex int            `json:"eventIndex"`
	EventId    ids.EventId    `json:"eventId"`
	SessionId  ids.SessionId  `json:"sessionId"`
	Kind       Kind           `json:"kind"`
	DedupeKey  string         `json:"dedupeKey,omitempty"`
	RunId      ids.RunId      `json:"runId,omitempty"`
	NodeId     ids.NodeId     `json:"nodeId,omitempty"`
	Data       map[string]any `json:"data"`
}

// ToCanonical converts an Event into the map[string]any shape the canonical
// codec accepts (it only knows about JSON primitives, not our branded id
// types).
func (e Event) ToCanonical() map[string]any {
	m := map[string]any{
		"eventIndex": float64(e.EventIndex),
		"eventId":    string(e.EventId),
		"sessionId":  string(e.SessionId),
		"kind":       string(e.Kind),
		"data":       e.Data,
	}
	if e.DedupeKey != "" {
		m["dedupeKey"] = e.DedupeKey
	}
	if e.RunId != "" {
		m["runId"] = string(e.RunId)
	}
	if e.NodeId != "" {
		m["nodeId"] = string(e.NodeId)
	}
	return m
}

// EventFromCanonical rebuilds an Event from its decoded canonical form.
func EventFromCanonical(v any) (Event, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return Event{}, false
	}
	e := Event{Data: map[string]any{}}
	if idx, ok := m["eventIndex"].(int64); ok {
		e.EventIndex = int(idx)
	} else if f, ok := m["eventIndex"].(float64); ok {
		e.EventIndex = int(f)
	}
	if s, ok := m["eventId"].(string); ok {
		e.EventId = ids.EventId(s)
	}
	if s, ok := m["sessionId"].(string); ok {
		e.SessionId = ids.SessionId(s)
	}
	if s, ok := m["kind"].(string); ok {
		e.Kind = Kind(s)
	}
	if s, ok := m["dedupeKey"].(string); ok {
		e.DedupeKey = s
	}
	if s, ok := m["runId"].(string); ok {
		e.RunId = ids.RunId(s)
	}
	if s, ok := m["nodeId"].(string); ok {
		e.NodeId = ids.NodeId(s)
	}
	if d, ok := m["data"].(map[string]any); ok {
		e.Data = d
	}
	return e, true
}

// SnapshotPin records that a snapshotRef was pinned at a given eventIndex
// and created by a given event, preventing garbage collection while the
// pin's session remains referenced.
type SnapshotPin struct {
	SnapshotRef      string `json:"snapshotRef"`
	EventIndex       int    `json:"eventIndex"`
	CreatedByEventId string `json:"createdByEventId"`
}

// Batch is a group of events and their associated snapshot pins appended
// atomically under a single lock witness.
type Batch struct {
	Events       []Event
	SnapshotPins []SnapshotPin
}
