// Package ids mints and validates the kernel's typed opaque identifiers.
// Every id is a branded string "<prefix>_<entropy>"; the types below exist
// so the compiler rejects passing a NodeId where a RunId is expected, even
// though the underlying representation is a plain string.
package ids

import (
	"regexp"

	"github.com/google/uuid"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/kerrors"
)

var charset = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// SessionId identifies a durable session.
type SessionId string

// RunId identifies an attempt within a session to drive a workflow to completion.
type RunId string

// NodeId identifies a position in a run's DAG.
type NodeId string

// AttemptId identifies a single advance intent.
type AttemptId string

// EventId identifies one committed event.
type EventId string

// OutputId identifies one appended node output.
type OutputId string

// SnapshotRef identifies a content-addressed execution snapshot.
type SnapshotRef string

// WorkflowHash identifies a content-addressed pinned workflow.
type WorkflowHash string

func newID(prefix string) string {
	return prefix + "_" + uuid.New().String()
}

// NewSessionId mints a fresh session id.
func NewSessionId() SessionId { return SessionId(newID("sess")) }

// NewRunId mints a fresh run id.
func NewRunId() RunId { return RunId(newID("run")) }

// NewNodeId mints a fresh node id.
func NewNodeId() NodeId { return NodeId(newID("node")) }

// NewAttemptId mints a fresh attempt id.
func NewAttemptId() AttemptId { return AttemptId(newID("att")) }

// NewEventId mints a fresh event id.
func NewEventId() EventId { return EventId(newID("evt")) }

// NewOutputId mints a fresh output id.
func NewOutputId() OutputId { return OutputId(newID("out")) }

// AttemptIdForNextNode deterministically derives the attempt id that will
// be used to advance out of the node this attempt just created, so that
// repeated replays of the same advance mint byte-identical next tokens.
func AttemptIdForNextNode(parent AttemptId) AttemptId {
	return AttemptId("next_" + string(parent))
}

// Valid reports whether s is a non-empty string drawn only from the
// delimiter-safe charset [A-Za-z0-9_-].
func Valid(s string) bool {
	return s != "" && charset.MatchString(s)
}

// CheckCharset returns a VALIDATION_ERROR-shaped *kerrors.Error if id is not
// built from the delimiter-safe charset, else nil.
func CheckCharset(kind, id string) *kerrors.Error {
	if Valid(id) {
		return nil
	}
	return kerrors.Validation(kerrors.ReasonContextInvalidShape, kind+" must match [A-Za-z0-9_-]+, got "+id)
}
