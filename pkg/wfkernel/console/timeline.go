package console

import (
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/crypto"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/interpreter"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/session"
)

// SnapshotReader is the slice of store.SnapshotStore the timeline needs to
// resolve a node's pending step id from its snapshotRef.
type SnapshotReader interface {
	Get(ref crypto.Digest) (any, bool, error)
}

// Node is one step node in a session's history, resolved from its
// node_created event plus the engine snapshot it points at.
type Node struct {
	NodeId       string
	ParentNodeId string
	StepId       string
	IsComplete   bool
	NotesMarkdown string
}

// BuildTimeline walks truth's events into an ordered node list, resolving
// each node_created event's snapshotRef into the pending step id (or marking
// it complete) and attaching any recap notes recorded against it.
func BuildTimeline(truth *session.Truth, snapshots SnapshotReader) ([]Node, error) {
	var nodes []Node
	notesByNode := map[string]string{}

	for _, e := range truth.Events {
		if e.Kind != session.KindNodeOutputAppended {
			continue
		}
		if payload, ok := e.Data["payload"].(map[string]any); ok {
			if notes, ok := payload["notesMarkdown"].(string); ok && e.NodeId != "" {
				notesByNode[string(e.NodeId)] = notes
			}
		}
	}

	for _, e := range truth.Events {
		if e.Kind != session.KindNodeCreated {
			continue
		}
		n := Node{NodeId: string(e.NodeId)}
		if p, ok := e.Data["parentNodeId"].(string); ok {
			n.ParentNodeId = p
		}
		n.NotesMarkdown = notesByNode[n.NodeId]

		ref, _ := e.Data["snapshotRef"].(string)
		if ref != "" && snapshots != nil {
			payload, found, err := snapshots.Get(crypto.Digest("sha256:" + ref))
			if err != nil {
				return nil, err
			}
			if found {
				if state, ok := interpreter.StateFromPayload(payload); ok {
					if state.Pending != nil {
						n.StepId = state.Pending.StepId
					} else {
						n.IsComplete = state.Kind == interpreter.StateComplete
					}
				}
			}
		}

		nodes = append(nodes, n)
	}

	return nodes, nil
}
