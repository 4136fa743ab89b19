package store

import (
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/crypto"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/kerrors"
)

// PinnedWorkflow is the self-contained, canonicalized form of a
// WorkflowDefinition stamped with sourceKind "v1_pinned". Its hash is the
// SHA-256 of its canonical JSON.
type PinnedWorkflow struct {
	SchemaVersion int            `json:"schemaVersion"`
	SourceKind    string         `json:"sourceKind"`
	WorkflowId    string         `json:"workflowId"`
	Definition    map[string]any `json:"definition"`
}

// PinStore wraps Store with the pinned-workflow schema envelope.
type PinStore struct{ s *Store }

// OpenPinStore opens the pinned-workflow store rooted at dir.
func OpenPinStore(dir string) (*PinStore, error) {
	s, err := Open(dir)
	if err != nil {
		return nil, err
	}
	return &PinStore{s: s}, nil
}

// Put canonicalizes and stores a pinned workflow, returning its
// WorkflowHash. Idempotent: compiling the same definition again returns the
// same hash without rewriting the file.
func (ps *PinStore) Put(pw PinnedWorkflow) (crypto.Digest, error) {
	envelope := map[string]any{
		"schemaVersion": float64(pw.SchemaVersion),
		"sourceKind":    pw.SourceKind,
		"workflowId":    pw.WorkflowId,
		"definition":    pw.Definition,
	}
	return ps.s.Put(envelope)
}

// Get returns the pinned workflow recorded under hash, or (nil, false, nil)
// if absent.
func (ps *PinStore) Get(hash crypto.Digest) (*PinnedWorkflow, bool, error) {
	v, ok, err := ps.s.Get(hash)
	if err != nil || !ok {
		return nil, ok, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false, kerrors.New(kerrors.CodeCorruptionDetected, "store: pinned workflow envelope is not an object")
	}
	def, _ := m["definition"].(map[string]any)
	sourceKind, _ := m["sourceKind"].(string)
	workflowId, _ := m["workflowId"].(string)
	return &PinnedWorkflow{
		SchemaVersion: 1,
		SourceKind:    sourceKind,
		WorkflowId:    workflowId,
		Definition:    def,
	}, true, nil
}
