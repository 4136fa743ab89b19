package store

import (
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/crypto"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/kerrors"
)

// SnapshotStore wraps Store with the execution-snapshot schema envelope
// `{v:1, kind:"execution_snapshot", enginePayload:{...}}`.
type SnapshotStore struct{ s *Store }

// OpenSnapshotStore opens the snapshot store rooted at dir.
func OpenSnapshotStore(dir string) (*SnapshotStore, error) {
	s, err := Open(dir)
	if err != nil {
		return nil, err
	}
	return &SnapshotStore{s: s}, nil
}

// Put stores enginePayload (a map[string]any produced by the interpreter's
// engine state) and returns its content-address as a SnapshotRef-shaped
// digest.
func (ss *SnapshotStore) Put(enginePayload any) (crypto.Digest, error) {
	envelope := map[string]any{
		"v":             float64(1),
		"kind":          "execution_snapshot",
		"enginePayload": enginePayload,
	}
	return ss.s.Put(envelope)
}

// Get returns the enginePayload recorded under ref, or (nil, false, nil)
// if absent.
func (ss *SnapshotStore) Get(ref crypto.Digest) (any, bool, error) {
	v, ok, err := ss.s.Get(ref)
	if err != nil || !ok {
		return nil, ok, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false, kerrors.New(kerrors.CodeCorruptionDetected, "store: snapshot envelope is not an object")
	}
	if kind, _ := m["kind"].(string); kind != "execution_snapshot" {
		return nil, false, kerrors.Newf(kerrors.CodeCorruptionDetected, "store: unexpected snapshot kind %q", kind)
	}
	return m["enginePayload"], true, nil
}
