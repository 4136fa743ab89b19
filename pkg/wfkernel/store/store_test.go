package store

import "testing"

func TestPutGetRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	value := map[string]any{"a": 1.0, "b": "hello"}
	digest, err := s.Put(value)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.Get(digest)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected object to be present")
	}
	m := got.(map[string]any)
	if m["b"] != "hello" {
		t.Fatalf("got %v, want b=hello", m)
	}
}

func TestPutIdempotent(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	value := map[string]any{"x": 1.0}
	d1, err := s.Put(value)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	d2, err := s.Put(value)
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if d1 != d2 {
		t.Fatalf("expected idempotent puts to share a digest, got %s vs %s", d1, d2)
	}
}

func TestGetMissingReturnsFalseNotError(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_, ok, err := s.GetByHex("deadbeef")
	if err != nil {
		t.Fatalf("expected no error for a missing key, got %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for a missing key")
	}
}

func TestSnapshotStoreRoundTrip(t *testing.T) {
	ss, err := OpenSnapshotStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenSnapshotStore: %v", err)
	}
	payload := map[string]any{"kind": "running", "completed": []any{}}
	ref, err := ss.Put(payload)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := ss.Get(ref)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected snapshot to be present")
	}
	gm := got.(map[string]any)
	if gm["kind"] != "running" {
		t.Fatalf("got %v, want kind=running", gm)
	}
}

func TestPinStoreRoundTrip(t *testing.T) {
	ps, err := OpenPinStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenPinStore: %v", err)
	}
	pw := PinnedWorkflow{
		SchemaVersion: 1,
		SourceKind:    "v1_pinned",
		WorkflowId:    "demo",
		Definition:    map[string]any{"id": "demo", "steps": []any{}},
	}
	hash, err := ps.Put(pw)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := ps.Get(hash)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected pinned workflow to be present")
	}
	if got.WorkflowId != "demo" {
		t.Fatalf("got %q, want demo", got.WorkflowId)
	}
}
