package session

import (
	"testing"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/ids"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/kerrors"
)

func TestLoadEmptySessionIsHealthy(t *testing.T) {
	dir := t.TempDir()
	log := OpenLog(dir, ids.SessionId("sess_1"), nil)
	truth, err := log.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if truth.Health != HealthHealthy || truth.NextEventIndex != 0 {
		t.Fatalf("got %+v, want empty healthy truth", truth)
	}
}

func TestAppendThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	sessionId := ids.SessionId("sess_1")
	lock := OpenLock(dir, sessionId)
	w, err := lock.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release(w)

	log := OpenLog(dir, sessionId, nil)
	batch := Batch{Events: []Event{
		{EventIndex: 0, EventId: "evt_0", SessionId: sessionId, Kind: KindSessionCreated, Data: map[string]any{}},
	}}
	truth, appended, err := log.Append(w, batch)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if !appended {
		t.Fatal("expected first append to succeed")
	}
	if truth.NextEventIndex != 1 {
		t.Fatalf("got NextEventIndex=%d, want 1", truth.NextEventIndex)
	}

	reloaded, err := log.Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(reloaded.Events) != 1 || reloaded.Events[0].Kind != KindSessionCreated {
		t.Fatalf("got %+v, want one session_created event", reloaded.Events)
	}
}

func TestAppendRejectsNonContiguousIndex(t *testing.T) {
	dir := t.TempDir()
	sessionId := ids.SessionId("sess_1")
	lock := OpenLock(dir, sessionId)
	w, _ := lock.Acquire()
	defer lock.Release(w)

	log := OpenLog(dir, sessionId, nil)
	batch := Batch{Events: []Event{
		{EventIndex: 5, EventId: "evt_5", SessionId: sessionId, Kind: KindSessionCreated, Data: map[string]any{}},
	}}
	_, _, err := log.Append(w, batch)
	if err == nil {
		t.Fatal("expected an invariant violation for a non-contiguous index")
	}
}

func TestAppendDedupeCollisionIsNoOp(t *testing.T) {
	dir := t.TempDir()
	sessionId := ids.SessionId("sess_1")
	lock := OpenLock(dir, sessionId)
	w, _ := lock.Acquire()
	defer lock.Release(w)

	log := OpenLog(dir, sessionId, nil)
	first := Batch{Events: []Event{
		{EventIndex: 0, EventId: "evt_0", SessionId: sessionId, Kind: KindSessionCreated, Data: map[string]any{}},
		{EventIndex: 1, EventId: "evt_1", SessionId: sessionId, Kind: KindAdvanceRecorded, DedupeKey: "advance_recorded:sess_1:node_1:att_1", Data: map[string]any{}},
	}}
	if _, appended, err := log.Append(w, first); err != nil || !appended {
		t.Fatalf("first append: appended=%v err=%v", appended, err)
	}

	dup := Batch{Events: []Event{
		{EventIndex: 2, EventId: "evt_2", SessionId: sessionId, Kind: KindAdvanceRecorded, DedupeKey: "advance_recorded:sess_1:node_1:att_1", Data: map[string]any{}},
	}}
	truth, appended, err := log.Append(w, dup)
	if err != nil {
		t.Fatalf("second append: %v", err)
	}
	if appended {
		t.Fatal("expected dedupe collision to be absorbed as a no-op")
	}
	if truth.NextEventIndex != 2 {
		t.Fatalf("got NextEventIndex=%d, want unchanged 2", truth.NextEventIndex)
	}
}

func TestCorruptedTailHashIsDetected(t *testing.T) {
	dir := t.TempDir()
	sessionId := ids.SessionId("sess_1")
	lock := OpenLock(dir, sessionId)
	w, _ := lock.Acquire()

	log := OpenLog(dir, sessionId, nil)
	batch := Batch{Events: []Event{
		{EventIndex: 0, EventId: "evt_0", SessionId: sessionId, Kind: KindSessionCreated, Data: map[string]any{}},
	}}
	if _, _, err := log.Append(w, batch); err != nil {
		t.Fatalf("Append: %v", err)
	}
	lock.Release(w)

	m, exists, err := readManifest(log.dir)
	if err != nil || !exists {
		t.Fatalf("readManifest: exists=%v err=%v", exists, err)
	}
	m.TailHash = "0000000000000000000000000000000000000000000000000000000000000000"
	if err := writeManifestAtomic(log.dir, m); err != nil {
		t.Fatalf("writeManifestAtomic: %v", err)
	}

	_, err = log.Load()
	if err == nil {
		t.Fatal("expected corruption to be detected")
	}
	kerr, ok := err.(*kerrors.Error)
	if !ok || kerr.Code != kerrors.CodeCorruptionDetected {
		t.Fatalf("got %v, want CORRUPTION_DETECTED", err)
	}
}

func TestLockIsNonReentrant(t *testing.T) {
	dir := t.TempDir()
	sessionId := ids.SessionId("sess_1")
	lock := OpenLock(dir, sessionId)
	w, err := lock.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release(w)

	_, err = lock.Acquire()
	if err == nil {
		t.Fatal("expected reentrant acquire to fail")
	}
	kerr, ok := err.(*kerrors.Error)
	if !ok || kerr.Code != kerrors.CodeSessionLockReentry {
		t.Fatalf("got %v, want SESSION_LOCK_REENTRANT", err)
	}
}

func TestLockBusyFromSeparateHolder(t *testing.T) {
	dir := t.TempDir()
	sessionId := ids.SessionId("sess_1")

	holder := OpenLock(dir, sessionId)
	w, err := holder.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer holder.Release(w)

	contender := OpenLock(dir, sessionId)
	_, err = contender.Acquire()
	if err == nil {
		t.Fatal("expected contender to observe LOCK_BUSY")
	}
	kerr, ok := err.(*kerrors.Error)
	if !ok || kerr.Code != kerrors.CodeLockBusy {
		t.Fatalf("got %v, want LOCK_BUSY", err)
	}
}

func TestGateRejectsUnhealthySession(t *testing.T) {
	dir := t.TempDir()
	sessionId := ids.SessionId("sess_1")

	lock := OpenLock(dir, sessionId)
	w, _ := lock.Acquire()
	log := OpenLog(dir, sessionId, nil)
	log.Append(w, Batch{Events: []Event{
		{EventIndex: 0, EventId: "evt_0", SessionId: sessionId, Kind: KindSessionCreated, Data: map[string]any{}},
	}})
	lock.Release(w)

	m, _, _ := readManifest(log.dir)
	m.TailHash = "deadbeef00000000000000000000000000000000000000000000000000000000"
	writeManifestAtomic(log.dir, m)

	gate := NewGate(dir, nil)
	err := gate.WithHealthySessionLock(sessionId, func(w *Witness, l *Log, tr *Truth) error {
		t.Fatal("body should not run for an unhealthy session")
		return nil
	})
	kerr, ok := err.(*kerrors.Error)
	if !ok || kerr.Code != kerrors.CodeSessionNotHealthy {
		t.Fatalf("got %v, want SESSION_NOT_HEALTHY", err)
	}
}

func TestGateAppendsUnderLock(t *testing.T) {
	dir := t.TempDir()
	sessionId := ids.SessionId("sess_1")
	gate := NewGate(dir, nil)

	err := gate.WithHealthySessionLock(sessionId, func(w *Witness, l *Log, tr *Truth) error {
		_, appended, aerr := l.Append(w, Batch{Events: []Event{
			{EventIndex: 0, EventId: "evt_0", SessionId: sessionId, Kind: KindSessionCreated, Data: map[string]any{}},
		}})
		if aerr != nil {
			return aerr
		}
		if !appended {
			t.Fatal("expected append to succeed")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithHealthySessionLock: %v", err)
	}

	truth, err := gate.LoadHealthy(sessionId)
	if err != nil {
		t.Fatalf("LoadHealthy: %v", err)
	}
	if len(truth.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(truth.Events))
	}
}
