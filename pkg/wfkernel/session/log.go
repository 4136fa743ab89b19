package session

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/canonical"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/crypto"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/ids"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/kerrors"
)

// genesis is the rolling-hash seed before any event has been folded in,
// following the teacher's own all-zero genesis hash in pkg/kernel/trace.
const genesis = "0000000000000000000000000000000000000000000000000000000000000000"

// SnapshotChecker is the thin slice of store.SnapshotStore the log needs to
// verify I3 (every node_created references a snapshotRef that exists).
type SnapshotChecker interface {
	Get(ref crypto.Digest) (any, bool, error)
}

// Truth is everything Load reconstructs about a session: its full event
// history, the current rolling hashes, the next index to append at, the
// snapshot-pin index, and whether the chain verified as healthy.
type Truth struct {
	Events         []Event
	HeadHash       string
	TailHash       string
	NextEventIndex int
	SnapshotPins   []SnapshotPin
	Health         Health
	dedupeKeys     map[string]bool
}

// HasDedupeKey reports whether an event with this dedupeKey has already
// been committed.
func (t *Truth) HasDedupeKey(key string) bool {
	if key == "" {
		return false
	}
	return t.dedupeKeys[key]
}

// NodeCreated finds the node_created event for nodeId, if any.
func (t *Truth) NodeCreated(nodeId ids.NodeId) (Event, bool) {
	for _, e := range t.Events {
		if e.Kind == KindNodeCreated && e.NodeId == nodeId {
			return e, true
		}
	}
	return Event{}, false
}

// RunStarted finds the run_started event for runId, if any.
func (t *Truth) RunStarted(runId ids.RunId) (Event, bool) {
	for _, e := range t.Events {
		if e.Kind == KindRunStarted && e.RunId == runId {
			return e, true
		}
	}
	return Event{}, false
}

// AdvanceRecorded finds the advance_recorded event with the given
// dedupeKey, if any.
func (t *Truth) AdvanceRecorded(dedupeKey string) (Event, bool) {
	for _, e := range t.Events {
		if e.Kind == KindAdvanceRecorded && e.DedupeKey == dedupeKey {
			return e, true
		}
	}
	return Event{}, false
}

// OutgoingEdge reports whether nodeId already has an outgoing edge_created,
// used to decide advance_recorded's cause (intentional_fork vs
// non_tip_advance).
func (t *Truth) OutgoingEdge(nodeId ids.NodeId) (Event, bool) {
	for _, e := range t.Events {
		if e.Kind == KindEdgeCreated {
			if from, _ := e.Data["fromNodeId"].(string); from == string(nodeId) {
				return e, true
			}
		}
	}
	return Event{}, false
}

// SnapshotRefFor returns the snapshotRef most recently pinned for nodeId by
// its node_created event.
func (t *Truth) SnapshotRefFor(nodeId ids.NodeId) (string, bool) {
	e, ok := t.NodeCreated(nodeId)
	if !ok {
		return "", false
	}
	ref, _ := e.Data["snapshotRef"].(string)
	return ref, ref != ""
}

// Log is the append-only per-session event log plus its sidecar manifest.
type Log struct {
	dir       string
	sessionId ids.SessionId
	snapshots SnapshotChecker
}

// OpenLog returns a Log for sessionId rooted at <dataDir>/sessions/<id>.
func OpenLog(dataDir string, sessionId ids.SessionId, snapshots SnapshotChecker) *Log {
	return &Log{
		dir:       sessionDir(dataDir, sessionId),
		sessionId: sessionId,
		snapshots: snapshots,
	}
}

func sessionDir(dataDir string, sessionId ids.SessionId) string {
	return filepath.Join(dataDir, "sessions", string(sessionId))
}

// Load reads every event, recomputes the rolling hash, and compares it to
// the manifest. A never-created session loads as an empty, healthy Truth
// at eventIndex 0.
func (l *Log) Load() (*Truth, error) {
	m, exists, err := readManifest(l.dir)
	if err != nil {
		return nil, err
	}
	if !exists {
		return &Truth{NextEventIndex: 0, Health: HealthHealthy, dedupeKeys: map[string]bool{}}, nil
	}

	f, err := os.Open(logPath(l.dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, kerrors.New(kerrors.CodeCorruptionDetected, "session: manifest exists but events.log is missing")
		}
		return nil, kerrors.Newf(kerrors.CodeIOError, "session: open events.log: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	var events []Event
	dedupe := map[string]bool{}
	rolling := genesis
	headHash := ""
	lineNo := 0

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		lineNo++

		decoded, derr := canonical.Decode(line)
		if derr != nil {
			return nil, kerrors.Newf(kerrors.CodeCorruptionDetected, "session: event %d is not valid canonical JSON: %v", lineNo-1, derr).WithDetails(map[string]any{"location": locationFor(lineNo)})
		}
		evt, ok := EventFromCanonical(decoded)
		if !ok {
			return nil, kerrors.Newf(kerrors.CodeCorruptionDetected, "session: event %d is not an object", lineNo-1).WithDetails(map[string]any{"location": locationFor(lineNo)})
		}
		if evt.EventIndex != lineNo-1 {
			return nil, kerrors.Newf(kerrors.CodeInvariantViolation, "session: event at line %d has eventIndex %d, want %d", lineNo, evt.EventIndex, lineNo-1)
		}

		rolling = crypto.Sha256([]byte(rolling + string(line))).Hex()
		if lineNo == 1 {
			headHash = rolling
		}

		events = append(events, evt)
		if evt.DedupeKey != "" {
			dedupe[evt.DedupeKey] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, kerrors.Newf(kerrors.CodeIOError, "session: scan events.log: %v", err)
	}

	if len(events) > 0 && (events[0].Kind != KindSessionCreated || events[0].EventIndex != 0) {
		return nil, kerrors.New(kerrors.CodeInvariantViolation, "session: I2 violated: event 0 must be session_created")
	}

	if headHash != m.HeadHash {
		return nil, kerrors.New(kerrors.CodeCorruptionDetected, "session: head hash mismatch").WithDetails(map[string]any{"location": "head", "reason": "recomputed head hash does not match manifest"})
	}
	if rolling != m.TailHash {
		return nil, kerrors.New(kerrors.CodeCorruptionDetected, "session: tail hash mismatch").WithDetails(map[string]any{"location": "tail", "reason": "recomputed tail hash does not match manifest"})
	}

	return &Truth{
		Events:         events,
		HeadHash:       headHash,
		TailHash:       rolling,
		NextEventIndex: m.NextEventIndex,
		SnapshotPins:   m.SnapshotPins,
		Health:         HealthHealthy,
		dedupeKeys:     dedupe,
	}, nil
}

func locationFor(lineNo int) string {
	if lineNo <= 1 {
		return "head"
	}
	return "tail"
}

// Append commits batch atomically: contiguous indices continuing the
// current tail, dedupe-key collisions silently absorb the whole batch as a
// no-op (appended=false), and every node_created's snapshotRef must already
// exist in the snapshot store.
func (l *Log) Append(w *Witness, batch Batch) (truth *Truth, appended bool, err error) {
	if w == nil || w.sessionId != l.sessionId {
		return nil, false, kerrors.New(kerrors.CodeInternalError, "session: append called without a valid witness for this session")
	}

	truth, err = l.Load()
	if err != nil {
		return nil, false, err
	}

	for _, e := range batch.Events {
		if e.DedupeKey != "" && truth.HasDedupeKey(e.DedupeKey) {
			return truth, false, nil
		}
	}

	for i, e := range batch.Events {
		want := truth.NextEventIndex + i
		if e.EventIndex != want {
			return nil, false, kerrors.Newf(kerrors.CodeInvariantViolation, "session: I1 violated: event %d has index %d, want %d", i, e.EventIndex, want)
		}
	}

	if l.snapshots != nil {
		for _, e := range batch.Events {
			if e.Kind != KindNodeCreated {
				continue
			}
			ref, _ := e.Data["snapshotRef"].(string)
			if ref == "" {
				return nil, false, kerrors.New(kerrors.CodeInvariantViolation, "session: I3 violated: node_created missing snapshotRef")
			}
			if _, ok, serr := l.snapshots.Get(crypto.Digest(ref)); serr != nil {
				return nil, false, serr
			} else if !ok {
				return nil, false, kerrors.Newf(kerrors.CodeInvariantViolation, "session: I3 violated: snapshotRef %s does not exist", ref)
			}
		}
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, false, kerrors.Newf(kerrors.CodeIOError, "session: create session dir: %v", err)
	}

	logFile, err := os.OpenFile(logPath(l.dir), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, false, kerrors.Newf(kerrors.CodeIOError, "session: open events.log for append: %v", err)
	}
	defer logFile.Close()

	rolling := truth.TailHash
	if rolling == "" {
		rolling = genesis
	}
	headHash := truth.HeadHash

	var buf strings.Builder
	for _, e := range batch.Events {
		b, cerr := canonical.Marshal(e.ToCanonical())
		if cerr != nil {
			return nil, false, kerrors.Newf(kerrors.CodeInternalError, "session: canonicalize event: %v", cerr)
		}
		line := string(b)
		buf.WriteString(line)
		buf.WriteByte('\n')

		rolling = crypto.Sha256([]byte(rolling + line)).Hex()
		if e.EventIndex == 0 {
			headHash = rolling
		}
	}

	if _, err := logFile.WriteString(buf.String()); err != nil {
		return nil, false, kerrors.Newf(kerrors.CodeIOError, "session: write events: %v", err)
	}
	if err := logFile.Sync(); err != nil {
		return nil, false, kerrors.Newf(kerrors.CodeIOError, "session: fsync events.log: %v", err)
	}

	newManifest := &manifest{
		HeadHash:       headHash,
		TailHash:       rolling,
		NextEventIndex: truth.NextEventIndex + len(batch.Events),
		SnapshotPins:   append(append([]SnapshotPin{}, truth.SnapshotPins...), batch.SnapshotPins...),
		Health:         HealthHealthy,
	}
	if err := writeManifestAtomic(l.dir, newManifest); err != nil {
		return nil, false, err
	}

	newTruth, err := l.Load()
	if err != nil {
		return nil, false, err
	}
	return newTruth, true, nil
}
