package session

import (
	"bufio"
	"os"
	"strings"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/canonical"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/crypto"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/ids"
	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/kerrors"
)

// SalvageResult reports what Salvage recovered from a session's raw log.
type SalvageResult struct {
	// RecoveredEvents is the number of events copied into outDir.
	RecoveredEvents int
	// CorruptAtIndex is the eventIndex of the first event Salvage refused to
	// carry over, or -1 if the whole log scanned clean.
	CorruptAtIndex int
}

// Salvage is the external recovery tool spec.md §7 names for a session
// stuck SESSION_NOT_HEALTHY ("requires external recovery (salvage-export
// tool)"): it tolerantly re-scans sessionId's raw events.log, stopping at
// the first event that fails to decode or breaks I1/I2, and writes every
// event before that point — plus a freshly recomputed manifest covering
// just those events — into outDir as a standalone session directory an
// operator can inspect or move into place as <dataDir>/sessions/<newId>.
// It never mutates the source session, never touches the lock file, and is
// not reachable from the gate or orchestrator.
func Salvage(dataDir string, sessionId ids.SessionId, outDir string) (*SalvageResult, error) {
	srcDir := sessionDir(dataDir, sessionId)

	events, corruptAt, err := salvageScan(srcDir)
	if err != nil {
		return nil, err
	}

	if err := writeSalvaged(outDir, events); err != nil {
		return nil, err
	}

	return &SalvageResult{RecoveredEvents: len(events), CorruptAtIndex: corruptAt}, nil
}

// salvageScan reads srcDir's events.log line by line, keeping every event
// up to (but not including) the first one that fails to decode as
// canonical JSON, isn't shaped like an Event, or violates I1 (contiguous
// eventIndex) or I2 (event 0 is session_created). Unlike Log.Load, it never
// fails the whole read on a bad line — it just stops there.
func salvageScan(srcDir string) ([]Event, int, error) {
	f, err := os.Open(logPath(srcDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, -1, kerrors.Newf(kerrors.CodeNotFound, "session: salvage: %q has no events.log", srcDir)
		}
		return nil, -1, kerrors.Newf(kerrors.CodeIOError, "session: salvage: open events.log: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	var events []Event
	lineNo := 0
	corruptAt := -1

scan:
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		lineNo++
		wantIndex := lineNo - 1

		decoded, derr := canonical.Decode(line)
		if derr != nil {
			corruptAt = wantIndex
			break scan
		}
		evt, ok := EventFromCanonical(decoded)
		if !ok {
			corruptAt = wantIndex
			break scan
		}
		if evt.EventIndex != wantIndex {
			corruptAt = wantIndex
			break scan
		}
		if wantIndex == 0 && evt.Kind != KindSessionCreated {
			corruptAt = wantIndex
			break scan
		}
		events = append(events, evt)
	}
	if err := scanner.Err(); err != nil {
		return nil, -1, kerrors.Newf(kerrors.CodeIOError, "session: salvage: scan events.log: %v", err)
	}

	return events, corruptAt, nil
}

// writeSalvaged writes events into outDir as a fresh events.log plus a
// manifest recomputed from genesis over exactly those events, the same
// hash-chain construction Log.Append uses.
func writeSalvaged(outDir string, events []Event) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return kerrors.Newf(kerrors.CodeIOError, "session: salvage: create %q: %v", outDir, err)
	}

	rolling := genesis
	headHash := ""
	var pins []SnapshotPin
	var buf strings.Builder

	for _, e := range events {
		b, cerr := canonical.Marshal(e.ToCanonical())
		if cerr != nil {
			return kerrors.Newf(kerrors.CodeInternalError, "session: salvage: canonicalize event %d: %v", e.EventIndex, cerr)
		}
		line := string(b)
		buf.WriteString(line)
		buf.WriteByte('\n')

		rolling = crypto.Sha256([]byte(rolling + line)).Hex()
		if e.EventIndex == 0 {
			headHash = rolling
		}
		if e.Kind == KindNodeCreated {
			if ref, _ := e.Data["snapshotRef"].(string); ref != "" {
				pins = append(pins, SnapshotPin{SnapshotRef: ref, EventIndex: e.EventIndex, CreatedByEventId: string(e.EventId)})
			}
		}
	}

	if err := os.WriteFile(logPath(outDir), []byte(buf.String()), 0o644); err != nil {
		return kerrors.Newf(kerrors.CodeIOError, "session: salvage: write events.log: %v", err)
	}

	m := &manifest{
		HeadHash:       headHash,
		TailHash:       rolling,
		NextEventIndex: len(events),
		SnapshotPins:   pins,
		Health:         HealthHealthy,
	}
	return writeManifestAtomic(outDir, m)
}
