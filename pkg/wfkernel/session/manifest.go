package session

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/ormasoftchile/wfkernel/pkg/wfkernel/kerrors"
)

// Health is the sidecar manifest's own opinion of session truth, recomputed
// from the hash chain on every Load rather than trusted blindly from disk.
type Health string

const (
	HealthHealthy Health = "healthy"
	HealthCorrupt Health = "corrupt"
)

// manifest is the on-disk sidecar: head/tail rolling hash, next event
// index, and the snapshot-pin index.
type manifest struct {
	HeadHash       string        `json:"headHash"`
	TailHash       string        `json:"tailHash"`
	NextEventIndex int           `json:"nextEventIndex"`
	SnapshotPins   []SnapshotPin `json:"snapshotPins"`
	Health         Health        `json:"health"`
}

func manifestPath(dir string) string { return filepath.Join(dir, "manifest.json") }
func logPath(dir string) string      { return filepath.Join(dir, "events.log") }
func lockPath(dir string) string     { return filepath.Join(dir, "lock") }

func readManifest(dir string) (*manifest, bool, error) {
	b, err := os.ReadFile(manifestPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, kerrors.Newf(kerrors.CodeIOError, "session: read manifest: %v", err)
	}
	var m manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, false, kerrors.Newf(kerrors.CodeCorruptionDetected, "session: manifest is not valid JSON: %v", err)
	}
	return &m, true, nil
}

func writeManifestAtomic(dir string, m *manifest) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return kerrors.Newf(kerrors.CodeIOError, "session: create session dir: %v", err)
	}
	b, err := json.Marshal(m)
	if err != nil {
		return kerrors.Newf(kerrors.CodeInternalError, "session: marshal manifest: %v", err)
	}
	path := manifestPath(dir)
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return kerrors.Newf(kerrors.CodeIOError, "session: create temp manifest: %v", err)
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		os.Remove(tmp)
		return kerrors.Newf(kerrors.CodeIOError, "session: write temp manifest: %v", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return kerrors.Newf(kerrors.CodeIOError, "session: fsync temp manifest: %v", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return kerrors.Newf(kerrors.CodeIOError, "session: close temp manifest: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return kerrors.Newf(kerrors.CodeIOError, "session: rename manifest into place: %v", err)
	}
	return nil
}
